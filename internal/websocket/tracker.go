package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bus-backend/internal/geo"
	"bus-backend/internal/middleware"
	"bus-backend/internal/models"
	"bus-backend/internal/services"
	"bus-backend/internal/stores"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Входящие типы сообщений
const (
	JoinTripType       = "join-trip"
	LeaveTripType      = "leave-trip"
	LocationUpdateType = "location-update"
	TrackTripType      = "track-trip"
	TrackRouteType     = "track-route"
	StopTrackingType   = "stop-tracking"
	StartTripType      = "start-trip"
	EndTripType        = "end-trip"
)

// Настройка для обновления WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Разрешаем подключения с любых источников
	},
}

// TripStore операции над рейсами, которые нужны трекеру
type TripStore interface {
	GetByRef(ctx context.Context, ref string) (*models.Trip, error)
	AppendLocation(ctx context.Context, tripID uint, loc *models.TripLocation) error
	RecentLocations(ctx context.Context, tripID uint, limit int) ([]models.TripLocation, error)
	FindActive(ctx context.Context, routeID uint) ([]models.Trip, error)
	SetStatus(ctx context.Context, id uint, status models.TripStatus, endedAt *time.Time) error
}

// Tracker связывает WebSocket соединения с логикой живого отслеживания:
// прием точек местоположения, рассылка по группам, сессии водителей
type Tracker struct {
	hub      *Hub
	trips    TripStore
	limiter  *services.RateLimiter
	sessions *services.SessionService

	// Пишущие операции одного рейса сериализованы: порядок сохраненных
	// точек совпадает с порядком принятия, last_lat/last_lng указывают
	// на последнюю принятую точку
	mu        sync.Mutex
	tripLocks map[string]*sync.Mutex
}

// NewTracker создает обработчик живого отслеживания
func NewTracker(hub *Hub, trips TripStore, limiter *services.RateLimiter, sessions *services.SessionService) *Tracker {
	return &Tracker{
		hub:       hub,
		trips:     trips,
		limiter:   limiter,
		sessions:  sessions,
		tripLocks: make(map[string]*sync.Mutex),
	}
}

// tripLock возвращает блокировку рейса, создавая ее при первом обращении
func (t *Tracker) tripLock(tripRef string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.tripLocks[tripRef]
	if !ok {
		lock = &sync.Mutex{}
		t.tripLocks[tripRef] = lock
	}
	return lock
}

// forgetTripLock удаляет блокировку завершенного рейса
func (t *Tracker) forgetTripLock(tripRef string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tripLocks, tripRef)
}

// Handler обрабатывает подключения WebSocket
func (t *Tracker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Проверяем, что это действительно запрос на установление WebSocket соединения
		if c.GetHeader("Upgrade") != "websocket" {
			c.String(http.StatusBadRequest, "Требуется WebSocket соединение")
			return
		}

		clientID := c.Query("client_id")
		testMode := c.Query("test") == "true"

		var userID uint
		if id, exists := c.Get("user_id"); exists {
			if uid, ok := id.(uint); ok {
				userID = uid
			}
		}

		if clientID == "" && userID > 0 {
			clientID = fmt.Sprintf("user_%d", userID)
		} else if clientID == "" {
			clientID = fmt.Sprintf("anon_%d", time.Now().UnixNano())
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Ошибка обновления соединения до WebSocket: %v", err)
			return
		}

		// Если это тестовое соединение, сразу закрываем его
		if testMode {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"TEST_SUCCESS"}`))
			conn.Close()
			return
		}

		client := &Client{
			conn:     conn,
			clientID: clientID,
			userID:   userID,
		}

		middleware.WebsocketConnections.Inc()
		log.Printf("WebSocket подключение установлено: %s", clientID)

		go t.readLoop(client)
	}
}

// readLoop читает и обрабатывает сообщения клиента до разрыва соединения
func (t *Tracker) readLoop(client *Client) {
	defer func() {
		t.handleDisconnect(client)
		client.conn.Close()
		middleware.WebsocketConnections.Dec()
		log.Printf("WebSocket соединение закрыто: %s", client.clientID)
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ошибка при разборе сообщения от %s: %v", client.clientID, err)
			continue
		}

		t.handleMessage(client, &msg)
	}
}

// handleMessage разбирает тип входящего сообщения и вызывает обработчик.
// Ни одна ошибка обработчика не приводит к разрыву соединения: все
// внутренние сбои превращаются в структурированное событие error.
func (t *Tracker) handleMessage(client *Client, msg *Message) {
	switch msg.Type {
	case "ping":
		_ = client.Emit("pong", map[string]interface{}{"time": time.Now().Unix()})
	case JoinTripType:
		t.handleJoinTrip(client, msg.Payload)
	case LeaveTripType:
		t.handleLeaveTrip(client, msg.Payload)
	case LocationUpdateType:
		t.handleLocationUpdate(client, msg.Payload)
	case TrackTripType:
		t.handleTrackTrip(client, msg.Payload)
	case TrackRouteType:
		t.handleTrackRoute(client, msg.Payload)
	case StopTrackingType:
		t.handleStopTracking(client, msg.Payload)
	case StartTripType:
		t.handleStartTrip(client, msg.Payload)
	case EndTripType:
		t.handleEndTrip(client, msg.Payload)
	default:
		log.Printf("Неизвестный тип сообщения от %s: %s", client.clientID, msg.Type)
	}
}

type tripRefPayload struct {
	TripID string `json:"tripId"`
}

type trackRoutePayload struct {
	RouteID string `json:"routeId"`
}

type stopTrackingPayload struct {
	TripID  string `json:"tripId"`
	RouteID string `json:"routeId"`
}

type locationUpdatePayload struct {
	TripID  string   `json:"tripId"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Ts      int64    `json:"ts"` // миллисекунды Unix, 0 = сейчас
	Speed   *float64 `json:"speed"`
	Bearing *float64 `json:"bearing"`
}

// handleLocationUpdate обрабатывает входящую точку от водителя.
// Сырая точка рассылается подписчикам немедленно и безусловно — видимость
// в реальном времени не зависит от решения о сохранении. Затем ограничитель
// решает, сохранять ли точку, и отправителю уходит подтверждение.
func (t *Tracker) handleLocationUpdate(client *Client, raw json.RawMessage) {
	var p locationUpdatePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.TripID == "" || p.Lat == nil || p.Lng == nil {
		middleware.LocationUpdatesTotal.WithLabelValues("invalid").Inc()
		client.EmitError("Требуются ID рейса, широта и долгота")
		return
	}

	if !geo.ValidCoordinates(*p.Lat, *p.Lng) {
		middleware.LocationUpdatesTotal.WithLabelValues("invalid").Inc()
		client.EmitError("Некорректные координаты")
		return
	}

	coord := geo.Point{Lat: *p.Lat, Lng: *p.Lng}
	now := time.Now()

	ts := p.Ts
	if ts == 0 {
		ts = now.UnixMilli()
	}

	locationData := map[string]interface{}{
		"tripId":  p.TripID,
		"lat":     *p.Lat,
		"lng":     *p.Lng,
		"ts":      ts,
		"speed":   p.Speed,
		"bearing": p.Bearing,
	}

	// Сырая точка уходит подписчикам до любых обращений к хранилищу
	t.hub.EmitToGroup("trip:"+p.TripID, "location", locationData)
	t.hub.EmitToGroup("track:"+p.TripID, "bus-location", locationData)

	// Решение о принятии и запись выполняются под блокировкой рейса:
	// две конкурентные принятые точки не могут закоммититься в обратном
	// порядке и оставить last_lat на более ранней из них
	lock := t.tripLock(p.TripID)
	lock.Lock()
	defer lock.Unlock()

	if !t.limiter.Accept(p.TripID, now, coord) {
		middleware.LocationUpdatesTotal.WithLabelValues("rate_limited").Inc()
		_ = client.Emit("location-saved", map[string]interface{}{"saved": false, "reason": "rate-limited"})
		return
	}

	trip, err := t.trips.GetByRef(context.Background(), p.TripID)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			client.EmitError("Рейс не найден")
		} else {
			log.Printf("Ошибка поиска рейса %s: %v", p.TripID, err)
			client.EmitError("Не удалось сохранить местоположение")
		}
		middleware.LocationUpdatesTotal.WithLabelValues("error").Inc()
		return
	}

	tsTime := time.UnixMilli(ts)
	loc := &models.TripLocation{
		Latitude:  *p.Lat,
		Longitude: *p.Lng,
		Timestamp: tsTime,
		Speed:     p.Speed,
		Bearing:   p.Bearing,
	}

	if err := t.trips.AppendLocation(context.Background(), trip.ID, loc); err != nil {
		// Рассылка сырой точки уже состоялась; отправителю сообщаем о сбое
		log.Printf("Ошибка сохранения местоположения рейса %s: %v", p.TripID, err)
		middleware.LocationUpdatesTotal.WithLabelValues("error").Inc()
		client.EmitError("Не удалось сохранить местоположение")
		return
	}

	middleware.LocationUpdatesTotal.WithLabelValues("saved").Inc()

	_ = client.Emit("location-saved", map[string]interface{}{"saved": true, "timestamp": tsTime})
	t.hub.EmitToGroup("track:"+p.TripID, "location-update", map[string]interface{}{
		"tripId":       p.TripID,
		"lastLocation": coord,
		"timestamp":    tsTime,
	})
}

// handleJoinTrip подключает клиента к потоку событий рейса и отправляет
// начальный снапшот, чтобы поздний подписчик сразу получил контекст
func (t *Tracker) handleJoinTrip(client *Client, raw json.RawMessage) {
	var p tripRefPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.TripID == "" {
		client.EmitError("Требуется ID рейса")
		return
	}

	t.hub.Join(client, "trip:"+p.TripID)

	trip, err := t.trips.GetByRef(context.Background(), p.TripID)
	if err != nil || trip.LastLocation() == nil {
		client.EmitError("Рейс не найден или местоположение еще неизвестно")
		return
	}

	recent, err := t.trips.RecentLocations(context.Background(), trip.ID, 10)
	if err != nil {
		log.Printf("Ошибка загрузки истории рейса %s: %v", p.TripID, err)
	}

	_ = client.Emit("trip-init", map[string]interface{}{
		"tripDetails":  trip.ToSummary(),
		"lastLocation": trip.LastLocation(),
		"locations":    recent,
	})
}

// handleLeaveTrip отключает клиента от потоков рейса
func (t *Tracker) handleLeaveTrip(client *Client, raw json.RawMessage) {
	var p tripRefPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.TripID == "" {
		return
	}
	t.hub.Leave(client, "trip:"+p.TripID)
	t.hub.Leave(client, "track:"+p.TripID)
}

// handleTrackTrip подключает клиента к обогащенному потоку отслеживания
// рейса и отправляет снапшот с маршрутом и последними точками
func (t *Tracker) handleTrackTrip(client *Client, raw json.RawMessage) {
	var p tripRefPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.TripID == "" {
		client.EmitError("Требуется ID рейса")
		return
	}

	t.hub.Join(client, "track:"+p.TripID)

	trip, err := t.trips.GetByRef(context.Background(), p.TripID)
	if err != nil {
		client.EmitError("Рейс не найден")
		return
	}

	recent, err := t.trips.RecentLocations(context.Background(), trip.ID, 5)
	if err != nil {
		log.Printf("Ошибка загрузки истории рейса %s: %v", p.TripID, err)
	}

	_ = client.Emit("trip-tracking-init", map[string]interface{}{
		"tripId":          trip.ID,
		"code":            trip.Code,
		"status":          trip.Status,
		"bus":             trip.Bus.ToResponse(),
		"route":           trip.Route,
		"driver":          trip.Driver.ToDriverSummary(),
		"lastLocation":    trip.LastLocation(),
		"startedAt":       trip.StartedAt,
		"recentLocations": recent,
	})
}

// handleTrackRoute подключает клиента к потоку маршрута и отправляет
// снапшот всех активных рейсов
func (t *Tracker) handleTrackRoute(client *Client, raw json.RawMessage) {
	var p trackRoutePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RouteID == "" {
		client.EmitError("Требуется ID маршрута")
		return
	}

	routeID, err := strconv.ParseUint(p.RouteID, 10, 64)
	if err != nil {
		client.EmitError("Некорректный ID маршрута")
		return
	}

	t.hub.Join(client, "route:"+p.RouteID)

	trips, err := t.trips.FindActive(context.Background(), uint(routeID))
	if err != nil {
		log.Printf("Ошибка поиска активных рейсов маршрута %s: %v", p.RouteID, err)
		client.EmitError("Не удалось загрузить рейсы маршрута")
		return
	}

	activeTrips := make([]map[string]interface{}, 0, len(trips))
	for i := range trips {
		trip := &trips[i]
		activeTrips = append(activeTrips, map[string]interface{}{
			"tripId":       trip.ID,
			"code":         trip.Code,
			"bus":          trip.Bus.ToResponse(),
			"driver":       trip.Driver.ToDriverSummary(),
			"lastLocation": trip.LastLocation(),
			"startedAt":    trip.StartedAt,
		})
	}

	_ = client.Emit("route-tracking-init", map[string]interface{}{
		"routeId":     p.RouteID,
		"activeTrips": activeTrips,
	})
}

// handleStopTracking отключает клиента от потоков отслеживания
func (t *Tracker) handleStopTracking(client *Client, raw json.RawMessage) {
	var p stopTrackingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	if p.TripID != "" {
		t.hub.Leave(client, "track:"+p.TripID)
	}
	if p.RouteID != "" {
		t.hub.Leave(client, "route:"+p.RouteID)
	}
}

// handleStartTrip запускает сессию водителя: периодический запрос
// местоположения и подписка соединения на группы рейса
func (t *Tracker) handleStartTrip(client *Client, raw json.RawMessage) {
	var p tripRefPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.TripID == "" {
		client.EmitError("Требуется ID рейса")
		return
	}

	trip, err := t.trips.GetByRef(context.Background(), p.TripID)
	if err != nil {
		client.EmitError("Рейс не найден")
		return
	}

	if trip.Status != models.TripStatusOngoing {
		client.EmitError("Рейс уже завершен")
		return
	}

	if client.userID > 0 && trip.DriverID > 0 && client.userID != trip.DriverID {
		client.EmitError("Только водитель рейса может передавать местоположение")
		return
	}

	t.sessions.Start(p.TripID, client)
	t.hub.Join(client, "trip:"+p.TripID)
	t.hub.Join(client, "driver:"+p.TripID)
	middleware.DriverSessionsActive.Set(float64(t.sessions.Active()))

	_ = client.Emit("trip-started", map[string]interface{}{
		"tripId":    p.TripID,
		"startedAt": trip.StartedAt,
	})
}

// handleEndTrip завершает рейс: останавливает сессию водителя, помечает
// рейс завершенным и уведомляет подписчиков
func (t *Tracker) handleEndTrip(client *Client, raw json.RawMessage) {
	var p tripRefPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.TripID == "" {
		client.EmitError("Требуется ID рейса")
		return
	}

	t.finishTrip(client, p.TripID)

	t.hub.Leave(client, "driver:"+p.TripID)
	t.hub.Leave(client, "trip:"+p.TripID)
}

// handleDisconnect обрабатывает разрыв соединения: останавливает все
// сессии водителя этого соединения и убирает его из всех групп
func (t *Tracker) handleDisconnect(client *Client) {
	for _, tripRef := range t.sessions.StopAllFor(client) {
		log.Printf("Соединение %s разорвано, завершаем рейс %s", client.clientID, tripRef)
		t.endTripByRef(tripRef)
	}
	middleware.DriverSessionsActive.Set(float64(t.sessions.Active()))
	t.hub.RemoveClient(client)
}

// finishTrip останавливает сессию (если была) и завершает рейс
func (t *Tracker) finishTrip(client *Client, tripRef string) {
	t.sessions.Stop(tripRef)
	middleware.DriverSessionsActive.Set(float64(t.sessions.Active()))

	if !t.endTripByRef(tripRef) {
		client.EmitError("Рейс не найден")
	}
}

// endTripByRef помечает рейс завершенным, чистит состояние ограничителя
// и уведомляет подписчиков группы рейса
func (t *Tracker) endTripByRef(tripRef string) bool {
	trip, err := t.trips.GetByRef(context.Background(), tripRef)
	if err != nil {
		if !errors.Is(err, stores.ErrNotFound) {
			log.Printf("Ошибка поиска рейса %s при завершении: %v", tripRef, err)
		}
		return false
	}

	now := time.Now()
	if err := t.trips.SetStatus(context.Background(), trip.ID, models.TripStatusFinished, &now); err != nil {
		log.Printf("Ошибка завершения рейса %s: %v", tripRef, err)
		return false
	}

	t.limiter.Forget(tripRef)
	t.forgetTripLock(tripRef)

	t.hub.EmitToGroup("trip:"+tripRef, "trip-ended", map[string]interface{}{
		"tripId":  tripRef,
		"endedAt": now,
	})
	return true
}
