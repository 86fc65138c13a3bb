package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"bus-backend/internal/models"
	"bus-backend/internal/services"
	"bus-backend/internal/stores"
)

// fakeConn собирает отправленные в соединение кадры
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	return 0, nil, errors.New("соединение закрыто")
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) messages(t *testing.T) []Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, 0, len(f.frames))
	for _, frame := range f.frames {
		var msg Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("не удалось разобрать кадр %s: %v", frame, err)
		}
		out = append(out, msg)
	}
	return out
}

func (f *fakeConn) countType(t *testing.T, event string) int {
	t.Helper()
	n := 0
	for _, msg := range f.messages(t) {
		if msg.Type == event {
			n++
		}
	}
	return n
}

// fakeTripStore хранилище рейсов в памяти с настраиваемой задержкой записи
type fakeTripStore struct {
	mu          sync.Mutex
	trip        *models.Trip
	appended    []models.TripLocation
	appendDelay time.Duration
	inFlight    int
	overlapped  bool
}

func (f *fakeTripStore) GetByRef(ctx context.Context, ref string) (*models.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trip == nil || ref != "42" {
		return nil, stores.ErrNotFound
	}
	trip := *f.trip
	return &trip, nil
}

func (f *fakeTripStore) AppendLocation(ctx context.Context, tripID uint, loc *models.TripLocation) error {
	f.mu.Lock()
	if f.inFlight > 0 {
		f.overlapped = true
	}
	f.inFlight++
	f.mu.Unlock()

	time.Sleep(f.appendDelay)

	f.mu.Lock()
	f.inFlight--
	f.appended = append(f.appended, *loc)
	f.mu.Unlock()
	return nil
}

func (f *fakeTripStore) RecentLocations(ctx context.Context, tripID uint, limit int) ([]models.TripLocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.appended) > limit {
		return f.appended[len(f.appended)-limit:], nil
	}
	return f.appended, nil
}

func (f *fakeTripStore) FindActive(ctx context.Context, routeID uint) ([]models.Trip, error) {
	return nil, nil
}

func (f *fakeTripStore) SetStatus(ctx context.Context, id uint, status models.TripStatus, endedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trip == nil || f.trip.ID != id {
		return stores.ErrNotFound
	}
	f.trip.Status = status
	f.trip.EndedAt = endedAt
	return nil
}

func newTestTracker(store *fakeTripStore) *Tracker {
	return NewTracker(
		NewHub(),
		store,
		services.NewRateLimiter(5, 30),
		services.NewSessionService(time.Hour),
	)
}

func locationPayload(t *testing.T, lat, lng float64) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"tripId": "42",
		"lat":    lat,
		"lng":    lng,
	})
	if err != nil {
		t.Fatal(err)
	}
	return payload
}

func TestLocationUpdateFanout(t *testing.T) {
	store := &fakeTripStore{trip: &models.Trip{ID: 42, Code: "TRIP-A", Status: models.TripStatusOngoing}}
	tracker := newTestTracker(store)

	driverConn := &fakeConn{}
	driver := &Client{conn: driverConn, clientID: "driver"}
	riderConn := &fakeConn{}
	rider := &Client{conn: riderConn, clientID: "rider"}
	watcherConn := &fakeConn{}
	watcher := &Client{conn: watcherConn, clientID: "watcher"}

	tracker.hub.Join(rider, "trip:42")
	tracker.hub.Join(watcher, "track:42")

	// Три точки: первая принимается, вторая (без смещения, внутри окна)
	// отклоняется, третья (смещение ~55 м) принимается
	tracker.handleLocationUpdate(driver, locationPayload(t, 43.25, 76.95))
	tracker.handleLocationUpdate(driver, locationPayload(t, 43.25, 76.95))
	tracker.handleLocationUpdate(driver, locationPayload(t, 43.2505, 76.95))

	// Сырая точка доходит до подписчиков при каждом поступлении
	if got := riderConn.countType(t, "location"); got != 3 {
		t.Errorf("группа рейса получила %d сырых точек, ожидалось 3", got)
	}
	if got := watcherConn.countType(t, "bus-location"); got != 3 {
		t.Errorf("группа отслеживания получила %d сырых точек, ожидалось 3", got)
	}

	// Событие о сохраненной точке уходит только при принятии
	if got := watcherConn.countType(t, "location-update"); got != 2 {
		t.Errorf("группа отслеживания получила %d сохраненных точек, ожидалось 2", got)
	}
	if got := len(store.appended); got != 2 {
		t.Errorf("в хранилище %d точек, ожидалось 2", got)
	}

	// Отправитель получает подтверждение на каждую точку
	var acks []struct {
		Saved  bool   `json:"saved"`
		Reason string `json:"reason"`
	}
	for _, msg := range driverConn.messages(t) {
		if msg.Type != "location-saved" {
			continue
		}
		var ack struct {
			Saved  bool   `json:"saved"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(msg.Payload, &ack); err != nil {
			t.Fatalf("не удалось разобрать подтверждение: %v", err)
		}
		acks = append(acks, ack)
	}

	if len(acks) != 3 {
		t.Fatalf("отправитель получил %d подтверждений, ожидалось 3", len(acks))
	}
	if !acks[0].Saved || acks[1].Saved || !acks[2].Saved {
		t.Errorf("подтверждения saved = [%v %v %v], ожидалось [true false true]",
			acks[0].Saved, acks[1].Saved, acks[2].Saved)
	}
	if acks[1].Reason != "rate-limited" {
		t.Errorf("причина отклонения = %q, ожидалось \"rate-limited\"", acks[1].Reason)
	}
}

func TestLocationUpdateUnknownTrip(t *testing.T) {
	store := &fakeTripStore{trip: &models.Trip{ID: 42, Code: "TRIP-A", Status: models.TripStatusOngoing}}
	tracker := newTestTracker(store)

	driverConn := &fakeConn{}
	driver := &Client{conn: driverConn, clientID: "driver"}

	payload, _ := json.Marshal(map[string]interface{}{"tripId": "999", "lat": 43.25, "lng": 76.95})
	tracker.handleLocationUpdate(driver, payload)

	if got := driverConn.countType(t, "error"); got != 1 {
		t.Errorf("отправитель получил %d событий ошибки, ожидалось 1", got)
	}
	if len(store.appended) != 0 {
		t.Error("точка неизвестного рейса не должна сохраняться")
	}
}

func TestLocationUpdatesSerializedPerTrip(t *testing.T) {
	store := &fakeTripStore{
		trip:        &models.Trip{ID: 42, Code: "TRIP-A", Status: models.TripStatusOngoing},
		appendDelay: 10 * time.Millisecond,
	}
	tracker := newTestTracker(store)

	// Точки разнесены на километры: каждая проходит ограничитель
	coords := [][2]float64{
		{43.20, 76.90},
		{43.30, 76.95},
		{43.40, 77.00},
		{43.50, 77.05},
	}

	payloads := make([]json.RawMessage, 0, len(coords))
	for _, c := range coords {
		payloads = append(payloads, locationPayload(t, c[0], c[1]))
	}

	var wg sync.WaitGroup
	for _, payload := range payloads {
		wg.Add(1)
		go func(payload json.RawMessage) {
			defer wg.Done()
			client := &Client{conn: &fakeConn{}, clientID: "driver"}
			tracker.handleLocationUpdate(client, payload)
		}(payload)
	}
	wg.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.overlapped {
		t.Error("конкурентные записи одного рейса выполнялись параллельно")
	}
	if len(store.appended) != len(coords) {
		t.Errorf("в хранилище %d точек, ожидалось %d", len(store.appended), len(coords))
	}
}
