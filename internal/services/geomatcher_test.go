package services

import (
	"math"
	"testing"
	"time"

	"bus-backend/internal/geo"
	"bus-backend/internal/models"
)

// testRoute маршрут из трех остановок вдоль экватора с шагом 0.01° (~1.11 км)
func testRoute() *models.Route {
	return &models.Route{
		ID:   1,
		Name: "Тестовый маршрут",
		Code: "T1",
		Stops: []models.RouteStop{
			{
				StationID:         10,
				Sequence:          1,
				DistanceFromStart: 0,
				Station:           models.Station{ID: 10, Name: "Первая", Code: "ST1", Latitude: 0, Longitude: 0},
			},
			{
				StationID:         20,
				Sequence:          2,
				DistanceFromStart: 1.11,
				Station:           models.Station{ID: 20, Name: "Вторая", Code: "ST2", Latitude: 0, Longitude: 0.01},
			},
			{
				StationID:         30,
				Sequence:          3,
				DistanceFromStart: 2.22,
				Station:           models.Station{ID: 30, Name: "Третья", Code: "ST3", Latitude: 0, Longitude: 0.02},
			},
		},
	}
}

func TestNearestSegmentFirst(t *testing.T) {
	m := NewGeoMatcher()
	route := testRoute()

	// Точка между первой и второй остановками
	coord := &geo.Point{Lat: 0, Lng: 0.004}
	segment := m.NearestSegment(coord, route)
	if segment == nil {
		t.Fatal("NearestSegment вернул nil для точки на маршруте")
	}

	if segment.SegmentIndex != 0 {
		t.Errorf("SegmentIndex = %d, ожидалось 0", segment.SegmentIndex)
	}
	if segment.FromStop.ID != 10 || segment.ToStop.ID != 20 {
		t.Errorf("сегмент %d -> %d, ожидалось 10 -> 20", segment.FromStop.ID, segment.ToStop.ID)
	}
	if math.Abs(segment.Progress-40) > 0.5 {
		t.Errorf("Progress = %f, ожидалось ~40", segment.Progress)
	}
	if segment.DistanceToSegment != 0 {
		t.Errorf("DistanceToSegment = %d, ожидалось 0 для точки на линии", segment.DistanceToSegment)
	}
}

func TestNearestSegmentSecond(t *testing.T) {
	m := NewGeoMatcher()
	route := testRoute()

	coord := &geo.Point{Lat: 0, Lng: 0.015}
	segment := m.NearestSegment(coord, route)
	if segment == nil {
		t.Fatal("NearestSegment вернул nil для точки на маршруте")
	}

	if segment.SegmentIndex != 1 {
		t.Errorf("SegmentIndex = %d, ожидалось 1", segment.SegmentIndex)
	}
	if math.Abs(segment.Progress-50) > 0.5 {
		t.Errorf("Progress = %f, ожидалось ~50", segment.Progress)
	}
}

func TestNearestSegmentAtStop(t *testing.T) {
	m := NewGeoMatcher()
	route := testRoute()

	// Точка ровно на второй остановке: оба сегмента на нулевом расстоянии,
	// побеждает первый найденный минимум
	coord := &geo.Point{Lat: 0, Lng: 0.01}
	segment := m.NearestSegment(coord, route)
	if segment == nil {
		t.Fatal("NearestSegment вернул nil")
	}

	if segment.SegmentIndex != 0 {
		t.Errorf("SegmentIndex = %d, ожидалось 0 (первый минимум)", segment.SegmentIndex)
	}
	if segment.Progress != 100 {
		t.Errorf("Progress = %f, ожидалось 100", segment.Progress)
	}
}

func TestNearestSegmentDegenerate(t *testing.T) {
	m := NewGeoMatcher()
	route := testRoute()

	if segment := m.NearestSegment(nil, route); segment != nil {
		t.Error("ожидался nil для отсутствующей координаты")
	}

	coord := &geo.Point{Lat: 0, Lng: 0}
	short := &models.Route{Stops: route.Stops[:1]}
	if segment := m.NearestSegment(coord, short); segment != nil {
		t.Error("ожидался nil для маршрута с одной остановкой")
	}
}

func TestNearbyStops(t *testing.T) {
	m := NewGeoMatcher()
	route := testRoute()

	// ~333 м восточнее второй остановки: в радиусе 500 м только она
	coord := &geo.Point{Lat: 0, Lng: 0.013}
	nearby := m.NearbyStops(coord, route, DefaultNearbyRadiusMeters)

	if len(nearby) != 1 {
		t.Fatalf("найдено %d остановок, ожидалась 1", len(nearby))
	}
	if nearby[0].StationID != 20 {
		t.Errorf("StationID = %d, ожидалось 20", nearby[0].StationID)
	}
}

func TestNearbyStopsSortedAndCapped(t *testing.T) {
	m := NewGeoMatcher()

	// Семь остановок с шагом ~111 м, все в радиусе 1 км от точки
	route := &models.Route{}
	for i := 0; i < 7; i++ {
		route.Stops = append(route.Stops, models.RouteStop{
			StationID: uint(i + 1),
			Sequence:  i + 1,
			Station:   models.Station{ID: uint(i + 1), Latitude: 0, Longitude: float64(i) * 0.001},
		})
	}

	coord := &geo.Point{Lat: 0, Lng: 0}
	nearby := m.NearbyStops(coord, route, 1000)

	if len(nearby) != 5 {
		t.Fatalf("найдено %d остановок, ожидалось 5 (ограничение)", len(nearby))
	}
	for i := 1; i < len(nearby); i++ {
		if nearby[i].Distance < nearby[i-1].Distance {
			t.Errorf("остановки не отсортированы по расстоянию: %d < %d", nearby[i].Distance, nearby[i-1].Distance)
		}
	}
	if nearby[0].StationID != 1 {
		t.Errorf("ближайшая остановка StationID = %d, ожидалось 1", nearby[0].StationID)
	}
}

func TestNearbyStopsOrderSurvivesRounding(t *testing.T) {
	m := NewGeoMatcher()

	// Обе остановки в ~100 м от точки и после округления до метра
	// неразличимы; порядок определяется неокругленным расстоянием.
	// Более далекая остановка идет на маршруте первой.
	route := &models.Route{
		Stops: []models.RouteStop{
			{
				StationID: 1,
				Sequence:  1,
				Station:   models.Station{ID: 1, Latitude: 0, Longitude: 0.000903},
			},
			{
				StationID: 2,
				Sequence:  2,
				Station:   models.Station{ID: 2, Latitude: 0, Longitude: 0.000901},
			},
		},
	}

	coord := &geo.Point{Lat: 0, Lng: 0}
	nearby := m.NearbyStops(coord, route, DefaultNearbyRadiusMeters)

	if len(nearby) != 2 {
		t.Fatalf("найдено %d остановок, ожидалось 2", len(nearby))
	}
	if nearby[0].Distance != nearby[1].Distance {
		t.Fatalf("округленные расстояния различаются (%d и %d), тест не проверяет порядок",
			nearby[0].Distance, nearby[1].Distance)
	}
	if nearby[0].StationID != 2 {
		t.Errorf("первой должна идти фактически более близкая остановка, получена %d", nearby[0].StationID)
	}
}

func TestSpeedAndBearing(t *testing.T) {
	m := NewGeoMatcher()
	now := time.Now()

	// ~111 м на север за 10 секунд — это ~40 км/ч, азимут 0
	locations := []models.TripLocation{
		{Latitude: 0, Longitude: 0, Timestamp: now},
		{Latitude: 0.001, Longitude: 0, Timestamp: now.Add(10 * time.Second)},
	}

	speed, bearing := m.SpeedAndBearing(locations)
	if math.Abs(speed-40.0) > 0.2 {
		t.Errorf("скорость = %f, ожидалось ~40.0", speed)
	}
	if bearing == nil {
		t.Fatal("азимут не вычислен")
	}
	if *bearing != 0 {
		t.Errorf("азимут = %d, ожидалось 0", *bearing)
	}
}

func TestSpeedAndBearingInsufficientHistory(t *testing.T) {
	m := NewGeoMatcher()

	speed, bearing := m.SpeedAndBearing([]models.TripLocation{{Latitude: 0, Longitude: 0}})
	if speed != 0 || bearing != nil {
		t.Errorf("при одной точке ожидались скорость 0 и nil азимут, получено %f, %v", speed, bearing)
	}
}

func TestEstimateArrival(t *testing.T) {
	m := NewGeoMatcher()
	route := testRoute()
	now := time.Now()

	lat, lng := 0.0, 0.004
	trip := &models.Trip{LastLat: &lat, LastLng: &lng}

	// Автобус на первом сегменте, до третьей остановки 2.22 км:
	// при 25 км/ч это 2.22/25*60 ≈ 5.33 минуты
	eta := m.EstimateArrival(trip, route, 30, now)
	if eta == nil {
		t.Fatal("EstimateArrival вернул nil для станции на маршруте")
	}

	wantMinutes := 2.22 / averageBusSpeedKmh * 60
	gotMinutes := eta.Sub(now).Minutes()
	if math.Abs(gotMinutes-wantMinutes) > 0.01 {
		t.Errorf("ETA через %f минут, ожидалось %f", gotMinutes, wantMinutes)
	}
}

func TestEstimateArrivalNilCases(t *testing.T) {
	m := NewGeoMatcher()
	route := testRoute()
	now := time.Now()

	// Местоположение неизвестно
	if eta := m.EstimateArrival(&models.Trip{}, route, 30, now); eta != nil {
		t.Error("ожидался nil при отсутствии местоположения")
	}

	// Станции нет на маршруте
	lat, lng := 0.0, 0.004
	trip := &models.Trip{LastLat: &lat, LastLng: &lng}
	if eta := m.EstimateArrival(trip, route, 999, now); eta != nil {
		t.Error("ожидался nil для станции вне маршрута")
	}

	// Автобус уже проехал станцию назначения
	lat2, lng2 := 0.0, 0.015
	passed := &models.Trip{LastLat: &lat2, LastLng: &lng2}
	if eta := m.EstimateArrival(passed, route, 10, now); eta != nil {
		t.Error("ожидался nil, когда станция назначения позади")
	}
}
