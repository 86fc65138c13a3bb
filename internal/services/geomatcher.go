package services

import (
	"math"
	"time"

	"bus-backend/internal/geo"
	"bus-backend/internal/models"
)

// Средняя скорость городского автобуса для оценки времени прибытия, км/ч
const averageBusSpeedKmh = 25.0

// Радиус поиска ближайших остановок по умолчанию, метры
const DefaultNearbyRadiusMeters = 500.0

// SegmentStop граница сегмента маршрута
type SegmentStop struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	Sequence int    `json:"sequence"`
}

// CurrentSegment сегмент маршрута, на котором находится автобус
type CurrentSegment struct {
	SegmentIndex      int         `json:"segment_index"`
	FromStop          SegmentStop `json:"from_stop"`
	ToStop            SegmentStop `json:"to_stop"`
	Progress          float64     `json:"progress"`            // 0..100 вдоль сегмента
	DistanceToSegment int         `json:"distance_to_segment"` // метры, округлено
}

// NearbyStop остановка рядом с текущим местоположением
type NearbyStop struct {
	StationID         uint    `json:"station_id"`
	Name              string  `json:"name"`
	Code              string  `json:"code"`
	Sequence          int     `json:"sequence"`
	DistanceFromStart float64 `json:"distance_from_start"`
	Distance          int     `json:"distance"` // метры до автобуса, округлено
}

// GeoMatcher вычисляет производные факты о рейсе по его координатам
// и геометрии маршрута
type GeoMatcher struct{}

func NewGeoMatcher() *GeoMatcher {
	return &GeoMatcher{}
}

// NearestSegment находит ближайший к точке сегмент маршрута. Перебирает все
// последовательные пары остановок и оставляет пару с минимальным расстоянием;
// при равенстве побеждает первый найденный минимум. Возвращает nil, если
// координата отсутствует или на маршруте меньше двух остановок.
func (m *GeoMatcher) NearestSegment(coord *geo.Point, route *models.Route) *CurrentSegment {
	if coord == nil || route == nil || len(route.Stops) < 2 {
		return nil
	}

	var closest *CurrentSegment
	minDistance := math.Inf(1)

	for i := 0; i < len(route.Stops)-1; i++ {
		stopA := &route.Stops[i]
		stopB := &route.Stops[i+1]

		a := stopA.Station.Location()
		b := stopB.Station.Location()

		distance := geo.PointToSegmentDistance(*coord, a, b)
		if distance < minDistance {
			minDistance = distance

			progress := geo.SegmentProgressFraction(*coord, a, b) * 100
			progress = math.Max(0, math.Min(100, progress))

			closest = &CurrentSegment{
				SegmentIndex: i,
				FromStop: SegmentStop{
					ID:       stopA.StationID,
					Name:     stopA.Station.Name,
					Sequence: stopA.Sequence,
				},
				ToStop: SegmentStop{
					ID:       stopB.StationID,
					Name:     stopB.Station.Name,
					Sequence: stopB.Sequence,
				},
				Progress:          progress,
				DistanceToSegment: int(math.Round(distance)),
			}
		}
	}

	return closest
}

// NearbyStops возвращает остановки маршрута в радиусе radiusMeters от точки,
// отсортированные по возрастанию расстояния, не более пяти
func (m *GeoMatcher) NearbyStops(coord *geo.Point, route *models.Route, radiusMeters float64) []NearbyStop {
	if coord == nil || route == nil {
		return nil
	}

	// Сортируем по неокругленному расстоянию: округление до метра может
	// уравнять соседние остановки и исказить порядок
	type candidate struct {
		stop   NearbyStop
		meters float64
	}

	var nearby []candidate
	for i := range route.Stops {
		stop := &route.Stops[i]
		distance := geo.Distance(*coord, stop.Station.Location())
		if distance <= radiusMeters {
			nearby = append(nearby, candidate{
				stop: NearbyStop{
					StationID:         stop.StationID,
					Name:              stop.Station.Name,
					Code:              stop.Station.Code,
					Sequence:          stop.Sequence,
					DistanceFromStart: stop.DistanceFromStart,
					Distance:          int(math.Round(distance)),
				},
				meters: distance,
			})
		}
	}

	// Сортировка вставками: остановок мало
	for i := 1; i < len(nearby); i++ {
		for j := i; j > 0 && nearby[j].meters < nearby[j-1].meters; j-- {
			nearby[j], nearby[j-1] = nearby[j-1], nearby[j]
		}
	}

	if len(nearby) == 0 {
		return nil
	}
	if len(nearby) > 5 {
		nearby = nearby[:5]
	}

	result := make([]NearbyStop, 0, len(nearby))
	for _, c := range nearby {
		result = append(result, c.stop)
	}
	return result
}

// SpeedAndBearing вычисляет скорость (км/ч, один знак после запятой) и азимут
// (целые градусы) по двум последним точкам истории. При недостатке данных
// возвращает нулевую скорость и nil вместо азимута.
func (m *GeoMatcher) SpeedAndBearing(locations []models.TripLocation) (float64, *int) {
	if len(locations) < 2 {
		return 0, nil
	}

	prev := locations[len(locations)-2]
	curr := locations[len(locations)-1]

	distance := geo.Distance(prev.Coordinates(), curr.Coordinates())
	elapsed := curr.Timestamp.Sub(prev.Timestamp).Seconds()

	speed := 0.0
	if elapsed > 0 {
		speed = distance / elapsed * 3.6
	}
	speed = math.Round(speed*10) / 10

	bearing := int(math.Round(geo.Bearing(prev.Coordinates(), curr.Coordinates())))

	return speed, &bearing
}

// EstimateArrival оценивает время прибытия к станции назначения по модели
// постоянной скорости. Когда известен текущий сегмент, оставшееся расстояние
// считается от его начальной остановки; иначе используется расстояние
// станции назначения от начала маршрута, как в упрощенной исходной модели.
// Возвращает nil, если станции нет на маршруте или местоположение неизвестно.
func (m *GeoMatcher) EstimateArrival(trip *models.Trip, route *models.Route, destStationID uint, now time.Time) *time.Time {
	coord := trip.LastLocation()
	if coord == nil || route == nil {
		return nil
	}

	destStop := route.FindStop(destStationID)
	if destStop == nil {
		return nil
	}

	remainingKm := destStop.DistanceFromStart
	if segment := m.NearestSegment(coord, route); segment != nil {
		if fromStop := route.FindStop(segment.FromStop.ID); fromStop != nil {
			remainingKm = destStop.DistanceFromStart - fromStop.DistanceFromStart
		}
	}
	if remainingKm < 0 {
		// Автобус уже проехал станцию назначения
		return nil
	}

	etaMinutes := remainingKm / averageBusSpeedKmh * 60
	eta := now.Add(time.Duration(etaMinutes * float64(time.Minute)))
	return &eta
}
