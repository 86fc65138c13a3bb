package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"bus-backend/internal/geo"
	"bus-backend/internal/models"
)

// Количество станций-кандидатов на каждую сторону поиска
const stationCandidateLimit = 3

// ErrStationNotFound одна или обе станции поиска не найдены.
// Отличается от пустого успешного результата "автобусов сейчас нет".
var ErrStationNotFound = errors.New("станция не найдена")

// StationSearcher поиск станций-кандидатов
type StationSearcher interface {
	SearchByNameOrCode(ctx context.Context, term string, limit int) ([]models.Station, error)
}

// ConnectingRouteFinder поиск маршрутов, соединяющих две станции
type ConnectingRouteFinder interface {
	FindConnecting(ctx context.Context, stationA, stationB uint) ([]models.Route, error)
}

// ActiveTripFinder поиск активных рейсов маршрута
type ActiveTripFinder interface {
	FindActive(ctx context.Context, routeID uint) ([]models.Trip, error)
}

// BusOnRoute найденный автобус между двумя станциями
type BusOnRoute struct {
	TripID           uint                 `json:"tripId"`
	Code             string               `json:"code"`
	Bus              models.BusResponse   `json:"bus"`
	Driver           models.DriverSummary `json:"driver"`
	Route            models.RouteSummary  `json:"route"`
	CurrentLocation  *geo.Point           `json:"currentLocation"`
	CurrentSegment   *CurrentSegment      `json:"currentSegment"`
	StartedAt        time.Time            `json:"startedAt"`
	EstimatedArrival *time.Time           `json:"estimatedArrival"`
}

// DiscoveryService отвечает на вопрос "что сейчас едет между A и B"
type DiscoveryService struct {
	stations StationSearcher
	routes   ConnectingRouteFinder
	trips    ActiveTripFinder
	matcher  *GeoMatcher
}

func NewDiscoveryService(stations StationSearcher, routes ConnectingRouteFinder, trips ActiveTripFinder, matcher *GeoMatcher) *DiscoveryService {
	return &DiscoveryService{
		stations: stations,
		routes:   routes,
		trips:    trips,
		matcher:  matcher,
	}
}

// FindBuses находит активные рейсы на маршрутах, соединяющих станции from и to.
// Каждый поисковый термин разрешается максимум в три станции-кандидата;
// результаты дедуплицируются по рейсу и сортируются по времени прибытия.
func (s *DiscoveryService) FindBuses(ctx context.Context, from, to string) ([]BusOnRoute, error) {
	fromStations, err := s.stations.SearchByNameOrCode(ctx, from, stationCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("поиск станции отправления: %w", err)
	}
	toStations, err := s.stations.SearchByNameOrCode(ctx, to, stationCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("поиск станции назначения: %w", err)
	}

	if len(fromStations) == 0 || len(toStations) == 0 {
		return nil, ErrStationNotFound
	}

	var buses []BusOnRoute
	seen := make(map[uint]bool)

	for _, fromStation := range fromStations {
		for _, toStation := range toStations {
			routes, err := s.routes.FindConnecting(ctx, fromStation.ID, toStation.ID)
			if err != nil {
				return nil, fmt.Errorf("поиск маршрутов: %w", err)
			}

			for i := range routes {
				route := &routes[i]
				trips, err := s.trips.FindActive(ctx, route.ID)
				if err != nil {
					return nil, fmt.Errorf("поиск активных рейсов: %w", err)
				}

				for j := range trips {
					trip := &trips[j]
					if seen[trip.ID] {
						continue
					}
					seen[trip.ID] = true

					buses = append(buses, BusOnRoute{
						TripID:           trip.ID,
						Code:             trip.Code,
						Bus:              trip.Bus.ToResponse(),
						Driver:           trip.Driver.ToDriverSummary(),
						Route:            route.ToSummary(),
						CurrentLocation:  trip.LastLocation(),
						CurrentSegment:   s.matcher.NearestSegment(trip.LastLocation(), route),
						StartedAt:        trip.StartedAt,
						EstimatedArrival: s.matcher.EstimateArrival(trip, route, toStation.ID, time.Now()),
					})
				}
			}
		}
	}

	// Стабильная сортировка по ETA; рейсы без ETA сохраняют порядок обнаружения
	sort.SliceStable(buses, func(i, j int) bool {
		if buses[i].EstimatedArrival == nil || buses[j].EstimatedArrival == nil {
			return false
		}
		return buses[i].EstimatedArrival.Before(*buses[j].EstimatedArrival)
	})

	return buses, nil
}
