package stores

import (
	"context"
	"errors"

	"bus-backend/internal/models"

	"gorm.io/gorm"
)

// RouteStore доступ к маршрутам
type RouteStore struct {
	db *gorm.DB
}

func NewRouteStore(db *gorm.DB) *RouteStore {
	return &RouteStore{db: db}
}

// Get возвращает маршрут с остановками, упорядоченными по sequence,
// и загруженными станциями
func (s *RouteStore) Get(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	err := s.db.WithContext(ctx).
		Preload("Stops", func(db *gorm.DB) *gorm.DB {
			return db.Order("route_stops.sequence ASC")
		}).
		Preload("Stops.Station").
		First(&route, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &route, nil
}

// FindConnecting возвращает активные маршруты, содержащие обе станции
func (s *RouteStore) FindConnecting(ctx context.Context, stationA, stationB uint) ([]models.Route, error) {
	var routes []models.Route
	err := s.db.WithContext(ctx).
		Joins("JOIN route_stops AS sa ON sa.route_id = routes.id AND sa.station_id = ?", stationA).
		Joins("JOIN route_stops AS sb ON sb.route_id = routes.id AND sb.station_id = ?", stationB).
		Where("routes.is_active = ?", true).
		Preload("Stops", func(db *gorm.DB) *gorm.DB {
			return db.Order("route_stops.sequence ASC")
		}).
		Preload("Stops.Station").
		Find(&routes).Error
	if err != nil {
		return nil, err
	}
	return routes, nil
}
