package stores

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bus-backend/internal/models"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("запись не найдена")

// TripStore доступ к рейсам и их истории местоположений
type TripStore struct {
	db *gorm.DB
}

func NewTripStore(db *gorm.DB) *TripStore {
	return &TripStore{db: db}
}

// Get возвращает рейс по ID вместе с автобусом, маршрутом и водителем
func (s *TripStore) Get(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	err := s.db.WithContext(ctx).
		Preload("Bus").
		Preload("Driver").
		Preload("Route").
		Preload("Route.Stops", func(db *gorm.DB) *gorm.DB {
			return db.Order("route_stops.sequence ASC")
		}).
		Preload("Route.Stops.Station").
		First(&trip, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// GetByCode возвращает рейс по короткому коду
func (s *TripStore) GetByCode(ctx context.Context, code string) (*models.Trip, error) {
	var trip models.Trip
	err := s.db.WithContext(ctx).
		Preload("Bus").
		Preload("Driver").
		Preload("Route").
		Preload("Route.Stops", func(db *gorm.DB) *gorm.DB {
			return db.Order("route_stops.sequence ASC")
		}).
		Preload("Route.Stops.Station").
		Where("code = ?", code).
		First(&trip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// GetByRef ищет рейс по числовому ID или по коду — клиенты могут
// передавать любой из вариантов
func (s *TripStore) GetByRef(ctx context.Context, ref string) (*models.Trip, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return s.Get(ctx, uint(id))
	}
	return s.GetByCode(ctx, ref)
}

// Create создает новый рейс
func (s *TripStore) Create(ctx context.Context, trip *models.Trip) error {
	return s.db.WithContext(ctx).Create(trip).Error
}

// AppendLocation атомарно добавляет принятую точку в историю рейса и
// обновляет последнее местоположение. Частичная запись невозможна:
// обе операции выполняются в одной транзакции.
func (s *TripStore) AppendLocation(ctx context.Context, tripID uint, loc *models.TripLocation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loc.TripID = tripID
		if err := tx.Create(loc).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Trip{}).
			Where("id = ?", tripID).
			Updates(map[string]interface{}{
				"last_lat":   loc.Latitude,
				"last_lng":   loc.Longitude,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetStatus обновляет статус рейса. Для завершенного рейса передается
// время окончания.
func (s *TripStore) SetStatus(ctx context.Context, id uint, status models.TripStatus, endedAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if endedAt != nil {
		updates["ended_at"] = *endedAt
	}

	result := s.db.WithContext(ctx).Model(&models.Trip{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindActive возвращает активные рейсы маршрута с известным местоположением
func (s *TripStore) FindActive(ctx context.Context, routeID uint) ([]models.Trip, error) {
	var trips []models.Trip
	err := s.db.WithContext(ctx).
		Preload("Bus").
		Preload("Driver").
		Where("route_id = ? AND status = ? AND last_lat IS NOT NULL", routeID, models.TripStatusOngoing).
		Find(&trips).Error
	if err != nil {
		return nil, err
	}
	return trips, nil
}

// RecentLocations возвращает последние limit принятых точек рейса
// в хронологическом порядке
func (s *TripStore) RecentLocations(ctx context.Context, tripID uint, limit int) ([]models.TripLocation, error) {
	var locations []models.TripLocation
	err := s.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&locations).Error
	if err != nil {
		return nil, err
	}

	// Разворачиваем в хронологический порядок
	for i, j := 0, len(locations)-1; i < j; i, j = i+1, j-1 {
		locations[i], locations[j] = locations[j], locations[i]
	}
	return locations, nil
}
