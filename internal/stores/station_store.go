package stores

import (
	"context"
	"errors"
	"sort"
	"strings"

	"bus-backend/internal/geo"
	"bus-backend/internal/models"

	"gorm.io/gorm"
)

// StationStore доступ к станциям
type StationStore struct {
	db *gorm.DB
}

func NewStationStore(db *gorm.DB) *StationStore {
	return &StationStore{db: db}
}

// Get возвращает станцию по ID
func (s *StationStore) Get(ctx context.Context, id uint) (*models.Station, error) {
	var station models.Station
	err := s.db.WithContext(ctx).First(&station, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &station, nil
}

// SearchByNameOrCode ищет активные станции по части названия (без учета
// регистра) или по точному коду. Возвращает не более limit результатов.
func (s *StationStore) SearchByNameOrCode(ctx context.Context, term string, limit int) ([]models.Station, error) {
	var stations []models.Station
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("LOWER(name) LIKE ? OR code = ?", "%"+strings.ToLower(term)+"%", strings.ToUpper(term)).
		Limit(limit).
		Find(&stations).Error
	if err != nil {
		return nil, err
	}
	return stations, nil
}

// FindNearby возвращает активные станции в радиусе radiusMeters от точки,
// отсортированные по расстоянию
func (s *StationStore) FindNearby(ctx context.Context, point geo.Point, radiusMeters float64) ([]models.Station, error) {
	var stations []models.Station
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&stations).Error
	if err != nil {
		return nil, err
	}

	type stationDistance struct {
		station  models.Station
		distance float64
	}

	var nearby []stationDistance
	for _, st := range stations {
		d := geo.Distance(point, st.Location())
		if d <= radiusMeters {
			nearby = append(nearby, stationDistance{station: st, distance: d})
		}
	}

	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].distance < nearby[j].distance
	})

	result := make([]models.Station, 0, len(nearby))
	for _, n := range nearby {
		result = append(result, n.station)
	}
	return result, nil
}
