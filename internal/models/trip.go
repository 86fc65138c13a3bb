package models

import (
	"time"

	"bus-backend/internal/geo"
)

type TripStatus string

const (
	TripStatusOngoing  TripStatus = "ongoing"  // Активный рейс
	TripStatusFinished TripStatus = "finished" // Завершенный рейс
)

// TripLocation принятая точка местоположения рейса
type TripLocation struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	TripID    uint      `json:"-" gorm:"index;not null"`
	Latitude  float64   `json:"lat" gorm:"not null"`
	Longitude float64   `json:"lng" gorm:"not null"`
	Timestamp time.Time `json:"ts" gorm:"not null;index"`
	Speed     *float64  `json:"speed"`   // км/ч, по данным клиента
	Bearing   *float64  `json:"bearing"` // градусы, по данным клиента
	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
}

// Coordinates возвращает координаты точки
func (l *TripLocation) Coordinates() geo.Point {
	return geo.Point{Lat: l.Latitude, Lng: l.Longitude}
}

// Trip модель рейса: автобус, маршрут, водитель
type Trip struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Code      string     `json:"code" gorm:"unique;not null;type:varchar(16)"`
	BusID     uint       `json:"bus_id" gorm:"index;not null"`
	RouteID   uint       `json:"route_id" gorm:"index;not null"`
	DriverID  uint       `json:"driver_id" gorm:"index"`
	Status    TripStatus `json:"status" gorm:"type:varchar(20);default:'ongoing';index"`
	StartedAt time.Time  `json:"started_at" gorm:"autoCreateTime"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Последняя принятая точка. Остается NULL, пока не принята первая точка.
	LastLat *float64 `json:"-"`
	LastLng *float64 `json:"-"`

	Locations []TripLocation `json:"-" gorm:"foreignKey:TripID;constraint:OnDelete:CASCADE"`

	Bus    Bus   `json:"-" gorm:"foreignKey:BusID"`
	Route  Route `json:"-" gorm:"foreignKey:RouteID"`
	Driver User  `json:"-" gorm:"foreignKey:DriverID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastLocation возвращает координаты последней принятой точки или nil,
// если ни одна точка еще не принята
func (t *Trip) LastLocation() *geo.Point {
	if t.LastLat == nil || t.LastLng == nil {
		return nil
	}
	return &geo.Point{Lat: *t.LastLat, Lng: *t.LastLng}
}

// TripSummary краткое представление рейса для снапшотов
type TripSummary struct {
	ID        uint         `json:"id"`
	Code      string       `json:"code"`
	Status    TripStatus   `json:"status"`
	StartedAt time.Time    `json:"started_at"`
	Bus       BusResponse  `json:"bus"`
	Route     RouteSummary `json:"route"`
}

func (t *Trip) ToSummary() TripSummary {
	return TripSummary{
		ID:        t.ID,
		Code:      t.Code,
		Status:    t.Status,
		StartedAt: t.StartedAt,
		Bus:       t.Bus.ToResponse(),
		Route:     t.Route.ToSummary(),
	}
}
