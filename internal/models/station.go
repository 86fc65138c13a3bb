package models

import (
	"time"

	"bus-backend/internal/geo"
)

// Station модель автобусной станции
type Station struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;index;type:varchar(255)"`
	Code      string    `json:"code" gorm:"unique;not null;type:varchar(16)"`
	Latitude  float64   `json:"lat" gorm:"not null"`
	Longitude float64   `json:"lng" gorm:"not null"`
	Address   string    `json:"address" gorm:"type:text"`
	City      string    `json:"city" gorm:"type:varchar(100)"`
	IsActive  bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Location возвращает координаты станции
func (s *Station) Location() geo.Point {
	return geo.Point{Lat: s.Latitude, Lng: s.Longitude}
}

// StationResponse представление станции для API
type StationResponse struct {
	ID       uint      `json:"id"`
	Name     string    `json:"name"`
	Code     string    `json:"code"`
	Location geo.Point `json:"location"`
	Address  string    `json:"address,omitempty"`
	City     string    `json:"city,omitempty"`
}

func (s *Station) ToResponse() StationResponse {
	return StationResponse{
		ID:       s.ID,
		Name:     s.Name,
		Code:     s.Code,
		Location: s.Location(),
		Address:  s.Address,
		City:     s.City,
	}
}
