package models

import (
	"time"
)

// RouteStop представляет остановку маршрута со ссылкой на станцию
type RouteStop struct {
	ID                uint    `json:"id" gorm:"primaryKey"`
	RouteID           uint    `json:"route_id" gorm:"index;not null"`
	StationID         uint    `json:"station_id" gorm:"index;not null"`
	Sequence          int     `json:"sequence" gorm:"not null"` // Порядковый номер остановки на маршруте
	DistanceFromStart float64 `json:"distance_from_start"`      // Накопленное расстояние от начала маршрута, км
	Station           Station `json:"station" gorm:"foreignKey:StationID"`
}

// Route модель маршрута: упорядоченная последовательность остановок
type Route struct {
	ID                uint        `json:"id" gorm:"primaryKey"`
	Name              string      `json:"name" gorm:"not null;index;type:varchar(255)"`
	Code              string      `json:"code" gorm:"unique;not null;type:varchar(16)"`
	Description       string      `json:"description" gorm:"type:text"`
	TotalDistance     float64     `json:"total_distance"`     // Общая длина маршрута, км
	EstimatedDuration int         `json:"estimated_duration"` // Расчетная длительность, минуты
	IsActive          bool        `json:"is_active" gorm:"default:true;index"`
	Stops             []RouteStop `json:"stops" gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// RouteSummary краткое представление маршрута для вложенных ответов
type RouteSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

func (r *Route) ToSummary() RouteSummary {
	return RouteSummary{ID: r.ID, Name: r.Name, Code: r.Code}
}

// FindStop возвращает остановку маршрута для указанной станции или nil
func (r *Route) FindStop(stationID uint) *RouteStop {
	for i := range r.Stops {
		if r.Stops[i].StationID == stationID {
			return &r.Stops[i]
		}
	}
	return nil
}
