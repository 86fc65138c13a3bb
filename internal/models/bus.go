package models

import (
	"time"
)

// Bus модель автобуса
type Bus struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RegNo     string    `json:"reg_no" gorm:"unique;not null;type:varchar(20)"`
	Model     string    `json:"model" gorm:"type:varchar(100)"`
	Capacity  int       `json:"capacity" gorm:"default:30"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BusResponse краткое представление автобуса для вложенных ответов
type BusResponse struct {
	ID       uint   `json:"id"`
	RegNo    string `json:"reg_no"`
	Model    string `json:"model,omitempty"`
	Capacity int    `json:"capacity,omitempty"`
}

func (b *Bus) ToResponse() BusResponse {
	return BusResponse{ID: b.ID, RegNo: b.RegNo, Model: b.Model, Capacity: b.Capacity}
}
