package models

import (
	"time"
)

// User модель пользователя (пассажир, водитель или администратор)
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name" gorm:"not null;type:varchar(255)"`
	Phone        string    `json:"phone" gorm:"unique;not null;type:varchar(20)"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null;type:text"`
	Role         string    `json:"role" gorm:"default:'user';type:varchar(20)"` // user, driver, admin
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// UserResponse представление пользователя без чувствительных полей
type UserResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// DriverSummary краткое представление водителя для вложенных ответов
type DriverSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

func (u *User) ToDriverSummary() DriverSummary {
	return DriverSummary{ID: u.ID, Name: u.Name, Phone: u.Phone}
}
