package handlers

import (
	"log"
	"net/http"

	"bus-backend/internal/models"
	"bus-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Стоимость хэширования пароля
const bcryptCost = 14

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

type AuthResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Token   string              `json:"token,omitempty"`
	User    models.UserResponse `json:"user,omitempty"`
}

// AuthRegister регистрирует нового пользователя по телефону и паролю
func AuthRegister(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, AuthResponse{
				Success: false,
				Message: "Требуются имя, телефон и пароль не короче 8 символов",
			})
			return
		}

		// Проверяем, существует ли пользователь с таким телефоном
		var existingUser models.User
		if result := db.Where("phone = ?", req.Phone).First(&existingUser); result.Error == nil {
			c.JSON(http.StatusBadRequest, AuthResponse{
				Success: false,
				Message: "Пользователь с таким номером телефона уже существует",
			})
			return
		}

		passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, AuthResponse{
				Success: false,
				Message: "Ошибка при обработке пароля",
			})
			return
		}

		user := models.User{
			Name:         req.Name,
			Phone:        req.Phone,
			PasswordHash: string(passwordHash),
			Role:         "user",
		}

		if result := db.Create(&user); result.Error != nil {
			log.Printf("Ошибка создания пользователя: %v", result.Error)
			c.JSON(http.StatusInternalServerError, AuthResponse{
				Success: false,
				Message: "Ошибка при создании пользователя",
			})
			return
		}

		token, err := utils.GenerateJWT(user.ID, user.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, AuthResponse{
				Success: false,
				Message: "Ошибка при создании токена",
			})
			return
		}

		c.JSON(http.StatusOK, AuthResponse{
			Success: true,
			Token:   token,
			User:    user.ToResponse(),
		})
	}
}

// AuthLogin проверяет телефон и пароль и выдает токен
func AuthLogin(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, AuthResponse{
				Success: false,
				Message: "Требуются телефон и пароль",
			})
			return
		}

		var user models.User
		if result := db.Where("phone = ?", req.Phone).First(&user); result.Error != nil {
			c.JSON(http.StatusUnauthorized, AuthResponse{
				Success: false,
				Message: "Неверный телефон или пароль",
			})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, AuthResponse{
				Success: false,
				Message: "Неверный телефон или пароль",
			})
			return
		}

		token, err := utils.GenerateJWT(user.ID, user.Role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, AuthResponse{
				Success: false,
				Message: "Ошибка при создании токена",
			})
			return
		}

		c.JSON(http.StatusOK, AuthResponse{
			Success: true,
			Token:   token,
			User:    user.ToResponse(),
		})
	}
}

// GetCurrentUser возвращает профиль текущего пользователя
func GetCurrentUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := c.Get("user_id")

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь не найден"})
			return
		}

		c.JSON(http.StatusOK, user.ToResponse())
	}
}

// ChangePassword меняет пароль текущего пользователя
func ChangePassword(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := c.Get("user_id")

		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Требуются текущий и новый пароль не короче 8 символов"})
			return
		}

		var user models.User
		if err := db.First(&user, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Пользователь не найден"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Текущий пароль указан неверно"})
			return
		}

		newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при обработке пароля"})
			return
		}

		if err := db.Model(&user).Update("password_hash", string(newHash)).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при обновлении пароля"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
