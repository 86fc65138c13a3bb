package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bus-backend/internal/models"
	"bus-backend/internal/stores"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type StartTripRequest struct {
	BusID   uint `json:"bus_id" binding:"required"`
	RouteID uint `json:"route_id" binding:"required"`
}

// TripStart создает новый рейс для текущего водителя
func TripStart(trips *stores.TripStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		driverID, ok := userID.(uint)
		if !ok || driverID == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Требуется авторизация водителя"})
			return
		}

		var req StartTripRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Требуются bus_id и route_id"})
			return
		}

		trip := models.Trip{
			Code:      "TRIP-" + strings.ToUpper(uuid.New().String()[:8]),
			BusID:     req.BusID,
			RouteID:   req.RouteID,
			DriverID:  driverID,
			Status:    models.TripStatusOngoing,
			StartedAt: time.Now(),
		}

		if err := trips.Create(c.Request.Context(), &trip); err != nil {
			log.Printf("Ошибка создания рейса: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при создании рейса"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"trip":    trip.ToSummary(),
		})
	}
}

// TripFinish завершает рейс. Завершить рейс может только его водитель.
func TripFinish(trips *stores.TripStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		role, _ := c.Get("role")

		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID рейса"})
			return
		}

		trip, err := trips.Get(c.Request.Context(), uint(id))
		if err != nil {
			if errors.Is(err, stores.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Рейс не найден"})
				return
			}
			log.Printf("Ошибка загрузки рейса %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
			return
		}

		if driverID, ok := userID.(uint); (!ok || trip.DriverID != driverID) && role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Рейс может завершить только его водитель"})
			return
		}

		if trip.Status != models.TripStatusOngoing {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Рейс уже завершен"})
			return
		}

		now := time.Now()
		if err := trips.SetStatus(c.Request.Context(), trip.ID, models.TripStatusFinished, &now); err != nil {
			log.Printf("Ошибка завершения рейса %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при завершении рейса"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"trip_id":  trip.ID,
			"ended_at": now,
		})
	}
}
