package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"bus-backend/internal/stores"

	"github.com/gin-gonic/gin"
)

// GetStation возвращает станцию по ID
func GetStation(stations *stores.StationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID станции"})
			return
		}

		station, err := stations.Get(c.Request.Context(), uint(id))
		if err != nil {
			if errors.Is(err, stores.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Станция не найдена"})
				return
			}
			log.Printf("Ошибка загрузки станции %d: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
			return
		}

		c.JSON(http.StatusOK, station.ToResponse())
	}
}
