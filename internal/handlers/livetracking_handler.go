package handlers

import (
	"errors"
	"log"
	"net/http"

	"bus-backend/internal/models"
	"bus-backend/internal/services"
	"bus-backend/internal/stores"

	"github.com/gin-gonic/gin"
)

// GetBusesOnRoute находит автобусы, едущие сейчас между двумя станциями.
// Станции задаются поисковыми терминами from и to (название или код).
func GetBusesOnRoute(discovery *services.DiscoveryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		from := c.Query("from")
		to := c.Query("to")

		if from == "" || to == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Требуются параметры from и to"})
			return
		}

		buses, err := discovery.FindBuses(c.Request.Context(), from, to)
		if err != nil {
			if errors.Is(err, services.ErrStationNotFound) {
				// Не найденная станция — не то же самое, что "автобусов нет"
				c.JSON(http.StatusNotFound, gin.H{"error": "Одна или обе станции не найдены"})
				return
			}
			log.Printf("Ошибка поиска автобусов %s -> %s: %v", from, to, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"from":    from,
			"to":      to,
			"buses":   buses,
			"count":   len(buses),
		})
	}
}

// GetBusLiveTracking возвращает живое состояние одного рейса: текущий
// сегмент, ближайшие остановки, скорость, азимут и последние точки
func GetBusLiveTracking(trips *stores.TripStore, matcher *services.GeoMatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		tripRef := c.Param("tripId")

		trip, err := trips.GetByRef(c.Request.Context(), tripRef)
		if err != nil {
			if errors.Is(err, stores.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Рейс не найден"})
				return
			}
			log.Printf("Ошибка загрузки рейса %s: %v", tripRef, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
			return
		}

		if trip.Status != models.TripStatusOngoing {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Рейс сейчас не активен"})
			return
		}

		recentLocations, err := trips.RecentLocations(c.Request.Context(), trip.ID, 20)
		if err != nil {
			log.Printf("Ошибка загрузки истории рейса %s: %v", tripRef, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
			return
		}

		coord := trip.LastLocation()
		currentSegment := matcher.NearestSegment(coord, &trip.Route)
		nearbyStops := matcher.NearbyStops(coord, &trip.Route, services.DefaultNearbyRadiusMeters)
		speed, bearing := matcher.SpeedAndBearing(recentLocations)

		progress := 0.0
		if currentSegment != nil {
			progress = currentSegment.Progress
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"trip": gin.H{
				"id":         trip.ID,
				"code":       trip.Code,
				"status":     trip.Status,
				"started_at": trip.StartedAt,
			},
			"bus":    trip.Bus.ToResponse(),
			"driver": trip.Driver.ToDriverSummary(),
			"route":  trip.Route,
			"liveTracking": gin.H{
				"currentLocation": coord,
				"lastUpdated":     trip.UpdatedAt,
				"currentSegment":  currentSegment,
				"nearbyStops":     nearbyStops,
				"recentLocations": recentLocations,
				"speed":           speed,
				"bearing":         bearing,
				"progress":        progress,
			},
		})
	}
}
