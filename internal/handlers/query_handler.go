package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"bus-backend/internal/geo"
	"bus-backend/internal/services/osrm"
	"bus-backend/internal/stores"

	"github.com/gin-gonic/gin"
)

// GetNearbyStations возвращает активные станции в радиусе от точки
func GetNearbyStations(stations *stores.StationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		lngStr := c.Query("lng")
		latStr := c.Query("lat")

		if lngStr == "" || latStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Требуются параметры lng и lat"})
			return
		}

		lng, errLng := strconv.ParseFloat(lngStr, 64)
		lat, errLat := strconv.ParseFloat(latStr, 64)
		if errLng != nil || errLat != nil || !geo.ValidCoordinates(lat, lng) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные координаты"})
			return
		}

		radius := 1000.0
		if val, err := strconv.ParseFloat(c.DefaultQuery("radius", "1000"), 64); err == nil && val > 0 {
			radius = val
		}

		found, err := stations.FindNearby(c.Request.Context(), geo.Point{Lat: lat, Lng: lng}, radius)
		if err != nil {
			log.Printf("Ошибка поиска станций рядом с (%f, %f): %v", lat, lng, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"count": len(found), "stations": found})
	}
}

// GetTripsByRoute возвращает активные рейсы маршрута
func GetTripsByRoute(trips *stores.TripStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		routeID, err := strconv.ParseUint(c.Param("routeId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID маршрута"})
			return
		}

		found, err := trips.FindActive(c.Request.Context(), uint(routeID))
		if err != nil {
			log.Printf("Ошибка поиска рейсов маршрута %d: %v", routeID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"trips": found})
	}
}

// GetDirections строит маршрут от пользователя до станции через OSRM
func GetDirections(stations *stores.StationStore, client *osrm.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		stationID, err := strconv.ParseUint(c.Param("stationId"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID станции"})
			return
		}

		lngStr := c.Query("lng")
		latStr := c.Query("lat")
		if lngStr == "" || latStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Требуются координаты пользователя lng и lat"})
			return
		}

		lng, errLng := strconv.ParseFloat(lngStr, 64)
		lat, errLat := strconv.ParseFloat(latStr, 64)
		if errLng != nil || errLat != nil || !geo.ValidCoordinates(lat, lng) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные координаты"})
			return
		}

		mode := c.DefaultQuery("mode", "driving")

		station, err := stations.Get(c.Request.Context(), uint(stationID))
		if err != nil {
			if errors.Is(err, stores.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Станция не найдена"})
				return
			}
			log.Printf("Ошибка загрузки станции %d: %v", stationID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
			return
		}

		route, err := client.GetDirections(c.Request.Context(), mode, geo.Point{Lat: lat, Lng: lng}, station.Location())
		if err != nil {
			log.Printf("Ошибка построения маршрута к станции %d: %v", stationID, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Не удалось построить маршрут"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"station": station.ToResponse(),
			"route": gin.H{
				"geometry": route.Geometry,
				"distance": gin.H{
					"text":  formatDistance(route.Distance),
					"value": route.Distance,
				},
				"duration": gin.H{
					"text":  formatDuration(route.Duration),
					"value": route.Duration,
				},
				"steps": routeSteps(route),
			},
		})
	}
}

func formatDistance(meters float64) string {
	return strconv.FormatFloat(meters/1000, 'f', 2, 64) + " км"
}

func formatDuration(seconds float64) string {
	return strconv.Itoa(int(seconds/60+0.5)) + " мин"
}

func routeSteps(route *osrm.Route) []osrm.RouteStep {
	if len(route.Legs) == 0 {
		return nil
	}
	return route.Legs[0].Steps
}
