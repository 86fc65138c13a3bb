package routes

import (
	"bus-backend/internal/handlers"
	"bus-backend/internal/middleware"
	"bus-backend/internal/services"
	"bus-backend/internal/services/osrm"
	"bus-backend/internal/stores"
	"bus-backend/internal/websocket"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps зависимости HTTP-слоя
type Deps struct {
	DB        *gorm.DB
	Trips     *stores.TripStore
	Stations  *stores.StationStore
	Discovery *services.DiscoveryService
	Matcher   *services.GeoMatcher
	OSRM      *osrm.Client
	Tracker   *websocket.Tracker
}

func SetupRoutes(api *gin.RouterGroup, deps Deps) {
	// Публичные маршруты для аутентификации
	auth := api.Group("/auth")
	{
		auth.POST("/register", handlers.AuthRegister(deps.DB))
		auth.POST("/login", handlers.AuthLogin(deps.DB))
	}

	// Защищенные маршруты (требуют аутентификации)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth())
	{
		// Получение информации о текущем пользователе
		protected.GET("/auth/me", handlers.GetCurrentUser(deps.DB))
		protected.PUT("/auth/change-password", handlers.ChangePassword(deps.DB))

		// Роуты для станций
		protected.GET("/stations/:id", handlers.GetStation(deps.Stations))

		// Роуты для поиска
		protected.GET("/query/nearby", handlers.GetNearbyStations(deps.Stations))
		protected.GET("/query/route/:routeId", handlers.GetTripsByRoute(deps.Trips))
		protected.GET("/query/directions/:stationId", handlers.GetDirections(deps.Stations, deps.OSRM))

		// Роуты для живого отслеживания
		protected.GET("/live-tracking/buses", handlers.GetBusesOnRoute(deps.Discovery))
		protected.GET("/live-tracking/bus/:tripId", handlers.GetBusLiveTracking(deps.Trips, deps.Matcher))

		// Роуты для рейсов
		protected.POST("/trips", handlers.TripStart(deps.Trips))
		protected.PUT("/trips/:id/finish", handlers.TripFinish(deps.Trips))

		// WebSocket подключение для получения обновлений в реальном времени
		protected.GET("/ws", deps.Tracker.Handler())
	}
}
