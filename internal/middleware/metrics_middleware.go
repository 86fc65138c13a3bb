package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal - общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration - длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Длительность HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RequestsInFlight - количество запросов в обработке
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Текущее количество запросов в обработке",
		},
	)

	// LocationUpdatesTotal - входящие точки местоположения по результату
	// обработки: saved, rate_limited, invalid, error
	LocationUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_updates_total",
			Help: "Общее количество входящих точек местоположения",
		},
		[]string{"result"},
	)

	// WebsocketConnections - текущее количество WebSocket подключений
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Текущее количество WebSocket подключений",
		},
	)

	// DriverSessionsActive - текущее количество активных сессий водителей
	DriverSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "driver_sessions_active",
			Help: "Текущее количество активных сессий водителей",
		},
	)

	// OSRMRequestsTotal - общее количество запросов к OSRM API
	OSRMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osrm_requests_total",
			Help: "Общее количество запросов к OSRM API",
		},
		[]string{"endpoint", "status", "cached"},
	)

	// OSRMRequestDuration - длительность запросов к OSRM API
	OSRMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osrm_request_duration_seconds",
			Help:    "Длительность запросов к OSRM API в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "cached"},
	)
)

// PrometheusMiddleware собирает метрики для HTTP запросов
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Увеличиваем счетчик запросов в обработке
		RequestsInFlight.Inc()
		defer RequestsInFlight.Dec()

		// Фиксируем время начала запроса
		start := time.Now()

		// Обрабатываем запрос
		c.Next()

		// Вычисляем длительность запроса
		duration := time.Since(start).Seconds()

		// Получаем статус код и эндпоинт
		status := strconv.Itoa(c.Writer.Status())
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}

		RequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// TrackOSRMRequest отслеживает запрос к OSRM API
func TrackOSRMRequest(endpoint string, status string, cached bool, duration time.Duration) {
	cachedStr := strconv.FormatBool(cached)
	OSRMRequestsTotal.WithLabelValues(endpoint, status, cachedStr).Inc()
	OSRMRequestDuration.WithLabelValues(endpoint, cachedStr).Observe(duration.Seconds())
}
