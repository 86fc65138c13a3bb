package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"bus-backend/internal/geo"
	"bus-backend/internal/middleware"

	"github.com/go-redis/redis/v8"
)

const defaultBaseURL = "http://router.project-osrm.org/route/v1"

// Client клиент публичного OSRM API для построения маршрутов к станциям
type Client struct {
	baseURL      string
	httpClient   *http.Client
	cacheService *CacheService
}

// RouteStep шаг маршрута
type RouteStep struct {
	Distance float64         `json:"distance"`
	Duration float64         `json:"duration"`
	Name     string          `json:"name"`
	Mode     string          `json:"mode"`
	Maneuver json.RawMessage `json:"maneuver"`
	Geometry json.RawMessage `json:"geometry"`
}

// RouteLeg участок маршрута между точками
type RouteLeg struct {
	Distance float64     `json:"distance"`
	Duration float64     `json:"duration"`
	Steps    []RouteStep `json:"steps"`
}

// Route построенный маршрут
type Route struct {
	Distance float64         `json:"distance"` // метры
	Duration float64         `json:"duration"` // секунды
	Geometry json.RawMessage `json:"geometry"` // GeoJSON
	Legs     []RouteLeg      `json:"legs"`
}

// DirectionsResponse ответ OSRM route API
type DirectionsResponse struct {
	Code   string  `json:"code"`
	Routes []Route `json:"routes"`
}

// NewClient создает клиент OSRM с кэшированием ответов в Redis
func NewClient(redisClient *redis.Client) *Client {
	baseURL := os.Getenv("OSRM_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheService: NewCacheService(redisClient),
	}
}

// GetDirections строит маршрут от origin до destination в указанном режиме
// (driving, walking). Ответы кэшируются в Redis.
func (c *Client) GetDirections(ctx context.Context, mode string, origin, destination geo.Point) (*Route, error) {
	cacheKey := fmt.Sprintf("osrm:%s:%.6f,%.6f:%.6f,%.6f", mode, origin.Lng, origin.Lat, destination.Lng, destination.Lat)

	// Сначала проверяем кэш
	var cached Route
	start := time.Now()
	found, err := c.cacheService.Get(ctx, cacheKey, &cached)
	if err != nil {
		log.Printf("OSRM: ошибка чтения кэша: %v", err)
	}
	if found {
		middleware.TrackOSRMRequest("route", "200", true, time.Since(start))
		return &cached, nil
	}

	// OSRM принимает координаты в порядке lng,lat
	requestURL := fmt.Sprintf("%s/%s/%f,%f;%f,%f",
		c.baseURL, mode, origin.Lng, origin.Lat, destination.Lng, destination.Lat)

	params := url.Values{}
	params.Set("overview", "full")
	params.Set("geometries", "geojson")
	params.Set("steps", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса к OSRM: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		middleware.TrackOSRMRequest("route", "error", false, time.Since(start))
		return nil, fmt.Errorf("ошибка запроса к OSRM: %w", err)
	}
	defer resp.Body.Close()

	middleware.TrackOSRMRequest("route", fmt.Sprint(resp.StatusCode), false, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("OSRM вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var directions DirectionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&directions); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа OSRM: %w", err)
	}

	if directions.Code != "Ok" || len(directions.Routes) == 0 {
		return nil, fmt.Errorf("OSRM не смог построить маршрут: %s", directions.Code)
	}

	route := directions.Routes[0]

	// Сохраняем в кэш, ошибки кэширования не критичны
	if err := c.cacheService.Set(ctx, cacheKey, route); err != nil {
		log.Printf("OSRM: ошибка записи в кэш: %v", err)
	}

	return &route, nil
}
