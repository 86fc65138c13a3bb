package services

import (
	"os"
	"strconv"
	"sync"
	"time"

	"bus-backend/internal/geo"
)

// Пороги сохранения по умолчанию
const (
	DefaultMinIntervalSeconds    = 5
	DefaultMinDisplacementMeters = 30
)

type rateLimiterEntry struct {
	ts    time.Time
	coord geo.Point
}

// RateLimiter решает, достаточно ли значима входящая точка, чтобы ее
// сохранять. Точка принимается, если с момента последней принятой прошло
// не меньше minInterval ИЛИ автобус сместился не меньше чем на minMeters.
// Это ИЛИ, а не И: стоящий автобус все равно получает периодическую
// принятую точку, а быстро движущийся — принятые точки внутри временного окна.
//
// Состояние хранится в памяти процесса и не разделяется между инстансами.
type RateLimiter struct {
	mu          sync.Mutex
	entries     map[string]*rateLimiterEntry
	minInterval time.Duration
	minMeters   float64
}

// NewRateLimiter создает ограничитель с указанными порогами
func NewRateLimiter(minIntervalSeconds int, minMeters float64) *RateLimiter {
	return &RateLimiter{
		entries:     make(map[string]*rateLimiterEntry),
		minInterval: time.Duration(minIntervalSeconds) * time.Second,
		minMeters:   minMeters,
	}
}

// NewRateLimiterFromEnv создает ограничитель с порогами из переменных
// окружения SAVE_LOCATION_MIN_SECONDS и SAVE_LOCATION_MIN_METERS
func NewRateLimiterFromEnv() *RateLimiter {
	minSeconds := DefaultMinIntervalSeconds
	if val, err := strconv.Atoi(os.Getenv("SAVE_LOCATION_MIN_SECONDS")); err == nil && val > 0 {
		minSeconds = val
	}

	minMeters := float64(DefaultMinDisplacementMeters)
	if val, err := strconv.ParseFloat(os.Getenv("SAVE_LOCATION_MIN_METERS"), 64); err == nil && val > 0 {
		minMeters = val
	}

	return NewRateLimiter(minSeconds, minMeters)
}

// Accept решает, сохранять ли точку рейса. Первая точка рейса принимается
// всегда. Принятие обновляет запись рейса, отклонение состояние не меняет.
// Доступ к записи рейса сериализован: две конкурентные точки одного рейса
// не могут обе пройти по устаревшему состоянию.
func (rl *RateLimiter) Accept(tripRef string, now time.Time, coord geo.Point) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.entries[tripRef]
	if !ok {
		rl.entries[tripRef] = &rateLimiterEntry{ts: now, coord: coord}
		return true
	}

	elapsed := now.Sub(entry.ts)
	moved := geo.Distance(entry.coord, coord)

	if elapsed >= rl.minInterval || moved >= rl.minMeters {
		entry.ts = now
		entry.coord = coord
		return true
	}

	return false
}

// Forget удаляет запись рейса. Вызывается при завершении рейса, чтобы
// карта не росла бесконечно.
func (rl *RateLimiter) Forget(tripRef string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, tripRef)
}

// Size возвращает текущее количество отслеживаемых рейсов
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}
