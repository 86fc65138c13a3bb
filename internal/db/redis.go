package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient создает Redis клиент и проверяет соединение
func NewRedisClient() (*redis.Client, error) {
	redisHost := os.Getenv("REDIS_HOST")
	redisPort := os.Getenv("REDIS_PORT")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	if redisHost == "" {
		redisHost = "localhost"
	}
	if redisPort == "" {
		redisPort = "6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password:     redisPassword,
		DB:           0,
		PoolSize:     50,              // Максимальное количество соединений в пуле
		MinIdleConns: 10,              // Минимальное количество простаивающих соединений
		MaxRetries:   3,               // Максимальное количество повторных попыток
		DialTimeout:  5 * time.Second, // Тайм-аут при установке соединения
		ReadTimeout:  3 * time.Second, // Тайм-аут при чтении
		WriteTimeout: 3 * time.Second, // Тайм-аут при записи
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	return client, nil
}
