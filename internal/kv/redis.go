// Package kv подключает Redis, используемый как внешнее хранилище
// таблицы ожидающих токенов и именованных параметров.
package kv

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Enabled сообщает, задан ли REDIS_URL.
func Enabled() bool {
	return os.Getenv("REDIS_URL") != ""
}

// NewClient создаёт клиент Redis по REDIS_URL и проверяет соединение.
func NewClient(ctx context.Context) (*redis.Client, error) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
