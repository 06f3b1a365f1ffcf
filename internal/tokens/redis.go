package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix — префикс ключей токенов.
const DefaultRedisPrefix = "launchpad:tokens:"

// Redis — таблица токенов в Redis.
//
// Запись — строковый ключ prefix+token с JSON Entry. Индекс ожидающих
// токенов — множество prefix+"index".
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig — конфигурация Redis-таблицы.
type RedisConfig struct {
	Prefix string        // по умолчанию DefaultRedisPrefix
	TTL    time.Duration // 0 — без истечения
}

// NewRedis создаёт Redis-таблицу.
func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (r *Redis) key(token string) string {
	return r.prefix + token
}

func (r *Redis) indexKey() string {
	return r.prefix + "index"
}

// Put регистрирует токен (SET NX).
func (r *Redis) Put(ctx context.Context, token string, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal token entry: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(token), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("setnx token %s: %w", token, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, token)
	}
	if err := r.client.SAdd(ctx, r.indexKey(), token).Err(); err != nil {
		return fmt.Errorf("index token %s: %w", token, err)
	}
	return nil
}

// Take забирает токен (GETDEL).
func (r *Redis) Take(ctx context.Context, token string) (Entry, error) {
	data, err := r.client.GetDel(ctx, r.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("getdel token %s: %w", token, err)
	}
	if err := r.client.SRem(ctx, r.indexKey(), token).Err(); err != nil {
		return Entry{}, fmt.Errorf("unindex token %s: %w", token, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("unmarshal token entry: %w", err)
	}
	return entry, nil
}

// Len возвращает размер индекса ожидающих токенов.
func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("scard tokens: %w", err)
	}
	return int(n), nil
}
