package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownToken — токен не найден или уже использован.
	ErrUnknownToken = errors.New("unknown token")

	// ErrTokenExists — токен уже зарегистрирован.
	ErrTokenExists = errors.New("token already registered")
)

// Entry — запись ожидающего токена.
type Entry struct {
	RunID     string    `json:"run_id"`
	NodeID    string    `json:"node_id"`
	Resource  string    `json:"resource,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Table — таблица ожидающих токенов. Безопасна для конкурентного использования.
type Table interface {
	// Put регистрирует токен. Повторная регистрация — ErrTokenExists.
	Put(ctx context.Context, token string, entry Entry) error

	// Take атомарно забирает токен. Отсутствующий — ErrUnknownToken.
	Take(ctx context.Context, token string) (Entry, error)

	// Len возвращает количество ожидающих токенов.
	Len(ctx context.Context) (int, error)
}

// Memory — таблица токенов в памяти.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemory создаёт пустую таблицу.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// Put регистрирует токен.
func (m *Memory) Put(_ context.Context, token string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[token]; exists {
		return fmt.Errorf("%w: %s", ErrTokenExists, token)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.entries[token] = entry
	return nil
}

// Take забирает токен.
func (m *Memory) Take(_ context.Context, token string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[token]
	if !exists {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	delete(m.entries, token)
	return entry, nil
}

// Len возвращает количество токенов.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}
