// Package notify доставляет уведомления терминальных узлов.
//
// Доставка — fire-and-forget: ошибка уведомления логируется
// вызывающим и не влияет на исход run.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shaiso/Launchpad/internal/mq"
)

// Notification — уведомление терминального узла.
type Notification struct {
	RunID   string
	Subject string
	Body    any
}

// Notifier доставляет уведомления.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Log пишет уведомления в лог.
type Log struct {
	logger *slog.Logger
}

// NewLog создаёт Log. nil — slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Notify пишет уведомление.
func (l *Log) Notify(ctx context.Context, n Notification) error {
	l.logger.InfoContext(ctx, "notification",
		"run_id", n.RunID,
		"subject", n.Subject,
		"body", n.Body,
	)
	return nil
}

// NotificationPublisher публикует уведомления.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, payload mq.NotificationPayload) error
}

// Queue публикует уведомления в launchpad.notifications.
type Queue struct {
	publisher NotificationPublisher
}

// NewQueue создаёт Queue.
func NewQueue(publisher NotificationPublisher) *Queue {
	return &Queue{publisher: publisher}
}

// Notify публикует уведомление.
func (q *Queue) Notify(ctx context.Context, n Notification) error {
	return q.publisher.PublishNotification(ctx, mq.NotificationPayload{
		RunID:   n.RunID,
		Subject: n.Subject,
		Body:    n.Body,
	})
}

// Multi доставляет уведомление всем получателям и объединяет ошибки.
type Multi []Notifier

// Notify вызывает каждого получателя.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard отбрасывает уведомления.
type Discard struct{}

// Notify ничего не делает.
func (Discard) Notify(context.Context, Notification) error { return nil }
