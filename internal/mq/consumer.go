package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Launchpad/internal/telemetry"
)

// Handler — функция обработки сообщения.
//
// Ошибка возвращает сообщение в очередь один раз; повторная ошибка
// после redelivery или ошибка Permanent отклоняет сообщение без возврата.
type Handler func(ctx context.Context, msg *Delivery) error

// permanentError — ошибка, которую бессмысленно повторять.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку обработчика как неповторяемую.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, помечена ли ошибка как неповторяемая.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Delivery — доставленное сообщение.
type Delivery struct {
	Message     Message
	Redelivered bool
}

// Исходы обработки сообщения.
type outcome string

const (
	outcomeAck     outcome = "ack"
	outcomeRequeue outcome = "requeue"
	outcomeDead    outcome = "dead"
)

// decide выбирает исход по ошибке обработчика.
func decide(err error, redelivered bool) outcome {
	switch {
	case err == nil:
		return outcomeAck
	case redelivered || IsPermanent(err):
		return outcomeDead
	default:
		return outcomeRequeue
	}
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   Queue
	Handler Handler

	// Prefetch — сообщений без подтверждения на канал. По умолчанию: 1.
	Prefetch int

	// Concurrency — сообщений в обработке одновременно, не больше Prefetch.
	// По умолчанию: 1.
	Concurrency int

	// RetryInterval — пауза перед повторной подпиской, если
	// уведомление о переподключении не пришло. По умолчанию: 5s.
	RetryInterval time.Duration
}

// Consumer потребляет одну очередь на собственном канале.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	queue  string
	cfg    ConsumerConfig

	cancelFunc context.CancelFunc
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	cfg.Concurrency = min(cfg.Concurrency, cfg.Prefetch)
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}

	return &Consumer{
		conn:   conn,
		logger: logger.With("queue", string(cfg.Queue)),
		queue:  string(cfg.Queue),
		cfg:    cfg,
	}
}

// Start потребляет сообщения до отмены ctx или Stop.
// Разрывы соединения переживаются: consumer переподписывается сам.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		// Подписываемся на уведомление до попытки, чтобы не пропустить
		// переподключение, случившееся во время подписки.
		reconnected := c.conn.Reconnected()

		err := c.run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consumer interrupted", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconnected:
			c.logger.Info("reconnected, restarting consumer")
		case <-time.After(c.cfg.RetryInterval):
		}
	}
}

// run открывает канал и обрабатывает доставки, пока канал жив.
func (c *Consumer) run(ctx context.Context) error {
	ch, err := c.conn.OpenChannel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag (auto-generated)
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	c.logger.Info("consumer started", "prefetch", c.cfg.Prefetch, "concurrency", c.cfg.Concurrency)

	// Выход из run дожидается обработчиков до закрытия канала:
	// ack на закрытом канале теряется.
	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			g.Go(func() error {
				c.handle(ctx, raw)
				return nil
			})
		}
	}
}

// handle обрабатывает одно сообщение и подтверждает его.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(raw.Body))
		c.settle(raw, outcomeDead)
		return
	}

	log := c.logger.With("message_id", msg.ID, "type", msg.Type)
	log.Debug("received message")

	err := c.cfg.Handler(telemetry.WithLogger(ctx, log), &Delivery{Message: msg, Redelivered: raw.Redelivered})
	result := decide(err, raw.Redelivered)
	if err != nil {
		log.Error("handler failed", "result", result, "error", err)
	}
	c.settle(raw, result)
}

// settle подтверждает или отклоняет сообщение.
func (c *Consumer) settle(raw amqp.Delivery, result outcome) {
	var err error
	switch result {
	case outcomeAck:
		err = raw.Ack(false)
	case outcomeRequeue:
		err = raw.Nack(false, true)
	default:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("failed to settle message", "result", result, "error", err)
	}
	telemetry.MessagesTotal.WithLabelValues(c.queue, string(result)).Inc()
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
