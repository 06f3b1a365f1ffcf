package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunPending    MessageType = "run.pending"
	MessageTypeRunCancel     MessageType = "run.cancel"
	MessageTypeStepInvoke    MessageType = "step.invoke"
	MessageTypeStepCompleted MessageType = "step.completed"
	MessageTypeNotification  MessageType = "notification"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunPendingPayload — новый run ожидает выполнения.
type RunPendingPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// RunCancelPayload — запрос отмены run.
type RunCancelPayload struct {
	RunID  uuid.UUID `json:"run_id"`
	Reason string    `json:"reason,omitempty"`
}

// StepInvokePayload — асинхронный шаг для исполнителя.
type StepInvokePayload struct {
	RunID      string `json:"run_id"`
	NodeID     string `json:"node_id"`
	Resource   string `json:"resource"`
	Token      string `json:"token"`
	Payload    any    `json:"payload"`
	TimeoutSec int    `json:"timeout_sec,omitempty"`
}

// StepCompletedPayload — завершение асинхронного шага по токену.
// Пустой Error — успех.
type StepCompletedPayload struct {
	Token  string `json:"token"`
	Output any    `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
	Cause  string `json:"cause,omitempty"`

	// Hops — сколько раз завершение переотправлено координатором,
	// у которого нет ожидающего узла.
	Hops int `json:"hops,omitempty"`
}

// NotificationPayload — уведомление терминального узла.
type NotificationPayload struct {
	RunID   string `json:"run_id,omitempty"`
	Subject string `json:"subject"`
	Body    any    `json:"body"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// publish оборачивает payload в Message.
func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	return p.Publish(ctx, exchange, routingKey, &Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// PublishRunPending публикует событие о новом run.
// Потребитель: Coordinator.
func (p *Publisher) PublishRunPending(ctx context.Context, runID uuid.UUID) error {
	return p.publish(ctx, ExchangeRuns, RoutingKeyPending, MessageTypeRunPending, RunPendingPayload{RunID: runID})
}

// PublishRunCancel публикует запрос отмены run.
// Потребитель: Coordinator.
func (p *Publisher) PublishRunCancel(ctx context.Context, runID uuid.UUID, reason string) error {
	return p.publish(ctx, ExchangeRuns, RoutingKeyCancel, MessageTypeRunCancel, RunCancelPayload{RunID: runID, Reason: reason})
}

// PublishStepInvoke публикует асинхронный шаг.
// Потребитель: Worker.
func (p *Publisher) PublishStepInvoke(ctx context.Context, payload StepInvokePayload) error {
	return p.publish(ctx, ExchangeSteps, RoutingKeyInvoke, MessageTypeStepInvoke, payload)
}

// PublishStepCompleted публикует завершение шага по токену.
// Потребитель: Coordinator.
func (p *Publisher) PublishStepCompleted(ctx context.Context, payload StepCompletedPayload) error {
	return p.publish(ctx, ExchangeSteps, RoutingKeyCompleted, MessageTypeStepCompleted, payload)
}

// PublishNotification публикует уведомление.
func (p *Publisher) PublishNotification(ctx context.Context, payload NotificationPayload) error {
	return p.publish(ctx, ExchangeNotifications, RoutingKeyNotification, MessageTypeNotification, payload)
}
