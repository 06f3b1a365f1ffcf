package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeRuns          Exchange = "launchpad.runs"
	ExchangeSteps         Exchange = "launchpad.steps"
	ExchangeNotifications Exchange = "launchpad.notifications"
	ExchangeDLQ           Exchange = "launchpad.dlq"
)

// Queues — имена очередей.
const (
	QueueRunsPending    Queue = "runs.pending"
	QueueRunsCancel     Queue = "runs.cancel"
	QueueStepsInvoke    Queue = "steps.invoke"
	QueueStepsCompleted Queue = "steps.completed"
	QueueNotifications  Queue = "notifications"
	QueueDLQSteps       Queue = "dlq.steps"
)

// Routing keys.
const (
	RoutingKeyPending      RoutingKey = "pending"
	RoutingKeyCancel       RoutingKey = "cancel"
	RoutingKeyInvoke       RoutingKey = "invoke"
	RoutingKeyCompleted    RoutingKey = "completed"
	RoutingKeyNotification RoutingKey = "notification"
	RoutingKeyDLQSteps     RoutingKey = "steps"
)

// binding — очередь, её обменник и аргументы.
type binding struct {
	queue      Queue
	exchange   Exchange
	routingKey RoutingKey
	deadLetter bool
}

// topology — все очереди Launchpad.
//
// steps.invoke отправляет отклонённые сообщения в dlq.steps. Остальные
// очереди без DLQ: runs.pending обрабатывается один раз, события
// завершения и уведомления идемпотентны.
var topology = []binding{
	{QueueRunsPending, ExchangeRuns, RoutingKeyPending, false},
	{QueueRunsCancel, ExchangeRuns, RoutingKeyCancel, false},
	{QueueStepsInvoke, ExchangeSteps, RoutingKeyInvoke, true},
	{QueueStepsCompleted, ExchangeSteps, RoutingKeyCompleted, false},
	{QueueNotifications, ExchangeNotifications, RoutingKeyNotification, false},
	{QueueDLQSteps, ExchangeDLQ, RoutingKeyDLQSteps, false},
}

// SetupTopology объявляет обменники, очереди и привязки.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		declared := make(map[Exchange]bool)
		for _, b := range topology {
			if !declared[b.exchange] {
				if err := ch.ExchangeDeclare(string(b.exchange), "direct", true, false, false, false, nil); err != nil {
					return fmt.Errorf("declare exchange %s: %w", b.exchange, err)
				}
				declared[b.exchange] = true
			}

			var args amqp.Table
			if b.deadLetter {
				args = amqp.Table{
					"x-dead-letter-exchange":    string(ExchangeDLQ),
					"x-dead-letter-routing-key": string(RoutingKeyDLQSteps),
				}
			}
			if _, err := ch.QueueDeclare(string(b.queue), true, false, false, false, args); err != nil {
				return fmt.Errorf("declare queue %s: %w", b.queue, err)
			}

			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Launchpad RabbitMQ Topology:

    launchpad.runs (direct)
    ├── runs.pending [routing: pending]        Consumer: Coordinator
    └── runs.cancel [routing: cancel]          Consumer: Coordinator

    launchpad.steps (direct)
    ├── steps.invoke [routing: invoke]         Consumer: Worker, DLQ: dlq.steps
    └── steps.completed [routing: completed]   Consumer: Coordinator

    launchpad.notifications (direct)
    └── notifications [routing: notification]  Consumer: external subscribers

    launchpad.dlq (direct)
    └── dlq.steps [routing: steps]             Manual processing
  `
}
