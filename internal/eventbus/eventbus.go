// Package eventbus implements the Event Sink Bus: the append-only,
// at-least-once notification channel the Purchase Coordinator and Seat
// Inventory Service publish domain events to once their own
// transaction has already committed. Publication failures are logged
// and swallowed by design — the bus is explicitly best-effort and must
// never be allowed to fail a purchase that already succeeded.
package eventbus

import (
	"context"
	"encoding/json"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-seat-reservation/internal/config"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
	"github.com/iliyamo/cinema-seat-reservation/internal/realtime"
)

// Bus publishes domain events. Publish never returns an error to
// callers that can't act on it (see rabbitmqBus); the interface offers
// no way to learn whether a specific publish reached the broker.
type Bus interface {
	Publish(ctx context.Context, ev model.Event)
	Close() error
}

// rabbitmqBus is a thin wrapper around a single AMQP connection and
// channel, declaring a durable exchange and queue the way the
// teacher's queue_publisher does, generalized from a single hardcoded
// queue to the configured exchange/routing key pair.
type rabbitmqBus struct {
	cfg  config.MQConfig
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitMQBus dials the broker, declares the exchange/queue/binding
// and returns a ready-to-publish Bus. If cfg.URL is empty, callers
// should use NewNoop instead — this constructor always attempts a real
// connection.
func NewRabbitMQBus(cfg config.MQConfig) (Bus, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &rabbitmqBus{cfg: cfg, conn: conn, ch: ch}, nil
}

func (b *rabbitmqBus) Publish(ctx context.Context, ev model.Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("eventbus: marshal event failed: %v", err)
		return
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}
	if err := b.ch.PublishWithContext(ctx, b.cfg.Exchange, b.cfg.RoutingKey, false, false, pub); err != nil {
		log.Printf("eventbus: publish failed, reconnecting: %v", err)
		if rerr := b.reconnect(); rerr != nil {
			log.Printf("eventbus: reconnect failed: %v", rerr)
			return
		}
		if err := b.ch.PublishWithContext(ctx, b.cfg.Exchange, b.cfg.RoutingKey, false, false, pub); err != nil {
			log.Printf("eventbus: publish retry failed: %v", err)
		}
	}
}

func (b *rabbitmqBus) reconnect() error {
	_ = b.ch.Close()
	_ = b.conn.Close()
	conn, err := amqp.Dial(b.cfg.URL)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	b.conn, b.ch = conn, ch
	return nil
}

func (b *rabbitmqBus) Close() error {
	_ = b.ch.Close()
	return b.conn.Close()
}

// noopBus discards every event. It's what the server wires in when no
// RABBITMQ_URL is configured, so the rest of the system keeps working
// without a broker in local development.
type noopBus struct{}

// NewNoop returns a Bus that drops every event.
func NewNoop() Bus { return noopBus{} }

func (noopBus) Publish(ctx context.Context, ev model.Event) {}
func (noopBus) Close() error                                { return nil }

// fanoutBus publishes every event to the underlying Bus and, in
// addition, forwards it straight to the Realtime Hub for immediate
// websocket broadcast. The hub side is in-process and cannot be
// delayed by a broker outage, so it runs independently of whatever
// the wrapped Bus does with the event.
type fanoutBus struct {
	Bus
	hub *realtime.Hub
}

// Fanout wraps bus so every published event also reaches hub. Use
// this at startup instead of handing the Purchase Coordinator and
// Seat Inventory Service two separate sinks to publish to.
func Fanout(bus Bus, hub *realtime.Hub) Bus {
	return fanoutBus{Bus: bus, hub: hub}
}

func (b fanoutBus) Publish(ctx context.Context, ev model.Event) {
	b.Bus.Publish(ctx, ev)
	b.hub.PublishEvent(ev)
}
