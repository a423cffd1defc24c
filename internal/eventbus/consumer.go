package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/cinema-seat-reservation/internal/cache"
	"github.com/iliyamo/cinema-seat-reservation/internal/config"
	"github.com/iliyamo/cinema-seat-reservation/internal/model"
)

// MetricsConsumer drains the Event Sink Bus queue and turns domain
// events into two side-effects: Prometheus counters (events per type,
// sale amount) for operational dashboards, and a sales ranking in the
// cache store's sorted set under rankingKey, incremented by the number
// of seats each confirmed sale covers. Ranking members are functions
// ("function:<id>"), not films; sales are not aggregated per film.
type MetricsConsumer struct {
	cfg   config.MQConfig
	cache cache.Store

	eventsTotal *prometheus.CounterVec
	saleAmount  prometheus.Counter
}

const rankingKey = "ranking:sales"

// NewMetricsConsumer registers its metrics against reg and returns a
// consumer ready to Run.
func NewMetricsConsumer(cfg config.MQConfig, ca cache.Store, reg prometheus.Registerer) *MetricsConsumer {
	c := &MetricsConsumer{
		cfg:   cfg,
		cache: ca,
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boxoffice_events_total",
			Help: "Domain events consumed from the event sink bus, by type.",
		}, []string{"type"}),
		saleAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boxoffice_sale_amount_cents_total",
			Help: "Sum of confirmed sale totals in cents.",
		}),
	}
	reg.MustRegister(c.eventsTotal, c.saleAmount)
	return c
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff capped at cfg.ReconnectMax —
// the same shape as the teacher's booking consumer reconnect loop,
// generalized to a caller-supplied queue and a cancellable context
// instead of running forever unconditionally.
func (c *MetricsConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		conn, err := amqp.Dial(c.cfg.URL)
		if err != nil {
			log.Printf("eventbus-consumer: dial failed: %v; retrying in %s", err, backoff)
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, c.cfg.ReconnectMax)
			continue
		}
		backoff = time.Second

		if err := c.consumeLoop(ctx, conn); err != nil {
			log.Printf("eventbus-consumer: consume loop ended: %v; reconnecting", err)
		}
		_ = conn.Close()
		if !sleepOrDone(ctx, time.Second) {
			return ctx.Err()
		}
	}
}

func (c *MetricsConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("eventbus-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				log.Printf("eventbus-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *MetricsConsumer) handle(ctx context.Context, body []byte) error {
	var ev model.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	c.eventsTotal.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type == model.EventSaleConfirmed {
		c.saleAmount.Add(float64(ev.AmountCents))
		member := fmt.Sprintf("function:%d", ev.FunctionID)
		if _, err := c.cache.ZIncrBy(ctx, rankingKey, float64(len(ev.SeatCodes)), member); err != nil {
			log.Printf("eventbus-consumer: ranking update failed: %v", err)
		}
	}
	return nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
