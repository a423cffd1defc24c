package config

import "time"

// MQConfig holds connection settings for the Event Sink Bus's RabbitMQ
// transport. The queue is declared durable so published events survive
// a broker restart; ReconnectMax bounds the consumer's exponential
// backoff when the broker connection drops.
type MQConfig struct {
	URL          string
	Exchange     string
	Queue        string
	RoutingKey   string
	ReconnectMax time.Duration
}

// LoadMQConfig reads environment variables for the RabbitMQ connection.
// An empty URL means the Event Sink Bus falls back to an in-process
// no-op sink (see internal/eventbus), so the rest of the system keeps
// working without a broker in local development.
func LoadMQConfig() MQConfig {
	return MQConfig{
		URL:          envStr("RABBITMQ_URL", ""),
		Exchange:     envStr("RABBITMQ_EXCHANGE", "boxoffice.events"),
		Queue:        envStr("RABBITMQ_QUEUE", "boxoffice.events.sink"),
		RoutingKey:   envStr("RABBITMQ_ROUTING_KEY", "events"),
		ReconnectMax: envDur("RABBITMQ_RECONNECT_MAX", 30*time.Second),
	}
}
