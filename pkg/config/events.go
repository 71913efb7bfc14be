package config

import (
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	BrokerNone  = "none"
	BrokerNATS  = "nats"
	BrokerKafka = "kafka"
)

const defaultEventsBuffer = 256
const defaultEventsWorkers = 2
const defaultEventsDrainTimeout = 5 * time.Second

// EventsConfig configures publication of domain events after a committed write.
type EventsConfig struct {
	Broker         string               `koanf:"broker"`
	Buffer         int                  `koanf:"buffer"`
	Workers        int                  `koanf:"workers"`
	DrainTimeout   time.Duration        `koanf:"draintimeout"`
	NATS           NATSConfig           `koanf:"nats"`
	Kafka          KafkaConfig          `koanf:"kafka"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

// String returns a string representation of the EventsConfig.
func (c *EventsConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Events ---\n")
	b.WriteString(fmt.Sprintf("  broker: %s\n", c.Broker))
	b.WriteString(fmt.Sprintf("  buffer: %d\n", c.Buffer))
	b.WriteString(fmt.Sprintf("  workers: %d\n", c.Workers))
	b.WriteString(fmt.Sprintf("  draintimeout: %s\n", c.DrainTimeout))
	switch c.Broker {
	case BrokerNATS:
		b.WriteString(c.NATS.String())
	case BrokerKafka:
		b.WriteString(c.Kafka.String())
	}
	if c.Broker != BrokerNone {
		b.WriteString(c.CircuitBreaker.String())
	}
	return b.String()
}

func (c *EventsConfig) Validate() error {
	if c.Broker == "" {
		c.Broker = BrokerNone
	}
	if c.Buffer <= 0 {
		log.Println("Using default value for events.buffer")
		c.Buffer = defaultEventsBuffer
	}
	if c.Workers <= 0 {
		log.Println("Using default value for events.workers")
		c.Workers = defaultEventsWorkers
	}
	if c.DrainTimeout <= 0 {
		log.Println("Using default value for events.draintimeout")
		c.DrainTimeout = defaultEventsDrainTimeout
	}
	switch c.Broker {
	case BrokerNone:
		return nil
	case BrokerNATS:
		if err := c.NATS.Validate(); err != nil {
			return err
		}
	case BrokerKafka:
		if err := c.Kafka.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported events broker: %s", c.Broker)
	}
	return c.CircuitBreaker.Validate()
}
