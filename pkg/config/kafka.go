package config

import (
	"fmt"
	"strings"
	"time"
)

type KafkaConfig struct {
	Brokers      string        `koanf:"brokers"`
	WriteTimeout time.Duration `koanf:"writetimeout"`
}

// BrokerList splits the comma separated broker addresses.
func (c *KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// String returns a string representation of the Kafka configuration.
func (c *KafkaConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Kafka ---\n")
	b.WriteString(fmt.Sprintf("  brokers: %s\n", c.Brokers))
	b.WriteString(fmt.Sprintf("  writetimeout: %s\n", c.WriteTimeout))
	return b.String()
}

func (c *KafkaConfig) Validate() error {
	if len(c.BrokerList()) == 0 {
		return fmt.Errorf("kafka brokers are not configured")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("kafka write timeout is not configured")
	}
	return nil
}
