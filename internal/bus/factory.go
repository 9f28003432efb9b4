package bus

import (
	"fmt"
	"strings"

	"github.com/facasdxf/complexity-engine/internal/pkg/errors"
)

// Config selects and configures the Bus implementation NewBus builds.
type Config struct {
	Type         string // "memory", "rabbit", or "kafka"
	RabbitURL    string
	KafkaBrokers string
	KafkaGroup   string
}

// NewBus creates a new Bus instance based on the configuration.
func NewBus(cfg Config) (Bus, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		return NewMemoryBus(), nil

	case "rabbit":
		if cfg.RabbitURL == "" {
			return nil, errors.New(errors.CodeValidation, "rabbit url not configured")
		}
		return NewRabbitBus(RabbitConfig{URL: cfg.RabbitURL})

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "facas-complexity-engine"
		}

		return NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			ClientID:      "facas-complexity-engine",
		})

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}
}
