// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/lakeflow/pkg/channels/gochannel"
	"github.com/dukex/lakeflow/pkg/channels/kafka"
	"github.com/dukex/lakeflow/pkg/eventbus"
)

// NewEventBus creates the event bus of provider. serviceName names the Kafka
// consumer group of the process.
func NewEventBus(provider string, brokers []string, serviceName string, logger *slog.Logger) eventbus.EventBus {
	wlogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wlogger, brokers, serviceName)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel", "":
		pub, sub, err := gochannel.CreatePersistentChannel(wlogger)
		if err != nil {
			panic(fmt.Errorf("failed to create go channel pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
