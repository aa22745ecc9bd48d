package config

import (
	"fmt"

	"github.com/dshills/signals/internal/signal/dispatch"
	"github.com/rs/zerolog"
)

// BuildExecutors creates a registry holding a queue for every configured
// executor. The queues are not started.
func BuildExecutors(cfg *Config, logger zerolog.Logger, opts ...dispatch.QueueOption) (*dispatch.Registry, error) {
	reg := dispatch.NewRegistry()
	for _, e := range cfg.Executors {
		qopts := []dispatch.QueueOption{dispatch.WithQueueLogger(logger)}
		if e.QueueSize > 0 {
			qopts = append(qopts, dispatch.WithQueueSize(e.QueueSize))
		}
		qopts = append(qopts, opts...)

		var q *dispatch.Queue
		switch e.Kind {
		case KindConcurrent:
			q = dispatch.NewConcurrentQueue(e.Name, e.Workers, qopts...)
		case KindSerial:
			q = dispatch.NewSerialQueue(e.Name, qopts...)
		default:
			return nil, &ValidationError{Field: "executor." + e.Name, Message: fmt.Sprintf("unknown kind %q", e.Kind)}
		}

		if err := reg.Register(q); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
