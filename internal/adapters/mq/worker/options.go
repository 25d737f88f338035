package worker

import (
	"time"

	"github.com/coder/quartz"

	"github.com/okian/footprint/pkg/logger"
)

// Option applies a configuration option to a BatchWorker.
type Option func(*BatchWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *BatchWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *BatchWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithBatchSize sets how many events are written per sink call.
func WithBatchSize(n int) Option {
	return func(w *BatchWorker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithFlushInterval sets the maximum age of a partial batch.
func WithFlushInterval(d time.Duration) Option {
	return func(w *BatchWorker) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

// WithClock replaces the clock driving the flush ticker.
func WithClock(c quartz.Clock) Option {
	return func(w *BatchWorker) {
		if c != nil {
			w.clock = c
		}
	}
}
