// Package worker drains the archive queue in batches and hands them to a
// Sink.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/okian/footprint/internal/adapters/mq/queue"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
)

const (
	defaultBatchSize     = 500
	defaultFlushInterval = 2 * time.Second
	flushTimeout         = 10 * time.Second
	poolShutdownTimeout  = 30 * time.Second
)

// Event is what workers read off the queue.
type Event = queue.Event

// Sink stores a batch of telemetry events.
type Sink interface {
	Write(ctx context.Context, batch []Event) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue() <-chan Event
}

// dequeueObserver is implemented by queues that track consumer metrics.
type dequeueObserver interface {
	MarkDequeued()
}

// BatchWorker collects events until the batch is full or the flush
// interval elapses, then writes the batch to the sink.
type BatchWorker struct {
	queue         Queue
	sink          Sink
	name          string
	batchSize     int
	flushInterval time.Duration
	clock         quartz.Clock
	logger        logger.Logger

	pending []Event
	done    chan struct{}
}

// NewBatchWorker creates a worker reading from q into sink.
func NewBatchWorker(q Queue, sink Sink, opts ...Option) *BatchWorker {
	w := &BatchWorker{
		queue:         q,
		sink:          sink,
		name:          "archive-worker",
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		clock:         quartz.NewReal(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	w.pending = make([]Event, 0, w.batchSize)
	return w
}

// Run consumes events until the queue closes or ctx is done. Pending
// events are flushed before it returns.
func (w *BatchWorker) Run(ctx context.Context) {
	defer close(w.done)

	ticker := w.clock.NewTicker(w.flushInterval, "worker", "flush")
	defer ticker.Stop()

	events := w.queue.Dequeue()
	observer, _ := w.queue.(dequeueObserver)
	for {
		select {
		case <-ctx.Done():
			w.flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			w.flush(ctx)
		case e, ok := <-events:
			if !ok {
				w.flush(context.WithoutCancel(ctx))
				return
			}
			if observer != nil {
				observer.MarkDequeued()
			}
			w.pending = append(w.pending, e)
			if len(w.pending) >= w.batchSize {
				w.flush(ctx)
			}
		}
	}
}

// Done is closed once Run has returned.
func (w *BatchWorker) Done() <-chan struct{} {
	return w.done
}

func (w *BatchWorker) flush(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}
	batch := w.pending
	w.pending = make([]Event, 0, w.batchSize)

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	start := time.Now()
	if err := w.sink.Write(ctx, batch); err != nil {
		metrics.RecordArchiveError()
		w.logger.Error(ctx, "archive batch failed",
			logger.Int("events", len(batch)),
			logger.Error(err),
		)
		return
	}
	metrics.RecordArchiveBatch(len(batch), float64(time.Since(start).Microseconds())/1000)
}

// Pool runs several batch workers over one queue.
type Pool struct {
	workers []*BatchWorker
	queue   Queue
	logger  logger.Logger
	wg      sync.WaitGroup
}

// NewPool creates workerCount workers sharing q and sink.
func NewPool(workerCount int, q Queue, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*BatchWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("archive-worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewBatchWorker(q, sink, wopts...)
	}
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *BatchWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		metrics.UpdateWorkerActiveCount(0)
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}
