// Package service wires the journey store, bus, ingestion and query
// services and the optional raw telemetry archive behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/okian/footprint/internal/adapters/archive"
	"github.com/okian/footprint/internal/adapters/mq/bus"
	"github.com/okian/footprint/internal/adapters/mq/queue"
	"github.com/okian/footprint/internal/adapters/mq/worker"
	"github.com/okian/footprint/internal/adapters/repository"
	"github.com/okian/footprint/internal/domain/dedupe"
	"github.com/okian/footprint/internal/domain/ingest"
	"github.com/okian/footprint/internal/domain/query"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
)

// ErrNotStarted is returned by accessors used before Start.
var ErrNotStarted = errors.New("service not started")

// ArchiveConfig configures the raw telemetry archive.
type ArchiveConfig struct {
	ClickHouse    archive.ClickHouseConfig
	QueueSize     int
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
}

// Service owns every long-lived component of the process.
type Service struct {
	mu sync.RWMutex

	// Configuration
	storageDriver string
	storageDSN    string
	defaultPage   int
	maxPage       int
	dedupeSize    int
	redis         *bus.RedisConfig
	archiveCfg    *ArchiveConfig
	sink          worker.Sink
	clock         quartz.Clock

	// Components
	store       repository.Store
	bus         bus.Bus
	deduper     dedupe.Deduper
	ingest      *ingest.Service
	query       *query.Engine
	archiveQ    *queue.InMemoryQueue
	archivePool *worker.Pool
	closeSink   func()
	unsubscribe func()
	cancel      context.CancelFunc

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStorage selects the journey store driver and DSN.
func WithStorage(driver, dsn string) Option {
	return func(s *Service) {
		if driver != "" {
			s.storageDriver = driver
			s.storageDSN = dsn
		}
	}
}

// WithPageSizes sets the default and maximum query page sizes.
func WithPageSizes(def, limit int) Option {
	return func(s *Service) {
		if def > 0 && limit >= def {
			s.defaultPage = def
			s.maxPage = limit
		}
	}
}

// WithDedupeSize sets the size of the action id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRedisBus fans journey events out through redis instead of in process.
func WithRedisBus(cfg bus.RedisConfig) Option {
	return func(s *Service) {
		if cfg.Addr != "" {
			s.redis = &cfg
		}
	}
}

// WithArchive enables the raw telemetry archive.
func WithArchive(cfg ArchiveConfig) Option {
	return func(s *Service) {
		s.archiveCfg = &cfg
	}
}

// WithArchiveSink replaces the ClickHouse sink of an enabled archive.
func WithArchiveSink(sink worker.Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithClock sets the clock used for journey timestamps.
func WithClock(c quartz.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storageDriver: "memory",
		defaultPage:   20,
		maxPage:       100,
		dedupeSize:    100_000,
		clock:         quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage and starts the background components. Calling Start
// on a started service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting footprint service...")

	store, err := s.openStore(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b, err := s.openBus(runCtx)
	if err != nil {
		cancel()
		_ = store.Close()
		return err
	}

	if s.archiveCfg != nil {
		if err := s.startArchive(runCtx, b); err != nil {
			cancel()
			_ = b.Close()
			_ = store.Close()
			return err
		}
	}

	s.store = store
	s.bus = b
	s.cancel = cancel
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.ingest = ingest.New(store,
		ingest.WithClock(s.clock),
		ingest.WithDeduper(s.deduper),
		ingest.WithPublisher(b),
		ingest.WithLogger(s.logger.Named("ingest")),
	)
	s.query = query.New(store,
		query.WithClock(s.clock),
		query.WithPageSizes(s.defaultPage, s.maxPage),
		query.WithLogger(s.logger.Named("query")),
	)

	s.started = true
	s.logger.Info(ctx, "footprint service started",
		logger.String("storage", s.storageDriver),
		logger.Bool("redis", s.redis != nil),
		logger.Bool("archive", s.archiveCfg != nil),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

func (s *Service) openStore(ctx context.Context) (repository.Store, error) {
	if s.storageDriver == "memory" {
		return repository.NewMemoryStore(), nil
	}
	db, err := repository.OpenGorm(s.storageDriver, s.storageDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", s.storageDriver, err)
	}
	store, err := repository.NewGormStore(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("migrate %s store: %w", s.storageDriver, err)
	}
	return store, nil
}

func (s *Service) openBus(ctx context.Context) (bus.Bus, error) {
	if s.redis == nil {
		return bus.NewLocalBus(s.logger.Named("bus")), nil
	}
	rb, err := bus.NewRedisBus(ctx, *s.redis, s.logger.Named("bus"))
	if err != nil {
		return nil, err
	}
	if err := rb.StartForwarder(ctx); err != nil {
		_ = rb.Close()
		return nil, err
	}
	return rb, nil
}

func (s *Service) startArchive(ctx context.Context, b bus.Bus) error {
	cfg := s.archiveCfg
	sink := s.sink
	s.closeSink = func() {}
	if sink == nil {
		ch, err := archive.NewClickHouseSink(ctx, cfg.ClickHouse, s.logger.Named("archive"))
		if err != nil {
			return err
		}
		sink = ch
		s.closeSink = func() { _ = ch.Close() }
	}

	s.archiveQ = queue.NewInMemoryQueue(queue.WithCapacity(cfg.QueueSize))
	s.archivePool = worker.NewPool(cfg.Workers, s.archiveQ, sink,
		worker.WithBatchSize(cfg.BatchSize),
		worker.WithFlushInterval(cfg.FlushInterval),
		worker.WithLogger(s.logger.Named("archive")),
	)
	s.archivePool.Start(ctx)
	s.unsubscribe = archive.Forward(b, s.archiveQ, s.logger.Named("archive"))
	return nil
}

// Stop drains the archive and releases storage. It is safe to call more
// than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping footprint service...")

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.archivePool != nil {
		if err := s.archivePool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "archive drain incomplete", logger.Error(err))
		}
		s.closeSink()
	}
	s.cancel()
	if err := s.bus.Close(); err != nil {
		s.logger.Warn(ctx, "bus close failed", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "store close failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "footprint service stopped")
}

// Ingest returns the ingestion service.
func (s *Service) Ingest() (*ingest.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.ingest, nil
}

// Query returns the query engine.
func (s *Service) Query() (*query.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.query, nil
}

// Bus returns the journey event bus.
func (s *Service) Bus() (bus.Bus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.bus, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"storage":    s.storageDriver,
		"dedupeSize": s.dedupeSize,
		"archive":    s.archiveCfg != nil,
	}
	if !s.started {
		return stats
	}

	stats["dedupeEntries"] = s.deduper.Size()
	if n, err := s.store.Count(context.Background()); err == nil {
		stats["journeys"] = n
		metrics.UpdateJourneysTotal(n)
	} else {
		s.logger.Warn(context.Background(), "journey count failed", logger.Error(err))
	}
	if s.archiveQ != nil {
		stats["archiveQueueLength"] = s.archiveQ.Len()
		metrics.UpdateQueueSize(s.archiveQ.Len())
	}
	return stats
}
