package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
)

const (
	dialTimeout = 5 * time.Second
	pingTimeout = 10 * time.Second
)

const createTable = `
CREATE TABLE IF NOT EXISTS journey_events (
	kind           LowCardinality(String),
	session_id     String,
	visitor_id     String,
	occurred_at    DateTime64(3, 'UTC'),
	section_id     String,
	interaction_id String,
	duration_ms    Int64,
	scroll_depth   UInt8,
	action_type    LowCardinality(String),
	action_target  String,
	metadata       String
) ENGINE = MergeTree
ORDER BY (occurred_at, session_id)`

const insertRows = `
INSERT INTO journey_events (
	kind, session_id, visitor_id, occurred_at, section_id, interaction_id,
	duration_ms, scroll_depth, action_type, action_target, metadata
)`

// ClickHouseConfig holds the native protocol connection settings.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Version  string
}

// ClickHouseSink writes telemetry batches to ClickHouse.
type ClickHouseSink struct {
	conn clickhouse.Conn
	log  logger.Logger
}

// NewClickHouseSink connects, pings and ensures the archive table exists.
func NewClickHouseSink(ctx context.Context, cfg ClickHouseConfig, log logger.Logger) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "footprint", Version: cfg.Version}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if err := conn.Exec(ctx, createTable); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return &ClickHouseSink{conn: conn, log: log}, nil
}

// Write inserts batch in a single native batch.
func (s *ClickHouseSink) Write(ctx context.Context, batch []model.TelemetryEvent) error {
	if len(batch) == 0 {
		return nil
	}
	b, err := s.conn.PrepareBatch(ctx, insertRows)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, e := range batch {
		if err := b.Append(ToRow(e).values()...); err != nil {
			s.log.Warn(ctx, "skipping unarchivable event",
				logger.String("session_id", e.SessionID),
				logger.String("kind", string(e.Kind)),
				logger.Error(err),
			)
		}
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	s.log.Debug(ctx, "archived telemetry batch", logger.Int("events", len(batch)))
	return nil
}

// Close closes the connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
