package simulate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/tracker"
	"github.com/okian/footprint/pkg/tracker/dwell"
)

// Defaults applied to zero Config fields.
const (
	defaultVisitors  = 50
	defaultWorkers   = 8
	defaultTimeout   = 10 * time.Second
	defaultTimeScale = 0.01
)

// Location headers understood by the journeys API.
const (
	headerCountry = "X-Vercel-IP-Country"
	headerCity    = "X-Vercel-IP-City"
)

var (
	visibleObservation = dwell.Observation{IntersectionRatio: 0.8, Height: 500, ViewportHeight: 1000}
	hiddenObservation  = dwell.Observation{Top: 1500, Height: 500, ViewportHeight: 1000}
)

// depthObservation is a viewport-tall section scrolled depth percent into view.
func depthObservation(depth int) dwell.Observation {
	const h = 1000
	return dwell.Observation{
		IntersectionRatio: float64(depth) / 100,
		Top:               h * (1 - float64(depth)/100),
		Height:            h,
		ViewportHeight:    h,
	}
}

// Run simulates cfg.Visitors visitors and verifies the dashboard totals.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg = withDefaults(cfg)
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now(), VisitorsPlanned: cfg.Visitors}

	log.Info(ctx, "starting footprint simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("visitors", cfg.Visitors),
		logger.Int("workers", cfg.Workers),
		logger.Float64("timeScale", cfg.TimeScale),
		logger.Any("seed", cfg.Seed),
	)

	api := newAPIClient(cfg.BaseURL, cfg.Timeout)
	if err := api.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}
	before, err := snapshot(ctx, api)
	if err != nil {
		return stats, err
	}

	plans := generatePlans(cfg.Visitors, cfg.Seed)
	var started, failed, impressions, actions atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range plans {
		p := plans[i]
		g.Go(func() error {
			if err := runVisitor(gctx, cfg, p, log); err != nil {
				failed.Add(1)
				log.Warn(gctx, "visitor failed", logger.Error(err))
				return nil
			}
			started.Add(1)
			impressions.Add(int64(len(p.Visits)))
			actions.Add(int64(len(p.Clicks)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.VisitorsStarted = int(started.Load())
	stats.VisitorsFailed = int(failed.Load())
	stats.ImpressionsPlanned = int(impressions.Load())
	stats.ActionsPlanned = int(actions.Load())

	if err := verify(ctx, api, before, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

func withDefaults(cfg Config) Config {
	if cfg.Visitors <= 0 {
		cfg.Visitors = defaultVisitors
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = defaultTimeScale
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	return cfg
}

// runVisitor plays p through a fresh tracker client.
func runVisitor(ctx context.Context, cfg Config, p Plan, log logger.Logger) error {
	scale := func(d time.Duration) time.Duration { return time.Duration(float64(d) * cfg.TimeScale) }
	confirm := scale(dwell.DefaultConfirmationDelay)

	opts := []tracker.Option{
		tracker.WithTimeout(cfg.Timeout),
		tracker.WithConfirmationDelay(confirm),
	}
	if cfg.Verbose {
		opts = append(opts, tracker.WithLogger(log))
	}
	if p.Country != "" {
		opts = append(opts, tracker.WithHeader(headerCountry, p.Country))
	}
	if p.City != "" {
		opts = append(opts, tracker.WithHeader(headerCity, p.City))
	}
	c := tracker.New(cfg.BaseURL, opts...)
	defer c.Close()

	if _, err := c.Start(ctx, p.LandingPage, p.Referrer, p.UserAgent); err != nil {
		return err
	}

	for i, v := range p.Visits {
		c.Observe(v.Section, visibleObservation)
		if err := sleep(ctx, confirm+scale(v.Dwell)); err != nil {
			return err
		}
		for range v.Interactions {
			c.RecordInteraction(v.Section)
		}
		c.Observe(v.Section, depthObservation(v.ScrollDepth))
		c.Observe(v.Section, hiddenObservation)

		for _, click := range p.Clicks {
			if click.After == i {
				c.Emit(ctx, click.Type, click.Target, map[string]any{"label": click.Label})
			}
		}
	}
	c.Flush()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var visitorsPerSecond float64
	if stats.Duration > 0 {
		visitorsPerSecond = float64(stats.VisitorsStarted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("visitorsPlanned", stats.VisitorsPlanned),
		logger.Int("visitorsStarted", stats.VisitorsStarted),
		logger.Int("visitorsFailed", stats.VisitorsFailed),
		logger.Int("impressionsPlanned", stats.ImpressionsPlanned),
		logger.Int("actionsPlanned", stats.ActionsPlanned),
		logger.Int("sessionsReported", stats.SessionsReported),
		logger.Int("eventsReported", stats.EventsReported),
		logger.Duration("duration", stats.Duration),
		logger.Float64("visitorsPerSecond", visitorsPerSecond),
	)
}
