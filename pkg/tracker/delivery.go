package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/tracker/transport"
)

type impressionSender interface {
	RecordImpression(ctx context.Context, r transport.ImpressionRequest) error
}

// delivery sends impression reports one at a time so a start report always
// reaches the server before its end report.
type delivery struct {
	sender  impressionSender
	timeout time.Duration
	log     logger.Logger

	mu      sync.Mutex
	closed  bool
	ch      chan transport.ImpressionRequest
	pending sync.WaitGroup
	done    chan struct{}
}

func newDelivery(sender impressionSender, size int, timeout time.Duration, log logger.Logger) *delivery {
	d := &delivery{
		sender:  sender,
		timeout: timeout,
		log:     log,
		ch:      make(chan transport.ImpressionRequest, size),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// enqueue never blocks; a full queue drops the report.
func (d *delivery) enqueue(r transport.ImpressionRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending.Add(1)
	select {
	case d.ch <- r:
	default:
		d.pending.Done()
		d.log.Warn(context.Background(), "impression report dropped, queue full",
			logger.String("interaction_id", r.InteractionID))
	}
}

func (d *delivery) run() {
	defer close(d.done)
	for r := range d.ch {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.sender.RecordImpression(ctx, r); err != nil {
			d.log.Warn(ctx, "impression not recorded",
				logger.String("section", r.SectionID),
				logger.String("interaction_id", r.InteractionID),
				logger.Error(err),
			)
		}
		cancel()
		d.pending.Done()
	}
}

// wait blocks until every queued report was attempted.
func (d *delivery) wait() {
	d.pending.Wait()
}

func (d *delivery) close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.done
}
