package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/internal/adapters/mq/queue"
	"github.com/okian/footprint/internal/adapters/mq/worker"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]worker.Event
	fail    bool
}

func (s *recordingSink) Write(_ context.Context, batch []worker.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		s.fail = false
		return errors.New("sink unavailable")
	}
	s.batches = append(s.batches, append([]worker.Event(nil), batch...))
	return nil
}

func (s *recordingSink) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.batches))
	for i, b := range s.batches {
		out[i] = len(b)
	}
	return out
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func enqueue(q *queue.InMemoryQueue, n int) {
	for i := 0; i < n; i++ {
		q.Enqueue(context.Background(), worker.Event{Kind: model.KindImpressionRecorded, SessionID: "s"})
	}
}

func TestBatchWorker(t *testing.T) {
	convey.Convey("Given a pool with one worker and a mock clock", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mClock := quartz.NewMock(t)
		trap := mClock.Trap().NewTicker("worker", "flush")
		defer trap.Close()

		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		sink := &recordingSink{}
		pool := worker.NewPool(1, q, sink,
			worker.WithBatchSize(2),
			worker.WithFlushInterval(time.Second),
			worker.WithClock(mClock),
		)
		pool.Start(ctx)
		trap.MustWait(ctx).MustRelease(ctx)

		convey.Convey("When more events than a batch arrive", func() {
			enqueue(q, 5)

			convey.Convey("Then full batches are written right away", func() {
				convey.So(eventually(func() bool { return len(sink.sizes()) == 2 }), convey.ShouldBeTrue)
				convey.So(sink.sizes(), convey.ShouldResemble, []int{2, 2})
			})

			convey.Convey("Then shutdown flushes the remainder", func() {
				convey.So(eventually(func() bool { return len(sink.sizes()) == 2 }), convey.ShouldBeTrue)
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(sink.sizes(), convey.ShouldResemble, []int{2, 2, 1})
			})
		})

		convey.Convey("When a partial batch ages past the flush interval", func() {
			enqueue(q, 1)
			convey.So(eventually(func() bool { return q.Len() == 0 }), convey.ShouldBeTrue)
			mClock.Advance(time.Second).MustWait(ctx)

			convey.Convey("Then it is written by the ticker", func() {
				convey.So(eventually(func() bool { return len(sink.sizes()) == 1 }), convey.ShouldBeTrue)
				convey.So(sink.sizes(), convey.ShouldResemble, []int{1})
			})
		})

		convey.Convey("When the sink fails once", func() {
			sink.mu.Lock()
			sink.fail = true
			sink.mu.Unlock()
			enqueue(q, 4)

			convey.Convey("Then the failed batch is dropped and the worker continues", func() {
				convey.So(eventually(func() bool { return len(sink.sizes()) == 1 }), convey.ShouldBeTrue)
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(sink.sizes(), convey.ShouldResemble, []int{2})
			})
		})
	})
}
