package emitter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/pkg/tracker/emitter"
	"github.com/okian/footprint/pkg/tracker/transport"
)

type session string

func (s session) SessionID() (string, bool) { return string(s), s != "" }

type sender struct {
	mu     sync.Mutex
	sent   []transport.ActionRequest
	ctxErr error
	err    error
	gate   chan struct{}
}

func (s *sender) SendAction(ctx context.Context, r transport.ActionRequest) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, r)
	s.ctxErr = ctx.Err()
	return s.err
}

func TestEmit(t *testing.T) {
	Convey("Given an emitter without a session", t, func() {
		snd := &sender{}
		e := emitter.New(session(""), snd)

		Convey("When an action is emitted", func() {
			e.Emit(context.Background(), "click", "cta", nil)
			e.Wait()

			Convey("Then nothing is sent", func() {
				So(snd.sent, ShouldBeEmpty)
			})
		})
	})

	Convey("Given an emitter with an active session", t, func() {
		snd := &sender{gate: make(chan struct{})}
		var observed []transport.ActionRequest
		e := emitter.New(session("s-1"), snd, emitter.WithTimeout(time.Second),
			emitter.WithObserver(func(_ context.Context, r transport.ActionRequest) { observed = append(observed, r) }))

		Convey("When the caller's context is cancelled right after emitting", func() {
			ctx, cancel := context.WithCancel(context.Background())
			e.Emit(ctx, "click", "resume-button", map[string]any{"label": "Resume"})
			cancel()
			close(snd.gate)
			e.Wait()

			Convey("Then the send still completes with a live context", func() {
				So(snd.sent, ShouldHaveLength, 1)
				So(snd.ctxErr, ShouldBeNil)
				r := snd.sent[0]
				So(r.SessionID, ShouldEqual, "s-1")
				So(r.Target, ShouldEqual, "resume-button")
				So(r.ActionID, ShouldNotBeEmpty)
				So(observed, ShouldHaveLength, 1)
				So(observed[0].ActionID, ShouldEqual, r.ActionID)
			})
		})
	})

	Convey("Given a failing sender", t, func() {
		snd := &sender{err: errors.New("offline")}
		e := emitter.New(session("s-1"), snd)

		Convey("Then Emit swallows the failure", func() {
			So(func() {
				e.Emit(context.Background(), "click", "cta", nil)
				e.Wait()
			}, ShouldNotPanic)
			So(snd.sent, ShouldHaveLength, 1)
		})
	})
}
