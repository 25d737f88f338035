package tracker_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/pkg/tracker"
	"github.com/okian/footprint/pkg/tracker/dwell"
	"github.com/okian/footprint/pkg/tracker/identity"
	"github.com/okian/footprint/pkg/tracker/transport"
)

var (
	visible = dwell.Observation{IntersectionRatio: 0.8, Top: 0, Height: 500, ViewportHeight: 1000}
	depth40 = dwell.Observation{IntersectionRatio: 0.4, Top: 600, Height: 1000, ViewportHeight: 1000}
	hidden  = dwell.Observation{Top: 1500, Height: 500, ViewportHeight: 1000}
)

type call struct {
	path string
	body map[string]any
}

type fakeAPI struct {
	mu      sync.Mutex
	calls   []call
	failNew bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(b, &body)
	f.mu.Lock()
	f.calls = append(f.calls, call{path: r.URL.Path, body: body})
	f.mu.Unlock()

	if r.URL.Path == transport.SessionsPath {
		if f.failNew {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sessionId":"s-1"}`))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (f *fakeAPI) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.path)
	}
	return out
}

func TestClientWithoutSession(t *testing.T) {
	Convey("Given an API that cannot create sessions", t, func() {
		ctx := context.Background()
		api := &fakeAPI{failNew: true}
		srv := httptest.NewServer(api)
		defer srv.Close()
		clock := quartz.NewMock(t)
		c := tracker.New(srv.URL, tracker.WithClock(clock))
		defer c.Close()

		_, err := c.Start(ctx, "/", "", "agent")
		So(errors.Is(err, identity.ErrUninitialized), ShouldBeTrue)

		Convey("When sections are viewed and actions emitted", func() {
			c.Observe("about", visible)
			clock.Advance(time.Second).MustWait(ctx)
			c.Observe("about", hidden)
			c.Emit(ctx, "click", "cta", nil)
			c.Flush()

			Convey("Then only the failed session call was made", func() {
				So(api.paths(), ShouldResemble, []string{transport.SessionsPath})
			})
		})
	})
}

func TestClientReports(t *testing.T) {
	Convey("Given a started client", t, func() {
		ctx := context.Background()
		api := &fakeAPI{}
		srv := httptest.NewServer(api)
		defer srv.Close()
		clock := quartz.NewMock(t)
		c := tracker.New(srv.URL, tracker.WithClock(clock), tracker.WithTimeout(2*time.Second))
		defer c.Close()

		var mu sync.Mutex
		var signals []tracker.Signal
		unsubscribe := c.Subscribe(func(_ context.Context, s tracker.Signal) {
			mu.Lock()
			defer mu.Unlock()
			signals = append(signals, s)
		})
		defer unsubscribe()

		id, err := c.Start(ctx, "/", "", "agent")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, "s-1")

		Convey("When a section is viewed, scrolled, left and a click follows", func() {
			c.Observe("about", visible)
			clock.Advance(time.Second).MustWait(ctx)
			c.Observe("about", depth40)
			clock.Advance(6 * time.Second).MustWait(ctx)
			c.Observe("about", hidden)
			clock.Advance(500 * time.Millisecond).MustWait(ctx)
			c.Emit(ctx, "click", "resume-button", nil)
			c.Flush()

			Convey("Then start, end and action reports are sent in order", func() {
				So(api.paths(), ShouldResemble, []string{
					transport.SessionsPath, transport.ImpressionsPath, transport.ImpressionsPath, transport.ActionsPath,
				})
				start, end := api.calls[1].body, api.calls[2].body
				So(start["interactionId"], ShouldEqual, end["interactionId"])
				So(start["duration"], ShouldEqual, float64(0))
				So(end["duration"], ShouldEqual, float64(6000))
				So(end["scrollDepth"], ShouldEqual, float64(40))
				So(end["sectionId"], ShouldEqual, "about")
				So(api.calls[3].body["actionId"], ShouldNotBeEmpty)
			})

			Convey("Then every report is published as a signal", func() {
				mu.Lock()
				defer mu.Unlock()
				So(signals, ShouldHaveLength, 3)
				So(signals[0].Kind, ShouldEqual, tracker.SignalImpressionStart)
				So(signals[1].Kind, ShouldEqual, tracker.SignalImpressionEnd)
				So(signals[1].Duration, ShouldEqual, 6000)
				So(signals[2].Kind, ShouldEqual, tracker.SignalAction)
				So(signals[2].Target, ShouldEqual, "resume-button")
			})
		})

		Convey("When the client is flushed during an impression", func() {
			c.Observe("hero", visible)
			clock.Advance(time.Second).MustWait(ctx)
			c.RecordInteraction("hero")
			clock.Advance(3 * time.Second).MustWait(ctx)
			c.Flush()

			Convey("Then the impression is ended with its interactions", func() {
				paths := api.paths()
				So(paths, ShouldHaveLength, 3)
				end := api.calls[2].body
				So(end["duration"], ShouldEqual, float64(3000))
				So(end["interactions"], ShouldEqual, float64(1))
			})
		})
	})
}
