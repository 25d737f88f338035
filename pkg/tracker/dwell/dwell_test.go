package dwell_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/pkg/tracker/dwell"
)

var (
	high    = dwell.Observation{IntersectionRatio: 0.8, Top: 0, Height: 500, ViewportHeight: 1000}
	partial = dwell.Observation{IntersectionRatio: 0.3, Top: 700, Height: 1000, ViewportHeight: 1000}
	hidden  = dwell.Observation{IntersectionRatio: 0, Top: 1200, Height: 500, ViewportHeight: 1000}
)

type collector struct {
	mu      sync.Mutex
	reports []dwell.Report
}

func (c *collector) Report(r dwell.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func (c *collector) kinds() []dwell.ReportKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dwell.ReportKind, 0, len(c.reports))
	for _, r := range c.reports {
		out = append(out, r.Kind)
	}
	return out
}

func (c *collector) last() dwell.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reports[len(c.reports)-1]
}

func TestClassify(t *testing.T) {
	Convey("Given section geometries", t, func() {
		Convey("Then a high ratio is highly visible", func() {
			So(high.Classify(), ShouldEqual, dwell.HighlyVisible)
		})

		Convey("Then a tall section filling the viewport is highly visible at a low ratio", func() {
			tall := dwell.Observation{IntersectionRatio: 0.25, Top: -200, Height: 4000, ViewportHeight: 1000}
			So(tall.ViewportFraction(), ShouldEqual, 1)
			So(tall.Classify(), ShouldEqual, dwell.HighlyVisible)
			So(tall.ScrollDepth(), ShouldEqual, 25)
		})

		Convey("Then a sliver is partially visible", func() {
			So(partial.Classify(), ShouldEqual, dwell.PartiallyVisible)
			So(partial.ScrollDepth(), ShouldEqual, 30)
		})

		Convey("Then a section below the fold is not visible with zero depth", func() {
			So(hidden.Classify(), ShouldEqual, dwell.NotVisible)
			So(hidden.ScrollDepth(), ShouldEqual, 0)
		})

		Convey("Then degenerate boxes never divide by zero", func() {
			o := dwell.Observation{IntersectionRatio: 0.1}
			So(o.ScrollDepth(), ShouldEqual, 0)
			So(o.ViewportFraction(), ShouldEqual, 0)
		})
	})
}

func TestDebounce(t *testing.T) {
	Convey("Given an idle tracker on a mock clock", t, func() {
		ctx := context.Background()
		clock := quartz.NewMock(t)
		c := &collector{}
		tr := dwell.New("about", c, dwell.WithClock(clock))

		Convey("When the section stays 80% visible for 1200ms", func() {
			tr.Observe(high)
			So(tr.State(), ShouldEqual, dwell.StatePending)
			clock.Advance(time.Second).MustWait(ctx)
			clock.Advance(200 * time.Millisecond).MustWait(ctx)

			Convey("Then exactly one impression start is reported", func() {
				So(tr.State(), ShouldEqual, dwell.StateActive)
				So(c.kinds(), ShouldResemble, []dwell.ReportKind{dwell.ReportStart})
				start := c.last()
				So(start.SectionID, ShouldEqual, "about")
				So(start.InteractionID, ShouldNotBeEmpty)
				So(start.Duration, ShouldEqual, 0)
				So(start.ScrollDepth, ShouldEqual, 0)
			})
		})

		Convey("When the section is 80% visible for 400ms and then hidden", func() {
			tr.Observe(high)
			clock.Advance(400 * time.Millisecond).MustWait(ctx)
			tr.Observe(hidden)
			clock.Advance(time.Second).MustWait(ctx)

			Convey("Then no impression is reported", func() {
				So(tr.State(), ShouldEqual, dwell.StateIdle)
				So(c.kinds(), ShouldBeEmpty)
			})
		})

		Convey("When a pending section drops to partial visibility", func() {
			tr.Observe(high)
			tr.Observe(partial)
			clock.Advance(time.Second).MustWait(ctx)

			Convey("Then the confirmation is cancelled", func() {
				So(tr.State(), ShouldEqual, dwell.StateIdle)
				So(c.kinds(), ShouldBeEmpty)
			})
		})
	})
}

func TestActiveImpression(t *testing.T) {
	Convey("Given an active impression", t, func() {
		ctx := context.Background()
		clock := quartz.NewMock(t)
		c := &collector{}
		tr := dwell.New("about", c, dwell.WithClock(clock))
		tr.Observe(high)
		clock.Advance(time.Second).MustWait(ctx)
		So(tr.State(), ShouldEqual, dwell.StateActive)

		Convey("When visibility drops to partial", func() {
			tr.Observe(partial)

			Convey("Then the impression continues", func() {
				So(tr.State(), ShouldEqual, dwell.StateActive)
				So(c.kinds(), ShouldHaveLength, 1)
			})
		})

		Convey("When scroll depth reaches 40% and the section is left after 6s", func() {
			tr.Observe(dwell.Observation{IntersectionRatio: 0.4, Top: 600, Height: 1000, ViewportHeight: 1000})
			tr.Observe(dwell.Observation{IntersectionRatio: 0.2, Top: 800, Height: 1000, ViewportHeight: 1000})
			tr.RecordInteraction()
			clock.Advance(6 * time.Second).MustWait(ctx)
			tr.Observe(hidden)

			Convey("Then the end report carries duration, max depth and interactions", func() {
				So(tr.State(), ShouldEqual, dwell.StateIdle)
				So(c.kinds(), ShouldResemble, []dwell.ReportKind{dwell.ReportStart, dwell.ReportEnd})
				end := c.last()
				So(end.Duration, ShouldEqual, 6000)
				So(end.ScrollDepth, ShouldEqual, 40)
				So(end.Interactions, ShouldEqual, 1)
				So(end.InteractionID, ShouldEqual, c.reports[0].InteractionID)
			})
		})

		Convey("When the section is revisited", func() {
			tr.Observe(hidden)
			tr.Observe(high)
			clock.Advance(time.Second).MustWait(ctx)

			Convey("Then the new impression gets a fresh interaction id", func() {
				So(c.kinds(), ShouldHaveLength, 3)
				So(c.last().InteractionID, ShouldNotEqual, c.reports[0].InteractionID)
			})
		})

		Convey("When the tracker is flushed", func() {
			clock.Advance(2500 * time.Millisecond).MustWait(ctx)
			tr.Flush()

			Convey("Then the impression ends", func() {
				So(c.last().Kind, ShouldEqual, dwell.ReportEnd)
				So(c.last().Duration, ShouldEqual, 2500)
			})
		})
	})

	Convey("Given a pending tracker", t, func() {
		ctx := context.Background()
		clock := quartz.NewMock(t)
		c := &collector{}
		tr := dwell.New("about", c, dwell.WithClock(clock), dwell.WithConfirmationDelay(500*time.Millisecond))
		tr.Observe(high)

		Convey("When it is flushed before confirmation", func() {
			tr.Flush()
			clock.Advance(500 * time.Millisecond).MustWait(ctx)

			Convey("Then nothing is reported", func() {
				So(c.kinds(), ShouldBeEmpty)
				So(tr.State(), ShouldEqual, dwell.StateIdle)
			})
		})
	})

	Convey("Given an idle tracker", t, func() {
		tr := dwell.New("about", dwell.ReporterFunc(func(dwell.Report) {}), dwell.WithClock(quartz.NewMock(t)))

		Convey("Then interactions outside an impression are ignored", func() {
			tr.RecordInteraction()
			tr.Flush()
			So(tr.State(), ShouldEqual, dwell.StateIdle)
		})
	})
}
