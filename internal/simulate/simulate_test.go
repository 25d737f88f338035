package simulate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/internal/adapters/http/api"
	"github.com/okian/footprint/internal/adapters/repository"
	"github.com/okian/footprint/internal/domain/ingest"
	"github.com/okian/footprint/internal/domain/query"
	"github.com/okian/footprint/pkg/logger"
)

type noStats struct{}

func (noStats) GetStats() map[string]any { return map[string]any{} }

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGeneratePlans(t *testing.T) {
	Convey("Given a fixed seed", t, func() {
		a := generatePlans(20, 42)
		b := generatePlans(20, 42)

		Convey("Then plans are reproducible and well formed", func() {
			So(a, ShouldResemble, b)
			for _, p := range a {
				So(p.UserAgent, ShouldNotBeEmpty)
				So(len(p.Visits), ShouldBeBetweenOrEqual, 1, len(sections))
				for _, v := range p.Visits {
					So(int64(v.Dwell), ShouldBeBetweenOrEqual, int64(minDwell), int64(maxDwell))
					So(v.ScrollDepth, ShouldBeBetweenOrEqual, 30, 100)
				}
				for _, c := range p.Clicks {
					So(c.After, ShouldBeLessThan, len(p.Visits))
				}
			}
		})
	})
}

func TestDepthObservation(t *testing.T) {
	Convey("Given a requested depth", t, func() {
		So(depthObservation(40).ScrollDepth(), ShouldEqual, 40)
		So(depthObservation(100).ScrollDepth(), ShouldEqual, 100)
	})
}

func TestRun(t *testing.T) {
	Convey("Given a journeys API", t, func() {
		store := repository.NewMemoryStore()
		s := api.NewServer(ingest.New(store), query.New(store), noStats{})
		mux := http.NewServeMux()
		s.Register(context.Background(), mux)
		srv := httptest.NewServer(s.Handler(mux))
		defer srv.Close()

		Convey("When a few visitors are simulated", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			stats, err := Run(ctx, Config{BaseURL: srv.URL, Visitors: 4, Workers: 4, TimeScale: 0.02, Seed: 7})

			Convey("Then the dashboard reports every session and event", func() {
				So(err, ShouldBeNil)
				So(stats.VisitorsStarted, ShouldEqual, 4)
				So(stats.SessionsReported, ShouldEqual, 4)
				So(stats.EventsReported, ShouldEqual, stats.ImpressionsPlanned+stats.ActionsPlanned)
			})
		})
	})

	Convey("Given no service", t, func() {
		_, err := Run(context.Background(), Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
		So(err, ShouldNotBeNil)
	})
}
