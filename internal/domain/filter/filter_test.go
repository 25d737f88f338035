package filter_test

import (
	"testing"
	"time"

	"github.com/okian/footprint/internal/domain/filter"
	"github.com/okian/footprint/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func journey(session, visitor, city string, started time.Time, durationMS int64) model.Journey {
	j := model.NewJourney(session, visitor, started)
	j.LandingPage = "/blog/" + session
	j.Location = model.Location{Country: "DE", City: city}
	j.Device = model.Device{Type: "desktop", OS: "Linux", Browser: "Firefox"}
	j.TotalDuration = durationMS
	return j
}

func TestLocationUnknownSentinel(t *testing.T) {
	Convey("Given journeys with missing, empty, literal and real cities", t, func() {
		journeys := []model.Journey{
			journey("s-empty", "v-1", "", now, 0),
			journey("s-literal", "v-2", "Unknown", now, 0),
			journey("s-berlin", "v-3", "Berlin", now, 0),
			journey("s-paris", "v-4", "Paris", now, 0),
		}

		Convey("When filtering by Unknown", func() {
			got := filter.Build(filter.Params{Locations: []string{"Unknown"}}).Apply(journeys, now)

			Convey("Then missing, empty and literal Unknown cities match", func() {
				So(sessionIDs(got), ShouldResemble, []string{"s-empty", "s-literal"})
			})
		})

		Convey("When filtering by Unknown and Berlin", func() {
			got := filter.Build(filter.Params{Locations: []string{"Unknown,Berlin"}}).Apply(journeys, now)

			Convey("Then the union is returned", func() {
				So(sessionIDs(got), ShouldResemble, []string{"s-empty", "s-literal", "s-berlin"})
			})
		})
	})
}

func TestDurationRange(t *testing.T) {
	Convey("Given journeys with 2s, 10s and 90s total duration", t, func() {
		journeys := []model.Journey{
			journey("s-2", "v", "Berlin", now, 2_000),
			journey("s-10", "v", "Berlin", now, 10_000),
			journey("s-90", "v", "Berlin", now, 90_000),
		}

		Convey("When bounds are given in seconds", func() {
			got := filter.Build(filter.Params{MinDuration: "5", MaxDuration: "60"}).Apply(journeys, now)

			Convey("Then they are compared in milliseconds", func() {
				So(sessionIDs(got), ShouldResemble, []string{"s-10"})
			})
		})

		Convey("When bounds are inclusive and fractional", func() {
			got := filter.Build(filter.Params{MinDuration: "2.0", MaxDuration: "10"}).Apply(journeys, now)

			So(sessionIDs(got), ShouldResemble, []string{"s-2", "s-10"})
		})

		Convey("When a bound is unparseable", func() {
			f := filter.Build(filter.Params{MinDuration: "abc", MaxDuration: "-3"})

			Convey("Then no duration criterion is added", func() {
				So(f.Criteria, ShouldBeEmpty)
				So(f.Apply(journeys, now), ShouldHaveLength, 3)
			})
		})
	})
}

func TestTimeWindow(t *testing.T) {
	Convey("Given journeys started over the last weeks", t, func() {
		journeys := []model.Journey{
			journey("s-now", "v", "", now.Add(-time.Hour), 0),
			journey("s-yesterday", "v", "", now.Add(-20*time.Hour), 0),
			journey("s-week", "v", "", now.Add(-6*24*time.Hour), 0),
			journey("s-month", "v", "", now.Add(-20*24*time.Hour), 0),
			journey("s-old", "v", "", now.Add(-90*24*time.Hour), 0),
		}

		Convey("Then each window keeps its range", func() {
			So(sessionIDs(filter.Build(filter.Params{Range: "today"}).Apply(journeys, now)), ShouldResemble, []string{"s-now"})
			So(filter.Build(filter.Params{Range: "7d"}).Apply(journeys, now), ShouldHaveLength, 3)
			So(filter.Build(filter.Params{Range: "30d"}).Apply(journeys, now), ShouldHaveLength, 4)
			So(filter.Build(filter.Params{Range: "all"}).Apply(journeys, now), ShouldHaveLength, 5)
			So(filter.Build(filter.Params{Range: "bogus"}).Apply(journeys, now), ShouldHaveLength, 5)
		})

		Convey("Then Since exposes the storage lower bound", func() {
			So(filter.Build(filter.Params{Range: "7d"}).Since(now), ShouldEqual, now.Add(-7*24*time.Hour))
			So(filter.Build(filter.Params{}).Since(now).IsZero(), ShouldBeTrue)
		})
	})
}

func TestSearchAndFields(t *testing.T) {
	Convey("Given journeys with different devices and interactions", t, func() {
		a := journey("s-a", "visitor-alpha", "Berlin", now, 0)
		a.Impressions = []model.SectionImpression{{InteractionID: "i", SectionID: "Pricing"}}
		b := journey("s-b", "visitor-beta", "Berlin", now, 0)
		b.Device = model.Device{Type: "mobile", OS: "iOS", Browser: "Safari"}
		b.Actions = []model.ActionEvent{{Type: "click", Target: "cta", Metadata: map[string]any{"label": "Download Resume"}}}
		journeys := []model.Journey{a, b}

		Convey("When searching free text case-insensitively", func() {
			So(sessionIDs(filter.Build(filter.Params{Search: "ALPHA"}).Apply(journeys, now)), ShouldResemble, []string{"s-a"})
			So(sessionIDs(filter.Build(filter.Params{Search: "/blog/s-b"}).Apply(journeys, now)), ShouldResemble, []string{"s-b"})
		})

		Convey("When searching interactions", func() {
			So(sessionIDs(filter.Build(filter.Params{Interaction: "pricing"}).Apply(journeys, now)), ShouldResemble, []string{"s-a"})
			So(sessionIDs(filter.Build(filter.Params{Interaction: "resume"}).Apply(journeys, now)), ShouldResemble, []string{"s-b"})
			So(sessionIDs(filter.Build(filter.Params{Interaction: "CLICK"}).Apply(journeys, now)), ShouldResemble, []string{"s-b"})
		})

		Convey("When selecting device fields", func() {
			Convey("Then values match any within a field", func() {
				got := filter.Build(filter.Params{Devices: []string{"mobile", "desktop"}}).Apply(journeys, now)
				So(got, ShouldHaveLength, 2)
			})

			Convey("Then fields combine with AND", func() {
				got := filter.Build(filter.Params{Devices: []string{"mobile,desktop"}, Browsers: []string{"Firefox"}}).Apply(journeys, now)
				So(sessionIDs(got), ShouldResemble, []string{"s-a"})
			})
		})
	})
}

func TestSplitValues(t *testing.T) {
	Convey("Given repeated and comma separated values", t, func() {
		So(filter.SplitValues([]string{"a, b", "", " c ", ","}), ShouldResemble, []string{"a", "b", "c"})
		So(filter.SplitValues(nil), ShouldBeNil)
	})
}

func sessionIDs(js []model.Journey) []string {
	out := make([]string, 0, len(js))
	for _, j := range js {
		out = append(out, j.SessionID)
	}
	return out
}
