package export_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/internal/domain/export"
	"github.com/okian/footprint/internal/domain/model"
)

func TestEmptyExport(t *testing.T) {
	Convey("Given no matching rows", t, func() {
		visitors, errV := export.Visitors(nil)
		sessions, errS := export.Sessions(nil)
		events, errE := export.Events(nil)

		Convey("Then every view renders exactly one header line", func() {
			So(errV, ShouldBeNil)
			So(errS, ShouldBeNil)
			So(errE, ShouldBeNil)
			for _, out := range [][]byte{visitors, sessions, events} {
				So(strings.Count(string(out), "\n"), ShouldEqual, 1)
			}
			So(string(events), ShouldEqual, "Visitor ID,Session ID,Type,Timestamp,Detail,Duration (s),Metadata\n")
		})
	})
}

func TestSessionExportEscaping(t *testing.T) {
	Convey("Given a landing page with a comma and a double quote", t, func() {
		landing := `/blog?tags=go,csv&title="quoted"`
		start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
		j := model.NewJourney("s-1", "v-1", start)
		j.LandingPage = landing
		j.TotalDuration = 6000
		j.Impressions = []model.SectionImpression{{InteractionID: "i"}}

		out, err := export.Sessions([]model.Journey{j})
		So(err, ShouldBeNil)

		Convey("When it is read back with a standard parser", func() {
			records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
			So(err, ShouldBeNil)

			Convey("Then the value round-trips and formats are applied", func() {
				So(records, ShouldHaveLength, 2)
				So(records[0], ShouldResemble, export.SessionHeader)
				So(records[1][4], ShouldEqual, landing)
				So(records[1][2], ShouldEqual, "2026-03-01T09:00:00Z")
				So(records[1][12], ShouldEqual, "1")
				So(records[1][14], ShouldEqual, "6.00")
			})

			Convey("Then the raw line quotes the field and doubles inner quotes", func() {
				So(string(out), ShouldContainSubstring, `"/blog?tags=go,csv&title=""quoted"""`)
			})
		})
	})
}

func TestEventExport(t *testing.T) {
	Convey("Given an impression and an action row", t, func() {
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		out, err := export.Events([]model.EventRow{
			{VisitorID: "v", SessionID: "s", Kind: model.EventKindView, Timestamp: at, Detail: "about", Duration: 6000,
				Metadata: map[string]any{"scrollDepth": 40}},
			{VisitorID: "v", SessionID: "s", Kind: model.EventKindAction, Timestamp: at.Add(500 * time.Millisecond), Detail: "click: resume-button"},
		})
		So(err, ShouldBeNil)
		records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
		So(err, ShouldBeNil)

		Convey("Then metadata is compact JSON and durations are seconds", func() {
			So(records, ShouldHaveLength, 3)
			So(records[1], ShouldResemble, []string{"v", "s", "View", "2026-03-01T10:00:00Z", "about", "6.00", `{"scrollDepth":40}`})
			So(records[2][4], ShouldEqual, "click: resume-button")
			So(records[2][5], ShouldEqual, "0.00")
			So(records[2][6], ShouldEqual, "")
		})
	})
}

func TestVisitorExport(t *testing.T) {
	Convey("Given a visitor summary", t, func() {
		out, err := export.Visitors([]model.VisitorSummary{{
			VisitorID: "v", LastSessionID: "s", SessionCount: 2, TotalDuration: 1234,
			Location: model.Location{Country: "DE", City: "Berlin"},
		}})
		So(err, ShouldBeNil)
		records, _ := csv.NewReader(bytes.NewReader(out)).ReadAll()

		Convey("Then counts and rounding are rendered", func() {
			So(records[1][9], ShouldEqual, "2")
			So(records[1][10], ShouldEqual, "1.23")
			So(records[1][11], ShouldEqual, "")
		})
	})
}

func TestFilename(t *testing.T) {
	Convey("Given a view and a date", t, func() {
		So(export.Filename("session", time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)), ShouldEqual, "journeys-session-2026-03-01.csv")
	})
}
