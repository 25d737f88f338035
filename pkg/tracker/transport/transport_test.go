package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/pkg/tracker/transport"
)

func TestClient(t *testing.T) {
	Convey("Given a journeys API", t, func() {
		var (
			gotPath, gotType, gotUA, gotEdge string
			gotBody                          map[string]any
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath, gotType, gotUA = r.URL.Path, r.Header.Get("Content-Type"), r.Header.Get("User-Agent")
			gotEdge = r.Header.Get("X-Vercel-IP-City")
			b, _ := io.ReadAll(r.Body)
			gotBody = nil
			_ = json.Unmarshal(b, &gotBody)
			switch r.URL.Path {
			case transport.SessionsPath:
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"sessionId":"s-1"}`))
			case transport.ActionsPath:
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":"not_found","message":"unknown session"}`))
			default:
				w.WriteHeader(http.StatusAccepted)
			}
		}))
		defer srv.Close()
		c := transport.New(srv.URL+"/", transport.WithHeader("X-Vercel-IP-City", "Berlin"))
		ctx := context.Background()

		Convey("When a session is created", func() {
			id, err := c.CreateSession(ctx, "v_1", "/about", "https://ref", "agent/1.0")

			Convey("Then the id is returned and the user agent forwarded", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "s-1")
				So(gotPath, ShouldEqual, transport.SessionsPath)
				So(gotType, ShouldEqual, "application/json")
				So(gotUA, ShouldEqual, "agent/1.0")
				So(gotEdge, ShouldEqual, "Berlin")
				So(gotBody["visitorId"], ShouldEqual, "v_1")
			})
		})

		Convey("When an impression start is sent", func() {
			zero := int64(0)
			err := c.RecordImpression(ctx, transport.ImpressionRequest{SessionID: "s-1", InteractionID: "i", SectionID: "about", Duration: &zero})

			Convey("Then it goes out as a plain text beacon with only present fields", func() {
				So(err, ShouldBeNil)
				So(gotType, ShouldEqual, "text/plain;charset=UTF-8")
				So(gotBody["duration"], ShouldEqual, float64(0))
				_, hasDepth := gotBody["scrollDepth"]
				So(hasDepth, ShouldBeFalse)
			})
		})

		Convey("When the API rejects a report", func() {
			err := c.SendAction(ctx, transport.ActionRequest{SessionID: "missing", Type: "click"})

			Convey("Then a status error is returned", func() {
				var se *transport.StatusError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Code, ShouldEqual, http.StatusNotFound)
				So(se.Message, ShouldEqual, "unknown session")
				So(errors.Is(err, transport.ErrUnexpectedStatus), ShouldBeTrue)
			})
		})
	})
}
