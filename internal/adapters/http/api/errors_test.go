package api_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/footprint/internal/adapters/http/api"
	"github.com/okian/footprint/internal/domain/ingest"
)

func TestOpErrors(t *testing.T) {
	Convey("Given a wrapped ingestion error", t, func() {
		err := api.WrapKind("api.record_action", api.ErrNotFound, ingest.ErrUnknownSession)

		Convey("Then both the kind and the cause match", func() {
			So(errors.Is(err, api.ErrNotFound), ShouldBeTrue)
			So(errors.Is(err, ingest.ErrUnknownSession), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "api.record_action: not found: ")
		})
	})

	Convey("Given a kind-only error", t, func() {
		err := api.NewKind("api.ingest", api.ErrRateLimited)

		So(errors.Is(err, api.ErrRateLimited), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "api.ingest: rate limited")
	})
}
