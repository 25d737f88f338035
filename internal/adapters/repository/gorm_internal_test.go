package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/okian/footprint/internal/domain/model"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := OpenGorm(DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestLockJourney(t *testing.T) {
	Convey("Given the journey read that guards a write", t, func() {
		lock := func(tx *gorm.DB) *gorm.DB {
			var row journeyRow
			return lockJourney(tx, "s-1", &row)
		}

		Convey("When it runs on postgres", func() {
			db, err := gorm.Open(postgres.Open("host=localhost user=footprint dbname=footprint sslmode=disable"),
				&gorm.Config{DryRun: true, DisableAutomaticPing: true})
			So(err, ShouldBeNil)
			sql := db.ToSQL(lock)

			Convey("Then the row is locked for update", func() {
				So(sql, ShouldContainSubstring, `FROM "journeys"`)
				So(sql, ShouldEndWith, "FOR UPDATE")
			})
		})

		Convey("When it runs on sqlite", func() {
			db := openSQLite(t)
			defer func() {
				sqlDB, _ := db.DB()
				_ = sqlDB.Close()
			}()
			sql := db.ToSQL(lock)

			Convey("Then no locking clause is emitted", func() {
				So(sql, ShouldContainSubstring, "journeys")
				So(sql, ShouldNotContainSubstring, "FOR UPDATE")
			})
		})
	})
}

func TestGormStoreCorruptMetadata(t *testing.T) {
	Convey("Given a stored action whose metadata is not valid JSON", t, func() {
		ctx := context.Background()
		s, err := NewGormStore(ctx, openSQLite(t))
		So(err, ShouldBeNil)
		defer func() { _ = s.Close() }()

		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		So(s.CreateJourney(ctx, model.NewJourney("s-1", "v-1", at)), ShouldBeNil)
		_, err = s.AppendAction(ctx, "s-1", model.ActionEvent{Type: "click", Metadata: map[string]any{"k": "v"}}, at)
		So(err, ShouldBeNil)
		So(s.db.Exec("UPDATE action_events SET metadata = ? WHERE session_id = ?", "{broken", "s-1").Error, ShouldBeNil)

		Convey("When the journey is read back", func() {
			_, getErr := s.GetJourney(ctx, "s-1")
			_, listErr := s.ListJourneys(ctx, time.Time{})

			Convey("Then both reads fail with ErrCorruptRow", func() {
				So(errors.Is(getErr, ErrCorruptRow), ShouldBeTrue)
				So(getErr.Error(), ShouldContainSubstring, "s-1")
				So(errors.Is(listErr, ErrCorruptRow), ShouldBeTrue)
			})
		})
	})
}

func TestNewGormStoreMigrateFailure(t *testing.T) {
	Convey("Given a database where the journeys name is taken by a view", t, func() {
		db := openSQLite(t)
		So(db.Exec("CREATE VIEW journeys AS SELECT 1 AS session_id").Error, ShouldBeNil)

		Convey("When the store is created", func() {
			_, err := NewGormStore(context.Background(), db)

			Convey("Then migration fails and the pool is closed", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "migrate journeys")
				sqlDB, dbErr := db.DB()
				So(dbErr, ShouldBeNil)
				So(sqlDB.Ping(), ShouldNotBeNil)
			})
		})
	})
}
