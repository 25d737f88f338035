package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/metrics"
)

// Gorm drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type journeyRow struct {
	SessionID     string `gorm:"primaryKey;size:64"`
	VisitorID     string `gorm:"size:64;index"`
	LandingPage   string
	Referrer      string
	UserAgent     string
	DeviceType    string    `gorm:"size:32"`
	OS            string    `gorm:"column:os;size:64"`
	Browser       string    `gorm:"size:64"`
	DeviceName    string    `gorm:"size:128"`
	Country       string    `gorm:"size:64"`
	City          string    `gorm:"size:128"`
	IP            string    `gorm:"column:ip;size:64"`
	StartTime     time.Time `gorm:"index"`
	EndTime       time.Time
	TotalDuration int64
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`

	Impressions []impressionRow `gorm:"foreignKey:SessionID;references:SessionID"`
	Actions     []actionRow     `gorm:"foreignKey:SessionID;references:SessionID"`
}

func (journeyRow) TableName() string { return "journeys" }

type impressionRow struct {
	ID            uint      `gorm:"primaryKey"`
	SessionID     string    `gorm:"size:64;uniqueIndex:idx_impression_interaction"`
	InteractionID string    `gorm:"size:128;uniqueIndex:idx_impression_interaction"`
	SectionID     string    `gorm:"size:128"`
	ViewedAt      time.Time `gorm:"index"`
	Duration      int64
	ScrollDepth   int
	Interactions  int
}

func (impressionRow) TableName() string { return "section_impressions" }

type actionRow struct {
	ID         uint   `gorm:"primaryKey"`
	SessionID  string `gorm:"size:64;index"`
	Type       string `gorm:"size:64"`
	Target     string
	OccurredAt time.Time `gorm:"index"`
	Metadata   datatypes.JSON
}

func (actionRow) TableName() string { return "action_events" }

// GormStore persists journeys in SQL through gorm. Impressions and actions
// live in their own tables keyed by session id.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// OpenGorm opens a gorm connection for driver (sqlite or postgres).
func OpenGorm(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite allows one writer; a single connection serialises
		// transactions instead of failing them with "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", driver, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// NewGormStore migrates the journey tables and returns a store on db.
// The store owns db from here on: a failed migration closes it.
func NewGormStore(ctx context.Context, db *gorm.DB) (*GormStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&journeyRow{}, &impressionRow{}, &actionRow{}); err != nil {
		if sqlDB, e := db.DB(); e == nil {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate journeys: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateJourney(ctx context.Context, j model.Journey) error {
	if j.SessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrInvalidJourney)
	}
	defer observeWrite(time.Now())

	row := toJourneyRow(j)
	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create journey: %w", err)
	}
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateJourneysTotal(n)
	}
	return nil
}

func (s *GormStore) GetJourney(ctx context.Context, sessionID string) (model.Journey, error) {
	defer observeRead(time.Now())

	var row journeyRow
	err := s.withEvents(s.db.WithContext(ctx)).First(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Journey{}, ErrNotFound
	}
	if err != nil {
		return model.Journey{}, fmt.Errorf("get journey: %w", err)
	}
	j, err := row.toModel()
	if err != nil {
		return model.Journey{}, fmt.Errorf("get journey %s: %w", sessionID, err)
	}
	return j, nil
}

// lockJourney reads the journey columns a write needs. On postgres the row
// stays locked until the transaction ends, so writes to one session run one
// at a time and the derived totals never lose a concurrent impression.
// sqlite already serialises writers on its single connection.
func lockJourney(tx *gorm.DB, sessionID string, dest *journeyRow) *gorm.DB {
	q := tx.Select("session_id", "visitor_id", "end_time")
	if tx.Dialector.Name() == DriverPostgres {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q.First(dest, "session_id = ?", sessionID)
}

func (s *GormStore) UpsertImpression(ctx context.Context, sessionID string, p model.ImpressionPatch, now time.Time) (Write, error) {
	defer observeWrite(time.Now())

	p = p.Normalize()
	now = now.UTC()
	var w Write
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j journeyRow
		if err := lockJourney(tx, sessionID, &j).Error; err != nil {
			return err
		}
		w.VisitorID = j.VisitorID

		var existing int64
		if err := tx.Model(&impressionRow{}).
			Where("session_id = ? AND interaction_id = ?", sessionID, p.InteractionID).
			Count(&existing).Error; err != nil {
			return err
		}
		w.Merged = existing > 0

		row, cols := toImpressionRow(sessionID, p, now)
		conflict := clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}, {Name: "interaction_id"}},
		}
		if len(cols) == 0 {
			conflict.DoNothing = true
		} else {
			conflict.DoUpdates = clause.AssignmentColumns(cols)
		}
		if err := tx.Clauses(conflict).Create(&row).Error; err != nil {
			return err
		}

		var total int64
		if err := tx.Model(&impressionRow{}).
			Where("session_id = ?", sessionID).
			Select("COALESCE(SUM(duration), 0)").
			Scan(&total).Error; err != nil {
			return err
		}
		return tx.Model(&journeyRow{}).
			Where("session_id = ?", sessionID).
			Updates(touchColumns(j.EndTime, now, map[string]any{"total_duration": total})).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Write{}, ErrNotFound
	}
	if err != nil {
		return Write{}, fmt.Errorf("upsert impression: %w", err)
	}
	return w, nil
}

func (s *GormStore) AppendAction(ctx context.Context, sessionID string, a model.ActionEvent, now time.Time) (Write, error) {
	defer observeWrite(time.Now())

	now = now.UTC()
	if a.Timestamp.IsZero() {
		a.Timestamp = now
	}
	row, err := toActionRow(sessionID, a)
	if err != nil {
		return Write{}, err
	}
	var w Write
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var j journeyRow
		if err := lockJourney(tx, sessionID, &j).Error; err != nil {
			return err
		}
		w.VisitorID = j.VisitorID
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&journeyRow{}).
			Where("session_id = ?", sessionID).
			Updates(touchColumns(j.EndTime, now, map[string]any{})).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Write{}, ErrNotFound
	}
	if err != nil {
		return Write{}, fmt.Errorf("append action: %w", err)
	}
	return w, nil
}

func (s *GormStore) ListJourneys(ctx context.Context, since time.Time) ([]model.Journey, error) {
	defer observeRead(time.Now())

	q := s.withEvents(s.db.WithContext(ctx)).Order("start_time ASC, session_id ASC")
	if !since.IsZero() {
		q = q.Where("start_time >= ?", since.UTC())
	}
	var rows []journeyRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list journeys: %w", err)
	}
	out := make([]model.Journey, 0, len(rows))
	for _, r := range rows {
		j, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("list journeys: %s: %w", r.SessionID, err)
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&journeyRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count journeys: %w", err)
	}
	return int(n), nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) withEvents(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Impressions", func(db *gorm.DB) *gorm.DB { return db.Order("viewed_at ASC, id ASC") }).
		Preload("Actions", func(db *gorm.DB) *gorm.DB { return db.Order("occurred_at ASC, id ASC") })
}

func touchColumns(endTime, now time.Time, cols map[string]any) map[string]any {
	cols["updated_at"] = now
	if now.After(endTime) {
		cols["end_time"] = now
	}
	return cols
}

func toJourneyRow(j model.Journey) journeyRow {
	return journeyRow{
		SessionID:     j.SessionID,
		VisitorID:     j.VisitorID,
		LandingPage:   j.LandingPage,
		Referrer:      j.Referrer,
		UserAgent:     j.UserAgent,
		DeviceType:    j.Device.Type,
		OS:            j.Device.OS,
		Browser:       j.Device.Browser,
		DeviceName:    j.Device.DeviceName,
		Country:       j.Location.Country,
		City:          j.Location.City,
		IP:            j.Location.IP,
		StartTime:     j.StartTime.UTC(),
		EndTime:       j.EndTime.UTC(),
		TotalDuration: j.TotalDuration,
		UpdatedAt:     j.UpdatedAt.UTC(),
	}
}

// toImpressionRow builds the insert row and the columns a conflicting
// insert may overwrite.
func toImpressionRow(sessionID string, p model.ImpressionPatch, now time.Time) (impressionRow, []string) {
	row := impressionRow{
		SessionID:     sessionID,
		InteractionID: p.InteractionID,
		SectionID:     p.SectionID,
		ViewedAt:      now,
	}
	var cols []string
	if p.Duration != nil {
		row.Duration = *p.Duration
		cols = append(cols, "duration")
	}
	if p.ScrollDepth != nil {
		row.ScrollDepth = *p.ScrollDepth
		cols = append(cols, "scroll_depth")
	}
	if p.Interactions != nil {
		row.Interactions = *p.Interactions
		cols = append(cols, "interactions")
	}
	return row, cols
}

func toActionRow(sessionID string, a model.ActionEvent) (actionRow, error) {
	row := actionRow{
		SessionID:  sessionID,
		Type:       a.Type,
		Target:     a.Target,
		OccurredAt: a.Timestamp.UTC(),
	}
	if len(a.Metadata) > 0 {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return actionRow{}, fmt.Errorf("%w: metadata: %w", ErrInvalidJourney, err)
		}
		row.Metadata = datatypes.JSON(b)
	}
	return row, nil
}

func (r journeyRow) toModel() (model.Journey, error) {
	j := model.Journey{
		SessionID:   r.SessionID,
		VisitorID:   r.VisitorID,
		LandingPage: r.LandingPage,
		Referrer:    r.Referrer,
		UserAgent:   r.UserAgent,
		Device: model.Device{
			Type:       r.DeviceType,
			OS:         r.OS,
			Browser:    r.Browser,
			DeviceName: r.DeviceName,
		},
		Location: model.Location{
			Country: r.Country,
			City:    r.City,
			IP:      r.IP,
		},
		StartTime:     r.StartTime.UTC(),
		EndTime:       r.EndTime.UTC(),
		TotalDuration: r.TotalDuration,
		UpdatedAt:     r.UpdatedAt.UTC(),
		Impressions:   make([]model.SectionImpression, 0, len(r.Impressions)),
		Actions:       make([]model.ActionEvent, 0, len(r.Actions)),
	}
	for _, imp := range r.Impressions {
		j.Impressions = append(j.Impressions, model.SectionImpression{
			InteractionID: imp.InteractionID,
			SectionID:     imp.SectionID,
			ViewedAt:      imp.ViewedAt.UTC(),
			Duration:      imp.Duration,
			ScrollDepth:   imp.ScrollDepth,
			Interactions:  imp.Interactions,
		})
	}
	for _, a := range r.Actions {
		ev := model.ActionEvent{
			Type:      a.Type,
			Target:    a.Target,
			Timestamp: a.OccurredAt.UTC(),
		}
		if len(a.Metadata) > 0 {
			if err := json.Unmarshal(a.Metadata, &ev.Metadata); err != nil {
				return model.Journey{}, fmt.Errorf("%w: action %d metadata: %w", ErrCorruptRow, a.ID, err)
			}
		}
		j.Actions = append(j.Actions, ev)
	}
	return j, nil
}
