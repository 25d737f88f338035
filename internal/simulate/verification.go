package simulate

import (
	"context"
	"fmt"
)

type totals struct {
	sessions int
	events   int
}

func snapshot(ctx context.Context, api *apiClient) (totals, error) {
	s, err := api.summary(ctx, "session")
	if err != nil {
		return totals{}, fmt.Errorf("session summary: %w", err)
	}
	e, err := api.summary(ctx, "event")
	if err != nil {
		return totals{}, fmt.Errorf("event summary: %w", err)
	}
	return totals{sessions: s.Pagination.Total, events: e.Pagination.Total}, nil
}

// verify checks that every started visitor produced one session and that
// every planned impression and action is listed in the event view and the
// export.
func verify(ctx context.Context, api *apiClient, before totals, stats *Stats) error {
	after, err := snapshot(ctx, api)
	if err != nil {
		return err
	}
	stats.SessionsReported = after.sessions - before.sessions
	stats.EventsReported = after.events - before.events

	if stats.SessionsReported != stats.VisitorsStarted {
		return fmt.Errorf("expected %d new sessions, dashboard reports %d", stats.VisitorsStarted, stats.SessionsReported)
	}
	if want := stats.ImpressionsPlanned + stats.ActionsPlanned; stats.EventsReported != want {
		return fmt.Errorf("expected %d new events, dashboard reports %d", want, stats.EventsReported)
	}

	rows, err := api.exportRows(ctx, "session")
	if err != nil {
		return err
	}
	if len(rows) != after.sessions {
		return fmt.Errorf("session export has %d rows, query reports %d", len(rows), after.sessions)
	}
	return nil
}
