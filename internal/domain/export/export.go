// Package export renders journey views as RFC 4180 CSV. Files are rendered
// completely in memory so a failure never produces a partial download.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/footprint/internal/domain/model"
)

// Column headers per view.
var (
	VisitorHeader = []string{
		"Visitor ID", "Last Session ID", "Landing Page", "Referrer", "Device", "OS",
		"Browser", "Country", "City", "Sessions", "Total Duration (s)", "Last Seen",
	}
	SessionHeader = []string{
		"Session ID", "Visitor ID", "Start Time", "End Time", "Landing Page", "Referrer",
		"Device", "OS", "Browser", "Country", "City", "IP", "Impressions", "Actions",
		"Total Duration (s)",
	}
	EventHeader = []string{
		"Visitor ID", "Session ID", "Type", "Timestamp", "Detail", "Duration (s)", "Metadata",
	}
)

// ContentType is the media type of rendered files.
const ContentType = "text/csv; charset=utf-8"

// Filename returns the attachment name for a view exported at now.
func Filename(view string, now time.Time) string {
	return fmt.Sprintf("journeys-%s-%s.csv", view, now.Format("2006-01-02"))
}

// Visitors renders the visitor view.
func Visitors(rows []model.VisitorSummary) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.VisitorID,
			r.LastSessionID,
			r.LandingPage,
			r.Referrer,
			r.Device.Type,
			r.Device.OS,
			r.Device.Browser,
			r.Location.Country,
			r.Location.City,
			strconv.Itoa(r.SessionCount),
			Seconds(r.TotalDuration),
			Timestamp(r.LastSeen),
		})
	}
	return render(VisitorHeader, records)
}

// Sessions renders the session view.
func Sessions(rows []model.Journey) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for i := range rows {
		j := &rows[i]
		records = append(records, []string{
			j.SessionID,
			j.VisitorID,
			Timestamp(j.StartTime),
			Timestamp(j.EndTime),
			j.LandingPage,
			j.Referrer,
			j.Device.Type,
			j.Device.OS,
			j.Device.Browser,
			j.Location.Country,
			j.Location.City,
			j.Location.IP,
			strconv.Itoa(len(j.Impressions)),
			strconv.Itoa(len(j.Actions)),
			Seconds(j.TotalDuration),
		})
	}
	return render(SessionHeader, records)
}

// Events renders the event view.
func Events(rows []model.EventRow) ([]byte, error) {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		md := ""
		if len(r.Metadata) > 0 {
			b, err := json.Marshal(r.Metadata)
			if err != nil {
				return nil, fmt.Errorf("encode metadata for session %s: %w", r.SessionID, err)
			}
			md = string(b)
		}
		records = append(records, []string{
			r.VisitorID,
			r.SessionID,
			r.Kind,
			Timestamp(r.Timestamp),
			r.Detail,
			Seconds(r.Duration),
			md,
		})
	}
	return render(EventHeader, records)
}

// Seconds formats milliseconds as seconds with two decimals.
func Seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 2, 64)
}

// Timestamp formats t as RFC 3339 in UTC; the zero time is empty.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func render(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write rows: %w", err)
	}
	return buf.Bytes(), nil
}
