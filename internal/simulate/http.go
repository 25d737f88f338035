package simulate

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// apiClient reads the dashboard endpoints.
type apiClient struct {
	client  *http.Client
	baseURL string
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	c := cleanhttp.DefaultPooledClient()
	c.Timeout = timeout
	return &apiClient{client: c, baseURL: baseURL}
}

func (c *apiClient) get(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return resp, nil
}

// health checks /healthz. Any 200 counts since it serves Prometheus metrics.
func (c *apiClient) health(ctx context.Context) error {
	resp, err := c.get(ctx, "/healthz", nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

type pagination struct {
	Total int `json:"total"`
}

type stats struct {
	TotalSessions int   `json:"totalSessions"`
	TotalDuration int64 `json:"totalDuration"`
	TotalEvents   int   `json:"totalEvents"`
}

type queryResponse struct {
	View       string     `json:"view"`
	Pagination pagination `json:"pagination"`
	Stats      stats      `json:"stats"`
}

// summary returns the totals of view with no filters applied.
func (c *apiClient) summary(ctx context.Context, view string) (queryResponse, error) {
	resp, err := c.get(ctx, "/api/journeys", url.Values{"view": {view}, "limit": {"1"}})
	if err != nil {
		return queryResponse{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return queryResponse{}, fmt.Errorf("decode %s summary: %w", view, err)
	}
	return out, nil
}

// exportRows downloads the CSV export of view and returns its data rows.
func (c *apiClient) exportRows(ctx context.Context, view string) ([][]string, error) {
	resp, err := c.get(ctx, "/api/journeys/export", url.Values{"view": {view}})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s export: %w", view, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s export has no header", view)
	}
	return records[1:], nil
}
