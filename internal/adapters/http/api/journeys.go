package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/okian/footprint/internal/domain/ingest"
	"github.com/okian/footprint/pkg/logger"
)

// sessionRequest mirrors the OpenAPI schema for POST /api/journeys/sessions.
type sessionRequest struct {
	VisitorID   string `json:"visitorId"`
	LandingPage string `json:"landingPage"`
	Referrer    string `json:"referrer"`
	UserAgent   string `json:"userAgent"`
}

// impressionRequest mirrors POST /api/journeys/impressions. Browsers report
// fractional milliseconds and percentages.
type impressionRequest struct {
	SessionID     string   `json:"sessionId"`
	InteractionID string   `json:"interactionId"`
	SectionID     string   `json:"sectionId"`
	Duration      *float64 `json:"duration"`
	ScrollDepth   *float64 `json:"scrollDepth"`
	Interactions  *int     `json:"interactions"`
}

// actionRequest mirrors POST /api/journeys/actions.
type actionRequest struct {
	SessionID string         `json:"sessionId"`
	ActionID  string         `json:"actionId"`
	Type      string         `json:"type"`
	Target    string         `json:"target"`
	Metadata  map[string]any `json:"metadata"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// JourneysHandler handles tracker ingestion.
type JourneysHandler struct {
	ingestor Ingestor
	timeout  time.Duration
	log      logger.Logger
}

// NewJourneysHandler creates a new ingestion handler.
func NewJourneysHandler(ingestor Ingestor, timeout time.Duration, log logger.Logger) *JourneysHandler {
	return &JourneysHandler{ingestor: ingestor, timeout: timeout, log: log}
}

// HandleCreateSession handles POST /api/journeys/sessions.
func (h *JourneysHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req sessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}
	loc := locate(r)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	j, err := h.ingestor.CreateSession(ctx, ingest.SessionInput{
		VisitorID:   req.VisitorID,
		LandingPage: req.LandingPage,
		Referrer:    req.Referrer,
		UserAgent:   req.UserAgent,
		IP:          loc.IP,
		Country:     loc.Country,
		City:        loc.City,
	})
	if err != nil {
		h.writeIngestError(ctx, w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: j.SessionID})
}

// HandleRecordImpression handles POST /api/journeys/impressions.
func (h *JourneysHandler) HandleRecordImpression(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_impression"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req impressionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	in := ingest.ImpressionInput{
		SessionID:     req.SessionID,
		InteractionID: req.InteractionID,
		SectionID:     req.SectionID,
		Interactions:  req.Interactions,
	}
	if req.Duration != nil {
		d := int64(math.Round(*req.Duration))
		in.Duration = &d
	}
	if req.ScrollDepth != nil {
		d := int(math.Round(*req.ScrollDepth))
		in.ScrollDepth = &d
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if _, err := h.ingestor.RecordImpression(ctx, in); err != nil {
		h.writeIngestError(ctx, w, op, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandleRecordAction handles POST /api/journeys/actions.
func (h *JourneysHandler) HandleRecordAction(w http.ResponseWriter, r *http.Request) {
	const op = "api.record_action"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	dup, err := h.ingestor.RecordAction(ctx, ingest.ActionInput{
		SessionID: req.SessionID,
		ActionID:  req.ActionID,
		Type:      req.Type,
		Target:    req.Target,
		Metadata:  req.Metadata,
	})
	if err != nil {
		h.writeIngestError(ctx, w, op, err)
		return
	}
	status := "accepted"
	if dup {
		status = "duplicate"
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: status, Duplicate: dup})
}

func (h *JourneysHandler) writeIngestError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ingest.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, ingest.ErrUnknownSession):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	default:
		h.log.Error(ctx, "ingestion request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}

// decodeBody reads a JSON body whatever the declared content type, since
// keepalive beacons arrive as text/plain.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
