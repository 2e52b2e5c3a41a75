// Package handlers provides HTTP handlers for portfolio analytics.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/aristath/propfolio/internal/modules/analytics"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// MaxPlaceholderMonths bounds the placeholder series length
const MaxPlaceholderMonths = 60

const contentTypeMsgpack = "application/msgpack"

// AnalyticsProvider is the service surface the handlers need
type AnalyticsProvider interface {
	GetAnalytics(ctx context.Context) (*analytics.AnalyticsData, error)
	PlaceholderPerformance(months int) []analytics.PerformancePoint
}

// Handler handles analytics HTTP requests
type Handler struct {
	service AnalyticsProvider
	log     zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service AnalyticsProvider, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "analytics").Logger(),
	}
}

// HandleGetAnalytics returns the dashboard payload for the current user.
// Anonymous requests get a null body.
func (h *Handler) HandleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.GetAnalytics(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, analytics.ErrUserResolution):
			h.writeError(w, r, http.StatusUnauthorized, "invalid user identity")
		case errors.Is(err, context.Canceled):
			// Client went away; nobody is listening
			h.log.Debug().Err(err).Msg("Analytics request cancelled")
		default:
			h.log.Error().Err(err).Msg("Failed to assemble analytics")
			h.writeError(w, r, http.StatusInternalServerError, "failed to load analytics")
		}
		return
	}

	h.write(w, r, http.StatusOK, data)
}

// HandleGetPlaceholderSeries returns the zero-filled series shown when no
// performance history exists. Query param months defaults to 12.
func (h *Handler) HandleGetPlaceholderSeries(w http.ResponseWriter, r *http.Request) {
	months := analytics.DefaultPlaceholderMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxPlaceholderMonths {
			h.writeError(w, r, http.StatusBadRequest, "months must be an integer between 1 and 60")
			return
		}
		months = n
	}

	h.write(w, r, http.StatusOK, h.service.PlaceholderPerformance(months))
}

// write encodes data as msgpack when the client asks for it, JSON otherwise
func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if !wantsMsgpack(r) {
		h.writeJSON(w, status, data)
		return
	}

	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.WriteHeader(status)
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode msgpack response")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.write(w, r, status, map[string]string{"error": message})
}

func wantsMsgpack(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(mediaType, contentTypeMsgpack) {
			return true
		}
	}
	return false
}
