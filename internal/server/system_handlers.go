package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/propfolio/internal/database"
	"github.com/aristath/propfolio/internal/records"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shopspring/decimal"
)

// sourcePingTimeout bounds the record source check in the status endpoint
const sourcePingTimeout = 3 * time.Second

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	source      records.Source
	recordsDB   *database.DB // nil unless the SQLite backend is active
	benchmark   decimal.Decimal
	hostStats   func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	source records.Source,
	recordsDB *database.DB,
	benchmark decimal.Decimal,
) *SystemHandlers {
	h := &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		startupTime: time.Now(),
		source:      source,
		recordsDB:   recordsDB,
		benchmark:   benchmark,
	}
	h.hostStats = h.getSystemStats
	return h
}

// SourceStatus reports record source reachability
type SourceStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status           string       `json:"status"`
	StartedAt        string       `json:"started_at"`
	UptimeSeconds    int64        `json:"uptime_seconds"`
	CPUPercent       float64      `json:"cpu_percent"`
	MemoryPercent    float64      `json:"memory_percent"`
	Goroutines       int          `json:"goroutines"`
	MarketAverageROI float64      `json:"market_average_roi"`
	RecordSource     SourceStatus `json:"record_source"`
}

// DatabaseStatsResponse represents record store statistics
type DatabaseStatsResponse struct {
	Name        string          `json:"name"`
	Path        string          `json:"path"`
	Stats       *database.Stats `json:"stats"`
	LastChecked string          `json:"last_checked"`
}

// GetSystemStatusSnapshot returns a snapshot of the current system status.
// Status is "degraded" when the record source cannot be reached.
func (h *SystemHandlers) GetSystemStatusSnapshot(ctx context.Context) SystemStatusResponse {
	cpuPercent, memPercent := h.hostStats()

	sourceStatus := SourceStatus{Name: h.source.Name(), Healthy: true}
	pingCtx, cancel := context.WithTimeout(ctx, sourcePingTimeout)
	defer cancel()
	if err := h.source.Ping(pingCtx); err != nil {
		h.log.Warn().Err(err).Str("source", h.source.Name()).Msg("Record source ping failed")
		sourceStatus.Healthy = false
		sourceStatus.Error = err.Error()
	}

	status := "healthy"
	if !sourceStatus.Healthy {
		status = "degraded"
	}

	return SystemStatusResponse{
		Status:           status,
		StartedAt:        h.startupTime.Format(time.RFC3339),
		UptimeSeconds:    int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:       cpuPercent,
		MemoryPercent:    memPercent,
		Goroutines:       runtime.NumGoroutine(),
		MarketAverageROI: h.benchmark.InexactFloat64(),
		RecordSource:     sourceStatus,
	}
}

// HandleSystemStatus returns process, host and record source status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")
	h.writeJSON(w, http.StatusOK, h.GetSystemStatusSnapshot(r.Context()))
}

// HandleDatabaseStats returns SQLite record store statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.recordsDB == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "record source " + h.source.Name() + " has no local database",
		})
		return
	}

	stats, err := h.recordsDB.GetStats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get database stats"})
		return
	}

	h.writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		Name:        h.recordsDB.Name(),
		Path:        h.recordsDB.Path(),
		Stats:       stats,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// getSystemStats calculates CPU and RAM usage percentages
// Uses a short sampling interval so the endpoint stays responsive
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
