package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"

	"fraatlas/pkg/tracker"
)

// StatsHandler reports fetch statistics and process diagnostics.
type StatsHandler struct {
	tracker *tracker.Tracker
	clients func() int

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates a StatsHandler. clients reports connected map
// clients and may be nil.
func NewStatsHandler(t *tracker.Tracker, clients func() int) *StatsHandler {
	return &StatsHandler{tracker: t, clients: clients}
}

type EndpointStatsDTO struct {
	Success     int64 `json:"success"`
	Failures    int64 `json:"errors"`
	NotFound    int64 `json:"not_found"`
	SuccessRate int64 `json:"success_rate"` // percent of completed fetches
}

type DiagnosticsStats struct {
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
	MapClients  int    `json:"map_clients"`
}

type StatsResponse struct {
	Diagnostics DiagnosticsStats            `json:"diagnostics"`
	Endpoints   map[string]EndpointStatsDTO `json:"endpoints"`
	Stale       map[string]int64            `json:"stale"` // discarded responses per fetch category
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Diagnostics: h.gatherDiagnostics(),
		Endpoints:   make(map[string]EndpointStatsDTO, len(snapshot)),
		Stale:       h.tracker.StaleSnapshot(),
	}

	for endpoint, stats := range snapshot {
		total := stats.Success + stats.Failures + stats.NotFound
		rate := int64(0)
		if total > 0 {
			rate = (stats.Success * 100) / total
		}
		resp.Endpoints[endpoint] = EndpointStatsDTO{
			Success:     stats.Success,
			Failures:    stats.Failures,
			NotFound:    stats.NotFound,
			SuccessRate: rate,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *StatsHandler) gatherDiagnostics() DiagnosticsStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	h.mu.Lock()
	if ms.Sys > h.maxMem {
		h.maxMem = ms.Sys
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	d := DiagnosticsStats{
		MemoryMB:    bToMb(ms.Sys),
		MemoryMaxMB: bToMb(maxMem),
		Goroutines:  runtime.NumGoroutine(),
	}
	if h.clients != nil {
		d.MapClients = h.clients()
	}
	return d
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
