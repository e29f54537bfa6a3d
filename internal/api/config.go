package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"fraatlas/pkg/config"
)

// ConfigHandler serves the settings the browser map needs to initialise.
type ConfigHandler struct {
	appCfg *config.Config
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{appCfg: cfg}
}

// MapConfigResponse represents the map config API response.
type MapConfigResponse struct {
	Center      [2]float64 `json:"center"` // [lat, lon]
	Zoom        int        `json:"zoom"`
	TileURL     string     `json:"tile_url"`
	Attribution string     `json:"attribution"`
	FitPadding  [2]int     `json:"fit_padding"`
	FlyDuration float64    `json:"fly_duration"` // seconds
	WSPath      string     `json:"ws_path"`
}

// HandleMapConfig returns the initial map view and the viewport fit settings.
func (h *ConfigHandler) HandleMapConfig(w http.ResponseWriter, r *http.Request) {
	m := h.appCfg.Map
	resp := MapConfigResponse{
		Center:      [2]float64{m.CenterLat, m.CenterLon},
		Zoom:        m.Zoom,
		TileURL:     m.TileURL,
		Attribution: m.Attribution,
		FitPadding:  [2]int{m.FitPadding, m.FitPadding},
		FlyDuration: m.FlyDuration.Std().Seconds(),
		WSPath:      mapWSPath,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode config response", "error", err)
	}
}
