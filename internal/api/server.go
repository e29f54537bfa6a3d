package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"fraatlas/pkg/version"
)

const mapWSPath = "/api/map/ws"

// Handlers bundles the endpoint handlers mounted by NewServer. Static may be
// nil when no frontend is served.
type Handlers struct {
	Session *SessionHandler
	Map     *MapChannel
	Config  *ConfigHandler
	Stats   *StatsHandler
	Static  http.Handler
}

// NewServer creates and configures the HTTP server.
// allowedOrigins feeds CORS for the JSON endpoints; shutdown is called after
// a POST /api/shutdown has been answered.
func NewServer(addr string, h Handlers, allowedOrigins []string, shutdown func()) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewHandler(h, allowedOrigins, shutdown),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewHandler builds the routed, CORS-wrapped handler used by NewServer.
func NewHandler(h Handlers, allowedOrigins []string, shutdown func()) http.Handler {
	mux := http.NewServeMux()

	// 1. Health & Version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Session
	mux.HandleFunc("GET /api/session", h.Session.HandleSession)
	mux.HandleFunc("POST /api/selection/state", h.Session.HandleSelectState)
	mux.HandleFunc("POST /api/selection/district", h.Session.HandleSelectDistrict)
	mux.HandleFunc("POST /api/selection/clear", h.Session.HandleClear)
	mux.HandleFunc("POST /api/apply", h.Session.HandleApply)

	// 3. Map
	mux.HandleFunc("GET /api/map/active", h.Session.HandleActive)
	mux.HandleFunc("GET /api/map/config", h.Config.HandleMapConfig)
	mux.HandleFunc("GET "+mapWSPath, h.Map.HandleWS)

	// 4. Diagnostics
	mux.Handle("GET /api/stats", h.Stats)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 5. Shutdown
	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte("Shutting down...")); err != nil {
				slog.Error("Failed to write shutdown response", "error", err)
			}
			// let the response flush first
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	// 6. Frontend
	if h.Static != nil {
		mux.Handle("/", h.Static)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	return c.Handler(mux)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": %q}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
