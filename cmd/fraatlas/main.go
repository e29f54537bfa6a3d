package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fraatlas/internal/api"
	"fraatlas/pkg/config"
	"fraatlas/pkg/filter"
	"fraatlas/pkg/geodata"
	"fraatlas/pkg/logging"
	"fraatlas/pkg/mapsync"
	"fraatlas/pkg/probe"
	"fraatlas/pkg/request"
	"fraatlas/pkg/tracker"
	"fraatlas/pkg/version"
)

const defaultConfigPath = "configs/fraatlas.yaml"

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", defaultConfigPath, "Path to the config file")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()
	logging.EnableTrace = appCfg.Log.Trace

	slog.Info("FRA Atlas Started", "version", version.Version, "geodata", appCfg.GeoData.BaseURL)

	tr := tracker.New()
	geo := geodata.NewClient(appCfg.GeoData.BaseURL, request.New(appCfg.GeoData.Timeout.Std(), tr, appCfg.GeoData.UserAgent))

	if err := verifyStartup(ctx, appCfg, geo); err != nil {
		return err
	}

	ctrl := filter.New(geo, filter.Options{
		Logger:           slog.Default(),
		Tracker:          tr,
		DemoAreaSentinel: appCfg.Filter.DemoAreaSentinel,
	})

	mapCh := api.NewMapChannel(appCfg.Server.AllowedOrigins)
	view := mapsync.NewView(mapCh, mapsync.Options{
		Padding:  mapsync.Padding{appCfg.Map.FitPadding, appCfg.Map.FitPadding},
		Duration: appCfg.Map.FlyDuration.Std(),
		Logger:   slog.Default(),
	})
	ctrl.Subscribe(view.OnSnapshot)

	go func() {
		if err := ctrl.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Filter controller stopped", "error", err)
		}
	}()

	// failures are logged by the controller; the UI stays usable with an empty state list
	if err := ctrl.LoadRoot(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to request root collection: %w", err)
	}

	return runServer(ctx, appCfg, ctrl, mapCh, tr)
}

func verifyStartup(ctx context.Context, cfg *config.Config, geo *geodata.Client) error {
	probes := []probe.Probe{
		{
			Name:    "GeoData Service",
			Check:   geo.Ping,
			Timeout: cfg.GeoData.Timeout.Std(),
		},
	}
	if cfg.Server.StaticDir != "" {
		probes = append(probes, probe.Probe{
			Name: "Frontend Assets",
			Check: func(context.Context) error {
				_, err := fs.Stat(os.DirFS(cfg.Server.StaticDir), "index.html")
				return err
			},
			Critical: true,
		})
	}

	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, ctrl *filter.Controller, mapCh *api.MapChannel, tr *tracker.Tracker) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := requestShutdown(quit)

	handlers := api.Handlers{
		Session: api.NewSessionHandler(ctrl),
		Map:     mapCh,
		Config:  api.NewConfigHandler(cfg),
		Stats:   api.NewStatsHandler(tr, mapCh.ClientCount),
	}
	if cfg.Server.StaticDir != "" {
		handlers.Static = api.NewSPAHandler(os.DirFS(cfg.Server.StaticDir))
	}

	srv := api.NewServer(cfg.Server.Address, handlers, cfg.Server.AllowedOrigins, shutdownFunc)
	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

// requestShutdown returns a trigger that queues SIGTERM on quit. Triggers after
// the first, or after a real signal, are dropped once quit is full.
func requestShutdown(quit chan<- os.Signal) func() {
	return func() {
		select {
		case quit <- syscall.SIGTERM:
		default:
			slog.Debug("Shutdown already pending")
		}
	}
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
