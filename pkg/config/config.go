package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides. They are read after the YAML file and win over it.
const (
	EnvGeoDataURL    = "FRAATLAS_GEODATA_URL"
	EnvServerAddress = "FRAATLAS_SERVER_ADDRESS"
)

// Config holds the application configuration.
type Config struct {
	GeoData GeoDataConfig `yaml:"geodata"`
	Map     MapConfig     `yaml:"map"`
	Filter  FilterConfig  `yaml:"filter"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// GeoDataConfig holds settings for the remote geographic-data service.
type GeoDataConfig struct {
	BaseURL   string   `yaml:"base_url"`
	Timeout   Duration `yaml:"timeout"`
	UserAgent string   `yaml:"user_agent"` // empty: built-in default
}

// MapConfig holds settings handed to the browser map and the viewport sync.
type MapConfig struct {
	CenterLat   float64  `yaml:"center_lat"`
	CenterLon   float64  `yaml:"center_lon"`
	Zoom        int      `yaml:"zoom"`
	TileURL     string   `yaml:"tile_url"`
	Attribution string   `yaml:"attribution"`
	FitPadding  int      `yaml:"fit_padding"` // pixels on every side
	FlyDuration Duration `yaml:"fly_duration"`
}

// FilterConfig holds settings for the cascading filter.
type FilterConfig struct {
	DemoAreaSentinel string `yaml:"demo_area_sentinel"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	StaticDir      string   `yaml:"static_dir"` // built frontend; empty disables
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
	Trace    bool        `yaml:"trace"` // per-event filter loop logs at DEBUG
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		GeoData: GeoDataConfig{
			BaseURL: "http://127.0.0.1:5000/api",
			Timeout: Duration(30 * time.Second),
		},
		Map: MapConfig{
			CenterLat:   20.5937,
			CenterLon:   78.9629,
			Zoom:        5,
			TileURL:     "https://{s}.basemaps.cartocdn.com/rastertiles/voyager/{z}/{x}/{y}{r}.png",
			Attribution: "&copy; CARTO",
			FitPadding:  50,
			FlyDuration: Duration(1500 * time.Millisecond),
		},
		Filter: FilterConfig{
			DemoAreaSentinel: "FRA_DEMO_AREA",
		},
		Server: ServerConfig{
			Address:        "localhost:8090",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// A .env file next to the working directory is loaded first (if present) so
// that environment overrides can live there.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvGeoDataURL)); v != "" {
		cfg.GeoData.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddress)); v != "" {
		cfg.Server.Address = v
	}
}

// Validate checks the settings the rest of the application relies on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.GeoData.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid geodata.base_url %q: must be an absolute http(s) URL", c.GeoData.BaseURL)
	}
	if c.GeoData.Timeout <= 0 {
		return fmt.Errorf("invalid geodata.timeout %s: must be positive", c.GeoData.Timeout.Std())
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		return fmt.Errorf("invalid map.zoom %d: must be between 0 and 22", c.Map.Zoom)
	}
	if c.Map.FitPadding < 0 {
		return fmt.Errorf("invalid map.fit_padding %d: must not be negative", c.Map.FitPadding)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# FRA Atlas Configuration
# -----------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
# Environment overrides: ` + EnvGeoDataURL + `, ` + EnvServerAddress + `

`)
	data = append(header, data...)

	reLevel := regexp.MustCompile(`(?m)^(\s+)level:`)
	data = reLevel.ReplaceAll(data, []byte("${1}# Options: DEBUG, INFO, WARN, ERROR\n${1}level:"))

	return os.WriteFile(path, data, 0o644)
}

// GenerateDefault writes a default config file unless one already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
