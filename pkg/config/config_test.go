package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(t *testing.T, path string)
		validate      func(*testing.T, *Config)
		checkFile     func(*testing.T, string)
		expectedError bool
	}{
		{
			name:  "NewFile_Defaults",
			setup: func(t *testing.T, path string) {},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.GeoData.BaseURL != "http://127.0.0.1:5000/api" {
					t.Errorf("expected default base url, got '%s'", cfg.GeoData.BaseURL)
				}
				if cfg.Map.FitPadding != 50 {
					t.Errorf("expected default padding 50, got %d", cfg.Map.FitPadding)
				}
				if cfg.Map.FlyDuration.Std() != 1500*time.Millisecond {
					t.Errorf("expected fly duration 1.5s, got %v", cfg.Map.FlyDuration.Std())
				}
				if cfg.Filter.DemoAreaSentinel != "FRA_DEMO_AREA" {
					t.Errorf("unexpected sentinel '%s'", cfg.Filter.DemoAreaSentinel)
				}
			},
			checkFile: func(t *testing.T, path string) {
				content, err := os.ReadFile(path)
				if err != nil {
					t.Fatalf("failed to read config file: %v", err)
				}
				if !strings.Contains(string(content), "demo_area_sentinel: FRA_DEMO_AREA") {
					t.Error("config file missing default values")
				}
				if !strings.Contains(string(content), "# Options: DEBUG, INFO, WARN, ERROR") {
					t.Error("config file missing level comment")
				}
			},
		},
		{
			name: "ExistingFile_Override",
			setup: func(t *testing.T, path string) {
				err := os.WriteFile(path, []byte("geodata:\n  base_url: http://geo.example:9000/api\n  timeout: 5s\nmap:\n  zoom: 7\n"), 0o644)
				if err != nil {
					t.Fatal(err)
				}
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.GeoData.BaseURL != "http://geo.example:9000/api" {
					t.Errorf("expected overridden base url, got '%s'", cfg.GeoData.BaseURL)
				}
				if cfg.GeoData.Timeout.Std() != 5*time.Second {
					t.Errorf("expected timeout 5s, got %v", cfg.GeoData.Timeout.Std())
				}
				if cfg.Map.Zoom != 7 {
					t.Errorf("expected zoom 7, got %d", cfg.Map.Zoom)
				}
				// untouched sections keep defaults
				if cfg.Map.FitPadding != 50 {
					t.Errorf("expected default padding, got %d", cfg.Map.FitPadding)
				}
			},
		},
		{
			name: "EnvOverride",
			setup: func(t *testing.T, path string) {
				t.Setenv(EnvGeoDataURL, "https://fra.example.org/api")
				t.Setenv(EnvServerAddress, "0.0.0.0:9999")
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.GeoData.BaseURL != "https://fra.example.org/api" {
					t.Errorf("expected env base url, got '%s'", cfg.GeoData.BaseURL)
				}
				if cfg.Server.Address != "0.0.0.0:9999" {
					t.Errorf("expected env address, got '%s'", cfg.Server.Address)
				}
			},
		},
		{
			name: "InvalidYAML",
			setup: func(t *testing.T, path string) {
				if err := os.WriteFile(path, []byte("geodata: [unclosed"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			expectedError: true,
		},
		{
			name: "InvalidBaseURL",
			setup: func(t *testing.T, path string) {
				if err := os.WriteFile(path, []byte("geodata:\n  base_url: not-a-url\n"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "configs", "fraatlas.yaml")
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}
			tt.setup(t, path)

			cfg, err := Load(path)
			if (err != nil) != tt.expectedError {
				t.Fatalf("Load() error = %v, expectedError %v", err, tt.expectedError)
			}
			if tt.expectedError {
				return
			}
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
			if tt.checkFile != nil {
				tt.checkFile(t, path)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Defaults", func(c *Config) {}, false},
		{"ZeroTimeout", func(c *Config) { c.GeoData.Timeout = 0 }, true},
		{"ZoomTooHigh", func(c *Config) { c.Map.Zoom = 30 }, true},
		{"NegativePadding", func(c *Config) { c.Map.FitPadding = -1 }, true},
		{"RelativeURL", func(c *Config) { c.GeoData.BaseURL = "/api" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateDefault_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fraatlas.yaml")
	if err := os.WriteFile(path, []byte("custom: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "custom: true\n" {
		t.Errorf("existing file was overwritten: %q", string(content))
	}
}
