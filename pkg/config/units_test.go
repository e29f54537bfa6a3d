package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"10s", 10 * time.Second, false},
		{"1.5s", 1500 * time.Millisecond, false},
		{"1m", 1 * time.Minute, false},
		{"1d", 24 * time.Hour, false},
		{"1w", 168 * time.Hour, false},
		{"2d2h", 50 * time.Hour, false},
		{"", 0, false},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDuration(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestDuration_YAMLRoundTrip(t *testing.T) {
	var out struct {
		Timeout Duration `yaml:"timeout"`
	}
	if err := yaml.Unmarshal([]byte("timeout: 1d\n"), &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out.Timeout.Std() != Day {
		t.Errorf("got %v, want %v", out.Timeout.Std(), Day)
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != "timeout: 24h0m0s\n" {
		t.Errorf("unexpected yaml: %q", string(data))
	}
}
