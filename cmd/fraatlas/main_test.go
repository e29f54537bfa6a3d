package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer geo.Close()

	dir := t.TempDir()
	t.Chdir(dir)

	tempConfig := `
geodata:
    base_url: ` + geo.URL + `/api
    timeout: 2s
server:
    address: localhost:0  # 0 lets OS choose free port
log:
    server:
        path: "logs/test_server.log"
        level: "debug"
    requests:
        path: "logs/test_requests.log"
        level: "info"
`
	cfgPath := filepath.Join(dir, "configs", "fraatlas.yaml")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgPath, []byte(tempConfig), 0o644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	// Cancel quickly to verify the startup sequence
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		t.Fatalf("run() failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "logs", "test_server.log")); err != nil {
		t.Errorf("server log not created: %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfgPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte("geodata:\n    base_url: not-a-url\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(context.Background(), cfgPath); err == nil {
		t.Fatal("expected config error")
	}
}

func TestRequestShutdown_Repeated(t *testing.T) {
	quit := make(chan os.Signal, 1)
	quit <- os.Interrupt // a signal already queued
	shutdown := requestShutdown(quit)

	done := make(chan struct{})
	go func() {
		shutdown()
		shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown trigger blocked on a full quit channel")
	}
	if got := <-quit; got != os.Interrupt {
		t.Errorf("queued signal = %v, want %v", got, os.Interrupt)
	}

	shutdown()
	if got := <-quit; got != syscall.SIGTERM {
		t.Errorf("signal = %v, want SIGTERM", got)
	}
}
