package runtimeinit

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"yv-capture/src/config"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBootstrapPingsCutoutAndSetsUpLogging(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()
	t.Setenv("CUTOUT_ENDPOINT", srv.URL)
	t.Setenv("ENABLE_FILE_LOGGING", "true")

	var loggingArg *bool
	cfg, err := Bootstrap(Options{
		LoadOptions:  config.LoadOptions{EnvPathOverride: writeEnv(t, "")},
		SetupLogging: func(b bool) { loggingArg = &b },
		PingCutout:   true,
	})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if cfg.CutoutEndpoint != srv.URL {
		t.Errorf("endpoint = %q", cfg.CutoutEndpoint)
	}
	if loggingArg == nil || !*loggingArg {
		t.Errorf("SetupLogging not called with file logging enabled")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected one ping, got %d", hits)
	}
}

func TestBootstrapToleratesUnreachableCutout(t *testing.T) {
	t.Setenv("CUTOUT_ENDPOINT", "http://127.0.0.1:1")
	if _, err := Bootstrap(Options{
		LoadOptions: config.LoadOptions{EnvPathOverride: writeEnv(t, "")},
		PingCutout:  true,
	}); err != nil {
		t.Fatalf("unreachable cutout must not fail startup: %v", err)
	}
}

func TestNewCutterUsesConfig(t *testing.T) {
	c := NewCutter(&config.Config{CutoutEndpoint: "http://svc:9000/", CutoutTimeoutSec: 2})
	if got := c.Endpoint(); got != "http://svc:9000/cutout" {
		t.Fatalf("Endpoint = %q", got)
	}
}
