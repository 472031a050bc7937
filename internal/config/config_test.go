package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Address() != "localhost:8084" {
		t.Errorf("address = %q", cfg.Address())
	}
	if cfg.Session.CookieName != "explorer_session" || cfg.Session.TTL != 30*time.Minute {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Upload.MaxBytes != 50<<20 {
		t.Errorf("upload limit = %d", cfg.Upload.MaxBytes)
	}
	if cfg.Dashboard.SeedFile != "" {
		t.Errorf("no seed file expected by default, got %q", cfg.Dashboard.SeedFile)
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATA_FILE", "Superstore.csv")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("UPLOAD_MAX_BYTES", "1048576")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Dashboard.SeedFile != "Superstore.csv" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Session.TTL != 5*time.Minute || cfg.Upload.MaxBytes != 1<<20 {
		t.Errorf("session ttl %v, upload %d", cfg.Session.TTL, cfg.Upload.MaxBytes)
	}
	if got := cfg.Security.AllowedOrigins; len(got) != 2 || got[1] != "http://b.test" {
		t.Errorf("origins = %q", got)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value, wantErr string
	}{
		{"SERVER_PORT", "70000", "server port"},
		{"LOG_LEVEL", "loud", "invalid log level"},
		{"LOG_FORMAT", "xml", "invalid log format"},
		{"UPLOAD_MAX_BYTES", "-1", "upload size"},
		{"SESSION_MAX", "-3", "session limit"},
		{"DASHBOARD_CHART_WIDTH", "50", "chart size"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
