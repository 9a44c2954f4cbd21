package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable the loader reads so defaults apply.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "READ_TIMEOUT", "READ_HEADER_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT",
		"MAX_HEADER_BYTES", "GIN_MODE", "LOG_LEVEL", "LOG_PRETTY", "API_BASE_PATH",
		"DB_PATH", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"MAX_MESSAGE_RUNES", "BCRYPT_COST",
		"WS_WRITE_WAIT", "WS_PONG_WAIT", "WS_SEND_BUFFER", "WS_MAX_FRAME",
		"RATE_RPS", "RATE_BURST", "CORS_ALLOWED_ORIGINS",
		"ENABLE_HSTS", "HSTS_MAX_AGE", "IDEMPOTENCY_TTL",
		"OTEL_ENABLED", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
		"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q; want 8080", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q; want release", cfg.GinMode)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want info", cfg.LogLevel)
	}
	if cfg.DBPath != "users.db" {
		t.Errorf("DBPath = %q; want users.db", cfg.DBPath)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.WS.PongWait != 60*time.Second || cfg.WS.SendBuffer != 256 {
		t.Errorf("WS defaults = %+v", cfg.WS)
	}
	if cfg.MaxMessageRunes != 4000 {
		t.Errorf("MaxMessageRunes = %d", cfg.MaxMessageRunes)
	}
	if cfg.APIBasePath != "/" {
		t.Errorf("APIBasePath = %q; want /", cfg.APIBasePath)
	}
}

func TestLoad_NormalizesWarningAndGinMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want warn", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q; want release", cfg.GinMode)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		key, val string
		wantSub  string
	}{
		{"LOG_LEVEL", "loud", "LOG_LEVEL"},
		{"READ_TIMEOUT", "-1s", "timeouts"},
		{"MAX_HEADER_BYTES", "-5", "MAX_HEADER_BYTES"},
		{"MAX_MESSAGE_RUNES", "0", "MAX_MESSAGE_RUNES"},
		{"BCRYPT_COST", "99", "BCRYPT_COST"},
		{"WS_SEND_BUFFER", "0", "WS_SEND_BUFFER"},
		{"RATE_RPS", "-1", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"IDEMPOTENCY_TTL", "-1h", "IDEMPOTENCY_TTL"},
		{"OTEL_TRACES_SAMPLER_ARG", "2", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("Load with %s=%s: err = %v; want mention of %s", tc.key, tc.val, err, tc.wantSub)
			}
		})
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"api":      "/api",
		"/api/":    "/api",
		" /api/v1": "/api/v1",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a ,, b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("splitCSV = %v", got)
	}
	if splitCSV("") != nil {
		t.Fatalf("splitCSV(empty) should be nil")
	}
}
