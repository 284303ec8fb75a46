package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
http:
  addr: ":9090"
provider:
  base_url: https://provider.test
  signature_header: X-Test-Signature
  timeout: 3s
catalog:
  cache_ttl: 90s
reconcile:
  not_found_retry_window: 45m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Provider.BaseURL != "https://provider.test" {
		t.Fatalf("unexpected provider base url: %s", cfg.Provider.BaseURL)
	}
	if cfg.Provider.SignatureHeader != "X-Test-Signature" {
		t.Fatalf("unexpected signature header: %s", cfg.Provider.SignatureHeader)
	}
	if cfg.Provider.Timeout.String() != "3s" {
		t.Fatalf("unexpected provider timeout: %s", cfg.Provider.Timeout)
	}
	if cfg.Catalog.CacheTTL.String() != "1m30s" {
		t.Fatalf("unexpected catalog cache ttl: %s", cfg.Catalog.CacheTTL)
	}
	if cfg.Reconcile.NotFoundRetryWindow.String() != "45m0s" {
		t.Fatalf("unexpected retry window: %s", cfg.Reconcile.NotFoundRetryWindow)
	}

	if cfg.HTTP.ReadTimeout.String() != "5s" {
		t.Fatalf("http read timeout default should stay 5s, got %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Auth.JWTAccessTTL.String() != "15m0s" {
		t.Fatalf("jwt access ttl default should stay 15m, got %s", cfg.Auth.JWTAccessTTL)
	}
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config with missing file: %v", err)
	}

	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("unexpected default http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Provider.SignatureHeader != "X-Provider-Signature" {
		t.Fatalf("unexpected default signature header: %s", cfg.Provider.SignatureHeader)
	}
	if cfg.Reconcile.NotFoundRetryWindow.String() != "15m0s" {
		t.Fatalf("unexpected default retry window: %s", cfg.Reconcile.NotFoundRetryWindow)
	}
	if cfg.Catalog.CacheTTL.String() != "5m0s" {
		t.Fatalf("unexpected default catalog cache ttl: %s", cfg.Catalog.CacheTTL)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PROVIDER_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("RECONCILE_NOT_FOUND_RETRY_WINDOW", "1h")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Provider.WebhookSecret != "whsec_test" {
		t.Fatalf("unexpected webhook secret: %s", cfg.Provider.WebhookSecret)
	}
	if cfg.Reconcile.NotFoundRetryWindow.String() != "1h0m0s" {
		t.Fatalf("unexpected retry window: %s", cfg.Reconcile.NotFoundRetryWindow)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV",
		"HTTP_ADDR",
		"HTTP_READ_TIMEOUT",
		"HTTP_WRITE_TIMEOUT",
		"HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL",
		"POSTGRES_DSN",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"JWT_SECRET",
		"JWT_ACCESS_TTL",
		"PROVIDER_BASE_URL",
		"PROVIDER_API_KEY",
		"PROVIDER_WEBHOOK_SECRET",
		"PROVIDER_SIGNATURE_HEADER",
		"PROVIDER_TIMEOUT",
		"CATALOG_CACHE_TTL",
		"RECONCILE_NOT_FOUND_RETRY_WINDOW",
		"RECONCILE_STALE_PENDING_AFTER",
		"RECONCILE_SWEEP_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}
