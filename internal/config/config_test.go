package config

import (
	"errors"
	"testing"
	"time"
)

var configKeys = []string{
	"APP_ENV", "APP_HTTP_ADDR", "METRICS_ADDR", "STORE_TYPE", "DB_DSN",
	"CACHE_TYPE", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL",
	"RELOAD_INTERVAL", "ADMIN_API_KEY", "ADMIN_API_KEY_HASH", "RATE_LIMIT_PER_IP", "LOG_LEVEL", "LOG_FORMAT",
	"WEBHOOK_URLS", "WEBHOOK_SECRET", "WEBHOOK_TIMEOUT", "WEBHOOK_MAX_RETRIES",
}

// clearEnv blanks every key for the duration of the test. viper treats an
// empty environment value as unset when a default exists.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func validConfig() *Config {
	return &Config{
		AppEnv:         "dev",
		HTTPAddr:       ":8080",
		MetricsAddr:    ":9090",
		StoreType:      StoreMemory,
		CacheType:      CacheNone,
		ReloadInterval: 30 * time.Second,
		AdminAPIKey:    "admin-123",
		RateLimitPerIP: 100,
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("Expected AppEnv='dev', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr=':8080', got '%s'", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("Expected MetricsAddr=':9090', got '%s'", cfg.MetricsAddr)
	}
	if cfg.StoreType != StoreMemory {
		t.Errorf("Expected StoreType='memory', got '%s'", cfg.StoreType)
	}
	if cfg.CacheType != CacheNone {
		t.Errorf("Expected CacheType='none', got '%s'", cfg.CacheType)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("Expected CacheTTL=5m, got %v", cfg.CacheTTL)
	}
	if cfg.ReloadInterval != 30*time.Second {
		t.Errorf("Expected ReloadInterval=30s, got %v", cfg.ReloadInterval)
	}
	if cfg.RateLimitPerIP != 100 {
		t.Errorf("Expected RateLimitPerIP=100, got %d", cfg.RateLimitPerIP)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Errorf("Expected info/json logging, got %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if len(cfg.WebhookURLs) != 0 || cfg.WebhookTimeout != 5*time.Second || cfg.WebhookMaxRetries != 3 {
		t.Errorf("unexpected webhook defaults: %v %v %d", cfg.WebhookURLs, cfg.WebhookTimeout, cfg.WebhookMaxRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate in dev: %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("APP_HTTP_ADDR", ":9999")
	t.Setenv("STORE_TYPE", "POSTGRES")
	t.Setenv("CACHE_TYPE", "redis")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("RELOAD_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_PER_IP", "250")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("WEBHOOK_URLS", " https://a.example/hook, ,http://b.example/x ")
	t.Setenv("WEBHOOK_SECRET", "whsec_abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "staging" {
		t.Errorf("Expected AppEnv='staging', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTPAddr=':9999', got '%s'", cfg.HTTPAddr)
	}
	if cfg.StoreType != StorePostgres {
		t.Errorf("Expected StoreType='postgres', got '%s'", cfg.StoreType)
	}
	if cfg.CacheType != CacheRedis || cfg.RedisAddr != "cache:6380" || cfg.RedisDB != 2 {
		t.Errorf("unexpected redis settings: %s %s %d", cfg.CacheType, cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("Expected CacheTTL=90s, got %v", cfg.CacheTTL)
	}
	if cfg.ReloadInterval != time.Minute {
		t.Errorf("Expected ReloadInterval=1m, got %v", cfg.ReloadInterval)
	}
	if cfg.RateLimitPerIP != 250 {
		t.Errorf("Expected RateLimitPerIP=250, got %d", cfg.RateLimitPerIP)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("Expected LogFormat='console', got '%s'", cfg.LogFormat)
	}
	if len(cfg.WebhookURLs) != 2 || cfg.WebhookURLs[0] != "https://a.example/hook" || cfg.WebhookURLs[1] != "http://b.example/x" {
		t.Errorf("unexpected WebhookURLs: %q", cfg.WebhookURLs)
	}
	if cfg.WebhookSecret != "whsec_abc" {
		t.Errorf("Expected WebhookSecret, got '%s'", cfg.WebhookSecret)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.StoreType = "sqlite" }, wantField: "STORE_TYPE"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StoreType = StorePostgres }, wantField: "DB_DSN"},
		{name: "postgres with dsn", mutate: func(c *Config) { c.StoreType = StorePostgres; c.DatabaseDSN = "postgres://x" }},
		{name: "unknown cache", mutate: func(c *Config) { c.CacheType = "memcached" }, wantField: "CACHE_TYPE"},
		{name: "redis without addr", mutate: func(c *Config) { c.CacheType = CacheRedis; c.CacheTTL = time.Minute }, wantField: "REDIS_ADDR"},
		{name: "redis without ttl", mutate: func(c *Config) { c.CacheType = CacheRedis; c.RedisAddr = "localhost:6379" }, wantField: "CACHE_TTL"},
		{name: "empty http addr", mutate: func(c *Config) { c.HTTPAddr = "" }, wantField: "APP_HTTP_ADDR"},
		{name: "empty metrics addr", mutate: func(c *Config) { c.MetricsAddr = "" }, wantField: "METRICS_ADDR"},
		{name: "zero reload interval", mutate: func(c *Config) { c.ReloadInterval = 0 }, wantField: "RELOAD_INTERVAL"},
		{name: "zero rate limit", mutate: func(c *Config) { c.RateLimitPerIP = 0 }, wantField: "RATE_LIMIT_PER_IP"},
		{name: "empty admin key", mutate: func(c *Config) { c.AdminAPIKey = "" }, wantField: "ADMIN_API_KEY"},
		{name: "hash instead of key", mutate: func(c *Config) { c.AdminAPIKey = ""; c.AdminKeyHash = "$2a$12$abc" }},
		{name: "default key in prod", mutate: func(c *Config) { c.AppEnv = "prod" }, wantField: "ADMIN_API_KEY"},
		{name: "custom key in prod", mutate: func(c *Config) { c.AppEnv = "production"; c.AdminAPIKey = "s3cret" }},
		{name: "webhook relative url", mutate: func(c *Config) { c.WebhookURLs = []string{"/hook"}; c.WebhookTimeout = time.Second }, wantField: "WEBHOOK_URLS"},
		{name: "webhook ftp url", mutate: func(c *Config) { c.WebhookURLs = []string{"ftp://x/hook"}; c.WebhookTimeout = time.Second }, wantField: "WEBHOOK_URLS"},
		{name: "webhook without timeout", mutate: func(c *Config) { c.WebhookURLs = []string{"https://x/hook"} }, wantField: "WEBHOOK_TIMEOUT"},
		{name: "webhook negative retries", mutate: func(c *Config) {
			c.WebhookURLs = []string{"https://x/hook"}
			c.WebhookTimeout = time.Second
			c.WebhookMaxRetries = -1
		}, wantField: "WEBHOOK_MAX_RETRIES"},
		{name: "webhook valid", mutate: func(c *Config) { c.WebhookURLs = []string{"https://x/hook"}; c.WebhookTimeout = time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", verr.Field, tt.wantField)
			}
		})
	}
}
