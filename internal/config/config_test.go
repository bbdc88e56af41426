package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PROPSTACK_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BaseURL != "https://api.propstack.de" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.MaxRetries != 3 || cfg.BaseBackoff != time.Second {
		t.Errorf("Retry = %d/%v, want 3/1s", cfg.MaxRetries, cfg.BaseBackoff)
	}
	if cfg.PageSize != 100 || cfg.PageCap != 500 {
		t.Errorf("Paging = %d/%d, want 100/500", cfg.PageSize, cfg.PageCap)
	}
	if cfg.StaleAfter != 14*24*time.Hour {
		t.Errorf("StaleAfter = %v, want 14 days", cfg.StaleAfter)
	}
	if cfg.LogLevel != "info" || cfg.LogPretty {
		t.Errorf("Logging = %q/%v", cfg.LogLevel, cfg.LogPretty)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("PROPSTACK_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error but got nil")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PROPSTACK_API_KEY", "test-key")
	t.Setenv("PROPSTACK_BASE_URL", "http://localhost:8080")
	t.Setenv("PROPSTACK_MAX_RETRIES", "5")
	t.Setenv("PROPSTACK_PAGE_CAP", "50")
	t.Setenv("PROPSTACK_STALE_AFTER", "48h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.PageCap != 50 {
		t.Errorf("PageCap = %d, want 50", cfg.PageCap)
	}
	if cfg.StaleAfter != 48*time.Hour {
		t.Errorf("StaleAfter = %v, want 48h", cfg.StaleAfter)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{APIKey: "k", BaseURL: "https://api.example.test", PageCap: 500}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"blank api key", func(c *Config) { c.APIKey = "  " }, true},
		{"blank base url", func(c *Config) { c.BaseURL = "" }, true},
		{"zero page cap", func(c *Config) { c.PageCap = 0 }, true},
		{"negative page cap", func(c *Config) { c.PageCap = -1 }, true},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigBuilders(t *testing.T) {
	cfg := Config{
		APIKey:      "k",
		BaseURL:     "https://api.example.test",
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  2,
		BaseBackoff: 500 * time.Millisecond,
		PageSize:    25,
		PageCap:     100,
		StaleAfter:  72 * time.Hour,
	}

	cc := cfg.ClientConfig()
	if cc.APIKey != "k" || cc.Timeout != 10*time.Second || cc.Retry.MaxRetries != 2 {
		t.Errorf("ClientConfig = %+v", cc)
	}

	wc := cfg.WalkConfig()
	if wc.PageSize != 25 || wc.MaxItems != 100 {
		t.Errorf("WalkConfig = %+v", wc)
	}

	pc := cfg.PipelineConfig()
	if pc.StaleAfter != 72*time.Hour {
		t.Errorf("PipelineConfig = %+v", pc)
	}
}
