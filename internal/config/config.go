// Package config loads adapter configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/estatetools/propstack-mcp/pkg/client"
	"github.com/estatetools/propstack-mcp/pkg/pagination"
	"github.com/estatetools/propstack-mcp/pkg/pipeline"
)

// Prefix for all environment variables, e.g. PROPSTACK_API_KEY.
const Prefix = "propstack"

// Config holds every runtime knob. The matching weights and the staleness
// threshold are deliberate knobs rather than hard constants; defaults
// mirror the established behavior.
type Config struct {
	APIKey  string `envconfig:"API_KEY" required:"true"`
	BaseURL string `envconfig:"BASE_URL" default:"https://api.propstack.de"`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" split_words:"true" default:"30s"`
	MaxRetries  int           `envconfig:"MAX_RETRIES" split_words:"true" default:"3"`
	BaseBackoff time.Duration `envconfig:"BASE_BACKOFF" split_words:"true" default:"1s"`

	PageSize int `envconfig:"PAGE_SIZE" split_words:"true" default:"100"`
	PageCap  int `envconfig:"PAGE_CAP" split_words:"true" default:"500"`

	// StaleAfter defaults to 14 days.
	StaleAfter time.Duration `envconfig:"STALE_AFTER" split_words:"true" default:"336h"`

	// MetricsAddr enables a Prometheus scrape listener when set, e.g.
	// ":9090". Empty disables it; the MCP transport itself stays on stdio.
	MetricsAddr string `envconfig:"METRICS_ADDR" split_words:"true" default:""`

	LogLevel  string `envconfig:"LOG_LEVEL" split_words:"true" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" split_words:"true" default:"false"`
}

// Load reads and validates configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the core contracts cannot honor.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base url is required")
	}
	if c.PageCap <= 0 {
		return fmt.Errorf("page cap must be positive and finite (got %d)", c.PageCap)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative (got %d)", c.MaxRetries)
	}
	return nil
}

// ClientConfig builds the HTTP client configuration.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Timeout: c.HTTPTimeout,
		Retry: client.RetryConfig{
			MaxRetries:  c.MaxRetries,
			BaseBackoff: c.BaseBackoff,
		},
	}
}

// WalkConfig builds the pagination configuration.
func (c Config) WalkConfig() pagination.Config {
	return pagination.Config{
		PageSize: c.PageSize,
		MaxItems: c.PageCap,
	}
}

// PipelineConfig builds the aggregation configuration.
func (c Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		StaleAfter: c.StaleAfter,
	}
}
