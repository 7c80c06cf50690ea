package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/tracing"
)

// Refresh transports.
const (
	RefreshTransportHTTP  = "http"
	RefreshTransportKafka = "kafka"
)

// Config holds all configuration for the storefront.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Downstream services
	CartServiceURL           string `env:"CART_SERVICE_URL" envDefault:"http://localhost:8003"`
	UserServiceURL           string `env:"USER_SERVICE_URL" envDefault:"http://localhost:8006"`
	RecommendationServiceURL string `env:"RECOMMENDATION_SERVICE_URL" envDefault:"http://localhost:8012"`

	// GatewayTimeout bounds one downstream call; 0 disables the client timeout.
	GatewayTimeout time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"10s"`

	// Recommendation invalidation
	RefreshTransport    string        `env:"REFRESH_TRANSPORT" envDefault:"http"`
	RefreshTimeout      time.Duration `env:"REFRESH_TIMEOUT" envDefault:"8s"`
	StalenessWindow     time.Duration `env:"STALENESS_WINDOW" envDefault:"5s"`
	SettleDelay         time.Duration `env:"SETTLE_DELAY" envDefault:"2s"`
	RecommendationFeeds []string      `env:"RECOMMENDATION_FEEDS" envDefault:"for_you,similar" envSeparator:","`
	RecommendationLimit int           `env:"RECOMMENDATION_LIMIT" envDefault:"12"`

	// SessionIdleTTL evicts per-user state not used for that long; 0 keeps it until logout.
	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	// Checkout pricing, minor units
	ShippingFlatFee       int64 `env:"SHIPPING_FLAT_FEE" envDefault:"30000"`
	FreeShippingThreshold int64 `env:"FREE_SHIPPING_THRESHOLD" envDefault:"500000"`

	// Voucher table cache
	VoucherCacheTTL time.Duration `env:"VOUCHER_CACHE_TTL" envDefault:"5m"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Per-user throttle on mutating routes
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	Postgres database.PostgresConfig
	Redis    database.RedisConfig
	Tracing  tracing.Config
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Feeds returns the configured recommendation lists.
func (c *Config) Feeds() []domain.RecommendationKind {
	out := make([]domain.RecommendationKind, 0, len(c.RecommendationFeeds))
	for _, f := range c.RecommendationFeeds {
		out = append(out, domain.RecommendationKind(f))
	}
	return out
}

// Shipping returns the checkout shipping policy.
func (c *Config) Shipping() domain.ShippingPolicy {
	return domain.ShippingPolicy{FlatFee: c.ShippingFlatFee, FreeThreshold: c.FreeShippingThreshold}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	for name, raw := range map[string]string{
		"CART_SERVICE_URL":           c.CartServiceURL,
		"USER_SERVICE_URL":           c.UserServiceURL,
		"RECOMMENDATION_SERVICE_URL": c.RecommendationServiceURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
		}
	}

	switch c.RefreshTransport {
	case RefreshTransportHTTP:
	case RefreshTransportKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when REFRESH_TRANSPORT=kafka")
		}
	default:
		return fmt.Errorf("REFRESH_TRANSPORT must be %q or %q, got %q", RefreshTransportHTTP, RefreshTransportKafka, c.RefreshTransport)
	}

	if c.GatewayTimeout < 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must not be negative")
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("REFRESH_TIMEOUT must be positive")
	}
	if c.SessionIdleTTL < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must not be negative")
	}
	if c.StalenessWindow < 0 || c.SettleDelay < 0 {
		return fmt.Errorf("STALENESS_WINDOW and SETTLE_DELAY must not be negative")
	}
	if len(c.RecommendationFeeds) == 0 {
		return fmt.Errorf("RECOMMENDATION_FEEDS must name at least one list")
	}
	for _, f := range c.RecommendationFeeds {
		if f == "" {
			return fmt.Errorf("RECOMMENDATION_FEEDS contains an empty name")
		}
	}
	if c.RecommendationLimit < 1 {
		return fmt.Errorf("RECOMMENDATION_LIMIT must be at least 1, got %d", c.RecommendationLimit)
	}
	if c.ShippingFlatFee < 0 || c.FreeShippingThreshold < 0 {
		return fmt.Errorf("shipping amounts must not be negative")
	}
	if c.VoucherCacheTTL <= 0 {
		return fmt.Errorf("VOUCHER_CACHE_TTL must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive and RATE_LIMIT_BURST at least 1")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.Tracing.SampleRate)
	}
	return nil
}
