package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into cfg, which must be a pointer to a struct using
// `env` / `envDefault` tags. Fields tagged `required` fail the load when unset.
//
//	type Config struct {
//	    Port          int           `env:"STOREFRONT_HTTP_PORT" envDefault:"8010"`
//	    SettleDelay   time.Duration `env:"SETTLE_DELAY" envDefault:"2s"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadWithEnvironment parses cfg from the given variables instead of the process
// environment. Used by tests to avoid leaking state between cases.
func LoadWithEnvironment(cfg any, vars map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
