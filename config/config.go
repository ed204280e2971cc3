package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - chain.go: Ledger connection and signing configuration
//   - issuer.go: Batch issuance tuning
//   - storage.go: Pinning provider and artifact renderer configuration
//   - database.go: Database and cache configuration
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, relaxed
	// guardrails). Set DEV=true for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Chain configuration (RPC endpoint, contract, signing key)
	Chain ChainConfig `envPrefix:"CHAIN_"`

	// Issuer configuration (concurrency, pacing, retries, locks)
	Issuer IssuerConfig `envPrefix:"ISSUER_"`

	// Storage configuration
	Pinning  PinningConfig  `envPrefix:"PINNING_"`
	Renderer RendererConfig `envPrefix:"RENDERER_"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Chain.Sanitize()
	c.Issuer.Sanitize()
	c.Pinning.Sanitize()
	c.Renderer.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables. APP_ENV
// is checked as a fallback so deployment manifests can use either.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}
