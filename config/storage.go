package config

import (
	"strings"
	"time"
)

// PinningConfig configures the IPFS pinning provider used for artifact
// publication. Publication degrades to local placeholders when disabled.
type PinningConfig struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	BaseURL   string `env:"BASE_URL"`
	AuthToken string `env:"AUTH_TOKEN"`
	// CIDExpr locates the content hash in the provider's pin response.
	CIDExpr     string `env:"CID_EXPR" envDefault:"IpfsHash"`
	GatewayBase string `env:"GATEWAY_BASE" envDefault:"ipfs://"`
}

// Sanitize normalizes pinning settings.
func (c *PinningConfig) Sanitize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.AuthToken = strings.TrimSpace(c.AuthToken)
	c.CIDExpr = strings.TrimSpace(c.CIDExpr)
	if c.CIDExpr == "" {
		c.CIDExpr = "IpfsHash"
	}
	if c.GatewayBase == "" {
		c.GatewayBase = "ipfs://"
	}
	if c.Enabled && c.BaseURL == "" {
		c.Enabled = false
	}
}

// RendererConfig configures the certificate artifact renderer service.
type RendererConfig struct {
	BaseURL   string        `env:"BASE_URL" envDefault:"http://localhost:7500"`
	AuthToken string        `env:"AUTH_TOKEN"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

// Sanitize normalizes renderer settings.
func (c *RendererConfig) Sanitize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:7500"
	}
	c.AuthToken = strings.TrimSpace(c.AuthToken)
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
}
