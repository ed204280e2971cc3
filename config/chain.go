package config

import (
	"errors"
	"strings"
	"time"
)

// ChainConfig contains ledger connection and signing configuration.
type ChainConfig struct {
	// RPCURL is the JSON-RPC endpoint of the ledger node.
	RPCURL string `env:"RPC_URL" envDefault:"http://localhost:8545"`
	// ChainID identifies the network the signer commits to.
	ChainID int64 `env:"ID" envDefault:"1337"`
	// ContractAddress is the certificate contract (hex, 0x-prefixed).
	ContractAddress string `env:"CONTRACT_ADDRESS"`
	// PrivateKey is the issuer's signing key (hex). Required outside tests.
	PrivateKey string `env:"PRIVATE_KEY"`
	// ConfirmTimeout bounds how long a submission waits for its receipt.
	ConfirmTimeout time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"120s"`
	// ReceiptPoll is the receipt polling interval during confirmation.
	ReceiptPoll time.Duration `env:"RECEIPT_POLL" envDefault:"2s"`
}

// Sanitize normalises chain configuration values.
func (c *ChainConfig) Sanitize() {
	c.RPCURL = strings.TrimSpace(c.RPCURL)
	c.ContractAddress = strings.TrimSpace(c.ContractAddress)
	c.PrivateKey = strings.TrimSpace(c.PrivateKey)
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 120 * time.Second
	}
	if c.ReceiptPoll <= 0 {
		c.ReceiptPoll = 2 * time.Second
	}
}

// Validate reports whether the configuration can drive real submissions.
func (c *ChainConfig) Validate() error {
	if c.RPCURL == "" {
		return errors.New("chain rpc url is required")
	}
	if c.ChainID <= 0 {
		return errors.New("chain id must be positive")
	}
	if c.ContractAddress == "" {
		return errors.New("chain contract address is required")
	}
	if c.PrivateKey == "" {
		return errors.New("chain private key is required")
	}
	return nil
}
