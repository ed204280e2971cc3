package config

import "time"

// IssuerConfig contains batch issuance tuning.
type IssuerConfig struct {
	// Concurrency caps how many recipient pipelines run at once.
	Concurrency int `env:"CONCURRENCY" envDefault:"3"`
	// SubmitPace is the minimum spacing between ledger submissions for
	// synchronous (CLI-attended) batches.
	SubmitPace time.Duration `env:"SUBMIT_PACE" envDefault:"1s"`
	// SubmitPaceBackground is the spacing for background batches, which can
	// afford to be gentler on the RPC provider.
	SubmitPaceBackground time.Duration `env:"SUBMIT_PACE_BACKGROUND" envDefault:"2s"`
	// RetryMaxAttempts bounds submission attempts per recipient.
	RetryMaxAttempts int `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	// RetryBaseDelay seeds the exponential backoff between attempts.
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"5s"`
	// BatchLockTTL bounds how long a crashed process holds an event locked.
	BatchLockTTL time.Duration `env:"BATCH_LOCK_TTL" envDefault:"30m"`
	// PlaceholderBase prefixes artifact references when publication degrades.
	PlaceholderBase string `env:"PLACEHOLDER_BASE" envDefault:"local://artifacts"`
	// ProgressBuffer sizes the progress channel for background tasks.
	ProgressBuffer int `env:"PROGRESS_BUFFER" envDefault:"64"`
}

// Sanitize clamps issuance tuning to safe values.
func (c *IssuerConfig) Sanitize() {
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
	if c.SubmitPace <= 0 {
		c.SubmitPace = time.Second
	}
	if c.SubmitPaceBackground <= 0 {
		c.SubmitPaceBackground = 2 * time.Second
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 5 * time.Second
	}
	if c.BatchLockTTL <= 0 {
		c.BatchLockTTL = 30 * time.Minute
	}
	if c.PlaceholderBase == "" {
		c.PlaceholderBase = "local://artifacts"
	}
	if c.ProgressBuffer <= 0 {
		c.ProgressBuffer = 64
	}
}
