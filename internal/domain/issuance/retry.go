package issuance

import (
	"strings"
	"time"
)

// Error categories surfaced to operators alongside recipient failures.
const (
	CategoryRateLimited = "rate-limited"
	CategoryCongested   = "congested"
	CategoryReverted    = "reverted"
	CategoryNetwork     = "network"
	CategoryUnknown     = "unknown"
)

// transientPhrases maps error-description substrings to a presentation
// category. Matching is case-insensitive. Anything not matched here is
// treated as a permanent fault.
var transientPhrases = []struct {
	phrase   string
	category string
}{
	{"rate limit", CategoryRateLimited},
	{"too many requests", CategoryRateLimited},
	{"429", CategoryRateLimited},
	{"gas", CategoryCongested},
	{"execution reverted", CategoryReverted},
	{"revert", CategoryReverted},
	{"timeout", CategoryNetwork},
	{"timed out", CategoryNetwork},
	{"deadline exceeded", CategoryNetwork},
	{"connection", CategoryNetwork},
	{"network", CategoryNetwork},
}

// RetryPolicy classifies ledger errors and computes exponential backoff.
// The zero value is not usable; construct with DefaultRetryPolicy or fill
// both fields.
type RetryPolicy struct {
	// BaseDelay is the backoff base: delay = BaseDelay * 2^attempt.
	BaseDelay time.Duration
	// MaxAttempts caps the total number of submission attempts.
	MaxAttempts int
}

// DefaultRetryPolicy mirrors the deployed settings: 5s base, 3 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: 5 * time.Second, MaxAttempts: 3}
}

// Decision is the outcome of classifying one failed attempt.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Decide returns whether the attempt (0-based count of attempts already
// made, including the failed one) should be retried, and after what delay.
// Permanent classification or an exhausted budget ends the loop; the error
// itself is surfaced as-is by the caller.
func (p RetryPolicy) Decide(err error, attempt int) Decision {
	if err == nil {
		return Decision{}
	}
	if attempt+1 >= p.MaxAttempts {
		return Decision{}
	}
	if !Transient(err) {
		return Decision{}
	}
	return Decision{Retry: true, Delay: p.BaseDelay * (1 << attempt)}
}

// RetriesLeft reports the remaining budget after the given 0-based attempt.
func (p RetryPolicy) RetriesLeft(attempt int) int {
	left := p.MaxAttempts - attempt - 1
	if left < 0 {
		return 0
	}
	return left
}

// Transient reports whether the error description matches the transient
// phrase set (rate limiting, congestion, reverts, network trouble).
func Transient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, t := range transientPhrases {
		if strings.Contains(msg, t.phrase) {
			return true
		}
	}
	return false
}

// Category returns the presentation category for a ledger error:
// rate-limited, congested, reverted, network, or unknown.
func Category(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	for _, t := range transientPhrases {
		if strings.Contains(msg, t.phrase) {
			return t.category
		}
	}
	return CategoryUnknown
}

// Remediation suggests an operator action for a failure category.
func Remediation(category string) string {
	switch category {
	case CategoryRateLimited:
		return "wait for the provider rate limit window to reset before re-running"
	case CategoryCongested:
		return "network is congested; re-run later or raise the fee headroom"
	case CategoryReverted:
		return "check the issuing account's contract authority and the recipient address"
	case CategoryNetwork:
		return "check RPC endpoint connectivity and re-run the batch"
	default:
		return ""
	}
}
