package model

// SubmissionResult is the outcome of one ledger submission attempt for a
// recipient. A confirmed transaction may still carry an unknown token id
// when receipt-log extraction failed; callers must check TokenIDKnown
// rather than assuming a confirmed submission produced an identifier.
type SubmissionResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`

	TokenID      *uint64 `json:"token_id,omitempty"`
	TokenIDKnown bool    `json:"token_id_known"`

	// GasUsed is the resource cost reported by the confirmation receipt.
	GasUsed uint64 `json:"gas_used,omitempty"`

	// Note carries a human-readable remark, e.g. a degraded-extraction
	// flag or an authority diagnostic attached to a dry-run failure.
	Note string `json:"note,omitempty"`

	// Failure detail, set only when Success is false.
	Error     string `json:"error,omitempty"`
	Transient bool   `json:"transient,omitempty"`
	// RetriesLeft is the remaining retry budget at the time the error was
	// surfaced, for presentation.
	RetriesLeft int `json:"retries_left,omitempty"`
}
