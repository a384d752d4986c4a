package model

import "time"

// DocumentRecord is a tracked document's persisted work-time ledger
// entry. The key is an opaque identity supplied by the client; identity
// resolution (content hashing, move detection) happens upstream.
type DocumentRecord struct {
	DocumentKey  string
	TotalSeconds int
	UpdatedAt    time.Time
}

// Settings are the user-tunable knobs that survive restarts.
type Settings struct {
	TLimitMinutes        int     `json:"t_limit_minutes"`
	UserBias             float64 `json:"user_bias"`
	ImplicitTrustEnabled bool    `json:"implicit_trust_enabled"`
}

func DefaultSettings() Settings {
	return Settings{TLimitMinutes: 20}
}

// AutoDecisionRecord is one entry of the recent auto-decision feed the
// daemon exposes in place of interactive notification.
type AutoDecisionRecord struct {
	DocumentKey string    `json:"document_key"`
	Accepted    bool      `json:"accepted"`
	IdleSeconds int       `json:"idle_seconds"`
	Confidence  float64   `json:"confidence"`
	DecidedAt   time.Time `json:"decided_at"`
}
