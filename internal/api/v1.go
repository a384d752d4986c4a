package api

import "time"

const SchemaVersion = "v1"

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Error         APIError  `json:"error"`
}

type HealthResponse struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Status        string    `json:"status"`
}

type AskRequestResponse struct {
	RequestID   string    `json:"request_id"`
	IdleSeconds int       `json:"idle_seconds"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
}

type SessionResponse struct {
	DocumentKey   string              `json:"document_key"`
	State         string              `json:"state"`
	TotalSeconds  int                 `json:"total_seconds"`
	IdleSeconds   int                 `json:"idle_seconds"`
	TLimitMinutes int                 `json:"t_limit_minutes"`
	Pending       *AskRequestResponse `json:"pending_request,omitempty"`
}

type SessionEnvelope struct {
	SchemaVersion string          `json:"schema_version"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Session       SessionResponse `json:"session"`
}

type AttachRequest struct {
	DocumentKey string `json:"document_key"`
}

type FocusRequest struct {
	HasFocus bool `json:"has_focus"`
}

type RespondRequest struct {
	RequestID   string `json:"request_id"`
	WasThinking bool   `json:"was_thinking"`
}

type UndoResponse struct {
	SchemaVersion string    `json:"schema_version"`
	GeneratedAt   time.Time `json:"generated_at"`
	Undone        bool      `json:"undone"`
	Accepted      bool      `json:"accepted"`
	IdleSeconds   int       `json:"idle_seconds"`
}

type SettingsResponse struct {
	SchemaVersion        string    `json:"schema_version"`
	GeneratedAt          time.Time `json:"generated_at"`
	TLimitMinutes        int       `json:"t_limit_minutes"`
	UserBias             float64   `json:"user_bias"`
	ImplicitTrustEnabled bool      `json:"implicit_trust_enabled"`
}

type SettingsPatch struct {
	TLimitMinutes        *int     `json:"t_limit_minutes,omitempty"`
	UserBias             *float64 `json:"user_bias,omitempty"`
	ImplicitTrustEnabled *bool    `json:"implicit_trust_enabled,omitempty"`
}

type BucketStatsResponse struct {
	Key            string  `json:"key"`
	ValidationRate float64 `json:"validation_rate"`
	SampleCount    int     `json:"sample_count"`
}

type StatsResponse struct {
	SchemaVersion    string                `json:"schema_version"`
	GeneratedAt      time.Time             `json:"generated_at"`
	TotalSamples     int                   `json:"total_samples"`
	ValidationRate   float64               `json:"validation_rate"`
	LongestStreak    int                   `json:"longest_streak"`
	TrustLevel       float64               `json:"trust_level"`
	AccuracyLabel    string                `json:"accuracy_label"`
	AccuracyPercent  float64               `json:"accuracy_percent"`
	NotificationMode bool                  `json:"notification_mode"`
	Buckets          []BucketStatsResponse `json:"buckets"`
	Patterns         map[string]int        `json:"patterns"`
}

type AutoDecisionResponse struct {
	DocumentKey string    `json:"document_key"`
	Accepted    bool      `json:"accepted"`
	IdleSeconds int       `json:"idle_seconds"`
	Confidence  float64   `json:"confidence"`
	DecidedAt   time.Time `json:"decided_at"`
}

type EventsEnvelope struct {
	SchemaVersion string                 `json:"schema_version"`
	GeneratedAt   time.Time              `json:"generated_at"`
	Decisions     []AutoDecisionResponse `json:"decisions"`
}
