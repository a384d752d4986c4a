package profile

import (
	"fmt"
	"math"
	"time"
)

type Decision string

const (
	DecisionAutoAccept  Decision = "auto_accept"
	DecisionAutoDiscard Decision = "auto_discard"
	DecisionAskUser     Decision = "ask_user"
)

type PausePattern string

const (
	PatternMicroThinking PausePattern = "micro_thinking"
	PatternPlanningPause PausePattern = "planning_pause"
	PatternContextSwitch PausePattern = "context_switch"
	PatternBreak         PausePattern = "break"
	PatternUnknown       PausePattern = "unknown"
)

const (
	AutoAcceptThreshold  = 0.85
	AutoDiscardThreshold = 0.20
	MinSamplesForAuto    = 10
	DecayFactor          = 0.95
	TrustLevelHigh       = 0.8
	TrustLevelMedium     = 0.5
)

// Idle duration bucket boundaries in seconds. Contiguous and
// non-overlapping; durations at or beyond the last boundary fall into
// the final bucket.
var bucketRanges = [5][2]int{
	{0, 180},
	{180, 420},
	{420, 900},
	{900, 1500},
	{1500, 3600},
}

type IdleBucket struct {
	MinSeconds     int
	MaxSeconds     int
	TotalCount     int
	ValidatedCount int
}

func (b *IdleBucket) Key() string {
	return fmt.Sprintf("%d-%d", b.MinSeconds, b.MaxSeconds)
}

func (b *IdleBucket) ValidationRate() float64 {
	if b.TotalCount == 0 {
		return 0.5
	}
	return float64(b.ValidatedCount) / float64(b.TotalCount)
}

// Confidence is the Wilson score lower bound at 95% on the validation
// rate, so a small all-validated bucket never reads as certainty.
func (b *IdleBucket) Confidence() float64 {
	if b.TotalCount == 0 {
		return 0
	}
	n := float64(b.TotalCount)
	p := b.ValidationRate()
	const z = 1.96
	denominator := 1 + z*z/n
	centre := p + z*z/(2*n)
	spread := math.Sqrt((p*(1-p) + z*z/(4*n)) / n)
	return clamp01((centre - z*spread) / denominator)
}

type ActivityBurst struct {
	StartTime  time.Time
	Duration   time.Duration
	Intensity  float64
	EventCount int
}

type PauseEvent struct {
	Timestamp         time.Time
	DurationSeconds   int
	WasValidated      bool
	Pattern           PausePattern
	PrePauseIntensity float64
	SessionAgeMinutes int
	HourOfDay         int
	ProjectKey        string
}

type ProjectModifier struct {
	TotalValidations int
	TotalRejections  int
	AvgValidatedIdle float64
	SessionCount     int
	TotalWorkTime    int
}

func (m *ProjectModifier) ValidationRate() float64 {
	total := m.TotalValidations + m.TotalRejections
	if total == 0 {
		return 0.5
	}
	return float64(m.TotalValidations) / float64(total)
}

// Phase buckets a project by cumulative work time: under 2h early,
// under 10h mid, late beyond that.
func (m *ProjectModifier) Phase() string {
	hours := float64(m.TotalWorkTime) / 3600
	switch {
	case hours < 2:
		return "early"
	case hours < 10:
		return "mid"
	default:
		return "late"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
