package profile

import (
	"sort"
	"time"
)

const maxRecentPauses = 100

// Profile accumulates per-user cognitive work statistics and turns an
// idle-duration sample into a calibrated confidence and a ternary
// decision. All methods take an explicit now and perform no I/O.
type Profile struct {
	buckets [5]*IdleBucket
	tracker intensityTracker

	recentPauses []PauseEvent

	sessionStart time.Time

	consecutiveValidated int
	consecutiveRejected  int
	currentStreak        int
	longestStreak        int

	totalValidations int
	totalRejections  int

	projects map[string]*ProjectModifier

	// Half steps from focus regained leave a fractional count.
	focusLost float64

	userBias      float64
	implicitTrust bool
}

func New() *Profile {
	p := &Profile{projects: map[string]*ProjectModifier{}}
	for i, r := range bucketRanges {
		p.buckets[i] = &IdleBucket{MinSeconds: r[0], MaxSeconds: r[1]}
	}
	return p
}

// bucketFor maps an idle duration to exactly one bucket; durations at
// or beyond the last boundary use the final bucket.
func (p *Profile) bucketFor(idleSeconds int) *IdleBucket {
	for _, b := range p.buckets {
		if idleSeconds >= b.MinSeconds && idleSeconds < b.MaxSeconds {
			return b
		}
	}
	return p.buckets[len(p.buckets)-1]
}

func (p *Profile) RecordActivity(now time.Time) {
	p.tracker.Record(now)
}

func (p *Profile) PrePauseIntensity() float64 {
	return p.tracker.PrePauseIntensity()
}

func (p *Profile) ClassifyPause(durationSeconds int, preIntensity float64) PausePattern {
	return classifyPause(durationSeconds, preIntensity, p.recentPauses)
}

// CalculateConfidence scores whether an idle period of the given length
// was cognitive work. The returned breakdown lists every factor that
// entered the final score.
func (p *Profile) CalculateConfidence(idleSeconds int, projectKey string, now time.Time) (float64, Decision, map[string]float64) {
	factors := map[string]float64{}

	bucket := p.bucketFor(idleSeconds)
	baseRate := bucket.ValidationRate()
	bucketConfidence := bucket.Confidence()
	factors["bucket_rate"] = baseRate
	factors["bucket_confidence"] = bucketConfidence

	preIntensity := p.tracker.PrePauseIntensity()
	intensityFactor := 0.5 + preIntensity*0.3
	factors["pre_pause_intensity"] = preIntensity
	factors["intensity_factor"] = intensityFactor

	sessionAge := 0.0
	if !p.sessionStart.IsZero() {
		sessionAge = now.Sub(p.sessionStart).Minutes()
	}
	sessionFactor := 1.0
	switch {
	case sessionAge < 30:
	case sessionAge < 60:
		sessionFactor = 0.9
	default:
		sessionFactor = 0.8
	}
	factors["session_age_minutes"] = sessionAge
	factors["session_factor"] = sessionFactor

	hour := now.Hour()
	timeFactor := 1.0
	if (hour >= 9 && hour <= 11) || (hour >= 14 && hour <= 17) {
		timeFactor = 1.05
	} else if hour < 7 || hour > 22 {
		timeFactor = 0.9
	}
	factors["hour_of_day"] = float64(hour)
	factors["time_factor"] = timeFactor

	streakFactor := 1.0
	if p.consecutiveValidated >= 3 {
		streakFactor = 1.1
	} else if p.consecutiveRejected >= 3 {
		streakFactor = 0.85
	}
	factors["streak_factor"] = streakFactor

	projectFactor := 1.0
	if projectKey != "" {
		if mod, ok := p.projects[projectKey]; ok {
			projectRate := mod.ValidationRate()
			projectFactor = 0.7 + projectRate*0.3
			switch mod.Phase() {
			case "early":
				projectFactor *= 1.1
			case "late":
				projectFactor *= 0.95
			}
			factors["project_validation_rate"] = projectRate
		}
	}
	factors["project_factor"] = projectFactor

	negative := 1.0
	if p.focusLost > 0 {
		negative = 1 - p.focusLost*0.05
		if negative < 0.7 {
			negative = 0.7
		}
	}
	factors["negative_adjustment"] = negative

	bias := 1 + p.userBias*0.2
	factors["user_bias"] = p.userBias

	// A bucket that has earned its rate stands alone; otherwise blend
	// with the all-time global rate by the bucket's own confidence.
	base := baseRate
	if bucketConfidence <= 0.5 {
		globalRate := p.globalValidationRate()
		base = baseRate*bucketConfidence + globalRate*(1-bucketConfidence)
	}

	confidence := clamp01(base * intensityFactor * sessionFactor * timeFactor *
		streakFactor * projectFactor * negative * bias)
	factors["final_confidence"] = confidence

	decision := DecisionAskUser
	if p.totalBucketSamples() >= MinSamplesForAuto {
		if confidence >= AutoAcceptThreshold {
			decision = DecisionAutoAccept
		} else if confidence <= AutoDiscardThreshold {
			decision = DecisionAutoDiscard
		}
	}
	return confidence, decision, factors
}

func (p *Profile) globalValidationRate() float64 {
	total := p.totalValidations + p.totalRejections
	if total == 0 {
		return 0.5
	}
	return float64(p.totalValidations) / float64(total)
}

func (p *Profile) totalBucketSamples() int {
	total := 0
	for _, b := range p.buckets {
		total += b.TotalCount
	}
	return total
}

// RecordValidation feeds one resolved idle period back into the model:
// bucket counts, streaks, the pause history, and the project modifier.
func (p *Profile) RecordValidation(idleSeconds int, wasValidated bool, projectKey string, now time.Time) {
	bucket := p.bucketFor(idleSeconds)
	bucket.TotalCount++
	if wasValidated {
		bucket.ValidatedCount++
	}
	p.decayBuckets()

	if wasValidated {
		p.totalValidations++
		p.consecutiveValidated++
		p.consecutiveRejected = 0
		p.currentStreak++
		if p.currentStreak > p.longestStreak {
			p.longestStreak = p.currentStreak
		}
	} else {
		p.totalRejections++
		p.consecutiveRejected++
		p.consecutiveValidated = 0
		p.currentStreak = 0
	}

	preIntensity := p.tracker.PrePauseIntensity()
	sessionAge := 0
	if !p.sessionStart.IsZero() {
		sessionAge = int(now.Sub(p.sessionStart).Minutes())
	}
	p.recentPauses = append(p.recentPauses, PauseEvent{
		Timestamp:         now,
		DurationSeconds:   idleSeconds,
		WasValidated:      wasValidated,
		Pattern:           classifyPause(idleSeconds, preIntensity, p.recentPauses),
		PrePauseIntensity: preIntensity,
		SessionAgeMinutes: sessionAge,
		HourOfDay:         now.Hour(),
		ProjectKey:        projectKey,
	})
	if len(p.recentPauses) > maxRecentPauses {
		p.recentPauses = p.recentPauses[len(p.recentPauses)-maxRecentPauses:]
	}

	if projectKey != "" {
		p.updateProject(projectKey, idleSeconds, wasValidated)
	}

	// Any resolved interaction partially forgives prior focus loss.
	p.focusLost -= 1
	if p.focusLost < 0 {
		p.focusLost = 0
	}
}

// decayBuckets shrinks every bucket by the decay factor at each
// 50-sample boundary of the grand total, truncating to integers. The
// truncation discards the fractional remainder every time; kept for
// compatibility with existing profiles even though it drifts low.
func (p *Profile) decayBuckets() {
	total := p.totalBucketSamples()
	if total > 0 && total%50 == 0 {
		for _, b := range p.buckets {
			b.TotalCount = int(float64(b.TotalCount) * DecayFactor)
			b.ValidatedCount = int(float64(b.ValidatedCount) * DecayFactor)
		}
	}
}

func (p *Profile) updateProject(projectKey string, idleSeconds int, wasValidated bool) {
	mod := p.project(projectKey)
	if wasValidated {
		mod.TotalValidations++
		mod.AvgValidatedIdle = (mod.AvgValidatedIdle*float64(mod.TotalValidations-1) +
			float64(idleSeconds)) / float64(mod.TotalValidations)
	} else {
		mod.TotalRejections++
	}
}

func (p *Profile) project(projectKey string) *ProjectModifier {
	mod, ok := p.projects[projectKey]
	if !ok {
		mod = &ProjectModifier{AvgValidatedIdle: 300}
		p.projects[projectKey] = mod
	}
	return mod
}

func (p *Profile) RecordFocusLost() {
	p.focusLost++
}

func (p *Profile) RecordFocusRegained() {
	p.focusLost -= 0.5
	if p.focusLost < 0 {
		p.focusLost = 0
	}
}

// StartSession stamps the session start and clears per-session state.
func (p *Profile) StartSession(projectKey string, now time.Time) {
	p.sessionStart = now
	p.focusLost = 0
	p.tracker.Reset()
	if projectKey != "" {
		if mod, ok := p.projects[projectKey]; ok {
			mod.SessionCount++
		}
	}
}

func (p *Profile) UpdateProjectWorkTime(projectKey string, totalSeconds int) {
	p.project(projectKey).TotalWorkTime = totalSeconds
}

func (p *Profile) SetUserBias(bias float64) {
	if bias < -1 {
		bias = -1
	}
	if bias > 1 {
		bias = 1
	}
	p.userBias = bias
}

func (p *Profile) UserBias() float64 {
	return p.userBias
}

func (p *Profile) SetImplicitTrust(enabled bool) {
	p.implicitTrust = enabled
}

func (p *Profile) ImplicitTrust() bool {
	return p.implicitTrust
}

// TrustLevel summarizes how reliable the model's decisions have been:
// sample volume, consistency of responses, and the longest validated
// streak, each capped.
func (p *Profile) TrustLevel() float64 {
	total := p.totalValidations + p.totalRejections
	if total < MinSamplesForAuto {
		return 0
	}
	sampleConfidence := float64(total) / 100
	if sampleConfidence > 1 {
		sampleConfidence = 1
	}
	rate := float64(p.totalValidations) / float64(total)
	consistency := abs(rate-0.5) * 2
	streakBonus := float64(p.longestStreak) / 50
	if streakBonus > 0.2 {
		streakBonus = 0.2
	}
	trust := sampleConfidence*0.4 + consistency*0.4 + streakBonus
	if trust > 1 {
		return 1
	}
	return trust
}

// ShouldUseNotification reports whether an auto-decision may be
// surfaced as a dismissible notice instead of an interactive prompt.
// Requires the explicit opt-in plus earned trust.
func (p *Profile) ShouldUseNotification() bool {
	return p.implicitTrust && p.TrustLevel() >= TrustLevelHigh
}

type AccuracyIndicator struct {
	Label   string
	Percent float64
}

func (p *Profile) AccuracyIndicator() AccuracyIndicator {
	trust := p.TrustLevel()
	label := "Learning"
	if trust >= TrustLevelHigh {
		label = "High"
	} else if trust >= TrustLevelMedium {
		label = "Medium"
	}
	return AccuracyIndicator{Label: label, Percent: trust * 100}
}

type BucketStats struct {
	Key            string
	ValidationRate float64
	SampleCount    int
}

type ValidationStats struct {
	TotalSamples   int
	ValidationRate float64
	LongestStreak  int
	TrustLevel     float64
	Buckets        []BucketStats
}

func (p *Profile) ValidationStats() ValidationStats {
	total := p.totalValidations + p.totalRejections
	rate := 0.0
	if total > 0 {
		rate = float64(p.totalValidations) / float64(total)
	}
	stats := ValidationStats{
		TotalSamples:   total,
		ValidationRate: rate,
		LongestStreak:  p.longestStreak,
		TrustLevel:     p.TrustLevel(),
	}
	for _, b := range p.buckets {
		stats.Buckets = append(stats.Buckets, BucketStats{
			Key:            b.Key(),
			ValidationRate: b.ValidationRate(),
			SampleCount:    b.TotalCount,
		})
	}
	return stats
}

// PatternSummary counts recent pauses by classified pattern.
func (p *Profile) PatternSummary() map[PausePattern]int {
	summary := map[PausePattern]int{
		PatternMicroThinking: 0,
		PatternPlanningPause: 0,
		PatternContextSwitch: 0,
		PatternBreak:         0,
		PatternUnknown:       0,
	}
	for _, event := range p.recentPauses {
		summary[event.Pattern]++
	}
	return summary
}

func (p *Profile) ProjectKeys() []string {
	keys := make([]string, 0, len(p.projects))
	for key := range p.projects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
