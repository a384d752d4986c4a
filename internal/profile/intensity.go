package profile

import "time"

const (
	burstWindow    = 30 * time.Second
	burstRetention = 300 * time.Second
	burstRelevance = 5
	// Pulses are throttled upstream to roughly two per second, so 60
	// events in a 30s window saturates intensity at 1.0.
	burstSaturation = 60
)

// intensityTracker aggregates activity pulses into fixed windows and
// keeps a short rolling history of bursts for the pre-pause intensity
// estimate.
type intensityTracker struct {
	bursts      []ActivityBurst
	windowStart time.Time
	windowCount int
}

func (t *intensityTracker) Record(now time.Time) {
	if t.windowStart.IsZero() {
		t.windowStart = now
	}
	if now.Sub(t.windowStart) > burstWindow {
		t.flush(now)
		t.windowStart = now
		t.windowCount = 0
	}
	t.windowCount++
}

// flush closes the current window as a burst if it saw any pulses, and
// prunes bursts that have aged out.
func (t *intensityTracker) flush(now time.Time) {
	if t.windowCount > 0 {
		intensity := float64(t.windowCount) / burstSaturation
		if intensity > 1 {
			intensity = 1
		}
		t.bursts = append(t.bursts, ActivityBurst{
			StartTime:  t.windowStart,
			Duration:   now.Sub(t.windowStart),
			Intensity:  intensity,
			EventCount: t.windowCount,
		})
	}
	cutoff := now.Add(-burstRetention)
	kept := t.bursts[:0]
	for _, b := range t.bursts {
		if b.StartTime.After(cutoff) {
			kept = append(kept, b)
		}
	}
	t.bursts = kept
}

// PrePauseIntensity returns an exponentially-weighted average of the
// most recent bursts, newest weighted highest. 0.5 when no history.
func (t *intensityTracker) PrePauseIntensity() float64 {
	if len(t.bursts) == 0 {
		return 0.5
	}
	start := len(t.bursts) - burstRelevance
	if start < 0 {
		start = 0
	}
	recent := t.bursts[start:]
	var totalWeight, weighted float64
	for i := len(recent) - 1; i >= 0; i-- {
		weight := pow(DecayFactor, len(recent)-1-i)
		totalWeight += weight
		weighted += recent[i].Intensity * weight
	}
	if totalWeight == 0 {
		return 0.5
	}
	return weighted / totalWeight
}

func (t *intensityTracker) Reset() {
	t.bursts = nil
	t.windowStart = time.Time{}
	t.windowCount = 0
}

func (t *intensityTracker) Bursts() []ActivityBurst {
	return t.bursts
}

func pow(base float64, exp int) float64 {
	v := 1.0
	for i := 0; i < exp; i++ {
		v *= base
	}
	return v
}
