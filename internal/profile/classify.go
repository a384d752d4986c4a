package profile

// classifyPause labels a pause by its duration, the activity intensity
// leading into it, and the recent rejection history. Rules are checked
// in order; first match wins.
func classifyPause(durationSeconds int, preIntensity float64, recent []PauseEvent) PausePattern {
	minutes := float64(durationSeconds) / 60

	// Short pause straight after intense activity.
	if minutes <= 3 && preIntensity > 0.5 {
		return PatternMicroThinking
	}

	if minutes >= 5 && minutes <= 12 {
		return PatternPlanningPause
	}

	// Repeated short rejections suggest the user keeps stepping away.
	start := len(recent) - 5
	if start < 0 {
		start = 0
	}
	rejections := 0
	for _, p := range recent[start:] {
		if !p.WasValidated && p.DurationSeconds < 300 {
			rejections++
		}
	}
	if rejections >= 2 && minutes < 10 {
		return PatternContextSwitch
	}

	if minutes > 15 {
		return PatternBreak
	}

	return PatternUnknown
}
