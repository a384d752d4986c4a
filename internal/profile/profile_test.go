package profile

import (
	"testing"
	"time"
)

// neutralNoon avoids the time-of-day and session-age factors: midday
// hour, no session start recorded.
var neutralNoon = time.Date(2026, 3, 4, 12, 30, 0, 0, time.UTC)

func TestCalculateConfidenceAsksWithInsufficientData(t *testing.T) {
	p := New()
	for i := 0; i < 9; i++ {
		p.RecordValidation(60, true, "", neutralNoon)
	}
	for _, idle := range []int{30, 90, 600, 1200, 3000, 5000} {
		confidence, decision, _ := p.CalculateConfidence(idle, "", neutralNoon)
		if decision != DecisionAskUser {
			t.Fatalf("decision with 9 samples for idle=%d: %s, want ask", idle, decision)
		}
		if confidence < 0 || confidence > 1 {
			t.Fatalf("confidence %v out of [0,1]", confidence)
		}
	}
}

func TestCalculateConfidenceAutoAccept(t *testing.T) {
	p := New()
	// Saturated activity right before the pause.
	burstStart := neutralNoon.Add(-2 * time.Minute)
	for i := 0; i < 61; i++ {
		p.RecordActivity(burstStart.Add(time.Duration(i) * 400 * time.Millisecond))
	}
	p.RecordActivity(burstStart.Add(31 * time.Second))

	for i := 0; i < 12; i++ {
		p.RecordValidation(60, true, "", neutralNoon)
	}

	confidence, decision, factors := p.CalculateConfidence(60, "", neutralNoon)
	if decision != DecisionAutoAccept {
		t.Fatalf("decision = %s (confidence %v, factors %v), want auto accept", decision, confidence, factors)
	}
	if confidence < AutoAcceptThreshold {
		t.Fatalf("confidence = %v, want >= %v", confidence, AutoAcceptThreshold)
	}
	if factors["streak_factor"] != 1.1 {
		t.Fatalf("streak factor = %v, want 1.1 after 12 straight validations", factors["streak_factor"])
	}
}

func TestCalculateConfidenceAutoDiscard(t *testing.T) {
	p := New()
	for i := 0; i < 12; i++ {
		p.RecordValidation(60, false, "", neutralNoon)
	}
	confidence, decision, _ := p.CalculateConfidence(60, "", neutralNoon)
	if decision != DecisionAutoDiscard {
		t.Fatalf("decision = %s (confidence %v), want auto discard", decision, confidence)
	}
	if confidence > AutoDiscardThreshold {
		t.Fatalf("confidence = %v, want <= %v", confidence, AutoDiscardThreshold)
	}
}

func TestConfidenceClamped(t *testing.T) {
	p := New()
	p.SetUserBias(5) // clamps to 1
	if p.UserBias() != 1 {
		t.Fatalf("bias = %v, want clamp to 1", p.UserBias())
	}
	for i := 0; i < 30; i++ {
		p.RecordValidation(60, true, "", neutralNoon)
	}
	confidence, _, _ := p.CalculateConfidence(60, "", neutralNoon)
	if confidence < 0 || confidence > 1 {
		t.Fatalf("confidence %v out of [0,1]", confidence)
	}
}

func TestRecordValidationMonotoneExceptDecay(t *testing.T) {
	p := New()
	bucket := p.bucketFor(60)
	previous := 0
	for i := 1; i <= 49; i++ {
		p.RecordValidation(60, true, "", neutralNoon)
		if bucket.TotalCount < previous {
			t.Fatalf("bucket count decreased without decay at sample %d", i)
		}
		previous = bucket.TotalCount
	}
	if bucket.TotalCount != 49 {
		t.Fatalf("bucket count = %d, want 49 before the decay boundary", bucket.TotalCount)
	}

	// The 50th sample lands on the boundary: increment to 50, then
	// decay truncates 50*0.95 to 47.
	p.RecordValidation(60, true, "", neutralNoon)
	if bucket.TotalCount != 47 {
		t.Fatalf("bucket count after decay = %d, want 47", bucket.TotalCount)
	}
	if bucket.ValidatedCount != 47 {
		t.Fatalf("validated count after decay = %d, want 47", bucket.ValidatedCount)
	}
}

func TestDecayOnlyFiresOnExactMultiples(t *testing.T) {
	p := New()
	for i := 0; i < 49; i++ {
		p.RecordValidation(60, true, "", neutralNoon)
	}
	p.RecordValidation(600, true, "", neutralNoon)
	// Grand total hit 50: both buckets decayed.
	if got := p.bucketFor(60).TotalCount; got != 46 {
		t.Fatalf("first bucket = %d, want int(49*0.95) = 46", got)
	}
	if got := p.bucketFor(600).TotalCount; got != 0 {
		t.Fatalf("second bucket = %d, want int(1*0.95) = 0", got)
	}
}

func TestStreakTracking(t *testing.T) {
	p := New()
	for i := 0; i < 5; i++ {
		p.RecordValidation(60, true, "", neutralNoon)
	}
	p.RecordValidation(60, false, "", neutralNoon)
	stats := p.ValidationStats()
	if stats.LongestStreak != 5 {
		t.Fatalf("longest streak = %d, want 5", stats.LongestStreak)
	}
	_, _, factors := p.CalculateConfidence(60, "", neutralNoon)
	if factors["streak_factor"] != 1.0 {
		t.Fatalf("streak factor = %v, want 1.0 after a single rejection", factors["streak_factor"])
	}
	for i := 0; i < 2; i++ {
		p.RecordValidation(60, false, "", neutralNoon)
	}
	_, _, factors = p.CalculateConfidence(60, "", neutralNoon)
	if factors["streak_factor"] != 0.85 {
		t.Fatalf("streak factor = %v, want 0.85 after 3 straight rejections", factors["streak_factor"])
	}
}

func approx(got, want float64) bool {
	diff := got - want
	return diff < 1e-9 && diff > -1e-9
}

func TestFocusSignals(t *testing.T) {
	p := New()
	for i := 0; i < 4; i++ {
		p.RecordFocusLost()
	}
	_, _, factors := p.CalculateConfidence(60, "", neutralNoon)
	if !approx(factors["negative_adjustment"], 0.8) {
		t.Fatalf("negative adjustment = %v, want 0.8 for 4 focus losses", factors["negative_adjustment"])
	}

	p.RecordFocusRegained() // down to 3.5
	_, _, factors = p.CalculateConfidence(60, "", neutralNoon)
	if !approx(factors["negative_adjustment"], 0.825) {
		t.Fatalf("negative adjustment = %v, want 0.825 after regaining focus", factors["negative_adjustment"])
	}

	// A resolved validation forgives one focus loss.
	p.RecordValidation(60, true, "", neutralNoon)
	_, _, factors = p.CalculateConfidence(60, "", neutralNoon)
	if !approx(factors["negative_adjustment"], 0.875) {
		t.Fatalf("negative adjustment = %v, want 0.875 after validation", factors["negative_adjustment"])
	}
}

func TestNegativeAdjustmentFloor(t *testing.T) {
	p := New()
	for i := 0; i < 20; i++ {
		p.RecordFocusLost()
	}
	_, _, factors := p.CalculateConfidence(60, "", neutralNoon)
	if factors["negative_adjustment"] != 0.7 {
		t.Fatalf("negative adjustment = %v, want floor 0.7", factors["negative_adjustment"])
	}
}

func TestProjectModifierLearning(t *testing.T) {
	p := New()
	p.RecordValidation(100, true, "proj", neutralNoon)
	p.RecordValidation(200, true, "proj", neutralNoon)
	mod := p.project("proj")
	if mod.TotalValidations != 2 {
		t.Fatalf("project validations = %d, want 2", mod.TotalValidations)
	}
	if mod.AvgValidatedIdle != 150 {
		t.Fatalf("avg validated idle = %v, want 150", mod.AvgValidatedIdle)
	}

	p.UpdateProjectWorkTime("proj", 3*3600)
	_, _, factors := p.CalculateConfidence(100, "proj", neutralNoon)
	// Mid phase: factor is 0.7 + rate*0.3 with rate 1.0.
	if !approx(factors["project_factor"], 1.0) {
		t.Fatalf("project factor = %v, want 1.0 for mid-phase fully-validated project", factors["project_factor"])
	}
}

func TestProjectPhases(t *testing.T) {
	mod := &ProjectModifier{}
	if mod.Phase() != "early" {
		t.Fatalf("phase = %s, want early", mod.Phase())
	}
	mod.TotalWorkTime = 5 * 3600
	if mod.Phase() != "mid" {
		t.Fatalf("phase = %s, want mid", mod.Phase())
	}
	mod.TotalWorkTime = 11 * 3600
	if mod.Phase() != "late" {
		t.Fatalf("phase = %s, want late", mod.Phase())
	}
}

func TestUnknownProjectIsNeutral(t *testing.T) {
	p := New()
	_, _, factors := p.CalculateConfidence(100, "never-seen", neutralNoon)
	if factors["project_factor"] != 1.0 {
		t.Fatalf("project factor = %v, want 1.0 for unknown project", factors["project_factor"])
	}
}

func TestTrustLevel(t *testing.T) {
	p := New()
	if p.TrustLevel() != 0 {
		t.Fatalf("trust with no samples = %v, want 0", p.TrustLevel())
	}
	for i := 0; i < 20; i++ {
		p.RecordValidation(60, true, "", neutralNoon)
	}
	trust := p.TrustLevel()
	// 0.4*(20/100) + 0.4*1 + min(0.2, 20/50)
	want := 0.08 + 0.4 + 0.2
	if diff := trust - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("trust = %v, want %v", trust, want)
	}
	if trust < 0 || trust > 1 {
		t.Fatalf("trust %v out of [0,1]", trust)
	}
}

func TestNotificationModeRequiresOptInAndTrust(t *testing.T) {
	p := New()
	for i := 0; i < 100; i++ {
		p.RecordValidation(60, true, "", neutralNoon)
	}
	if p.TrustLevel() < TrustLevelHigh {
		t.Fatalf("trust = %v, expected high trust fixture", p.TrustLevel())
	}
	if p.ShouldUseNotification() {
		t.Fatalf("notification mode must require the explicit opt-in")
	}
	p.SetImplicitTrust(true)
	if !p.ShouldUseNotification() {
		t.Fatalf("notification mode should engage with opt-in and high trust")
	}
}

func TestAccuracyIndicator(t *testing.T) {
	p := New()
	if got := p.AccuracyIndicator(); got.Label != "Learning" {
		t.Fatalf("label = %s, want Learning with no data", got.Label)
	}
	for i := 0; i < 100; i++ {
		p.RecordValidation(60, true, "", neutralNoon)
	}
	if got := p.AccuracyIndicator(); got.Label != "High" {
		t.Fatalf("label = %s, want High", got.Label)
	}
}

func TestPatternSummaryCountsRecordedPauses(t *testing.T) {
	p := New()
	p.RecordValidation(600, true, "", neutralNoon)  // planning
	p.RecordValidation(960, true, "", neutralNoon)  // 16 min: break
	p.RecordValidation(1200, true, "", neutralNoon) // 20 min: break
	summary := p.PatternSummary()
	if summary[PatternPlanningPause] != 1 {
		t.Fatalf("planning count = %d, want 1", summary[PatternPlanningPause])
	}
	if summary[PatternBreak] != 2 {
		t.Fatalf("break count = %d, want 2", summary[PatternBreak])
	}
}

func TestSessionFactorAges(t *testing.T) {
	p := New()
	start := neutralNoon.Add(-45 * time.Minute)
	p.StartSession("", start)
	_, _, factors := p.CalculateConfidence(60, "", neutralNoon)
	if factors["session_factor"] != 0.9 {
		t.Fatalf("session factor = %v, want 0.9 at 45 minutes", factors["session_factor"])
	}
	_, _, factors = p.CalculateConfidence(60, "", neutralNoon.Add(30*time.Minute))
	if factors["session_factor"] != 0.8 {
		t.Fatalf("session factor = %v, want 0.8 past an hour", factors["session_factor"])
	}
}

func TestTimeOfDayFactor(t *testing.T) {
	p := New()
	cases := []struct {
		hour int
		want float64
	}{
		{10, 1.05},
		{15, 1.05},
		{12, 1.0},
		{6, 0.9},
		{23, 0.9},
	}
	for _, tc := range cases {
		at := time.Date(2026, 3, 4, tc.hour, 0, 0, 0, time.UTC)
		_, _, factors := p.CalculateConfidence(60, "", at)
		if factors["time_factor"] != tc.want {
			t.Fatalf("time factor at hour %d = %v, want %v", tc.hour, factors["time_factor"], tc.want)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	p := New()
	for i := 0; i < 15; i++ {
		p.RecordValidation(60, i%3 != 0, "proj", neutralNoon)
	}
	p.SetUserBias(0.4)
	p.SetImplicitTrust(true)
	p.UpdateProjectWorkTime("proj", 7200)

	snap := p.Snapshot()
	restored := New()
	restored.Restore(snap)

	if restored.UserBias() != 0.4 {
		t.Fatalf("restored bias = %v, want 0.4", restored.UserBias())
	}
	if !restored.ImplicitTrust() {
		t.Fatalf("restored implicit trust = false, want true")
	}
	original := p.ValidationStats()
	got := restored.ValidationStats()
	if got.TotalSamples != original.TotalSamples {
		t.Fatalf("restored samples = %d, want %d", got.TotalSamples, original.TotalSamples)
	}
	if got.LongestStreak != original.LongestStreak {
		t.Fatalf("restored streak = %d, want %d", got.LongestStreak, original.LongestStreak)
	}
	for i := range got.Buckets {
		if got.Buckets[i] != original.Buckets[i] {
			t.Fatalf("restored bucket %d = %+v, want %+v", i, got.Buckets[i], original.Buckets[i])
		}
	}
	if restored.project("proj").TotalWorkTime != 7200 {
		t.Fatalf("restored project work time = %d, want 7200", restored.project("proj").TotalWorkTime)
	}
}

func TestRestoreToleratesPartialSnapshot(t *testing.T) {
	p := New()
	p.Restore(Snapshot{TotalValidations: 7})
	stats := p.ValidationStats()
	if stats.TotalSamples != 7 {
		t.Fatalf("samples = %d, want 7 from partial snapshot", stats.TotalSamples)
	}
	// Buckets and projects keep defaults.
	if got := p.bucketFor(60).TotalCount; got != 0 {
		t.Fatalf("bucket count = %d, want 0", got)
	}
}

func TestRestoreClampsInvalidCounts(t *testing.T) {
	p := New()
	p.Restore(Snapshot{Buckets: map[string]BucketSnapshot{
		"0-180": {Total: 3, Validated: 9},
	}})
	bucket := p.bucketFor(60)
	if bucket.ValidatedCount > bucket.TotalCount {
		t.Fatalf("validated %d > total %d after restore", bucket.ValidatedCount, bucket.TotalCount)
	}
}
