package timer

import (
	"testing"

	"github.com/yusari/worktimer/internal/profile"
)

func running(limit int) State {
	return State{Phase: PhaseRunning, LimitMinutes: limit}
}

func TestTickAccumulatesWhileRunning(t *testing.T) {
	s := running(DefaultLimitMinutes)
	for i := 0; i < 5; i++ {
		next, effects := Transition(s, Event{Kind: EventTick})
		if len(effects) != 0 {
			t.Fatalf("tick %d produced effects %v", i, effects)
		}
		s = next
	}
	if s.TotalSeconds != 5 {
		t.Fatalf("total = %d, want 5", s.TotalSeconds)
	}
	if s.Phase != PhaseRunning {
		t.Fatalf("phase = %s, want running", s.Phase)
	}
}

func TestActivityStoppedEntersBuffer(t *testing.T) {
	s, _ := Transition(running(DefaultLimitMinutes), Event{Kind: EventActivityStopped})
	if s.Phase != PhaseBuffer {
		t.Fatalf("phase = %s, want buffer", s.Phase)
	}
	if s.BufferSeconds != 0 {
		t.Fatalf("buffer seconds = %d, want 0", s.BufferSeconds)
	}
}

func TestPulseDuringBufferLosesNoTime(t *testing.T) {
	s, _ := Transition(running(DefaultLimitMinutes), Event{Kind: EventActivityStopped})
	for i := 0; i < 59; i++ {
		s, _ = Transition(s, Event{Kind: EventTick})
	}
	if s.Phase != PhaseBuffer {
		t.Fatalf("phase after 59 buffer ticks = %s, want buffer", s.Phase)
	}
	if s.TotalSeconds != 59 {
		t.Fatalf("total = %d, buffer ticks must still count", s.TotalSeconds)
	}

	s, effects := Transition(s, Event{Kind: EventPulse})
	if s.Phase != PhaseRunning {
		t.Fatalf("phase after pulse = %s, want running", s.Phase)
	}
	if len(effects) != 0 {
		t.Fatalf("pulse from buffer produced effects %v", effects)
	}
	if s.TotalSeconds != 59 || s.IdleSeconds != 0 {
		t.Fatalf("state after pulse = %+v, want no lost or idle time", s)
	}
}

func TestBufferExpiresIntoPaused(t *testing.T) {
	s, _ := Transition(running(DefaultLimitMinutes), Event{Kind: EventActivityStopped})
	for i := 0; i < BufferSeconds; i++ {
		s, _ = Transition(s, Event{Kind: EventTick})
	}
	if s.Phase != PhasePaused {
		t.Fatalf("phase after %d buffer ticks = %s, want paused", BufferSeconds, s.Phase)
	}
	if s.TotalSeconds != BufferSeconds {
		t.Fatalf("total = %d, want %d", s.TotalSeconds, BufferSeconds)
	}
	if s.IdleSeconds != 0 {
		t.Fatalf("idle = %d, want 0 at the start of a pause", s.IdleSeconds)
	}
}

func TestPausedTicksAccumulateIdleOnly(t *testing.T) {
	s := State{Phase: PhasePaused, TotalSeconds: 100, LimitMinutes: 20}
	for i := 0; i < 30; i++ {
		s, _ = Transition(s, Event{Kind: EventTick})
	}
	if s.IdleSeconds != 30 {
		t.Fatalf("idle = %d, want 30", s.IdleSeconds)
	}
	if s.TotalSeconds != 100 {
		t.Fatalf("total = %d, must not grow while paused", s.TotalSeconds)
	}
}

func TestIdleTimesOutPastLimit(t *testing.T) {
	s := State{Phase: PhasePaused, TotalSeconds: 100, IdleSeconds: 1200, LimitMinutes: 20}
	next, effects := Transition(s, Event{Kind: EventTick})
	if next.Phase != PhasePaused {
		t.Fatalf("phase = %s, want to stay paused after timeout", next.Phase)
	}
	if next.IdleSeconds != 0 {
		t.Fatalf("idle = %d, want discarded to 0", next.IdleSeconds)
	}
	if len(effects) != 1 || effects[0].Kind != EffectIdleTimedOut || effects[0].Seconds != 1201 {
		t.Fatalf("effects = %v, want a single timeout of 1201s", effects)
	}
	if next.TotalSeconds != 100 {
		t.Fatalf("total = %d, timed-out idle must never be added", next.TotalSeconds)
	}
}

func TestIdleAtExactLimitStillPending(t *testing.T) {
	s := State{Phase: PhasePaused, IdleSeconds: 1199, LimitMinutes: 20}
	next, effects := Transition(s, Event{Kind: EventTick})
	if next.IdleSeconds != 1200 {
		t.Fatalf("idle = %d, want 1200", next.IdleSeconds)
	}
	if len(effects) != 0 {
		t.Fatalf("effects = %v, the limit is inclusive", effects)
	}
}

func TestPulseWhilePausedQueriesDecision(t *testing.T) {
	s := State{Phase: PhasePaused, IdleSeconds: 240, LimitMinutes: 20}
	next, effects := Transition(s, Event{Kind: EventPulse})
	if next.Phase != PhasePaused {
		t.Fatalf("phase = %s, want paused until the verdict lands", next.Phase)
	}
	if len(effects) != 1 || effects[0].Kind != EffectQueryDecision || effects[0].Seconds != 240 {
		t.Fatalf("effects = %v, want a decision query for 240s", effects)
	}
}

func TestDecisionAcceptAddsIdle(t *testing.T) {
	s := State{Phase: PhasePaused, TotalSeconds: 500, IdleSeconds: 240, LimitMinutes: 20}
	next, effects := Transition(s, Event{
		Kind:       EventDecision,
		Verdict:    profile.DecisionAutoAccept,
		Confidence: 0.9,
	})
	if next.Phase != PhaseRunning {
		t.Fatalf("phase = %s, want running", next.Phase)
	}
	if next.TotalSeconds != 740 {
		t.Fatalf("total = %d, want 740", next.TotalSeconds)
	}
	if next.IdleSeconds != 0 {
		t.Fatalf("idle = %d, want 0", next.IdleSeconds)
	}
	var added, decided bool
	for _, eff := range effects {
		switch eff.Kind {
		case EffectTimeAdded:
			added = eff.Seconds == 240
		case EffectAutoDecided:
			decided = eff.Accepted && eff.Seconds == 240 && eff.Confidence == 0.9
		}
	}
	if !added || !decided {
		t.Fatalf("effects = %v, want time added and auto decided", effects)
	}
}

func TestDecisionDiscardDropsIdle(t *testing.T) {
	s := State{Phase: PhasePaused, TotalSeconds: 500, IdleSeconds: 240, LimitMinutes: 20}
	next, effects := Transition(s, Event{
		Kind:       EventDecision,
		Verdict:    profile.DecisionAutoDiscard,
		Confidence: 0.1,
	})
	if next.TotalSeconds != 500 {
		t.Fatalf("total = %d, discarded idle must not be added", next.TotalSeconds)
	}
	if next.Phase != PhaseRunning {
		t.Fatalf("phase = %s, want running", next.Phase)
	}
	if len(effects) != 1 || effects[0].Kind != EffectAutoDecided || effects[0].Accepted {
		t.Fatalf("effects = %v, want a single rejected auto decision", effects)
	}
}

func TestDecisionAskSuspendsTimer(t *testing.T) {
	s := State{Phase: PhasePaused, IdleSeconds: 240, LimitMinutes: 20}
	next, effects := Transition(s, Event{Kind: EventDecision, Verdict: profile.DecisionAskUser, Confidence: 0.5})
	if next.Phase != PhaseCognitiveCheck {
		t.Fatalf("phase = %s, want cognitive check", next.Phase)
	}
	if next.IdleSeconds != 240 {
		t.Fatalf("idle = %d, must be preserved for the response", next.IdleSeconds)
	}
	if len(effects) != 1 || effects[0].Kind != EffectDecisionRequested {
		t.Fatalf("effects = %v, want a decision request", effects)
	}

	// Pulses and ticks do nothing while the question is open.
	pulsed, pulseEffects := Transition(next, Event{Kind: EventPulse})
	if pulsed != next || len(pulseEffects) != 0 {
		t.Fatalf("pulse during cognitive check changed state: %+v %v", pulsed, pulseEffects)
	}
	ticked, _ := Transition(next, Event{Kind: EventTick})
	if ticked.TotalSeconds != next.TotalSeconds || ticked.IdleSeconds != next.IdleSeconds {
		t.Fatalf("tick during cognitive check changed counters: %+v", ticked)
	}
}

func TestResponseWasThinkingAddsIdle(t *testing.T) {
	s := State{Phase: PhaseCognitiveCheck, TotalSeconds: 500, IdleSeconds: 240, LimitMinutes: 20}
	next, effects := Transition(s, Event{Kind: EventResponse, WasThinking: true})
	if next.TotalSeconds != 740 || next.IdleSeconds != 0 || next.Phase != PhaseRunning {
		t.Fatalf("state = %+v, want idle folded into total and running", next)
	}
	if len(effects) != 1 || effects[0].Kind != EffectTimeAdded || effects[0].Seconds != 240 {
		t.Fatalf("effects = %v, want 240s added", effects)
	}
}

func TestResponseNotThinkingDropsIdle(t *testing.T) {
	s := State{Phase: PhaseCognitiveCheck, TotalSeconds: 500, IdleSeconds: 240, LimitMinutes: 20}
	next, effects := Transition(s, Event{Kind: EventResponse, WasThinking: false})
	if next.TotalSeconds != 500 || next.IdleSeconds != 0 || next.Phase != PhaseRunning {
		t.Fatalf("state = %+v, want idle dropped and running", next)
	}
	if len(effects) != 0 {
		t.Fatalf("effects = %v, want none", effects)
	}
}

func TestResponseOutsideCognitiveCheckIgnored(t *testing.T) {
	s := State{Phase: PhaseRunning, TotalSeconds: 500, LimitMinutes: 20}
	next, _ := Transition(s, Event{Kind: EventResponse, WasThinking: true})
	if next != s {
		t.Fatalf("state = %+v, response must be a no-op outside cognitive check", next)
	}
}

func TestStopPreservesTotal(t *testing.T) {
	s := State{Phase: PhasePaused, TotalSeconds: 500, IdleSeconds: 30, LimitMinutes: 20}
	next, _ := Transition(s, Event{Kind: EventStop})
	if next.Phase != PhaseStopped || next.TotalSeconds != 500 || next.IdleSeconds != 0 {
		t.Fatalf("state = %+v, want stopped with total kept", next)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := State{Phase: PhaseRunning, TotalSeconds: 500, LimitMinutes: 20}
	next, _ := Transition(s, Event{Kind: EventReset})
	if next.Phase != PhaseStopped || next.TotalSeconds != 0 {
		t.Fatalf("state = %+v, want zeroed stopped state", next)
	}
}

func TestClampLimitMinutes(t *testing.T) {
	cases := []struct{ in, want int }{
		{10, 15}, {15, 15}, {20, 20}, {25, 25}, {30, 25},
	}
	for _, tc := range cases {
		if got := ClampLimitMinutes(tc.in); got != tc.want {
			t.Fatalf("clamp(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
