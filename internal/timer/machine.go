package timer

import "github.com/yusari/worktimer/internal/profile"

// DecisionSource resolves an idle duration into a confidence and a
// verdict. When none is configured the machine asks, never guesses.
type DecisionSource func(idleSeconds int) (confidence float64, verdict profile.Decision)

// AutoDecision is the capacity-1 undo slot payload for the most recent
// automatic decision.
type AutoDecision struct {
	Accepted   bool
	Seconds    int
	Confidence float64
}

// Machine owns one timer state and drives Transition. One machine per
// tracked document; not safe for concurrent use, the owner serializes.
type Machine struct {
	state    State
	decide   DecisionSource
	lastAuto *AutoDecision
}

func NewMachine() *Machine {
	return &Machine{state: State{
		Phase:        PhaseStopped,
		LimitMinutes: DefaultLimitMinutes,
	}}
}

func (m *Machine) SetDecisionSource(decide DecisionSource) {
	m.decide = decide
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Phase() Phase {
	return m.state.Phase
}

func (m *Machine) TotalSeconds() int {
	return m.state.TotalSeconds
}

func (m *Machine) IdleSeconds() int {
	return m.state.IdleSeconds
}

// SetTotalSeconds seeds accumulated time when restoring a document.
func (m *Machine) SetTotalSeconds(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	m.state.TotalSeconds = seconds
}

func (m *Machine) LimitMinutes() int {
	return m.state.LimitMinutes
}

func (m *Machine) SetLimitMinutes(minutes int) {
	m.state.LimitMinutes = ClampLimitMinutes(minutes)
}

// AdjustLimit nudges the limit by delta minutes and returns the new
// clamped value.
func (m *Machine) AdjustLimit(delta int) int {
	m.state.LimitMinutes = ClampLimitMinutes(m.state.LimitMinutes + delta)
	return m.state.LimitMinutes
}

func (m *Machine) Start() {
	if m.state.Phase == PhaseStopped {
		m.state.Phase = PhaseRunning
	}
}

func (m *Machine) Stop() []Effect {
	return m.apply(Event{Kind: EventStop})
}

func (m *Machine) Reset() []Effect {
	return m.apply(Event{Kind: EventReset})
}

func (m *Machine) Tick() []Effect {
	return m.apply(Event{Kind: EventTick})
}

func (m *Machine) OnActivityStopped() []Effect {
	return m.apply(Event{Kind: EventActivityStopped})
}

// OnActivityDetected processes one pulse. If the pulse ends a pause the
// machine consults its decision source and applies the verdict in the
// same call, so the caller observes a fully resolved state.
func (m *Machine) OnActivityDetected() []Effect {
	effects := m.apply(Event{Kind: EventPulse})
	for _, eff := range effects {
		if eff.Kind != EffectQueryDecision {
			continue
		}
		confidence, verdict := 0.5, profile.DecisionAskUser
		if m.decide != nil {
			confidence, verdict = m.decide(eff.Seconds)
		}
		effects = append(effects, m.apply(Event{
			Kind:       EventDecision,
			Verdict:    verdict,
			Confidence: confidence,
		})...)
	}
	return effects
}

func (m *Machine) OnCognitiveResponse(wasThinking bool) []Effect {
	return m.apply(Event{Kind: EventResponse, WasThinking: wasThinking})
}

func (m *Machine) apply(ev Event) []Effect {
	next, effects := Transition(m.state, ev)
	m.state = next
	for _, eff := range effects {
		if eff.Kind == EffectAutoDecided {
			// A new auto-decision overwrites any unconsumed one.
			m.lastAuto = &AutoDecision{
				Accepted:   eff.Accepted,
				Seconds:    eff.Seconds,
				Confidence: eff.Confidence,
			}
		}
	}
	return effects
}

// UndoLastAutoDecision reverses the last automatic decision exactly and
// consumes the slot. Idempotent: a second call reports no decision.
func (m *Machine) UndoLastAutoDecision() (AutoDecision, bool) {
	if m.lastAuto == nil {
		return AutoDecision{}, false
	}
	undone := *m.lastAuto
	m.lastAuto = nil
	if undone.Accepted {
		m.state.TotalSeconds -= undone.Seconds
		if m.state.TotalSeconds < 0 {
			m.state.TotalSeconds = 0
		}
	} else {
		m.state.TotalSeconds += undone.Seconds
	}
	return undone, true
}

// PendingAutoDecision exposes the unconsumed slot without clearing it.
func (m *Machine) PendingAutoDecision() (AutoDecision, bool) {
	if m.lastAuto == nil {
		return AutoDecision{}, false
	}
	return *m.lastAuto, true
}
