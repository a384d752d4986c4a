package timer

import "github.com/yusari/worktimer/internal/profile"

type Phase string

const (
	PhaseStopped        Phase = "stopped"
	PhaseRunning        Phase = "running"
	PhaseBuffer         Phase = "buffer"
	PhasePaused         Phase = "paused"
	PhaseCognitiveCheck Phase = "cognitive_check"
)

const (
	BufferSeconds       = 60
	DefaultLimitMinutes = 20
	MinLimitMinutes     = 15
	MaxLimitMinutes     = 25
)

// State is the full timer state. Transition is the only thing that
// produces a new one.
type State struct {
	Phase         Phase
	TotalSeconds  int
	IdleSeconds   int
	BufferSeconds int
	LimitMinutes  int
}

type EventKind string

const (
	EventTick            EventKind = "tick"
	EventPulse           EventKind = "pulse"
	EventActivityStopped EventKind = "activity_stopped"
	EventDecision        EventKind = "decision"
	EventResponse        EventKind = "response"
	EventStop            EventKind = "stop"
	EventReset           EventKind = "reset"
)

type Event struct {
	Kind        EventKind
	Verdict     profile.Decision // EventDecision
	Confidence  float64          // EventDecision
	WasThinking bool             // EventResponse
}

type EffectKind string

const (
	// EffectQueryDecision asks the host to obtain a confidence verdict
	// for the accumulated idle time and feed it back as EventDecision.
	EffectQueryDecision EffectKind = "query_decision"
	// EffectDecisionRequested suspends the timer until an external
	// response arrives via EventResponse.
	EffectDecisionRequested EffectKind = "decision_requested"
	EffectAutoDecided       EffectKind = "auto_decided"
	EffectTimeAdded         EffectKind = "time_added"
	EffectIdleDiscarded     EffectKind = "idle_discarded"
	EffectIdleTimedOut      EffectKind = "idle_timed_out"
)

type Effect struct {
	Kind       EffectKind
	Seconds    int
	Accepted   bool
	Confidence float64
}

// Transition applies one event to a state and returns the next state
// plus the effects the host must act on. Pure: no clocks, no I/O.
func Transition(s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EventTick:
		return transitionTick(s)
	case EventPulse:
		return transitionPulse(s)
	case EventActivityStopped:
		if s.Phase == PhaseRunning {
			s.Phase = PhaseBuffer
			s.BufferSeconds = 0
		}
		return s, nil
	case EventDecision:
		return transitionDecision(s, ev)
	case EventResponse:
		return transitionResponse(s, ev)
	case EventStop:
		s.Phase = PhaseStopped
		s.IdleSeconds = 0
		s.BufferSeconds = 0
		return s, nil
	case EventReset:
		s.Phase = PhaseStopped
		s.TotalSeconds = 0
		s.IdleSeconds = 0
		s.BufferSeconds = 0
		return s, nil
	}
	return s, nil
}

func transitionTick(s State) (State, []Effect) {
	switch s.Phase {
	case PhaseRunning:
		s.TotalSeconds++
	case PhaseBuffer:
		// Buffer time still counts as work.
		s.TotalSeconds++
		s.BufferSeconds++
		if s.BufferSeconds >= BufferSeconds {
			s.Phase = PhasePaused
			s.BufferSeconds = 0
			s.IdleSeconds = 0
		}
	case PhasePaused:
		s.IdleSeconds++
		if s.IdleSeconds > s.LimitMinutes*60 {
			// Past the limit the idle period is silently discarded;
			// the timer stays paused waiting for the next pulse.
			timedOut := s.IdleSeconds
			s.IdleSeconds = 0
			return s, []Effect{{Kind: EffectIdleTimedOut, Seconds: timedOut}}
		}
	}
	return s, nil
}

func transitionPulse(s State) (State, []Effect) {
	switch s.Phase {
	case PhaseStopped:
		s.Phase = PhaseRunning
	case PhaseBuffer:
		s.Phase = PhaseRunning
		s.BufferSeconds = 0
	case PhasePaused:
		if s.IdleSeconds <= s.LimitMinutes*60 {
			return s, []Effect{{Kind: EffectQueryDecision, Seconds: s.IdleSeconds}}
		}
		s.IdleSeconds = 0
		s.Phase = PhaseRunning
		return s, []Effect{{Kind: EffectIdleDiscarded}}
	case PhaseCognitiveCheck:
		// A decision is pending; pulses are ignored until it resolves.
	}
	return s, nil
}

func transitionDecision(s State, ev Event) (State, []Effect) {
	if s.Phase != PhasePaused {
		return s, nil
	}
	idle := s.IdleSeconds
	switch ev.Verdict {
	case profile.DecisionAutoAccept:
		s.TotalSeconds += idle
		s.IdleSeconds = 0
		s.Phase = PhaseRunning
		return s, []Effect{
			{Kind: EffectTimeAdded, Seconds: idle},
			{Kind: EffectAutoDecided, Seconds: idle, Accepted: true, Confidence: ev.Confidence},
		}
	case profile.DecisionAutoDiscard:
		s.IdleSeconds = 0
		s.Phase = PhaseRunning
		return s, []Effect{
			{Kind: EffectAutoDecided, Seconds: idle, Accepted: false, Confidence: ev.Confidence},
		}
	default:
		s.Phase = PhaseCognitiveCheck
		return s, []Effect{
			{Kind: EffectDecisionRequested, Seconds: idle, Confidence: ev.Confidence},
		}
	}
}

func transitionResponse(s State, ev Event) (State, []Effect) {
	if s.Phase != PhaseCognitiveCheck {
		return s, nil
	}
	var effects []Effect
	if ev.WasThinking {
		s.TotalSeconds += s.IdleSeconds
		effects = append(effects, Effect{Kind: EffectTimeAdded, Seconds: s.IdleSeconds})
	}
	s.IdleSeconds = 0
	s.Phase = PhaseRunning
	return s, effects
}

func ClampLimitMinutes(minutes int) int {
	if minutes < MinLimitMinutes {
		return MinLimitMinutes
	}
	if minutes > MaxLimitMinutes {
		return MaxLimitMinutes
	}
	return minutes
}
