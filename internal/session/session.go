package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yusari/worktimer/internal/profile"
	"github.com/yusari/worktimer/internal/timer"
)

var (
	ErrNoPendingRequest = errors.New("no pending decision request")
	ErrRequestMismatch  = errors.New("decision request id mismatch")
)

const (
	// Pulses inside this window refresh activity but are not counted
	// again for burst intensity.
	pulseThrottle = 500 * time.Millisecond
	// Persist accumulated document time at this cadence of tracked
	// seconds.
	saveEverySeconds = 30
)

// AskRequest is an unresolved request for the user to say whether an
// idle period was cognitive work.
type AskRequest struct {
	ID          string
	IdleSeconds int
	Confidence  float64
	CreatedAt   time.Time
}

// Sink receives the outcomes a session cannot act on itself:
// persistence and external notification.
type Sink interface {
	AutoDecided(documentKey string, decision timer.AutoDecision, at time.Time)
	AskRequested(documentKey string, req AskRequest)
	ProfileChanged()
	LimitChanged(minutes int)
	TimeCheckpoint(documentKey string, totalSeconds int)
}

// Session owns one timer machine for one tracked document and routes
// its signals through the shared cognitive profile. All methods run
// under a lock, which also guarantees a pending ask request is resolved
// before any later pulse is processed. Sessions sharing one profile
// must share one lock; pass it via NewWithLock.
type Session struct {
	mu *sync.Mutex

	documentKey string
	machine     *timer.Machine
	prof        *profile.Profile
	sink        Sink
	now         func() time.Time

	lastActivity   time.Time
	lastCounted    time.Time
	lastSavedTotal int
	pending        *AskRequest
}

func New(documentKey string, prof *profile.Profile, sink Sink) *Session {
	return NewWithLock(documentKey, prof, sink, &sync.Mutex{})
}

func NewWithLock(documentKey string, prof *profile.Profile, sink Sink, mu *sync.Mutex) *Session {
	s := &Session{
		mu:          mu,
		documentKey: documentKey,
		machine:     timer.NewMachine(),
		prof:        prof,
		sink:        sink,
		now:         time.Now,
	}
	s.machine.SetDecisionSource(func(idleSeconds int) (float64, profile.Decision) {
		confidence, verdict, _ := prof.CalculateConfidence(idleSeconds, documentKey, s.now())
		return confidence, verdict
	})
	return s
}

// WithClock replaces the session clock. Test hook.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

func (s *Session) DocumentKey() string {
	return s.documentKey
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		DocumentKey:  s.documentKey,
		Phase:        s.machine.Phase(),
		TotalSeconds: s.machine.TotalSeconds(),
		IdleSeconds:  s.machine.IdleSeconds(),
		LimitMinutes: s.machine.LimitMinutes(),
	}
	if s.pending != nil {
		req := *s.pending
		snap.Pending = &req
	}
	return snap
}

type Snapshot struct {
	DocumentKey  string
	Phase        timer.Phase
	TotalSeconds int
	IdleSeconds  int
	LimitMinutes int
	Pending      *AskRequest
}

// Restore seeds persisted state when the document is re-attached.
func (s *Session) Restore(totalSeconds, limitMinutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetTotalSeconds(totalSeconds)
	s.machine.SetLimitMinutes(limitMinutes)
	s.lastSavedTotal = s.machine.TotalSeconds()
}

// SetLimit applies a settings-level idle limit to the machine, so a
// settings change reaches sessions that are already attached.
func (s *Session) SetLimit(minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetLimitMinutes(minutes)
}

func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Start()
	s.prof.StartSession(s.documentKey, s.now())
}

func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.machine.Stop()
	s.checkpoint()
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.machine.Reset()
	s.checkpoint()
}

// HandlePulse processes one activity pulse.
func (s *Session) HandlePulse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.lastActivity = now
	if s.lastCounted.IsZero() || now.Sub(s.lastCounted) >= pulseThrottle {
		s.prof.RecordActivity(now)
		s.lastCounted = now
	}
	s.handleEffects(s.machine.OnActivityDetected(), now)
}

// CheckIdle raises the activity-stopped transition once no pulse has
// arrived for the threshold.
func (s *Session) CheckIdle(threshold time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastActivity.IsZero() || s.machine.Phase() != timer.PhaseRunning {
		return
	}
	if s.now().Sub(s.lastActivity) > threshold {
		s.machine.OnActivityStopped()
	}
}

// Tick advances the machine by one second. A checkpoint fires once per
// earned multiple of the cadence, not on every tick while the total is
// parked there.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Tick()
	total := s.machine.TotalSeconds()
	if total > 0 && total%saveEverySeconds == 0 && total != s.lastSavedTotal {
		s.prof.UpdateProjectWorkTime(s.documentKey, total)
		s.checkpoint()
	}
}

// checkpoint reports the current total to the sink and remembers it so
// repeated ticks at the same total do not re-issue the write. Callers
// hold s.mu.
func (s *Session) checkpoint() {
	s.lastSavedTotal = s.machine.TotalSeconds()
	s.sink.TimeCheckpoint(s.documentKey, s.lastSavedTotal)
}

// Respond resolves the pending ask request with the user's answer and
// feeds the answer back into the profile, nudging the idle limit along
// the way.
func (s *Session) Respond(requestID string, wasThinking bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return ErrNoPendingRequest
	}
	if requestID != "" && requestID != s.pending.ID {
		return ErrRequestMismatch
	}
	idle := s.machine.IdleSeconds()
	now := s.now()
	s.prof.RecordValidation(idle, wasThinking, s.documentKey, now)

	delta := -1
	if wasThinking {
		delta = 1
	}
	s.sink.LimitChanged(s.machine.AdjustLimit(delta))

	s.machine.OnCognitiveResponse(wasThinking)
	s.pending = nil
	s.sink.ProfileChanged()
	s.checkpoint()
	return nil
}

// Undo reverses the last automatic decision and records the opposite
// answer so the model learns from the correction.
func (s *Session) Undo() (timer.AutoDecision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	undone, ok := s.machine.UndoLastAutoDecision()
	if !ok {
		return timer.AutoDecision{}, false
	}
	s.prof.RecordValidation(undone.Seconds, !undone.Accepted, s.documentKey, s.now())
	s.sink.ProfileChanged()
	s.checkpoint()
	return undone, true
}

func (s *Session) HandleFocus(hasFocus bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hasFocus {
		s.prof.RecordFocusRegained()
	} else {
		s.prof.RecordFocusLost()
	}
}

func (s *Session) handleEffects(effects []timer.Effect, now time.Time) {
	for _, eff := range effects {
		switch eff.Kind {
		case timer.EffectAutoDecided:
			decision := timer.AutoDecision{
				Accepted:   eff.Accepted,
				Seconds:    eff.Seconds,
				Confidence: eff.Confidence,
			}
			s.prof.RecordValidation(eff.Seconds, eff.Accepted, s.documentKey, now)
			s.sink.ProfileChanged()
			s.sink.AutoDecided(s.documentKey, decision, now)
			s.checkpoint()
		case timer.EffectDecisionRequested:
			req := AskRequest{
				ID:          uuid.NewString(),
				IdleSeconds: eff.Seconds,
				Confidence:  eff.Confidence,
				CreatedAt:   now,
			}
			s.pending = &req
			s.sink.AskRequested(s.documentKey, req)
		}
	}
}
