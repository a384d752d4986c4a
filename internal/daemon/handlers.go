package daemon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/yusari/worktimer/internal/api"
	"github.com/yusari/worktimer/internal/session"
	"github.com/yusari/worktimer/internal/timer"
)

const (
	errRefInvalid  = "invalid_request"
	errRefNotFound = "not_found"
	errRefConflict = "conflict"
	errRefInternal = "internal"
)

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("POST /v1/sessions", s.handleAttach)
	mux.HandleFunc("GET /v1/sessions/{key}", s.handleGetSession)
	mux.HandleFunc("POST /v1/sessions/{key}/activity", s.handleActivity)
	mux.HandleFunc("POST /v1/sessions/{key}/focus", s.handleFocus)
	mux.HandleFunc("POST /v1/sessions/{key}/respond", s.handleRespond)
	mux.HandleFunc("POST /v1/sessions/{key}/undo", s.handleUndo)
	mux.HandleFunc("POST /v1/sessions/{key}/start", s.handleStart)
	mux.HandleFunc("POST /v1/sessions/{key}/stop", s.handleStop)
	mux.HandleFunc("POST /v1/sessions/{key}/reset", s.handleReset)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PATCH /v1/settings", s.handlePatchSettings)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Status:        "ok",
	})
}

func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	var req api.AttachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errRefInvalid, "invalid request body")
		return
	}
	key := strings.TrimSpace(req.DocumentKey)
	if key == "" {
		s.writeError(w, http.StatusBadRequest, errRefInvalid, "document_key is required")
		return
	}
	sess, err := s.attach(r.Context(), key)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, errRefInternal, err.Error())
		return
	}
	s.writeSession(w, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(r.PathValue("key"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errRefNotFound, "session not found")
		return
	}
	s.writeSession(w, sess)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(r.PathValue("key"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errRefNotFound, "session not found")
		return
	}
	sess.HandlePulse()
	s.writeSession(w, sess)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(r.PathValue("key"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errRefNotFound, "session not found")
		return
	}
	var req api.FocusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errRefInvalid, "invalid request body")
		return
	}
	sess.HandleFocus(req.HasFocus)
	s.writeSession(w, sess)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(r.PathValue("key"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errRefNotFound, "session not found")
		return
	}
	var req api.RespondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, errRefInvalid, "invalid request body")
		return
	}
	if err := sess.Respond(req.RequestID, req.WasThinking); err != nil {
		switch {
		case errors.Is(err, session.ErrNoPendingRequest):
			s.writeError(w, http.StatusConflict, errRefConflict, "no pending decision request")
		case errors.Is(err, session.ErrRequestMismatch):
			s.writeError(w, http.StatusConflict, errRefConflict, "decision request id mismatch")
		default:
			s.writeError(w, http.StatusInternalServerError, errRefInternal, err.Error())
		}
		return
	}
	s.writeSession(w, sess)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(r.PathValue("key"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errRefNotFound, "session not found")
		return
	}
	undone, ok := sess.Undo()
	s.writeJSON(w, http.StatusOK, api.UndoResponse{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Undone:        ok,
		Accepted:      undone.Accepted,
		IdleSeconds:   undone.Seconds,
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(r.PathValue("key"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errRefNotFound, "session not found")
		return
	}
	sess.Start()
	s.writeSession(w, sess)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(r.PathValue("key"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errRefNotFound, "session not found")
		return
	}
	sess.Stop()
	s.writeSession(w, sess)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.findSession(r.PathValue("key"))
	if !ok {
		s.writeError(w, http.StatusNotFound, errRefNotFound, "session not found")
		return
	}
	sess.Reset()
	s.writeSession(w, sess)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.profileLock.Lock()
	stats := s.prof.ValidationStats()
	patterns := s.prof.PatternSummary()
	accuracy := s.prof.AccuracyIndicator()
	notification := s.prof.ShouldUseNotification()
	s.profileLock.Unlock()

	resp := api.StatsResponse{
		SchemaVersion:    api.SchemaVersion,
		GeneratedAt:      time.Now().UTC(),
		TotalSamples:     stats.TotalSamples,
		ValidationRate:   stats.ValidationRate,
		LongestStreak:    stats.LongestStreak,
		TrustLevel:       stats.TrustLevel,
		AccuracyLabel:    accuracy.Label,
		AccuracyPercent:  accuracy.Percent,
		NotificationMode: notification,
		Patterns:         map[string]int{},
	}
	for _, bucket := range stats.Buckets {
		resp.Buckets = append(resp.Buckets, api.BucketStatsResponse{
			Key:            bucket.Key,
			ValidationRate: bucket.ValidationRate,
			SampleCount:    bucket.SampleCount,
		})
	}
	for pattern, count := range patterns {
		resp.Patterns[string(pattern)] = count
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	s.stateMu.Lock()
	settings := s.settings
	s.stateMu.Unlock()
	s.writeJSON(w, http.StatusOK, api.SettingsResponse{
		SchemaVersion:        api.SchemaVersion,
		GeneratedAt:          time.Now().UTC(),
		TLimitMinutes:        settings.TLimitMinutes,
		UserBias:             settings.UserBias,
		ImplicitTrustEnabled: settings.ImplicitTrustEnabled,
	})
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch api.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, errRefInvalid, "invalid request body")
		return
	}

	s.stateMu.Lock()
	if patch.TLimitMinutes != nil {
		s.settings.TLimitMinutes = timer.ClampLimitMinutes(*patch.TLimitMinutes)
	}
	if patch.UserBias != nil {
		bias := *patch.UserBias
		if bias < -1 {
			bias = -1
		}
		if bias > 1 {
			bias = 1
		}
		s.settings.UserBias = bias
	}
	if patch.ImplicitTrustEnabled != nil {
		s.settings.ImplicitTrustEnabled = *patch.ImplicitTrustEnabled
	}
	settings := s.settings
	s.stateMu.Unlock()

	// The idle limit is live: push it into every attached session, not
	// just into the store for future attaches.
	if patch.TLimitMinutes != nil {
		for _, sess := range s.sessionList() {
			sess.SetLimit(settings.TLimitMinutes)
		}
	}

	s.profileLock.Lock()
	s.prof.SetUserBias(settings.UserBias)
	s.prof.SetImplicitTrust(settings.ImplicitTrustEnabled)
	s.profileLock.Unlock()

	if err := s.store.SaveSettings(r.Context(), settings, time.Now()); err != nil {
		s.writeError(w, http.StatusInternalServerError, errRefInternal, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SettingsResponse{
		SchemaVersion:        api.SchemaVersion,
		GeneratedAt:          time.Now().UTC(),
		TLimitMinutes:        settings.TLimitMinutes,
		UserBias:             settings.UserBias,
		ImplicitTrustEnabled: settings.ImplicitTrustEnabled,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.stateMu.Lock()
	recent := make([]api.AutoDecisionResponse, 0, len(s.recent))
	for _, record := range s.recent {
		recent = append(recent, api.AutoDecisionResponse{
			DocumentKey: record.DocumentKey,
			Accepted:    record.Accepted,
			IdleSeconds: record.IdleSeconds,
			Confidence:  record.Confidence,
			DecidedAt:   record.DecidedAt,
		})
	}
	s.stateMu.Unlock()
	s.writeJSON(w, http.StatusOK, api.EventsEnvelope{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Decisions:     recent,
	})
}

func (s *Server) writeSession(w http.ResponseWriter, sess *session.Session) {
	snap := sess.Snapshot()
	resp := api.SessionResponse{
		DocumentKey:   snap.DocumentKey,
		State:         string(snap.Phase),
		TotalSeconds:  snap.TotalSeconds,
		IdleSeconds:   snap.IdleSeconds,
		TLimitMinutes: snap.LimitMinutes,
	}
	if snap.Pending != nil {
		resp.Pending = &api.AskRequestResponse{
			RequestID:   snap.Pending.ID,
			IdleSeconds: snap.Pending.IdleSeconds,
			Confidence:  snap.Pending.Confidence,
			CreatedAt:   snap.Pending.CreatedAt,
		}
	}
	s.writeJSON(w, http.StatusOK, api.SessionEnvelope{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Session:       resp,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, api.ErrorResponse{
		SchemaVersion: api.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Error:         api.APIError{Code: code, Message: msg},
	})
}
