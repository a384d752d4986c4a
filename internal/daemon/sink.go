package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yusari/worktimer/internal/model"
	"github.com/yusari/worktimer/internal/session"
	"github.com/yusari/worktimer/internal/timer"
)

// Server implements session.Sink. Every sink method is invoked with the
// shared profile lock already held, so none of them may take it again.

const sinkWriteTimeout = 3 * time.Second

func (s *Server) AutoDecided(documentKey string, decision timer.AutoDecision, at time.Time) {
	record := model.AutoDecisionRecord{
		DocumentKey: documentKey,
		Accepted:    decision.Accepted,
		IdleSeconds: decision.Seconds,
		Confidence:  decision.Confidence,
		DecidedAt:   at,
	}
	s.stateMu.Lock()
	s.recent = append(s.recent, record)
	if len(s.recent) > s.cfg.RecentDecisions {
		s.recent = s.recent[len(s.recent)-s.cfg.RecentDecisions:]
	}
	s.stateMu.Unlock()

	s.log.Info("auto decision",
		zap.String("document", documentKey),
		zap.Bool("accepted", decision.Accepted),
		zap.Int("idle_seconds", decision.Seconds),
		zap.Float64("confidence", decision.Confidence),
		zap.Bool("notification_mode", s.prof.ShouldUseNotification()))
}

func (s *Server) AskRequested(documentKey string, req session.AskRequest) {
	s.log.Info("decision requested",
		zap.String("document", documentKey),
		zap.String("request_id", req.ID),
		zap.Int("idle_seconds", req.IdleSeconds),
		zap.Float64("confidence", req.Confidence))
}

func (s *Server) ProfileChanged() {
	// Snapshot under the caller's profileLock, write on the queue.
	snap := s.prof.Snapshot()
	now := time.Now()
	s.enqueueWrite(func(ctx context.Context) {
		if err := s.store.SaveProfile(ctx, snap, now); err != nil {
			s.log.Warn("save profile", zap.Error(err))
		}
	})
}

func (s *Server) LimitChanged(minutes int) {
	s.stateMu.Lock()
	s.settings.TLimitMinutes = minutes
	settings := s.settings
	s.stateMu.Unlock()

	now := time.Now()
	s.enqueueWrite(func(ctx context.Context) {
		if err := s.store.SaveSettings(ctx, settings, now); err != nil {
			s.log.Warn("save settings", zap.Error(err))
		}
	})
	s.log.Debug("idle limit adjusted", zap.Int("t_limit_minutes", minutes))
}

func (s *Server) TimeCheckpoint(documentKey string, totalSeconds int) {
	now := time.Now()
	s.enqueueWrite(func(ctx context.Context) {
		if err := s.store.UpsertDocumentTime(ctx, documentKey, totalSeconds, now); err != nil {
			s.log.Warn("save document time", zap.String("document", documentKey), zap.Error(err))
		}
	})
}
