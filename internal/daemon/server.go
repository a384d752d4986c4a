package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yusari/worktimer/internal/config"
	"github.com/yusari/worktimer/internal/db"
	"github.com/yusari/worktimer/internal/model"
	"github.com/yusari/worktimer/internal/profile"
	"github.com/yusari/worktimer/internal/session"
	"github.com/yusari/worktimer/internal/timer"
)

// Server hosts the timer sessions behind a unix-socket HTTP API. One
// cognitive profile is shared by every session; profileLock serializes
// all access to it, including through the sessions themselves.
type Server struct {
	cfg      config.Config
	log      *zap.Logger
	store    *db.Store
	streamID string

	httpSrv  *http.Server
	listener net.Listener
	lockFile *os.File
	mu       sync.Mutex
	shutdown sync.Once

	// Store writes from sink callbacks are queued here and performed by
	// a single writer goroutine, so a slow write never stalls a caller
	// that holds profileLock.
	writeMu      sync.Mutex
	writesClosed bool
	writes       chan func(context.Context)
	writerDone   chan struct{}

	profileLock sync.Mutex
	prof        *profile.Profile

	stateMu  sync.Mutex
	sessions map[string]*session.Session
	settings model.Settings
	recent   []model.AutoDecisionRecord
}

func NewServer(cfg config.Config, store *db.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	s := &Server{
		cfg:        cfg,
		log:        log,
		store:      store,
		streamID:   uuid.NewString(),
		prof:       profile.New(),
		sessions:   map[string]*session.Session{},
		settings:   model.DefaultSettings(),
		writes:     make(chan func(context.Context), 64),
		writerDone: make(chan struct{}),
		httpSrv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	s.routes(mux)
	go s.runWriteLoop()
	return s
}

func (s *Server) runWriteLoop() {
	defer close(s.writerDone)
	for w := range s.writes {
		ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
		w(ctx)
		cancel()
	}
}

// enqueueWrite hands a store write to the writer goroutine. Every
// queued write carries latest-value state, so when the queue is full
// behind a stalled store it is safe to drop: a later write or the
// shutdown checkpoint rewrites the same rows.
func (s *Server) enqueueWrite(w func(context.Context)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writesClosed {
		return
	}
	select {
	case s.writes <- w:
	default:
		s.log.Warn("store write queue full, dropping write")
	}
}

// drainWrites stops accepting new store writes and waits for the queued
// ones to land.
func (s *Server) drainWrites() {
	s.writeMu.Lock()
	if !s.writesClosed {
		s.writesClosed = true
		close(s.writes)
	}
	s.writeMu.Unlock()
	<-s.writerDone
}

// LoadState restores the profile and settings from the store. Missing
// or partial state falls back to defaults per field.
func (s *Server) LoadState(ctx context.Context) error {
	snap, err := s.store.LoadProfile(ctx)
	if err != nil {
		return err
	}
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	s.profileLock.Lock()
	s.prof.Restore(snap)
	s.prof.SetUserBias(settings.UserBias)
	s.prof.SetImplicitTrust(settings.ImplicitTrustEnabled)
	s.profileLock.Unlock()

	s.stateMu.Lock()
	settings.TLimitMinutes = timer.ClampLimitMinutes(settings.TLimitMinutes)
	s.settings = settings
	s.stateMu.Unlock()
	return nil
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.SocketPath), 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := s.acquireLock(); err != nil {
		return err
	}
	if st, err := os.Lstat(s.cfg.SocketPath); err == nil {
		if st.Mode()&os.ModeSocket == 0 {
			s.releaseLock() //nolint:errcheck
			return fmt.Errorf("socket path exists and is not unix socket: %s", s.cfg.SocketPath)
		}
		if err := os.Remove(s.cfg.SocketPath); err != nil {
			s.releaseLock() //nolint:errcheck
			return fmt.Errorf("remove stale socket: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		s.releaseLock() //nolint:errcheck
		return fmt.Errorf("stat socket path: %w", err)
	}
	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		s.releaseLock() //nolint:errcheck
		return fmt.Errorf("listen uds: %w", err)
	}
	if err := os.Chmod(s.cfg.SocketPath, 0o600); err != nil {
		ln.Close()      //nolint:errcheck
		s.releaseLock() //nolint:errcheck
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.runTickLoop(ctx)
	go s.runIdleLoop(ctx)

	s.log.Info("daemon listening",
		zap.String("socket", s.cfg.SocketPath),
		zap.String("stream_id", s.streamID))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("serve uds: %w", err)
		}
		return nil
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdown.Do(func() {
		s.drainWrites()
		s.persistAll(ctx)
		var errs []error
		if s.httpSrv != nil {
			if err := s.httpSrv.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		s.mu.Lock()
		listener := s.listener
		s.listener = nil
		s.mu.Unlock()
		if listener != nil {
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
		if s.cfg.SocketPath != "" {
			if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		if err := s.releaseLock(); err != nil {
			errs = append(errs, err)
		}
		shutdownErr = errors.Join(errs...)
	})
	return shutdownErr
}

// persistAll checkpoints every session's total and the profile before
// the daemon goes away.
func (s *Server) persistAll(ctx context.Context) {
	now := time.Now()
	for _, sess := range s.sessionList() {
		snap := sess.Snapshot()
		if err := s.store.UpsertDocumentTime(ctx, snap.DocumentKey, snap.TotalSeconds, now); err != nil {
			s.log.Warn("persist document time", zap.String("document", snap.DocumentKey), zap.Error(err))
		}
	}
	s.profileLock.Lock()
	snap := s.prof.Snapshot()
	s.profileLock.Unlock()
	if err := s.store.SaveProfile(ctx, snap, now); err != nil {
		s.log.Warn("persist profile", zap.Error(err))
	}
	s.stateMu.Lock()
	settings := s.settings
	s.stateMu.Unlock()
	if err := s.store.SaveSettings(ctx, settings, now); err != nil {
		s.log.Warn("persist settings", zap.Error(err))
	}
}

func (s *Server) acquireLock() error {
	lockPath := s.cfg.SocketPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("daemon already running")
	}
	s.mu.Lock()
	s.lockFile = f
	s.mu.Unlock()
	return nil
}

func (s *Server) releaseLock() error {
	s.mu.Lock()
	f := s.lockFile
	s.lockFile = nil
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

func (s *Server) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sess := range s.sessionList() {
				sess.Tick()
			}
		}
	}
}

func (s *Server) runIdleLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sess := range s.sessionList() {
				sess.CheckIdle(s.cfg.IdleThreshold)
			}
		}
	}
}

func (s *Server) sessionList() []*session.Session {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	list := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	return list
}

// attach returns the session for a document key, creating and
// restoring it on first reference.
func (s *Server) attach(ctx context.Context, documentKey string) (*session.Session, error) {
	s.stateMu.Lock()
	sess, ok := s.sessions[documentKey]
	limit := s.settings.TLimitMinutes
	s.stateMu.Unlock()
	if ok {
		return sess, nil
	}

	total := 0
	record, err := s.store.GetDocumentTime(ctx, documentKey)
	if err == nil {
		total = record.TotalSeconds
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	sess = session.NewWithLock(documentKey, s.prof, s, &s.profileLock)
	sess.Restore(total, limit)
	sess.Start()

	s.stateMu.Lock()
	if existing, ok := s.sessions[documentKey]; ok {
		sess = existing
	} else {
		s.sessions[documentKey] = sess
	}
	s.stateMu.Unlock()

	s.log.Info("session attached",
		zap.String("document", documentKey),
		zap.Int("restored_seconds", total))
	return sess, nil
}

func (s *Server) findSession(documentKey string) (*session.Session, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	sess, ok := s.sessions[documentKey]
	return sess, ok
}
