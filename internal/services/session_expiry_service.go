package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/geo-attendance/internal/constants"
	"github.com/benmeehan/geo-attendance/internal/state_managers"
	"github.com/benmeehan/geo-attendance/internal/verifier"
	"github.com/rs/zerolog"
)

// SessionExpiryService periodically removes sessions past their maximum age
// and drops their attempt history.
type SessionExpiryService struct {
	interval time.Duration
	maxAge   time.Duration

	store   state_managers.SessionStore
	history HistoryForgetter
	logger  zerolog.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSessionExpiryService creates a new SessionExpiryService.
func NewSessionExpiryService(interval, maxAge time.Duration, store state_managers.SessionStore,
	history HistoryForgetter, logger zerolog.Logger) *SessionExpiryService {
	if interval <= 0 {
		interval = constants.DefaultExpiryCheckInterval
	}
	if maxAge <= 0 {
		maxAge = constants.DefaultMaxSessionAge
	}
	return &SessionExpiryService{
		interval: interval,
		maxAge:   maxAge,
		store:    store,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// Start launches the cleanup loop.
func (e *SessionExpiryService) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx != nil {
		e.logger.Warn().Msg("SessionExpiryService is already running")
		return errors.New("session expiry service is already running")
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(e.ctx)
	}()

	e.logger.Info().Dur("interval", e.interval).Dur("max_age", e.maxAge).Msg("SessionExpiryService started successfully")
	return nil
}

// Stop stops the cleanup loop.
func (e *SessionExpiryService) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil {
		e.logger.Warn().Msg("SessionExpiryService is not running")
		return errors.New("session expiry service is not running")
	}

	e.cancel()
	e.wg.Wait()
	e.ctx = nil
	e.cancel = nil

	e.logger.Info().Msg("SessionExpiryService stopped successfully")
	return nil
}

func (e *SessionExpiryService) run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep removes every expired session and returns how many were removed.
func (e *SessionExpiryService) Sweep() int {
	now := e.now()
	removed := 0
	for _, session := range e.store.List() {
		if !verifier.SessionExpired(&session, now, e.maxAge) {
			continue
		}
		if err := e.store.Delete(session.SessionID); err != nil && !errors.Is(err, state_managers.ErrSessionNotFound) {
			e.logger.Error().Err(err).Str("session_id", session.SessionID).Msg("Failed to delete expired session")
			continue
		}
		if e.history != nil {
			e.history.Forget(session.SessionID)
		}
		removed++
		e.logger.Info().Str("session_id", session.SessionID).Msg("Session expired")
	}
	return removed
}
