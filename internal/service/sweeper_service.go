package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"testdesk/internal/domain"
	"testdesk/internal/repository"
	"testdesk/pkg/logger"
)

// SweeperService runs the background expiry jobs: flagging overdue
// participation sessions and deleting stale invitations. A sweep failure is
// logged and retried on the next tick, never fatal.
type SweeperService struct {
	pollRepo    repository.PollRepository
	sessions    repository.SessionStore
	invitations repository.InvitationRepository
	logger      *logger.Logger

	sessionInterval    time.Duration
	invitationInterval time.Duration
	now                func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewSweeperService creates a new sweeper
func NewSweeperService(
	pollRepo repository.PollRepository,
	sessions repository.SessionStore,
	invitations repository.InvitationRepository,
	sessionInterval, invitationInterval time.Duration,
	log *logger.Logger,
) *SweeperService {
	return &SweeperService{
		pollRepo:           pollRepo,
		sessions:           sessions,
		invitations:        invitations,
		logger:             log,
		sessionInterval:    sessionInterval,
		invitationInterval: invitationInterval,
		now:                time.Now,
	}
}

// Start begins the periodic sweeps
func (s *SweeperService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper already running")
	}
	if s.sessionInterval <= 0 || s.invitationInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}

	s.stopCh = make(chan struct{})
	s.running = true

	s.wg.Add(2)
	go s.loop(s.sessionInterval, s.SweepSessions)
	go s.loop(s.invitationInterval, s.SweepInvitations)

	s.logger.WithFields(map[string]interface{}{
		"session_interval":    s.sessionInterval.String(),
		"invitation_interval": s.invitationInterval.String(),
	}).Info("Sweeper started")
	return nil
}

// Stop gracefully shuts the sweeps down, waiting for an in-flight sweep to
// finish or the context to run out.
func (s *SweeperService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sweeper stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SweeperService) loop(interval time.Duration, sweep func(context.Context) error) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if err := sweep(ctx); err != nil {
				s.logger.WithError(err).Error("Sweep failed")
			}
			cancel()
		}
	}
}

// SweepSessions flags every overdue session of the published polls
func (s *SweeperService) SweepSessions(ctx context.Context) error {
	polls, err := s.pollRepo.ListByStatus(ctx, domain.PollStatusPublished)
	if err != nil {
		return fmt.Errorf("failed to list published polls: %w", err)
	}

	now := s.now()
	expired := 0
	for _, poll := range polls {
		if poll.ActiveDuration == nil {
			continue
		}
		sessions, err := s.sessions.ListByPoll(ctx, poll.UUID.String())
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		for _, session := range sessions {
			if session.Expired || session.Fresh(now) {
				continue
			}
			if err := s.sessions.MarkExpired(ctx, session.Token); err != nil {
				s.logger.WithError(err).Warn("Failed to expire session")
				continue
			}
			expired++
		}
	}

	if expired > 0 {
		s.logger.WithField("expired", expired).Info("Expired overdue sessions")
	}
	return nil
}

// SweepInvitations deletes invitations past their expiry
func (s *SweeperService) SweepInvitations(ctx context.Context) error {
	deleted, err := s.invitations.DeleteExpired(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to delete expired invitations: %w", err)
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Deleted expired invitations")
	}
	return nil
}
