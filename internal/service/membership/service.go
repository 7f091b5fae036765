package membership

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/open-builders/filmbank/internal/domain/ledger"
)

// LeaveNotifier is told about departures after they are persisted.
type LeaveNotifier interface {
	MemberLeft(ctx context.Context, userID int64, username, role string)
}

// Service applies membership transitions to the store.
type Service struct {
	repo     ledger.Repository
	notifier LeaveNotifier
	grace    time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo ledger.Repository, notifier LeaveNotifier, grace time.Duration, logger zerolog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, grace: grace, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// OnJoin restores or registers a member who entered the group.
func (s *Service) OnJoin(ctx context.Context, m ledger.Member) (ledger.UpsertOutcome, error) {
	if m.IsBot {
		return ledger.UpsertIgnored, nil
	}
	var res ledger.UpsertOutcome
	err := s.repo.Update(ctx, func(snap *ledger.Snapshot) error {
		res = Join(snap, m, s.now().UTC())
		if res == ledger.UpsertIgnored {
			return ledger.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return ledger.UpsertIgnored, err
	}
	if res == ledger.UpsertRestored {
		s.logger.Info().Int64("user_id", m.ID).Msg("Member restored from recently left")
	}
	return res, nil
}

// OnLeave moves a departing member into the grace window and notifies admins.
func (s *Service) OnLeave(ctx context.Context, m ledger.Member) error {
	if m.IsBot {
		return nil
	}
	var left *ledger.RecentlyLeftRecord
	err := s.repo.Update(ctx, func(snap *ledger.Snapshot) error {
		left = Leave(snap, m.ID, s.grace, s.now().UTC())
		if left == nil {
			return ledger.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return err
	}
	if left == nil {
		return nil
	}

	s.logger.Info().Int64("user_id", m.ID).Str("deadline", left.RestoreDeadline).Msg("Member left")
	if s.notifier != nil {
		username := m.Username
		if username == "" {
			username = left.Username
		}
		s.notifier.MemberLeft(ctx, m.ID, username, left.Role)
	}
	return nil
}

// PurgeExpired drops departure records past their deadline.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	var n int
	err := s.repo.Update(ctx, func(snap *ledger.Snapshot) error {
		n = Purge(snap, s.now().UTC())
		if n == 0 {
			return ledger.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Touch registers or refreshes an active member. A member seen while still
// inside the grace window is restored as if they had rejoined.
func (s *Service) Touch(ctx context.Context, m ledger.Member) error {
	if m.IsBot || m.ID == 0 {
		return nil
	}
	return s.repo.Update(ctx, func(snap *ledger.Snapshot) error {
		ledger.Upsert(snap, m, s.now().UTC())
		return nil
	})
}
