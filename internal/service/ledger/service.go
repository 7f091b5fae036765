package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
	dl "github.com/open-builders/filmbank/internal/domain/ledger"
)

// Service implements balance, role and named-delta operations on top of
// the snapshot repository.
type Service struct {
	repo   dl.Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo dl.Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SetRole gives a role-less userID a role. The role must be unused by every
// other active user under normalized comparison. A user who meanwhile got a
// role counts as a lost target.
func (s *Service) SetRole(ctx context.Context, userID int64, role, link string) (dl.UserRecord, error) {
	role = dl.NormalizeName(role)
	link = strings.TrimSpace(link)
	if err := dl.ValidateRole(role); err != nil {
		return dl.UserRecord{}, err
	}
	if err := dl.ValidateRoleLink(link); err != nil {
		return dl.UserRecord{}, err
	}

	var out dl.UserRecord
	err := s.repo.Update(ctx, func(snap *dl.Snapshot) error {
		rec := snap.User(userID)
		if rec == nil || rec.Role != "" {
			return apperrors.NewTargetLostError("user", userID)
		}
		if snap.RoleTaken(role, userID) {
			return apperrors.NewConflictError("role", "role already exists")
		}
		rec.Role = role
		rec.RoleLink = link
		rec.UpdatedAt = s.now().UTC()
		out = *rec
		return nil
	})
	if err != nil {
		return dl.UserRecord{}, err
	}
	s.logger.Info().Int64("user_id", userID).Str("role", role).Msg("Role assigned")
	return out, nil
}

// ChangeRole renames userID's role, keeping the balance. It returns the
// previous role.
func (s *Service) ChangeRole(ctx context.Context, userID int64, newRole, link string) (string, dl.UserRecord, error) {
	newRole = dl.NormalizeName(newRole)
	link = strings.TrimSpace(link)
	if err := dl.ValidateRole(newRole); err != nil {
		return "", dl.UserRecord{}, err
	}
	if err := dl.ValidateRoleLink(link); err != nil {
		return "", dl.UserRecord{}, err
	}

	var (
		prev string
		out  dl.UserRecord
	)
	err := s.repo.Update(ctx, func(snap *dl.Snapshot) error {
		rec := snap.User(userID)
		if rec == nil {
			return apperrors.NewTargetLostError("user", userID)
		}
		if snap.RoleTaken(newRole, userID) {
			return apperrors.NewConflictError("role", "role already exists")
		}
		prev = rec.Role
		rec.Role = newRole
		rec.RoleLink = link
		rec.UpdatedAt = s.now().UTC()
		out = *rec
		return nil
	})
	if err != nil {
		return "", dl.UserRecord{}, err
	}
	s.logger.Info().Int64("user_id", userID).Str("from", prev).Str("to", newRole).Msg("Role changed")
	return prev, out, nil
}

// AdjustBalance adds delta to every listed user, flooring at zero. Users
// without an active record are skipped.
func (s *Service) AdjustBalance(ctx context.Context, userIDs []int64, delta int64) ([]dl.BalanceChange, error) {
	var changes []dl.BalanceChange
	err := s.repo.Update(ctx, func(snap *dl.Snapshot) error {
		changes = dl.ApplyDelta(snap, userIDs, delta, s.now().UTC())
		if len(changes) == 0 {
			return dl.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("delta", delta).Int("users", len(changes)).Msg("Balances adjusted")
	return changes, nil
}

// CreateDelta stores a named preset.
func (s *Service) CreateDelta(ctx context.Context, name string, value int64) error {
	name = strings.TrimSpace(name)
	if err := dl.ValidateDeltaName(name); err != nil {
		return err
	}
	if err := dl.ValidateDeltaValue(value); err != nil {
		return err
	}
	return s.repo.Update(ctx, func(snap *dl.Snapshot) error {
		if _, _, exists := snap.FindDelta(name); exists {
			return apperrors.NewConflictError("delta", "delta already exists")
		}
		snap.Deltas[name] = value
		return nil
	})
}

// DeleteDelta removes a named preset and returns its value.
func (s *Service) DeleteDelta(ctx context.Context, name string) (int64, error) {
	var prev int64
	err := s.repo.Update(ctx, func(snap *dl.Snapshot) error {
		v, ok := snap.Deltas[name]
		if !ok {
			return apperrors.NewTargetLostError("delta", name)
		}
		prev = v
		delete(snap.Deltas, name)
		return nil
	})
	return prev, err
}

// DeltaByRef looks a named preset up by its ledger.DeltaRef.
func (s *Service) DeltaByRef(ctx context.Context, ref string) (dl.NamedDelta, bool, error) {
	var (
		out dl.NamedDelta
		ok  bool
	)
	err := s.repo.View(ctx, func(snap *dl.Snapshot) error {
		out, ok = snap.FindDeltaRef(ref)
		return nil
	})
	return out, ok, err
}

// Deltas lists the named presets ordered by name.
func (s *Service) Deltas(ctx context.Context) ([]dl.NamedDelta, error) {
	var out []dl.NamedDelta
	err := s.repo.View(ctx, func(snap *dl.Snapshot) error {
		out = snap.DeltaList()
		return nil
	})
	return out, err
}

// User returns the active record for userID.
func (s *Service) User(ctx context.Context, userID int64) (dl.Entry, bool, error) {
	var (
		out dl.Entry
		ok  bool
	)
	err := s.repo.View(ctx, func(snap *dl.Snapshot) error {
		if rec := snap.User(userID); rec != nil {
			out, ok = dl.Entry{UserID: userID, Record: *rec}, true
		}
		return nil
	})
	return out, ok, err
}

// Balance returns userID's balance, zero when unknown.
func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	e, _, err := s.User(ctx, userID)
	return e.Record.Balance, err
}

// FindUser resolves a role, @handle or display name query.
func (s *Service) FindUser(ctx context.Context, query string) (dl.Entry, bool, error) {
	var (
		out dl.Entry
		ok  bool
	)
	err := s.repo.View(ctx, func(snap *dl.Snapshot) error {
		out, ok = snap.FindUser(query)
		return nil
	})
	return out, ok, err
}

func (s *Service) list(ctx context.Context, fn func(*dl.Snapshot) []dl.Entry) ([]dl.Entry, error) {
	var out []dl.Entry
	err := s.repo.View(ctx, func(snap *dl.Snapshot) error {
		out = fn(snap)
		return nil
	})
	return out, err
}

func (s *Service) Leaderboard(ctx context.Context) ([]dl.Entry, error) {
	return s.list(ctx, (*dl.Snapshot).Leaderboard)
}

func (s *Service) BalancesByRole(ctx context.Context) ([]dl.Entry, error) {
	return s.list(ctx, (*dl.Snapshot).BalancesByRole)
}

func (s *Service) UsersWithoutRole(ctx context.Context) ([]dl.Entry, error) {
	return s.list(ctx, (*dl.Snapshot).UsersWithoutRole)
}

func (s *Service) UsersWithRole(ctx context.Context) ([]dl.Entry, error) {
	return s.list(ctx, (*dl.Snapshot).UsersWithRole)
}

func (s *Service) UsersForAdjust(ctx context.Context) ([]dl.Entry, error) {
	return s.list(ctx, (*dl.Snapshot).UsersForAdjust)
}
