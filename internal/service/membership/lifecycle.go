package membership

import (
	"time"

	"github.com/open-builders/filmbank/internal/domain/ledger"
)

// Join moves m into the active set. A restorable departure record brings
// back role, link and balance; an expired or corrupt one is dropped.
func Join(s *ledger.Snapshot, m ledger.Member, now time.Time) ledger.UpsertOutcome {
	_, outcome := ledger.UpsertDetailed(s, m, now)
	return outcome
}

// Leave moves the active record of userID into RecentlyLeft and returns the
// record that was moved, or nil when the user had no active record.
func Leave(s *ledger.Snapshot, userID int64, grace time.Duration, now time.Time) *ledger.RecentlyLeftRecord {
	key := ledger.Key(userID)
	rec, ok := s.Users[key]
	if !ok {
		return nil
	}
	delete(s.Users, key)

	left := &ledger.RecentlyLeftRecord{
		Username:        rec.Username,
		DisplayName:     rec.DisplayName,
		Role:            rec.Role,
		RoleLink:        rec.RoleLink,
		Balance:         rec.Balance,
		LeftAt:          now.UTC().Format(time.RFC3339Nano),
		RestoreDeadline: now.Add(grace).UTC().Format(time.RFC3339Nano),
	}
	s.RecentlyLeft[key] = left
	return left
}

// Purge drops every departure record whose deadline has passed or cannot
// be parsed, returning how many were removed.
func Purge(s *ledger.Snapshot, now time.Time) int {
	n := 0
	for k, left := range s.RecentlyLeft {
		if left.Restorable(now) {
			continue
		}
		delete(s.RecentlyLeft, k)
		n++
	}
	return n
}
