package ledger

import (
	"math"
	"time"
)

// BalanceChange is one line of a balance adjustment report.
type BalanceChange struct {
	UserID int64
	Record UserRecord
	Delta  int64
	Before int64
	After  int64
}

// ApplyDelta adds delta to every listed user that has an active record,
// flooring balances at zero and saturating at math.MaxInt64. Unknown ids are
// skipped. Duplicate ids are applied once.
func ApplyDelta(s *Snapshot, userIDs []int64, delta int64, now time.Time) []BalanceChange {
	changes := make([]BalanceChange, 0, len(userIDs))
	seen := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rec := s.User(id)
		if rec == nil {
			continue
		}
		before := rec.Balance
		after := addBalance(before, delta)
		rec.Balance = after
		rec.UpdatedAt = now
		changes = append(changes, BalanceChange{
			UserID: id,
			Record: *rec,
			Delta:  delta,
			Before: before,
			After:  after,
		})
	}
	return changes
}

// Upsert creates or refreshes the active record for m, keeping role, link,
// balance and join time of an existing record. A departure record for m is
// always removed; while it is restorable its role, link and balance carry
// over. Bots are never recorded.
func Upsert(s *Snapshot, m Member, now time.Time) *UserRecord {
	rec, _ := upsert(s, m, now)
	return rec
}

// UpsertOutcome is what Upsert did to the active set.
type UpsertOutcome int

const (
	UpsertIgnored UpsertOutcome = iota
	UpsertCreated
	UpsertRefreshed
	UpsertRestored
)

// UpsertDetailed is Upsert reporting which transition took place.
func UpsertDetailed(s *Snapshot, m Member, now time.Time) (*UserRecord, UpsertOutcome) {
	return upsert(s, m, now)
}

func upsert(s *Snapshot, m Member, now time.Time) (*UserRecord, UpsertOutcome) {
	if m.IsBot || m.ID == 0 {
		return nil, UpsertIgnored
	}
	key := Key(m.ID)

	if left, ok := s.RecentlyLeft[key]; ok {
		delete(s.RecentlyLeft, key)
		if _, active := s.Users[key]; !active && left.Restorable(now) {
			rec := &UserRecord{
				Username:    m.Username,
				DisplayName: m.DisplayName,
				Role:        left.Role,
				RoleLink:    left.RoleLink,
				Balance:     left.Balance,
				JoinedAt:    now,
				UpdatedAt:   now,
			}
			s.Users[key] = rec
			return rec, UpsertRestored
		}
	}

	outcome := UpsertRefreshed
	rec := s.Users[key]
	if rec == nil {
		rec = &UserRecord{JoinedAt: now}
		s.Users[key] = rec
		outcome = UpsertCreated
	}
	rec.Username = m.Username
	rec.DisplayName = m.DisplayName
	rec.UpdatedAt = now
	return rec, outcome
}

// RoleHolder returns the id of the active user holding role under normalized
// comparison.
func (s *Snapshot) RoleHolder(role string) (int64, bool) {
	want := NormalizeRole(role)
	if want == "" {
		return 0, false
	}
	var (
		found int64
		ok    bool
	)
	for k, rec := range s.Users {
		if rec.Role == "" || NormalizeRole(rec.Role) != want {
			continue
		}
		id, valid := ParseKey(k)
		if !valid {
			continue
		}
		if !ok || id < found {
			found, ok = id, true
		}
	}
	return found, ok
}

// RoleTaken reports whether role is held by an active user other than exceptUserID.
func (s *Snapshot) RoleTaken(role string, exceptUserID int64) bool {
	want := NormalizeRole(role)
	for k, rec := range s.Users {
		if rec.Role == "" || NormalizeRole(rec.Role) != want {
			continue
		}
		if id, ok := ParseKey(k); ok && id == exceptUserID {
			continue
		}
		return true
	}
	return false
}

// FindDelta looks a named delta up by normalized name and returns the
// stored key and value.
func (s *Snapshot) FindDelta(name string) (string, int64, bool) {
	want := NormalizeDeltaName(name)
	if v, ok := s.Deltas[name]; ok {
		return name, v, true
	}
	for k, v := range s.Deltas {
		if NormalizeDeltaName(k) == want {
			return k, v, true
		}
	}
	return "", 0, false
}

func addBalance(balance, delta int64) int64 {
	if delta > 0 && balance > math.MaxInt64-delta {
		return math.MaxInt64
	}
	if after := balance + delta; after > 0 {
		return after
	}
	return 0
}
