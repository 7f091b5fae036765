package ledger

import (
	"sort"
	"strings"
)

// Entry pairs an active record with its user id.
type Entry struct {
	UserID int64
	Record UserRecord
}

// NamedDelta is a stored preset adjustment.
type NamedDelta struct {
	Name  string
	Value int64
}

// Entries returns all active users ordered by id.
func (s *Snapshot) Entries() []Entry {
	out := make([]Entry, 0, len(s.Users))
	for k, rec := range s.Users {
		id, ok := ParseKey(k)
		if !ok {
			continue
		}
		out = append(out, Entry{UserID: id, Record: *rec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func nameKey(r UserRecord) string { return strings.ToLower(NormalizeName(r.DisplayName)) }

// Leaderboard orders users by balance, then normalized display name, both
// descending, with user id ascending as the final tiebreak.
func (s *Snapshot) Leaderboard() []Entry {
	out := s.Entries()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Record, out[j].Record
		if a.Balance != b.Balance {
			return a.Balance > b.Balance
		}
		if na, nb := nameKey(a), nameKey(b); na != nb {
			return na > nb
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// BalancesByRole lists role holders by balance then role, both descending.
func (s *Snapshot) BalancesByRole() []Entry {
	var out []Entry
	for _, e := range s.Entries() {
		if e.Record.Role != "" {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Record, out[j].Record
		if a.Balance != b.Balance {
			return a.Balance > b.Balance
		}
		return NormalizeRole(a.Role) > NormalizeRole(b.Role)
	})
	return out
}

// UsersWithoutRole lists role-less users ordered by display name.
func (s *Snapshot) UsersWithoutRole() []Entry {
	var out []Entry
	for _, e := range s.Entries() {
		if e.Record.Role == "" {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return nameKey(out[i].Record) < nameKey(out[j].Record)
	})
	return out
}

// UsersWithRole lists role holders ordered by role.
func (s *Snapshot) UsersWithRole() []Entry {
	var out []Entry
	for _, e := range s.Entries() {
		if e.Record.Role != "" {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return NormalizeRole(out[i].Record.Role) < NormalizeRole(out[j].Record.Role)
	})
	return out
}

// UsersForAdjust lists every active user, role holders first by role, then
// the rest by display name.
func (s *Snapshot) UsersForAdjust() []Entry {
	out := s.Entries()
	key := func(r UserRecord) string {
		role := "~~~"
		if r.Role != "" {
			role = NormalizeRole(r.Role)
		}
		return role + "|" + nameKey(r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return key(out[i].Record) < key(out[j].Record)
	})
	return out
}

// DeltaList returns the named deltas ordered by normalized name.
func (s *Snapshot) DeltaList() []NamedDelta {
	out := make([]NamedDelta, 0, len(s.Deltas))
	for k, v := range s.Deltas {
		out = append(out, NamedDelta{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := NormalizeDeltaName(out[i].Name), NormalizeDeltaName(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FindDeltaRef looks a named delta up by its DeltaRef.
func (s *Snapshot) FindDeltaRef(ref string) (NamedDelta, bool) {
	for k, v := range s.Deltas {
		if DeltaRef(k) == ref {
			return NamedDelta{Name: k, Value: v}, true
		}
	}
	return NamedDelta{}, false
}

// FindUser resolves a free-form query to an active user: "@handle" matches
// the handle exactly, otherwise role, then exact display name, then a
// display-name substring. Ties go to the lowest user id.
func (s *Snapshot) FindUser(query string) (Entry, bool) {
	q := NormalizeName(query)
	if q == "" {
		return Entry{}, false
	}
	entries := s.Entries()

	if strings.HasPrefix(q, "@") {
		handle := strings.ToLower(strings.TrimPrefix(q, "@"))
		for _, e := range entries {
			if handle != "" && strings.ToLower(e.Record.Username) == handle {
				return e, true
			}
		}
		return Entry{}, false
	}

	role := NormalizeRole(q)
	for _, e := range entries {
		if e.Record.Role != "" && NormalizeRole(e.Record.Role) == role {
			return e, true
		}
	}

	name := strings.ToLower(q)
	for _, e := range entries {
		if nameKey(e.Record) == name {
			return e, true
		}
	}
	for _, e := range entries {
		if n := nameKey(e.Record); n != "" && strings.Contains(n, name) {
			return e, true
		}
	}
	return Entry{}, false
}
