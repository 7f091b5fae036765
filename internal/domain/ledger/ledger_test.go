package ledger

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Night Watch", NormalizeName("  Night \t  Watch\n"))
	assert.Equal(t, "night watch", NormalizeRole(" NIGHT   watch "))
	assert.Equal(t, "boost10", NormalizeDeltaName(" Boost 10 "))
	assert.True(t, IsHTTPURL("HTTPS://example.org"))
	assert.False(t, IsHTTPURL("tg://user?id=1"))
}

func TestApplyDeltaFloorsAtZero(t *testing.T) {
	s := NewSnapshot()
	s.Users["1"] = &UserRecord{DisplayName: "a", Balance: 3}
	s.Users["2"] = &UserRecord{DisplayName: "b", Balance: 30}

	changes := ApplyDelta(s, []int64{1, 2, 2, 404}, -10, testNow)
	require.Len(t, changes, 2)

	assert.EqualValues(t, 3, changes[0].Before)
	assert.EqualValues(t, 0, changes[0].After)
	assert.EqualValues(t, 20, changes[1].After)
	assert.EqualValues(t, 0, s.User(1).Balance)
	assert.EqualValues(t, 20, s.User(2).Balance)
	assert.True(t, testNow.Equal(s.User(1).UpdatedAt))
}

func TestApplyDeltaNeverNegative(t *testing.T) {
	for _, delta := range []int64{-1, -5, 3, -100, 7, -2} {
		s := NewSnapshot()
		s.Users["1"] = &UserRecord{Balance: 4}
		ApplyDelta(s, []int64{1}, delta, testNow)
		assert.GreaterOrEqual(t, s.User(1).Balance, int64(0))
	}
}

func TestApplyDeltaSaturates(t *testing.T) {
	s := NewSnapshot()
	s.Users["1"] = &UserRecord{Balance: 5}
	s.Users["2"] = &UserRecord{Balance: math.MaxInt64 - 1}

	changes := ApplyDelta(s, []int64{1, 2}, math.MaxInt64, testNow)
	require.Len(t, changes, 2)
	assert.EqualValues(t, int64(math.MaxInt64), s.User(1).Balance)
	assert.EqualValues(t, int64(math.MaxInt64), s.User(2).Balance)

	ApplyDelta(s, []int64{1}, math.MinInt64, testNow)
	assert.EqualValues(t, 0, s.User(1).Balance)
}

func TestValidateDeltaValueBounds(t *testing.T) {
	assert.NoError(t, ValidateDeltaValue(MaxAmount))
	assert.NoError(t, ValidateDeltaValue(-MaxAmount))
	assert.Error(t, ValidateDeltaValue(MaxAmount+1))
	assert.Error(t, ValidateDeltaValue(math.MinInt64))
	assert.Error(t, ValidateDeltaValue(0))
}

func TestDeltaRef(t *testing.T) {
	long := strings.Repeat("б", 30)
	ref := DeltaRef(long)
	assert.Len(t, ref, 36)
	assert.Equal(t, ref, DeltaRef(" "+strings.ToUpper(long)))
	assert.NotEqual(t, ref, DeltaRef("boost10"))

	s := NewSnapshot()
	s.Deltas[long] = 5
	d, ok := s.FindDeltaRef(ref)
	require.True(t, ok)
	assert.Equal(t, NamedDelta{Name: long, Value: 5}, d)

	_, ok = s.FindDeltaRef(DeltaRef("missing"))
	assert.False(t, ok)
}

func TestNormalizeFoldsCase(t *testing.T) {
	assert.Equal(t, NormalizeRole("STRASSE"), NormalizeRole("straße"))
	assert.Equal(t, NormalizeDeltaName("БОНУС"), NormalizeDeltaName("бонус"))
}

func TestUpsertKeepsLedgerFields(t *testing.T) {
	s := NewSnapshot()
	joined := testNow.Add(-time.Hour)
	s.Users["1"] = &UserRecord{DisplayName: "old", Role: "Scout", Balance: 9, JoinedAt: joined}

	rec := Upsert(s, Member{ID: 1, Username: "scout", DisplayName: "New"}, testNow)
	require.NotNil(t, rec)
	assert.Equal(t, "New", rec.DisplayName)
	assert.Equal(t, "scout", rec.Username)
	assert.Equal(t, "Scout", rec.Role)
	assert.EqualValues(t, 9, rec.Balance)
	assert.True(t, joined.Equal(rec.JoinedAt))

	assert.Nil(t, Upsert(s, Member{ID: 2, IsBot: true}, testNow))
	assert.Len(t, s.Users, 1)
}

func TestUpsertRestoresDeparture(t *testing.T) {
	s := NewSnapshot()
	s.RecentlyLeft["1"] = &RecentlyLeftRecord{
		Role:            "Scout",
		Balance:         5,
		RestoreDeadline: testNow.Add(time.Minute).Format(time.RFC3339Nano),
	}

	rec, outcome := UpsertDetailed(s, Member{ID: 1, DisplayName: "x"}, testNow)
	assert.Equal(t, UpsertRestored, outcome)
	assert.EqualValues(t, 5, rec.Balance)
	assert.Empty(t, s.RecentlyLeft)
}

func TestRoleHolderAndTaken(t *testing.T) {
	s := NewSnapshot()
	s.Users["5"] = &UserRecord{Role: "Night  Watch"}
	s.Users["3"] = &UserRecord{Role: "night watch"}
	s.Users["4"] = &UserRecord{}

	id, ok := s.RoleHolder("NIGHT WATCH")
	require.True(t, ok)
	assert.EqualValues(t, 3, id)

	_, ok = s.RoleHolder("")
	assert.False(t, ok)

	assert.True(t, s.RoleTaken("night watch", 5))
	assert.False(t, s.RoleTaken("scout", 4))
}

func TestFindDelta(t *testing.T) {
	s := NewSnapshot()
	s.Deltas["Boost10"] = 10

	key, v, ok := s.FindDelta("boost10")
	require.True(t, ok)
	assert.Equal(t, "Boost10", key)
	assert.EqualValues(t, 10, v)

	_, _, ok = s.FindDelta("missing")
	assert.False(t, ok)
}

func TestRecentlyLeftDeadline(t *testing.T) {
	r := RecentlyLeftRecord{RestoreDeadline: testNow.Format(time.RFC3339Nano)}
	assert.True(t, r.Restorable(testNow))
	assert.False(t, r.Restorable(testNow.Add(time.Nanosecond)))

	r.RestoreDeadline = "garbage"
	_, ok := r.Deadline()
	assert.False(t, ok)
	assert.False(t, r.Restorable(testNow))
}

func TestEnsureShapeDropsNilEntries(t *testing.T) {
	s := &Snapshot{Users: map[string]*UserRecord{"1": nil}}
	s.EnsureShape()
	assert.Equal(t, SchemaVersion, s.Version)
	assert.Empty(t, s.Users)
	assert.NotNil(t, s.Deltas)
	assert.NotNil(t, s.RecentlyLeft)
}
