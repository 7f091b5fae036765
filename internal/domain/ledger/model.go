package ledger

import (
	"strconv"
	"time"
)

// SchemaVersion is the current store document version.
const SchemaVersion = 2

// UserRecord is an active member's ledger entry.
type UserRecord struct {
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role,omitempty"`
	RoleLink    string    `json:"roleLink,omitempty"`
	Balance     int64     `json:"balance"`
	JoinedAt    time.Time `json:"joinedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RecentlyLeftRecord is a departed member's snapshot kept for the grace period.
// Timestamps are stored as RFC 3339 strings and parsed on use so a single
// corrupt value does not make the whole document unreadable.
type RecentlyLeftRecord struct {
	Username        string `json:"username,omitempty"`
	DisplayName     string `json:"displayName"`
	Role            string `json:"role,omitempty"`
	RoleLink        string `json:"roleLink,omitempty"`
	Balance         int64  `json:"balance"`
	LeftAt          string `json:"leftAt"`
	RestoreDeadline string `json:"restoreDeadline"`
}

// Deadline parses RestoreDeadline. ok is false when the value is corrupt.
func (r RecentlyLeftRecord) Deadline() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, r.RestoreDeadline)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Restorable reports whether the record may be restored at now.
func (r RecentlyLeftRecord) Restorable(now time.Time) bool {
	deadline, ok := r.Deadline()
	return ok && !now.After(deadline)
}

// RiddleContest is the singleton daily riddle.
type RiddleContest struct {
	Active           bool      `json:"active"`
	ChatID           int64     `json:"chatId"`
	ChannelMessageID int64     `json:"channelMessageId"`
	QuestionText     string    `json:"questionText"`
	AnswerText       string    `json:"answerText"`
	RewardAmount     int64     `json:"rewardAmount"`
	WinnerQuota      int       `json:"winnerQuota"`
	Winners          []int64   `json:"winners"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HasWinner reports whether userID already won.
func (r *RiddleContest) HasWinner(userID int64) bool {
	for _, w := range r.Winners {
		if w == userID {
			return true
		}
	}
	return false
}

// Full reports whether the winner quota is reached.
func (r *RiddleContest) Full() bool {
	return len(r.Winners) >= r.WinnerQuota
}

// Snapshot is the aggregate root persisted as one document.
type Snapshot struct {
	Version      int                            `json:"version"`
	Users        map[string]*UserRecord         `json:"users"`
	Deltas       map[string]int64               `json:"deltas"`
	RecentlyLeft map[string]*RecentlyLeftRecord `json:"recentlyLeft"`
	Riddle       *RiddleContest                 `json:"riddle"`
}

// NewSnapshot returns an empty, schema-initialized snapshot.
func NewSnapshot() *Snapshot {
	s := &Snapshot{}
	s.EnsureShape()
	return s
}

// EnsureShape fills in missing collections and the schema version.
func (s *Snapshot) EnsureShape() {
	if s.Version == 0 {
		s.Version = SchemaVersion
	}
	if s.Users == nil {
		s.Users = make(map[string]*UserRecord)
	}
	if s.Deltas == nil {
		s.Deltas = make(map[string]int64)
	}
	if s.RecentlyLeft == nil {
		s.RecentlyLeft = make(map[string]*RecentlyLeftRecord)
	}
	for k, u := range s.Users {
		if u == nil {
			delete(s.Users, k)
		}
	}
	for k, r := range s.RecentlyLeft {
		if r == nil {
			delete(s.RecentlyLeft, k)
		}
	}
}

// Key converts a user id to its map key.
func Key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// ParseKey converts a map key back to a user id.
func ParseKey(key string) (int64, bool) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// User returns the active record for userID, or nil.
func (s *Snapshot) User(userID int64) *UserRecord {
	return s.Users[Key(userID)]
}

// ActiveRiddle returns the riddle when present and active.
func (s *Snapshot) ActiveRiddle() *RiddleContest {
	if s.Riddle == nil || !s.Riddle.Active {
		return nil
	}
	return s.Riddle
}

// Member is the platform identity a membership event refers to.
type Member struct {
	ID          int64
	Username    string
	DisplayName string
	IsBot       bool
}
