package session

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
)

// Denial explains why a user is not authorized.
type Denial int

const (
	DenialNone Denial = iota
	DenialNotAllowlisted
	DenialNoSession
)

func (d Denial) String() string {
	switch d {
	case DenialNone:
		return "none"
	case DenialNotAllowlisted:
		return "not_allowlisted"
	case DenialNoSession:
		return "no_session"
	default:
		return "denied"
	}
}

// Manager keeps admin sessions in memory. An empty allowlist lets anyone
// holding the secret in.
type Manager struct {
	mu        sync.Mutex
	sessions  map[int64]time.Time
	allowlist map[int64]struct{}
	stored    string
	verifier  Verifier
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

func NewManager(stored string, allowlist []int64, ttl time.Duration, verifier Verifier, logger zerolog.Logger) *Manager {
	al := make(map[int64]struct{}, len(allowlist))
	for _, id := range allowlist {
		al[id] = struct{}{}
	}
	if verifier == nil {
		verifier = PBKDF2Verifier{}
	}
	return &Manager{
		sessions:  make(map[int64]time.Time),
		allowlist: al,
		stored:    stored,
		verifier:  verifier,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Allowlisted reports whether userID may log in at all.
func (m *Manager) Allowlisted(userID int64) bool {
	if len(m.allowlist) == 0 {
		return true
	}
	_, ok := m.allowlist[userID]
	return ok
}

// Login opens or refreshes a session for userID and returns its expiry.
func (m *Manager) Login(userID int64, secret string) (time.Time, error) {
	if !m.Allowlisted(userID) {
		m.logger.Warn().Int64("user_id", userID).Msg("Login attempt from non-allowlisted user")
		return time.Time{}, apperrors.NewForbiddenError("user is not allowlisted").WithUserID(userID)
	}
	if !m.verifier.Verify(strings.TrimSpace(secret), m.stored) {
		m.logger.Warn().Int64("user_id", userID).Msg("Login with bad credential")
		return time.Time{}, apperrors.NewBadCredentialError().WithUserID(userID)
	}

	expires := m.now().Add(m.ttl)
	m.mu.Lock()
	m.sessions[userID] = expires
	m.mu.Unlock()

	m.logger.Info().Int64("user_id", userID).Time("expires_at", expires).Msg("Admin logged in")
	return expires, nil
}

// Logout drops the session unconditionally.
func (m *Manager) Logout(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}

// IsAuthorized reports whether userID is allowlisted and holds an unexpired
// session.
func (m *Manager) IsAuthorized(userID int64) bool {
	return m.Denial(userID) == DenialNone
}

// Denial returns the reason userID is not authorized, or DenialNone.
func (m *Manager) Denial(userID int64) Denial {
	if !m.Allowlisted(userID) {
		return DenialNotAllowlisted
	}
	if !m.sessionValid(userID) {
		return DenialNoSession
	}
	return DenialNone
}

func (m *Manager) sessionValid(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.sessions[userID]
	if !ok {
		return false
	}
	if !m.now().Before(exp) {
		delete(m.sessions, userID)
		return false
	}
	return true
}

// Active returns the number of live sessions, evicting expired ones.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.sessions {
		if !now.Before(exp) {
			delete(m.sessions, id)
		}
	}
	return len(m.sessions)
}
