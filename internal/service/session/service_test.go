package session

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newManager(allowlist []int64) (*Manager, *clock) {
	c := &clock{t: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager("s3cret", allowlist, 12*time.Hour, nil, zerolog.Nop()).WithClock(c.now)
	return m, c
}

func TestLoginNonAllowlistedIsDenied(t *testing.T) {
	m, _ := newManager([]int64{100})

	_, err := m.Login(200, "s3cret")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeForbidden))
	assert.Zero(t, m.Active())
	assert.False(t, m.IsAuthorized(200))
	assert.Equal(t, DenialNotAllowlisted, m.Denial(200))
}

func TestLoginBadCredential(t *testing.T) {
	m, _ := newManager([]int64{100})

	_, err := m.Login(100, "wrong")
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeBadCredential))
	assert.Equal(t, DenialNoSession, m.Denial(100))
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	m, c := newManager(nil)

	exp, err := m.Login(1, " s3cret ")
	require.NoError(t, err)
	assert.True(t, exp.Equal(c.t.Add(12*time.Hour)))
	assert.True(t, m.IsAuthorized(1))

	c.t = c.t.Add(12*time.Hour - time.Second)
	assert.True(t, m.IsAuthorized(1))

	c.t = c.t.Add(time.Second)
	assert.False(t, m.IsAuthorized(1))
	assert.Zero(t, m.Active())
}

func TestLogout(t *testing.T) {
	m, _ := newManager(nil)
	_, err := m.Login(1, "s3cret")
	require.NoError(t, err)

	m.Logout(1)
	m.Logout(1)
	assert.False(t, m.IsAuthorized(1))
}

func TestPBKDF2Verifier(t *testing.T) {
	stored := HashPassword("hunter2", []byte("0123456789abcdef"), 1000)
	v := PBKDF2Verifier{}

	assert.True(t, v.Verify("hunter2", stored))
	assert.False(t, v.Verify("hunter3", stored))
	assert.False(t, v.Verify("", stored))
	assert.False(t, v.Verify("hunter2", "pbkdf2_sha256$x$00$00"))
	assert.False(t, v.Verify("hunter2", "pbkdf2_sha256$1000$zz$00"))
	assert.False(t, v.Verify("hunter2", "pbkdf2_sha256$1000"))

	assert.True(t, v.Verify("plain", "plain"))
	assert.False(t, v.Verify("plain", "Plain"))
}
