package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("boom")))
	assert.Equal(t, ErrCodeConflict, CodeOf(NewConflictError("role", "taken")))

	wrapped := fmt.Errorf("commit: %w", NewTargetLostError("user", int64(7)))
	assert.Equal(t, ErrCodeTargetLost, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrCodeTargetLost))
	assert.False(t, Is(nil, ErrCodeTargetLost))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "must be a number", Reason(NewValidationError("amount", "must be a number")))
	assert.Equal(t, "user disappeared", Reason(NewTargetLostError("user", 1)))
	assert.Empty(t, Reason(stderrors.New("plain")))
}

func TestIsUnauthorized(t *testing.T) {
	tests := []struct {
		err  *AppError
		want bool
	}{
		{NewNotAuthorizedError("session expired"), true},
		{NewForbiddenError("not allow-listed"), true},
		{NewBadCredentialError(), true},
		{NewValidationError("amount", "bad"), false},
		{NewStoreIOError("save", stderrors.New("disk full")), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.IsUnauthorized())
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewPlatformIOError("sendMessage", cause).WithUserID(42)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "PLATFORM_IO_ERROR")
	assert.Equal(t, int64(42), err.UserID)
	assert.Equal(t, "sendMessage", err.Details["operation"])

	appErr, ok := AsAppError(fmt.Errorf("outer: %w", err))
	require.True(t, ok)
	assert.Same(t, err, appErr)
}
