package ledger

import (
	"context"
	"errors"
)

// ErrNoChange is returned from an Update callback to skip the save.
var ErrNoChange = errors.New("no change")

// Repository defines persistence operations for the Snapshot aggregate.
// Update and View hold an exclusive lock across load, callback and save.
type Repository interface {
	Update(ctx context.Context, fn func(s *Snapshot) error) error
	View(ctx context.Context, fn func(s *Snapshot) error) error
}
