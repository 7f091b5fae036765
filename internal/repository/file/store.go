package file

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
	"github.com/open-builders/filmbank/internal/domain/ledger"
)

// ErrNoChange tells Update that the callback made no changes and the
// snapshot must not be written back.
var ErrNoChange = ledger.ErrNoChange

var _ ledger.Repository = (*Repository)(nil)

// Repository persists the ledger snapshot as a single JSON document.
// All access goes through one mutex so that load-mutate-save sequences
// behave as a single transaction.
type Repository struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
	now    func() time.Time
}

func NewRepository(path string, logger zerolog.Logger) *Repository {
	return &Repository{path: path, logger: logger, now: time.Now}
}

// Path returns the durable file location.
func (r *Repository) Path() string { return r.path }

// Load returns the current snapshot. Read or parse failures are logged and
// produce an empty snapshot.
func (r *Repository) Load(ctx context.Context) (*ledger.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(), nil
}

// Save writes the snapshot atomically.
func (r *Repository) Save(ctx context.Context, s *ledger.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(s)
}

// Update runs fn against a freshly loaded snapshot and saves the result,
// holding the store lock for the whole sequence. If fn returns ErrNoChange
// nothing is written and Update returns nil; any other error is returned
// unchanged and nothing is written.
func (r *Repository) Update(ctx context.Context, fn func(s *ledger.Snapshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.load()
	if err := fn(s); err != nil {
		if stderrors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	return r.save(s)
}

// View runs fn against a freshly loaded snapshot without saving.
func (r *Repository) View(ctx context.Context, fn func(s *ledger.Snapshot) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.load())
}

// CopyTo copies the durable file to dst under the store lock. It returns
// os.ErrNotExist (wrapped) when the store has never been written.
func (r *Repository) CopyTo(ctx context.Context, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	src, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy store: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync backup file: %w", err)
	}
	return out.Close()
}

// Readable reports whether the store file can be opened (or does not exist yet).
func (r *Repository) Readable() error {
	f, err := os.Open(r.path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return f.Close()
}

func (r *Repository) load() *ledger.Snapshot {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if !stderrors.Is(err, os.ErrNotExist) {
			r.logger.Error().Err(err).Str("path", r.path).Msg("Failed to read store, using empty store")
		}
		return ledger.NewSnapshot()
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return ledger.NewSnapshot()
	}

	var s ledger.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		r.logger.Error().Err(err).Str("path", r.path).Msg("Failed to parse store, using empty store")
		r.quarantine(raw)
		return ledger.NewSnapshot()
	}
	s.EnsureShape()
	return &s
}

// quarantine keeps a copy of an unparsable store next to it so that the
// next save does not destroy the only copy.
func (r *Repository) quarantine(raw []byte) {
	name := fmt.Sprintf("%s.corrupt-%s", r.path, r.now().UTC().Format("20060102_150405"))
	if _, err := os.Stat(name); err == nil {
		return
	}
	if err := os.WriteFile(name, raw, 0o600); err != nil {
		r.logger.Warn().Err(err).Str("path", name).Msg("Failed to keep corrupt store copy")
		return
	}
	r.logger.Warn().Str("path", name).Msg("Corrupt store copied aside")
}

// Encode serializes a snapshot deterministically.
func Encode(s *ledger.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (r *Repository) save(s *ledger.Snapshot) error {
	s.EnsureShape()
	data, err := Encode(s)
	if err != nil {
		return apperrors.NewStoreIOError("encode", err)
	}
	if err := writeAtomic(r.path, data); err != nil {
		r.logger.Error().Err(err).Str("path", r.path).Msg("Failed to save store")
		return apperrors.NewStoreIOError("write", err)
	}
	return nil
}

// writeAtomic writes to a temporary file in the same directory, fsyncs it
// and renames it over path. Readers never observe a partial write.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary store file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temporary store file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temporary store file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temporary store file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming store file into place: %w", err)
	}

	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
