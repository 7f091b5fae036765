package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Store copies the durable ledger file.
type Store interface {
	CopyTo(ctx context.Context, dst string) error
}

// Uploader delivers a finished backup file.
type Uploader interface {
	SendBackup(ctx context.Context, path string) error
}

// Service writes timestamped copies of the store and ships them.
type Service struct {
	store  Store
	dir    string
	up     Uploader
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(store Store, dir string, up Uploader, logger zerolog.Logger) *Service {
	return &Service{store: store, dir: dir, up: up, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// FileName is data_YYYYMMDD_HHMMSS.json in UTC.
func FileName(t time.Time) string {
	return fmt.Sprintf("data_%s.json", t.UTC().Format("20060102_150405"))
}

// Run makes one backup and returns its path. The file is kept even when
// the upload fails; the upload error is returned alongside the path.
func (s *Service) Run(ctx context.Context) (string, error) {
	path := filepath.Join(s.dir, FileName(s.now()))
	if err := s.store.CopyTo(ctx, path); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Backup copy failed")
		return "", fmt.Errorf("backup copy: %w", err)
	}
	s.logger.Info().Str("path", path).Msg("Backup written")

	if s.up == nil {
		return path, nil
	}
	if err := s.up.SendBackup(ctx, path); err != nil {
		return path, fmt.Errorf("backup upload: %w", err)
	}
	return path, nil
}
