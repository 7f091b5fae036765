package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Backupper makes one backup and returns its path.
type Backupper interface {
	Run(ctx context.Context) (string, error)
}

// BackupWorker runs a backup every day at a fixed local time.
type BackupWorker struct {
	backup  Backupper
	hour    int
	minute  int
	loc     *time.Location
	backoff time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

func NewBackupWorker(b Backupper, hour, minute int, loc *time.Location, logger zerolog.Logger) *BackupWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &BackupWorker{
		backup:  b,
		hour:    hour,
		minute:  minute,
		loc:     loc,
		backoff: RetryBackoff,
		logger:  logger,
		now:     time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (w *BackupWorker) Start(ctx context.Context) {
	w.logger.Info().Int("hour", w.hour).Int("minute", w.minute).Str("tz", w.loc.String()).Msg("Starting backup worker")
	for {
		now := w.now()
		delay := SleepFor(now, NextRun(now, w.hour, w.minute, w.loc))
		if !sleepCtx(ctx, delay) {
			w.logger.Info().Msg("Stopping backup worker")
			return
		}
		if _, err := w.backup.Run(ctx); err != nil {
			w.logger.Error().Err(err).Msg("Scheduled backup failed")
			if !sleepCtx(ctx, w.backoff) {
				return
			}
		}
	}
}

// NextRun is the first hour:minute in loc strictly after now.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// SleepFor is the delay until next; anything under a second becomes a
// minute so a run is never repeated within the same trigger minute.
func SleepFor(now, next time.Time) time.Duration {
	d := next.Sub(now)
	if d < time.Second {
		return 60 * time.Second
	}
	return d
}
