package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RetryBackoff is the pause after a failed scheduled run.
const RetryBackoff = 60 * time.Second

// Purger removes departure records past their restore deadline.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Auditor receives audit lines.
type Auditor interface {
	Audit(ctx context.Context, text string)
}

// PurgeWorker runs the membership purge on a fixed interval.
type PurgeWorker struct {
	purger   Purger
	audit    Auditor
	interval time.Duration
	backoff  time.Duration
	logger   zerolog.Logger
}

func NewPurgeWorker(purger Purger, audit Auditor, interval time.Duration, logger zerolog.Logger) *PurgeWorker {
	return &PurgeWorker{purger: purger, audit: audit, interval: interval, backoff: RetryBackoff, logger: logger}
}

// Start blocks until ctx is cancelled. The first run happens immediately.
func (w *PurgeWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("Starting purge worker")
	for {
		wait := w.interval
		if err := w.RunOnce(ctx); err != nil {
			w.logger.Error().Err(err).Msg("Purge failed")
			wait = w.backoff
		}
		if !sleepCtx(ctx, wait) {
			w.logger.Info().Msg("Stopping purge worker")
			return
		}
	}
}

// RunOnce purges once and audits a non-zero result.
func (w *PurgeWorker) RunOnce(ctx context.Context) error {
	n, err := w.purger.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.logger.Info().Int("removed", n).Msg("Purged expired departures")
		w.audit.Audit(ctx, fmt.Sprintf("🧹 purge: %d", n))
	}
	return nil
}
