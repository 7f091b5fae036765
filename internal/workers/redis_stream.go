package workers

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	consumerGroup = "filmbank_audit"
	consumerName  = "filmbank_worker_1"

	streamBatch = 20
	// pendingRetry spaces out redelivery of entries the audit chat refused.
	pendingRetry = 30 * time.Second
)

// StreamClient is the part of go-redis the audit worker needs.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *go_redis.StatusCmd
	XReadGroup(ctx context.Context, a *go_redis.XReadGroupArgs) *go_redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *go_redis.IntCmd
}

// AuditDeliverer sends an audit line to the audit chat.
type AuditDeliverer interface {
	DeliverAudit(ctx context.Context, text string) error
}

// AuditStreamWorker drains the audit stream into the audit chat so audit
// lines survive platform outages and restarts. An entry is acknowledged
// only once delivered; failed entries stay pending and are retried.
type AuditStreamWorker struct {
	rdb       StreamClient
	streamKey string
	deliver   AuditDeliverer
	logger    zerolog.Logger
}

func NewAuditStreamWorker(rdb StreamClient, streamKey string, deliver AuditDeliverer, logger zerolog.Logger) *AuditStreamWorker {
	return &AuditStreamWorker{
		rdb:       rdb,
		streamKey: streamKey,
		deliver:   deliver,
		logger:    logger,
	}
}

// Start blocks reading the stream until ctx is cancelled.
func (w *AuditStreamWorker) Start(ctx context.Context) {
	err := w.rdb.XGroupCreateMkStream(ctx, w.streamKey, consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		w.logger.Error().Err(err).Str("stream", w.streamKey).Msg("Error creating consumer group")
	}

	w.logger.Info().Str("stream", w.streamKey).Msg("Starting audit stream worker")

	// Entries delivered before a crash but never acknowledged come first.
	pending, _ := w.redeliverPending(ctx)
	lastRetry := time.Now()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping audit stream worker")
			return
		default:
		}

		if pending > 0 && time.Since(lastRetry) >= pendingRetry {
			pending, _ = w.redeliverPending(ctx)
			lastRetry = time.Now()
		}

		failed, err := w.drain(ctx, ">")
		if err != nil {
			sleepCtx(ctx, time.Second)
			continue
		}
		if failed > 0 && pending == 0 {
			lastRetry = time.Now()
		}
		pending += failed
	}
}

// redeliverPending walks this consumer's pending entries batch by batch
// until none are left past the cursor. It returns how many are still
// undelivered.
func (w *AuditStreamWorker) redeliverPending(ctx context.Context) (int, error) {
	cursor := "0"
	failed := 0
	for ctx.Err() == nil {
		msgs, err := w.read(ctx, cursor)
		if err != nil {
			return failed, err
		}
		if len(msgs) == 0 {
			break
		}
		failed += w.handle(ctx, msgs)
		cursor = msgs[len(msgs)-1].ID
	}
	if failed > 0 {
		w.logger.Warn().Int("pending", failed).Msg("Audit entries still undelivered")
	}
	return failed, nil
}

// drain reads and handles one batch starting at start.
func (w *AuditStreamWorker) drain(ctx context.Context, start string) (int, error) {
	msgs, err := w.read(ctx, start)
	if err != nil {
		return 0, err
	}
	return w.handle(ctx, msgs), nil
}

func (w *AuditStreamWorker) read(ctx context.Context, start string) ([]go_redis.XMessage, error) {
	streams, err := w.rdb.XReadGroup(ctx, &go_redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumerName,
		Streams:  []string{w.streamKey, start},
		Count:    streamBatch,
		Block:    5 * time.Second,
	}).Result()
	if err != nil {
		if stderrors.Is(err, go_redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		w.logger.Warn().Err(err).Msg("Error reading audit stream")
		return nil, err
	}
	var msgs []go_redis.XMessage
	for _, stream := range streams {
		msgs = append(msgs, stream.Messages...)
	}
	return msgs, nil
}

// handle delivers msgs and acknowledges the ones that are done with. It
// returns the number left pending.
func (w *AuditStreamWorker) handle(ctx context.Context, msgs []go_redis.XMessage) int {
	failed := 0
	for _, msg := range msgs {
		if err := w.processMessage(ctx, msg.Values); err != nil {
			failed++
			w.logger.Warn().Err(err).Str("id", msg.ID).Msg("Audit delivery failed, leaving entry pending")
			continue
		}
		if err := w.rdb.XAck(ctx, w.streamKey, consumerGroup, msg.ID).Err(); err != nil {
			w.logger.Warn().Err(err).Str("id", msg.ID).Msg("Failed to ack audit entry")
		}
	}
	return failed
}

func (w *AuditStreamWorker) processMessage(ctx context.Context, values map[string]interface{}) error {
	if t, _ := values["type"].(string); t != "audit" {
		w.logger.Debug().Interface("values", values).Msg("Skipping unknown stream entry")
		return nil
	}
	text, ok := values["text"].(string)
	if !ok || text == "" {
		return nil
	}
	return w.deliver.DeliverAudit(ctx, text)
}

// sleepCtx waits d or until ctx is done; it reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
