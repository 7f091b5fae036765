package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamMaxLen caps stream length (approximate trimming).
const StreamMaxLen = 10000

// AuditStream appends audit lines to a capped Redis stream.
type AuditStream struct {
	rdb *Client
	key string
	now func() time.Time
}

func NewAuditStream(rdb *Client, key string) *AuditStream {
	return &AuditStream{rdb: rdb, key: key, now: time.Now}
}

// Key is the stream name.
func (s *AuditStream) Key() string { return s.key }

// Enqueue adds one audit line.
func (s *AuditStream) Enqueue(ctx context.Context, text string) error {
	return s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.key,
		MaxLen: StreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type": "audit",
			"text": text,
			"at":   s.now().UTC().Format(time.RFC3339),
		},
	}).Err()
}
