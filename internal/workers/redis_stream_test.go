package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	go_redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStream models one consumer of a Redis stream group: entries handed
// out by ">" stay pending until acked, and an explicit id lists pending
// entries after it.
type memStream struct {
	mu      sync.Mutex
	entries []go_redis.XMessage
	next    int
	pending map[string]bool
}

func newMemStream() *memStream {
	return &memStream{pending: make(map[string]bool)}
}

func (s *memStream) add(values map[string]interface{}) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("%013d-0", len(s.entries)+1)
	s.entries = append(s.entries, go_redis.XMessage{ID: id, Values: values})
	return id
}

func (s *memStream) addAudit(text string) string {
	return s.add(map[string]interface{}{"type": "audit", "text": text})
}

// handOut marks the next n entries delivered but unacknowledged, as after
// a crash.
func (s *memStream) handOut(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ; n > 0 && s.next < len(s.entries); n-- {
		s.pending[s.entries[s.next].ID] = true
		s.next++
	}
}

func (s *memStream) pendingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, e := range s.entries {
		if s.pending[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (s *memStream) XGroupCreateMkStream(context.Context, string, string, string) *go_redis.StatusCmd {
	return go_redis.NewStatusResult("OK", nil)
}

func (s *memStream) XReadGroup(ctx context.Context, a *go_redis.XReadGroupArgs) *go_redis.XStreamSliceCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, start := a.Streams[0], a.Streams[1]

	var msgs []go_redis.XMessage
	if start == ">" {
		for s.next < len(s.entries) && int64(len(msgs)) < a.Count {
			e := s.entries[s.next]
			s.pending[e.ID] = true
			msgs = append(msgs, e)
			s.next++
		}
		if len(msgs) == 0 {
			s.mu.Unlock()
			sleepCtx(ctx, 5*time.Millisecond)
			s.mu.Lock()
			return go_redis.NewXStreamSliceCmdResult(nil, go_redis.Nil)
		}
	} else {
		for _, e := range s.entries {
			if int64(len(msgs)) == a.Count {
				break
			}
			if s.pending[e.ID] && (start == "0" || e.ID > start) {
				msgs = append(msgs, e)
			}
		}
	}
	return go_redis.NewXStreamSliceCmdResult([]go_redis.XStream{{Stream: key, Messages: msgs}}, nil)
}

func (s *memStream) XAck(_ context.Context, _, _ string, ids ...string) *go_redis.IntCmd {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.pending, id)
	}
	return go_redis.NewIntResult(int64(len(ids)), nil)
}

type flakyDeliverer struct {
	mu        sync.Mutex
	fail      func(text string) bool
	delivered []string
}

func (d *flakyDeliverer) DeliverAudit(_ context.Context, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil && d.fail(text) {
		return errors.New("telegram: 429 too many requests")
	}
	d.delivered = append(d.delivered, text)
	return nil
}

func (d *flakyDeliverer) setFail(fn func(string) bool) {
	d.mu.Lock()
	d.fail = fn
	d.mu.Unlock()
}

func (d *flakyDeliverer) lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.delivered...)
}

func TestAuditStreamAcksOnlyDeliveredEntries(t *testing.T) {
	ctx := context.Background()
	stream := newMemStream()
	stream.addAudit("a")
	failedID := stream.addAudit("b")
	stream.add(map[string]interface{}{"type": "metric", "value": "1"})

	deliver := &flakyDeliverer{fail: func(text string) bool { return text == "b" }}
	w := NewAuditStreamWorker(stream, "audit", deliver, zerolog.Nop())

	failed, err := w.drain(ctx, ">")
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"a"}, deliver.lines())
	assert.Equal(t, []string{failedID}, stream.pendingIDs())

	deliver.setFail(nil)
	left, err := w.redeliverPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)
	assert.Equal(t, []string{"a", "b"}, deliver.lines())
	assert.Empty(t, stream.pendingIDs())
}

func TestAuditStreamRedeliversEveryPendingBatch(t *testing.T) {
	ctx := context.Background()
	stream := newMemStream()
	const backlog = streamBatch*2 + 5
	for i := 0; i < backlog; i++ {
		stream.addAudit(fmt.Sprintf("line %d", i))
	}
	stream.handOut(backlog)

	deliver := &flakyDeliverer{fail: func(string) bool { return true }}
	w := NewAuditStreamWorker(stream, "audit", deliver, zerolog.Nop())

	left, err := w.redeliverPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, backlog, left)
	assert.Len(t, stream.pendingIDs(), backlog)

	deliver.setFail(nil)
	left, err = w.redeliverPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)
	lines := deliver.lines()
	require.Len(t, lines, backlog)
	assert.Equal(t, "line 0", lines[0])
	assert.Equal(t, fmt.Sprintf("line %d", backlog-1), lines[backlog-1])
	assert.Empty(t, stream.pendingIDs())
}

func TestAuditStreamWorkerDeliversBacklogThenNewEntries(t *testing.T) {
	stream := newMemStream()
	for i := 0; i < streamBatch+3; i++ {
		stream.addAudit(fmt.Sprintf("old %d", i))
	}
	stream.handOut(streamBatch + 3)
	stream.addAudit("new")

	deliver := &flakyDeliverer{}
	w := NewAuditStreamWorker(stream, "audit", deliver, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(deliver.lines()) == streamBatch+4 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit stream worker did not stop")
	}

	lines := deliver.lines()
	assert.Equal(t, "old 0", lines[0])
	assert.Equal(t, "new", lines[len(lines)-1])
	assert.Empty(t, stream.pendingIDs())
}
