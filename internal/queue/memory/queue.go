// Package memory provides an in-process lease queue for single-host runs
// and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
	"github.com/JakeFAU/leadcrawler/internal/queue"
)

// DefaultVisibilityTimeout is how long a received message stays leased.
const DefaultVisibilityTimeout = 30 * time.Second

type lease struct {
	body    []byte
	expires time.Time
}

// Queue is a FIFO lease queue. Received messages are hidden until acked or
// until their visibility timeout elapses, after which they are redelivered.
type Queue struct {
	mu         sync.Mutex
	pending    [][]byte
	leased     map[string]lease
	visibility time.Duration
	signal     chan struct{}
	closed     bool
}

var _ crawler.Queue = (*Queue)(nil)

// NewQueue constructs a queue with the given visibility timeout.
func NewQueue(visibility time.Duration) *Queue {
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	return &Queue{
		leased:     make(map[string]lease),
		visibility: visibility,
		signal:     make(chan struct{}, 1),
	}
}

// Send enqueues msg as JSON.
func (q *Queue) Send(ctx context.Context, msg crawler.QueueMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return q.SendRaw(ctx, body)
}

// SendRaw enqueues an already encoded body.
func (q *Queue) SendRaw(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return queue.ErrClosed
	}
	q.pending = append(q.pending, append([]byte(nil), body...))
	q.mu.Unlock()
	q.notify()
	return nil
}

func (q *Queue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Receive leases up to maxMessages messages, waiting up to wait for the
// first one. An empty result with a nil error means the wait elapsed.
func (q *Queue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]crawler.Delivery, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	deadline := time.Now().Add(wait)
	for {
		out, nextExpiry, err := q.take(maxMessages)
		if err != nil || len(out) > 0 {
			return out, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if !nextExpiry.IsZero() {
			remaining = min(remaining, time.Until(nextExpiry))
		}
		timer := time.NewTimer(max(remaining, time.Millisecond))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("receive canceled: %w", ctx.Err())
		case <-q.signal:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// take requeues expired leases and leases up to n pending messages. It also
// reports the earliest outstanding lease expiry.
func (q *Queue) take(n int) ([]crawler.Delivery, time.Time, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, time.Time{}, queue.ErrClosed
	}

	now := time.Now()
	var nextExpiry time.Time
	for receipt, l := range q.leased {
		if !now.Before(l.expires) {
			delete(q.leased, receipt)
			q.pending = append(q.pending, l.body)
			continue
		}
		if nextExpiry.IsZero() || l.expires.Before(nextExpiry) {
			nextExpiry = l.expires
		}
	}

	count := min(n, len(q.pending))
	if count == 0 {
		return nil, nextExpiry, nil
	}
	out := make([]crawler.Delivery, 0, count)
	for _, body := range q.pending[:count] {
		receipt := uuid.NewString()
		q.leased[receipt] = lease{body: body, expires: now.Add(q.visibility)}
		out = append(out, crawler.Delivery{Receipt: receipt, Body: append([]byte(nil), body...)})
	}
	q.pending = q.pending[count:]
	return out, nextExpiry, nil
}

// Ack deletes a leased message. Acking an unknown or expired receipt is a
// no-op, mirroring Pub/Sub.
func (q *Queue) Ack(_ context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return queue.ErrClosed
	}
	delete(q.leased, receipt)
	return nil
}

// Len reports pending plus leased messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.leased)
}

// Close stops the queue. Closing twice is safe.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
