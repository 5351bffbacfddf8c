package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
	"github.com/JakeFAU/leadcrawler/internal/queue"
)

func TestQueueSendReceiveAck(t *testing.T) {
	t.Parallel()

	q := NewQueue(time.Minute)
	ctx := context.Background()
	for _, u := range []string{"https://a.com/", "https://b.com/", "https://c.com/"} {
		if err := q.Send(ctx, crawler.QueueMessage{URL: u, SeedURL: u}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}

	got, err := q.Receive(ctx, 2, time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(got))
	}
	var first crawler.QueueMessage
	if err := json.Unmarshal(got[0].Body, &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.URL != "https://a.com/" {
		t.Fatalf("expected FIFO order, got %s", first.URL)
	}
	if got[0].Receipt == got[1].Receipt || got[0].Receipt == "" {
		t.Fatalf("receipts must be unique, got %q and %q", got[0].Receipt, got[1].Receipt)
	}

	for _, d := range got {
		if err := q.Ack(ctx, d.Receipt); err != nil {
			t.Fatalf("Ack() error = %v", err)
		}
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 message left, got %d", q.Len())
	}
}

func TestQueueReceiveTimesOutEmpty(t *testing.T) {
	t.Parallel()

	q := NewQueue(time.Minute)
	start := time.Now()
	got, err := q.Receive(context.Background(), 10, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(got))
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Fatal("receive returned before the wait elapsed")
	}
}

func TestQueueReceiveWakesOnSend(t *testing.T) {
	t.Parallel()

	q := NewQueue(time.Minute)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.SendRaw(context.Background(), []byte(`{"url":"https://a.com/"}`))
	}()
	got, err := q.Receive(context.Background(), 1, time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
}

func TestQueueRedeliversExpiredLease(t *testing.T) {
	t.Parallel()

	q := NewQueue(20 * time.Millisecond)
	ctx := context.Background()
	if err := q.SendRaw(ctx, []byte("poison?")); err != nil {
		t.Fatalf("SendRaw() error = %v", err)
	}
	first, err := q.Receive(ctx, 1, time.Second)
	if err != nil || len(first) != 1 {
		t.Fatalf("first Receive() = %v, %v", first, err)
	}

	second, err := q.Receive(ctx, 1, time.Second)
	if err != nil || len(second) != 1 {
		t.Fatalf("second Receive() = %v, %v", second, err)
	}
	if second[0].Receipt == first[0].Receipt {
		t.Fatal("redelivery must carry a new receipt")
	}
	if string(second[0].Body) != "poison?" {
		t.Fatalf("unexpected body %q", second[0].Body)
	}

	// The stale receipt no longer refers to a lease.
	if err := q.Ack(ctx, first[0].Receipt); err != nil {
		t.Fatalf("Ack(stale) error = %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected redelivered message to stay leased, got len %d", q.Len())
	}
}

func TestQueueCancelationAndClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Receive(ctx, 1, time.Second); err == nil ||
		err.Error() != "receive canceled: context canceled" {
		t.Fatalf("expected receive cancel error, got %v", err)
	}
	if err := q.Send(ctx, crawler.QueueMessage{URL: "x"}); err == nil {
		t.Fatal("expected send cancel error")
	}

	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := q.Receive(context.Background(), 1, time.Millisecond); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := q.Send(context.Background(), crawler.QueueMessage{URL: "x"}); !errors.Is(err, queue.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	// Closing twice should be safe.
	_ = q.Close()
}
