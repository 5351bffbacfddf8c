package crawler

import (
	"context"
	"time"
)

// LeadStore persists leads. UpsertLead must always write last_seen, touched_at
// and touched_by, write first_seen and status only when the record is new, and
// leave stored values in place for empty fields.
type LeadStore interface {
	UpsertLead(ctx context.Context, lead LeadRecord) error
	LeadStatus(ctx context.Context, leadID string) (LeadStatus, bool, error)
}

// PageStore records fetch outcomes and backs the visited cache.
type PageStore interface {
	PutPage(ctx context.Context, page PageRecord) error
	GetPage(ctx context.Context, url string) (PageRecord, bool, error)
}

// Queue is a lease-based distributed work queue.
type Queue interface {
	Send(ctx context.Context, msg QueueMessage) error
	// Receive returns at most max deliveries, waiting up to wait for any to
	// arrive. An empty slice with a nil error means the wait elapsed.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Delivery, error)
	Ack(ctx context.Context, receipt string) error
	Close() error
}

// Getter performs a single HTTP GET. A non-nil error means no response was
// received.
type Getter interface {
	Get(ctx context.Context, url string) (Response, error)
}

// LeadSink receives every persisted lead, e.g. a JSONL export.
type LeadSink interface {
	WriteLead(ctx context.Context, lead LeadRecord) error
}

// Hasher computes digests for lead identities.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
