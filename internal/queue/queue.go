// Package queue holds what the Pub/Sub and in-memory crawl queues share.
// Both implement crawler.Queue: messages are leased on Receive and removed
// on Ack, and an unacknowledged lease expires back onto the queue.
package queue

import "errors"

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("queue closed")
