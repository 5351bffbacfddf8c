package queue

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

// MockQueue is a testify mock of crawler.Queue.
type MockQueue struct {
	mock.Mock
}

var _ crawler.Queue = (*MockQueue)(nil)

// Send is the mock implementation of the Send method.
func (m *MockQueue) Send(ctx context.Context, msg crawler.QueueMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Receive is the mock implementation of the Receive method.
func (m *MockQueue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]crawler.Delivery, error) {
	args := m.Called(ctx, maxMessages, wait)
	deliveries, _ := args.Get(0).([]crawler.Delivery)
	return deliveries, args.Error(1)
}

// Ack is the mock implementation of the Ack method.
func (m *MockQueue) Ack(ctx context.Context, receipt string) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

// Close is the mock implementation of the Close method.
func (m *MockQueue) Close() error {
	args := m.Called()
	return args.Error(0)
}
