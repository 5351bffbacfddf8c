// Package pubsub implements crawler.Queue on Google Cloud Pub/Sub. Messages
// are published to a topic and pulled synchronously from a subscription; the
// ack ID of a pulled message is its lease receipt.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	vkit "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

// Config names the topic and subscription backing the queue.
type Config struct {
	ProjectID    string
	Topic        string
	Subscription string
	// AckDeadline extends the lease on every pulled message. Zero keeps the
	// subscription's configured deadline.
	AckDeadline time.Duration
}

// Queue is a Pub/Sub backed crawler.Queue.
type Queue struct {
	client  *pubsub.Client
	topic   *pubsub.Topic
	sub     *vkit.SubscriberClient
	subName string
	ackSecs int32
	logger  *zap.Logger
}

var _ crawler.Queue = (*Queue)(nil)

func fullTopicName(projectID, topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
}

func fullSubscriptionName(projectID, subID string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
}

// New connects to Pub/Sub and verifies the topic exists. The subscriber
// client is only created when a subscription is configured, so producers can
// run without one. It authenticates using Application Default Credentials
// unless opts say otherwise.
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*Queue, error) {
	if cfg.ProjectID == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("queue.pubsub project_id and topic are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.Topic)
	exists, err := topic.Exists(ctx)
	if err != nil || !exists {
		topic.Stop()
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after topic check", zap.Error(closeErr))
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check topic %q: %w", fullTopicName(cfg.ProjectID, cfg.Topic), err)
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.Topic, cfg.ProjectID)
	}

	q := &Queue{
		client: client,
		topic:  topic,
		logger: logger,
	}
	if cfg.AckDeadline > 0 {
		q.ackSecs = int32(cfg.AckDeadline / time.Second)
	}
	if cfg.Subscription != "" {
		sub, err := vkit.NewSubscriberClient(ctx, opts...)
		if err != nil {
			_ = q.Close()
			return nil, fmt.Errorf("failed to create subscriber client: %w", err)
		}
		q.sub = sub
		q.subName = fullSubscriptionName(cfg.ProjectID, cfg.Subscription)
	}
	return q, nil
}

// Send publishes msg and waits for the server to accept it.
func (q *Queue) Send(ctx context.Context, msg crawler.QueueMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if _, err := q.topic.Publish(ctx, &pubsub.Message{Data: body}).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Receive pulls up to maxMessages messages, giving the server at most wait to
// return them. A pull that times out yields an empty slice and no error.
func (q *Queue) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]crawler.Delivery, error) {
	if q.sub == nil {
		return nil, fmt.Errorf("queue.pubsub.subscription is required to receive")
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}
	pullCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	resp, err := q.sub.Pull(pullCtx, &pubsubpb.PullRequest{
		Subscription: q.subName,
		MaxMessages:  int32(min(maxMessages, 1000)),
	})
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pull messages: %w", err)
	}

	out := make([]crawler.Delivery, 0, len(resp.GetReceivedMessages()))
	ackIDs := make([]string, 0, len(resp.GetReceivedMessages()))
	for _, m := range resp.GetReceivedMessages() {
		out = append(out, crawler.Delivery{Receipt: m.GetAckId(), Body: m.GetMessage().GetData()})
		ackIDs = append(ackIDs, m.GetAckId())
	}
	if q.ackSecs > 0 && len(ackIDs) > 0 {
		err := q.sub.ModifyAckDeadline(ctx, &pubsubpb.ModifyAckDeadlineRequest{
			Subscription:       q.subName,
			AckIds:             ackIDs,
			AckDeadlineSeconds: q.ackSecs,
		})
		if err != nil {
			q.logger.Warn("failed to extend ack deadline", zap.Int("messages", len(ackIDs)), zap.Error(err))
		}
	}
	return out, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return status.Code(err) == codes.DeadlineExceeded
}

// Ack deletes the message leased under receipt.
func (q *Queue) Ack(ctx context.Context, receipt string) error {
	if q.sub == nil {
		return fmt.Errorf("queue.pubsub.subscription is required to ack")
	}
	err := q.sub.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: q.subName,
		AckIds:       []string{receipt},
	})
	if err != nil {
		return fmt.Errorf("acknowledge message: %w", err)
	}
	return nil
}

// Close stops the publisher and closes both clients.
func (q *Queue) Close() error {
	q.topic.Stop()
	var errs []error
	if q.sub != nil {
		if err := q.sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close subscriber client: %w", err))
		}
	}
	if err := q.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close pubsub client: %w", err))
	}
	return errors.Join(errs...)
}
