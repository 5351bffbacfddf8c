// Package redis shares the visited cache between worker processes. Page
// outcomes are stored as hashes keyed by normalized URL.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

const (
	connectionTimeout = 5 * time.Second
	defaultKeyPrefix  = "leadcrawler:page:"
)

// Config holds Redis connection configuration.
type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires page records; zero keeps them forever.
	TTL time.Duration
}

// PageStore implements crawler.PageStore on a Redis hash per URL.
type PageStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ crawler.PageStore = (*PageStore)(nil)

// NewClient creates a Redis client and verifies the connection.
func NewClient(cfg Config) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewPageStore wraps an existing client.
func NewPageStore(client redis.UniversalClient, cfg Config) (*PageStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &PageStore{client: client, prefix: prefix, ttl: cfg.TTL}, nil
}

// Ping checks that the server is reachable.
func (s *PageStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *PageStore) key(url string) string {
	return s.prefix + url
}

// PutPage replaces the record for page.URL and refreshes its TTL.
func (s *PageStore) PutPage(ctx context.Context, page crawler.PageRecord) error {
	key := s.key(page.URL)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"last_crawled", page.LastCrawled.UTC().Format(time.RFC3339Nano),
			"status_code", page.StatusCode,
			"error", page.Error,
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put page: %w", err)
	}
	return nil
}

// GetPage returns the record for url if one exists.
func (s *PageStore) GetPage(ctx context.Context, url string) (crawler.PageRecord, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(url)).Result()
	if err != nil {
		return crawler.PageRecord{}, false, fmt.Errorf("get page: %w", err)
	}
	if len(fields) == 0 {
		return crawler.PageRecord{}, false, nil
	}
	crawled, err := time.Parse(time.RFC3339Nano, fields["last_crawled"])
	if err != nil {
		return crawler.PageRecord{}, false, fmt.Errorf("decode last_crawled: %w", err)
	}
	status, err := strconv.Atoi(fields["status_code"])
	if err != nil {
		return crawler.PageRecord{}, false, fmt.Errorf("decode status_code: %w", err)
	}
	return crawler.PageRecord{
		URL:         url,
		LastCrawled: crawled,
		StatusCode:  status,
		Error:       fields["error"],
	}, true, nil
}
