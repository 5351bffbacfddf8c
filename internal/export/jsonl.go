// Package export appends every persisted lead to a line-delimited JSON file
// and can upload the file as an object snapshot when the run ends.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
	"github.com/JakeFAU/leadcrawler/internal/storage"
)

// Snapshot names where the finished export is uploaded.
type Snapshot struct {
	Store storage.BlobStore
	Path  string
}

// JSONLSink implements crawler.LeadSink on an append-only file.
type JSONLSink struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	written  int
	snapshot *Snapshot
	logger   *zap.Logger
}

var _ crawler.LeadSink = (*JSONLSink)(nil)

// NewJSONLSink opens path for appending, creating parent directories. A nil
// snapshot disables the upload on Close.
func NewJSONLSink(path string, snapshot *Snapshot, logger *zap.Logger) (*JSONLSink, error) {
	if path == "" {
		return nil, fmt.Errorf("export path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}
	// #nosec G304 -- export path comes from operator configuration.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	return &JSONLSink{file: f, path: path, snapshot: snapshot, logger: logger}, nil
}

// WriteLead appends lead as one JSON line.
func (s *JSONLSink) WriteLead(_ context.Context, lead crawler.LeadRecord) error {
	line, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("export sink is closed")
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("append lead: %w", err)
	}
	s.written++
	return nil
}

// Written reports how many leads this sink appended.
func (s *JSONLSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close closes the file and uploads the snapshot when configured. The upload
// covers the whole file, including lines from earlier runs.
func (s *JSONLSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	if s.snapshot == nil || s.snapshot.Store == nil {
		return nil
	}

	// #nosec G304 -- export path comes from operator configuration.
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("reopen export file: %w", err)
	}
	defer func() { _ = f.Close() }()
	uri, err := s.snapshot.Store.PutObject(ctx, s.snapshot.Path, "application/x-ndjson", f)
	if err != nil {
		return fmt.Errorf("upload export snapshot: %w", err)
	}
	s.logger.Info("export snapshot uploaded", zap.String("uri", uri), zap.Int("leads_this_run", s.written))
	return nil
}
