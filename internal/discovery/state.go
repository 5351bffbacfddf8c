package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JakeFAU/leadcrawler/internal/storage"
)

// State is the rotation cursor and the quota counters of the current UTC day.
type State struct {
	Date       string         `json:"date"`
	QueryIndex int            `json:"query_index"`
	Used       map[string]int `json:"used"`
}

// StateStore persists State between runs.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
}

// BlobStateStore keeps State as a JSON object in a blob store.
type BlobStateStore struct {
	store storage.BlobStore
	path  string
}

// NewBlobStateStore stores State at path within store.
func NewBlobStateStore(store storage.BlobStore, path string) *BlobStateStore {
	return &BlobStateStore{store: store, path: path}
}

// Load reads the stored state. A missing object yields an empty State.
func (s *BlobStateStore) Load(ctx context.Context) (State, error) {
	data, err := s.store.GetObject(ctx, s.path)
	if errors.Is(err, storage.ErrNotFound) {
		return State{Used: map[string]int{}}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read discovery state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode discovery state: %w", err)
	}
	if st.Used == nil {
		st.Used = map[string]int{}
	}
	return st, nil
}

// Save writes st as indented JSON.
func (s *BlobStateStore) Save(ctx context.Context, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode discovery state: %w", err)
	}
	if _, err := s.store.PutObject(ctx, s.path, "application/json", bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write discovery state: %w", err)
	}
	return nil
}
