package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

// PageStore is a map-backed crawler.PageStore keyed by normalized URL.
type PageStore struct {
	mu    sync.RWMutex
	pages map[string]crawler.PageRecord
}

// NewPageStore creates an empty page store.
func NewPageStore() *PageStore {
	return &PageStore{pages: make(map[string]crawler.PageRecord)}
}

// PutPage replaces the record for page.URL.
func (s *PageStore) PutPage(_ context.Context, page crawler.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[page.URL] = page
	return nil
}

// GetPage returns the record for url if one was written.
func (s *PageStore) GetPage(_ context.Context, url string) (crawler.PageRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[url]
	return page, ok, nil
}

// Len reports how many pages are stored.
func (s *PageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}
