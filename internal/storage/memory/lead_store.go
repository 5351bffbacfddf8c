package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

// LeadStore is a map-backed crawler.LeadStore with the same merge rules as
// the Postgres store.
type LeadStore struct {
	mu    sync.RWMutex
	leads map[string]crawler.LeadRecord
}

// NewLeadStore creates an empty lead store.
func NewLeadStore() *LeadStore {
	return &LeadStore{leads: make(map[string]crawler.LeadRecord)}
}

// UpsertLead inserts a new lead or merges into the stored one. first_seen and
// status are kept from the first write; empty fields keep stored values.
func (s *LeadStore) UpsertLead(_ context.Context, lead crawler.LeadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.leads[lead.LeadID]
	if !ok {
		if lead.ItemType == "" {
			lead.ItemType = crawler.ItemTypeLead
		}
		if lead.Status == "" {
			lead.Status = crawler.StatusNew
		}
		if lead.FirstSeen.IsZero() {
			lead.FirstSeen = lead.LastSeen
		}
		s.leads[lead.LeadID] = lead
		return nil
	}

	existing.LastSeen = lead.LastSeen
	existing.TouchedAt = lead.TouchedAt
	existing.TouchedBy = lead.TouchedBy
	mergeString(&existing.Email, lead.Email)
	mergeString(&existing.ContactURL, lead.ContactURL)
	mergeString(&existing.LeadDomain, lead.LeadDomain)
	mergeString(&existing.CompanyName, lead.CompanyName)
	mergeString(&existing.Role, lead.Role)
	mergeString(&existing.SourceURL, lead.SourceURL)
	mergeString(&existing.DraftMessage, lead.DraftMessage)
	mergeString(&existing.DedupeReason, lead.DedupeReason)
	mergeString(&existing.DedupeWinner, lead.DedupeWinner)
	if lead.ContactType != "" {
		existing.ContactType = lead.ContactType
	}
	existing.RoleConfidence = lead.RoleConfidence
	existing.LibraryConfidence = lead.LibraryConfidence
	if lead.SkippedAt != nil {
		existing.SkippedAt = lead.SkippedAt
	}
	s.leads[lead.LeadID] = existing
	return nil
}

// LeadStatus returns the stored status for leadID.
func (s *LeadStore) LeadStatus(_ context.Context, leadID string) (crawler.LeadStatus, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[leadID]
	if !ok {
		return "", false, nil
	}
	return lead.Status, true, nil
}

// SetStatus overwrites the status of an existing lead or creates a bare
// record of the given item type. Review tooling uses it to mark leads
// contacted or to suppress a whole domain.
func (s *LeadStore) SetStatus(leadID, itemType string, status crawler.LeadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead := s.leads[leadID]
	lead.LeadID = leadID
	if lead.ItemType == "" {
		lead.ItemType = itemType
	}
	lead.Status = status
	s.leads[leadID] = lead
}

// Get returns a stored lead.
func (s *LeadStore) Get(leadID string) (crawler.LeadRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[leadID]
	return lead, ok
}

// List returns every stored lead ordered by ID.
func (s *LeadStore) List() []crawler.LeadRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.LeadRecord, 0, len(s.leads))
	for _, lead := range s.leads {
		out = append(out, lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeadID < out[j].LeadID })
	return out
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
