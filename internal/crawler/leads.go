package crawler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/heuristics"
	"github.com/JakeFAU/leadcrawler/internal/metrics"
)

// RejectReason explains why a candidate lead was not persisted.
type RejectReason string

// Rejection reasons, also used as metric labels.
const (
	RejectNone             RejectReason = ""
	RejectNoContact        RejectReason = "no_contact"
	RejectBlockedDomain    RejectReason = "blocked_domain"
	RejectCrossDomainForm  RejectReason = "cross_domain_form"
	RejectLowRole          RejectReason = "low_role_confidence"
	RejectLowLibrary       RejectReason = "low_library_confidence"
	RejectSuppressed       RejectReason = "suppressed"
	RejectIdentityFailed   RejectReason = "identity_failed"
	RejectStoreUnavailable RejectReason = "store_unavailable"
)

// LeadOptions configures lead qualification and identity.
type LeadOptions struct {
	DedupeByDomain         bool
	DedupeFormsByDomain    bool
	DomainSuppression      bool
	RequireSameDomainForms bool
	LibraryOnly            bool
	MinRoleConfidence      int
	MinLibraryConfidence   int
	TouchedBy              string
}

// Candidate is a page that yielded a contact route, with its scores.
type Candidate struct {
	Page              *Page
	Contact           ContactResult
	Role              heuristics.Role
	RoleConfidence    int
	LibraryConfidence int
}

// LeadAdapter derives lead identities, applies qualification and suppression
// rules and upserts qualifying leads.
type LeadAdapter struct {
	store  LeadStore
	sink   LeadSink
	hasher Hasher
	clock  Clock
	rules  *heuristics.Rules
	drafts *DraftWriter
	opts   LeadOptions
	logger *zap.Logger
}

// NewLeadAdapter wires a LeadAdapter. sink may be nil.
func NewLeadAdapter(
	store LeadStore,
	sink LeadSink,
	hasher Hasher,
	clock Clock,
	rules *heuristics.Rules,
	drafts *DraftWriter,
	opts LeadOptions,
	logger *zap.Logger,
) *LeadAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TouchedBy == "" {
		opts.TouchedBy = "crawler"
	}
	return &LeadAdapter{
		store:  store,
		sink:   sink,
		hasher: hasher,
		clock:  clock,
		rules:  rules,
		drafts: drafts,
		opts:   opts,
		logger: logger,
	}
}

// LeadDomain returns the www-stripped site host a lead belongs to: the
// contact URL's host, else the page's host. The email's domain never counts.
func LeadDomain(contactURL, pageURL string) string {
	if host := SiteHost(contactURL); host != "" {
		return host
	}
	return SiteHost(pageURL)
}

// IdentityKey returns the canonical key a lead ID is digested from.
func (a *LeadAdapter) IdentityKey(contact ContactResult, pageURL string) string {
	domain := LeadDomain(contact.URL, pageURL)
	if domain != "" && (a.opts.DedupeByDomain || (a.opts.DedupeFormsByDomain && contact.Type == ContactForm)) {
		return "domain:" + domain
	}
	switch {
	case contact.Email != "":
		return strings.ToLower(strings.TrimSpace(contact.Email))
	case contact.URL != "":
		return NormalizeURL(contact.URL)
	default:
		return NormalizeURL(pageURL)
	}
}

// Identity returns the deterministic lead ID for a contact found on pageURL.
func (a *LeadAdapter) Identity(contact ContactResult, pageURL string) (string, error) {
	id, err := a.hasher.Hash([]byte(a.IdentityKey(contact, pageURL)))
	if err != nil {
		return "", fmt.Errorf("hash lead identity: %w", err)
	}
	return id, nil
}

// DomainSuppressionID returns the ID of the synthetic record marking a whole
// domain as contacted.
func (a *LeadAdapter) DomainSuppressionID(domain string) (string, error) {
	id, err := a.hasher.Hash([]byte(ItemTypeDomainSuppression + "#" + domain))
	if err != nil {
		return "", fmt.Errorf("hash domain suppression id: %w", err)
	}
	return id, nil
}

// IsSuppressed reports whether the lead already carries a terminal status or,
// with domain suppression enabled, its domain has been contacted. Store
// failures are logged and treated as not suppressed.
func (a *LeadAdapter) IsSuppressed(ctx context.Context, leadID, domain string) bool {
	status, found, err := a.store.LeadStatus(ctx, leadID)
	if err != nil {
		a.logger.Warn("lead status lookup failed", zap.String("lead_id", leadID), zap.Error(err))
	} else if found && status.Terminal() {
		return true
	}
	if !a.opts.DomainSuppression || domain == "" {
		return false
	}
	suppressionID, err := a.DomainSuppressionID(domain)
	if err != nil {
		a.logger.Warn("domain suppression id failed", zap.String("domain", domain), zap.Error(err))
		return false
	}
	status, found, err = a.store.LeadStatus(ctx, suppressionID)
	if err != nil {
		a.logger.Warn("domain suppression lookup failed", zap.String("domain", domain), zap.Error(err))
		return false
	}
	return found && status == StatusContacted
}

// Qualify applies the rejection rules to c and returns the record to persist.
// A non-empty reason means the candidate must be dropped without side effects.
func (a *LeadAdapter) Qualify(ctx context.Context, c Candidate) (LeadRecord, RejectReason) {
	if !c.Contact.Found() {
		return LeadRecord{}, RejectNoContact
	}
	pageURL := NormalizeURL(c.Page.URL)
	domain := LeadDomain(c.Contact.URL, pageURL)
	if domain == "" ||
		a.rules.BlocksLeadDomain(domain, a.opts.LibraryOnly) ||
		a.rules.BlocksLeadDomain(SiteHost(pageURL), a.opts.LibraryOnly) {
		return LeadRecord{}, RejectBlockedDomain
	}
	if c.Contact.Type == ContactForm && a.opts.RequireSameDomainForms &&
		SiteHost(c.Contact.URL) != SiteHost(pageURL) {
		return LeadRecord{}, RejectCrossDomainForm
	}
	if c.RoleConfidence < a.opts.MinRoleConfidence {
		return LeadRecord{}, RejectLowRole
	}
	if c.LibraryConfidence < a.opts.MinLibraryConfidence {
		return LeadRecord{}, RejectLowLibrary
	}

	leadID, err := a.Identity(c.Contact, pageURL)
	if err != nil {
		a.logger.Warn("lead identity failed", zap.String("url", pageURL), zap.Error(err))
		return LeadRecord{}, RejectIdentityFailed
	}
	if a.IsSuppressed(ctx, leadID, domain) {
		return LeadRecord{}, RejectSuppressed
	}

	role := c.Role
	if role == "" {
		role = heuristics.RoleUnknown
	}
	now := a.clock.Now()
	lead := LeadRecord{
		LeadID:            leadID,
		ItemType:          ItemTypeLead,
		Email:             c.Contact.Email,
		ContactType:       c.Contact.Type,
		ContactURL:        c.Contact.URL,
		LeadDomain:        domain,
		CompanyName:       CompanyName(c.Page),
		Role:              string(role),
		RoleConfidence:    c.RoleConfidence,
		LibraryConfidence: c.LibraryConfidence,
		SourceURL:         pageURL,
		Status:            StatusNew,
		FirstSeen:         now,
		LastSeen:          now,
		TouchedAt:         now,
		TouchedBy:         a.opts.TouchedBy,
	}
	if a.drafts != nil {
		lead.DraftMessage = a.drafts.Draft(role)
	}
	return lead, RejectNone
}

// Save qualifies c and upserts the resulting lead. It returns the lead and
// whether it was written. Store failures are logged and reported as not saved.
func (a *LeadAdapter) Save(ctx context.Context, c Candidate) (LeadRecord, bool) {
	lead, reason := a.Qualify(ctx, c)
	if reason != RejectNone {
		metrics.ObserveLeadRejected(string(reason))
		a.logger.Debug("lead rejected", zap.String("url", c.Page.URL), zap.String("reason", string(reason)))
		return LeadRecord{}, false
	}
	if err := a.Upsert(ctx, lead); err != nil {
		metrics.ObserveLeadRejected(string(RejectStoreUnavailable))
		a.logger.Warn("lead upsert failed", zap.String("lead_id", lead.LeadID), zap.Error(err))
		return LeadRecord{}, false
	}
	metrics.ObserveLeadSaved(string(lead.ContactType))
	a.logger.Info("lead saved",
		zap.String("lead_id", lead.LeadID),
		zap.String("role", lead.Role),
		zap.String("contact_type", string(lead.ContactType)),
		zap.String("email", lead.Email),
		zap.String("contact_url", lead.ContactURL),
	)
	return lead, true
}

// Upsert writes lead through the store and then the export sink. The sink is
// best-effort.
func (a *LeadAdapter) Upsert(ctx context.Context, lead LeadRecord) error {
	if err := a.store.UpsertLead(ctx, lead); err != nil {
		return fmt.Errorf("upsert lead %s: %w", lead.LeadID, err)
	}
	if a.sink != nil {
		if err := a.sink.WriteLead(ctx, lead); err != nil {
			a.logger.Warn("lead export failed", zap.String("lead_id", lead.LeadID), zap.Error(err))
		}
	}
	return nil
}

var titleSeparators = []string{" | ", " - ", " – "}

// CompanyName returns og:site_name, else the first segment of the title.
func CompanyName(page *Page) string {
	if page == nil {
		return ""
	}
	if page.SiteName != "" {
		return page.SiteName
	}
	name := page.Title
	for _, sep := range titleSeparators {
		if before, _, ok := strings.Cut(name, sep); ok {
			name = before
		}
	}
	return strings.TrimSpace(name)
}

