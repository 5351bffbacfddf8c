// Package postgres provides Postgres-backed lead and page stores.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names created by the embedded migrations.
const (
	DefaultLeadTable = "leads"
	DefaultPageTable = "pages"
)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string
	LeadTable       string
	PageTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store implements crawler.LeadStore and crawler.PageStore.
type Store struct {
	pool      pool
	leadTable string
	pageTable string
}

var (
	_ crawler.LeadStore = (*Store)(nil)
	_ crawler.PageStore = (*Store)(nil)
)

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.LeadTable, cfg.PageTable)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, leadTable, pageTable string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if leadTable == "" {
		leadTable = DefaultLeadTable
	}
	if pageTable == "" {
		pageTable = DefaultPageTable
	}
	for _, table := range []string{leadTable, pageTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Store{pool: p, leadTable: leadTable, pageTable: pageTable}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertLead inserts lead or merges it into the stored row. first_seen,
// status and item_type are only written on insert; empty strings leave the
// stored column alone.
func (s *Store) UpsertLead(ctx context.Context, lead crawler.LeadRecord) error {
	if lead.LeadID == "" {
		return fmt.Errorf("lead id is required")
	}
	if lead.ItemType == "" {
		lead.ItemType = crawler.ItemTypeLead
	}
	if lead.Status == "" {
		lead.Status = crawler.StatusNew
	}
	if lead.FirstSeen.IsZero() {
		lead.FirstSeen = lead.LastSeen
	}
	query := fmt.Sprintf(`
INSERT INTO %[1]s (
	lead_id,
	item_type,
	email,
	contact_type,
	contact_url,
	lead_domain,
	company_name,
	role,
	role_confidence,
	library_confidence,
	source_url,
	status,
	draft_message,
	first_seen,
	last_seen,
	touched_at,
	touched_by
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)
ON CONFLICT (lead_id) DO UPDATE SET
	email = COALESCE(EXCLUDED.email, %[1]s.email),
	contact_type = COALESCE(EXCLUDED.contact_type, %[1]s.contact_type),
	contact_url = COALESCE(EXCLUDED.contact_url, %[1]s.contact_url),
	lead_domain = COALESCE(EXCLUDED.lead_domain, %[1]s.lead_domain),
	company_name = COALESCE(EXCLUDED.company_name, %[1]s.company_name),
	role = COALESCE(EXCLUDED.role, %[1]s.role),
	role_confidence = EXCLUDED.role_confidence,
	library_confidence = EXCLUDED.library_confidence,
	source_url = COALESCE(EXCLUDED.source_url, %[1]s.source_url),
	draft_message = COALESCE(EXCLUDED.draft_message, %[1]s.draft_message),
	last_seen = EXCLUDED.last_seen,
	touched_at = EXCLUDED.touched_at,
	touched_by = EXCLUDED.touched_by`, s.leadTable)

	args := []any{
		lead.LeadID,
		lead.ItemType,
		nullable(lead.Email),
		nullable(string(lead.ContactType)),
		nullable(lead.ContactURL),
		nullable(lead.LeadDomain),
		nullable(lead.CompanyName),
		nullable(lead.Role),
		lead.RoleConfidence,
		lead.LibraryConfidence,
		nullable(lead.SourceURL),
		string(lead.Status),
		nullable(lead.DraftMessage),
		lead.FirstSeen,
		lead.LastSeen,
		lead.TouchedAt,
		lead.TouchedBy,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert lead: %w", err)
	}
	return nil
}

// LeadStatus returns the stored status for leadID.
func (s *Store) LeadStatus(ctx context.Context, leadID string) (crawler.LeadStatus, bool, error) {
	query := fmt.Sprintf(`SELECT status FROM %s WHERE lead_id = $1`, s.leadTable)
	var status string
	err := s.pool.QueryRow(ctx, query, leadID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select lead status: %w", err)
	}
	return crawler.LeadStatus(status), true, nil
}

// PutPage replaces the fetch outcome for page.URL.
func (s *Store) PutPage(ctx context.Context, page crawler.PageRecord) error {
	query := fmt.Sprintf(`
INSERT INTO %s (page_url, last_crawled, status_code, error)
VALUES ($1,$2,$3,$4)
ON CONFLICT (page_url) DO UPDATE SET
	last_crawled = EXCLUDED.last_crawled,
	status_code = EXCLUDED.status_code,
	error = EXCLUDED.error`, s.pageTable)
	if _, err := s.pool.Exec(ctx, query, page.URL, page.LastCrawled, page.StatusCode, nullable(page.Error)); err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}
	return nil
}

// GetPage returns the stored fetch outcome for url.
func (s *Store) GetPage(ctx context.Context, url string) (crawler.PageRecord, bool, error) {
	query := fmt.Sprintf(
		`SELECT last_crawled, status_code, COALESCE(error, '') FROM %s WHERE page_url = $1`,
		s.pageTable,
	)
	rec := crawler.PageRecord{URL: url}
	err := s.pool.QueryRow(ctx, query, url).Scan(&rec.LastCrawled, &rec.StatusCode, &rec.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.PageRecord{}, false, nil
	}
	if err != nil {
		return crawler.PageRecord{}, false, fmt.Errorf("select page: %w", err)
	}
	return rec, true, nil
}

// nullable maps empty strings to SQL NULL so COALESCE keeps stored values.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
