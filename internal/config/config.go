// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/leadcrawler/internal/crawler"
)

// EnvPrefix prefixes every environment override, e.g.
// LEADBOT_CRAWLER_MAX_PAGES_PER_RUN=200.
const EnvPrefix = "LEADBOT"

// Backend names accepted in the storage, queue and discovery sections.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendPubSub   = "pubsub"
	BackendFile     = "file"
	BackendGCS      = "gcs"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Leads     LeadsConfig     `mapstructure:"leads"`
	Outreach  OutreachConfig  `mapstructure:"outreach"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Export    ExportConfig    `mapstructure:"export"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the /metrics and /healthz listener.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// CrawlerConfig governs the frontier, fetch layer and extractor.
type CrawlerConfig struct {
	Mode               string        `mapstructure:"mode"`
	SeedsFile          string        `mapstructure:"seeds_file"`
	Seeds              []string      `mapstructure:"seeds"`
	BlockedDomainsFile string        `mapstructure:"blocked_domains_file"`
	UserAgent          string        `mapstructure:"user_agent"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RespectRobots      bool          `mapstructure:"respect_robots"`
	MaxBodyBytes       int           `mapstructure:"max_body_bytes"`
	DelayPerDomain     time.Duration `mapstructure:"delay_per_domain"`
	MaxPagesPerDomain  int           `mapstructure:"max_pages_per_domain"`
	MaxPagesPerRun     int           `mapstructure:"max_pages_per_run"`
	MaxLeadsPerRun     int           `mapstructure:"max_leads_per_run"`
	AllowExternalLinks bool          `mapstructure:"allow_external_links"`
	MaxLinksPerPage    int           `mapstructure:"max_links_per_page"`
	UseVisitedCache    bool          `mapstructure:"use_visited_cache"`
	VisitedTTL         time.Duration `mapstructure:"visited_ttl"`
}

// LeadsConfig controls qualification and identity.
type LeadsConfig struct {
	DedupeByDomain         bool   `mapstructure:"dedupe_by_domain"`
	DedupeFormsByDomain    bool   `mapstructure:"dedupe_forms_by_domain"`
	DomainSuppression      bool   `mapstructure:"domain_suppression"`
	RequireSameDomainForms bool   `mapstructure:"require_same_domain_forms"`
	LibraryOnly            bool   `mapstructure:"library_only"`
	MinRoleConfidence      int    `mapstructure:"min_role_confidence"`
	MinLibraryConfidence   int    `mapstructure:"min_library_confidence"`
	TouchedBy              string `mapstructure:"touched_by"`
}

// OutreachConfig fills the draft message template.
type OutreachConfig struct {
	SenderName  string `mapstructure:"sender_name"`
	Website     string `mapstructure:"website"`
	ReviewHours string `mapstructure:"review_hours"`
}

// StorageConfig selects the lead and page store backends.
type StorageConfig struct {
	Backend     string         `mapstructure:"backend"`
	PageBackend string         `mapstructure:"page_backend"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
	Redis       RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	LeadTable       string        `mapstructure:"lead_table"`
	PageTable       string        `mapstructure:"page_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// RedisConfig controls the shared visited cache.
type RedisConfig struct {
	Address   string        `mapstructure:"address"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// QueueConfig configures the distributed queue used by producer and worker
// runs.
type QueueConfig struct {
	Backend           string        `mapstructure:"backend"`
	PubSub            PubSubConfig  `mapstructure:"pubsub"`
	ReceiveBatch      int           `mapstructure:"receive_batch"`
	ReceiveWait       time.Duration `mapstructure:"receive_wait"`
	MaxEmptyReceives  int           `mapstructure:"max_empty_receives"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
}

// PubSubConfig holds the Pub/Sub topic and subscription.
type PubSubConfig struct {
	ProjectID    string        `mapstructure:"project_id"`
	Topic        string        `mapstructure:"topic"`
	Subscription string        `mapstructure:"subscription"`
	AckDeadline  time.Duration `mapstructure:"ack_deadline"`
}

// DiscoveryConfig configures search-based seeding.
type DiscoveryConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	QueriesFile  string         `mapstructure:"queries_file"`
	StateBackend string         `mapstructure:"state_backend"`
	StatePath    string         `mapstructure:"state_path"`
	StateBucket  string         `mapstructure:"state_bucket"`
	BatchSize    int            `mapstructure:"batch_size"`
	PerQueryCap  int            `mapstructure:"per_query_cap"`
	MaxURLs      int            `mapstructure:"max_urls"`
	Quotas       map[string]int `mapstructure:"quotas"`
	BraveAPIKey  string         `mapstructure:"brave_api_key"`
	SerperAPIKey string         `mapstructure:"serper_api_key"`
	OpenAIAPIKey string         `mapstructure:"openai_api_key"`
	OpenAIModel  string         `mapstructure:"openai_model"`
}

// ExportConfig controls the JSONL export and its snapshot upload.
type ExportConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	GCSPrefix  string `mapstructure:"gcs_prefix"`
	ObjectName string `mapstructure:"object_name"`
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads and validates a Config.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read builds a Config from defaults, an optional file and the environment
// without validating it, so callers can apply overrides first.
func Read(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindProviderKeys(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// bindProviderKeys also accepts the vendors' conventional variable names.
func bindProviderKeys(v *viper.Viper) error {
	bindings := map[string][]string{
		"discovery.brave_api_key":  {EnvPrefix + "_DISCOVERY_BRAVE_API_KEY", "BRAVE_API_KEY"},
		"discovery.serper_api_key": {EnvPrefix + "_DISCOVERY_SERPER_API_KEY", "SERPER_API_KEY"},
		"discovery.openai_api_key": {EnvPrefix + "_DISCOVERY_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"storage.postgres.dsn":     {EnvPrefix + "_STORAGE_POSTGRES_DSN", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("crawler.mode", string(crawler.ModeLocal))
	v.SetDefault("crawler.seeds_file", "seeds.txt")
	v.SetDefault("crawler.seeds", []string{})
	v.SetDefault("crawler.blocked_domains_file", "")
	v.SetDefault("crawler.user_agent", "leadcrawler/0.1 (+https://github.com/JakeFAU/leadcrawler)")
	v.SetDefault("crawler.request_timeout", "15s")
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.max_body_bytes", 5*1024*1024)
	v.SetDefault("crawler.delay_per_domain", "1s")
	v.SetDefault("crawler.max_pages_per_domain", 30)
	v.SetDefault("crawler.max_pages_per_run", 500)
	v.SetDefault("crawler.max_leads_per_run", 0)
	v.SetDefault("crawler.allow_external_links", false)
	v.SetDefault("crawler.max_links_per_page", 25)
	v.SetDefault("crawler.use_visited_cache", true)
	v.SetDefault("crawler.visited_ttl", "720h")

	v.SetDefault("leads.dedupe_by_domain", false)
	v.SetDefault("leads.dedupe_forms_by_domain", false)
	v.SetDefault("leads.domain_suppression", true)
	v.SetDefault("leads.require_same_domain_forms", true)
	v.SetDefault("leads.library_only", false)
	v.SetDefault("leads.min_role_confidence", 0)
	v.SetDefault("leads.min_library_confidence", 0)
	v.SetDefault("leads.touched_by", "crawler")

	v.SetDefault("outreach.sender_name", "The Team")
	v.SetDefault("outreach.website", "")
	v.SetDefault("outreach.review_hours", "")

	v.SetDefault("storage.backend", BackendPostgres)
	v.SetDefault("storage.page_backend", "")
	v.SetDefault("storage.postgres.lead_table", "leads")
	v.SetDefault("storage.postgres.page_table", "pages")
	v.SetDefault("storage.redis.address", "")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "leadcrawler:page:")
	v.SetDefault("storage.redis.ttl", "0s")

	v.SetDefault("queue.backend", BackendPubSub)
	v.SetDefault("queue.receive_batch", 10)
	v.SetDefault("queue.receive_wait", "20s")
	v.SetDefault("queue.max_empty_receives", 3)
	v.SetDefault("queue.visibility_timeout", "5m")
	v.SetDefault("queue.pubsub.project_id", "")
	v.SetDefault("queue.pubsub.topic", "")
	v.SetDefault("queue.pubsub.subscription", "")
	v.SetDefault("queue.pubsub.ack_deadline", "5m")

	v.SetDefault("discovery.enabled", false)
	v.SetDefault("discovery.queries_file", "queries.txt")
	v.SetDefault("discovery.state_backend", BackendFile)
	v.SetDefault("discovery.state_path", "data/discovery_state.json")
	v.SetDefault("discovery.state_bucket", "")
	v.SetDefault("discovery.batch_size", 5)
	v.SetDefault("discovery.per_query_cap", 10)
	v.SetDefault("discovery.max_urls", 50)
	v.SetDefault("discovery.quotas", map[string]int{"brave": 60, "serper": 80, "openai": 20})
	v.SetDefault("discovery.openai_model", "gpt-4o-mini")

	v.SetDefault("export.enabled", false)
	v.SetDefault("export.path", "data/leads.jsonl")
	v.SetDefault("export.gcs_bucket", "")
	v.SetDefault("export.gcs_prefix", "exports")
	v.SetDefault("export.object_name", "leads.jsonl")
}

// EffectivePageBackend returns the page store backend, defaulting to the
// lead store backend.
func (c StorageConfig) EffectivePageBackend() string {
	if c.PageBackend == "" {
		return c.Backend
	}
	return c.PageBackend
}

// Validate enforces required values and reasonable limits. It returns the
// first offending key.
func (c Config) Validate() error {
	mode, err := crawler.ParseMode(c.Crawler.Mode)
	if err != nil {
		return fmt.Errorf("crawler.mode: %w", err)
	}
	if c.Metrics.Enabled && c.Metrics.Port <= 0 {
		return fmt.Errorf("metrics.port must be > 0 when metrics are enabled")
	}
	if c.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	if c.Crawler.DelayPerDomain < 0 {
		return fmt.Errorf("crawler.delay_per_domain must be >= 0")
	}
	if c.Crawler.MaxPagesPerDomain < 0 || c.Crawler.MaxPagesPerRun < 0 || c.Crawler.MaxLeadsPerRun < 0 {
		return fmt.Errorf("crawler page and lead budgets must be >= 0")
	}
	if c.Crawler.MaxLinksPerPage < 0 {
		return fmt.Errorf("crawler.max_links_per_page must be >= 0")
	}
	if !inRange(c.Leads.MinRoleConfidence) {
		return fmt.Errorf("leads.min_role_confidence must be within 0..100")
	}
	if !inRange(c.Leads.MinLibraryConfidence) {
		return fmt.Errorf("leads.min_library_confidence must be within 0..100")
	}

	switch c.Storage.Backend {
	case BackendPostgres:
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be %q or %q", BackendPostgres, BackendMemory)
	}
	switch c.Storage.EffectivePageBackend() {
	case BackendPostgres, BackendMemory:
	case BackendRedis:
		if c.Storage.Redis.Address == "" {
			return fmt.Errorf("storage.redis.address is required for the redis page backend")
		}
	default:
		return fmt.Errorf("storage.page_backend must be postgres, redis or memory")
	}
	if (c.Storage.Backend == BackendPostgres || c.Storage.EffectivePageBackend() == BackendPostgres) &&
		c.Storage.Postgres.DSN == "" {
		return fmt.Errorf("storage.postgres.dsn is required for the postgres backend")
	}

	if mode != crawler.ModeLocal {
		switch c.Queue.Backend {
		case BackendMemory:
		case BackendPubSub:
			if c.Queue.PubSub.ProjectID == "" || c.Queue.PubSub.Topic == "" {
				return fmt.Errorf("queue.pubsub.project_id and queue.pubsub.topic are required")
			}
			if mode == crawler.ModeWorker && c.Queue.PubSub.Subscription == "" {
				return fmt.Errorf("queue.pubsub.subscription is required in worker mode")
			}
		default:
			return fmt.Errorf("queue.backend must be %q or %q", BackendPubSub, BackendMemory)
		}
		if c.Queue.ReceiveWait <= 0 {
			return fmt.Errorf("queue.receive_wait must be > 0")
		}
	}

	if c.Discovery.Enabled {
		if c.Discovery.QueriesFile == "" {
			return fmt.Errorf("discovery.queries_file is required when discovery is enabled")
		}
		switch c.Discovery.StateBackend {
		case BackendFile, BackendMemory:
		case BackendGCS:
			if c.Discovery.StateBucket == "" {
				return fmt.Errorf("discovery.state_bucket is required for the gcs state backend")
			}
		default:
			return fmt.Errorf("discovery.state_backend must be file, gcs or memory")
		}
		if c.Discovery.StatePath == "" {
			return fmt.Errorf("discovery.state_path is required when discovery is enabled")
		}
	}

	if c.Export.Enabled && c.Export.Path == "" {
		return fmt.Errorf("export.path is required when export is enabled")
	}
	return nil
}

// DryRun returns a copy that keeps every store, queue and state object in
// memory and skips the export upload.
func (c Config) DryRun() Config {
	c.Storage.Backend = BackendMemory
	c.Storage.PageBackend = BackendMemory
	c.Queue.Backend = BackendMemory
	if c.Discovery.StateBackend == BackendGCS {
		c.Discovery.StateBackend = BackendMemory
	}
	c.Export.GCSBucket = ""
	return c
}

func inRange(v int) bool {
	return v >= 0 && v <= 100
}
