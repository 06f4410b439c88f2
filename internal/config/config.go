package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"NewsHarvester/internal/domain"
)

const (
	defaultTimezone = "UTC"

	// PathEnv names the optional YAML config file.
	PathEnv = "NEWS_HARVESTER_CONFIG"

	SpreadsheetIDEnv     = "SPREADSHEET_ID"
	GoogleCredentialsEnv = "GOOGLE_APPLICATION_CREDENTIALS"
	PerplexityAPIKeyEnv  = "PERPLEXITY_API_KEY"
	DatabaseDSNEnv       = "DATABASE_DSN"
	RedisAddrEnv         = "REDIS_ADDR"
	RedisPasswordEnv     = "REDIS_PASSWORD"
	TelegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	TelegramChatIDEnv    = "TELEGRAM_CHAT_ID"
	LogLevelEnv          = "LOG_LEVEL"
	ServerAddrEnv        = "SERVER_ADDR"
)

// Store drivers.
const (
	DriverSheets   = "sheets"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Judge providers.
const (
	ProviderPerplexity = "perplexity"
	ProviderML         = "ml"
)

// Config holds every setting of a run. It is built once at startup.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Source    SourceConfig    `yaml:"source"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Review    ReviewConfig    `yaml:"review"`
	Judge     JudgeConfig     `yaml:"judge"`
	Store     StoreConfig     `yaml:"store"`
	CrossPost CrossPostConfig `yaml:"crossPost"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Run       RunConfig       `yaml:"run"`
	Server    ServerConfig    `yaml:"server"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig describes the listing site and its markup.
type SourceConfig struct {
	ListingURL         string        `yaml:"listingUrl"`
	PageParam          string        `yaml:"pageParam"`
	OmitFirstPageParam bool          `yaml:"omitFirstPageParam"`
	UserAgent          string        `yaml:"userAgent"`
	Timeout            time.Duration `yaml:"timeout"`
	ItemSelector       string        `yaml:"itemSelector"`
	LinkSelector       string        `yaml:"linkSelector"`
	TitleSelector      string        `yaml:"titleSelector"`
	DateSelector       string        `yaml:"dateSelector"`
	DateAttr           string        `yaml:"dateAttr"`
	DateLayout         string        `yaml:"dateLayout"`
	ContentSelector    string        `yaml:"contentSelector"`

	// ReadabilityFallback extracts the main text when ContentSelector matches nothing.
	ReadabilityFallback bool `yaml:"readabilityFallback"`
}

// CrawlConfig bounds pagination.
type CrawlConfig struct {
	MaxPages int `yaml:"maxPages"`
}

// DedupConfig picks the identity key composition.
type DedupConfig struct {
	IdentityKey string `yaml:"identityKey"`
}

// IngestConfig tunes batching and body fetch parallelism.
type IngestConfig struct {
	BatchSize int `yaml:"batchSize"`
	Workers   int `yaml:"workers"`
}

// ReviewConfig tunes the review pass.
type ReviewConfig struct {
	CrossPostThreshold int           `yaml:"crossPostThreshold"`
	MinScore           int           `yaml:"minScore"`
	CrossPostLabel     string        `yaml:"crossPostLabel"`
	JudgeDelay         time.Duration `yaml:"judgeDelay"`
	MaxDuration        time.Duration `yaml:"maxDuration"`
	BodyLimit          int           `yaml:"bodyLimit"`
}

// JudgeConfig defines how to contact the relevance judge.
type JudgeConfig struct {
	Provider string        `yaml:"provider"`
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StoreConfig selects and configures the tabular store.
type StoreConfig struct {
	Driver         string         `yaml:"driver"`
	ArticlesSheet  string         `yaml:"articlesSheet"`
	ProcessedSheet string         `yaml:"processedSheet"`
	Sheets         SheetsConfig   `yaml:"sheets"`
	Database       DatabaseConfig `yaml:"database"`
}

// SheetsConfig carries the Google Sheets target. Credentials is either the
// service account JSON itself or a path to it.
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheetId"`
	Credentials   string `yaml:"credentials"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// CrossPostConfig configures optional secondary channels.
type CrossPostConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Redis    RedisConfig    `yaml:"redis"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// RedisConfig points at the cross-post queue.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// SchedulerConfig defines when runs fire.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	RunOnStart     bool           `yaml:"runOnStart"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// RunConfig sets the trigger mode parameters.
type RunConfig struct {
	InitialCutoff       string        `yaml:"initialCutoff"`
	IncrementalLookback time.Duration `yaml:"incrementalLookback"`
	ReviewAfterIngest   bool          `yaml:"reviewAfterIngest"`
}

// ServerConfig is the HTTP trigger listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) over defaults and applies
// environment overrides. It does not validate; call Validate.
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(PathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := Parse(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	return cfg, nil
}

// Parse decodes YAML over the values already present in cfg.
func Parse(raw []byte, cfg *Config) error {
	return yaml.Unmarshal(raw, cfg)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(SpreadsheetIDEnv); v != "" {
		c.Store.Sheets.SpreadsheetID = v
	}
	if v := os.Getenv(GoogleCredentialsEnv); v != "" {
		c.Store.Sheets.Credentials = v
	}
	if v := os.Getenv(PerplexityAPIKeyEnv); v != "" {
		c.Judge.APIKey = v
	}
	if v := os.Getenv(DatabaseDSNEnv); v != "" {
		c.Store.Database.DSN = v
	}
	if v := os.Getenv(RedisAddrEnv); v != "" {
		c.CrossPost.Redis.Addr = v
	}
	if v := os.Getenv(RedisPasswordEnv); v != "" {
		c.CrossPost.Redis.Password = v
	}
	if v := os.Getenv(TelegramTokenEnv); v != "" {
		c.CrossPost.Telegram.BotToken = v
	}
	if v := os.Getenv(TelegramChatIDEnv); v != "" {
		c.CrossPost.Telegram.ChatID = v
	}
	if v := os.Getenv(LogLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(ServerAddrEnv); v != "" {
		c.Server.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// KeyFields resolves the configured identity key.
func (c Config) KeyFields() (domain.KeyFields, error) {
	return domain.ParseKeyFields(c.Dedup.IdentityKey)
}

// InitialCutoff parses run.initialCutoff as a date or RFC3339 timestamp.
func (c Config) InitialCutoff() (time.Time, error) {
	raw := strings.TrimSpace(c.Run.InitialCutoff)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("run.initialCutoff %q: %w", raw, err)
	}
	return t.UTC(), nil
}

// Validate checks required settings for the selected drivers. The returned
// error is a *domain.ConfigError naming which keys are set.
func (c Config) Validate() error {
	if cerr := c.check(); len(cerr.Problems) > 0 {
		return cerr
	}
	return nil
}

// KeyStates reports "set" or "unset" for every credential the selected
// drivers need. Values are never included.
func (c Config) KeyStates() map[string]string {
	return c.check().KeyStates()
}

func (c Config) check() *domain.ConfigError {
	cerr := &domain.ConfigError{Keys: map[string]bool{}}
	require := func(key, value string) {
		set := strings.TrimSpace(value) != ""
		cerr.Keys[key] = set
		if !set {
			cerr.Problems = append(cerr.Problems, key+" is required")
		}
	}
	invalid := func(field, msg string) {
		cerr.Problems = append(cerr.Problems, field+": "+msg)
	}

	switch c.Store.Driver {
	case DriverSheets:
		require(SpreadsheetIDEnv, c.Store.Sheets.SpreadsheetID)
		require(GoogleCredentialsEnv, c.Store.Sheets.Credentials)
	case DriverPostgres:
		require(DatabaseDSNEnv, c.Store.Database.DSN)
	case DriverMemory:
	default:
		invalid("store.driver", fmt.Sprintf("unknown driver %q", c.Store.Driver))
	}

	switch c.Judge.Provider {
	case ProviderPerplexity:
		require(PerplexityAPIKeyEnv, c.Judge.APIKey)
	case ProviderML:
		require("judge.endpoint", c.Judge.Endpoint)
	default:
		invalid("judge.provider", fmt.Sprintf("unknown provider %q", c.Judge.Provider))
	}

	if c.CrossPost.Telegram.BotToken != "" || c.CrossPost.Telegram.ChatID != "" {
		require(TelegramTokenEnv, c.CrossPost.Telegram.BotToken)
		require(TelegramChatIDEnv, c.CrossPost.Telegram.ChatID)
	}

	if u, err := url.Parse(c.Source.ListingURL); err != nil || u.Scheme == "" || u.Host == "" {
		invalid("source.listingUrl", "must be an absolute URL")
	}
	if strings.TrimSpace(c.Source.ItemSelector) == "" {
		invalid("source.itemSelector", "is required")
	}
	if _, err := c.KeyFields(); err != nil {
		invalid("dedup.identityKey", err.Error())
	}
	if c.Ingest.BatchSize <= 0 {
		invalid("ingest.batchSize", "must be positive, got "+strconv.Itoa(c.Ingest.BatchSize))
	}
	if c.Ingest.Workers <= 0 {
		invalid("ingest.workers", "must be positive, got "+strconv.Itoa(c.Ingest.Workers))
	}
	if c.Review.CrossPostThreshold < 1 || c.Review.CrossPostThreshold > 10 {
		invalid("review.crossPostThreshold", "must be within 1..10, got "+strconv.Itoa(c.Review.CrossPostThreshold))
	}
	if c.Review.MinScore < 0 || c.Review.MinScore > 10 {
		invalid("review.minScore", "must be within 0..10, got "+strconv.Itoa(c.Review.MinScore))
	}
	if _, err := c.InitialCutoff(); err != nil {
		invalid("run.initialCutoff", err.Error())
	}
	if c.Store.ArticlesSheet == "" || c.Store.ProcessedSheet == "" || c.Store.ArticlesSheet == c.Store.ProcessedSheet {
		invalid("store.articlesSheet/processedSheet", "must be two distinct names")
	}

	return cerr
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Source: SourceConfig{
			ListingURL:         "https://babel.ua/news",
			PageParam:          "page",
			OmitFirstPageParam: true,
			UserAgent:          "NewsHarvester/1.0",
			Timeout:            20 * time.Second,
			ItemSelector:       "article",
			LinkSelector:       "a[href]",
			TitleSelector:      "h2, h3",
			DateSelector:       "time",
			DateAttr:           "datetime",
			DateLayout:         time.RFC3339,
			ContentSelector:    ".c-post-text",

			ReadabilityFallback: true,
		},
		Crawl:  CrawlConfig{MaxPages: 0},
		Dedup:  DedupConfig{IdentityKey: domain.KeyModeTitleURL},
		Ingest: IngestConfig{BatchSize: 10, Workers: 5},
		Review: ReviewConfig{
			CrossPostThreshold: 8,
			MinScore:           0,
			CrossPostLabel:     "Facebook",
			JudgeDelay:         time.Second,
			MaxDuration:        0,
			BodyLimit:          500,
		},
		Judge: JudgeConfig{
			Provider: ProviderPerplexity,
			Endpoint: "https://api.perplexity.ai/chat/completions",
			Model:    "sonar",
			Timeout:  20 * time.Second,
		},
		Store: StoreConfig{
			Driver:         DriverSheets,
			ArticlesSheet:  "Articles",
			ProcessedSheet: "Processed",
		},
		CrossPost: CrossPostConfig{
			Redis: RedisConfig{Key: "crosspost:articles"},
		},
		Scheduler: SchedulerConfig{CronExpression: "0 */2 * * *", Timezone: defaultTimezone, location: tz},
		Run: RunConfig{
			InitialCutoff:       "2024-01-01",
			IncrementalLookback: 72 * time.Hour,
			ReviewAfterIngest:   true,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Default returns the built-in configuration without file or env input.
func Default() Config {
	return defaultConfig()
}
