// Package config provides configuration management for the sync worker.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingAPIKey         = errors.New("index.api_key (OPENAI_API_KEY) is required")
	ErrMissingSubdomain      = errors.New("source.subdomain is required")
	ErrMissingLocale         = errors.New("source.locale is required")
	ErrInvalidLimit          = errors.New("source.limit must be between 1 and 100")
	ErrInvalidTimeout        = errors.New("source.timeout_sec must be non-negative")
	ErrInvalidBaseURL        = errors.New("source.base_url must start with http:// or https://")
	ErrMissingDataDir        = errors.New("storage.data_dir is required")
	ErrMissingLogDir         = errors.New("storage.log_dir is required")
	ErrMissingHashFile       = errors.New("storage.hash_file is required")
	ErrInvalidExtension      = errors.New("storage.article_ext must be a non-empty extension without dots or slashes")
	ErrInvalidHashBackend    = errors.New("storage.hash_backend must be 'json' or 'sqlite'")
	ErrInvalidLogLevel       = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat      = errors.New("logging.format must be 'text' or 'json'")
	ErrInvalidCron           = errors.New("schedule.cron is not a valid cron expression")
	ErrInvalidEnvValue       = errors.New("invalid environment value")
	ErrInvalidPushgatewayURL = errors.New("metrics.pushgateway_url must start with http:// or https://")
)

// Hash store backends.
const (
	HashBackendJSON   = "json"
	HashBackendSQLite = "sqlite"
)

// Volume mount variables checked, in order, for a persistent base path.
var volumeEnvVars = []string{"PERSISTENT_VOLUME_PATH", "RAILWAY_VOLUME_MOUNT_PATH"}

// Config represents the complete worker configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Storage  StorageConfig  `yaml:"storage"`
	Index    IndexConfig    `yaml:"index"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// SourceConfig describes the help-center listing endpoint.
type SourceConfig struct {
	Subdomain   string `yaml:"subdomain"`
	Locale      string `yaml:"locale"`
	BaseURL     string `yaml:"base_url"`
	Limit       int    `yaml:"limit"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	StrictSlugs bool   `yaml:"strict_slugs"`
}

// StorageConfig defines where articles, hashes and run logs live.
type StorageConfig struct {
	BasePath         string `yaml:"base_path"`
	DataDir          string `yaml:"data_dir"`
	LogDir           string `yaml:"log_dir"`
	HashFile         string `yaml:"hash_file"`
	HashBackend      string `yaml:"hash_backend"`
	ArticleExt       string `yaml:"article_ext"`
	PruneStaleHashes bool   `yaml:"prune_stale_hashes"`
}

// IndexConfig identifies the vector store that receives changed files.
// The API key is never read from or written to YAML.
type IndexConfig struct {
	APIKey  string `yaml:"-"`
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig enables pushing run metrics to a Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// ScheduleConfig controls the long-running scheduled mode.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// Default returns the configuration used when no file or environment overrides are present.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Subdomain:  "optisigns",
			Locale:     "en-us",
			Limit:      30,
			TimeoutSec: 60,
		},
		Storage: StorageConfig{
			BasePath:    ".",
			DataDir:     "data",
			LogDir:      "logs",
			HashFile:    "hashes.json",
			HashBackend: HashBackendJSON,
			ArticleExt:  "md",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Job: "kbsync",
		},
		Schedule: ScheduleConfig{
			Cron: "0 3 * * *",
		},
	}
}

// LoadEnvFiles loads .env.local and .env into the process environment.
// Variables already set win; missing files are not an error.
func LoadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}

	return nil
}

// Load builds the configuration from defaults, an optional YAML file and the process
// environment, resolves the base path, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Resolve(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Resolve is Load without validation, for tools that only touch local state.
func Resolve(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		fromFile, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}

		cfg = fromFile
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.ResolveBasePath(os.LookupEnv)

	return cfg, nil
}

// LoadConfig loads configuration from a YAML file on top of the defaults, without
// consulting the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// SaveConfig saves configuration to YAML file. The API key is never written.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from environment variables, using the names of the original job.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("OPENAI_API_KEY", &c.Index.APIKey)
	str("OPENAI_BASE_URL", &c.Index.BaseURL)
	str("VECTOR_STORE_ID", &c.Index.ID)
	str("VECTOR_STORE_NAME", &c.Index.Name)
	str("SCRAPING_SOURCE_SUBDOMAIN", &c.Source.Subdomain)
	str("SCRAPING_LOCALE", &c.Source.Locale)
	str("SCRAPING_BASE_URL", &c.Source.BaseURL)
	str("DATA_DIR", &c.Storage.DataDir)
	str("LOG_DIR", &c.Storage.LogDir)
	str("HASHES_FILE", &c.Storage.HashFile)
	str("HASH_BACKEND", &c.Storage.HashBackend)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	str("PUSHGATEWAY_URL", &c.Metrics.PushgatewayURL)
	str("SCHEDULE_CRON", &c.Schedule.Cron)

	ints := map[string]*int{
		"SCRAPING_LIMIT":   &c.Source.Limit,
		"HTTP_TIMEOUT_SEC": &c.Source.TimeoutSec,
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidEnvValue, key, v)
		}

		*dst = n
	}

	if v, ok := lookup("PRUNE_STALE_HASHES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: PRUNE_STALE_HASHES=%q", ErrInvalidEnvValue, v)
		}

		c.Storage.PruneStaleHashes = b
	}

	return nil
}

// ResolveBasePath switches the base path to a mounted persistent volume when one is
// configured and exists on disk. Otherwise the configured base path is kept.
func (c *Config) ResolveBasePath(lookup func(string) (string, bool)) {
	for _, key := range volumeEnvVars {
		mount, ok := lookup(key)
		if !ok || mount == "" {
			continue
		}

		if info, err := os.Stat(mount); err == nil && info.IsDir() {
			c.Storage.BasePath = mount
			return
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Index.APIKey == "" {
		return ErrMissingAPIKey
	}

	if c.Source.Subdomain == "" && c.Source.BaseURL == "" {
		return ErrMissingSubdomain
	}

	if c.Source.Locale == "" {
		return ErrMissingLocale
	}

	if c.Source.Limit < 1 || c.Source.Limit > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, c.Source.Limit)
	}

	if c.Source.TimeoutSec < 0 {
		return ErrInvalidTimeout
	}

	if c.Source.BaseURL != "" && !isHTTPURL(c.Source.BaseURL) {
		return ErrInvalidBaseURL
	}

	if c.Storage.DataDir == "" {
		return ErrMissingDataDir
	}

	if c.Storage.LogDir == "" {
		return ErrMissingLogDir
	}

	if c.Storage.HashFile == "" {
		return ErrMissingHashFile
	}

	if ext := c.Storage.ArticleExt; ext == "" || strings.ContainsAny(ext, `./\`) {
		return ErrInvalidExtension
	}

	if c.Storage.HashBackend != HashBackendJSON && c.Storage.HashBackend != HashBackendSQLite {
		return ErrInvalidHashBackend
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	if c.Metrics.PushgatewayURL != "" && !isHTTPURL(c.Metrics.PushgatewayURL) {
		return ErrInvalidPushgatewayURL
	}

	if c.Schedule.Cron != "" {
		if _, err := ParseCron(c.Schedule.Cron); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
	}

	return nil
}

// ParseCron parses a standard five-field cron expression or a descriptor such as "@daily".
func ParseCron(spec string) (cron.Schedule, error) {
	return CronParser().Parse(spec)
}

// CronParser returns the parser shared by validation and the scheduler.
func CronParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(c.Storage.BasePath, p)
}

// DataDir returns the directory holding normalized article files.
func (c *Config) DataDir() string {
	return c.resolve(c.Storage.DataDir)
}

// LogDir returns the base directory for run logs.
func (c *Config) LogDir() string {
	return c.resolve(c.Storage.LogDir)
}

// ScrapeLogDir returns the directory for scrape-stage run logs.
func (c *Config) ScrapeLogDir() string {
	return filepath.Join(c.LogDir(), "scraping")
}

// UploadLogDir returns the directory for upload-stage run logs.
func (c *Config) UploadLogDir() string {
	return filepath.Join(c.LogDir(), "upload")
}

// HashFilePath returns the location of the persisted hash store.
func (c *Config) HashFilePath() string {
	return c.resolve(c.Storage.HashFile)
}

// ArticlesURL follows the help-center listing path:
// {base}/api/v2/help_center/{locale}/articles.json?per_page={limit}.
func (c *Config) ArticlesURL() string {
	base := c.Source.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://support.%s.com", c.Source.Subdomain)
	}

	return fmt.Sprintf("%s/api/v2/help_center/%s/articles.json?per_page=%d",
		strings.TrimRight(base, "/"),
		c.Source.Locale,
		c.Source.Limit,
	)
}

// Timeout returns the HTTP timeout for the help-center fetch. Zero means none.
func (s *SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// String returns a string representation of the config. The API key is never included.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Source: %s, Limit: %d, Base: %s, HashBackend: %s, Index: %q}",
		c.Source.Subdomain,
		c.Source.Limit,
		c.Storage.BasePath,
		c.Storage.HashBackend,
		c.Index.ID,
	)
}
