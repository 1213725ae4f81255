package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper to create a temp config file.
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// envMap returns a lookup function backed by a map, in place of os.LookupEnv.
func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// validConfigYAML is a minimal valid configuration (the API key comes from the environment).
const validConfigYAML = `
source:
  subdomain: "acme"
  locale: "en-us"
  limit: 10
  timeout_sec: 15
storage:
  base_path: "/srv/kb"
  data_dir: "articles"
  log_dir: "runlogs"
  hash_file: "state/hashes.json"
  hash_backend: "sqlite"
  article_ext: "md"
index:
  id: "vs_123"
  name: "help-center"
logging:
  level: "debug"
  format: "json"
schedule:
  cron: "30 2 * * *"
`

func validConfig() *Config {
	cfg := Default()
	cfg.Index.APIKey = "sk-test"

	return cfg
}

func TestDefault_IsValidWithAPIKey(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Default config with API key failed validation: %v", err)
	}
}

func TestLoadConfig_Valid(t *testing.T) {
	configPath := createTempConfigFile(t, validConfigYAML)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Source.Subdomain != "acme" {
		t.Errorf("Expected subdomain 'acme', got '%s'", cfg.Source.Subdomain)
	}

	if cfg.Source.Limit != 10 {
		t.Errorf("Expected limit 10, got %d", cfg.Source.Limit)
	}

	if cfg.Storage.HashBackend != HashBackendSQLite {
		t.Errorf("Expected sqlite backend, got %s", cfg.Storage.HashBackend)
	}

	if cfg.Index.ID != "vs_123" {
		t.Errorf("Expected index id vs_123, got %s", cfg.Index.ID)
	}

	// Unset fields keep their defaults.
	if cfg.Metrics.Job != "kbsync" {
		t.Errorf("Expected default metrics job, got %s", cfg.Metrics.Job)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file, got nil")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := createTempConfigFile(t, "invalid: yaml: content: [}")

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML, got nil")
	}
}

func TestLoadConfig_APIKeyNotReadFromYAML(t *testing.T) {
	configPath := createTempConfigFile(t, "index:\n  api_key: leaked\n  APIKey: leaked\n")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Index.APIKey != "" {
		t.Errorf("API key should never come from YAML, got %q", cfg.Index.APIKey)
	}
}

func TestApplyEnv_Overrides(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(envMap(map[string]string{
		"OPENAI_API_KEY":            "sk-env",
		"SCRAPING_SOURCE_SUBDOMAIN": "contoso",
		"SCRAPING_LIMIT":            "50",
		"VECTOR_STORE_ID":           "vs_env",
		"VECTOR_STORE_NAME":         "kb",
		"DATA_DIR":                  "d",
		"LOG_DIR":                   "l",
		"HASH_BACKEND":              "sqlite",
		"PRUNE_STALE_HASHES":        "true",
		"LOG_LEVEL":                 "warn",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Index.APIKey != "sk-env" || cfg.Index.ID != "vs_env" || cfg.Index.Name != "kb" {
		t.Errorf("Index overrides not applied: %+v", cfg.Index)
	}

	if cfg.Source.Subdomain != "contoso" || cfg.Source.Limit != 50 {
		t.Errorf("Source overrides not applied: %+v", cfg.Source)
	}

	if cfg.Storage.DataDir != "d" || cfg.Storage.LogDir != "l" || cfg.Storage.HashBackend != "sqlite" {
		t.Errorf("Storage overrides not applied: %+v", cfg.Storage)
	}

	if !cfg.Storage.PruneStaleHashes {
		t.Error("PRUNE_STALE_HASHES not applied")
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("LOG_LEVEL not applied: %s", cfg.Logging.Level)
	}
}

func TestApplyEnv_EmptyValuesIgnored(t *testing.T) {
	cfg := Default()

	if err := cfg.ApplyEnv(envMap(map[string]string{"SCRAPING_SOURCE_SUBDOMAIN": "", "SCRAPING_LIMIT": ""})); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Source.Subdomain != "optisigns" || cfg.Source.Limit != 30 {
		t.Errorf("Empty env values should keep defaults, got %+v", cfg.Source)
	}
}

func TestApplyEnv_InvalidInteger(t *testing.T) {
	cfg := Default()

	err := cfg.ApplyEnv(envMap(map[string]string{"SCRAPING_LIMIT": "thirty"}))
	if !errors.Is(err, ErrInvalidEnvValue) {
		t.Fatalf("Expected ErrInvalidEnvValue, got %v", err)
	}
}

func TestResolveBasePath(t *testing.T) {
	volume := t.TempDir()

	cfg := Default()
	cfg.ResolveBasePath(envMap(map[string]string{"RAILWAY_VOLUME_MOUNT_PATH": volume}))

	if cfg.Storage.BasePath != volume {
		t.Errorf("Expected base path %s, got %s", volume, cfg.Storage.BasePath)
	}

	if got := cfg.DataDir(); got != filepath.Join(volume, "data") {
		t.Errorf("DataDir = %s", got)
	}

	if got := cfg.HashFilePath(); got != filepath.Join(volume, "hashes.json") {
		t.Errorf("HashFilePath = %s", got)
	}
}

func TestResolveBasePath_MissingVolumeFallsBack(t *testing.T) {
	cfg := Default()
	cfg.ResolveBasePath(envMap(map[string]string{"RAILWAY_VOLUME_MOUNT_PATH": "/definitely/not/mounted"}))

	if cfg.Storage.BasePath != "." {
		t.Errorf("Expected fallback base path '.', got %s", cfg.Storage.BasePath)
	}
}

func TestLogDirs(t *testing.T) {
	cfg := Default()
	cfg.Storage.BasePath = "/base"

	if got := cfg.ScrapeLogDir(); got != filepath.Join("/base", "logs", "scraping") {
		t.Errorf("ScrapeLogDir = %s", got)
	}

	if got := cfg.UploadLogDir(); got != filepath.Join("/base", "logs", "upload") {
		t.Errorf("UploadLogDir = %s", got)
	}

	cfg.Storage.LogDir = "/abs/logs"
	if got := cfg.LogDir(); got != "/abs/logs" {
		t.Errorf("absolute LogDir should not be joined, got %s", got)
	}
}

func TestArticlesURL(t *testing.T) {
	cfg := Default()

	want := "https://support.optisigns.com/api/v2/help_center/en-us/articles.json?per_page=30"
	if got := cfg.ArticlesURL(); got != want {
		t.Errorf("ArticlesURL = %s, want %s", got, want)
	}

	cfg.Source.BaseURL = "http://127.0.0.1:8080/"
	cfg.Source.Limit = 5

	want = "http://127.0.0.1:8080/api/v2/help_center/en-us/articles.json?per_page=5"
	if got := cfg.ArticlesURL(); got != want {
		t.Errorf("ArticlesURL with base = %s, want %s", got, want)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"missing api key", func(c *Config) { c.Index.APIKey = "" }, ErrMissingAPIKey},
		{"missing subdomain", func(c *Config) { c.Source.Subdomain = "" }, ErrMissingSubdomain},
		{"missing locale", func(c *Config) { c.Source.Locale = "" }, ErrMissingLocale},
		{"zero limit", func(c *Config) { c.Source.Limit = 0 }, ErrInvalidLimit},
		{"limit too high", func(c *Config) { c.Source.Limit = 101 }, ErrInvalidLimit},
		{"negative timeout", func(c *Config) { c.Source.TimeoutSec = -1 }, ErrInvalidTimeout},
		{"bad base url", func(c *Config) { c.Source.BaseURL = "ftp://x" }, ErrInvalidBaseURL},
		{"missing data dir", func(c *Config) { c.Storage.DataDir = "" }, ErrMissingDataDir},
		{"missing log dir", func(c *Config) { c.Storage.LogDir = "" }, ErrMissingLogDir},
		{"missing hash file", func(c *Config) { c.Storage.HashFile = "" }, ErrMissingHashFile},
		{"dotted ext", func(c *Config) { c.Storage.ArticleExt = ".md" }, ErrInvalidExtension},
		{"bad backend", func(c *Config) { c.Storage.HashBackend = "redis" }, ErrInvalidHashBackend},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
		{"bad pushgateway", func(c *Config) { c.Metrics.PushgatewayURL = "localhost:9091" }, ErrInvalidPushgatewayURL},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, ErrInvalidCron},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_BaseURLWithoutSubdomain(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Subdomain = ""
	cfg.Source.BaseURL = "https://help.example.org"

	if err := cfg.Validate(); err != nil {
		t.Errorf("BaseURL should stand in for subdomain, got %v", err)
	}
}

func TestParseCron(t *testing.T) {
	sched, err := ParseCron("0 3 * * *")
	if err != nil {
		t.Fatalf("ParseCron failed: %v", err)
	}

	from := time.Date(2025, 1, 1, 4, 0, 0, 0, time.UTC)
	next := sched.Next(from)
	want := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)

	if !next.Equal(want) {
		t.Errorf("Next = %v, want %v", next, want)
	}

	if _, err := ParseCron("@daily"); err != nil {
		t.Errorf("descriptor should parse: %v", err)
	}
}

func TestSourceConfig_Timeout(t *testing.T) {
	s := SourceConfig{TimeoutSec: 15}
	if s.Timeout() != 15*time.Second {
		t.Errorf("Timeout = %v, want 15s", s.Timeout())
	}
}

func TestConfig_String_OmitsAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Index.APIKey = "sk-very-secret"

	if strings.Contains(cfg.String(), "sk-very-secret") {
		t.Error("String() leaked the API key")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.Source.Subdomain = "roundtrip"

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.SaveConfig(path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.Source.Subdomain != "roundtrip" {
		t.Errorf("Expected subdomain 'roundtrip', got %s", loaded.Source.Subdomain)
	}

	if loaded.Index.APIKey != "" {
		t.Error("SaveConfig wrote the API key")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	configPath := createTempConfigFile(t, validConfigYAML)

	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("SCRAPING_LIMIT", "12")
	t.Setenv("PERSISTENT_VOLUME_PATH", "")
	t.Setenv("RAILWAY_VOLUME_MOUNT_PATH", "")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Index.APIKey != "sk-from-env" {
		t.Errorf("API key not taken from env")
	}

	if cfg.Source.Limit != 12 {
		t.Errorf("env should override file limit, got %d", cfg.Source.Limit)
	}

	if cfg.Source.Subdomain != "acme" {
		t.Errorf("file value lost, got %s", cfg.Source.Subdomain)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load("")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve should not validate: %v", err)
	}

	if cfg.Source.Subdomain == "" {
		t.Error("Resolve returned empty config")
	}
}

func TestResolve_DumpRoundTrip(t *testing.T) {
	configPath := createTempConfigFile(t, validConfigYAML)

	t.Setenv("OPENAI_API_KEY", "sk-secret")
	t.Setenv("SCRAPING_LIMIT", "42")

	cfg, err := Resolve(configPath)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	out := filepath.Join(t.TempDir(), "dump.yaml")
	if err := cfg.SaveConfig(out); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading dump: %v", err)
	}

	if strings.Contains(string(data), "sk-secret") {
		t.Error("dump contains the API key")
	}

	t.Setenv("SCRAPING_LIMIT", "")

	again, err := Resolve(out)
	if err != nil {
		t.Fatalf("Resolve(dump) failed: %v", err)
	}

	if again.Source.Limit != 42 {
		t.Errorf("Limit = %d, want the env override 42 carried by the dump", again.Source.Limit)
	}

	if again.Source.Subdomain != cfg.Source.Subdomain {
		t.Errorf("Subdomain = %q, want %q", again.Source.Subdomain, cfg.Source.Subdomain)
	}
}
