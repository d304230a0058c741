// Package platformconfig loads the claims engine's configuration the way
// the teacher framework does: explicit per-field os.Getenv reads (never
// reflection-based struct tag binding), layered under a functional-options
// constructor, validated before use.
package platformconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every environment-driven knob named in the specification's
// external interfaces section, plus the ambient additions a running service
// needs (Redis/Postgres DSNs, worker pool sizes, logging).
type Config struct {
	AutoThreshold         float64 `json:"auto_threshold" yaml:"auto_threshold"`
	PromptThreshold       float64 `json:"prompt_threshold" yaml:"prompt_threshold"`
	BatchSize             int     `json:"batch_size" yaml:"batch_size"`
	MonthsToSync          int     `json:"months_to_sync" yaml:"months_to_sync"`
	BatchWindowMonths     int     `json:"batch_window_months" yaml:"batch_window_months"`
	MaxJobAttempts        int     `json:"max_job_attempts" yaml:"max_job_attempts"`
	SyncWorkerCount       int     `json:"sync_worker_count" yaml:"sync_worker_count"`
	ReportDownloadWorkers int     `json:"report_download_workers" yaml:"report_download_workers"`

	RedisAddr   string `json:"redis_addr" yaml:"redis_addr"`
	DatabaseURL string `json:"database_url" yaml:"database_url"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
	Debug     bool   `json:"debug" yaml:"debug"`
}

// Option mutates a Config during construction, applied after environment
// defaults so options always win.
type Option func(*Config) error

// Default returns the documented defaults for every field (§6: AUTO_THRESHOLD
// 0.85, PROMPT_THRESHOLD 0.50, BATCH_SIZE 1000, MONTHS_TO_SYNC 18,
// BATCH_WINDOW_MONTHS 3, MAX_JOB_ATTEMPTS 3).
func Default() *Config {
	return &Config{
		AutoThreshold:         0.85,
		PromptThreshold:       0.50,
		BatchSize:             1000,
		MonthsToSync:          18,
		BatchWindowMonths:     3,
		MaxJobAttempts:        3,
		SyncWorkerCount:       1,
		ReportDownloadWorkers: 2,
		RedisAddr:             "localhost:6379",
		LogLevel:              "INFO",
		LogFormat:             "text",
	}
}

// LoadFromEnv overlays environment variables onto c, matching only the
// surface named in SPEC_FULL.md §10.2/§6.
func (c *Config) LoadFromEnv() error {
	if v, ok := os.LookupEnv("AUTO_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AUTO_THRESHOLD: %w", err)
		}
		c.AutoThreshold = f
	}
	if v, ok := os.LookupEnv("PROMPT_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("PROMPT_THRESHOLD: %w", err)
		}
		c.PromptThreshold = f
	}
	if v, ok := os.LookupEnv("BATCH_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BATCH_SIZE: %w", err)
		}
		c.BatchSize = n
	}
	if v, ok := os.LookupEnv("MONTHS_TO_SYNC"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MONTHS_TO_SYNC: %w", err)
		}
		c.MonthsToSync = n
	}
	if v, ok := os.LookupEnv("BATCH_WINDOW_MONTHS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BATCH_WINDOW_MONTHS: %w", err)
		}
		c.BatchWindowMonths = n
	}
	if v, ok := os.LookupEnv("MAX_JOB_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_JOB_ATTEMPTS: %w", err)
		}
		c.MaxJobAttempts = n
	}
	if v, ok := os.LookupEnv("SYNC_WORKER_COUNT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SYNC_WORKER_COUNT: %w", err)
		}
		c.SyncWorkerCount = n
	}
	if v, ok := os.LookupEnv("REPORT_DOWNLOAD_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REPORT_DOWNLOAD_WORKERS: %w", err)
		}
		c.ReportDownloadWorkers = n
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("CLAIMS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CLAIMS_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	c.Debug = os.Getenv("CLAIMS_DEBUG") == "true"
	return nil
}

// LoadFromFile overlays a JSON or YAML file's fields onto c, the way the
// teacher's Config.LoadFromFile does — file settings override environment
// but are in turn overridden by functional options. Unlike the teacher's
// stub, YAML is fully supported here via the pack's gopkg.in/yaml.v3.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %q", ext)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- path validated above
	if err != nil {
		return fmt.Errorf("read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse JSON config file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse YAML config file: %w", err)
		}
	}
	return nil
}

// New builds a Config from defaults, then environment, then an optional
// CLAIMS_CONFIG_FILE, then opts, then validates. Mirrors the teacher's
// NewConfig(opts ...Option) layering with the file stage added in.
func New(opts ...Option) (*Config, error) {
	c := Default()
	if err := c.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}
	if path := os.Getenv("CLAIMS_CONFIG_FILE"); path != "" {
		if err := c.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Validate fails fast on nonsensical values rather than letting them
// surface later as confusing matcher/router behavior.
func (c *Config) Validate() error {
	if c.AutoThreshold <= 0 || c.AutoThreshold > 1 {
		return fmt.Errorf("invalid AUTO_THRESHOLD: %v", c.AutoThreshold)
	}
	if c.PromptThreshold <= 0 || c.PromptThreshold >= c.AutoThreshold {
		return fmt.Errorf("invalid PROMPT_THRESHOLD: %v (must be > 0 and < AUTO_THRESHOLD)", c.PromptThreshold)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("invalid BATCH_SIZE: %d", c.BatchSize)
	}
	if c.MonthsToSync <= 0 {
		return fmt.Errorf("invalid MONTHS_TO_SYNC: %d", c.MonthsToSync)
	}
	if c.BatchWindowMonths <= 0 || c.BatchWindowMonths > c.MonthsToSync {
		return fmt.Errorf("invalid BATCH_WINDOW_MONTHS: %d", c.BatchWindowMonths)
	}
	if c.MaxJobAttempts <= 0 {
		return fmt.Errorf("invalid MAX_JOB_ATTEMPTS: %d", c.MaxJobAttempts)
	}
	if c.SyncWorkerCount <= 0 {
		return fmt.Errorf("invalid SYNC_WORKER_COUNT: %d", c.SyncWorkerCount)
	}
	if c.ReportDownloadWorkers <= 0 {
		return fmt.Errorf("invalid REPORT_DOWNLOAD_WORKERS: %d", c.ReportDownloadWorkers)
	}
	return nil
}

// WithAutoThreshold overrides the auto-submit confidence threshold.
func WithAutoThreshold(v float64) Option {
	return func(c *Config) error {
		c.AutoThreshold = v
		return nil
	}
}

// WithPromptThreshold overrides the smart-prompt confidence threshold.
func WithPromptThreshold(v float64) Option {
	return func(c *Config) error {
		c.PromptThreshold = v
		return nil
	}
}

// WithBatchSize overrides the ledger/matcher batch size.
func WithBatchSize(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("invalid batch size: %d", n)
		}
		c.BatchSize = n
		return nil
	}
}

// WithReportDownloadWorkers overrides the parallel reportDownload worker count.
func WithReportDownloadWorkers(n int) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("invalid report download workers: %d", n)
		}
		c.ReportDownloadWorkers = n
		return nil
	}
}

// SyncHorizonMonths returns the total sync horizon as a month count.
func (c *Config) SyncHorizonMonths() int { return c.MonthsToSync }

// WindowMonths returns the tiling width in months.
func (c *Config) WindowMonths() int { return c.BatchWindowMonths }
