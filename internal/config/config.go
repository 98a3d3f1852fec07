package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "config.json"

// Config represents runtime configuration for the app host and the summary API.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config" yaml:"basic_config"`
	Summary     SummaryConfig             `json:"summary" yaml:"summary"`
	RemoteAPI   RemoteAPIConfig           `json:"remote_api" yaml:"remote_api"`
	SummaryAPI  SummaryAPIConfig          `json:"summary_api" yaml:"summary_api"`
	Databases   map[string]DatabaseConfig `json:"databases" yaml:"databases"`
	Redis       RedisConfig               `json:"redis" yaml:"redis"`
	Providers   map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Log         LogConfig                 `json:"log" yaml:"log"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	Model   string `json:"model" yaml:"model"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

type BasicConfig struct {
	ServerAddress   string `json:"server_address" yaml:"server_address"`
	PublicURL       string `json:"public_url" yaml:"public_url"`
	GenerateDelayMS *int   `json:"generate_delay_ms" yaml:"generate_delay_ms"`
	MaxUploadBytes  int64  `json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// SummaryConfig selects the summarizer used by the app session.
type SummaryConfig struct {
	Backend string `json:"backend" yaml:"backend"` // rules | remote
}

type RemoteAPIConfig struct {
	BaseURL        string `json:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// SummaryAPIConfig configures cmd/summaryapi.
type SummaryAPIConfig struct {
	ServerAddress            string `json:"server_address" yaml:"server_address"`
	DBType                   string `json:"db_type" yaml:"db_type"`
	FileBaseDir              string `json:"file_base_dir" yaml:"file_base_dir"`
	FileTTLMinutes           int    `json:"file_ttl_minutes" yaml:"file_ttl_minutes"`
	CleanIntervalMinutes     int    `json:"clean_interval_minutes" yaml:"clean_interval_minutes"`
	Workers                  int    `json:"workers" yaml:"workers"`
	QueueSize                int    `json:"queue_size" yaml:"queue_size"`
	MaxConcurrentGenerations int    `json:"max_concurrent_generations" yaml:"max_concurrent_generations"`
	Provider                 string `json:"provider" yaml:"provider"`
	Model                    string `json:"model" yaml:"model"`
	SharedSecret             string `json:"shared_secret" yaml:"shared_secret"`
	RateLimitEveryMS         int    `json:"rate_limit_every_ms" yaml:"rate_limit_every_ms"`
	RateLimitBurst           int    `json:"rate_limit_burst" yaml:"rate_limit_burst"`
	CacheTTLMinutes          int    `json:"cache_ttl_minutes" yaml:"cache_ttl_minutes"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	Params   string `json:"params" yaml:"params"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type LogConfig struct {
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error; an explicitly named one is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = defaultConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg := &Config{}
	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := decode(absPath, data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	for name, db := range cfg.Databases {
		if db.DSN != "" && db.DSN != ":memory:" && !strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) && isSQLite(name) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.PublicURL == "" {
		c.BasicConfig.PublicURL = "http://localhost:8090/"
	}
	if c.BasicConfig.GenerateDelayMS == nil {
		delay := 2000
		c.BasicConfig.GenerateDelayMS = &delay
	}
	if c.BasicConfig.MaxUploadBytes <= 0 {
		c.BasicConfig.MaxUploadBytes = 32 << 20
	}
	if c.Summary.Backend == "" {
		c.Summary.Backend = "rules"
	}
	if c.RemoteAPI.BaseURL == "" {
		c.RemoteAPI.BaseURL = "http://localhost:3001"
	}
	if c.RemoteAPI.TimeoutSeconds <= 0 {
		c.RemoteAPI.TimeoutSeconds = 30
	}

	s := &c.SummaryAPI
	if s.ServerAddress == "" {
		s.ServerAddress = ":3001"
	}
	if s.DBType == "" {
		s.DBType = "sqlite3"
	}
	if s.FileBaseDir == "" {
		s.FileBaseDir = "./data/uploads"
	}
	if s.FileTTLMinutes <= 0 {
		s.FileTTLMinutes = 24 * 60
	}
	if s.CleanIntervalMinutes <= 0 {
		s.CleanIntervalMinutes = 60
	}
	if s.Workers <= 0 {
		s.Workers = 4
	}
	if s.QueueSize <= 0 {
		s.QueueSize = 64
	}
	if s.MaxConcurrentGenerations <= 0 {
		s.MaxConcurrentGenerations = 4
	}
	if s.RateLimitEveryMS <= 0 {
		s.RateLimitEveryMS = 600
	}
	if s.RateLimitBurst <= 0 {
		s.RateLimitBurst = 20
	}
	if s.CacheTTLMinutes <= 0 {
		s.CacheTTLMinutes = 30
	}
	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	if _, ok := c.Databases["sqlite3"]; !ok {
		c.Databases["sqlite3"] = DatabaseConfig{DSN: "./data/summaryapi.db"}
	}

	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 15
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 28
	}
}

func (c *Config) applyEnv() {
	c.BasicConfig.ServerAddress = envStr("AIFILES_ADDR", c.BasicConfig.ServerAddress)
	c.BasicConfig.PublicURL = envStr("AIFILES_PUBLIC_URL", c.BasicConfig.PublicURL)
	if d, ok := envMillis("AIFILES_GENERATE_DELAY"); ok {
		c.BasicConfig.GenerateDelayMS = &d
	}
	c.Summary.Backend = envStr("AIFILES_SUMMARY_BACKEND", c.Summary.Backend)
	c.RemoteAPI.BaseURL = envStr("AIFILES_API_URL", c.RemoteAPI.BaseURL)
	c.SummaryAPI.ServerAddress = envStr("SUMMARYAPI_ADDR", c.SummaryAPI.ServerAddress)
	c.SummaryAPI.DBType = envStr("SUMMARYAPI_DB", c.SummaryAPI.DBType)
	c.SummaryAPI.SharedSecret = envStr("SUMMARYAPI_SHARED_SECRET", c.SummaryAPI.SharedSecret)
	c.SummaryAPI.Workers = envInt("SUMMARYAPI_WORKERS", c.SummaryAPI.Workers)
	c.Log.File = envStr("AIFILES_LOG_FILE", c.Log.File)
}

// GenerateDelay is the simulated processing time before a summary is produced.
func (c *Config) GenerateDelay() time.Duration {
	if c.BasicConfig.GenerateDelayMS == nil {
		return 2 * time.Second
	}
	return time.Duration(*c.BasicConfig.GenerateDelayMS) * time.Millisecond
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	switch c.Summary.Backend {
	case "rules", "remote":
	default:
		return fmt.Errorf("summary.backend must be rules or remote, got %q", c.Summary.Backend)
	}
	if c.BasicConfig.GenerateDelayMS != nil && *c.BasicConfig.GenerateDelayMS < 0 {
		return fmt.Errorf("basic_config.generate_delay_ms must not be negative")
	}
	if secret := strings.TrimSpace(c.SummaryAPI.SharedSecret); secret != "" && len(secret) < 16 {
		return fmt.Errorf("summary_api.shared_secret must be at least 16 characters")
	}
	return nil
}

func isSQLite(name string) bool {
	name = strings.ToLower(name)
	return name == "sqlite" || name == "sqlite3"
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// envMillis accepts a Go duration ("1500ms") and reports it in milliseconds; zero is allowed.
func envMillis(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, false
	}
	return int(d / time.Millisecond), true
}
