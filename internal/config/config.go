package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the binaries look for configuration when --config is not given.
const DefaultPath = "config/config.yaml"

// DefaultHost is the loopback address the upload form binds to.
const DefaultHost = "127.0.0.1"

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Filter   FilterConfig   `yaml:"filter"`
	Loader   LoaderConfig   `yaml:"loader"`
	Output   OutputConfig   `yaml:"output"`
	Storage  StorageConfig  `yaml:"storage"`
	Postgres PostgresConfig `yaml:"postgres"`
	Report   ReportConfig   `yaml:"report"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration for the local upload form.
// Port 0 lets the OS pick a free port.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with environment override. The form is
// only served on loopback; any other host falls back to DefaultHost.
func (c ServerConfig) GetHost() string {
	host := c.Host
	if env := os.Getenv("SERVER_HOST"); env != "" {
		host = env
	}
	if !isLoopback(host) {
		return DefaultHost
	}
	return host
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// MaxUploadBytes returns the per-request upload limit in bytes.
func (c ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// FilterConfig holds the default switches for a filter run. The web form and
// CLI flags override them per run.
type FilterConfig struct {
	EmailColumn        string `yaml:"email_column"`
	CollapseGmailPlus  bool   `yaml:"collapse_gmail_plus"`
	CollapseGmailDots  bool   `yaml:"collapse_gmail_dots"`
	DropInvalidOrEmpty bool   `yaml:"drop_invalid_or_empty"`
}

// LoaderConfig controls how input files are parsed.
type LoaderConfig struct {
	// FallbackEncoding is applied to input that is not valid UTF-8
	// (e.g. "windows-1252"). Empty means such input is rejected.
	FallbackEncoding string `yaml:"fallback_encoding"`
	// Sheet selects the worksheet of XLSX input. Empty means the first sheet.
	Sheet string `yaml:"sheet"`
}

// OutputConfig names the generated files.
type OutputConfig struct {
	FilteredName string `yaml:"filtered_name"`
	RemovedName  string `yaml:"removed_name"`
}

// StorageConfig selects where the web form keeps downloads until they are fetched.
type StorageConfig struct {
	Type       string `yaml:"type"` // memory, local, s3, redis
	LocalPath  string `yaml:"local_path"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain
	RedisURL   string `yaml:"redis_url"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// TTL returns how long a download stays available.
func (c StorageConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// PostgresConfig holds the optional database suppression source.
type PostgresConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	SuppressionQuery string `yaml:"suppression_query"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured query timeout as a duration
func (c PostgresConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReportConfig holds the Liquid template used for the run summary.
// Empty means the built-in template.
type ReportConfig struct {
	Template string `yaml:"template"`
}

// LoggingConfig holds log level and PII redaction.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether email addresses are masked in logs. Defaults to true.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Default returns a configuration with every default applied. It is used
// when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 100
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://127.0.0.1", "http://localhost"}
	}
	if cfg.Output.FilteredName == "" {
		cfg.Output.FilteredName = "client_list_filtered.csv"
	}
	if cfg.Output.RemovedName == "" {
		cfg.Output.RemovedName = "removed_rows.csv"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = os.TempDir()
	}
	if cfg.Storage.S3Prefix == "" {
		cfg.Storage.S3Prefix = "email-filter/downloads"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Storage.TTLMinutes == 0 {
		cfg.Storage.TTLMinutes = 60
	}
	if cfg.Postgres.SuppressionQuery == "" {
		cfg.Postgres.SuppressionQuery = "SELECT email FROM mailing_global_suppressions"
	}
	if cfg.Postgres.TimeoutSeconds == 0 {
		cfg.Postgres.TimeoutSeconds = 60
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars. A missing
// config file is not an error: defaults are used instead.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = Default()
	}

	// PORT is a number, or 0 to auto-pick.
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port >= 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.RedisURL = v
	}
	if v := os.Getenv("EMAIL_FILTER_STORAGE"); v != "" {
		cfg.Storage.Type = strings.ToLower(v)
	}
	if v := os.Getenv("EMAIL_FILTER_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
