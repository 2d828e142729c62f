package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Mailchimp  MailchimpConfig  `yaml:"mailchimp"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	LinkFilter LinkFilterConfig `yaml:"link_filter"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Export     ExportConfig     `yaml:"export"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// MailchimpConfig holds Mailchimp Marketing API configuration.
// BaseURL is derived from ServerPrefix unless set explicitly (tests).
type MailchimpConfig struct {
	APIKey         string `yaml:"api_key"`
	ServerPrefix   string `yaml:"server_prefix"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MailchimpConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResolveBaseURL returns the API base URL, deriving it from the
// data-center prefix when no explicit override is configured.
func (c MailchimpConfig) ResolveBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("https://%s.api.mailchimp.com/3.0", c.ServerPrefix)
}

// Validate checks that the credentials required for any API call are present.
func (c MailchimpConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("mailchimp: missing api_key (set MAILCHIMP_API_KEY)")
	}
	if c.ServerPrefix == "" && c.BaseURL == "" {
		return fmt.Errorf("mailchimp: missing server_prefix (set MAILCHIMP_SERVER_PREFIX)")
	}
	return nil
}

// PipelineConfig holds click-map pipeline configuration
type PipelineConfig struct {
	LookbackDays int    `yaml:"lookback_days"`
	NameFilter   string `yaml:"name_filter"`
	OutputPath   string `yaml:"output_path"`
}

// Lookback returns the campaign lookback window as a duration
func (c PipelineConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}

// LinkFilterConfig holds link exclusion configuration
type LinkFilterConfig struct {
	ExcludedDomains []string `yaml:"excluded_domains"`
}

// Domains returns the configured exclusion list, falling back to the
// shipped default set when none is configured.
func (c LinkFilterConfig) Domains() []string {
	if len(c.ExcludedDomains) > 0 {
		return c.ExcludedDomains
	}
	return DefaultExcludedDomains()
}

// DefaultExcludedDomains returns the built-in non-content domain set:
// the publication's own properties, social platforms, survey/forms tools,
// and newsletter-platform redirectors.
func DefaultExcludedDomains() []string {
	return []string{
		"thedp.com",
		"34st.com",
		"underthebutton.com",
		"facebook.com",
		"twitter.com",
		"instagram.com",
		"open.spotify.com",
		"forms.gle",
		"eepurl.com",
		"issuu.com",
		"thedp.revfluent.com",
		"thedp.us2.list-manage.com",
		"upenn.co1.qualtrics.com",
	}
}

// DatabaseConfig holds PostgreSQL configuration for run persistence
type DatabaseConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// RedisConfig holds Redis configuration for the campaign-content cache
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
	Enabled    bool   `yaml:"enabled"`
}

// TTL returns the cache entry lifetime as a duration
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ExportConfig holds CSV/S3 export configuration
type ExportConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c ExportConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
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
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Mailchimp.TimeoutSeconds == 0 {
		cfg.Mailchimp.TimeoutSeconds = 30
	}
	if cfg.Pipeline.LookbackDays == 0 {
		cfg.Pipeline.LookbackDays = 365
	}
	if cfg.Pipeline.OutputPath == "" {
		cfg.Pipeline.OutputPath = "click_map_data.csv"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.TTLMinutes == 0 {
		cfg.Redis.TTLMinutes = 360
	}
	if cfg.Export.S3Region == "" {
		cfg.Export.S3Region = "us-east-1"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		// A missing config file is fine when the environment carries
		// everything; start from defaults in that case.
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
		applyDefaults(cfg)
	}

	// Override with environment variables if present
	if apiKey := os.Getenv("MAILCHIMP_API_KEY"); apiKey != "" {
		cfg.Mailchimp.APIKey = apiKey
	}
	if prefix := os.Getenv("MAILCHIMP_SERVER_PREFIX"); prefix != "" {
		cfg.Mailchimp.ServerPrefix = prefix
	}
	if baseURL := os.Getenv("MAILCHIMP_BASE_URL"); baseURL != "" {
		cfg.Mailchimp.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
		cfg.Database.Enabled = true
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if bucket := os.Getenv("EXPORT_S3_BUCKET"); bucket != "" {
		cfg.Export.S3Bucket = bucket
	}
	if region := os.Getenv("EXPORT_S3_REGION"); region != "" {
		cfg.Export.S3Region = region
	}
	if domains := os.Getenv("EXCLUDED_DOMAINS"); domains != "" {
		cfg.LinkFilter.ExcludedDomains = splitAndTrim(domains)
	}

	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
