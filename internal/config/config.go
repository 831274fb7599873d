package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	LLM      LLMConfig      `yaml:"llm"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Backup   BackupConfig   `yaml:"backup"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DatabaseConfig struct {
	// Driver is "sqlite3", "postgres" or "memory".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// LLMConfig selects the default provider and carries per-provider keys.
type LLMConfig struct {
	Provider           string                    `yaml:"provider"`
	Model              string                    `yaml:"model"`
	Temperature        float64                   `yaml:"temperature"`
	MaxTokens          int                       `yaml:"max_tokens"`
	Timeout            time.Duration             `yaml:"timeout"`
	RequestsPerMinute  int                       `yaml:"requests_per_minute"`
	Providers          map[string]ProviderConfig `yaml:"providers"`
	AzureEndpoint      string                    `yaml:"azure_endpoint"`
	AzureDeploymentMap map[string]string         `yaml:"azure_deployments"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// AnalysisConfig bounds the tables sent to the agents.
type AnalysisConfig struct {
	ReportTopProfit     int `yaml:"report_top_profit"`
	ReportTopPopularity int `yaml:"report_top_popularity"`
	ReportBottomProfit  int `yaml:"report_bottom_profit"`
	ChatContextRows     int `yaml:"chat_context_rows"`
}

type BackupConfig struct {
	// Store is "local" or "s3".
	Store string   `yaml:"store"`
	Dir   string   `yaml:"dir"`
	S3    S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Default returns a configuration that runs locally with SQLite and no LLM key.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			MaxUploadBytes:  20 << 20,
		},
		Log:      LogConfig{Level: "info", Format: "json"},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "chefia.db"},
		Auth:     AuthConfig{TokenTTL: 7 * 24 * time.Hour},
		LLM: LLMConfig{
			Provider:          "gemini",
			Model:             "gemini-1.5-flash",
			Temperature:       0.4,
			MaxTokens:         2048,
			Timeout:           3 * time.Minute,
			RequestsPerMinute: 6,
			Providers:         map[string]ProviderConfig{},
		},
		Analysis: AnalysisConfig{
			ReportTopProfit:     10,
			ReportTopPopularity: 10,
			ReportBottomProfit:  5,
			ChatContextRows:     60,
		},
		Backup:  BackupConfig{Store: "local", Dir: "backups"},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// providerKeyEnv lists the environment variables holding each provider's key,
// in lookup order.
var providerKeyEnv = map[string][]string{
	"gemini":     {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"deepseek":   {"DEEPSEEK_API_KEY"},
	"perplexity": {"PERPLEXITY_API_KEY"},
	"azure":      {"AZURE_OPENAI_API_KEY"},
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvInt("CHEFIA_PORT", c.Server.Port)
	c.Metrics.Port = getEnvInt("CHEFIA_METRICS_PORT", c.Metrics.Port)
	c.Log.Level = getEnvString("CHEFIA_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvString("CHEFIA_LOG_FORMAT", c.Log.Format)
	c.Database.Driver = getEnvString("CHEFIA_DATABASE_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnvString("CHEFIA_DATABASE_DSN", c.Database.DSN)
	c.Auth.JWTSecret = getEnvString("CHEFIA_JWT_SECRET", c.Auth.JWTSecret)
	c.LLM.Provider = getEnvString("CHEFIA_LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnvString("CHEFIA_LLM_MODEL", c.LLM.Model)
	c.LLM.AzureEndpoint = getEnvString("AZURE_OPENAI_ENDPOINT", c.LLM.AzureEndpoint)
	if origins := os.Getenv("CHEFIA_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	if c.LLM.Providers == nil {
		c.LLM.Providers = map[string]ProviderConfig{}
	}
	for provider, vars := range providerKeyEnv {
		pc := c.LLM.Providers[provider]
		for _, v := range vars {
			if key := os.Getenv(v); key != "" {
				pc.APIKey = key
				break
			}
		}
		c.LLM.Providers[provider] = pc
	}

	c.Backup.Store = getEnvString("CHEFIA_BACKUP_STORE", c.Backup.Store)
	c.Backup.S3.Endpoint = getEnvString("CHEFIA_S3_ENDPOINT", c.Backup.S3.Endpoint)
	c.Backup.S3.Bucket = getEnvString("CHEFIA_S3_BUCKET", c.Backup.S3.Bucket)
	c.Backup.S3.AccessKey = getEnvString("CHEFIA_S3_ACCESS_KEY", c.Backup.S3.AccessKey)
	c.Backup.S3.SecretKey = getEnvString("CHEFIA_S3_SECRET_KEY", c.Backup.S3.SecretKey)
	c.Backup.S3.PublicBaseURL = getEnvString("CHEFIA_S3_PUBLIC_BASE_URL", c.Backup.S3.PublicBaseURL)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	switch c.Backup.Store {
	case "local", "s3":
	default:
		return fmt.Errorf("unsupported backup store: %s", c.Backup.Store)
	}
	if c.Backup.Store == "s3" && c.Backup.S3.Bucket == "" {
		return fmt.Errorf("backup store s3 requires a bucket")
	}
	if c.Analysis.ChatContextRows <= 0 {
		return fmt.Errorf("chat_context_rows must be positive")
	}
	return nil
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
