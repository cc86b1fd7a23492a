package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Browser  BrowserConfig  `yaml:"browser"`
	Server   ServerConfig   `yaml:"server"`
	Download DownloadConfig `yaml:"download"`
	Notify   NotifyConfig   `yaml:"notify"`
	Bot      BotConfig      `yaml:"bot"`
}

// StorageConfig selects the key-value backend holding the schema list
type StorageConfig struct {
	// Driver is one of sqlite, postgres, badger, memory
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Key is the key under which the schema list is stored
	Key string `yaml:"key"`
}

// BrowserConfig configures the rendering host
type BrowserConfig struct {
	// Engine is rod (headless Chrome) or colly (static HTML, no JavaScript)
	Engine       string        `yaml:"engine"`
	Bin          string        `yaml:"bin"`
	Headless     bool          `yaml:"headless"`
	Stealth      bool          `yaml:"stealth"`
	UserDataDir  string        `yaml:"user_data_dir"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
	Settle       time.Duration `yaml:"settle"`
	UserAgent    string        `yaml:"user_agent"`
}

// ServerConfig configures the HTTP command surface
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// DownloadConfig configures where finished CSV files go
type DownloadConfig struct {
	Dir               string `yaml:"dir"`
	S3Bucket          string `yaml:"s3_bucket"`
	S3Prefix          string `yaml:"s3_prefix"`
	S3Region          string `yaml:"s3_region"`
	S3Endpoint        string `yaml:"s3_endpoint"`
	SheetsSpreadsheet string `yaml:"sheets_spreadsheet"`
	SheetsCredentials string `yaml:"sheets_credentials"`
}

// NotifyConfig configures export completion notifications
type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	WebhookURL     string `yaml:"webhook_url"`
}

// BotConfig configures the Telegram command surface
type BotConfig struct {
	AllowedUserIDs []int64 `yaml:"allowed_user_ids"`
}

// LoadConfig loads configuration from a YAML file.
// A sibling <name>.local.yaml overrides the base file, environment variables override both.
// A missing base file is not an error, the defaults are used instead.
func LoadConfig(path string) (*Config, error) {
	cfg := GetDefaultConfig()

	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
		if err := mergeFile(cfg, localPath(path)); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetDefaultConfig returns a default configuration
func GetDefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "eva-tables.db",
			Key:    "tables",
		},
		Browser: BrowserConfig{
			Engine:       "rod",
			Headless:     true,
			Stealth:      true,
			UserDataDir:  filepath.Join(os.TempDir(), "eva-browser"),
			ReadyTimeout: 30 * time.Second,
			Settle:       time.Second,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Download: DownloadConfig{
			Dir: "exports",
		},
	}
}

// Validate checks the values that have a closed set of options
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "postgres", "badger", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Browser.Engine {
	case "rod", "colly":
	default:
		return fmt.Errorf("unknown browser engine %q", c.Browser.Engine)
	}
	if c.Storage.Key == "" {
		return errors.New("storage key must not be empty")
	}
	return nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := mergo.Merge(cfg, override, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge config file %s: %w", path, err)
	}
	return nil
}

// localPath turns config.yaml into config.local.yaml
func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func applyEnv(cfg *Config) {
	cfg.Storage.Driver = getEnv("EVA_DB_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = getEnv("EVA_DB_DSN", cfg.Storage.DSN)
	// DATABASE_URL is honoured for postgres deployments
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && os.Getenv("EVA_DB_DSN") == "" {
		cfg.Storage.Driver = "postgres"
		cfg.Storage.DSN = dsn
	}

	cfg.Server.ListenAddr = getEnv("EVA_LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Browser.Bin = getEnv("EVA_BROWSER_BIN", cfg.Browser.Bin)
	cfg.Browser.ReadyTimeout = getEnvDuration("EVA_READY_TIMEOUT", cfg.Browser.ReadyTimeout)

	cfg.Download.Dir = getEnv("EVA_DOWNLOAD_DIR", cfg.Download.Dir)
	cfg.Download.S3Bucket = getEnv("EVA_S3_BUCKET", cfg.Download.S3Bucket)
	cfg.Download.SheetsSpreadsheet = getEnv("EVA_SHEETS_SPREADSHEET", cfg.Download.SheetsSpreadsheet)

	cfg.Notify.TelegramToken = getEnv("EVA_TELEGRAM_TOKEN", cfg.Notify.TelegramToken)
	cfg.Notify.TelegramChatID = getEnvInt64("EVA_TELEGRAM_CHAT_ID", cfg.Notify.TelegramChatID)
	cfg.Notify.WebhookURL = getEnv("EVA_WEBHOOK_URL", cfg.Notify.WebhookURL)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
