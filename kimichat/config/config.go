package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL  = "https://openrouter.ai/api/v1"
	DefaultModel    = "moonshotai/kimi-k2"
	DefaultSiteURL  = "https://kimik2.ai"
	DefaultSiteName = "Kimi K2 AI"

	// placeholder shipped in the sample .env; treated as "no key".
	demoKeyPlaceholder = "demo-key-replace-with-real-key"
)

type Config struct {
	APIKey   string
	BaseURL  string
	SiteURL  string
	SiteName string
	Model    string

	MaxTokens         int
	Temperature       float64
	HeartbeatInterval time.Duration

	Port      string
	LogDir    string
	JWTSecret string

	RelayURL     string
	RelayToken   string
	StoreBackend string
	StoreDir     string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	SQLitePath string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOSecure    bool

	TelemetryEnabled bool
}

// Tuning is the optional YAML overlay for sampling and stream parameters.
type Tuning struct {
	BaseURL           string   `yaml:"base_url"`
	DefaultModel      string   `yaml:"default_model"`
	MaxTokens         *int     `yaml:"max_tokens"`
	Temperature       *float64 `yaml:"temperature"`
	HeartbeatInterval string   `yaml:"heartbeat_interval"`
}

// Configured reports whether an upstream credential is available.
func (c Config) Configured() bool {
	return c.APIKey != "" && c.APIKey != demoKeyPlaceholder
}

func LoadConfig() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{
		APIKey:   getEnv("OPENROUTER_API_KEY", ""),
		BaseURL:  getEnv("OPENROUTER_BASE_URL", DefaultBaseURL),
		SiteURL:  getEnv("SITE_URL", DefaultSiteURL),
		SiteName: getEnv("SITE_NAME", DefaultSiteName),
		Model:    getEnv("DEFAULT_MODEL", DefaultModel),

		MaxTokens:         getIntEnv("MAX_TOKENS", 1000),
		Temperature:       getFloatEnv("TEMPERATURE", 0.7),
		HeartbeatInterval: getDurationEnv("HEARTBEAT_INTERVAL", 15*time.Second),

		Port:      getEnv("PORT", "8000"),
		LogDir:    getEnv("LOG_DIR", "./logs"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		RelayURL:     getEnv("RELAY_URL", "http://localhost:8000"),
		RelayToken:   getEnv("RELAY_TOKEN", ""),
		StoreBackend: getEnv("STORE_BACKEND", "file"),
		StoreDir:     getEnv("STORE_DIR", defaultStoreDir()),

		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "kimichat"),
		SQLitePath: getEnv("SQLITE_PATH", "kimichat.db"),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "kimichat"),
		MinIOSecure:    getBoolEnv("MINIO_SECURE", false),

		TelemetryEnabled: getBoolEnv("TELEMETRY_ENABLED", false),
	}

	path := getEnv("KIMICHAT_CONFIG", "kimichat.yaml")
	if err := cfg.ApplyTuningFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "ignoring tuning file %s: %v\n", path, err)
	}
	return cfg
}

// ApplyTuningFile overlays values from a YAML file onto the config.
func (c *Config) ApplyTuningFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if t.BaseURL != "" {
		c.BaseURL = t.BaseURL
	}
	if t.DefaultModel != "" {
		c.Model = t.DefaultModel
	}
	if t.MaxTokens != nil {
		c.MaxTokens = *t.MaxTokens
	}
	if t.Temperature != nil {
		c.Temperature = *t.Temperature
	}
	if t.HeartbeatInterval != "" {
		d, err := time.ParseDuration(t.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("heartbeat_interval: %w", err)
		}
		c.HeartbeatInterval = d
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getFloatEnv(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getBoolEnv(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kimichat"
	}
	return filepath.Join(home, ".kimichat")
}
