package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

const (
	StorageInMemory = "inmemory"
	StorageMySQL    = "mysql"

	defaultPort       = "8080"
	defaultLogLevel   = "info"
	defaultLogDir     = "./logging/logs"
	defaultDBName     = "expense_tracker"
	defaultSessionTTL = 90 * 24 * time.Hour
)

type Config struct {
	AppEnv         string
	Port           string
	LogLevel       string
	LogDir         string
	StorageType    string
	SessionTTL     time.Duration
	AllowedOrigins []string
	DB             DBConfig
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	FullDSN  string
}

// Load reads the optional .env file in the working directory and then the process environment.
func Load() (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env variables: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		AppEnv:      strings.ToLower(os.Getenv("APP_ENV")),
		Port:        getEnv("APP_PORT", defaultPort),
		LogLevel:    getEnv("LOG_LEVEL", defaultLogLevel),
		LogDir:      getEnv("LOG_DIR", defaultLogDir),
		StorageType: strings.ToLower(getEnv("STORAGE_TYPE", StorageInMemory)),
		SessionTTL:  defaultSessionTTL,
		DB: DBConfig{
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASS"),
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			Name:     getEnv("DB_NAME", defaultDBName),
			FullDSN:  os.Getenv("FULL_DSN"),
		},
	}

	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}

	if ttl := os.Getenv("SESSION_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL %q: %w", ttl, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", ttl)
		}
		cfg.SessionTTL = d
	}

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageType {
	case StorageInMemory:
	case StorageMySQL:
		if c.DB.FullDSN == "" && (c.DB.User == "" || c.DB.Password == "" || c.DB.Host == "" || c.DB.Port == "") {
			return fmt.Errorf("missing required DB environment variables")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_TYPE %q, use %q or %q", c.StorageType, StorageInMemory, StorageMySQL)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
