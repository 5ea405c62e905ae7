package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

// Message dispatchers.
const (
	DispatcherLog     = "log"
	DispatcherWebhook = "webhook"
)

type Config struct {
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	StoreBackend       string        `mapstructure:"STORE_BACKEND"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	DefaultClinic      string        `mapstructure:"DEFAULT_CLINIC"`
	SupabaseURL        string        `mapstructure:"SUPABASE_URL"`
	SupabaseKey        string        `mapstructure:"SUPABASE_KEY"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	SessionTTL         time.Duration `mapstructure:"SESSION_TTL"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	PHIEncryptionKey   string        `mapstructure:"PHI_ENCRYPTION_KEY"`
	RateLimitRPS       float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int           `mapstructure:"RATE_LIMIT_BURST"`
	MessageDispatcher  string        `mapstructure:"MESSAGE_DISPATCHER"`
	MessageWebhookURL  string        `mapstructure:"MESSAGE_WEBHOOK_URL"`
	MessageWebhookKey  string        `mapstructure:"MESSAGE_WEBHOOK_SECRET"`
	BulkSendDelay      time.Duration `mapstructure:"BULK_SEND_DELAY"`
	DefaultCountryCode string        `mapstructure:"DEFAULT_COUNTRY_CODE"`
	MigrationsDir      string        `mapstructure:"MIGRATIONS_DIR"`
	CacheRefresh       time.Duration `mapstructure:"CACHE_REFRESH_INTERVAL"`
}

var keys = []string{
	"PORT", "ENV", "STORE_BACKEND", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"DEFAULT_CLINIC", "SUPABASE_URL", "SUPABASE_KEY", "JWT_SECRET", "SESSION_TTL",
	"CORS_ORIGINS", "PHI_ENCRYPTION_KEY", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"MESSAGE_DISPATCHER", "MESSAGE_WEBHOOK_URL", "MESSAGE_WEBHOOK_SECRET", "BULK_SEND_DELAY",
	"DEFAULT_COUNTRY_CODE", "MIGRATIONS_DIR", "CACHE_REFRESH_INTERVAL",
}

// Load reads configuration from the environment. envFile, when set, must
// exist and is loaded first; otherwise a .env in the working directory is
// loaded if present. Variables already in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_BACKEND", BackendPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DEFAULT_CLINIC", "main")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("MESSAGE_DISPATCHER", DispatcherLog)
	v.SetDefault("BULK_SEND_DELAY", "2s")
	v.SetDefault("DEFAULT_COUNTRY_CODE", "55")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("CACHE_REFRESH_INTERVAL", "5m")

	// Unmarshal only sees keys viper knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

var (
	clinicIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	digitsPattern   = regexp.MustCompile(`^[0-9]{1,4}$`)
)

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is %q", BackendPostgres)
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_KEY are required when STORE_BACKEND is %q", BackendSupabase)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendSupabase, c.StoreBackend)
	}

	if !clinicIDPattern.MatchString(c.DefaultClinic) {
		return fmt.Errorf("DEFAULT_CLINIC %q may only contain letters, digits and underscores", c.DefaultClinic)
	}

	if !c.IsDev() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET of at least 32 bytes is required outside development")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}

	if c.IsProduction() && c.PHIEncryptionKey == "" {
		return fmt.Errorf("PHI_ENCRYPTION_KEY is required in production")
	}
	if c.PHIEncryptionKey != "" {
		key, err := hex.DecodeString(c.PHIEncryptionKey)
		if err != nil {
			return fmt.Errorf("PHI_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("PHI_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
		}
	}

	switch c.MessageDispatcher {
	case DispatcherLog:
	case DispatcherWebhook:
		if c.MessageWebhookURL == "" {
			return fmt.Errorf("MESSAGE_WEBHOOK_URL is required when MESSAGE_DISPATCHER is %q", DispatcherWebhook)
		}
	default:
		return fmt.Errorf("MESSAGE_DISPATCHER must be %q or %q, got %q", DispatcherLog, DispatcherWebhook, c.MessageDispatcher)
	}
	if c.BulkSendDelay < 0 {
		return fmt.Errorf("BULK_SEND_DELAY must not be negative")
	}
	if !digitsPattern.MatchString(c.DefaultCountryCode) {
		return fmt.Errorf("DEFAULT_COUNTRY_CODE must be 1-4 digits, got %q", c.DefaultCountryCode)
	}
	return nil
}
