package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Tokens   TokenConfig
	Sessions SessionConfig
	Notifier NotifierConfig
	CORS     CORSConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig covers owner (teacher) access tokens.
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// TokenConfig covers scanned session/identity token decoding.
type TokenConfig struct {
	Secret          string
	VerifySignature bool
}

// SessionConfig bounds attendance session parameters.
type SessionConfig struct {
	MaxDuration   time.Duration
	BindingTTLCap time.Duration
	RetryBudget   int
}

// NotifierConfig controls the event dispatch queue.
type NotifierConfig struct {
	Enabled    bool
	Workers    int
	BufferSize int
	Channel    string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from .env and process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Tokens = TokenConfig{
		Secret:          v.GetString("SCAN_TOKEN_SECRET"),
		VerifySignature: v.GetBool("SCAN_TOKEN_VERIFY_SIGNATURE"),
	}

	cfg.Sessions = SessionConfig{
		MaxDuration:   parseDuration(v.GetString("SESSION_MAX_DURATION"), 8*time.Hour),
		BindingTTLCap: parseDuration(v.GetString("BINDING_TTL_CAP"), 8*time.Hour),
		RetryBudget:   v.GetInt("SCAN_RETRY_BUDGET"),
	}

	cfg.Notifier = NotifierConfig{
		Enabled:    v.GetBool("NOTIFIER_ENABLED"),
		Workers:    v.GetInt("NOTIFIER_WORKERS"),
		BufferSize: v.GetInt("NOTIFIER_BUFFER_SIZE"),
		Channel:    v.GetString("NOTIFIER_CHANNEL"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "qr_attend")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "qr-attend-api")

	v.SetDefault("SCAN_TOKEN_SECRET", "change-me-too")
	v.SetDefault("SCAN_TOKEN_VERIFY_SIGNATURE", true)

	v.SetDefault("SESSION_MAX_DURATION", "8h")
	v.SetDefault("BINDING_TTL_CAP", "8h")
	v.SetDefault("SCAN_RETRY_BUDGET", 3)

	v.SetDefault("NOTIFIER_ENABLED", true)
	v.SetDefault("NOTIFIER_WORKERS", 2)
	v.SetDefault("NOTIFIER_BUFFER_SIZE", 64)
	v.SetDefault("NOTIFIER_CHANNEL", "attendance.events")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
