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
	Auth     AuthConfig
	Audit    AuditConfig
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

// AuthConfig carries the signing key and session TTL policy. Loaded once
// at startup and never re-read per request.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience []string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// RefreshSliding extends refreshable_until on every rotation. When
	// false the deadline fixed at login is an absolute lifetime cap.
	RefreshSliding bool

	// RevokeOnPasswordChange revokes the actor's other sessions on every
	// password change. When false, revocation still happens if the
	// request sets revoke_others.
	RevokeOnPasswordChange bool

	// KeepCurrentSession exempts the authenticating session from
	// password-change revocation.
	KeepCurrentSession bool

	BcryptCost    int
	GuestCacheTTL time.Duration
}

// AuditConfig tunes the async audit-log writer.
type AuditConfig struct {
	Workers    int
	BufferSize int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

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

	cfg.Auth = AuthConfig{
		Secret:                 v.GetString("AUTH_SECRET"),
		Issuer:                 v.GetString("AUTH_ISSUER"),
		Audience:               splitAndTrim(v.GetString("AUTH_AUDIENCE")),
		AccessTokenTTL:         parseDuration(v.GetString("AUTH_ACCESS_TTL"), 15*time.Minute),
		RefreshTokenTTL:        parseDuration(v.GetString("AUTH_REFRESH_TTL"), 30*24*time.Hour),
		RefreshSliding:         v.GetBool("AUTH_REFRESH_SLIDING"),
		RevokeOnPasswordChange: v.GetBool("AUTH_REVOKE_ON_PASSWORD_CHANGE"),
		KeepCurrentSession:     v.GetBool("AUTH_KEEP_CURRENT_SESSION"),
		BcryptCost:             v.GetInt("AUTH_BCRYPT_COST"),
		GuestCacheTTL:          parseDuration(v.GetString("AUTH_GUEST_CACHE_TTL"), 30*time.Second),
	}

	cfg.Audit = AuditConfig{
		Workers:    v.GetInt("AUDIT_WORKERS"),
		BufferSize: v.GetInt("AUDIT_BUFFER_SIZE"),
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
	v.SetDefault("DB_NAME", "forum")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_SECRET", "dev_secret")
	v.SetDefault("AUTH_ISSUER", "forum-auth")
	v.SetDefault("AUTH_AUDIENCE", "forum-api")
	v.SetDefault("AUTH_ACCESS_TTL", "15m")
	v.SetDefault("AUTH_REFRESH_TTL", "720h")
	v.SetDefault("AUTH_REFRESH_SLIDING", false)
	v.SetDefault("AUTH_REVOKE_ON_PASSWORD_CHANGE", true)
	v.SetDefault("AUTH_KEEP_CURRENT_SESSION", true)
	v.SetDefault("AUTH_BCRYPT_COST", 0)
	v.SetDefault("AUTH_GUEST_CACHE_TTL", "30s")

	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_BUFFER_SIZE", 64)

	v.SetDefault("ALLOWED_ORIGINS", "")
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
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
