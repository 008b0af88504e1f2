package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	Location       *time.Location
	Scheduler      SchedulerConfig
	Log            LogConfig
	RateLimit      RateLimitConfig
	CORSOrigins    []string
	CarePolicyFile string
	AutoMigrate    bool
}

type DatabaseConfig struct {
	User         string
	Password     string
	Host         string
	Port         string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

type SchedulerConfig struct {
	Enabled  bool
	Schedule string
	Timeout  time.Duration
}

type LogConfig struct {
	Level string
	File  string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads the environment, after merging a .env file when one is present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port: getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			User:         getEnv("DB_USER", "kanso_user"),
			Password:     getEnv("DB_PASSWORD", "secret"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "kanso_db"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: 25,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getEnv("JWT_ISSUER", "kanso-care-engine"),
			TTL:    72 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			Schedule: getEnv("SCHEDULER_SPEC", "0 5 0 * * *"),
			Timeout:  5 * time.Minute,
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   time.Minute,
		},
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "*")),
		CarePolicyFile: os.Getenv("CARE_POLICY_FILE"),
	}
	cfg.Redis.Enabled = cfg.Redis.Host != ""

	var errs []error

	loc, err := time.LoadLocation(getEnv("REFERENCE_TIMEZONE", "UTC"))
	if err != nil {
		errs = append(errs, fmt.Errorf("REFERENCE_TIMEZONE: %w", err))
	}
	cfg.Location = loc

	errs = append(errs,
		parseInt("DB_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns),
		parseInt("REDIS_DB", &cfg.Redis.DB),
		parseInt("RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests),
		parseDuration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window),
		parseDuration("JWT_TTL", &cfg.JWT.TTL),
		parseDuration("SCHEDULER_TIMEOUT", &cfg.Scheduler.Timeout),
		parseBool("SCHEDULER_ENABLED", true, &cfg.Scheduler.Enabled),
		parseBool("AUTO_MIGRATE", false, &cfg.AutoMigrate),
	)

	return cfg, errors.Join(errs...)
}

// RequireJWT fails when the API cannot sign tokens.
func (c Config) RequireJWT() error {
	if len(c.JWT.Secret) < 16 {
		return errors.New("JWT_SECRET must be set to at least 16 characters")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(key string, dst *int) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func parseDuration(key string, dst *time.Duration) error {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s: must be positive", key)
	}
	*dst = v
	return nil
}

func parseBool(key string, fallback bool, dst *bool) error {
	*dst = fallback
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}
