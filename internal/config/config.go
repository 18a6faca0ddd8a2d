package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Server     ServerConfig
	LLM        LLMConfig
	Engine     EngineConfig
	Sync       SyncConfig
	Slack      SlackConfig
	SelfHosted bool
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds JWT authentication settings.
type JWTConfig struct {
	Secret     string //nolint:gosec // G117: JWT signing secret config
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// LLMConfig holds model-provider settings.
type LLMConfig struct {
	APIKey         string //nolint:gosec // G117: provider credential config
	BaseURL        string
	MaxRetries     int
	RetryBaseDelay time.Duration
	CallTimeout    time.Duration
	MaxTokens      int
}

// EngineConfig holds session controller settings.
type EngineConfig struct {
	Workers          int
	FailureRatio     float64
	MaxInputTokens   int
	MinFailureSample int
}

// SyncConfig holds remote session store settings. An empty BaseURL disables
// synchronization endpoints at startup.
type SyncConfig struct {
	BaseURL string
	Token   string //nolint:gosec // G117: remote store credential config
}

// SlackConfig holds Slack notification settings. An empty token disables
// Slack notifications.
type SlackConfig struct {
	BotToken string
	Channel  string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("SONDA_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("SONDA_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("SONDA_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("SONDA_JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	refreshTTL, err := getEnvDuration("SONDA_JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("SONDA_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("SONDA_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	llmRetries, err := getEnvInt("SONDA_LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	llmRetryDelay, err := getEnvDuration("SONDA_LLM_RETRY_BASE_DELAY", time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	llmCallTimeout, err := getEnvDuration("SONDA_LLM_CALL_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	llmMaxTokens, err := getEnvInt("SONDA_LLM_MAX_TOKENS", 1024)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	workers, err := getEnvInt("SONDA_ENGINE_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	failureRatio, err := getEnvFloat("SONDA_ENGINE_FAILURE_RATIO", 0.5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxInputTokens, err := getEnvInt("SONDA_ENGINE_MAX_INPUT_TOKENS", 4096)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	minFailureSample, err := getEnvInt("SONDA_ENGINE_MIN_FAILURE_SAMPLE", 3)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("SONDA_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("SONDA_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("SONDA_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("SONDA_DB_USER", "sonda"),
			Password: getEnv("SONDA_DB_PASSWORD", ""),
			DBName:   getEnv("SONDA_DB_NAME", "sonda_dev"),
			SSLMode:  getEnv("SONDA_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("SONDA_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("SONDA_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:     getEnv("SONDA_JWT_SECRET", ""),
			AccessTTL:  accessTTL,
			RefreshTTL: refreshTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("SONDA_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		LLM: LLMConfig{
			APIKey:         getEnv("SONDA_LLM_API_KEY", ""),
			BaseURL:        getEnv("SONDA_LLM_BASE_URL", "https://api.openai.com/v1"),
			MaxRetries:     llmRetries,
			RetryBaseDelay: llmRetryDelay,
			CallTimeout:    llmCallTimeout,
			MaxTokens:      llmMaxTokens,
		},
		Engine: EngineConfig{
			Workers:          workers,
			FailureRatio:     failureRatio,
			MaxInputTokens:   maxInputTokens,
			MinFailureSample: minFailureSample,
		},
		Sync: SyncConfig{
			BaseURL: getEnv("SONDA_SYNC_BASE_URL", ""),
			Token:   getEnv("SONDA_SYNC_TOKEN", ""),
		},
		Slack: SlackConfig{
			BotToken: getEnv("SONDA_SLACK_BOT_TOKEN", ""),
			Channel:  getEnv("SONDA_SLACK_CHANNEL", "#sonda"),
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("SONDA_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("SONDA_JWT_SECRET must be at least 32 characters")
	}

	if c.LLM.APIKey == "" {
		return errors.New("SONDA_LLM_API_KEY is required")
	}

	// DB SSL mode warning for non-self-hosted deployments.
	if c.Database.SSLMode == "disable" && !c.SelfHosted {
		log.Warn().Msg("SONDA_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("SONDA_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("SONDA_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("SONDA_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.JWT.RefreshTTL <= 0 {
		return fmt.Errorf("SONDA_JWT_REFRESH_TTL must be positive, got %s", c.JWT.RefreshTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("SONDA_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("SONDA_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("SONDA_LLM_MAX_RETRIES must be >= 0, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.CallTimeout <= 0 {
		return fmt.Errorf("SONDA_LLM_CALL_TIMEOUT must be positive, got %s", c.LLM.CallTimeout)
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("SONDA_ENGINE_WORKERS must be >= 1, got %d", c.Engine.Workers)
	}
	if c.Engine.FailureRatio <= 0 || c.Engine.FailureRatio > 1 {
		return fmt.Errorf("SONDA_ENGINE_FAILURE_RATIO must be in (0,1], got %g", c.Engine.FailureRatio)
	}
	if c.Engine.MaxInputTokens < 1 {
		return fmt.Errorf("SONDA_ENGINE_MAX_INPUT_TOKENS must be >= 1, got %d", c.Engine.MaxInputTokens)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
