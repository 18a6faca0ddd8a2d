package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helper function tests
// ---------------------------------------------------------------------------

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string // nil = don't set; pointer to distinguish "" from unset
		fallback string
		want     string
	}{
		{name: "returns fallback when unset", key: "SONDA_TEST_GETENV_UNSET", setVal: nil, fallback: "default", want: "default"},
		{name: "returns env value when set", key: "SONDA_TEST_GETENV_SET", setVal: strPtr("custom"), fallback: "default", want: "custom"},
		{name: "returns fallback when empty string", key: "SONDA_TEST_GETENV_EMPTY", setVal: strPtr(""), fallback: "default", want: "default"},
		{name: "preserves whitespace", key: "SONDA_TEST_GETENV_WS", setVal: strPtr("  spaced  "), fallback: "x", want: "  spaced  "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got := getEnv(tc.key, tc.fallback)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback int
		want     int
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "SONDA_TEST_INT_UNSET", setVal: nil, fallback: 42, want: 42},
		{name: "parses valid int", key: "SONDA_TEST_INT_VALID", setVal: strPtr("8080"), fallback: 0, want: 8080},
		{name: "parses negative int", key: "SONDA_TEST_INT_NEG", setVal: strPtr("-1"), fallback: 0, want: -1},
		{name: "parses zero", key: "SONDA_TEST_INT_ZERO", setVal: strPtr("0"), fallback: 99, want: 0},
		{name: "returns fallback for empty string", key: "SONDA_TEST_INT_EMPTY", setVal: strPtr(""), fallback: 25, want: 25},
		{name: "errors on non-numeric", key: "SONDA_TEST_INT_NAN", setVal: strPtr("abc"), fallback: 0, wantErr: true},
		{name: "errors on float", key: "SONDA_TEST_INT_FLOAT", setVal: strPtr("3.14"), fallback: 0, wantErr: true},
		{name: "errors on hex", key: "SONDA_TEST_INT_HEX", setVal: strPtr("0xFF"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvInt(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback float64
		want     float64
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "SONDA_TEST_FLOAT_UNSET", setVal: nil, fallback: 0.5, want: 0.5},
		{name: "parses valid float", key: "SONDA_TEST_FLOAT_VALID", setVal: strPtr("0.75"), fallback: 0, want: 0.75},
		{name: "parses integer form", key: "SONDA_TEST_FLOAT_INT", setVal: strPtr("1"), fallback: 0, want: 1},
		{name: "returns fallback for empty string", key: "SONDA_TEST_FLOAT_EMPTY", setVal: strPtr(""), fallback: 0.25, want: 0.25},
		{name: "errors on non-numeric", key: "SONDA_TEST_FLOAT_NAN", setVal: strPtr("half"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvFloat(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback bool
		want     bool
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "SONDA_TEST_BOOL_UNSET", setVal: nil, fallback: false, want: false},
		{name: "fallback true when unset", key: "SONDA_TEST_BOOL_UNSETTRUE", setVal: nil, fallback: true, want: true},
		{name: "parses true", key: "SONDA_TEST_BOOL_TRUE", setVal: strPtr("true"), fallback: false, want: true},
		{name: "parses false", key: "SONDA_TEST_BOOL_FALSE", setVal: strPtr("false"), fallback: true, want: false},
		{name: "parses 1", key: "SONDA_TEST_BOOL_ONE", setVal: strPtr("1"), fallback: false, want: true},
		{name: "parses 0", key: "SONDA_TEST_BOOL_ZERO", setVal: strPtr("0"), fallback: true, want: false},
		{name: "parses TRUE uppercase", key: "SONDA_TEST_BOOL_UPPER", setVal: strPtr("TRUE"), fallback: false, want: true},
		{name: "parses t", key: "SONDA_TEST_BOOL_T", setVal: strPtr("t"), fallback: false, want: true},
		{name: "errors on invalid", key: "SONDA_TEST_BOOL_INV", setVal: strPtr("yes"), fallback: false, wantErr: true},
		{name: "errors on numeric non-bool", key: "SONDA_TEST_BOOL_NUM", setVal: strPtr("2"), fallback: false, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvBool(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		setVal   *string
		fallback time.Duration
		want     time.Duration
		wantErr  bool
	}{
		{name: "returns fallback when unset", key: "SONDA_TEST_DUR_UNSET", setVal: nil, fallback: 5 * time.Second, want: 5 * time.Second},
		{name: "parses seconds", key: "SONDA_TEST_DUR_SEC", setVal: strPtr("30s"), fallback: 0, want: 30 * time.Second},
		{name: "parses minutes", key: "SONDA_TEST_DUR_MIN", setVal: strPtr("15m"), fallback: 0, want: 15 * time.Minute},
		{name: "parses hours", key: "SONDA_TEST_DUR_HR", setVal: strPtr("2h"), fallback: 0, want: 2 * time.Hour},
		{name: "parses composite", key: "SONDA_TEST_DUR_COMP", setVal: strPtr("1h30m"), fallback: 0, want: 90 * time.Minute},
		{name: "parses zero", key: "SONDA_TEST_DUR_ZERO", setVal: strPtr("0s"), fallback: 5 * time.Second, want: 0},
		{name: "errors on invalid", key: "SONDA_TEST_DUR_INV", setVal: strPtr("notaduration"), fallback: 0, wantErr: true},
		{name: "errors on bare number", key: "SONDA_TEST_DUR_BARE", setVal: strPtr("30"), fallback: 0, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.setVal != nil {
				t.Setenv(tc.key, *tc.setVal)
			}

			got, err := getEnvDuration(tc.key, tc.fallback)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.key)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() error cases
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-that-is-at-least-32ch"
	testAPIKey    = "sk-test-api-key"
)

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("SONDA_LLM_API_KEY", testAPIKey)

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SONDA_JWT_SECRET")
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("SONDA_JWT_SECRET", testJWTSecret)

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SONDA_LLM_API_KEY")
}

func TestLoad_InvalidEnvVars(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		errMsg string
	}{
		// DB_PORT parse errors
		{name: "DB_PORT not a number", envKey: "SONDA_DB_PORT", envVal: "abc", errMsg: "SONDA_DB_PORT"},
		{name: "DB_PORT float", envKey: "SONDA_DB_PORT", envVal: "3.14", errMsg: "SONDA_DB_PORT"},

		// DB_PORT validation errors (parses fine, fails bounds)
		{name: "DB_PORT zero", envKey: "SONDA_DB_PORT", envVal: "0", errMsg: "SONDA_DB_PORT"},
		{name: "DB_PORT negative", envKey: "SONDA_DB_PORT", envVal: "-1", errMsg: "SONDA_DB_PORT"},
		{name: "DB_PORT too high", envKey: "SONDA_DB_PORT", envVal: "65536", errMsg: "SONDA_DB_PORT"},

		// DB_MAX_CONNS
		{name: "DB_MAX_CONNS zero", envKey: "SONDA_DB_MAX_CONNS", envVal: "0", errMsg: "SONDA_DB_MAX_CONNS"},
		{name: "DB_MAX_CONNS negative", envKey: "SONDA_DB_MAX_CONNS", envVal: "-5", errMsg: "SONDA_DB_MAX_CONNS"},
		{name: "DB_MAX_CONNS not a number", envKey: "SONDA_DB_MAX_CONNS", envVal: "many", errMsg: "SONDA_DB_MAX_CONNS"},

		// JWT durations
		{name: "JWT_ACCESS_TTL invalid", envKey: "SONDA_JWT_ACCESS_TTL", envVal: "badval", errMsg: "SONDA_JWT_ACCESS_TTL"},
		{name: "JWT_REFRESH_TTL invalid", envKey: "SONDA_JWT_REFRESH_TTL", envVal: "badval", errMsg: "SONDA_JWT_REFRESH_TTL"},
		{name: "JWT_ACCESS_TTL zero", envKey: "SONDA_JWT_ACCESS_TTL", envVal: "0s", errMsg: "SONDA_JWT_ACCESS_TTL"},
		{name: "JWT_REFRESH_TTL zero", envKey: "SONDA_JWT_REFRESH_TTL", envVal: "0s", errMsg: "SONDA_JWT_REFRESH_TTL"},

		// Server timeouts
		{name: "SERVER_READ_TIMEOUT invalid", envKey: "SONDA_SERVER_READ_TIMEOUT", envVal: "notduration", errMsg: "SONDA_SERVER_READ_TIMEOUT"},
		{name: "SERVER_WRITE_TIMEOUT invalid", envKey: "SONDA_SERVER_WRITE_TIMEOUT", envVal: "notduration", errMsg: "SONDA_SERVER_WRITE_TIMEOUT"},
		{name: "SERVER_READ_TIMEOUT zero", envKey: "SONDA_SERVER_READ_TIMEOUT", envVal: "0s", errMsg: "SONDA_SERVER_READ_TIMEOUT"},
		{name: "SERVER_WRITE_TIMEOUT zero", envKey: "SONDA_SERVER_WRITE_TIMEOUT", envVal: "0s", errMsg: "SONDA_SERVER_WRITE_TIMEOUT"},

		// Redis DB
		{name: "REDIS_DB not a number", envKey: "SONDA_REDIS_DB", envVal: "abc", errMsg: "SONDA_REDIS_DB"},

		// LLM
		{name: "LLM_MAX_RETRIES negative", envKey: "SONDA_LLM_MAX_RETRIES", envVal: "-1", errMsg: "SONDA_LLM_MAX_RETRIES"},
		{name: "LLM_CALL_TIMEOUT zero", envKey: "SONDA_LLM_CALL_TIMEOUT", envVal: "0s", errMsg: "SONDA_LLM_CALL_TIMEOUT"},
		{name: "LLM_RETRY_BASE_DELAY invalid", envKey: "SONDA_LLM_RETRY_BASE_DELAY", envVal: "soon", errMsg: "SONDA_LLM_RETRY_BASE_DELAY"},

		// Engine
		{name: "ENGINE_WORKERS zero", envKey: "SONDA_ENGINE_WORKERS", envVal: "0", errMsg: "SONDA_ENGINE_WORKERS"},
		{name: "ENGINE_FAILURE_RATIO zero", envKey: "SONDA_ENGINE_FAILURE_RATIO", envVal: "0", errMsg: "SONDA_ENGINE_FAILURE_RATIO"},
		{name: "ENGINE_FAILURE_RATIO above one", envKey: "SONDA_ENGINE_FAILURE_RATIO", envVal: "1.5", errMsg: "SONDA_ENGINE_FAILURE_RATIO"},
		{name: "ENGINE_FAILURE_RATIO not a number", envKey: "SONDA_ENGINE_FAILURE_RATIO", envVal: "half", errMsg: "SONDA_ENGINE_FAILURE_RATIO"},
		{name: "ENGINE_MAX_INPUT_TOKENS zero", envKey: "SONDA_ENGINE_MAX_INPUT_TOKENS", envVal: "0", errMsg: "SONDA_ENGINE_MAX_INPUT_TOKENS"},

		// Self-hosted
		{name: "SELF_HOSTED not a bool", envKey: "SONDA_SELF_HOSTED", envVal: "yes", errMsg: "SONDA_SELF_HOSTED"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Always set required vars so failures are from the var under test.
			t.Setenv("SONDA_JWT_SECRET", testJWTSecret)
			t.Setenv("SONDA_LLM_API_KEY", testAPIKey)
			t.Setenv(tc.envKey, tc.envVal)

			cfg, err := Load()
			require.Error(t, err, "expected error for %s=%q", tc.envKey, tc.envVal)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

// ---------------------------------------------------------------------------
// Load() happy paths
// ---------------------------------------------------------------------------

func TestLoad_Defaults(t *testing.T) {
	// Only the required secrets are set; everything else uses defaults.
	t.Setenv("SONDA_JWT_SECRET", testJWTSecret)
	t.Setenv("SONDA_LLM_API_KEY", testAPIKey)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "sonda", cfg.Database.User)
	assert.Empty(t, cfg.Database.Password)
	assert.Equal(t, "sonda_dev", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxConns)

	// Redis defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	// JWT defaults.
	assert.Equal(t, testJWTSecret, cfg.JWT.Secret)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshTTL)

	// Server defaults.
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)

	// LLM defaults.
	assert.Equal(t, testAPIKey, cfg.LLM.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.RetryBaseDelay)
	assert.Equal(t, 60*time.Second, cfg.LLM.CallTimeout)
	assert.Equal(t, 1024, cfg.LLM.MaxTokens)

	// Engine defaults.
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.InDelta(t, 0.5, cfg.Engine.FailureRatio, 1e-9)
	assert.Equal(t, 4096, cfg.Engine.MaxInputTokens)
	assert.Equal(t, 3, cfg.Engine.MinFailureSample)

	// Sync defaults: disabled.
	assert.Empty(t, cfg.Sync.BaseURL)
	assert.Empty(t, cfg.Sync.Token)

	// Slack defaults: disabled.
	assert.Empty(t, cfg.Slack.BotToken)
	assert.Equal(t, "#sonda", cfg.Slack.Channel)

	// Self-hosted default.
	assert.False(t, cfg.SelfHosted)
}

func TestLoad_AllCustomValues(t *testing.T) {
	envs := map[string]string{
		// Database
		"SONDA_DB_HOST":      "db.prod.internal",
		"SONDA_DB_PORT":      "5433",
		"SONDA_DB_USER":      "prod_user",
		"SONDA_DB_PASSWORD":  "s3cret!",
		"SONDA_DB_NAME":      "sonda_prod",
		"SONDA_DB_SSLMODE":   "require",
		"SONDA_DB_MAX_CONNS": "50",
		// Redis
		"SONDA_REDIS_ADDR":     "redis.prod:6380",
		"SONDA_REDIS_PASSWORD": "redis-pass",
		"SONDA_REDIS_DB":       "3",
		// JWT
		"SONDA_JWT_SECRET":      "prod-jwt-secret-256-bits-long!!!",
		"SONDA_JWT_ACCESS_TTL":  "30m",
		"SONDA_JWT_REFRESH_TTL": "72h",
		// Server
		"SONDA_SERVER_ADDR":          ":9090",
		"SONDA_SERVER_READ_TIMEOUT":  "5s",
		"SONDA_SERVER_WRITE_TIMEOUT": "15s",
		// LLM
		"SONDA_LLM_API_KEY":          "sk-prod-key",
		"SONDA_LLM_BASE_URL":         "https://llm.internal/v1",
		"SONDA_LLM_MAX_RETRIES":      "5",
		"SONDA_LLM_RETRY_BASE_DELAY": "2s",
		"SONDA_LLM_CALL_TIMEOUT":     "90s",
		"SONDA_LLM_MAX_TOKENS":       "2048",
		// Engine
		"SONDA_ENGINE_WORKERS":            "8",
		"SONDA_ENGINE_FAILURE_RATIO":      "0.25",
		"SONDA_ENGINE_MAX_INPUT_TOKENS":   "8192",
		"SONDA_ENGINE_MIN_FAILURE_SAMPLE": "5",
		// Sync
		"SONDA_SYNC_BASE_URL": "https://central.sonda.example",
		"SONDA_SYNC_TOKEN":    "remote-token",
		// Slack
		"SONDA_SLACK_BOT_TOKEN": "xoxb-test",
		"SONDA_SLACK_CHANNEL":   "#polling-ops",
		// Self-hosted
		"SONDA_SELF_HOSTED": "true",
	}

	for k, v := range envs {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Database
	assert.Equal(t, "db.prod.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "prod_user", cfg.Database.User)
	assert.Equal(t, "s3cret!", cfg.Database.Password)
	assert.Equal(t, "sonda_prod", cfg.Database.DBName)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 50, cfg.Database.MaxConns)

	// Redis
	assert.Equal(t, "redis.prod:6380", cfg.Redis.Addr)
	assert.Equal(t, "redis-pass", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.DB)

	// JWT
	assert.Equal(t, "prod-jwt-secret-256-bits-long!!!", cfg.JWT.Secret)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 72*time.Hour, cfg.JWT.RefreshTTL)

	// Server
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)

	// LLM
	assert.Equal(t, "sk-prod-key", cfg.LLM.APIKey)
	assert.Equal(t, "https://llm.internal/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.LLM.RetryBaseDelay)
	assert.Equal(t, 90*time.Second, cfg.LLM.CallTimeout)
	assert.Equal(t, 2048, cfg.LLM.MaxTokens)

	// Engine
	assert.Equal(t, 8, cfg.Engine.Workers)
	assert.InDelta(t, 0.25, cfg.Engine.FailureRatio, 1e-9)
	assert.Equal(t, 8192, cfg.Engine.MaxInputTokens)
	assert.Equal(t, 5, cfg.Engine.MinFailureSample)

	// Sync
	assert.Equal(t, "https://central.sonda.example", cfg.Sync.BaseURL)
	assert.Equal(t, "remote-token", cfg.Sync.Token)

	// Slack
	assert.Equal(t, "xoxb-test", cfg.Slack.BotToken)
	assert.Equal(t, "#polling-ops", cfg.Slack.Channel)

	// Self-hosted
	assert.True(t, cfg.SelfHosted)
}

// ---------------------------------------------------------------------------
// DSN() output format
// ---------------------------------------------------------------------------

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "default dev values",
			cfg: DatabaseConfig{
				Host: "localhost", Port: 5432, User: "sonda",
				Password: "", DBName: "sonda_dev", SSLMode: "disable",
			},
			want: "host=localhost port=5432 user=sonda password= dbname=sonda_dev sslmode=disable",
		},
		{
			name: "production values",
			cfg: DatabaseConfig{
				Host: "db.prod", Port: 5433, User: "admin",
				Password: "p@ss!", DBName: "sonda_prod", SSLMode: "require",
			},
			want: "host=db.prod port=5433 user=admin password=p@ss! dbname=sonda_prod sslmode=require",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.cfg.DSN())
		})
	}
}

// ---------------------------------------------------------------------------
// validate() direct tests
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	t.Parallel()

	// validBase returns a Config that passes validation.
	validBase := func() *Config {
		return &Config{
			Database: DatabaseConfig{Port: 5432, MaxConns: 25},
			JWT: JWTConfig{
				Secret:     testJWTSecret,
				AccessTTL:  15 * time.Minute,
				RefreshTTL: 7 * 24 * time.Hour,
			},
			Server: ServerConfig{
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			},
			LLM: LLMConfig{
				APIKey:      testAPIKey,
				MaxRetries:  3,
				CallTimeout: time.Minute,
			},
			Engine: EngineConfig{
				Workers:        4,
				FailureRatio:   0.5,
				MaxInputTokens: 4096,
			},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, validBase().validate())
	})

	t.Run("empty JWT secret fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.Secret = ""
		assert.ErrorContains(t, c.validate(), "SONDA_JWT_SECRET")
	})

	t.Run("JWT secret too short fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.Secret = "only-31-characters-long-secret!"
		assert.ErrorContains(t, c.validate(), "SONDA_JWT_SECRET")
	})

	t.Run("JWT secret exactly 32 chars passes", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.Secret = "exactly-32-characters-long-sec!!"
		assert.NoError(t, c.validate())
	})

	t.Run("missing API key fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.LLM.APIKey = ""
		assert.ErrorContains(t, c.validate(), "SONDA_LLM_API_KEY")
	})

	t.Run("port 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.Port = 0
		assert.ErrorContains(t, c.validate(), "SONDA_DB_PORT")
	})

	t.Run("port 65535 passes", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.Port = 65535
		assert.NoError(t, c.validate())
	})

	t.Run("MaxConns 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Database.MaxConns = 0
		assert.ErrorContains(t, c.validate(), "SONDA_DB_MAX_CONNS")
	})

	t.Run("AccessTTL 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.AccessTTL = 0
		assert.ErrorContains(t, c.validate(), "SONDA_JWT_ACCESS_TTL")
	})

	t.Run("RefreshTTL negative fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.JWT.RefreshTTL = -time.Minute
		assert.ErrorContains(t, c.validate(), "SONDA_JWT_REFRESH_TTL")
	})

	t.Run("ReadTimeout 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Server.ReadTimeout = 0
		assert.ErrorContains(t, c.validate(), "SONDA_SERVER_READ_TIMEOUT")
	})

	t.Run("WriteTimeout 0 fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Server.WriteTimeout = 0
		assert.ErrorContains(t, c.validate(), "SONDA_SERVER_WRITE_TIMEOUT")
	})

	t.Run("negative retries fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.LLM.MaxRetries = -1
		assert.ErrorContains(t, c.validate(), "SONDA_LLM_MAX_RETRIES")
	})

	t.Run("zero workers fails", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Engine.Workers = 0
		assert.ErrorContains(t, c.validate(), "SONDA_ENGINE_WORKERS")
	})

	t.Run("failure ratio of exactly 1 passes", func(t *testing.T) {
		t.Parallel()
		c := validBase()
		c.Engine.FailureRatio = 1
		assert.NoError(t, c.validate())
	})
}

// ---------------------------------------------------------------------------
// Test helper
// ---------------------------------------------------------------------------

func strPtr(s string) *string {
	return &s
}
