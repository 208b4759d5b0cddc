package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type (
	// Settings holds everything the service reads at startup
	Settings struct {
		// API server
		APIHost  string
		APIPort  int
		LogLevel string

		// Persistence
		DatabasePath string
		Checkpoints  bool

		LLM LLMSettings

		// Completion links sent to observers; "{id}" is replaced with
		// the flow id
		AppURLTemplate     string
		PreviewURLTemplate string

		// Runs
		DefaultEditFlowID string
		RunTimeout        time.Duration
		ShutdownTimeout   time.Duration
		MaxConcurrentRuns int

		NotifyBufferSize int
		Redis            RedisSettings
		Artifacts        ArtifactSettings

		Metrics bool
		Tracing bool
	}

	// LLMSettings selects and tunes the completion provider
	LLMSettings struct {
		Provider    string
		Model       string
		APIKey      string
		BaseURL     string
		Timeout     time.Duration
		MaxAttempts int
	}

	// RedisSettings configures the optional notification relay. An empty
	// Addr disables it
	RedisSettings struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	// ArtifactSettings configures the optional blob export. An empty
	// BucketURL disables it
	ArtifactSettings struct {
		BucketURL string
		Prefix    string
	}
)

const (
	DefaultAPIHost           = "0.0.0.0"
	DefaultAPIPort           = 8000
	DefaultDatabasePath      = "db/database.db"
	DefaultLLMProvider       = "openai"
	DefaultLLMModel          = "gpt-4o-mini"
	DefaultLLMTimeout        = 2 * time.Minute
	DefaultLLMMaxAttempts    = 3
	DefaultEditFlowID        = "default-project-123456"
	DefaultRunTimeout        = 10 * time.Minute
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultMaxConcurrentRuns = 0
	DefaultNotifyBufferSize  = 64
	DefaultRedisPrefix       = "appforge"
	DefaultAppURLTemplate    = "http://localhost:5174/?id={id}"
	DefaultPreviewURL        = "http://localhost:8000/project/preview/?id={id}"

	MaxTCPPort             = 65535
	MaxConcurrentRunsLimit = 10_000
	MaxNotifyBufferSize    = 1_000_000
	MaxLLMAttempts         = 20
	MaxRedisDB             = 15
	maxDurationInSeconds   = int64(7 * 24 * time.Hour / time.Second)
)

var (
	ErrInvalidAPIPort     = errors.New("invalid API port")
	ErrInvalidLLMProvider = errors.New("invalid llm provider")
	ErrMissingAPIKey      = errors.New("openai provider requires an api key")
	ErrInvalidRunTimeout  = errors.New("run timeout cannot be negative")
	ErrInvalidBufferSize  = errors.New("notify buffer size must be positive")
	ErrInvalidLogLevel    = errors.New("invalid log level")
)

var providers = map[string]bool{
	"openai":     true,
	"claude-cli": true,
	"mock":       true,
}

// NewDefaultSettings returns settings that run a local service against a
// SQLite file and OpenAI
func NewDefaultSettings() *Settings {
	return &Settings{
		APIHost:      DefaultAPIHost,
		APIPort:      DefaultAPIPort,
		LogLevel:     "info",
		DatabasePath: DefaultDatabasePath,
		Checkpoints:  true,
		LLM: LLMSettings{
			Provider:    DefaultLLMProvider,
			Model:       DefaultLLMModel,
			Timeout:     DefaultLLMTimeout,
			MaxAttempts: DefaultLLMMaxAttempts,
		},
		AppURLTemplate:     DefaultAppURLTemplate,
		PreviewURLTemplate: DefaultPreviewURL,
		DefaultEditFlowID:  DefaultEditFlowID,
		RunTimeout:         DefaultRunTimeout,
		ShutdownTimeout:    DefaultShutdownTimeout,
		MaxConcurrentRuns:  DefaultMaxConcurrentRuns,
		NotifyBufferSize:   DefaultNotifyBufferSize,
		Redis: RedisSettings{
			Prefix: DefaultRedisPrefix,
		},
	}
}

// Load reads settings with Read and validates the result
func Load(path string) (*Settings, error) {
	s, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Read builds settings from defaults, then the optional file at path, then
// the environment. The result is not validated
func Read(path string) (*Settings, error) {
	s := NewDefaultSettings()
	if path != "" {
		v, err := FromFile(path)
		if err != nil {
			return nil, err
		}
		s.Apply(v)
	}
	if err := s.LoadFromEnv(); err != nil {
		return nil, err
	}
	return s, nil
}

// Apply overlays values present in v. Missing keys keep their current value
func (s *Settings) Apply(v Values) {
	s.APIHost = v.String("api_host", s.APIHost)
	s.APIPort = v.Int("api_port", s.APIPort)
	s.LogLevel = v.String("log_level", s.LogLevel)
	s.DatabasePath = v.String("database_path", s.DatabasePath)
	s.Checkpoints = v.Bool("checkpoints", s.Checkpoints)

	llm := v.Sub("llm")
	s.LLM.Provider = llm.String("provider", s.LLM.Provider)
	s.LLM.Model = llm.String("model", s.LLM.Model)
	s.LLM.APIKey = llm.String("api_key", s.LLM.APIKey)
	s.LLM.BaseURL = llm.String("base_url", s.LLM.BaseURL)
	s.LLM.Timeout = llm.Duration("timeout", s.LLM.Timeout)
	s.LLM.MaxAttempts = llm.Int("max_attempts", s.LLM.MaxAttempts)

	s.AppURLTemplate = v.String("app_url_template", s.AppURLTemplate)
	s.PreviewURLTemplate = v.String(
		"preview_url_template", s.PreviewURLTemplate,
	)
	s.DefaultEditFlowID = v.String(
		"default_edit_flow_id", s.DefaultEditFlowID,
	)
	s.RunTimeout = v.Duration("run_timeout", s.RunTimeout)
	s.ShutdownTimeout = v.Duration("shutdown_timeout", s.ShutdownTimeout)
	s.MaxConcurrentRuns = v.Int("max_concurrent_runs", s.MaxConcurrentRuns)
	s.NotifyBufferSize = v.Int("notify.buffer_size", s.NotifyBufferSize)

	redis := v.Sub("redis")
	s.Redis.Addr = redis.String("addr", s.Redis.Addr)
	s.Redis.Password = redis.String("password", s.Redis.Password)
	s.Redis.DB = redis.Int("db", s.Redis.DB)
	s.Redis.Prefix = redis.String("prefix", s.Redis.Prefix)

	s.Artifacts.BucketURL = v.String(
		"artifacts.bucket_url", s.Artifacts.BucketURL,
	)
	s.Artifacts.Prefix = v.String("artifacts.prefix", s.Artifacts.Prefix)

	s.Metrics = v.Bool("metrics", s.Metrics)
	s.Tracing = v.Bool("tracing", s.Tracing)
}

// LoadFromEnv overlays environment variables. Returns an error if any set
// variable cannot be parsed
func (s *Settings) LoadFromEnv() error {
	loadEnvString("API_HOST", &s.APIHost)
	loadEnvString("LOG_LEVEL", &s.LogLevel)
	loadEnvString("DATABASE_PATH", &s.DatabasePath)
	loadEnvString("LLM_PROVIDER", &s.LLM.Provider)
	loadEnvString("LLM_MODEL", &s.LLM.Model)
	loadEnvString("OPENAI_API_KEY", &s.LLM.APIKey)
	loadEnvString("LLM_BASE_URL", &s.LLM.BaseURL)
	loadEnvString("APP_URL_TEMPLATE", &s.AppURLTemplate)
	loadEnvString("PREVIEW_URL_TEMPLATE", &s.PreviewURLTemplate)
	loadEnvString("DEFAULT_EDIT_FLOW_ID", &s.DefaultEditFlowID)
	loadEnvString("REDIS_ADDR", &s.Redis.Addr)
	loadEnvString("REDIS_PASSWORD", &s.Redis.Password)
	loadEnvString("REDIS_PREFIX", &s.Redis.Prefix)
	loadEnvString("ARTIFACTS_BUCKET_URL", &s.Artifacts.BucketURL)
	loadEnvString("ARTIFACTS_PREFIX", &s.Artifacts.Prefix)

	ints := []struct {
		key      string
		dst      *int
		min, max int
	}{
		{"API_PORT", &s.APIPort, 0, MaxTCPPort},
		{"LLM_MAX_ATTEMPTS", &s.LLM.MaxAttempts, 0, MaxLLMAttempts},
		{"MAX_CONCURRENT_RUNS", &s.MaxConcurrentRuns, -1, MaxConcurrentRunsLimit},
		{"NOTIFY_BUFFER_SIZE", &s.NotifyBufferSize, 0, MaxNotifyBufferSize},
		{"REDIS_DB", &s.Redis.DB, -1, MaxRedisDB},
	}
	for _, i := range ints {
		if err := loadEnvInt(i.key, i.dst, i.min, i.max); err != nil {
			return err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"LLM_TIMEOUT", &s.LLM.Timeout},
		{"RUN_TIMEOUT", &s.RunTimeout},
		{"SHUTDOWN_TIMEOUT", &s.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := loadEnvDuration(d.key, d.dst); err != nil {
			return err
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"CHECKPOINTS", &s.Checkpoints},
		{"METRICS", &s.Metrics},
		{"TRACING", &s.Tracing},
	}
	for _, b := range bools {
		if err := loadEnvBool(b.key, b.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that all settings are usable
func (s *Settings) Validate() error {
	if s.APIPort <= 0 || s.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, s.APIPort)
	}
	if !providers[s.LLM.Provider] {
		return fmt.Errorf("%w: %q", ErrInvalidLLMProvider, s.LLM.Provider)
	}
	if s.LLM.Provider == "openai" && s.LLM.APIKey == "" {
		return ErrMissingAPIKey
	}
	if s.RunTimeout < 0 {
		return ErrInvalidRunTimeout
	}
	if s.NotifyBufferSize <= 0 {
		return ErrInvalidBufferSize
	}
	if _, err := s.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel
func (s *Settings) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s.LogLevel)
	}
	return lvl, nil
}

// Address is the host:port the API listens on
func (s *Settings) Address() string {
	return fmt.Sprintf("%s:%d", s.APIHost, s.APIPort)
}

func loadEnvString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// loadEnvInt sets *dst from key if the value is in the range (min, max]
func loadEnvInt(key string, dst *int, min, max int) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	if v <= min || v > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, v, min+1, max)
	}
	*dst = v
	return nil
}

// loadEnvDuration accepts a duration string or a whole number of seconds
func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return fmt.Errorf("invalid %s: %q is negative", key, s)
		}
		*dst = d
		return nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs < 0 || secs > maxDurationInSeconds {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = time.Duration(secs) * time.Second
	return nil
}

func loadEnvBool(key string, dst *bool) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = b
	return nil
}
