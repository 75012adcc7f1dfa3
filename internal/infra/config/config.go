package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DevelopmentSecret signs tokens when no JWT secret is configured.
const DevelopmentSecret = "eldertech-development-secret"

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	LLM      LLMConfig      `yaml:"llm"`
	Auth     AuthConfig     `yaml:"auth"`
	Chat     ChatConfig     `yaml:"chat"`
	Speech   SpeechConfig   `yaml:"speech"`
	FAQ      FAQConfig      `yaml:"faq"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address         string          `yaml:"address"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	AllowedOrigins  []string        `yaml:"allowedOrigins"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	Retry           RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// LLMConfig contains ChatGPT/OpenAI settings.
type LLMConfig struct {
	APIKey         string  `yaml:"apiKey"`
	BaseURL        string  `yaml:"baseUrl"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embeddingModel"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"maxTokens"`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	Secret          string        `yaml:"secret"`
	TokenTTL        time.Duration `yaml:"tokenTtl"`
	RefreshTokenTTL time.Duration `yaml:"refreshTokenTtl"`
	AdminEmails     []string      `yaml:"adminEmails"`
}

// ChatConfig shapes assistant conversations.
type ChatConfig struct {
	SystemPrompt     string `yaml:"systemPrompt"`
	HistoryMessages  int    `yaml:"historyMessages"`
	MaxHistoryTokens int    `yaml:"maxHistoryTokens"`
	TitleLength      int    `yaml:"titleLength"`
}

// SpeechConfig selects the audio models.
type SpeechConfig struct {
	TranscriptionModel string        `yaml:"transcriptionModel"`
	SpeechModel        string        `yaml:"speechModel"`
	DefaultVoice       string        `yaml:"defaultVoice"`
	MaxAudioBytes      int64         `yaml:"maxAudioBytes"`
	MaxTextLength      int           `yaml:"maxTextLength"`
	Timeout            time.Duration `yaml:"timeout"`
}

// FAQConfig controls the knowledge base and its backing stores.
type FAQConfig struct {
	Prompt              string         `yaml:"prompt"`
	CacheTTL            time.Duration  `yaml:"cacheTtl"`
	TopRecommendations  int            `yaml:"topRecommendations"`
	SimilarityThreshold float64        `yaml:"similarityThreshold"`
	LexicalThreshold    float64        `yaml:"lexicalThreshold"`
	DefaultListLimit    int            `yaml:"defaultListLimit"`
	MaxListLimit        int            `yaml:"maxListLimit"`
	Redis               RedisConfig    `yaml:"redis"`
	Postgres            PostgresConfig `yaml:"postgres"`
	SQLite              SQLiteConfig   `yaml:"sqlite"`
}

// RedisConfig contains connection information for cache storage.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	QueueKey string `yaml:"queueKey"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// SQLiteConfig points at the local database file used when Postgres is not configured.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// AnalysisConfig drives the FAQ clustering and gap analysis job.
type AnalysisConfig struct {
	Enabled               bool          `yaml:"enabled"`
	SimilarityThreshold   float64       `yaml:"similarityThreshold"`
	CoverageThreshold     float64       `yaml:"coverageThreshold"`
	FrequencyWeight       float64       `yaml:"frequencyWeight"`
	FeedbackWeight        float64       `yaml:"feedbackWeight"`
	RecencyWeight         float64       `yaml:"recencyWeight"`
	RecencyHalfLife       time.Duration `yaml:"recencyHalfLife"`
	TimeBudget            time.Duration `yaml:"timeBudget"`
	Workers               int           `yaml:"workers"`
	MinCategoryEntries    int           `yaml:"minCategoryEntries"`
	QueryWindow           time.Duration `yaml:"queryWindow"`
	LowPriorityThreshold  float64       `yaml:"lowPriorityThreshold"`
	LowPriorityMinEntries int           `yaml:"lowPriorityMinEntries"`
	ScheduleInterval      time.Duration `yaml:"scheduleInterval"`
	RunOnStart            bool          `yaml:"runOnStart"`
	ReportTTL             time.Duration `yaml:"reportTtl"`
}

// StorageConfig points at the S3 compatible bucket receiving archived reports.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.HTTP.Address, "HTTP_ADDRESS")
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	setBool(&cfg.HTTP.RateLimit.Enabled, "HTTP_RATE_LIMIT_ENABLED")
	setInt(&cfg.HTTP.RateLimit.RequestsPerMinute, "HTTP_RATE_LIMIT_RPM")
	setInt(&cfg.HTTP.RateLimit.Burst, "HTTP_RATE_LIMIT_BURST")
	setBool(&cfg.HTTP.Retry.Enabled, "HTTP_RETRY_ENABLED")
	setInt(&cfg.HTTP.Retry.MaxAttempts, "HTTP_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.HTTP.Retry.BaseBackoff, "HTTP_RETRY_BASE_BACKOFF")

	setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "OPENAI_MODEL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.LLM.Temperature = float32(parsed)
		}
	}

	setString(&cfg.Auth.Secret, "JWT_SECRET_KEY")
	if v := os.Getenv("JWT_ACCESS_TOKEN_EXPIRE_MINUTES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Auth.TokenTTL = time.Duration(parsed) * time.Minute
		}
	}
	if v := os.Getenv("ADMIN_EMAILS"); v != "" {
		cfg.Auth.AdminEmails = splitList(v)
	}

	setString(&cfg.FAQ.Prompt, "FAQ_PROMPT")
	setDuration(&cfg.FAQ.CacheTTL, "FAQ_CACHE_TTL")
	setInt(&cfg.FAQ.TopRecommendations, "FAQ_RECOMMENDATIONS")
	setFloat(&cfg.FAQ.SimilarityThreshold, "FAQ_SIMILARITY_THRESHOLD")
	setBool(&cfg.FAQ.Redis.Enabled, "FAQ_REDIS_ENABLED")
	setString(&cfg.FAQ.Redis.Addr, "FAQ_REDIS_ADDR")
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.FAQ.Redis.Enabled = true
		cfg.FAQ.Redis.Addr = v
	}
	applyDatabaseURL(cfg, os.Getenv("DATABASE_URL"))
	setString(&cfg.FAQ.Postgres.DSN, "FAQ_POSTGRES_DSN")
	if v := os.Getenv("FAQ_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.FAQ.Postgres.MaxConns = int32(parsed)
		}
	}
	setString(&cfg.FAQ.SQLite.Path, "FAQ_SQLITE_PATH")

	setBool(&cfg.Analysis.Enabled, "ENABLE_FAQ_CLUSTERING")
	setFloat(&cfg.Analysis.SimilarityThreshold, "FAQ_ANALYSIS_SIMILARITY_THRESHOLD")
	setFloat(&cfg.Analysis.CoverageThreshold, "FAQ_ANALYSIS_COVERAGE_THRESHOLD")
	setDuration(&cfg.Analysis.TimeBudget, "FAQ_ANALYSIS_TIME_BUDGET")
	setDuration(&cfg.Analysis.ScheduleInterval, "FAQ_ANALYSIS_INTERVAL")
	setBool(&cfg.Analysis.RunOnStart, "FAQ_ANALYSIS_RUN_ON_START")
	setInt(&cfg.Analysis.Workers, "FAQ_ANALYSIS_WORKERS")

	setString(&cfg.Storage.Endpoint, "R2_ENDPOINT")
	setString(&cfg.Storage.AccessKey, "R2_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretKey, "R2_SECRET_ACCESS_KEY")
	setString(&cfg.Storage.Bucket, "R2_BUCKET")
	setString(&cfg.Storage.Region, "R2_REGION")

	setBool(&cfg.Metrics.Enabled, "METRICS_ENABLED")
}

// applyDatabaseURL routes the single DATABASE_URL setting to the matching backend.
func applyDatabaseURL(cfg *Config, raw string) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
	case strings.HasPrefix(raw, "sqlite://"):
		// sqlite:///relative.db and sqlite:////abs/file.db, one slash belongs to the scheme.
		cfg.FAQ.SQLite.Path = strings.TrimPrefix(strings.TrimPrefix(raw, "sqlite://"), "/")
		cfg.FAQ.Postgres.DSN = ""
	default:
		cfg.FAQ.Postgres.DSN = raw
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"http://localhost:3000"},
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/chat/messages",
					"/api/v1/chat/messages/stream",
					"/api/v1/admin/faq-analysis/runs",
				},
			},
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.7,
			MaxTokens:      500,
		},
		Auth: AuthConfig{
			Secret:          DevelopmentSecret,
			TokenTTL:        30 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Chat: ChatConfig{
			SystemPrompt:     "You are ElderTech, a friendly and patient assistant for older adults. Use simple words and short sentences, explain technology step by step, and be warm and encouraging. If a question concerns health or safety, suggest contacting a doctor, family member or emergency services when appropriate.",
			HistoryMessages:  10,
			MaxHistoryTokens: 2000,
			TitleLength:      50,
		},
		Speech: SpeechConfig{
			TranscriptionModel: "whisper-1",
			SpeechModel:        "tts-1",
			DefaultVoice:       "alloy",
			MaxAudioBytes:      25 << 20,
			MaxTextLength:      4096,
			Timeout:            60 * time.Second,
		},
		FAQ: FAQConfig{
			Prompt:              "You are ElderTech's help desk. Answer the question in plain language suitable for older adults, in at most five short sentences.",
			CacheTTL:            6 * time.Hour,
			TopRecommendations:  10,
			SimilarityThreshold: 0.3,
			LexicalThreshold:    0.5,
			DefaultListLimit:    50,
			MaxListLimit:        200,
			Redis: RedisConfig{
				QueueKey: "eldertech:jobs",
			},
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
			SQLite: SQLiteConfig{
				Path: "./eldertech.db",
			},
		},
		Analysis: AnalysisConfig{
			Enabled:               true,
			SimilarityThreshold:   0.7,
			CoverageThreshold:     0.5,
			FrequencyWeight:       0.5,
			FeedbackWeight:        0.3,
			RecencyWeight:         0.2,
			RecencyHalfLife:       7 * 24 * time.Hour,
			TimeBudget:            2 * time.Minute,
			Workers:               4,
			MinCategoryEntries:    3,
			QueryWindow:           30 * 24 * time.Hour,
			LowPriorityThreshold:  2,
			LowPriorityMinEntries: 5,
			ScheduleInterval:      24 * time.Hour,
			ReportTTL:             0,
		},
		Storage: StorageConfig{
			Region: "auto",
			Prefix: "faq-analysis",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("llm.model cannot be empty")
	}
	if strings.TrimSpace(c.LLM.EmbeddingModel) == "" {
		return errors.New("llm.embeddingModel cannot be empty")
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret cannot be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.tokenTtl must be positive")
	}
	if c.Auth.RefreshTokenTTL < c.Auth.TokenTTL {
		return errors.New("auth.refreshTokenTtl cannot be shorter than auth.tokenTtl")
	}
	if c.Chat.HistoryMessages < 0 {
		return errors.New("chat.historyMessages cannot be negative")
	}
	if c.Speech.MaxAudioBytes < 0 {
		return errors.New("speech.maxAudioBytes cannot be negative")
	}
	if c.FAQ.Prompt == "" {
		return errors.New("faq.prompt cannot be empty")
	}
	if c.FAQ.CacheTTL < 0 {
		return errors.New("faq.cacheTtl cannot be negative")
	}
	if c.FAQ.TopRecommendations < 0 {
		return errors.New("faq.topRecommendations cannot be negative")
	}
	if c.FAQ.SimilarityThreshold < 0 {
		return errors.New("faq.similarityThreshold must be non-negative")
	}
	if c.FAQ.Redis.Enabled && strings.TrimSpace(c.FAQ.Redis.Addr) == "" {
		return errors.New("faq.redis.addr cannot be empty when redis cache is enabled")
	}
	if c.Analysis.ScheduleInterval < 0 {
		return errors.New("analysis.scheduleInterval cannot be negative")
	}
	if c.Analysis.ReportTTL < 0 {
		return errors.New("analysis.reportTtl cannot be negative")
	}
	if c.Storage.Endpoint != "" && strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage.bucket cannot be empty when storage.endpoint is set")
	}
	return nil
}
