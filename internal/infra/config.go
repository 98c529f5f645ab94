package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"genvoy/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// FalKey is the full authorization value, normalized to "Key <token>".
	FalKey      string
	FalBaseURL  string
	FalQueueURL string

	// WorkDir is the root under which all generated assets are written.
	WorkDir string

	MaxConcurrentJobs int
	JobTimeout        time.Duration
	FanoutJobTimeout  time.Duration
	PollInterval      time.Duration
	SubmitTimeout     time.Duration
	DownloadTimeout   time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. The credential is required: a bridge without a key
// cannot serve a single tool call, so fail at startup rather than per call.
func LoadConfig() (*Config, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		FalKey:            normalizeKey(os.Getenv("FAL_KEY")),
		FalBaseURL:        getEnv("FAL_BASE_URL", "https://api.fal.ai/v1"),
		FalQueueURL:       getEnv("FAL_QUEUE_URL", "https://queue.fal.run"),
		WorkDir:           getEnv("WORK_DIR", workDir),
		MaxConcurrentJobs: getEnvInt("MAX_CONCURRENT_JOBS", domain.MaxConcurrentJobs),
		JobTimeout:        time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 360)),
		FanoutJobTimeout:  time.Second * time.Duration(getEnvInt("FANOUT_JOB_TIMEOUT_SECONDS", 600)),
		PollInterval:      time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 2)),
		SubmitTimeout:     time.Second * time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 60)),
		DownloadTimeout:   time.Second * time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 120)),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 630)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}

	if cfg.FalKey == "" {
		return nil, fmt.Errorf("FAL_KEY is required")
	}

	return cfg, nil
}

// normalizeKey prefixes bare tokens with the "Key " scheme fal.ai expects.
func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(key), "key ") {
		return key
	}
	return "Key " + key
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
