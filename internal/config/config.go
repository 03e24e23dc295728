package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the VideoLens server.
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	AI        AIConfig
	Ingest    IngestConfig
}

type ServerConfig struct {
	Port     int
	Env      string
	LogLevel string
}

type RedisConfig struct {
	URL       string
	MirrorTTL time.Duration
}

type RateLimitConfig struct {
	PerMinute int
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	PollInterval     time.Duration
	PollAttempts     int
	MaxOutputTokens  int
	Gemini           GeminiConfig
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type IngestConfig struct {
	TempDir        string
	MaxUploadBytes int64
	Sources        []string
	YTDLP          YTDLPConfig
	Azure          AzureConfig
	SFTP           SFTPConfig
	FTP            FTPConfig
}

type YTDLPConfig struct {
	Bin    string
	Format string
}

type AzureConfig struct {
	Account string
	Key     string
}

type SFTPConfig struct {
	User     string
	Password string
	KeyPath  string
}

type FTPConfig struct {
	User     string
	Password string
}

var validProviders = map[string]bool{
	"gemini": true,
	"mock":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     envInt("VIDEOLENS_PORT", 8080),
			Env:      envString("VIDEOLENS_ENV", "development"),
			LogLevel: strings.ToLower(envString("LOG_LEVEL", "info")),
		},
		Redis: RedisConfig{
			URL:       os.Getenv("REDIS_URL"),
			MirrorTTL: envDuration("STATUS_MIRROR_TTL", 30*time.Minute),
		},
		RateLimit: RateLimitConfig{
			PerMinute: envInt("RATE_LIMIT_PER_MIN", 30),
		},
		AI: AIConfig{
			Provider:         os.Getenv("AI_PROVIDER"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 120*time.Second),
			PollInterval:     envDuration("AI_POLL_INTERVAL", 2*time.Second),
			PollAttempts:     envInt("AI_POLL_ATTEMPTS", 30),
			MaxOutputTokens:  envInt("AI_MAX_OUTPUT_TOKENS", 2000),
			Gemini: GeminiConfig{
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   envString("GEMINI_MODEL", "gemini-2.0-flash"),
				BaseURL: strings.TrimSuffix(envString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"), "/"),
			},
		},
		Ingest: IngestConfig{
			TempDir:        envString("INGEST_TEMP_DIR", os.TempDir()),
			MaxUploadBytes: envInt64("INGEST_MAX_UPLOAD_BYTES", 2<<30),
			Sources:        envList("INGEST_SOURCES"),
			YTDLP: YTDLPConfig{
				Bin:    envString("YTDLP_BIN", "yt-dlp"),
				Format: envString("YTDLP_FORMAT", "best[ext=mp4]"),
			},
			Azure: AzureConfig{
				Account: os.Getenv("AZURE_STORAGE_ACCOUNT"),
				Key:     os.Getenv("AZURE_STORAGE_KEY"),
			},
			SFTP: SFTPConfig{
				User:     os.Getenv("SFTP_USER"),
				Password: os.Getenv("SFTP_PASSWORD"),
				KeyPath:  os.Getenv("SFTP_KEY_PATH"),
			},
			FTP: FTPConfig{
				User:     envString("FTP_USER", "anonymous"),
				Password: os.Getenv("FTP_PASSWORD"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("VIDEOLENS_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}

	if c.Redis.URL != "" && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of gemini, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "gemini" && c.AI.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER is gemini")
	}
	if !strings.HasPrefix(c.AI.Gemini.BaseURL, "http://") && !strings.HasPrefix(c.AI.Gemini.BaseURL, "https://") {
		return fmt.Errorf("GEMINI_BASE_URL must start with http:// or https://, got %q", c.AI.Gemini.BaseURL)
	}
	if c.AI.PollAttempts <= 0 {
		return fmt.Errorf("AI_POLL_ATTEMPTS must be positive, got %d", c.AI.PollAttempts)
	}
	if c.AI.PollInterval <= 0 {
		return fmt.Errorf("AI_POLL_INTERVAL must be positive, got %s", c.AI.PollInterval)
	}
	if c.AI.MaxOutputTokens <= 0 {
		return fmt.Errorf("AI_MAX_OUTPUT_TOKENS must be positive, got %d", c.AI.MaxOutputTokens)
	}

	if c.Ingest.MaxUploadBytes <= 0 {
		return fmt.Errorf("INGEST_MAX_UPLOAD_BYTES must be positive, got %d", c.Ingest.MaxUploadBytes)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
