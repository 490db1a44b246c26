package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Queue      QueueConfig
	R2         R2Config
	Media      MediaConfig
	Suppress   SuppressConfig
	Transcribe TranscribeConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

// QueueConfig collects the retry/backoff knobs for the work queue so tests
// can shrink timers instead of patching literals.
type QueueConfig struct {
	MaxRetry    int
	BaseDelay   time.Duration
	Retention   time.Duration
	Concurrency int // parallel leases per queue
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// MediaConfig locates the external media tooling.
type MediaConfig struct {
	FFmpegPath  string
	FFprobePath string
}

// SuppressConfig points at the noise-suppression microservice. An empty
// ServiceURL leaves the worker on the deterministic in-process fallback.
type SuppressConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

// TranscribeConfig points at an OpenAI-compatible transcription endpoint.
// An empty APIKey leaves the worker on the deterministic fallback.
type TranscribeConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("TRANSCRIBE_API_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("queue.max_retry", "QUEUE_MAX_RETRY")
	_ = viper.BindEnv("queue.base_delay_ms", "QUEUE_BASE_DELAY_MS")
	_ = viper.BindEnv("queue.retention_hours", "QUEUE_RETENTION_HOURS")
	_ = viper.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("media.ffmpeg_path", "FFMPEG_PATH")
	_ = viper.BindEnv("media.ffprobe_path", "FFPROBE_PATH")
	_ = viper.BindEnv("suppress.service_url", "SUPPRESS_SERVICE_URL")
	_ = viper.BindEnv("suppress.timeout", "SUPPRESS_TIMEOUT")
	_ = viper.BindEnv("transcribe.api_key", "TRANSCRIBE_API_KEY")
	_ = viper.BindEnv("transcribe.base_url", "TRANSCRIBE_BASE_URL")
	_ = viper.BindEnv("transcribe.model", "TRANSCRIBE_MODEL")
	_ = viper.BindEnv("transcribe.timeout", "TRANSCRIBE_TIMEOUT")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)

	// Queue defaults: 3 attempts, 2s base delay doubling per attempt
	viper.SetDefault("queue.max_retry", 3)
	viper.SetDefault("queue.base_delay_ms", 2000)
	viper.SetDefault("queue.retention_hours", 24)
	viper.SetDefault("queue.concurrency", 2)

	// Media tool defaults
	viper.SetDefault("media.ffmpeg_path", "ffmpeg")
	viper.SetDefault("media.ffprobe_path", "ffprobe")

	// Noise suppression service defaults
	viper.SetDefault("suppress.service_url", "")
	viper.SetDefault("suppress.timeout", 300)

	// Transcription defaults
	viper.SetDefault("transcribe.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("transcribe.model", "whisper-large-v3")
	viper.SetDefault("transcribe.timeout", 300)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		Queue: QueueConfig{
			MaxRetry:    viper.GetInt("queue.max_retry"),
			BaseDelay:   time.Duration(viper.GetInt("queue.base_delay_ms")) * time.Millisecond,
			Retention:   time.Duration(viper.GetInt("queue.retention_hours")) * time.Hour,
			Concurrency: viper.GetInt("queue.concurrency"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Media: MediaConfig{
			FFmpegPath:  viper.GetString("media.ffmpeg_path"),
			FFprobePath: viper.GetString("media.ffprobe_path"),
		},
		Suppress: SuppressConfig{
			ServiceURL: viper.GetString("suppress.service_url"),
			Timeout:    viper.GetInt("suppress.timeout"),
		},
		Transcribe: TranscribeConfig{
			APIKey:  viper.GetString("transcribe.api_key"),
			BaseURL: viper.GetString("transcribe.base_url"),
			Model:   viper.GetString("transcribe.model"),
			Timeout: viper.GetInt("transcribe.timeout"),
		},
	}

	return cfg, nil
}
