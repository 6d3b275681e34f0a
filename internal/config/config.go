package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Media    MediaConfig    `yaml:"media"`
	Tools    ToolsConfig    `yaml:"tools"`
	Compress CompressConfig `yaml:"compress"`
	Worker   WorkerConfig   `yaml:"worker"`
	Acquire  AcquireConfig  `yaml:"acquire"`
	Store    StoreConfig    `yaml:"store"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	RateLimit    float64       `yaml:"rate_limit" envconfig:"SERVER_RATE_LIMIT"` // requests per second, 0 disables
	RateBurst    int           `yaml:"rate_burst" envconfig:"SERVER_RATE_BURST"`
}

// MediaConfig holds download directory and size budget configuration.
type MediaConfig struct {
	DownloadPath string `yaml:"download_path" envconfig:"DOWNLOAD_PATH"`
	MaxFileSize  int64  `yaml:"max_file_size" envconfig:"MAX_FILE_SIZE"` // 8 MiB
}

// ToolsConfig locates the external binaries.
type ToolsConfig struct {
	YtDlpPath        string `yaml:"ytdlp_path" envconfig:"YTDLP_PATH"`
	FFmpegPath       string `yaml:"ffmpeg_path" envconfig:"FFMPEG_PATH"`
	FFprobePath      string `yaml:"ffprobe_path" envconfig:"FFPROBE_PATH"`
	AutoInstallYtDlp bool   `yaml:"auto_install_ytdlp" envconfig:"AUTO_INSTALL_YTDLP"`
}

// CompressConfig holds the ffmpeg re-encode recipe.
type CompressConfig struct {
	Preset       string `yaml:"preset" envconfig:"COMPRESS_PRESET"`
	CRF          int    `yaml:"crf" envconfig:"COMPRESS_CRF"`
	Width        int    `yaml:"width" envconfig:"COMPRESS_WIDTH"`
	AudioBitrate string `yaml:"audio_bitrate" envconfig:"COMPRESS_AUDIO_BITRATE"`
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	Count        int           `yaml:"count" envconfig:"WORKER_COUNT"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"WORKER_POLL_INTERVAL"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"WORKER_MAX_RETRIES"`
}

// AcquireConfig bounds a single pipeline run and the artifact borrow window.
type AcquireConfig struct {
	Timeout     time.Duration `yaml:"timeout" envconfig:"ACQUIRE_TIMEOUT"`
	ArtifactTTL time.Duration `yaml:"artifact_ttl" envconfig:"ARTIFACT_TTL"`
}

// StoreConfig selects the job repository backend.
type StoreConfig struct {
	Driver     string `yaml:"driver" envconfig:"STORE_DRIVER"` // memory or sqlite
	SQLitePath string `yaml:"sqlite_path" envconfig:"STORE_SQLITE_PATH"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         9848,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 11 * time.Minute,
			RateLimit:    5,
			RateBurst:    10,
		},
		Media: MediaConfig{
			DownloadPath: "/data/downloads",
			MaxFileSize:  8 * 1024 * 1024,
		},
		Compress: CompressConfig{
			Preset:       "veryfast",
			CRF:          32,
			Width:        480,
			AudioBitrate: "96k",
		},
		Worker: WorkerConfig{
			Count:        2,
			PollInterval: 2 * time.Second,
			MaxRetries:   0,
		},
		Acquire: AcquireConfig{
			Timeout:     10 * time.Minute,
			ArtifactTTL: 15 * time.Minute,
		},
		Store: StoreConfig{
			Driver:     "memory",
			SQLitePath: "/data/reelgrabba.db",
		},
	}
}

// Load reads configuration from defaults, an optional .env file, a YAML file
// and environment variables, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Media.DownloadPath == "" {
		return fmt.Errorf("DOWNLOAD_PATH is required")
	}
	if c.Media.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("WORKER_COUNT must be at least 1")
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("WORKER_MAX_RETRIES must not be negative")
	}
	if c.Acquire.Timeout <= 0 {
		return fmt.Errorf("ACQUIRE_TIMEOUT must be positive")
	}
	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("STORE_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *ServerConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("SERVER_RATE_LIMIT must not be negative")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
