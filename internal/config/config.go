// Package config loads the process-wide configuration for the file host.
//
// The configuration is built once at startup (defaults, then an optional
// YAML file, then environment variables) and is read-only afterwards.
package config

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config is shared by every request handler. Never mutate it after Load.
type Config struct {
	RootDir         string        `mapstructure:"root_dir" envconfig:"ROOT_DIR"`
	Key             string        `mapstructure:"key" envconfig:"KEY"`
	Title           string        `mapstructure:"title" envconfig:"TITLE"`
	InternalHost    string        `mapstructure:"internal_host" envconfig:"INTERNAL_HOST"`
	InternalPort    Int           `mapstructure:"internal_port" envconfig:"INTERNAL_PORT"`
	ExternalHost    string        `mapstructure:"external_host" envconfig:"EXTERNAL_HOST"`
	ExternalHasTLS  Switch        `mapstructure:"external_has_tls" envconfig:"EXTERNAL_HAS_TLS"`
	MaxFiles        Int           `mapstructure:"max_files" envconfig:"MAX_FILES"`
	MaxFilesizeMB   Int           `mapstructure:"max_filesize_mb" envconfig:"MAX_FILESIZE_MB"`
	UploadRateLimit Int           `mapstructure:"upload_rate_limit" envconfig:"UPLOAD_RATE_LIMIT"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`

	Log     LogConfig     `mapstructure:"log" envconfig:"LOG"`
	Sentry  SentryConfig  `mapstructure:"sentry" envconfig:"SENTRY"`
	Storage StorageConfig `mapstructure:"storage" envconfig:"STORAGE"`
	S3      S3Config      `mapstructure:"s3" envconfig:"S3"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" envconfig:"LEVEL"`
	Format string `mapstructure:"format" envconfig:"FORMAT"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn" envconfig:"DSN"`
	Environment string `mapstructure:"environment" envconfig:"ENVIRONMENT"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend" envconfig:"BACKEND"`
}

// S3Config is only consulted when Storage.Backend is "s3".
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" envconfig:"ENDPOINT"`
	AccessKey string `mapstructure:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey string `mapstructure:"secret_key" envconfig:"SECRET_KEY"`
	Bucket    string `mapstructure:"bucket" envconfig:"BUCKET"`
}

const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
)

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		RootDir:         "/var/files",
		Title:           "Simpler Filehost",
		InternalHost:    "127.0.0.1",
		InternalPort:    8000,
		MaxFiles:        10,
		MaxFilesizeMB:   100,
		ShutdownTimeout: 10 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sentry: SentryConfig{
			Environment: "production",
		},
		Storage: StorageConfig{
			Backend: BackendFilesystem,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// configFile and the environment, in that order of precedence (env wins).
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		v := viper.New()
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if cfg.ExternalHost == "" {
		cfg.ExternalHost = cfg.InternalHost
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// HasKey reports whether uploads must carry the shared secret.
func (c *Config) HasKey() bool {
	return c.Key != ""
}

// MaxFileSize is the per-file ceiling in bytes.
func (c *Config) MaxFileSize() int64 {
	if c.MaxFilesizeMB <= 0 {
		return 0
	}
	if int64(c.MaxFilesizeMB) > math.MaxInt64>>20 {
		return math.MaxInt64
	}
	return int64(c.MaxFilesizeMB) << 20
}

// MaxBodySize is the cumulative request ceiling: room for MaxFiles files of
// the maximum size, doubled for multipart framing. Saturates instead of
// overflowing.
func (c *Config) MaxBodySize() int64 {
	per := c.MaxFileSize()
	n := int64(c.MaxFiles)
	if per <= 0 || n <= 0 {
		return 0
	}
	if per > math.MaxInt64/n/2 {
		return math.MaxInt64
	}
	return per * n * 2
}

func (c *Config) ExternalProtocol() string {
	if c.ExternalHasTLS {
		return "https"
	}
	return "http"
}

// BaseURL is the protocol and host used to build public links, without a
// trailing slash.
func (c *Config) BaseURL() string {
	return c.ExternalProtocol() + "://" + c.ExternalHost
}

// FileURL returns the public download link for a stored file name.
func (c *Config) FileURL(name string) string {
	return c.BaseURL() + "/" + url.PathEscape(name)
}

func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.InternalHost, strconv.Itoa(int(c.InternalPort)))
}
