package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap/zapcore"
)

// Centralized configuration values
const (
	DefaultAddr = ":8080"

	// Rate Limiting
	RequestsPerSecond = 100
	BurstSize         = 200

	// Redis Configuration
	RedisAddr        = "localhost:6379"
	RedisPassword    = ""
	RedisDB          = 0
	MetadataCacheTTL = time.Hour

	// Work areas older than this are assumed orphaned
	WorkAreaExpiration = 24 * time.Hour
	JanitorInterval    = time.Hour

	// Health Check
	HealthCheckInterval = 30 * time.Second

	// Downloader
	DefaultYtDlpPath  = "yt-dlp"
	MetadataTimeout   = 45 * time.Second
	DownloadTimeout   = 10 * time.Minute
	MaxFilenameLength = 100

	ShutdownTimeout = 15 * time.Second
)

// Environment variables naming the downloader binary, in lookup order.
var YtDlpPathEnv = []string{"YTDLP_PATH", "YT_DLP_PATH"}

type Config struct {
	Addr string

	YtDlpPath         string
	TempDir           string
	MaxFilenameLength int
	ASCIIFilenames    bool
	MetadataTimeout   time.Duration
	DownloadTimeout   time.Duration

	RequestsPerSecond float64
	Burst             int

	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	MetadataCacheTTL time.Duration

	// HistoryPath is the bbolt file for download history; empty disables it.
	HistoryPath string

	WorkAreaExpiration  time.Duration
	JanitorInterval     time.Duration
	HealthCheckInterval time.Duration

	LogLevel       string
	LogDevelopment bool
}

func Default() Config {
	return Config{
		Addr:                DefaultAddr,
		YtDlpPath:           YtDlpPathFromEnv(),
		TempDir:             os.TempDir(),
		MaxFilenameLength:   MaxFilenameLength,
		MetadataTimeout:     MetadataTimeout,
		DownloadTimeout:     DownloadTimeout,
		RequestsPerSecond:   RequestsPerSecond,
		Burst:               BurstSize,
		RedisEnabled:        true,
		RedisAddr:           RedisAddr,
		RedisPassword:       RedisPassword,
		RedisDB:             RedisDB,
		MetadataCacheTTL:    MetadataCacheTTL,
		WorkAreaExpiration:  WorkAreaExpiration,
		JanitorInterval:     JanitorInterval,
		HealthCheckInterval: HealthCheckInterval,
		LogLevel:            "info",
	}
}

// YtDlpPathFromEnv returns the first non-empty YtDlpPathEnv variable, or the
// bare binary name so it is resolved through PATH.
func YtDlpPathFromEnv() string {
	for _, key := range YtDlpPathEnv {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return DefaultYtDlpPath
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Addr == "" {
		result = multierror.Append(result, errors.New("listen address is empty"))
	}
	if c.YtDlpPath == "" {
		result = multierror.Append(result, errors.New("yt-dlp path is empty"))
	}
	if c.MaxFilenameLength < 1 {
		result = multierror.Append(result, fmt.Errorf("max filename length must be positive, got %d", c.MaxFilenameLength))
	}
	if c.MetadataTimeout < 0 || c.DownloadTimeout < 0 {
		result = multierror.Append(result, errors.New("timeouts must not be negative"))
	}
	if c.RequestsPerSecond <= 0 || c.Burst < 1 {
		result = multierror.Append(result, fmt.Errorf("rate limit must be positive (rps=%v, burst=%d)", c.RequestsPerSecond, c.Burst))
	}
	if c.RedisEnabled && c.RedisAddr == "" {
		result = multierror.Append(result, errors.New("redis address is empty"))
	}
	if c.WorkAreaExpiration <= 0 || c.JanitorInterval <= 0 {
		result = multierror.Append(result, errors.New("janitor interval and work area expiration must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
