// Package config provides the configuration structure for the voice studio.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/fileutil"
	"github.com/pelletier/go-toml/v2"
)

// Default values.
const (
	defaultBaseURL                = "http://localhost:8000"
	defaultTimeoutSeconds         = 30
	defaultMaxTextLength          = 5000
	defaultSourceLanguage         = "auto"
	defaultTargetLanguage         = "en"
	defaultPlaybackCommand        = "ffplay"
	defaultDownloadDirName        = "downloads"
	defaultJobSubject             = "voice.generate.jobs"
	defaultNotificationSubject    = "voice.notifications"
	defaultAudioChunkSubject      = "audio.chunk.created"
	defaultAudioObjectStoreBucket = "VOICE_AUDIO"
)

var defaultPlaybackArgs = []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}

// Static errors.
var (
	ErrBaseURLEmpty        = errors.New("api base_url cannot be empty")
	ErrTimeoutNegative     = errors.New("api timeout_seconds must be non-negative")
	ErrMaxTextLength       = errors.New("generation max_text_length must be positive")
	ErrConcurrencyNegative = errors.New("generation max_concurrency must be non-negative")
)

// APIConfig holds the connection settings for the voice backend.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	AuthToken      string `toml:"auth_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GenerationConfig controls request building and fan-out.
type GenerationConfig struct {
	MaxTextLength         int    `toml:"max_text_length"`
	MaxConcurrency        int    `toml:"max_concurrency"`
	SourceLanguage        string `toml:"source_language"`
	DefaultTargetLanguage string `toml:"default_target_language"`
}

// PlaybackConfig names the external audio player.
type PlaybackConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	JobSubject               string `toml:"job_subject"`
	NotificationSubject      string `toml:"notification_subject"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	DownloadDir string `toml:"download_dir"`
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// Config is the root configuration structure.
type Config struct {
	API        APIConfig        `toml:"api"`
	Generation GenerationConfig `toml:"generation"`
	Playback   PlaybackConfig   `toml:"playback"`
	NATS       NATSConfig       `toml:"nats"`
	Paths      PathsConfig      `toml:"paths"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// Load loads the configuration through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finalize(&cfg)
}

// LoadFile loads the configuration from an explicit TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return finalize(&cfg)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config

	cfg.ApplyDefaults()

	return &cfg
}

func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = defaultBaseURL
	}

	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")

	if c.API.TimeoutSeconds == 0 {
		c.API.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.Generation.MaxTextLength == 0 {
		c.Generation.MaxTextLength = defaultMaxTextLength
	}

	if c.Generation.SourceLanguage == "" {
		c.Generation.SourceLanguage = defaultSourceLanguage
	}

	if c.Generation.DefaultTargetLanguage == "" {
		c.Generation.DefaultTargetLanguage = defaultTargetLanguage
	}

	if c.Playback.Command == "" {
		c.Playback.Command = defaultPlaybackCommand
		c.Playback.Args = append([]string(nil), defaultPlaybackArgs...)
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = os.TempDir()
	}

	if c.Paths.DownloadDir == "" {
		c.Paths.DownloadDir = filepath.Join(fileutil.DataDir(), defaultDownloadDirName)
	}

	c.applyNATSDefaults()
}

func (c *Config) applyNATSDefaults() {
	if c.NATS.JobSubject == "" {
		c.NATS.JobSubject = defaultJobSubject
	}

	if c.NATS.NotificationSubject == "" {
		c.NATS.NotificationSubject = defaultNotificationSubject
	}

	if c.NATS.AudioChunkCreatedSubject == "" {
		c.NATS.AudioChunkCreatedSubject = defaultAudioChunkSubject
	}

	if c.NATS.AudioObjectStoreBucket == "" {
		c.NATS.AudioObjectStoreBucket = defaultAudioObjectStoreBucket
	}
}

// Validate rejects configurations the studio cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrBaseURLEmpty
	}

	if c.API.TimeoutSeconds < 0 {
		return fmt.Errorf("%w: got %d", ErrTimeoutNegative, c.API.TimeoutSeconds)
	}

	if c.Generation.MaxTextLength <= 0 {
		return fmt.Errorf("%w: got %d", ErrMaxTextLength, c.Generation.MaxTextLength)
	}

	if c.Generation.MaxConcurrency < 0 {
		return fmt.Errorf("%w: got %d", ErrConcurrencyNegative, c.Generation.MaxConcurrency)
	}

	return nil
}
