// Package config_test tests the configuration loading for the voice studio.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/voice-studio/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
[api]
base_url = "https://voices.example.com/"
auth_token = "secret"
timeout_seconds = 45

[generation]
max_text_length = 4000
max_concurrency = 3
source_language = "en"
default_target_language = "es"

[playback]
command = "mpv"
args = ["--no-video"]

[nats]
url = "nats://127.0.0.1:4222"
job_subject = "jobs"
notification_subject = "notes"
audio_chunk_created_subject = "audio.chunk.created"
audio_object_store_bucket = "AUDIO_FILES"

[paths]
base_logs_dir = "/var/log/voice"
download_dir = "/tmp/voices"

[metrics]
listen_addr = ":9090"
`

func TestUnmarshalConfig(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(fullConfig), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "https://voices.example.com/", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.AuthToken)
	assert.Equal(t, 45, cfg.API.TimeoutSeconds)
	assert.Equal(t, 4000, cfg.Generation.MaxTextLength)
	assert.Equal(t, 3, cfg.Generation.MaxConcurrency)
	assert.Equal(t, "es", cfg.Generation.DefaultTargetLanguage)
	assert.Equal(t, "mpv", cfg.Playback.Command)
	assert.Equal(t, []string{"--no-video"}, cfg.Playback.Args)
	assert.Equal(t, "jobs", cfg.NATS.JobSubject)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "/tmp/voices", cfg.Paths.DownloadDir)
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)
}

func TestLoadFile_TrimsBaseURL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfig), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://voices.example.com", cfg.API.BaseURL)
	assert.Equal(t, "mpv", cfg.Playback.Command)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	assert.Equal(t, "http://localhost:8000", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.TimeoutSeconds)
	assert.Equal(t, 5000, cfg.Generation.MaxTextLength)
	assert.Equal(t, "auto", cfg.Generation.SourceLanguage)
	assert.Equal(t, "en", cfg.Generation.DefaultTargetLanguage)
	assert.Equal(t, "ffplay", cfg.Playback.Command)
	assert.NotEmpty(t, cfg.Playback.Args)
	assert.Equal(t, "voice.generate.jobs", cfg.NATS.JobSubject)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{
			name:    "empty base url",
			mutate:  func(cfg *config.Config) { cfg.API.BaseURL = "" },
			wantErr: config.ErrBaseURLEmpty,
		},
		{
			name:    "negative timeout",
			mutate:  func(cfg *config.Config) { cfg.API.TimeoutSeconds = -1 },
			wantErr: config.ErrTimeoutNegative,
		},
		{
			name:    "zero text length",
			mutate:  func(cfg *config.Config) { cfg.Generation.MaxTextLength = 0 },
			wantErr: config.ErrMaxTextLength,
		},
		{
			name:    "negative concurrency",
			mutate:  func(cfg *config.Config) { cfg.Generation.MaxConcurrency = -2 },
			wantErr: config.ErrConcurrencyNegative,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			testCase.mutate(cfg)

			require.ErrorIs(t, cfg.Validate(), testCase.wantErr)
		})
	}
}
