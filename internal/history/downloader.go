package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/book-expert/voice-studio/internal/fileutil"
)

// ErrNoAudioFile is returned when an entry has no resolvable audio locator.
var ErrNoAudioFile = errors.New("no audio file available")

const (
	fileNameFormat  = "voice_%s.mp3"
	fileNameDefault = "audio"
)

// FileName returns the name a downloaded clip is saved under:
// voice_<id>.mp3, or voice_audio.mp3 for results without an identifier.
func FileName(result core.GenerationResult) string {
	name := fileNameDefault
	if result.ID.Valid() {
		name = result.ID.String()
	}

	return fileutil.ClipName(fmt.Sprintf(fileNameFormat, name))
}

// Downloader saves generated clips into an object store.
type Downloader struct {
	fetcher core.AudioFetcher
	store   core.ObjectStore
	log     *logger.Logger
}

// NewDownloader creates a downloader writing into store.
func NewDownloader(fetcher core.AudioFetcher, store core.ObjectStore, log *logger.Logger) *Downloader {
	return &Downloader{
		fetcher: fetcher,
		store:   store,
		log:     log,
	}
}

// Download fetches the clip of result and stores it. It returns the key the
// clip was stored under.
func (d *Downloader) Download(ctx context.Context, result core.GenerationResult) (string, error) {
	audioURL, ok := d.fetcher.AudioURL(result.AudioFile)
	if !ok {
		return "", ErrNoAudioFile
	}

	data, err := d.fetcher.FetchAudio(ctx, audioURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch audio from %s: %w", audioURL, err)
	}

	key := FileName(result)

	err = d.store.Upload(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("failed to store audio as %s: %w", key, err)
	}

	d.log.Info("Saved %s (%d bytes)", key, len(data))

	return key, nil
}
