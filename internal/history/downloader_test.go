package history_test

import (
	"context"
	"errors"
	"testing"

	"github.com/book-expert/voice-studio/internal/core"
	"github.com/book-expert/voice-studio/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errMockFetch  = errors.New("mock fetch error")
	errMockUpload = errors.New("mock upload error")
)

type mockFetcher struct {
	fetchedURL string
	fetchErr   error
}

func (m *mockFetcher) AudioURL(locator string) (string, bool) {
	if locator == "" {
		return "", false
	}

	return "http://api.test" + locator, true
}

func (m *mockFetcher) FetchAudio(_ context.Context, url string) ([]byte, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}

	m.fetchedURL = url

	return []byte("mp3-bytes"), nil
}

type mockObjectStore struct {
	uploadShouldFail bool
	uploadedKey      string
	uploadedData     []byte
}

func (m *mockObjectStore) Download(_ context.Context, _ string) ([]byte, error) {
	return m.uploadedData, nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	if m.uploadShouldFail {
		return errMockUpload
	}

	m.uploadedKey = key
	m.uploadedData = data

	return nil
}

func TestFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "voice_42.mp3", history.FileName(core.GenerationResult{ID: 42}))
	assert.Equal(t, "voice_audio.mp3", history.FileName(core.GenerationResult{}))
}

func TestDownload_Success(t *testing.T) {
	t.Parallel()

	fetcher := &mockFetcher{}
	store := &mockObjectStore{}
	downloader := history.NewDownloader(fetcher, store, newTestLogger(t))

	key, err := downloader.Download(context.Background(), core.GenerationResult{ID: 42, AudioFile: "/media/42.mp3"})
	require.NoError(t, err)

	assert.Equal(t, "voice_42.mp3", key)
	assert.Equal(t, "http://api.test/media/42.mp3", fetcher.fetchedURL)
	assert.Equal(t, "voice_42.mp3", store.uploadedKey)
	assert.Equal(t, []byte("mp3-bytes"), store.uploadedData)
}

func TestDownload_Failures(t *testing.T) {
	t.Parallel()

	log := newTestLogger(t)

	_, err := history.NewDownloader(&mockFetcher{}, &mockObjectStore{}, log).
		Download(context.Background(), core.GenerationResult{ID: 1})
	require.ErrorIs(t, err, history.ErrNoAudioFile)

	_, err = history.NewDownloader(&mockFetcher{fetchErr: errMockFetch}, &mockObjectStore{}, log).
		Download(context.Background(), core.GenerationResult{ID: 1, AudioFile: "/a.mp3"})
	require.ErrorIs(t, err, errMockFetch)

	_, err = history.NewDownloader(&mockFetcher{}, &mockObjectStore{uploadShouldFail: true}, log).
		Download(context.Background(), core.GenerationResult{ID: 1, AudioFile: "/a.mp3"})
	require.ErrorIs(t, err, errMockUpload)
}
