// Package core defines the data model and collaborator interfaces shared by the
// voice studio packages.
package core

import (
	"context"
	"io"
)

// CatalogAPI lists the voice targets a caller may synthesize with.
type CatalogAPI interface {
	ListProfiles(ctx context.Context, filter ProfileFilter) ([]VoiceTarget, error)
	ListClones(ctx context.Context) ([]VoiceTarget, error)
}

// SpeechAPI issues a single generation call for one voice target.
type SpeechAPI interface {
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// TranslationAPI asks the external translation service for a translated string.
type TranslationAPI interface {
	Translate(ctx context.Context, text string, cfg TranslationConfig) (TranslationResponse, error)
}

// HistoryAPI manages generation records persisted by the backend.
type HistoryAPI interface {
	ListHistory(ctx context.Context) ([]GenerationResult, error)
	DeleteHistory(ctx context.Context, id ResultID) error
}

// AudioFetcher resolves audio locators and downloads the referenced clip.
type AudioFetcher interface {
	AudioURL(locator string) (string, bool)
	FetchAudio(ctx context.Context, url string) ([]byte, error)
}

// CloneAPI manages user-trained voice clones.
type CloneAPI interface {
	CreateClone(ctx context.Context, upload CloneUpload) (VoiceTarget, error)
	DeleteClone(ctx context.Context, id TargetID) error
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Notifier surfaces user-visible notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// CloneUpload is the multipart payload used to create a voice clone.
type CloneUpload struct {
	Name        string
	Description string
	FileName    string
	Audio       io.Reader
}

// ResponseError is implemented by errors that carry a backend response, as
// opposed to transport failures where no response arrived.
type ResponseError interface {
	error
	HTTPStatus() int
}
