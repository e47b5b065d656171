package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// VoiceType selects which kind of voice target a selection refers to.
type VoiceType string

const (
	VoiceTypeProfile VoiceType = "profile"
	VoiceTypeClone   VoiceType = "clone"
)

// ErrUnknownVoiceType is returned when parsing an unsupported voice type.
var ErrUnknownVoiceType = errors.New("unknown voice type")

// ParseVoiceType converts a user supplied string into a VoiceType.
func ParseVoiceType(value string) (VoiceType, error) {
	switch VoiceType(value) {
	case VoiceTypeProfile, VoiceTypeClone:
		return VoiceType(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownVoiceType, value)
	}
}

// CloneStatus is the training lifecycle state of a voice clone.
type CloneStatus string

const (
	CloneStatusPending    CloneStatus = "pending"
	CloneStatusProcessing CloneStatus = "processing"
	CloneStatusReady      CloneStatus = "ready"
	CloneStatusFailed     CloneStatus = "failed"
)

// TargetID identifies a voice profile or clone. The backend sometimes encodes
// identifiers as strings, so decoding accepts both forms.
type TargetID int64

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (id *TargetID) UnmarshalJSON(data []byte) error {
	value, err := decodeInt64(data)
	if err != nil {
		return fmt.Errorf("invalid target id %s: %w", string(data), err)
	}

	*id = TargetID(value)

	return nil
}

func (id TargetID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseTargetID parses a decimal target identifier.
func ParseTargetID(value string) (TargetID, error) {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target id %q: %w", value, err)
	}

	return TargetID(parsed), nil
}

// ResultID is the server-assigned identifier of a generation result. Zero means
// the result is a purely local artifact without a backend record.
type ResultID int64

// UnmarshalJSON accepts a JSON number, a quoted decimal string or null.
func (id *ResultID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = 0

		return nil
	}

	value, err := decodeInt64(data)
	if err != nil {
		return fmt.Errorf("invalid result id %s: %w", string(data), err)
	}

	*id = ResultID(value)

	return nil
}

func (id ResultID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether the identifier refers to a backend record.
func (id ResultID) Valid() bool {
	return id != 0
}

func decodeInt64(data []byte) (int64, error) {
	var number json.Number

	err := json.Unmarshal(data, &number)
	if err != nil {
		var text string

		textErr := json.Unmarshal(data, &text)
		if textErr != nil {
			return 0, err
		}

		number = json.Number(text)
	}

	return number.Int64()
}

// VoiceTarget is a read-only snapshot of a selectable voice.
type VoiceTarget struct {
	ID          TargetID    `json:"id"`
	Kind        VoiceType   `json:"-"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Gender      string      `json:"gender,omitempty"`
	Emotion     string      `json:"emotion,omitempty"`
	Language    string      `json:"language,omitempty"`
	Status      CloneStatus `json:"status,omitempty"`
}

// Ready reports whether a clone finished training. Profiles are always ready.
func (v VoiceTarget) Ready() bool {
	if v.Kind == VoiceTypeClone {
		return v.Status == CloneStatusReady
	}

	return true
}

// ProfileFilter narrows voice profiles. Empty or "all" values impose no constraint.
type ProfileFilter struct {
	Gender   string
	Emotion  string
	Language string
}

// TranslationConfig controls the optional translation pre-step.
type TranslationConfig struct {
	Enabled        bool   `json:"enabled"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language,omitempty"`
}

// TranslationResponse is the translation service reply. Error may be set even
// when TranslatedText is present.
type TranslationResponse struct {
	TranslatedText string `json:"translated_text"`
	Error          string `json:"error,omitempty"`
}

// GenerationRequest asks for speech for exactly one voice target.
type GenerationRequest struct {
	Text        string
	VoiceType   VoiceType
	TargetID    TargetID
	Translation *TranslationConfig
}

// GenerationResult is one synthesized clip.
type GenerationResult struct {
	ID              ResultID  `json:"id"`
	InputText       string    `json:"input_text"`
	AudioFile       string    `json:"audio_file"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

// NotificationLevel classifies a user-visible notification.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Notification is a message surfaced to the user, optionally carrying the error
// that caused it.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
	Err     error             `json:"-"`
}
