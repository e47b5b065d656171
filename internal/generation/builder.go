// Package generation turns user input into speech: it validates and assembles
// generation requests, runs the optional translation step and fans the
// requests out to the synthesis service, one call per selected voice target.
package generation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/voice-studio/internal/core"
)

// DefaultMaxTextLength is the longest accepted text, in characters, after trimming.
const DefaultMaxTextLength = 5000

// Builder validates raw input and produces one request per selected target.
// It has no side effects.
type Builder struct {
	maxTextLength int
}

// NewBuilder creates a builder. A non-positive maxTextLength selects
// DefaultMaxTextLength.
func NewBuilder(maxTextLength int) *Builder {
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}

	return &Builder{maxTextLength: maxTextLength}
}

// MaxTextLength returns the enforced character limit.
func (b *Builder) MaxTextLength() int {
	return b.maxTextLength
}

// Validate checks the text and target set and returns the trimmed text. All
// failures are *ValidationError.
func (b *Builder) Validate(text string, targets []core.TargetID) (string, error) {
	trimmed := strings.TrimSpace(text)

	if trimmed == "" {
		return "", &ValidationError{Err: ErrEmptyText}
	}

	if len(targets) == 0 {
		return "", &ValidationError{Err: ErrNoTargetSelected}
	}

	length := utf8.RuneCountInString(trimmed)
	if length > b.maxTextLength {
		return "", &ValidationError{
			Err: fmt.Errorf("%w: %d > %d characters", ErrTextTooLong, length, b.maxTextLength),
		}
	}

	return trimmed, nil
}

// Build returns one GenerationRequest per distinct target, in target order, all
// sharing the same trimmed text.
func (b *Builder) Build(
	text string,
	targets []core.TargetID,
	voiceType core.VoiceType,
) ([]core.GenerationRequest, error) {
	trimmed, err := b.Validate(text, targets)
	if err != nil {
		return nil, err
	}

	_, err = core.ParseVoiceType(string(voiceType))
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	seen := make(map[core.TargetID]struct{}, len(targets))
	requests := make([]core.GenerationRequest, 0, len(targets))

	for _, id := range targets {
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		requests = append(requests, core.GenerationRequest{
			Text:        trimmed,
			VoiceType:   voiceType,
			TargetID:    id,
			Translation: nil,
		})
	}

	return requests, nil
}
