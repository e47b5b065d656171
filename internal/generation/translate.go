package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/core"
)

// Warning messages surfaced to the user.
const (
	msgTranslationFallback = "Translation failed, using original text"
	msgTranslationService  = "Translation warning"
)

// TranslationOutcome is the text a run continues with after the translation step.
type TranslationOutcome struct {
	Text       string
	Translated bool
	Warning    *TranslationWarning
}

// Translator runs the optional translation pre-step. It never fails: every
// problem degrades to the original text plus a warning.
type Translator struct {
	api            core.TranslationAPI
	sourceLanguage string
	log            *logger.Logger
}

// DefaultSourceLanguage asks the service to detect the source language.
const DefaultSourceLanguage = "auto"

// NewTranslator creates a translator. sourceLanguage is used when a request
// does not name one; empty means DefaultSourceLanguage.
func NewTranslator(api core.TranslationAPI, sourceLanguage string, log *logger.Logger) *Translator {
	if sourceLanguage == "" {
		sourceLanguage = DefaultSourceLanguage
	}

	return &Translator{
		api:            api,
		sourceLanguage: sourceLanguage,
		log:            log,
	}
}

// Translate returns the text to synthesize. When translation is disabled the
// input is returned unchanged.
func (t *Translator) Translate(ctx context.Context, text string, cfg core.TranslationConfig) TranslationOutcome {
	if !cfg.Enabled {
		return TranslationOutcome{Text: text, Translated: false, Warning: nil}
	}

	cfg = t.Config(cfg)

	resp, err := t.api.Translate(ctx, text, cfg)
	if err != nil {
		t.log.Warn("Translation to %s failed, using original text: %v", cfg.TargetLanguage, err)

		return TranslationOutcome{
			Text:       text,
			Translated: false,
			Warning: &TranslationWarning{
				Message: msgTranslationFallback,
				Err:     fmt.Errorf("%w: %w", ErrTranslationFailed, err),
			},
		}
	}

	outcome := TranslationOutcome{Text: text, Translated: false, Warning: nil}

	translated := strings.TrimSpace(resp.TranslatedText)
	if translated != "" {
		outcome.Text = translated
		outcome.Translated = true
	}

	if resp.Error != "" {
		t.log.Warn("Translation service reported: %s", resp.Error)

		outcome.Warning = &TranslationWarning{
			Message: msgTranslationService + ": " + resp.Error,
			Err:     nil,
		}
	}

	return outcome
}

// Config returns cfg with the source language filled in.
func (t *Translator) Config(cfg core.TranslationConfig) core.TranslationConfig {
	if cfg.SourceLanguage == "" {
		cfg.SourceLanguage = t.sourceLanguage
	}

	return cfg
}
