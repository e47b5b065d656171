package generation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/voice-studio/internal/core"
)

// Static errors.
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoTargetSelected  = errors.New("at least one voice target must be selected")
	ErrTextTooLong       = errors.New("text exceeds the maximum length")
	ErrRunInProgress     = errors.New("a generation run is already in progress")
	ErrTranslationFailed = errors.New("translation failed")
)

const (
	errFmtValidation   = "invalid generation request: %v"
	errFmtBatchSummary = "%d of %d generation calls failed"
	errFmtTargetFailed = "target %s: %v"
)

// ValidationError blocks a submission before any network call is made.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(errFmtValidation, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// TranslationWarning is a non-fatal translation problem. The run continues with
// whatever text the warning left in place.
type TranslationWarning struct {
	Message string
	Err     error
}

func (w *TranslationWarning) Error() string {
	if w.Err == nil {
		return w.Message
	}

	return w.Message + ": " + w.Err.Error()
}

func (w *TranslationWarning) Unwrap() error {
	return w.Err
}

// TargetFailure records one failed generation call of a batch.
type TargetFailure struct {
	TargetID core.TargetID
	Err      error
}

// GenerationBatchError reports a discarded batch. Every failed target is listed,
// in request order.
type GenerationBatchError struct {
	Total    int
	Failures []TargetFailure
}

func (e *GenerationBatchError) Error() string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf(errFmtBatchSummary, len(e.Failures), e.Total))

	for i, failure := range e.Failures {
		if i == 0 {
			builder.WriteString(": ")
		} else {
			builder.WriteString("; ")
		}

		builder.WriteString(fmt.Sprintf(errFmtTargetFailed, failure.TargetID, failure.Err))
	}

	return builder.String()
}

// Unwrap exposes every underlying call error to errors.Is and errors.As.
func (e *GenerationBatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		errs = append(errs, failure.Err)
	}

	return errs
}

// FailedTargets lists the targets whose call failed.
func (e *GenerationBatchError) FailedTargets() []core.TargetID {
	ids := make([]core.TargetID, 0, len(e.Failures))
	for _, failure := range e.Failures {
		ids = append(ids, failure.TargetID)
	}

	return ids
}
