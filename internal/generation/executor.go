package generation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Run outcomes reported to the Recorder.
const (
	OutcomeSuccess    = "success"
	OutcomeFailed     = "failed"
	OutcomeValidation = "validation"
	OutcomeDropped    = "dropped"
)

// User-visible messages.
const (
	msgFmtTranslated       = "Translated to %s"
	msgFmtGenerated        = "Generated %d speech files!"
	msgGenerationFailed    = "Failed to generate speech. Some requests may have failed."
	logFmtRunStarted       = "Generation run %s started: %d target(s), voice type %s"
	logFmtRunSucceeded     = "Generation run %s finished with %d result(s)"
	logFmtRunFailed        = "Generation run %s failed: %v"
	logFmtCallFailed       = "Generation call for %s %s failed: %v"
	logFmtRunDropped       = "Dropped generation request: %v"
	logFmtValidationFailed = "Rejected generation request: %v"
)

// State is the lifecycle of the executor. Failed behaves like Idle for new
// submissions; it only records how the last run ended.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Indicators receives the busy flags a front end renders while a run is in
// flight. Translated delivers the translated text as soon as it is known,
// before any generation call is issued.
type Indicators interface {
	Translating(active bool)
	Translated(text string)
	Generating(active bool)
}

// Recorder receives run instrumentation.
type Recorder interface {
	RunFinished(outcome string, duration time.Duration)
	GenerationCall(outcome string)
	InFlight(active bool)
}

// HistorySink accepts a successful batch.
type HistorySink interface {
	Append(results []core.GenerationResult)
}

// RunInput is one submission.
type RunInput struct {
	Text        string
	Targets     []core.TargetID
	VoiceType   core.VoiceType
	Translation core.TranslationConfig
}

// RunResult describes a successful run. Results are in target order.
type RunResult struct {
	BatchID     string
	Text        string
	Translation TranslationOutcome
	Results     []core.GenerationResult
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithIndicators sets the busy flag receiver.
func WithIndicators(indicators Indicators) ExecutorOption {
	return func(e *Executor) {
		e.indicators = indicators
	}
}

// WithRecorder sets the instrumentation receiver.
func WithRecorder(recorder Recorder) ExecutorOption {
	return func(e *Executor) {
		e.recorder = recorder
	}
}

// WithMaxConcurrency bounds the number of outstanding generation calls. Zero
// means one call per target at once.
func WithMaxConcurrency(limit int) ExecutorOption {
	return func(e *Executor) {
		e.maxConcurrency = limit
	}
}

// Executor runs the translate-then-fan-out workflow. Only one run may be in
// flight; overlapping submissions are dropped with ErrRunInProgress.
type Executor struct {
	speech         core.SpeechAPI
	translator     *Translator
	builder        *Builder
	history        HistorySink
	notifier       core.Notifier
	indicators     Indicators
	recorder       Recorder
	log            *logger.Logger
	maxConcurrency int

	mu      sync.Mutex
	state   State
	lastErr error
}

// NewExecutor wires an executor.
func NewExecutor(
	speech core.SpeechAPI,
	translator *Translator,
	builder *Builder,
	history HistorySink,
	notifier core.Notifier,
	log *logger.Logger,
	opts ...ExecutorOption,
) *Executor {
	executor := &Executor{
		speech:         speech,
		translator:     translator,
		builder:        builder,
		history:        history,
		notifier:       notifier,
		indicators:     noopIndicators{},
		recorder:       noopRecorder{},
		log:            log,
		maxConcurrency: 0,
		state:          StateIdle,
		lastErr:        nil,
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// State returns the current lifecycle state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// LastError returns the error of the most recent completed run, if it failed.
func (e *Executor) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastErr
}

// Run validates input, translates the text when enabled and issues one
// generation call per target concurrently. The batch is all-or-nothing: on any
// call failure a *GenerationBatchError is returned and nothing reaches the
// history. In-flight calls are not cancelled when ctx is.
func (e *Executor) Run(ctx context.Context, input RunInput) (RunResult, error) {
	err := e.begin(input)
	if err != nil {
		return RunResult{}, err
	}

	started := time.Now()
	batchID := uuid.NewString()

	var runErr error

	defer func() {
		e.finish(batchID, runErr, time.Since(started))
	}()

	e.log.Info(logFmtRunStarted, batchID, len(input.Targets), input.VoiceType)

	result, runErr := e.execute(ctx, batchID, input)
	if runErr != nil {
		return RunResult{}, runErr
	}

	return result, nil
}

// begin enforces the re-entrancy guard and validates input before entering
// Running. A rejected submission leaves the state untouched.
func (e *Executor) begin(input RunInput) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		e.log.Warn(logFmtRunDropped, ErrRunInProgress)
		e.recorder.RunFinished(OutcomeDropped, 0)

		return ErrRunInProgress
	}

	_, err := e.builder.Validate(input.Text, input.Targets)
	if err != nil {
		e.log.Warn(logFmtValidationFailed, err)
		e.recorder.RunFinished(OutcomeValidation, 0)

		return err
	}

	e.state = StateRunning
	e.recorder.InFlight(true)

	return nil
}

func (e *Executor) finish(batchID string, runErr error, duration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastErr = runErr
	e.recorder.InFlight(false)

	if runErr != nil {
		e.state = StateFailed
		e.log.Error(logFmtRunFailed, batchID, runErr)
		e.recorder.RunFinished(OutcomeFailed, duration)

		return
	}

	e.state = StateIdle
	e.recorder.RunFinished(OutcomeSuccess, duration)
}

func (e *Executor) execute(ctx context.Context, batchID string, input RunInput) (RunResult, error) {
	outcome := e.translate(ctx, input)

	requests, err := e.builder.Build(outcome.Text, input.Targets, input.VoiceType)
	if err != nil {
		return RunResult{}, err
	}

	if input.Translation.Enabled {
		metadata := e.translator.Config(input.Translation)

		for i := range requests {
			requests[i].Translation = &metadata
		}
	}

	results, err := e.dispatch(ctx, requests)
	if err != nil {
		e.notify(ctx, core.LevelError, msgGenerationFailed, err)

		return RunResult{}, err
	}

	e.history.Append(results)
	e.notify(ctx, core.LevelSuccess, fmt.Sprintf(msgFmtGenerated, len(results)), nil)
	e.log.Info(logFmtRunSucceeded, batchID, len(results))

	return RunResult{
		BatchID:     batchID,
		Text:        outcome.Text,
		Translation: outcome,
		Results:     results,
	}, nil
}

// translate completes before any generation call is issued.
func (e *Executor) translate(ctx context.Context, input RunInput) TranslationOutcome {
	if !input.Translation.Enabled {
		return TranslationOutcome{Text: input.Text, Translated: false, Warning: nil}
	}

	e.indicators.Translating(true)
	defer e.indicators.Translating(false)

	outcome := e.translator.Translate(ctx, input.Text, input.Translation)

	if outcome.Translated {
		e.indicators.Translated(outcome.Text)
		e.notify(ctx, core.LevelSuccess, fmt.Sprintf(msgFmtTranslated, LanguageName(input.Translation.TargetLanguage)), nil)
	}

	if outcome.Warning != nil {
		e.notify(ctx, core.LevelWarning, outcome.Warning.Message, outcome.Warning)
	}

	return outcome
}

// dispatch issues every request concurrently and reassembles the results in
// request order.
func (e *Executor) dispatch(ctx context.Context, requests []core.GenerationRequest) ([]core.GenerationResult, error) {
	e.indicators.Generating(true)
	defer e.indicators.Generating(false)

	callCtx := context.WithoutCancel(ctx)
	results := make([]core.GenerationResult, len(requests))
	errs := make([]error, len(requests))

	var group errgroup.Group
	if e.maxConcurrency > 0 {
		group.SetLimit(e.maxConcurrency)
	}

	for i, req := range requests {
		group.Go(func() error {
			result, err := e.speech.Generate(callCtx, req)
			if err != nil {
				e.log.Warn(logFmtCallFailed, req.VoiceType, req.TargetID, err)
				e.recorder.GenerationCall(OutcomeFailed)
				errs[i] = err

				return err
			}

			e.recorder.GenerationCall(OutcomeSuccess)
			results[i] = result

			return nil
		})
	}

	waitErr := group.Wait()
	if waitErr == nil {
		return results, nil
	}

	batchErr := &GenerationBatchError{Total: len(requests), Failures: nil}

	for i, err := range errs {
		if err != nil {
			batchErr.Failures = append(batchErr.Failures, TargetFailure{TargetID: requests[i].TargetID, Err: err})
		}
	}

	return nil, batchErr
}

func (e *Executor) notify(ctx context.Context, level core.NotificationLevel, message string, err error) {
	if e.notifier == nil {
		return
	}

	e.notifier.Notify(ctx, core.Notification{Level: level, Message: message, Err: err})
}

type noopIndicators struct{}

func (noopIndicators) Translating(bool)  {}
func (noopIndicators) Translated(string) {}
func (noopIndicators) Generating(bool)   {}

type noopRecorder struct{}

func (noopRecorder) RunFinished(string, time.Duration) {}
func (noopRecorder) GenerationCall(string)             {}
func (noopRecorder) InFlight(bool)                     {}
