// Package session wires the catalog, generation, history and playback
// controllers into a Studio, the single owner of one user's session state.
//
// The Studio is the orchestration boundary: every failure reaching it is
// turned into a user-visible notification, and every operation leaves the
// session in a stable, re-submittable state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/catalog"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/book-expert/voice-studio/internal/generation"
	"github.com/book-expert/voice-studio/internal/history"
	"github.com/book-expert/voice-studio/internal/metrics"
	"github.com/book-expert/voice-studio/internal/playback"
)

// User-visible messages.
const (
	msgEnterText          = "Please enter some text"
	msgSelectVoice        = "Please select at least one voice"
	msgFmtTextTooLong     = "Text must be at most %d characters"
	msgLoadVoicesFailed   = "Failed to load voices"
	msgLoadHistoryFailed  = "Failed to load history"
	msgAudioUnavailable   = "Audio not available"
	msgPlayFailed         = "Failed to play audio"
	msgNoAudioFile        = "No audio file available"
	msgDownloadStarted    = "Download started!"
	msgDownloadFailed     = "Failed to download audio"
	msgDeleted            = "Deleted"
	msgDeleteFailed       = "Failed to delete"
	msgFmtCloneNotReady   = "Voice clone %s is not ready yet"
	msgFmtUnknownTarget   = "Unknown voice %s"
	msgHistoryEntryAbsent = "History entry not found"
)

// Static errors.
var (
	ErrTargetNotReady = errors.New("voice clone is not ready")
	ErrEntryNotFound  = errors.New("history entry not found")
)

// Backend is the slice of the voice API a Studio consumes.
type Backend interface {
	core.CatalogAPI
	core.SpeechAPI
	core.TranslationAPI
	core.HistoryAPI
	core.AudioFetcher
}

// DeletionRecorder receives history deletion instrumentation.
type DeletionRecorder interface {
	HistoryDeletion(outcome string)
}

// Status is a snapshot of everything a front end renders.
type Status struct {
	Text              string
	VoiceType         core.VoiceType
	Selected          []core.TargetID
	Translation       core.TranslationConfig
	TranslatedPreview string
	Translating       bool
	Generating        bool
	RunState          generation.State
	Playback          playback.State
	HistorySize       int
}

// Option customizes a Studio.
type Option func(*options)

type options struct {
	metrics        *metrics.Metrics
	maxTextLength  int
	maxConcurrency int
	sourceLanguage string
}

// WithMetrics instruments runs, playback and deletions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithLimits sets the text length limit and the fan-out concurrency bound.
func WithLimits(maxTextLength, maxConcurrency int) Option {
	return func(o *options) {
		o.maxTextLength = maxTextLength
		o.maxConcurrency = maxConcurrency
	}
}

// WithSourceLanguage sets the translation source language used when none is given.
func WithSourceLanguage(language string) Option {
	return func(o *options) {
		o.sourceLanguage = language
	}
}

// Studio owns one session.
type Studio struct {
	records    core.HistoryAPI
	catalog    *catalog.Accessor
	builder    *generation.Builder
	executor   *generation.Executor
	history    *history.Store
	downloader *history.Downloader
	playback   *playback.Controller
	notifier   core.Notifier
	deletions  DeletionRecorder
	log        *logger.Logger

	mu                sync.Mutex
	text              string
	selection         *generation.Selection
	translation       core.TranslationConfig
	translatedPreview string
	translating       bool
	generating        bool
}

// New creates a Studio. Downloads are written to downloads.
func New(
	backend Backend,
	player playback.Player,
	downloads core.ObjectStore,
	notifier core.Notifier,
	log *logger.Logger,
	opts ...Option,
) *Studio {
	settings := options{
		metrics:        nil,
		maxTextLength:  0,
		maxConcurrency: 0,
		sourceLanguage: "",
	}

	for _, opt := range opts {
		opt(&settings)
	}

	studio := &Studio{
		records:           backend,
		catalog:           catalog.NewAccessor(backend, log),
		builder:           generation.NewBuilder(settings.maxTextLength),
		history:           history.NewStore(backend, log),
		downloader:        history.NewDownloader(backend, downloads, log),
		notifier:          notifier,
		deletions:         noopDeletionRecorder{},
		log:               log,
		text:              "",
		selection:         generation.NewSelection(core.VoiceTypeProfile),
		translation:       core.TranslationConfig{Enabled: false, TargetLanguage: "", SourceLanguage: ""},
		translatedPreview: "",
	}

	executorOpts := []generation.ExecutorOption{
		generation.WithIndicators(studio),
		generation.WithMaxConcurrency(settings.maxConcurrency),
	}

	var playbackRecorder playback.Recorder

	if settings.metrics != nil {
		executorOpts = append(executorOpts, generation.WithRecorder(settings.metrics))
		playbackRecorder = settings.metrics
		studio.deletions = settings.metrics
	}

	studio.executor = generation.NewExecutor(
		backend,
		generation.NewTranslator(backend, settings.sourceLanguage, log),
		studio.builder,
		studio.history,
		notifier,
		log,
		executorOpts...,
	)
	studio.playback = playback.NewController(player, backend, playbackRecorder, log)

	return studio
}

// Translating implements generation.Indicators.
func (s *Studio) Translating(active bool) {
	s.mu.Lock()
	s.translating = active
	s.mu.Unlock()
}

// Translated implements generation.Indicators. The preview is kept even when
// the batch that follows fails.
func (s *Studio) Translated(text string) {
	s.mu.Lock()
	s.translatedPreview = text
	s.mu.Unlock()
}

// Generating implements generation.Indicators.
func (s *Studio) Generating(active bool) {
	s.mu.Lock()
	s.generating = active
	s.mu.Unlock()
}

// Status returns a snapshot of the session.
func (s *Studio) Status() Status {
	s.mu.Lock()
	status := Status{
		Text:              s.text,
		VoiceType:         s.selection.VoiceType(),
		Selected:          s.selection.IDs(),
		Translation:       s.translation,
		TranslatedPreview: s.translatedPreview,
		Translating:       s.translating,
		Generating:        s.generating,
		RunState:          generation.StateIdle,
		Playback:          playback.State{Playing: false, Key: ""},
		HistorySize:       0,
	}
	s.mu.Unlock()

	status.RunState = s.executor.State()
	status.Playback = s.playback.State()
	status.HistorySize = s.history.Len()

	return status
}

// LoadVoices refreshes the voice catalog.
func (s *Studio) LoadVoices(ctx context.Context) error {
	err := s.catalog.Refresh(ctx)
	if err != nil {
		s.notify(ctx, core.LevelError, msgLoadVoicesFailed, err)

		return err
	}

	return nil
}

// Voices returns the selectable targets for the current voice type.
func (s *Studio) Voices(filter core.ProfileFilter) []core.VoiceTarget {
	s.mu.Lock()
	voiceType := s.selection.VoiceType()
	s.mu.Unlock()

	return s.catalog.Targets(voiceType, filter)
}

// SetText replaces the input text.
func (s *Studio) SetText(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

// SetVoiceType switches between profiles and clones, clearing the selection.
func (s *Studio) SetVoiceType(voiceType core.VoiceType) {
	s.mu.Lock()
	s.selection.SetVoiceType(voiceType)
	s.mu.Unlock()
}

// ToggleTarget selects or deselects a voice. When the catalog is loaded the
// target must exist, and clones must be ready.
func (s *Studio) ToggleTarget(ctx context.Context, id core.TargetID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selection.Contains(id) {
		err := s.checkSelectable(s.selection.VoiceType(), id)
		if err != nil {
			s.notify(ctx, core.LevelWarning, selectionMessage(err, id), err)

			return false, err
		}
	}

	return s.selection.Toggle(id), nil
}

// SelectTargets replaces the selection with ids of voiceType.
func (s *Studio) SelectTargets(ctx context.Context, voiceType core.VoiceType, ids []core.TargetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		err := s.checkSelectable(voiceType, id)
		if err != nil {
			s.notify(ctx, core.LevelWarning, selectionMessage(err, id), err)

			return err
		}
	}

	s.selection.SetVoiceType(voiceType)
	s.selection.Clear()

	for _, id := range ids {
		s.selection.Add(id)
	}

	return nil
}

// ClearSelection deselects every voice.
func (s *Studio) ClearSelection() {
	s.mu.Lock()
	s.selection.Clear()
	s.mu.Unlock()
}

// SetTranslation updates the translation settings and drops any stale preview.
func (s *Studio) SetTranslation(cfg core.TranslationConfig) {
	s.mu.Lock()
	s.translation = cfg
	s.translatedPreview = ""
	s.mu.Unlock()
}

// Generate runs one generation batch with the current text, selection and
// translation settings. Overlapping calls are dropped with
// generation.ErrRunInProgress.
func (s *Studio) Generate(ctx context.Context) (generation.RunResult, error) {
	s.mu.Lock()
	input := generation.RunInput{
		Text:        s.text,
		Targets:     s.selection.IDs(),
		VoiceType:   s.selection.VoiceType(),
		Translation: s.translation,
	}
	s.mu.Unlock()

	result, err := s.executor.Run(ctx, input)
	if err != nil {
		s.reportRunError(ctx, err)

		return generation.RunResult{}, err
	}

	return result, nil
}

// Submit runs a generation batch described entirely by input, leaving the
// interactive text and selection untouched. It shares the re-entrancy guard,
// history, notifications and translated preview with Generate.
func (s *Studio) Submit(ctx context.Context, input generation.RunInput) (generation.RunResult, error) {
	s.mu.Lock()
	for _, id := range input.Targets {
		err := s.checkSelectable(input.VoiceType, id)
		if err != nil {
			s.mu.Unlock()
			s.notify(ctx, core.LevelWarning, selectionMessage(err, id), err)

			return generation.RunResult{}, err
		}
	}
	s.mu.Unlock()

	result, err := s.executor.Run(ctx, input)
	if err != nil {
		s.reportRunError(ctx, err)

		return generation.RunResult{}, err
	}

	return result, nil
}

// History returns the session history, newest first.
func (s *Studio) History() []history.Entry {
	return s.history.Entries()
}

// LoadHistory adds the backend's generation records that the session does
// not hold yet.
func (s *Studio) LoadHistory(ctx context.Context) error {
	records, err := s.records.ListHistory(ctx)
	if err != nil {
		s.notify(ctx, core.LevelError, msgLoadHistoryFailed, err)

		return err
	}

	known := make(map[core.ResultID]struct{})
	for _, entry := range s.history.Entries() {
		known[entry.ID] = struct{}{}
	}

	fresh := make([]core.GenerationResult, 0, len(records))

	for _, record := range records {
		if _, ok := known[record.ID]; ok && record.ID.Valid() {
			continue
		}

		fresh = append(fresh, record)
	}

	if len(fresh) > 0 {
		s.history.Append(fresh)
	}

	return nil
}

// FindResult returns the history entry holding the backend record id.
func (s *Studio) FindResult(id core.ResultID) (history.Entry, bool) {
	for _, entry := range s.history.Entries() {
		if entry.ID == id {
			return entry, true
		}
	}

	return history.Entry{}, false
}

// Entry returns one history entry by key.
func (s *Studio) Entry(key string) (history.Entry, bool) {
	return s.history.Get(key)
}

// TogglePlayback plays or stops the history entry with key.
func (s *Studio) TogglePlayback(ctx context.Context, key string) (playback.State, error) {
	entry, ok := s.history.Get(key)
	if !ok {
		s.notify(ctx, core.LevelError, msgHistoryEntryAbsent, ErrEntryNotFound)

		return s.playback.State(), ErrEntryNotFound
	}

	state, err := s.playback.Toggle(ctx, playback.Item{Key: entry.Key, AudioFile: entry.AudioFile})
	if err != nil {
		if errors.Is(err, playback.ErrAudioUnavailable) {
			s.notify(ctx, core.LevelError, msgAudioUnavailable, err)
		} else {
			s.notify(ctx, core.LevelError, msgPlayFailed, err)
		}

		return state, err
	}

	return state, nil
}

// StopPlayback stops whatever is playing.
func (s *Studio) StopPlayback() {
	s.playback.Stop()
}

// Download saves the clip of the history entry with key and returns the
// object key it was stored under.
func (s *Studio) Download(ctx context.Context, key string) (string, error) {
	entry, ok := s.history.Get(key)
	if !ok {
		s.notify(ctx, core.LevelError, msgHistoryEntryAbsent, ErrEntryNotFound)

		return "", ErrEntryNotFound
	}

	objectKey, err := s.downloader.Download(ctx, entry.GenerationResult)
	if err != nil {
		if errors.Is(err, history.ErrNoAudioFile) {
			s.notify(ctx, core.LevelError, msgNoAudioFile, err)
		} else {
			s.notify(ctx, core.LevelError, msgDownloadFailed, err)
		}

		return "", err
	}

	s.notify(ctx, core.LevelSuccess, msgDownloadStarted, nil)

	return objectKey, nil
}

// Delete removes the history entry with key, stopping its playback first.
// Entries with a backend identifier are deleted on the backend as well.
func (s *Studio) Delete(ctx context.Context, key string) error {
	entry, ok := s.history.Get(key)
	if !ok {
		s.notify(ctx, core.LevelError, msgHistoryEntryAbsent, ErrEntryNotFound)

		return ErrEntryNotFound
	}

	if state := s.playback.State(); state.Playing && state.Key == key {
		s.playback.Stop()
	}

	err := s.history.RemoveKey(ctx, key)
	if err != nil {
		s.deletions.HistoryDeletion(metrics.DeletionFailed)
		s.notify(ctx, core.LevelError, msgDeleteFailed, err)

		return err
	}

	if entry.ID.Valid() {
		s.deletions.HistoryDeletion(metrics.DeletionSuccess)
	} else {
		s.deletions.HistoryDeletion(metrics.DeletionLocal)
	}

	s.notify(ctx, core.LevelSuccess, msgDeleted, nil)

	return nil
}

func (s *Studio) reportRunError(ctx context.Context, err error) {
	var validationErr *generation.ValidationError

	switch {
	case errors.Is(err, generation.ErrRunInProgress):
		s.log.Info("Generation already in progress, ignoring request")
	case errors.As(err, &validationErr):
		s.notify(ctx, core.LevelError, s.validationMessage(validationErr), err)
	default:
		// Batch failures were already surfaced by the executor.
		s.log.Error("Generation failed: %v", err)
	}
}

func (s *Studio) validationMessage(err *generation.ValidationError) string {
	switch {
	case errors.Is(err, generation.ErrEmptyText):
		return msgEnterText
	case errors.Is(err, generation.ErrNoTargetSelected):
		return msgSelectVoice
	case errors.Is(err, generation.ErrTextTooLong):
		return fmt.Sprintf(msgFmtTextTooLong, s.builder.MaxTextLength())
	default:
		return err.Error()
	}
}

// checkSelectable validates id against the catalog snapshot. An empty
// snapshot accepts every id.
func (s *Studio) checkSelectable(voiceType core.VoiceType, id core.TargetID) error {
	var snapshot []core.VoiceTarget
	if voiceType == core.VoiceTypeClone {
		snapshot = s.catalog.Clones()
	} else {
		snapshot = s.catalog.Profiles()
	}

	if len(snapshot) == 0 {
		return nil
	}

	target, err := s.catalog.Lookup(voiceType, id)
	if err != nil {
		return err
	}

	if !target.Ready() {
		return fmt.Errorf("%w: %s", ErrTargetNotReady, id)
	}

	return nil
}

func selectionMessage(err error, id core.TargetID) string {
	if errors.Is(err, ErrTargetNotReady) {
		return fmt.Sprintf(msgFmtCloneNotReady, id)
	}

	return fmt.Sprintf(msgFmtUnknownTarget, id)
}

func (s *Studio) notify(ctx context.Context, level core.NotificationLevel, message string, err error) {
	if s.notifier == nil {
		return
	}

	s.notifier.Notify(ctx, core.Notification{Level: level, Message: message, Err: err})
}

type noopDeletionRecorder struct{}

func (noopDeletionRecorder) HistoryDeletion(string) {}
