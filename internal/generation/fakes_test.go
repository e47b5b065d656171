package generation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/stretchr/testify/require"
)

var (
	errMockGenerate  = errors.New("mock generate error")
	errMockTranslate = errors.New("mock translate error")
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "generation-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	return log
}

// mockSpeech records every generation call. Calls for targets in failFor fail.
// When release is set every call blocks until it is closed.
type mockSpeech struct {
	mu       sync.Mutex
	requests []core.GenerationRequest
	failFor  map[core.TargetID]bool
	started  chan struct{}
	release  chan struct{}
}

func newMockSpeech() *mockSpeech {
	return &mockSpeech{
		requests: nil,
		failFor:  make(map[core.TargetID]bool),
		started:  make(chan struct{}, 16),
		release:  nil,
	}
}

func (m *mockSpeech) Generate(_ context.Context, req core.GenerationRequest) (core.GenerationResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	shouldFail := m.failFor[req.TargetID]
	release := m.release
	m.mu.Unlock()

	m.started <- struct{}{}

	if release != nil {
		<-release
	}

	if shouldFail {
		return core.GenerationResult{}, fmt.Errorf("%w for target %s", errMockGenerate, req.TargetID)
	}

	return core.GenerationResult{
		ID:              core.ResultID(100 + req.TargetID),
		InputText:       req.Text,
		AudioFile:       fmt.Sprintf("/media/generated/%s.mp3", req.TargetID),
		DurationSeconds: 1.0,
	}, nil
}

func (m *mockSpeech) Requests() []core.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.GenerationRequest, len(m.requests))
	copy(out, m.requests)

	return out
}

type mockTranslation struct {
	mu       sync.Mutex
	response core.TranslationResponse
	err      error
	calls    []core.TranslationConfig
}

func (m *mockTranslation) Translate(
	_ context.Context,
	_ string,
	cfg core.TranslationConfig,
) (core.TranslationResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, cfg)

	if m.err != nil {
		return core.TranslationResponse{}, m.err
	}

	return m.response, nil
}

type recordingHistory struct {
	mu      sync.Mutex
	batches [][]core.GenerationResult
}

func (h *recordingHistory) Append(results []core.GenerationResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.batches = append(h.batches, results)
}

func (h *recordingHistory) Batches() [][]core.GenerationResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.batches
}

type recordingNotifier struct {
	mu            sync.Mutex
	notifications []core.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification core.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	messages := make([]string, 0, len(n.notifications))
	for _, notification := range n.notifications {
		messages = append(messages, notification.Message)
	}

	return messages
}

type recordingIndicators struct {
	mu     sync.Mutex
	events []string
}

func (i *recordingIndicators) Translating(active bool) {
	i.record("translating", active)
}

func (i *recordingIndicators) Translated(text string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.events = append(i.events, "translated="+text)
}

func (i *recordingIndicators) Generating(active bool) {
	i.record("generating", active)
}

func (i *recordingIndicators) record(name string, active bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.events = append(i.events, fmt.Sprintf("%s=%t", name, active))
}

func (i *recordingIndicators) Events() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]string(nil), i.events...)
}
