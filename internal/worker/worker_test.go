// Package worker_test tests the NATS generation worker.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/book-expert/voice-studio/internal/generation"
	"github.com/book-expert/voice-studio/internal/objectstore"
	"github.com/book-expert/voice-studio/internal/playback"
	"github.com/book-expert/voice-studio/internal/session"
	"github.com/book-expert/voice-studio/internal/voiceapi"
	"github.com/book-expert/voice-studio/internal/worker"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jobSubject   = "test.jobs"
	chunkSubject = "test.audio.chunk"
)

var (
	errMockGenerate = errors.New("mock generate error")
	errNoPlayback   = errors.New("playback is not used by the worker")
)

// mockBackend implements session.Backend. Generate blocks on release when set.
type mockBackend struct {
	mu       sync.Mutex
	release  chan struct{}
	started  chan core.TargetID
	failFor  map[core.TargetID]bool
	requests []core.GenerationRequest
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		release:  nil,
		started:  make(chan core.TargetID, 16),
		failFor:  make(map[core.TargetID]bool),
		requests: nil,
	}
}

func (m *mockBackend) ListProfiles(_ context.Context, _ core.ProfileFilter) ([]core.VoiceTarget, error) {
	return nil, nil
}

func (m *mockBackend) ListClones(_ context.Context) ([]core.VoiceTarget, error) {
	return nil, nil
}

func (m *mockBackend) Generate(_ context.Context, req core.GenerationRequest) (core.GenerationResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	release := m.release
	fail := m.failFor[req.TargetID]
	m.mu.Unlock()

	m.started <- req.TargetID

	if release != nil {
		<-release
	}

	if fail {
		return core.GenerationResult{}, errMockGenerate
	}

	id := core.ResultID(100 + int64(req.TargetID))

	return core.GenerationResult{
		ID:        id,
		InputText: req.Text,
		AudioFile: "/media/" + id.String() + ".mp3",
	}, nil
}

func (m *mockBackend) Translate(_ context.Context, _ string, _ core.TranslationConfig) (core.TranslationResponse, error) {
	return core.TranslationResponse{TranslatedText: "Hola", Error: ""}, nil
}

func (m *mockBackend) ListHistory(_ context.Context) ([]core.GenerationResult, error) {
	return nil, nil
}

func (m *mockBackend) DeleteHistory(_ context.Context, _ core.ResultID) error {
	return nil
}

func (m *mockBackend) AudioURL(locator string) (string, bool) {
	return voiceapi.ResolveAudioURL("http://api.test", locator)
}

func (m *mockBackend) FetchAudio(_ context.Context, _ string) ([]byte, error) {
	return nil, nil
}

type nopPlayer struct{}

func (nopPlayer) Start(_ context.Context, _ string) (playback.Handle, error) {
	return nil, errNoPlayback
}

func createTestNatsClient(t *testing.T) (*nats.Conn, func()) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)

	natsConnection, err := nats.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	cleanup := func() {
		natsConnection.Close()
		server.Shutdown()
	}

	return natsConnection, cleanup
}

type testSetup struct {
	worker  *worker.NatsWorker
	backend *mockBackend
	studio  *session.Studio
	conn    *nats.Conn
	chunks  *nats.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	errChan chan error
}

func setupTest(t *testing.T, backend *mockBackend) *testSetup {
	t.Helper()

	natsConnection, natsCleanup := createTestNatsClient(t)
	t.Cleanup(natsCleanup)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	_, err = jetstreamContext.AddStream(&nats.StreamConfig{
		Name:     "AUDIO_CHUNKS",
		Subjects: []string{chunkSubject},
	})
	require.NoError(t, err)

	chunks, err := natsConnection.SubscribeSync(chunkSubject)
	require.NoError(t, err)

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	downloads, err := objectstore.NewFileStore(t.TempDir())
	require.NoError(t, err)

	studio := session.New(backend, nopPlayer{}, downloads, nil, testLogger)

	workerInstance, err := worker.NewNatsWorker(
		natsConnection, jetstreamContext, jobSubject, chunkSubject, studio, backend, testLogger,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	// Run subscribes asynchronously; wait until the subject has interest.
	require.Eventually(t, func() bool {
		_, requestErr := natsConnection.Request(jobSubject, []byte("{"), 200*time.Millisecond)

		return requestErr == nil
	}, 5*time.Second, 50*time.Millisecond)

	return &testSetup{
		worker:  workerInstance,
		backend: backend,
		studio:  studio,
		conn:    natsConnection,
		chunks:  chunks,
		ctx:     ctx,
		cancel:  cancel,
		errChan: errChan,
	}
}

func (s *testSetup) request(t *testing.T, job worker.Job) worker.Reply {
	t.Helper()

	data, err := json.Marshal(job)
	require.NoError(t, err)

	msg, err := s.conn.Request(jobSubject, data, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	var reply worker.Reply

	require.NoError(t, json.Unmarshal(msg.Data, &reply))

	return reply
}

func (s *testSetup) shutdown(t *testing.T) {
	t.Helper()

	s.cancel()

	shutdownErr := <-s.errChan
	assert.NoError(t, shutdownErr, "worker.Run should not error on graceful shutdown")
}

func TestWorker_GeneratesAndPublishesChunks(t *testing.T) {
	t.Parallel()

	setup := setupTest(t, newMockBackend())

	reply := setup.request(t, worker.Job{
		Text:        "Hello",
		VoiceType:   "profile",
		TargetIDs:   []core.TargetID{1, 2},
		Translation: core.TranslationConfig{Enabled: true, TargetLanguage: "es", SourceLanguage: ""},
	})

	require.Empty(t, reply.Error)
	require.NotEmpty(t, reply.BatchID)
	require.Len(t, reply.Results, 2)
	assert.Equal(t, core.ResultID(101), reply.Results[0].ID)
	assert.Equal(t, core.ResultID(102), reply.Results[1].ID)
	assert.Equal(t, "Hola", reply.TranslatedText)
	assert.Empty(t, reply.Warning)
	assert.Len(t, setup.studio.History(), 2)

	for page := 1; page <= 2; page++ {
		msg, err := setup.chunks.NextMsg(5 * time.Second)
		require.NoError(t, err)

		var event events.AudioChunkCreatedEvent

		require.NoError(t, json.Unmarshal(msg.Data, &event))
		assert.Equal(t, reply.BatchID, event.Header.WorkflowID)
		assert.Equal(t, page, event.PageNumber)
		assert.Equal(t, 2, event.TotalPages)
		assert.Contains(t, event.AudioKey, "http://api.test/media/")
	}

	setup.shutdown(t)
}

func TestWorker_RejectsInvalidJobs(t *testing.T) {
	t.Parallel()

	setup := setupTest(t, newMockBackend())

	reply := setup.request(t, worker.Job{Text: "Hello", VoiceType: "robot", TargetIDs: []core.TargetID{1}})
	assert.Contains(t, reply.Error, core.ErrUnknownVoiceType.Error())

	reply = setup.request(t, worker.Job{Text: "Hello", VoiceType: "profile", TargetIDs: nil})
	assert.Equal(t, worker.ErrNoTargets.Error(), reply.Error)

	reply = setup.request(t, worker.Job{Text: "   ", VoiceType: "profile", TargetIDs: []core.TargetID{1}})
	assert.Contains(t, reply.Error, generation.ErrEmptyText.Error())

	setup.backend.mu.Lock()
	assert.Empty(t, setup.backend.requests)
	setup.backend.mu.Unlock()

	setup.shutdown(t)
}

func TestWorker_BatchFailureReportsError(t *testing.T) {
	t.Parallel()

	backend := newMockBackend()
	backend.failFor[2] = true
	setup := setupTest(t, backend)

	reply := setup.request(t, worker.Job{Text: "Hello", VoiceType: "profile", TargetIDs: []core.TargetID{1, 2}})
	assert.NotEmpty(t, reply.Error)
	assert.Empty(t, reply.Results)
	assert.Empty(t, setup.studio.History())

	_, err := setup.chunks.NextMsg(200 * time.Millisecond)
	require.ErrorIs(t, err, nats.ErrTimeout, "failed batches publish no chunk events")

	setup.shutdown(t)
}

func TestWorker_OverlappingJobIsDropped(t *testing.T) {
	t.Parallel()

	backend := newMockBackend()
	backend.release = make(chan struct{})
	setup := setupTest(t, backend)

	firstReply := make(chan worker.Reply, 1)

	go func() {
		firstReply <- setup.request(t, worker.Job{Text: "first", VoiceType: "profile", TargetIDs: []core.TargetID{1}})
	}()

	select {
	case <-backend.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first job never reached the backend")
	}

	second := setup.request(t, worker.Job{Text: "second", VoiceType: "profile", TargetIDs: []core.TargetID{2}})
	assert.Equal(t, generation.ErrRunInProgress.Error(), second.Error)

	close(backend.release)

	first := <-firstReply
	require.Empty(t, first.Error)
	require.Len(t, first.Results, 1)
	assert.Equal(t, "first", first.Results[0].InputText)

	setup.shutdown(t)
}

func TestNewNatsWorker_RequiresSubject(t *testing.T) {
	t.Parallel()

	_, err := worker.NewNatsWorker(nil, nil, "", "", nil, nil, nil)
	require.ErrorIs(t, err, worker.ErrSubjectEmpty)
}
