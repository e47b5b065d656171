// Package worker provides a NATS worker that runs voice generation jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/book-expert/voice-studio/internal/generation"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 5 * time.Minute

var (
	// ErrSubjectEmpty indicates that the job subject is empty.
	ErrSubjectEmpty = errors.New("job subject cannot be empty")
	// ErrNoTargets indicates that a job names no voice targets.
	ErrNoTargets = errors.New("job has no target ids")
)

// Job is the payload accepted on the job subject.
type Job struct {
	Text        string                 `json:"text"`
	VoiceType   string                 `json:"voice_type"`
	TargetIDs   []core.TargetID        `json:"target_ids"`
	Translation core.TranslationConfig `json:"translation"`
}

// Reply is sent back to the requester once a job completes or fails.
type Reply struct {
	BatchID        string                  `json:"batch_id,omitempty"`
	Results        []core.GenerationResult `json:"results,omitempty"`
	TranslatedText string                  `json:"translated_text,omitempty"`
	Warning        string                  `json:"warning,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

// Submitter runs one generation batch.
type Submitter interface {
	Submit(ctx context.Context, input generation.RunInput) (generation.RunResult, error)
}

// AudioResolver turns an audio locator into a playable URL.
type AudioResolver interface {
	AudioURL(locator string) (string, bool)
}

// NatsWorker listens for generation jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection   *nats.Conn
	jetstreamContext nats.JetStreamContext
	subject          string
	eventSubject     string
	submitter        Submitter
	resolver         AudioResolver
	log              *logger.Logger

	inflight sync.WaitGroup
}

// NewNatsWorker creates a new instance of a NATS worker. AudioChunkCreated
// events are published through jetstreamContext on eventSubject; an empty
// eventSubject disables them.
func NewNatsWorker(
	natsConnection *nats.Conn,
	jetstreamContext nats.JetStreamContext,
	subject string,
	eventSubject string,
	submitter Submitter,
	resolver AudioResolver,
	log *logger.Logger,
) (*NatsWorker, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsWorker{
		natsConnection:   natsConnection,
		jetstreamContext: jetstreamContext,
		subject:          subject,
		eventSubject:     eventSubject,
		submitter:        submitter,
		resolver:         resolver,
		log:              log,
		inflight:         sync.WaitGroup{},
	}, nil
}

// Run starts the worker and blocks until ctx is cancelled. Jobs are handled
// concurrently so that one arriving mid-run meets the run-in-progress guard.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, func(msg *nats.Msg) {
		w.inflight.Add(1)

		go func() {
			defer w.inflight.Done()

			w.handleMessage(msg)
		}()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for generation jobs on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	w.inflight.Wait()

	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	input, err := parseJob(msg.Data)
	if err != nil {
		w.log.Error("Failed to parse job: %v", err)
		w.respond(msg, &Reply{Error: err.Error()})

		return
	}

	result, err := w.submitter.Submit(ctx, input)
	if err != nil {
		w.log.Warn("Generation job on %s failed: %v", msg.Subject, err)
		w.respond(msg, &Reply{Error: err.Error()})

		return
	}

	reply := &Reply{
		BatchID: result.BatchID,
		Results: result.Results,
	}

	if result.Translation.Translated {
		reply.TranslatedText = result.Text
	}

	if result.Translation.Warning != nil {
		reply.Warning = result.Translation.Warning.Message
	}

	w.publishChunkEvents(result)
	w.respond(msg, reply)
}

func parseJob(data []byte) (generation.RunInput, error) {
	var job Job

	err := json.Unmarshal(data, &job)
	if err != nil {
		return generation.RunInput{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	voiceType := core.VoiceTypeProfile
	if job.VoiceType != "" {
		voiceType, err = core.ParseVoiceType(job.VoiceType)
		if err != nil {
			return generation.RunInput{}, err
		}
	}

	if len(job.TargetIDs) == 0 {
		return generation.RunInput{}, ErrNoTargets
	}

	return generation.RunInput{
		Text:        job.Text,
		Targets:     job.TargetIDs,
		VoiceType:   voiceType,
		Translation: job.Translation,
	}, nil
}

// publishChunkEvents announces every clip of the batch. Failures are logged;
// the requester still gets its reply.
func (w *NatsWorker) publishChunkEvents(result generation.RunResult) {
	if w.eventSubject == "" || w.jetstreamContext == nil {
		return
	}

	total := len(result.Results)

	for i, clip := range result.Results {
		audioKey := clip.AudioFile
		if w.resolver != nil {
			if url, ok := w.resolver.AudioURL(clip.AudioFile); ok {
				audioKey = url
			}
		}

		event := &events.AudioChunkCreatedEvent{
			Header: events.EventHeader{
				Timestamp:  time.Now(),
				WorkflowID: result.BatchID,
				EventID:    uuid.NewString(),
				UserID:     "",
				TenantID:   "",
			},
			AudioKey:   audioKey,
			PageNumber: i + 1,
			TotalPages: total,
		}

		data, err := json.Marshal(event)
		if err != nil {
			w.log.Error("Failed to marshal audio chunk event: %v", err)

			continue
		}

		_, err = w.jetstreamContext.Publish(w.eventSubject, data)
		if err != nil {
			w.log.Error("Failed to publish audio chunk event for batch %s: %v", result.BatchID, err)
		}
	}
}

func (w *NatsWorker) respond(msg *nats.Msg, reply *Reply) {
	if msg.Reply == "" {
		return
	}

	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply: %v", err)
	}
}
