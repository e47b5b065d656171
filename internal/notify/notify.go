// Package notify delivers user-visible notifications to the log, to NATS
// subscribers or to several sinks at once.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/nats-io/nats.go"
)

// ErrSubjectEmpty is returned when a NATS notifier has no subject.
var ErrSubjectEmpty = errors.New("notification subject cannot be empty")

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	log *logger.Logger
}

var _ core.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier writing to log.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify logs n at a severity matching its level.
func (l *LogNotifier) Notify(_ context.Context, n core.Notification) {
	message := n.Message
	if n.Err != nil {
		message = fmt.Sprintf("%s (%v)", n.Message, n.Err)
	}

	switch n.Level {
	case core.LevelError:
		l.log.Error("%s", message)
	case core.LevelWarning:
		l.log.Warn("%s", message)
	case core.LevelSuccess, core.LevelInfo:
		l.log.Info("%s", message)
	default:
		l.log.Info("%s", message)
	}
}

// Message is the wire form of a published notification.
type Message struct {
	Level     core.NotificationLevel `json:"level"`
	Message   string                 `json:"message"`
	Error     string                 `json:"error,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NatsNotifier publishes notifications as JSON on a NATS subject. Publishing
// is fire-and-forget; failures are logged.
type NatsNotifier struct {
	natsConnection *nats.Conn
	subject        string
	log            *logger.Logger
}

var _ core.Notifier = (*NatsNotifier)(nil)

// NewNatsNotifier creates a notifier publishing on subject.
func NewNatsNotifier(natsConnection *nats.Conn, subject string, log *logger.Logger) (*NatsNotifier, error) {
	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsNotifier{
		natsConnection: natsConnection,
		subject:        subject,
		log:            log,
	}, nil
}

func (n *NatsNotifier) Notify(_ context.Context, notification core.Notification) {
	msg := Message{
		Level:     notification.Level,
		Message:   notification.Message,
		Error:     "",
		Timestamp: time.Now().UTC(),
	}

	if notification.Err != nil {
		msg.Error = notification.Err.Error()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		n.log.Error("Failed to marshal notification: %v", err)

		return
	}

	err = n.natsConnection.Publish(n.subject, data)
	if err != nil {
		n.log.Error("Failed to publish notification on %s: %v", n.subject, err)
	}
}

// Multi fans a notification out to every notifier in order.
type Multi []core.Notifier

func (m Multi) Notify(ctx context.Context, n core.Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
