// Package playback owns the single audio output of the studio. At most one clip
// plays at a time: starting a clip always stops the current one first.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
)

// Static errors.
var (
	ErrAudioUnavailable = errors.New("audio not available")
	ErrItemKeyEmpty     = errors.New("playback item key cannot be empty")
)

// PlaybackError reports a clip whose playback resource could not be started.
type PlaybackError struct {
	Key string
	URL string
	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("failed to play %s (%s): %v", e.Key, e.URL, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// Handle is one acquired playback resource.
type Handle interface {
	// Stop releases the resource. Stopping a finished clip is a no-op.
	Stop() error
	// Done is closed when the clip ends, naturally or through Stop.
	Done() <-chan struct{}
}

// Player acquires playback resources.
type Player interface {
	Start(ctx context.Context, url string) (Handle, error)
}

// Resolver turns an audio locator into a playable URL.
type Resolver interface {
	AudioURL(locator string) (string, bool)
}

// Recorder receives playback instrumentation.
type Recorder interface {
	PlaybackStarted(outcome string)
}

// Playback outcomes reported to the Recorder.
const (
	OutcomeStarted     = "started"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

// Item is a playable history entry.
type Item struct {
	Key       string
	AudioFile string
}

// State is the controller state: Stopped, or Playing the clip with Key.
type State struct {
	Playing bool
	Key     string
}

// Controller serializes all playback transitions.
type Controller struct {
	player   Player
	resolver Resolver
	recorder Recorder
	log      *logger.Logger

	mu      sync.Mutex
	current Handle
	key     string
	// generation distinguishes clips so a late end-of-clip signal from a
	// replaced clip cannot stop its successor.
	generation uint64
}

// NewController creates a stopped controller. recorder may be nil.
func NewController(player Player, resolver Resolver, recorder Recorder, log *logger.Logger) *Controller {
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Controller{
		player:     player,
		resolver:   resolver,
		recorder:   recorder,
		log:        log,
		current:    nil,
		key:        "",
		generation: 0,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{Playing: c.current != nil, Key: c.key}
}

// Toggle stops item if it is playing; otherwise it stops whatever plays and
// starts item. It returns the state after the transition. Failures leave the
// controller Stopped.
func (c *Controller) Toggle(ctx context.Context, item Item) (State, error) {
	if item.Key == "" {
		return c.State(), ErrItemKeyEmpty
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && c.key == item.Key {
		c.stopLocked()

		return State{Playing: false, Key: ""}, nil
	}

	c.stopLocked()

	url, ok := c.resolver.AudioURL(item.AudioFile)
	if !ok {
		c.recorder.PlaybackStarted(OutcomeUnavailable)

		return State{Playing: false, Key: ""}, fmt.Errorf("%w: %s", ErrAudioUnavailable, item.Key)
	}

	handle, err := c.player.Start(ctx, url)
	if err != nil {
		c.recorder.PlaybackStarted(OutcomeFailed)
		c.log.Error("Failed to start playback of %s: %v", url, err)

		return State{Playing: false, Key: ""}, &PlaybackError{Key: item.Key, URL: url, Err: err}
	}

	c.generation++
	c.current = handle
	c.key = item.Key
	c.recorder.PlaybackStarted(OutcomeStarted)

	go c.watch(c.generation, handle)

	return State{Playing: true, Key: item.Key}, nil
}

// Stop stops the current clip, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.current == nil {
		return
	}

	err := c.current.Stop()
	if err != nil {
		c.log.Warn("Failed to stop playback of %s: %v", c.key, err)
	}

	c.current = nil
	c.key = ""
}

// watch returns the controller to Stopped when a clip ends on its own.
func (c *Controller) watch(generation uint64, handle Handle) {
	<-handle.Done()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation == generation && c.current != nil {
		c.current = nil
		c.key = ""
	}
}

type noopRecorder struct{}

func (noopRecorder) PlaybackStarted(string) {}
