// Package history keeps the session-scoped record of generated clips, newest
// batch first, and mirrors deletions to the backend.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/google/uuid"
)

// Static errors.
var (
	ErrEntryNotFound   = errors.New("history entry not found")
	ErrIndexOutOfRange = errors.New("history index out of range")
	ErrNoIdentifier    = errors.New("history entry has no backend identifier")
)

// DeletionError reports a failed backend deletion. Removed tells whether the
// local entry was dropped anyway, which happens whenever the backend answered.
type DeletionError struct {
	ID      core.ResultID
	Removed bool
	Err     error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("failed to delete history entry %s: %v", e.ID, e.Err)
}

func (e *DeletionError) Unwrap() error {
	return e.Err
}

// Entry is one clip in the session history. Key is a local identifier that is
// stable even for results the backend never persisted.
type Entry struct {
	Key string
	core.GenerationResult
}

// Store is the session history. Entries are immutable once appended; only
// whole-entry removal is supported.
type Store struct {
	api core.HistoryAPI
	log *logger.Logger

	mu      sync.RWMutex
	entries []Entry
}

// NewStore creates an empty history backed by api for deletions.
func NewStore(api core.HistoryAPI, log *logger.Logger) *Store {
	return &Store{
		api:     api,
		log:     log,
		entries: nil,
	}
}

// Append inserts a batch ahead of every existing entry, keeping the batch's
// own order.
func (s *Store) Append(results []core.GenerationResult) {
	if len(results) == 0 {
		return
	}

	batch := make([]Entry, 0, len(results))
	for _, result := range results {
		batch = append(batch, Entry{Key: uuid.NewString(), GenerationResult: result})
	}

	s.mu.Lock()
	s.entries = append(batch, s.entries...)
	s.mu.Unlock()
}

// Entries returns a snapshot of the history, newest first.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)

	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Get returns the entry with the given local key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries {
		if entry.Key == key {
			return entry, true
		}
	}

	return Entry{}, false
}

// Remove deletes the entry with the given backend identifier. The backend is
// asked first; the local entry is removed whenever a response was received,
// even an error response, in which case a *DeletionError is returned as well.
// When no response arrived (transport failure, cancellation) the entry is kept.
func (s *Store) Remove(ctx context.Context, id core.ResultID) error {
	if !id.Valid() {
		return ErrNoIdentifier
	}

	if !s.contains(id) {
		return fmt.Errorf("%w: id %s", ErrEntryNotFound, id)
	}

	err := s.api.DeleteHistory(ctx, id)
	if err != nil {
		var respErr core.ResponseError
		if !errors.As(err, &respErr) {
			s.log.Error("Backend deletion of history entry %s aborted, keeping it: %v", id, err)

			return &DeletionError{ID: id, Removed: false, Err: err}
		}

		s.log.Warn("Backend deletion of history entry %s failed with status %d, removing locally",
			id, respErr.HTTPStatus())
	}

	s.removeFirst(func(entry Entry) bool { return entry.ID == id })

	if err != nil {
		return &DeletionError{ID: id, Removed: true, Err: err}
	}

	return nil
}

// RemoveAt deletes the entry at position index. Entries without a backend
// identifier are removed locally only.
func (s *Store) RemoveAt(ctx context.Context, index int) error {
	s.mu.RLock()
	if index < 0 || index >= len(s.entries) {
		s.mu.RUnlock()

		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	entry := s.entries[index]
	s.mu.RUnlock()

	return s.RemoveKey(ctx, entry.Key)
}

// RemoveKey deletes the entry with the given local key, mirroring the
// deletion to the backend when the entry has an identifier.
func (s *Store) RemoveKey(ctx context.Context, key string) error {
	entry, ok := s.Get(key)
	if !ok {
		return fmt.Errorf("%w: key %s", ErrEntryNotFound, key)
	}

	if entry.ID.Valid() {
		return s.Remove(ctx, entry.ID)
	}

	s.removeFirst(func(candidate Entry) bool { return candidate.Key == key })

	return nil
}

func (s *Store) contains(id core.ResultID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.entries {
		if entry.ID == id {
			return true
		}
	}

	return false
}

func (s *Store) removeFirst(match func(Entry) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.entries {
		if match(entry) {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)

			return
		}
	}
}
