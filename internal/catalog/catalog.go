// Package catalog holds the snapshot of voice targets available to the caller
// and the pure queries used to filter it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/core"
	"golang.org/x/sync/errgroup"
)

// FilterAll matches every value of a filter dimension.
const FilterAll = "all"

// ErrTargetNotFound is returned by Lookup for an unknown identifier.
var ErrTargetNotFound = errors.New("voice target not found")

// Accessor fetches profiles and clones and keeps the last snapshot. Snapshots
// are replaced wholesale on Refresh and never mutated in place.
type Accessor struct {
	api core.CatalogAPI
	log *logger.Logger

	mu       sync.RWMutex
	profiles []core.VoiceTarget
	clones   []core.VoiceTarget
}

// NewAccessor creates an accessor with an empty snapshot.
func NewAccessor(api core.CatalogAPI, log *logger.Logger) *Accessor {
	return &Accessor{
		api:      api,
		log:      log,
		profiles: nil,
		clones:   nil,
	}
}

// Refresh fetches profiles and clones concurrently and swaps in the new
// snapshot. On any failure the previous snapshot is kept.
func (a *Accessor) Refresh(ctx context.Context) error {
	var profiles, clones []core.VoiceTarget

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		fetched, err := a.api.ListProfiles(groupCtx, core.ProfileFilter{})
		if err != nil {
			return fmt.Errorf("failed to list voice profiles: %w", err)
		}

		profiles = fetched

		return nil
	})

	group.Go(func() error {
		fetched, err := a.api.ListClones(groupCtx)
		if err != nil {
			return fmt.Errorf("failed to list voice clones: %w", err)
		}

		clones = fetched

		return nil
	})

	err := group.Wait()
	if err != nil {
		a.log.Error("Failed to refresh voice catalog: %v", err)

		return err
	}

	a.mu.Lock()
	a.profiles = profiles
	a.clones = clones
	a.mu.Unlock()

	a.log.Info("Voice catalog refreshed: %d profile(s), %d clone(s)", len(profiles), len(clones))

	return nil
}

// Profiles returns a copy of the current profile snapshot.
func (a *Accessor) Profiles() []core.VoiceTarget {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return clone(a.profiles)
}

// Clones returns a copy of the current clone snapshot.
func (a *Accessor) Clones() []core.VoiceTarget {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return clone(a.clones)
}

// Targets returns the selectable targets for a voice type: filtered profiles,
// or the ready clones.
func (a *Accessor) Targets(voiceType core.VoiceType, filter core.ProfileFilter) []core.VoiceTarget {
	if voiceType == core.VoiceTypeClone {
		return ReadyClones(a.Clones())
	}

	return FilterProfiles(a.Profiles(), filter)
}

// Lookup finds a target of the given voice type in the snapshot.
func (a *Accessor) Lookup(voiceType core.VoiceType, id core.TargetID) (core.VoiceTarget, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	source := a.profiles
	if voiceType == core.VoiceTypeClone {
		source = a.clones
	}

	for _, target := range source {
		if target.ID == id {
			return target, nil
		}
	}

	return core.VoiceTarget{}, fmt.Errorf("%w: %s %s", ErrTargetNotFound, voiceType, id)
}

// FilterProfiles returns the profiles matching every set dimension of filter,
// in snapshot order. Empty or "all" imposes no constraint.
func FilterProfiles(profiles []core.VoiceTarget, filter core.ProfileFilter) []core.VoiceTarget {
	matched := make([]core.VoiceTarget, 0, len(profiles))

	for _, profile := range profiles {
		if matches(filter.Gender, profile.Gender) &&
			matches(filter.Emotion, profile.Emotion) &&
			matches(filter.Language, profile.Language) {
			matched = append(matched, profile)
		}
	}

	return matched
}

// ReadyClones returns the clones that finished training, in snapshot order.
func ReadyClones(clones []core.VoiceTarget) []core.VoiceTarget {
	ready := make([]core.VoiceTarget, 0, len(clones))

	for _, voiceClone := range clones {
		if voiceClone.Status == core.CloneStatusReady {
			ready = append(ready, voiceClone)
		}
	}

	return ready
}

func matches(want, got string) bool {
	return want == "" || want == FilterAll || want == got
}

func clone(targets []core.VoiceTarget) []core.VoiceTarget {
	out := make([]core.VoiceTarget, len(targets))
	copy(out, targets)

	return out
}
