package generation

import "github.com/book-expert/voice-studio/internal/core"

// Selection is the set of voice targets chosen for the next run. It is scoped
// to one voice type and keeps insertion order so batches are reproducible.
// A Selection is not safe for concurrent use.
type Selection struct {
	voiceType core.VoiceType
	ids       []core.TargetID
	members   map[core.TargetID]struct{}
}

// NewSelection returns an empty selection for voiceType.
func NewSelection(voiceType core.VoiceType) *Selection {
	return &Selection{
		voiceType: voiceType,
		ids:       nil,
		members:   make(map[core.TargetID]struct{}),
	}
}

// VoiceType returns the voice type the selection is scoped to.
func (s *Selection) VoiceType() core.VoiceType {
	return s.voiceType
}

// SetVoiceType switches the scope. Any change clears the selection.
func (s *Selection) SetVoiceType(voiceType core.VoiceType) {
	if voiceType == s.voiceType {
		return
	}

	s.voiceType = voiceType
	s.Clear()
}

// Toggle adds id when absent and removes it when present. It reports whether
// id is selected afterwards.
func (s *Selection) Toggle(id core.TargetID) bool {
	if s.Contains(id) {
		s.Remove(id)

		return false
	}

	s.Add(id)

	return true
}

// Add selects id. Adding an already selected id is a no-op.
func (s *Selection) Add(id core.TargetID) {
	if s.Contains(id) {
		return
	}

	s.members[id] = struct{}{}
	s.ids = append(s.ids, id)
}

// Remove deselects id.
func (s *Selection) Remove(id core.TargetID) {
	if !s.Contains(id) {
		return
	}

	delete(s.members, id)

	for i, existing := range s.ids {
		if existing == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)

			break
		}
	}
}

func (s *Selection) Contains(id core.TargetID) bool {
	_, ok := s.members[id]

	return ok
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = nil
	s.members = make(map[core.TargetID]struct{})
}

func (s *Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected identifiers in insertion order.
func (s *Selection) IDs() []core.TargetID {
	ids := make([]core.TargetID, len(s.ids))
	copy(ids, s.ids)

	return ids
}
