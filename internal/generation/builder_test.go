package generation_test

import (
	"strings"
	"testing"

	"github.com/book-expert/voice-studio/internal/core"
	"github.com/book-expert/voice-studio/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_OneRequestPerTarget(t *testing.T) {
	t.Parallel()

	builder := generation.NewBuilder(0)

	requests, err := builder.Build("Hello", []core.TargetID{1, 2}, core.VoiceTypeProfile)
	require.NoError(t, err)
	require.Len(t, requests, 2)

	assert.Equal(t, "Hello", requests[0].Text)
	assert.Equal(t, "Hello", requests[1].Text)
	assert.Equal(t, core.TargetID(1), requests[0].TargetID)
	assert.Equal(t, core.TargetID(2), requests[1].TargetID)
	assert.Equal(t, core.VoiceTypeProfile, requests[0].VoiceType)
}

func TestBuild_TrimsAndDeduplicates(t *testing.T) {
	t.Parallel()

	builder := generation.NewBuilder(0)

	requests, err := builder.Build("  Hi there \n", []core.TargetID{7, 3, 7}, core.VoiceTypeClone)
	require.NoError(t, err)
	require.Len(t, requests, 2)

	for _, req := range requests {
		assert.Equal(t, "Hi there", req.Text)
		assert.Equal(t, core.VoiceTypeClone, req.VoiceType)
	}

	assert.Equal(t, core.TargetID(7), requests[0].TargetID)
	assert.Equal(t, core.TargetID(3), requests[1].TargetID)
}

func TestBuild_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		targets   []core.TargetID
		voiceType core.VoiceType
		want      error
	}{
		{name: "empty text", text: "", targets: []core.TargetID{1}, voiceType: core.VoiceTypeProfile, want: generation.ErrEmptyText},
		{name: "blank text", text: " \t\n", targets: []core.TargetID{1}, voiceType: core.VoiceTypeProfile, want: generation.ErrEmptyText},
		{name: "no targets", text: "Hello", targets: nil, voiceType: core.VoiceTypeProfile, want: generation.ErrNoTargetSelected},
		{name: "too long", text: strings.Repeat("a", 11), targets: []core.TargetID{1}, voiceType: core.VoiceTypeProfile, want: generation.ErrTextTooLong},
		{name: "unknown voice type", text: "Hello", targets: []core.TargetID{1}, voiceType: "robot", want: core.ErrUnknownVoiceType},
	}

	builder := generation.NewBuilder(10)

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			requests, err := builder.Build(testCase.text, testCase.targets, testCase.voiceType)
			require.Error(t, err)
			assert.Nil(t, requests)
			require.ErrorIs(t, err, testCase.want)

			var validationErr *generation.ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestBuild_LimitCountsCharactersNotBytes(t *testing.T) {
	t.Parallel()

	builder := generation.NewBuilder(5)

	_, err := builder.Build("héllö", []core.TargetID{1}, core.VoiceTypeProfile)
	require.NoError(t, err)

	_, err = builder.Build("héllö!", []core.TargetID{1}, core.VoiceTypeProfile)
	require.ErrorIs(t, err, generation.ErrTextTooLong)
}

func TestNewBuilder_DefaultLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, generation.DefaultMaxTextLength, generation.NewBuilder(-1).MaxTextLength())
	assert.Equal(t, 42, generation.NewBuilder(42).MaxTextLength())

	_, err := generation.NewBuilder(0).Build(strings.Repeat("x", 5000), []core.TargetID{1}, core.VoiceTypeProfile)
	require.NoError(t, err)

	_, err = generation.NewBuilder(0).Build(strings.Repeat("x", 5001), []core.TargetID{1}, core.VoiceTypeProfile)
	require.ErrorIs(t, err, generation.ErrTextTooLong)
}
