package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/voice-studio/internal/catalog"
	"github.com/book-expert/voice-studio/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockList = errors.New("mock list error")

type mockCatalogAPI struct {
	profiles   []core.VoiceTarget
	clones     []core.VoiceTarget
	profileErr error
	cloneErr   error
}

func (m *mockCatalogAPI) ListProfiles(_ context.Context, _ core.ProfileFilter) ([]core.VoiceTarget, error) {
	return m.profiles, m.profileErr
}

func (m *mockCatalogAPI) ListClones(_ context.Context) ([]core.VoiceTarget, error) {
	return m.clones, m.cloneErr
}

func sampleProfiles() []core.VoiceTarget {
	return []core.VoiceTarget{
		{ID: 1, Kind: core.VoiceTypeProfile, Name: "Ana", Gender: "female", Emotion: "calm", Language: "es"},
		{ID: 2, Kind: core.VoiceTypeProfile, Name: "Ben", Gender: "male", Emotion: "happy", Language: "en"},
		{ID: 3, Kind: core.VoiceTypeProfile, Name: "Cleo", Gender: "female", Emotion: "happy", Language: "en"},
	}
}

func sampleClones() []core.VoiceTarget {
	return []core.VoiceTarget{
		{ID: 10, Kind: core.VoiceTypeClone, Name: "Mine", Status: core.CloneStatusReady},
		{ID: 11, Kind: core.VoiceTypeClone, Name: "Training", Status: core.CloneStatusProcessing},
		{ID: 12, Kind: core.VoiceTypeClone, Name: "Broken", Status: core.CloneStatusFailed},
	}
}

func newAccessor(t *testing.T, api core.CatalogAPI) *catalog.Accessor {
	t.Helper()

	log, err := logger.New(t.TempDir(), "catalog-test.log")
	require.NoError(t, err)

	return catalog.NewAccessor(api, log)
}

func TestFilterProfiles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter core.ProfileFilter
		want   []core.TargetID
	}{
		{name: "no constraint", filter: core.ProfileFilter{}, want: []core.TargetID{1, 2, 3}},
		{name: "all means none", filter: core.ProfileFilter{Gender: "all", Emotion: "all", Language: "all"}, want: []core.TargetID{1, 2, 3}},
		{name: "gender", filter: core.ProfileFilter{Gender: "female"}, want: []core.TargetID{1, 3}},
		{name: "combined", filter: core.ProfileFilter{Gender: "female", Emotion: "happy", Language: "en"}, want: []core.TargetID{3}},
		{name: "no match", filter: core.ProfileFilter{Language: "fr"}, want: []core.TargetID{}},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := catalog.FilterProfiles(sampleProfiles(), testCase.filter)

			ids := make([]core.TargetID, 0, len(got))
			for _, target := range got {
				ids = append(ids, target.ID)
			}

			assert.Equal(t, testCase.want, ids)
		})
	}
}

func TestFilterProfiles_Deterministic(t *testing.T) {
	t.Parallel()

	filter := core.ProfileFilter{Emotion: "happy"}

	assert.Equal(t,
		catalog.FilterProfiles(sampleProfiles(), filter),
		catalog.FilterProfiles(sampleProfiles(), filter),
	)
}

func TestReadyClones(t *testing.T) {
	t.Parallel()

	ready := catalog.ReadyClones(sampleClones())
	require.Len(t, ready, 1)
	assert.Equal(t, core.TargetID(10), ready[0].ID)
}

func TestRefresh_SnapshotAndTargets(t *testing.T) {
	t.Parallel()

	accessor := newAccessor(t, &mockCatalogAPI{profiles: sampleProfiles(), clones: sampleClones()})

	require.NoError(t, accessor.Refresh(context.Background()))
	assert.Len(t, accessor.Profiles(), 3)
	assert.Len(t, accessor.Clones(), 3)

	assert.Len(t, accessor.Targets(core.VoiceTypeProfile, core.ProfileFilter{Language: "en"}), 2)
	assert.Len(t, accessor.Targets(core.VoiceTypeClone, core.ProfileFilter{Language: "en"}), 1)

	target, err := accessor.Lookup(core.VoiceTypeClone, 11)
	require.NoError(t, err)
	assert.Equal(t, "Training", target.Name)

	_, err = accessor.Lookup(core.VoiceTypeProfile, 11)
	require.ErrorIs(t, err, catalog.ErrTargetNotFound)
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	t.Parallel()

	api := &mockCatalogAPI{profiles: sampleProfiles(), clones: sampleClones()}
	accessor := newAccessor(t, api)

	require.NoError(t, accessor.Refresh(context.Background()))

	api.cloneErr = errMockList
	api.profiles = nil

	err := accessor.Refresh(context.Background())
	require.ErrorIs(t, err, errMockList)
	assert.Len(t, accessor.Profiles(), 3)
}

func TestProfiles_ReturnsCopy(t *testing.T) {
	t.Parallel()

	accessor := newAccessor(t, &mockCatalogAPI{profiles: sampleProfiles()})
	require.NoError(t, accessor.Refresh(context.Background()))

	profiles := accessor.Profiles()
	profiles[0].Name = "changed"

	assert.Equal(t, "Ana", accessor.Profiles()[0].Name)
}
