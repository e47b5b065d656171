package playback_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/book-expert/voice-studio/internal/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCommand(t *testing.T, name string) {
	t.Helper()

	_, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("Skipping test: %s not available", name)
	}
}

func TestExecPlayer_StopKillsProcess(t *testing.T) {
	t.Parallel()
	requireCommand(t, "sleep")

	player := playback.NewExecPlayer("sleep", nil)

	handle, err := player.Start(context.Background(), "30")
	require.NoError(t, err)

	require.NoError(t, handle.Stop())

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("player process did not exit after Stop")
	}

	require.NoError(t, handle.Stop())
}

func TestExecPlayer_NaturalEnd(t *testing.T) {
	t.Parallel()
	requireCommand(t, "true")

	player := playback.NewExecPlayer("true", nil)

	handle, err := player.Start(context.Background(), "ignored")
	require.NoError(t, err)

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("player process did not finish")
	}

	assert.NoError(t, handle.Stop())
}

func TestExecPlayer_StartFailures(t *testing.T) {
	t.Parallel()

	_, err := playback.NewExecPlayer("", nil).Start(context.Background(), "x")
	require.ErrorIs(t, err, playback.ErrPlayerCommandEmpty)

	_, err = playback.NewExecPlayer("definitely-not-a-player-binary", nil).Start(context.Background(), "x")
	require.Error(t, err)
}
