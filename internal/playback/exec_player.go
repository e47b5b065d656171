package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
)

// ErrPlayerCommandEmpty is returned when no player command is configured.
var ErrPlayerCommandEmpty = errors.New("player command cannot be empty")

// ExecPlayer plays clips through an external command such as ffplay. The clip
// URL is appended as the last argument.
type ExecPlayer struct {
	command string
	args    []string
}

var _ Player = (*ExecPlayer)(nil)

// NewExecPlayer creates a player running command with args.
func NewExecPlayer(command string, args []string) *ExecPlayer {
	return &ExecPlayer{
		command: command,
		args:    append([]string(nil), args...),
	}
}

// Start launches the player process. The process is not bound to ctx: a
// clip keeps playing after the request that started it returns.
func (p *ExecPlayer) Start(_ context.Context, url string) (Handle, error) {
	if p.command == "" {
		return nil, ErrPlayerCommandEmpty
	}

	args := append(append([]string(nil), p.args...), url)

	// #nosec G204 -- the command comes from configuration, the URL is a single argument
	cmd := exec.Command(p.command, args...)

	err := cmd.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", p.command, err)
	}

	handle := &processHandle{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	go handle.wait()

	return handle, nil
}

type processHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	once    sync.Once
	stopErr error
}

func (h *processHandle) wait() {
	_ = h.cmd.Wait()

	close(h.done)
}

func (h *processHandle) Done() <-chan struct{} {
	return h.done
}

// Stop kills the process and waits for it to exit.
func (h *processHandle) Stop() error {
	h.once.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}

		err := h.cmd.Process.Kill()
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			h.stopErr = fmt.Errorf("failed to stop player: %w", err)

			return
		}

		<-h.done
	})

	return h.stopErr
}
