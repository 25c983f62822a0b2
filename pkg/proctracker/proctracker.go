// Package proctracker implements the local ProcessTracker: launching bundle
// executables as plain OS processes under the resolved Owner, and reaping
// them on terminate. Grounded on the teacher's own test-harness Process
// type (exec.CommandContext, stdout/stderr capture, SIGTERM-based stop).
package proctracker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cuemby/keeper/pkg/supervisor"
	"github.com/cuemby/keeper/pkg/types"
	"github.com/rs/zerolog"
)

// entry tracks one running child: the *exec.Cmd and the single goroutine's
// exit signal. cmd.Wait must be called exactly once, by waitAndReap.
type entry struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// Tracker launches and reaps app children as local OS processes.
type Tracker struct {
	mu        sync.Mutex
	processes map[int]*entry
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{processes: make(map[int]*entry)}
}

var _ supervisor.ProcessTracker = (*Tracker)(nil)

// Run execs req.Exec — an absolute path under req.WorkDir resolved by the
// config loader — under req.Owner's credential, with exactly req.Env as its
// environment (nothing is inherited from the daemon), and returns once the
// process has started; it does not wait for exit.
func (t *Tracker) Run(ctx context.Context, req supervisor.RunRequest) (*types.ChildHandle, error) {
	cmd := exec.Command(req.Exec, req.Args...)
	cmd.Dir = req.WorkDir
	cmd.Env = req.Env
	if cred := req.Owner.Credential(); cred != nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{Credential: cred}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("proctracker: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("proctracker: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("proctracker: start %s: %w", req.Exec, err)
	}

	pid := cmd.Process.Pid
	e := &entry{cmd: cmd, done: make(chan struct{})}
	t.mu.Lock()
	t.processes[pid] = e
	t.mu.Unlock()

	go captureLogs(req.Logger, "stdout", stdout)
	go captureLogs(req.Logger, "stderr", stderr)
	go t.waitAndReap(pid, e)

	return &types.ChildHandle{PID: pid}, nil
}

// Terminate sends SIGTERM, then escalates to SIGKILL after 5s if the
// process has not exited.
func (t *Tracker) Terminate(ctx context.Context, child *types.ChildHandle) error {
	t.mu.Lock()
	e, ok := t.processes[child.PID]
	t.mu.Unlock()
	if !ok || e.cmd.Process == nil {
		return nil
	}

	if err := e.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("proctracker: sigterm pid %d: %w", child.PID, err)
	}

	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		_ = e.cmd.Process.Kill()
		<-e.done
	}
	return nil
}

// waitAndReap is the sole caller of cmd.Wait for this child.
func (t *Tracker) waitAndReap(pid int, e *entry) {
	_ = e.cmd.Wait()
	close(e.done)
	t.mu.Lock()
	delete(t.processes, pid)
	t.mu.Unlock()
}

func captureLogs(logger zerolog.Logger, stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Info().Str("stream", stream).Msg(scanner.Text())
	}
}
