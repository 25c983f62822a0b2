package supervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuemby/keeper/pkg/types"
)

// fakeRouter is an in-memory Router recording every call for assertions.
type fakeRouter struct {
	mu        sync.Mutex
	nextPort  int
	entries   map[string]types.RouteTarget
	releases  []int
	failGet   bool
	failAddOn string // AddEntry fails when host == failAddOn
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{nextPort: 10000, entries: map[string]types.RouteTarget{}}
}

func (f *fakeRouter) GetPort(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return 0, fmt.Errorf("no ports available")
	}
	f.nextPort++
	return f.nextPort, nil
}

func (f *fakeRouter) AddEntry(ctx context.Context, host string, target types.RouteTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if host == f.failAddOn {
		return fmt.Errorf("simulated router failure for %s", host)
	}
	f.entries[host] = target
	return nil
}

func (f *fakeRouter) RemoveEntry(ctx context.Context, host string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, host)
	return nil
}

func (f *fakeRouter) ReleasePort(ctx context.Context, port int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases = append(f.releases, port)
	return nil
}

func (f *fakeRouter) has(host string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[host]
	return ok
}

func (f *fakeRouter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// fakeTracker is a ProcessTracker that never actually execs anything; it
// optionally opens a real listening socket on the requested port so the
// health probe observes a live listener, mimicking a well-behaved child.
type fakeTracker struct {
	mu        sync.Mutex
	running   map[int]bool
	terminate []int
	listen    bool // if true, Run opens a real TCP listener on the env PORT
	fail      bool
}

func newFakeTracker(listen bool) *fakeTracker {
	return &fakeTracker{running: map[int]bool{}, listen: listen}
}

func (f *fakeTracker) Run(ctx context.Context, req RunRequest) (*types.ChildHandle, error) {
	if f.fail {
		return nil, fmt.Errorf("simulated launch failure")
	}
	port := 0
	for _, e := range req.Env {
		fmt.Sscanf(e, "PORT=%d", &port)
	}
	if f.listen && port != 0 {
		startFakeListener(port)
	}
	f.mu.Lock()
	f.running[port] = true
	f.mu.Unlock()
	return &types.ChildHandle{PID: port}, nil
}

func (f *fakeTracker) Terminate(ctx context.Context, child *types.ChildHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminate = append(f.terminate, child.PID)
	stopFakeListener(child.PID)
	return nil
}

// fakeDB is a DBProvisioner returning fixed coordinates.
type fakeDB struct{}

func (fakeDB) GetInfo(ctx context.Context, app types.AppName) (DBInfo, error) {
	return DBInfo{User: "u", Pass: "p", Database: "d"}, nil
}

// fakeTempDirs allocates real temp directories under t.TempDir-rooted base.
type fakeTempDirs struct {
	mu   sync.Mutex
	base string
	n    int
}

func newFakeTempDirs(base string) *fakeTempDirs {
	return &fakeTempDirs{base: base}
}

func (f *fakeTempDirs) Allocate(app types.AppName) (string, error) {
	f.mu.Lock()
	f.n++
	dir := filepath.Join(f.base, fmt.Sprintf("%s-%d", app, f.n))
	f.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// observerSpy records every state transition in order.
type observerSpy struct {
	mu     sync.Mutex
	states []types.AppState
}

func (o *observerSpy) OnStateChange(app types.AppName, st types.AppState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, st)
}

func (o *observerSpy) last() types.AppState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.states) == 0 {
		return ""
	}
	return o.states[len(o.states)-1]
}
