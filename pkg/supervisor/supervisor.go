// Package supervisor implements the per-application state machine: initial
// bring-up, zero-downtime reload, and terminate, driving the bundle
// extractor, config loader, and health prober against the Router,
// ProcessTracker, and DBProvisioner collaborators.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cuemby/keeper/pkg/bundle"
	"github.com/cuemby/keeper/pkg/config"
	"github.com/cuemby/keeper/pkg/health"
	"github.com/cuemby/keeper/pkg/kerrs"
	"github.com/cuemby/keeper/pkg/log"
	"github.com/cuemby/keeper/pkg/metrics"
	"github.com/cuemby/keeper/pkg/security"
	"github.com/cuemby/keeper/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultProbeBudget      = health.DefaultBudget
	defaultProbeInterval    = health.DefaultInterval
	defaultRetireKillDelay  = 20 * time.Second
	defaultRetireDirDelay   = 60 * time.Second
	mailboxCapacity         = 16
)

// TempDirAllocator mints a fresh, empty working directory for one bundle
// incarnation. An out-of-scope collaborator.
type TempDirAllocator interface {
	Allocate(app types.AppName) (string, error)
}

// StateObserver is notified of every state transition a Supervisor makes.
// Used to feed the admin API's lifecycle event stream; entirely optional.
type StateObserver interface {
	OnStateChange(app types.AppName, state types.AppState)
}

// Options configures a Supervisor. Router, Tracker, and TempDirs must be
// set (and DB, for apps with postgres enabled); the zero-valued timing
// fields are filled with their defaults by New. Tests override the timing
// fields to avoid waiting on the real 90s/20s/60s windows.
type Options struct {
	Router         Router
	Tracker        ProcessTracker
	DB             DBProvisioner
	TempDirs       TempDirAllocator
	Owner          *security.Owner
	Observer       StateObserver
	OnDead         func()
	ProbeBudget    time.Duration
	ProbeInterval  time.Duration
	RetireKillWait time.Duration
	RetireDirWait  time.Duration
}

// Supervisor owns one app's lifecycle from Bring-up through Dead. All
// incarnation state lives on the run goroutine's stack; the only lock is
// stateMu, around the published AppState.
type Supervisor struct {
	name    types.AppName
	opts    Options
	logger  zerolog.Logger
	mailbox chan message

	stateMu sync.Mutex // guards only the published AppState read by Supervisor.State
	state   types.AppState
}

type message interface{ isMessage() }

type reloadMsg struct{ bundle types.BundleRef }
type terminateMsg struct{}

func (reloadMsg) isMessage()    {}
func (terminateMsg) isMessage() {}

// BundleRef re-exports types.BundleRef for callers that only import this
// package.
type BundleRef = types.BundleRef

// New constructs a Supervisor for app, applying timing defaults for any
// zero-valued duration in opts.
func New(name types.AppName, opts Options) *Supervisor {
	if opts.ProbeBudget == 0 {
		opts.ProbeBudget = defaultProbeBudget
	}
	if opts.ProbeInterval == 0 {
		opts.ProbeInterval = defaultProbeInterval
	}
	if opts.RetireKillWait == 0 {
		opts.RetireKillWait = defaultRetireKillDelay
	}
	if opts.RetireDirWait == 0 {
		opts.RetireDirWait = defaultRetireDirDelay
	}
	return &Supervisor{
		name:    name,
		opts:    opts,
		logger:  log.WithAppName(string(name)),
		mailbox: make(chan message, mailboxCapacity),
		state:   types.AppStateBootstrapping,
	}
}

// Start runs the initial bring-up protocol synchronously. On
// success it launches the mailbox goroutine and returns a live Handle; on
// any hard failure it performs cleanup, invokes opts.OnDead exactly once,
// and returns the error — the caller does not need to, and must not, call
// OnDead itself.
func (s *Supervisor) Start(ctx context.Context, ref types.BundleRef) (*Handle, error) {
	inc, err := s.bringUp(ctx, ref)
	if err != nil {
		metrics.BringUpsTotal.WithLabelValues("failure").Inc()
		s.setState(types.AppStateDead)
		s.logger.Error().Err(err).Msg("InvalidBundle")
		if s.opts.OnDead != nil {
			s.opts.OnDead()
		}
		return nil, err
	}

	metrics.BringUpsTotal.WithLabelValues("success").Inc()
	s.setState(types.AppStateServing)
	go s.run(inc)
	return &Handle{mailbox: s.mailbox}, nil
}

// State reports the Supervisor's current AppState.
func (s *Supervisor) State() types.AppState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Supervisor) setState(st types.AppState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
	if s.opts.Observer != nil {
		s.opts.Observer.OnStateChange(s.name, st)
	}
}

// run is the mailbox loop: it processes exactly one command at a time,
// strictly in arrival order.
func (s *Supervisor) run(current *types.Incarnation) {
	for msg := range s.mailbox {
		switch m := msg.(type) {
		case reloadMsg:
			s.setState(types.AppStateReloading)
			next, err := s.reload(context.Background(), current, m.bundle)
			if err != nil {
				metrics.ReloadsTotal.WithLabelValues("failure").Inc()
				s.logger.Warn().Err(err).Msg("InvalidBundle")
				s.setState(types.AppStateServing)
				continue
			}
			metrics.ReloadsTotal.WithLabelValues("success").Inc()
			current = next
			s.setState(types.AppStateServing)
			s.logger.Info().Msg("FinishedReloading")
		case terminateMsg:
			s.terminate(context.Background(), current)
			metrics.TerminationsTotal.Inc()
			s.setState(types.AppStateDead)
			close(s.mailbox)
			return
		}
	}
}

// bringUp implements the initial bring-up protocol.
func (s *Supervisor) bringUp(ctx context.Context, ref types.BundleRef) (inc *types.Incarnation, err error) {
	dir, err := s.opts.TempDirs.Allocate(s.name)
	if err != nil {
		return nil, kerrs.New(kerrs.TempDirFailed, "allocate workdir", err)
	}

	s.logger.Info().Str("bundle", string(ref)).Msg("UnpackingBundle")
	if err := bundle.Extract(string(ref), dir, s.opts.Owner); err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	inc = &types.Incarnation{
		ID:        uuid.NewString(),
		WorkDir:   dir,
		Config:    cfg,
		StartedAt: time.Now(),
	}

	if cfg.App != nil {
		if err := s.launchAndProbe(ctx, inc); err != nil {
			_ = os.RemoveAll(dir)
			return nil, err
		}
	}

	if err := s.publishRoutes(ctx, inc.Config, inc.Port, inc.HasPort); err != nil {
		if inc.HasPort {
			_ = s.opts.Tracker.Terminate(ctx, inc.Child)
			_ = s.opts.Router.ReleasePort(ctx, int(inc.Port))
		}
		_ = os.RemoveAll(dir)
		return nil, err
	}

	return inc, nil
}

// launchAndProbe acquires a port, launches the child, and probes it.
// Populates inc.Port/HasPort/Child on success. On probe failure it
// terminates the child and releases the port before returning
// kerrs.ProbeTimeout.
func (s *Supervisor) launchAndProbe(ctx context.Context, inc *types.Incarnation) error {
	port, err := s.opts.Router.GetPort(ctx)
	if err != nil {
		return kerrs.New(kerrs.PortExhausted, "acquire port", err)
	}

	env := s.buildEnv(ctx, inc.Config.App, port)
	child, err := s.opts.Tracker.Run(ctx, RunRequest{
		Owner:   s.opts.Owner,
		Exec:    inc.Config.App.Exec,
		WorkDir: inc.WorkDir,
		Args:    inc.Config.App.Args,
		Env:     env,
		Logger:  s.logger,
	})
	if err != nil {
		_ = s.opts.Router.ReleasePort(ctx, port)
		return kerrs.New(kerrs.ChildSpawnFailed, "launch child", err)
	}

	timer := metrics.NewTimer()
	ok := health.Probe(ctx, port, s.opts.ProbeBudget, s.opts.ProbeInterval, s.logger)
	timer.ObserveDuration(metrics.ProbeDuration)
	if !ok {
		_ = s.opts.Tracker.Terminate(ctx, child)
		_ = s.opts.Router.ReleasePort(ctx, port)
		s.logger.Error().Int("port", port).Msg("ProcessDidNotStart")
		return kerrs.New(kerrs.ProbeTimeout, "probe child", fmt.Errorf("no listener on port %d within budget", port))
	}

	inc.Port = types.PortLease(port)
	inc.HasPort = true
	inc.Child = child
	return nil
}

// buildEnv assembles the child environment.
func (s *Supervisor) buildEnv(ctx context.Context, app *types.AppConfig, port int) []string {
	scheme := "http://"
	if app.SSL {
		scheme = "https://"
	}
	env := []string{
		fmt.Sprintf("PORT=%d", port),
		"APPROOT=" + scheme + app.Host,
	}

	if app.Postgres {
		info, err := s.opts.DB.GetInfo(ctx, s.name)
		if err != nil {
			s.logger.Warn().Err(err).Msg("DBUnavailable")
		} else {
			env = append(env,
				"PGHOST=localhost",
				"PGPORT=5432",
				"PGUSER="+info.User,
				"PGPASS="+info.Pass,
				"PGDATABASE="+info.Database,
			)
		}
	}

	return env
}

// publishRoutes adds every Router entry routeSet(cfg) implies,
// step 3: app host(s) to PEPort, static hosts to PEStatic, redirects to
// PERedirect.
func (s *Supervisor) publishRoutes(ctx context.Context, cfg *types.Config, port types.PortLease, hasPort bool) error {
	if cfg.App != nil && hasPort {
		for _, host := range appHosts(cfg.App) {
			if err := s.opts.Router.AddEntry(ctx, host, types.PEPort(int(port))); err != nil {
				return kerrs.New(kerrs.PortExhausted, "publish route "+host, err)
			}
		}
	}
	for _, sh := range cfg.StaticHosts {
		if err := s.opts.Router.AddEntry(ctx, sh.Host, types.PEStatic(sh.Root)); err != nil {
			return err
		}
	}
	for _, r := range cfg.Redirects {
		if err := s.opts.Router.AddEntry(ctx, r.From, types.PERedirect(r.To)); err != nil {
			return err
		}
	}
	return nil
}

func appHosts(app *types.AppConfig) []string {
	hosts := make([]string, 0, 1+len(app.ExtraHosts))
	if app.Host != "" {
		hosts = append(hosts, app.Host)
	}
	hosts = append(hosts, app.ExtraHosts...)
	return hosts
}

// retractRoutes removes every Router entry routeSet(cfg) implies.
func (s *Supervisor) retractRoutes(ctx context.Context, cfg *types.Config) {
	for host := range cfg.RouteSet() {
		if err := s.opts.Router.RemoveEntry(ctx, host); err != nil {
			s.logger.Warn().Err(err).Str("host", host).Msg("failed to remove route")
		}
	}
}

// reload implements the reload protocol, including the fix
// of retracting routes that existed only in the old config.
func (s *Supervisor) reload(ctx context.Context, old *types.Incarnation, ref types.BundleRef) (*types.Incarnation, error) {
	dir, err := s.opts.TempDirs.Allocate(s.name)
	if err != nil {
		return nil, kerrs.New(kerrs.TempDirFailed, "allocate workdir", err)
	}

	if err := bundle.Extract(string(ref), dir, s.opts.Owner); err != nil {
		return nil, err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	next := &types.Incarnation{
		ID:        uuid.NewString(),
		WorkDir:   dir,
		Config:    cfg,
		StartedAt: time.Now(),
	}

	if cfg.App != nil {
		if err := s.launchAndProbe(ctx, next); err != nil {
			_ = os.RemoveAll(dir)
			return nil, err
		}
	}

	if err := s.publishRoutes(ctx, next.Config, next.Port, next.HasPort); err != nil {
		if next.HasPort {
			_ = s.opts.Tracker.Terminate(ctx, next.Child)
			_ = s.opts.Router.ReleasePort(ctx, int(next.Port))
		}
		_ = os.RemoveAll(dir)
		return nil, err
	}

	// retract routes that existed only in the
	// old config, after the new incarnation's routes are live.
	oldOnly := old.Config.RouteSet()
	for host := range next.Config.RouteSet() {
		delete(oldOnly, host)
	}
	for host := range oldOnly {
		if err := s.opts.Router.RemoveEntry(ctx, host); err != nil {
			s.logger.Warn().Err(err).Str("host", host).Msg("failed to remove superseded route")
		}
	}

	s.scheduleRetirement(old)
	return next, nil
}

// terminate implements the terminate protocol.
func (s *Supervisor) terminate(ctx context.Context, current *types.Incarnation) {
	s.logger.Info().Msg("TerminatingApp")
	s.retractRoutes(ctx, current.Config)
	s.scheduleRetirement(current)
}

// scheduleRetirement spawns the delayed-retirement background task. It is
// not cancellable, holds no mailbox reference, and is robust to the
// supervisor itself already being Dead.
func (s *Supervisor) scheduleRetirement(inc *types.Incarnation) {
	killWait := s.opts.RetireKillWait
	dirWait := s.opts.RetireDirWait
	tracker := s.opts.Tracker
	router := s.opts.Router
	logger := s.logger

	go func() {
		time.Sleep(killWait)
		if inc.Child != nil {
			logger.Info().Str("incarnation", inc.ID).Msg("TerminatingOldProcess")
			_ = tracker.Terminate(context.Background(), inc.Child)
		}
		if inc.HasPort {
			_ = router.ReleasePort(context.Background(), int(inc.Port))
		}

		time.Sleep(dirWait)
		logger.Info().Str("incarnation", inc.ID).Msg("RemovingOldFolder")
		_ = os.RemoveAll(inc.WorkDir)
	}()
}
