package supervisor

import (
	"context"

	"github.com/cuemby/keeper/pkg/security"
	"github.com/cuemby/keeper/pkg/types"
	"github.com/rs/zerolog"
)

// Router is the front-end routing table. Implementations must be
// safe for concurrent use by multiple app supervisors.
type Router interface {
	GetPort(ctx context.Context) (int, error)
	AddEntry(ctx context.Context, host string, target types.RouteTarget) error
	RemoveEntry(ctx context.Context, host string) error
	ReleasePort(ctx context.Context, port int) error
}

// ProcessTracker launches and reaps child OS processes.
type ProcessTracker interface {
	Run(ctx context.Context, req RunRequest) (*types.ChildHandle, error)
	Terminate(ctx context.Context, child *types.ChildHandle) error
}

// RunRequest is everything ProcessTracker.Run needs to launch one child.
type RunRequest struct {
	Owner   *security.Owner
	Exec    string
	WorkDir string
	Args    []string
	Env     []string
	Logger  zerolog.Logger
}

// DBProvisioner allocates per-app database credentials.
type DBProvisioner interface {
	GetInfo(ctx context.Context, app types.AppName) (DBInfo, error)
}

// DBInfo is the coordinates DBProvisioner.GetInfo returns for an app.
type DBInfo struct {
	User     string
	Pass     string
	Database string
}
