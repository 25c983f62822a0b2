package types

import "time"

// AppName is an opaque identifier unique within the host, used as a directory
// suffix and as a logging correlation tag.
type AppName string

// BundleRef is a filesystem path to a compressed archive. Treated read-only.
type BundleRef string

// AppConfig describes the executable an incarnation runs, if any.
type AppConfig struct {
	Exec       string   // resolved path under workDir/config
	Args       []string // default empty
	Host       string   // primary virtual hostname
	ExtraHosts []string // additional virtual hostnames, duplicates collapsed
	Postgres   bool
	SSL        bool
}

// StaticHostEntry serves Root, a resolved path inside workDir, under Host. Identity is (Host, Root).
type StaticHostEntry struct {
	Host string
	Root string
}

// RedirectEntry redirects From to To. Identity is (From, To).
type RedirectEntry struct {
	From string
	To   string
}

// Config is the normalized contents of a bundle's config/keter.yaml.
type Config struct {
	App         *AppConfig
	StaticHosts []StaticHostEntry
	Redirects   []RedirectEntry
}

// RouteSet returns the set of virtual hosts this config publishes: the
// primary app host, its extra hosts, every static host, and every redirect
// source. Callers treat the result as a set; order is not significant.
func (c *Config) RouteSet() map[string]struct{} {
	set := make(map[string]struct{})
	if c.App != nil {
		if c.App.Host != "" {
			set[c.App.Host] = struct{}{}
		}
		for _, h := range c.App.ExtraHosts {
			set[h] = struct{}{}
		}
	}
	for _, sh := range c.StaticHosts {
		set[sh.Host] = struct{}{}
	}
	for _, r := range c.Redirects {
		set[r.From] = struct{}{}
	}
	return set
}

// AppState is the state of a Supervisor's state machine.
type AppState string

const (
	AppStateBootstrapping AppState = "bootstrapping"
	AppStateServing       AppState = "serving"
	AppStateReloading     AppState = "reloading"
	AppStateDead          AppState = "dead"
)

// ChildHandle identifies a process launched via ProcessTracker.
type ChildHandle struct {
	PID int
}

// PortLease is a TCP port obtained from a Router, tied 1:1 to a ChildHandle.
type PortLease int

// Incarnation is one (dir, cfg, child?, port?) tuple. The supervisor holds at
// most two simultaneously, and only during the reload cut-over window.
type Incarnation struct {
	ID        string
	WorkDir   string
	Config    *Config
	Child     *ChildHandle
	Port      PortLease
	HasPort   bool
	StartedAt time.Time
}

// RouteTargetKind discriminates RouteTarget's meaningful field.
type RouteTargetKind string

const (
	RouteTargetPort     RouteTargetKind = "port"
	RouteTargetStatic   RouteTargetKind = "static"
	RouteTargetRedirect RouteTargetKind = "redirect"
)

// RouteTarget is a Router value: exactly one of Port, StaticRoot, or
// RedirectURL is meaningful, discriminated by Kind.
type RouteTarget struct {
	Kind        RouteTargetKind
	Port        int
	StaticRoot  string
	RedirectURL string
}

func PEPort(port int) RouteTarget {
	return RouteTarget{Kind: RouteTargetPort, Port: port}
}

func PEStatic(root string) RouteTarget {
	return RouteTarget{Kind: RouteTargetStatic, StaticRoot: root}
}

func PERedirect(url string) RouteTarget {
	return RouteTarget{Kind: RouteTargetRedirect, RedirectURL: url}
}
