// Package api implements the admin HTTP server: list/reload/terminate
// endpoints over the supervisor registry, a server-sent-events stream of
// lifecycle transitions, and the mounted Prometheus /metrics and /healthz
// endpoints, grounded on the teacher's own plain net/http admin server.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/keeper/pkg/events"
	"github.com/cuemby/keeper/pkg/metrics"
	"github.com/cuemby/keeper/pkg/types"
)

// Registry is the subset of the daemon's app registry the admin API needs.
type Registry interface {
	List() []types.AppName
	State(app types.AppName) (types.AppState, bool)
	Reload(app types.AppName, bundle types.BundleRef) bool
	Terminate(app types.AppName) bool
}

// Server is the admin HTTP server.
type Server struct {
	registry Registry
	broker   *events.Broker
	mux      *http.ServeMux
}

// NewServer builds a Server dispatching against registry and broker.
func NewServer(registry Registry, broker *events.Broker) *Server {
	s := &Server{registry: registry, broker: broker, mux: http.NewServeMux()}

	s.mux.HandleFunc("/apps", s.handleListApps)
	s.mux.HandleFunc("/apps/", s.handleAppAction)
	s.mux.HandleFunc("/events", s.handleEvents)
	s.mux.HandleFunc("/healthz", metrics.HealthHandler())
	s.mux.HandleFunc("/ready", metrics.ReadyHandler())
	s.mux.HandleFunc("/live", metrics.LivenessHandler())
	s.mux.Handle("/metrics", metrics.Handler())

	return s
}

// Start runs the admin HTTP server on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

type appStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := s.registry.List()
	out := make([]appStatus, 0, len(names))
	for _, name := range names {
		st, _ := s.registry.State(name)
		out = append(out, appStatus{Name: string(name), State: string(st)})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// handleAppAction dispatches POST /apps/{name}/reload?bundle=... and
// POST /apps/{name}/terminate.
func (s *Server) handleAppAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/apps/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "expected /apps/{name}/{reload|terminate}", http.StatusBadRequest)
		return
	}
	name := types.AppName(parts[0])

	switch parts[1] {
	case "reload":
		bundle := r.URL.Query().Get("bundle")
		if bundle == "" {
			http.Error(w, "missing bundle query parameter", http.StatusBadRequest)
			return
		}
		if !s.registry.Reload(name, types.BundleRef(bundle)) {
			http.Error(w, fmt.Sprintf("app %q not found", name), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	case "terminate":
		if !s.registry.Terminate(name) {
			http.Error(w, fmt.Sprintf("app %q not found", name), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}

// handleEvents streams lifecycle transitions as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := s.broker.Subscribe()
	defer s.broker.Unsubscribe(sub)

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

