package router

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/cuemby/keeper/pkg/log"
	"github.com/cuemby/keeper/pkg/types"
)

// Proxy is the HTTP front-end that dispatches requests by Host header
// against a Table: PEPort targets are
// reverse-proxied to 127.0.0.1:port, PEStatic targets are served from disk,
// and PERedirect targets issue a redirect response.
type Proxy struct {
	table      *Table
	httpServer *http.Server
}

// NewProxy builds a Proxy serving addr (e.g. ":8000") against table.
func NewProxy(table *Table, addr string) *Proxy {
	p := &Proxy{table: table}
	p.httpServer = &http.Server{
		Addr:         addr,
		Handler:      http.HandlerFunc(p.handleRequest),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return p
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (p *Proxy) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", p.httpServer.Addr, err)
	}

	log.Info(fmt.Sprintf("router proxy listening on %s", p.httpServer.Addr))
	go func() {
		if err := p.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error(fmt.Sprintf("proxy server error: %v", err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return p.httpServer.Shutdown(shutdownCtx)
}

func (p *Proxy) handleRequest(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if idx := strings.IndexByte(host, ':'); idx != -1 {
		host = host[:idx]
	}

	target, ok := p.table.Lookup(host)
	if !ok {
		http.Error(w, "unknown host", http.StatusNotFound)
		return
	}

	switch target.Kind {
	case types.RouteTargetPort:
		p.proxyToPort(w, r, target.Port)
	case types.RouteTargetStatic:
		http.FileServer(http.Dir(target.StaticRoot)).ServeHTTP(w, r)
	case types.RouteTargetRedirect:
		http.Redirect(w, r, target.RedirectURL, http.StatusFound)
	default:
		http.Error(w, "misconfigured route", http.StatusInternalServerError)
	}
}

func (p *Proxy) proxyToPort(w http.ResponseWriter, r *http.Request, port int) {
	targetURL, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", port))
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	proxy := httputil.NewSingleHostReverseProxy(targetURL)
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = r.Host
		req.Header.Set("X-Forwarded-For", r.RemoteAddr)
		req.Header.Set("X-Forwarded-Proto", "http")
		req.Header.Set("X-Forwarded-Host", r.Host)
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Error(fmt.Sprintf("proxy error for 127.0.0.1:%d: %v", port, err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	proxy.ServeHTTP(w, r)
}
