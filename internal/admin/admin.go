// Package admin exposes the operational HTTP surface of southd: health,
// per-entity reconciliation status, Prometheus metrics, and a WebSocket
// stream of device notifications. It is a leaf module — nothing imports it.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/goldstone-mgmt/southd/internal/core"
	"github.com/goldstone-mgmt/southd/internal/notify"
	"github.com/goldstone-mgmt/southd/internal/reconciler"
)

func init() {
	core.RegisterModule(&Server{})
}

// Reconciler is the subset of the reconciliation manager the admin server
// reads. Resolved from the service registry at Start().
type Reconciler interface {
	Status() []reconciler.EntityStatus
	Degraded() bool
}

// Server is the admin HTTP module.
type Server struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time

	// Resolved lazily at Start() via service registry.
	manager  Reconciler
	hub      *notify.Hub
	registry *prometheus.Registry
}

// ModuleInfo implements core.Module.
func (s *Server) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "admin.http",
		New: func() core.Module { return &Server{} },
	}
}

// Configure implements core.Configurable.
func (s *Server) Configure(node *yaml.Node) error {
	if err := node.Decode(&s.config); err != nil {
		return err
	}
	s.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (s *Server) Provision(ctx *core.AppContext) error {
	s.appCtx = ctx
	s.logger = ctx.Logger
	s.config.defaults()
	return nil
}

// Validate implements core.Validator.
func (s *Server) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", s.config.Bind); err != nil {
		return errors.New("admin: invalid bind address: " + s.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (s *Server) Start() error {
	// Resolve optional services — endpoints degrade gracefully if missing.
	if svc, ok := s.appCtx.Service("reconciler.manager"); ok {
		if mgr, ok := svc.(Reconciler); ok {
			s.manager = mgr
		}
	}
	if svc, ok := s.appCtx.Service("notify.hub"); ok {
		if hub, ok := svc.(*notify.Hub); ok {
			s.hub = hub
		}
	}
	if svc, ok := s.appCtx.Service("metrics.registry"); ok {
		if reg, ok := svc.(*prometheus.Registry); ok {
			s.registry = reg
		}
	}

	s.startedAt = time.Now()

	s.server = &http.Server{
		Addr:         s.config.Bind,
		Handler:      s.buildRouter(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", s.config.Bind)
	if err != nil {
		return errors.New("admin: listen failed: " + err.Error())
	}

	go func() {
		s.logger.Info("admin server listening", "addr", s.config.Bind)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("admin server shutting down")
	return s.server.Shutdown(shutdownCtx)
}
