package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goldstone-mgmt/southd/internal/cache"
	"github.com/goldstone-mgmt/southd/internal/config"
	"github.com/goldstone-mgmt/southd/internal/core"
	"github.com/goldstone-mgmt/southd/internal/datastore"
	"github.com/goldstone-mgmt/southd/internal/driver"
	"github.com/goldstone-mgmt/southd/internal/notify"
	"github.com/goldstone-mgmt/southd/internal/reconciler"
	"github.com/goldstone-mgmt/southd/internal/resync"
	"github.com/goldstone-mgmt/southd/internal/subscriber"
)

// reconcilerModule wraps the subscriber and manager to satisfy core.Module,
// core.Starter, and core.Stopper, so the reconciliation core participates
// in the App lifecycle. Replay runs before the pumps so entities that
// existed before this process are provisioned like fresh creates.
type reconcilerModule struct {
	sub *subscriber.Subscriber
	mgr *reconciler.Manager
	ctx context.Context
}

func (m *reconcilerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "reconciler"}
}

func (m *reconcilerModule) Start() error {
	if err := m.sub.Replay(m.ctx); err != nil {
		return err
	}
	if err := m.mgr.Start(m.ctx); err != nil {
		return err
	}
	return m.sub.Start(m.ctx)
}

func (m *reconcilerModule) Stop(ctx context.Context) error {
	// Subscriber first: stop feeding the queue, then drain the workers.
	if err := m.sub.Stop(ctx); err != nil {
		return err
	}
	return m.mgr.Stop(ctx)
}

// resyncModule wraps the resync scheduler into the App lifecycle.
type resyncModule struct {
	sched *resync.Scheduler
}

func (m *resyncModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "resync"}
}

func (m *resyncModule) Start() error { return m.sched.Start() }

func (m *resyncModule) Stop(ctx context.Context) error { return m.sched.Stop(ctx) }

// wireReconciler assembles the reconciliation core from the loaded modules:
// the datastore (persistent if the sqlite module is configured, in-memory
// otherwise), every driver module behind one selector, and the cache,
// queue, subscriber, emitter, and manager on top. Must be called after
// LoadModules and before Start.
func wireReconciler(
	app *core.App,
	appCtx *core.AppContext,
	cfg *config.Config,
	logger *slog.Logger,
) error {
	// Discover the datastore. The sqlite module registers itself as a
	// service during Provision; without it state lives in memory only.
	var store datastore.Store
	if svc, ok := appCtx.Service("datastore.store"); ok {
		store, _ = svc.(datastore.Store)
	}
	if store == nil {
		logger.Warn("no datastore module configured, using in-memory store")
		store = datastore.NewMemstore()
	}

	// Discover driver modules and register them behind one selector, in
	// load order. Entities a driver declines fall through to the next.
	selector := driver.NewSelector()
	for _, mod := range app.Modules() {
		p, ok := mod.(driver.Provider)
		if !ok {
			continue
		}
		id := string(mod.ModuleInfo().ID)
		if err := selector.Register(id, p); err != nil {
			return fmt.Errorf("registering driver %s: %w", id, err)
		}
		logger.Info("reconciler: registered driver", "driver", id)
	}
	if selector.Len() == 0 {
		return fmt.Errorf("reconciler: at least one driver module is required")
	}

	registry := prometheus.NewRegistry()
	metrics := reconciler.NewMetrics(registry)

	hub := notify.NewHub()
	emitter := notify.NewEmitter(store, hub, logger)
	queue := subscriber.NewQueue()
	sub := subscriber.New(store, queue, logger)

	mgr, err := reconciler.New(reconciler.Params{
		Config: reconciler.Config{
			PollInterval:   cfg.Reconcile.PollInterval,
			OpTimeout:      cfg.Reconcile.OpTimeout,
			BackoffInitial: cfg.Reconcile.BackoffInitial,
			BackoffMax:     cfg.Reconcile.BackoffMax,
			FaultThreshold: cfg.Reconcile.FaultThreshold,
		},
		Binder:  selector,
		Cache:   cache.New(),
		Store:   store,
		Emitter: emitter,
		Queue:   queue,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("creating reconciler: %w", err)
	}

	app.AppendModule(&reconcilerModule{
		sub: sub,
		mgr: mgr,
		ctx: context.Background(),
	})

	if cfg.Resync.Enabled {
		sched := resync.NewScheduler(logger)
		if err := sched.RegisterJob(&resync.FullResyncJob{
			Manager:      mgr,
			Logger:       logger,
			ScheduleExpr: cfg.Resync.Schedule,
		}); err != nil {
			return fmt.Errorf("registering resync job: %w", err)
		}
		app.AppendModule(&resyncModule{sched: sched})
	}

	// Register services for the admin server to discover.
	appCtx.RegisterService("reconciler.manager", mgr)
	appCtx.RegisterService("notify.hub", hub)
	appCtx.RegisterService("metrics.registry", registry)

	logger.Info("reconciler: wired", "drivers", selector.Len())
	return nil
}
