// Package notify publishes notification records to the datastore's event
// channel and fans them out to in-process listeners (the admin event
// stream). Emission is at-most-once per detected transition; a delivery
// failure is logged and never rolls back the state commit that preceded
// it.
package notify

import (
	"context"
	"log/slog"

	"github.com/goldstone-mgmt/southd/internal/datastore"
	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// Emitter constructs and publishes notifications.
type Emitter struct {
	store  datastore.Store
	hub    *Hub
	logger *slog.Logger
}

// NewEmitter creates an Emitter publishing to store and hub. hub may be
// nil when no in-process listeners exist.
func NewEmitter(store datastore.Store, hub *Hub, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{
		store:  store,
		hub:    hub,
		logger: logger.With("component", "notify"),
	}
}

// Emit builds the notification record for the entity's family and
// publishes it. alarm selects the alarm-notification grouping for
// interfaces; modules only have the notify grouping. The returned
// notification is the published record.
func (e *Emitter) Emit(ctx context.Context, ref transponder.Ref, alarm bool, keys []string, state map[string]string) transponder.Notification {
	n := transponder.NewNotification(transponder.EventName(ref.Kind, alarm), ref, keys, state)

	if err := e.store.Publish(ctx, n); err != nil {
		// State truth is not contingent on notification delivery.
		e.logger.Warn("notification publish failed",
			"entity", ref.String(),
			"event", n.Event,
			"error", err,
		)
	}
	if e.hub != nil {
		e.hub.broadcast(n)
	}
	return n
}
