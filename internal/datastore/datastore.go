// Package datastore defines the contract between the reconciliation core
// and the shared config/state datastore. The core consumes this as an
// opaque capability: transactional reads of the config subtree, a stream
// of config-change events, transactional writes of the state subtree, and
// a publish channel for notifications. Storage and transaction semantics
// live behind the interface; modules/datastore provides a persistent
// implementation and Memstore an in-process one.
package datastore

import (
	"context"
	"errors"

	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// ErrCommitFailed wraps transient failures to commit state. The core
// retries commits without re-touching hardware.
var ErrCommitFailed = errors.New("datastore: commit failed")

// ErrClosed is returned once the store has been closed.
var ErrClosed = errors.New("datastore: closed")

// Op tags a config-change event.
type Op string

// Config-change operations. Per-entity ordering is create before modify
// before delete; ordering across distinct entities is not guaranteed.
const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// ChangeEvent is one config-subtree change for one entity.
type ChangeEvent struct {
	Ref   transponder.Ref
	Op    Op
	Delta transponder.ConfigDelta
}

// ConfigEntry is one entity's full desired config, as returned by a
// config-subtree read.
type ConfigEntry struct {
	Ref    transponder.Ref
	Config map[string]string
}

// Store is the datastore capability consumed by the core. Implementations
// must support concurrent use from multiple entity workers.
type Store interface {
	// Config reads the whole config subtree. Used at startup to replay
	// existing entities as synthetic creates.
	Config(ctx context.Context) ([]ConfigEntry, error)

	// Watch returns a channel of config-change events. The channel is
	// closed when ctx is canceled or the store shuts down.
	Watch(ctx context.Context) (<-chan ChangeEvent, error)

	// CommitState transactionally replaces the state subtree of one
	// entity with the given leaves. Failures are reported as
	// ErrCommitFailed (wrapped) when retryable.
	CommitState(ctx context.Context, ref transponder.Ref, leaves map[string]string) error

	// DeleteState removes the state subtree of one entity.
	DeleteState(ctx context.Context, ref transponder.Ref) error

	// RejectConfig records that a config delta was permanently rejected
	// by hardware, surfacing the failure to the operator.
	RejectConfig(ctx context.Context, ref transponder.Ref, delta transponder.ConfigDelta, cause error) error

	// Publish delivers a notification to the datastore's event channel.
	Publish(ctx context.Context, n transponder.Notification) error
}
