// Package driver defines the hardware driver adapter contract consumed by
// the reconciliation core. Concrete drivers (one per hardware family and
// vendor) are provided by modules and selected at entity binding time; the
// core depends only on the interfaces here.
package driver

import (
	"context"
	"errors"

	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// Error taxonomy for driver operations. Transient failures
// (ErrUnavailable, ErrTimeout) are retried with backoff; ErrHardwareFault
// surfaces as oper-status=fault plus an alarm; ErrInvalidParameter and
// ErrUnsupported are permanent for the given config delta and are not
// retried.
var (
	ErrUnavailable      = errors.New("driver: unavailable")
	ErrTimeout          = errors.New("driver: timeout")
	ErrHardwareFault    = errors.New("driver: hardware fault")
	ErrInvalidParameter = errors.New("driver: invalid parameter")
	ErrUnsupported      = errors.New("driver: unsupported")
)

// Transient reports whether err warrants a backoff-and-retry rather than
// being surfaced as permanent.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Permanent reports whether err permanently rejects the config delta that
// caused it.
func Permanent(err error) bool {
	return errors.Is(err, ErrInvalidParameter) || errors.Is(err, ErrUnsupported)
}

// Binding is a live driver attachment to one entity. Read must return a
// complete snapshot of every state leaf the entity has; a driver that can
// only produce a partial read must fail with ErrUnavailable instead.
// Write must be idempotent: applying the same delta twice yields the same
// hardware state. Both calls honor ctx cancellation and deadlines.
type Binding interface {
	Read(ctx context.Context) (transponder.Snapshot, error)
	Write(ctx context.Context, delta transponder.ConfigDelta) error

	// Close releases the binding. No Read or Write may follow.
	Close() error
}

// Provider creates bindings for the entities it supports. Implemented by
// driver modules. Bind returns ErrUnsupported when the entity is outside
// the provider's families or inventory, letting a Selector fall through
// to the next provider.
type Provider interface {
	Bind(ctx context.Context, ref transponder.Ref) (Binding, error)
}
