package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/goldstone-mgmt/southd/pkg/transponder"
)

// Selector dispatches Bind calls across the registered providers in
// order. The first provider that does not answer ErrUnsupported wins.
type Selector struct {
	providers []Provider
	names     []string
}

// NewSelector creates an empty Selector.
func NewSelector() *Selector {
	return &Selector{}
}

// Register appends a provider under the given name. Order is significant:
// providers are consulted in registration order.
func (s *Selector) Register(name string, p Provider) error {
	if p == nil {
		return errors.New("driver: nil provider")
	}
	for _, n := range s.names {
		if n == name {
			return fmt.Errorf("driver: provider %q already registered", name)
		}
	}
	s.providers = append(s.providers, p)
	s.names = append(s.names, name)
	return nil
}

// Len returns the number of registered providers.
func (s *Selector) Len() int { return len(s.providers) }

// Bind finds a provider for ref and creates a binding. Returns
// ErrUnsupported when no provider claims the entity.
func (s *Selector) Bind(ctx context.Context, ref transponder.Ref) (Binding, error) {
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	for i, p := range s.providers {
		b, err := p.Bind(ctx, ref)
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("driver %s: bind %s: %w", s.names[i], ref, err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: no driver for %s", ErrUnsupported, ref)
}
