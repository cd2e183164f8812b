// Package discovery finds running JVMs on the local machine.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"goattach/internal/users"
	"goattach/internal/vm"
)

// ErrNoStrategy is returned when no discovery strategy works on this machine.
var ErrNoStrategy = errors.New("no JVM discovery strategy is available")

// Strategy is one technique for listing JVMs.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// Available reports whether the strategy can run here. It must not fail.
	Available(ctx context.Context) bool
	// Discover lists the currently running JVMs.
	Discover(ctx context.Context) ([]vm.Info, error)
}

// Compound delegates to the first available strategy, in priority order.
// The strategy is chosen once and kept for every later Discover.
type Compound struct {
	strategies []Strategy
	logger     *slog.Logger

	mu       sync.Mutex
	selected Strategy
}

// NewCompound returns a Compound trying strategies in the given order.
func NewCompound(logger *slog.Logger, strategies ...Strategy) *Compound {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Compound{strategies: strategies, logger: logger}
}

// Select returns the strategy Discover uses, choosing it on the first call.
func (c *Compound) Select(ctx context.Context) (Strategy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected != nil {
		return c.selected, nil
	}
	for _, s := range c.strategies {
		if s.Available(ctx) {
			c.selected = s
			return s, nil
		}
		c.logger.Debug("discovery strategy unavailable", "strategy", s.Name())
	}
	return nil, ErrNoStrategy
}

// Available reports whether any strategy is available.
func (c *Compound) Available(ctx context.Context) bool {
	_, err := c.Select(ctx)
	return err == nil
}

func (c *Compound) Discover(ctx context.Context) ([]vm.Info, error) {
	s, err := c.Select(ctx)
	if err != nil {
		return nil, err
	}
	infos, err := s.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}
	return infos, nil
}

// Describer turns a pid and its owner into a vm.Info by reading the JVM's metadata.
type Describer struct {
	Users            *users.Registry
	Properties       vm.PropertySource
	AttachedProperty string
}

// Describe resolves the owner and queries the JVM's metadata.
func (d *Describer) Describe(ctx context.Context, pid, username string) (vm.Info, error) {
	u, err := d.Users.Resolve(ctx, username)
	if err != nil {
		return vm.Info{}, err
	}
	props, err := d.Properties.Properties(ctx, pid, u)
	if err != nil {
		return vm.Info{}, err
	}
	return vm.New(pid, username, props, d.AttachedProperty), nil
}
