// Package reasoning maps (plan, task, action) decision points to named
// inference strategies that read and write a shared fact store.
//
// A RuleTable selects strategy names for a decision point, a Registry
// resolves names to Strategy implementations, and a Dispatcher runs the
// selection against a store:
//
//	reg := reasoning.NewRegistry()
//	if err := reasoning.RegisterDefaults(reg, reasoning.DefaultsConfig{}); err != nil {
//		return err
//	}
//	d := reasoning.NewDispatcher(reg, reasoning.DefaultRuleTable(), store, reasoning.DispatcherOptions{})
//	report, err := d.Dispatch(ctx, plan, task, action)
//
// Strategies run in selection order. A failing strategy does not stop the
// ones after it and nothing it wrote is rolled back.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownStrategy is returned when a strategy name is not registered.
	ErrUnknownStrategy = errors.New("unknown reasoning strategy")
	// ErrDuplicateStrategy is returned when a name is registered twice.
	ErrDuplicateStrategy = errors.New("duplicate reasoning strategy")
)

// Strategy is a named inference procedure.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, c *Context) error
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc struct {
	StrategyName string
	Fn           func(ctx context.Context, c *Context) error
}

// NewStrategyFunc returns a Strategy named name that calls fn.
func NewStrategyFunc(name string, fn func(ctx context.Context, c *Context) error) StrategyFunc {
	return StrategyFunc{StrategyName: name, Fn: fn}
}

// Name implements Strategy.
func (f StrategyFunc) Name() string { return f.StrategyName }

// Apply implements Strategy.
func (f StrategyFunc) Apply(ctx context.Context, c *Context) error { return f.Fn(ctx, c) }

var _ Strategy = StrategyFunc{}

// Registry holds strategies by name.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds s. Names must be unique and non-empty.
func (r *Registry) Register(s Strategy) error {
	name := s.Name()
	if name == "" {
		return errors.New("strategy name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, name)
	}
	r.strategies[name] = s
	return nil
}

// Get returns the strategy registered under name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
