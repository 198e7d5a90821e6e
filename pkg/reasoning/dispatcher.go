package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/triplestore"
	"github.com/soundprediction/ontoreason/pkg/utils"
)

// Strategy outcomes reported to an Observer.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Context is the state a strategy works on. Strategies may update the
// plan, task and action in place.
type Context struct {
	Plan   *bdi.Plan
	Task   *bdi.Task
	Action *bdi.Action
	Store  triplestore.Store
	Cases  *bdi.CaseBase
	Logger *slog.Logger
	Now    func() time.Time

	// holdsStore is set while Dispatch holds the store lock.
	holdsStore bool
}

// PlanID returns the plan's ID or "" when there is no plan.
func (c *Context) PlanID() string {
	if c.Plan == nil {
		return ""
	}
	return c.Plan.ID
}

// TaskID returns the task's ID or "".
func (c *Context) TaskID() string {
	if c.Task == nil {
		return ""
	}
	return c.Task.ID
}

// ActionID returns the action's ID or "".
func (c *Context) ActionID() string {
	if c.Action == nil {
		return ""
	}
	return c.Action.ID
}

// Report describes one dispatch.
type Report struct {
	Selected []string         `json:"selected"`
	Ran      []string         `json:"ran"`
	Failed   map[string]error `json:"-"`
	Skipped  []string         `json:"skipped"`
	Duration time.Duration    `json:"duration"`

	Plan   *bdi.Plan   `json:"-"`
	Task   *bdi.Task   `json:"-"`
	Action *bdi.Action `json:"-"`
}

// Err joins the strategy failures, or returns nil.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	var errs []error
	for _, name := range r.Selected {
		if err, ok := r.Failed[name]; ok {
			errs = append(errs, fmt.Errorf("strategy %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Observer receives strategy outcomes, e.g. for metrics.
type Observer interface {
	ObserveStrategy(name, outcome string, d time.Duration)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Cases    *bdi.CaseBase
	Observer Observer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Dispatcher selects and runs strategies against one store.
type Dispatcher struct {
	registry *Registry
	table    RuleTable
	store    triplestore.Store
	cases    *bdi.CaseBase
	observer Observer
	now      func() time.Time
	logger   *slog.Logger
}

var _ bdi.Reasoner = (*Dispatcher)(nil)

// NewDispatcher returns a dispatcher. A nil case base is replaced with an
// empty one.
func NewDispatcher(registry *Registry, table RuleTable, store triplestore.Store, opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cases := opts.Cases
	if cases == nil {
		cases = bdi.NewCaseBase()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		registry: registry,
		table:    table,
		store:    store,
		cases:    cases,
		observer: opts.Observer,
		now:      now,
		logger:   logger.With("component", "reasoning"),
	}
}

// Cases returns the dispatcher's case base.
func (d *Dispatcher) Cases() *bdi.CaseBase {
	return d.cases
}

// Select returns the strategy names chosen for a decision point.
func (d *Dispatcher) Select(plan, task, action string) []string {
	return d.table.Select(plan, task, action)
}

// Apply runs exactly one strategy. A panic inside the strategy is returned
// as a *utils.PanicError. A strategy may call Apply with the Context it was
// given; it must not call Dispatch.
func (d *Dispatcher) Apply(ctx context.Context, name string, c *Context) error {
	if c.holdsStore {
		return d.apply(ctx, name, c)
	}
	mu := storeLock(c.Store)
	mu.Lock()
	defer mu.Unlock()
	return d.apply(ctx, name, c)
}

func (d *Dispatcher) apply(ctx context.Context, name string, c *Context) error {
	s, ok := d.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	if c.Logger == nil {
		c.Logger = d.logger
	}
	if c.Now == nil {
		c.Now = d.now
	}
	return utils.CatchPanic(func() error {
		return s.Apply(ctx, c)
	})
}

// Dispatch selects strategies for the decision point and runs them in
// order. Strategy failures are collected in the report; the returned error
// is non-nil only when ctx is done before every strategy ran.
func (d *Dispatcher) Dispatch(ctx context.Context, plan *bdi.Plan, task *bdi.Task, action *bdi.Action) (*Report, error) {
	c := &Context{
		Plan:   plan,
		Task:   task,
		Action: action,
		Store:  d.store,
		Cases:  d.cases,
		Logger: d.logger,
		Now:    d.now,
	}
	report := &Report{
		Selected: d.Select(nameOf(plan), nameOf(task), nameOf(action)),
		Failed:   make(map[string]error),
		Plan:     plan,
		Task:     task,
		Action:   action,
	}

	mu := storeLock(d.store)
	mu.Lock()
	defer mu.Unlock()
	c.holdsStore = true

	start := time.Now()
	defer func() { report.Duration = time.Since(start) }()

	for _, name := range report.Selected {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("failed to complete dispatch: %w", err)
		}
		if _, ok := d.registry.Get(name); !ok {
			report.Skipped = append(report.Skipped, name)
			d.observe(name, OutcomeSkipped, 0)
			d.logger.Warn("Selected strategy is not registered", "strategy", name)
			continue
		}

		began := time.Now()
		err := d.apply(ctx, name, c)
		elapsed := time.Since(began)
		if err != nil {
			report.Failed[name] = err
			d.observe(name, OutcomeFailure, elapsed)
			d.logger.Warn("Strategy failed", "strategy", name, "error", err)
			continue
		}
		report.Ran = append(report.Ran, name)
		d.observe(name, OutcomeSuccess, elapsed)
	}

	d.logger.Debug("Dispatch complete",
		"plan", nameOf(plan),
		"task", nameOf(task),
		"action", nameOf(action),
		"ran", len(report.Ran),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped))
	return report, nil
}

// Reason implements bdi.Reasoner. It returns the context error or the
// joined strategy failures.
func (d *Dispatcher) Reason(ctx context.Context, plan *bdi.Plan, task *bdi.Task, action *bdi.Action) error {
	report, err := d.Dispatch(ctx, plan, task, action)
	if err != nil {
		return err
	}
	return report.Err()
}

func (d *Dispatcher) observe(name, outcome string, elapsed time.Duration) {
	if d.observer != nil {
		d.observer.ObserveStrategy(name, outcome, elapsed)
	}
}

// storeLocks serializes dispatches per store across all dispatchers.
var storeLocks sync.Map

func storeLock(store triplestore.Store) *sync.Mutex {
	mu, _ := storeLocks.LoadOrStore(store, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

type named interface {
	*bdi.Plan | *bdi.Task | *bdi.Action
}

func nameOf[T named](v T) string {
	switch x := any(v).(type) {
	case *bdi.Plan:
		if x != nil {
			return x.Name
		}
	case *bdi.Task:
		if x != nil {
			return x.Name
		}
	case *bdi.Action:
		if x != nil {
			return x.Name
		}
	}
	return ""
}
