package bdi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/soundprediction/ontoreason/pkg/triplestore"
)

// Belief payload keys understood by UpdateBeliefs.
const (
	KeyUserPreferences     = "user_preferences"
	KeyUserGoals           = "user_goals"
	KeyUserFeedback        = "user_feedback"
	KeyBusinessModels      = "business_models"
	KeyProductDescriptions = "product_descriptions"
)

// DefaultGoalPriority is the priority of goals generated from beliefs.
const DefaultGoalPriority = 1

var (
	// ErrNoReasoner is returned by Agent.Reason when no reasoner is set.
	ErrNoReasoner = errors.New("agent has no reasoner")
	// ErrEmptyUser is returned when a belief update names no user.
	ErrEmptyUser = errors.New("user cannot be empty")
)

// Reasoner runs inference for a decision point.
type Reasoner interface {
	Reason(ctx context.Context, plan *Plan, task *Task, action *Action) error
}

// Memory persists agent state snapshots.
type Memory interface {
	Save(ctx context.Context, value string, metadata map[string]string, agent string) error
}

// Beliefs is what the agent knows about one user.
type Beliefs struct {
	Preferences         []string          `json:"user_preferences,omitempty"`
	Goals               []string          `json:"user_goals,omitempty"`
	Feedback            []string          `json:"user_feedback,omitempty"`
	BusinessModels      map[string]string `json:"business_models,omitempty"`
	ProductDescriptions map[string]string `json:"product_descriptions,omitempty"`
	Other               map[string]any    `json:"other,omitempty"`
}

func (b *Beliefs) clone() Beliefs {
	c := Beliefs{
		Preferences: append([]string(nil), b.Preferences...),
		Goals:       append([]string(nil), b.Goals...),
		Feedback:    append([]string(nil), b.Feedback...),
	}
	if b.BusinessModels != nil {
		c.BusinessModels = make(map[string]string, len(b.BusinessModels))
		for k, v := range b.BusinessModels {
			c.BusinessModels[k] = v
		}
	}
	if b.ProductDescriptions != nil {
		c.ProductDescriptions = make(map[string]string, len(b.ProductDescriptions))
		for k, v := range b.ProductDescriptions {
			c.ProductDescriptions[k] = v
		}
	}
	if b.Other != nil {
		c.Other = make(map[string]any, len(b.Other))
		for k, v := range b.Other {
			c.Other[k] = v
		}
	}
	return c
}

// AgentOptions configures an Agent.
type AgentOptions struct {
	Memory   Memory
	Reasoner Reasoner
	Logger   *slog.Logger
}

// Agent holds BDI state and mirrors beliefs into a fact store.
type Agent struct {
	Name string

	mu         sync.Mutex
	beliefs    map[string]*Beliefs
	desires    []*Goal
	intentions []*Plan

	store    triplestore.Store
	memory   Memory
	reasoner Reasoner
	logger   *slog.Logger
}

// NewAgent returns an agent with empty state.
func NewAgent(name string, store triplestore.Store, opts AgentOptions) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		Name:     name,
		beliefs:  make(map[string]*Beliefs),
		store:    store,
		memory:   opts.Memory,
		reasoner: opts.Reasoner,
		logger:   logger.With("component", "agent", "agent", name),
	}
}

// SetReasoner replaces the agent's reasoner.
func (a *Agent) SetReasoner(r Reasoner) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reasoner = r
}

// Beliefs returns a copy of what the agent believes about user.
func (a *Agent) Beliefs(user string) (Beliefs, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.beliefs[user]
	if !ok {
		return Beliefs{}, false
	}
	return b.clone(), true
}

// Desires returns the current goals.
func (a *Agent) Desires() []*Goal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Goal(nil), a.desires...)
}

// Intentions returns the current plans.
func (a *Agent) Intentions() []*Plan {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*Plan(nil), a.intentions...)
}

// UpdateBeliefs merges payload into the beliefs about user and asserts the
// corresponding facts. Unknown keys are kept verbatim in Beliefs.Other.
func (a *Agent) UpdateBeliefs(ctx context.Context, user string, payload map[string]any) error {
	if user == "" {
		return ErrEmptyUser
	}

	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	a.mu.Lock()
	b, ok := a.beliefs[user]
	if !ok {
		b = &Beliefs{}
		a.beliefs[user] = b
	}
	var facts [][3]string
	for _, key := range keys {
		value := payload[key]
		switch key {
		case KeyUserPreferences:
			for _, v := range stringList(value) {
				b.Preferences = appendUnique(b.Preferences, v)
				facts = append(facts, [3]string{user, PredicateHasPreference, v})
			}
		case KeyUserGoals:
			for _, v := range stringList(value) {
				b.Goals = appendUnique(b.Goals, v)
				facts = append(facts, [3]string{user, PredicateHasGoal, v})
			}
		case KeyUserFeedback:
			for _, v := range stringList(value) {
				b.Feedback = appendUnique(b.Feedback, v)
				facts = append(facts, [3]string{user, PredicateProvidedFeedback, v})
			}
		case KeyBusinessModels:
			if b.BusinessModels == nil {
				b.BusinessModels = make(map[string]string)
			}
			facts = append(facts, mergeDescriptions(b.BusinessModels, value)...)
		case KeyProductDescriptions:
			if b.ProductDescriptions == nil {
				b.ProductDescriptions = make(map[string]string)
			}
			facts = append(facts, mergeDescriptions(b.ProductDescriptions, value)...)
		default:
			if b.Other == nil {
				b.Other = make(map[string]any)
			}
			b.Other[key] = value
		}
	}
	a.mu.Unlock()

	for _, f := range facts {
		if _, err := a.store.InsertFact(f[0], f[1], f[2]); err != nil {
			return fmt.Errorf("failed to assert belief: %w", err)
		}
	}
	a.logger.Debug("Beliefs updated", "user", user, "keys", keys, "facts", len(facts))
	return a.remember(ctx, "beliefs", user, payload)
}

// GenerateDesires turns the user's goal beliefs into desires. Goals already
// desired are kept; new goals pick up priority and subgoals from the store.
func (a *Agent) GenerateDesires(user string) []*Goal {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.beliefs[user]
	if !ok {
		return append([]*Goal(nil), a.desires...)
	}
	for _, name := range b.Goals {
		if a.desireLocked(name) != nil {
			continue
		}
		g := NewGoal(name, "Goal of "+user, DefaultGoalPriority)
		g.ReasonAndUpdate(a.store)
		a.desires = append(a.desires, g)
	}
	return append([]*Goal(nil), a.desires...)
}

// UpdateDesires replaces desires with the same ID and appends new ones.
func (a *Agent) UpdateDesires(ctx context.Context, goals []*Goal) error {
	a.mu.Lock()
	names := make([]string, 0, len(goals))
	for _, g := range goals {
		if g == nil {
			continue
		}
		names = append(names, g.Name)
		if i := a.desireIndexLocked(g.ID); i >= 0 {
			a.desires[i] = g
		} else {
			a.desires = append(a.desires, g)
		}
	}
	a.mu.Unlock()
	return a.remember(ctx, "desires", "", names)
}

// FormulateIntentions creates one plan per desire that has none yet. Each
// plan gets a task per onboarding step recorded for user.
func (a *Agent) FormulateIntentions(user string) []*Plan {
	steps := triplestore.Objects(a.store, user, PredicateHasOnboardingStep)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, g := range a.desires {
		if a.planForLocked(g) != nil {
			continue
		}
		p := GeneratePlan(g)
		for _, step := range steps {
			p.Tasks = append(p.Tasks, taskFor(g, step))
		}
		a.intentions = append(a.intentions, p)
	}
	return append([]*Plan(nil), a.intentions...)
}

// UpdateIntentions replaces plans with the same ID and appends new ones.
func (a *Agent) UpdateIntentions(ctx context.Context, plans []*Plan) error {
	a.mu.Lock()
	names := make([]string, 0, len(plans))
	for _, p := range plans {
		if p == nil {
			continue
		}
		names = append(names, p.Name)
		replaced := false
		for i, existing := range a.intentions {
			if existing.ID == p.ID {
				a.intentions[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			a.intentions = append(a.intentions, p)
		}
	}
	a.mu.Unlock()
	return a.remember(ctx, "intentions", "", names)
}

// Onboard updates beliefs about user, then generates desires and
// intentions from them.
func (a *Agent) Onboard(ctx context.Context, user string, payload map[string]any) ([]*Plan, error) {
	if err := a.UpdateBeliefs(ctx, user, payload); err != nil {
		return nil, err
	}
	a.GenerateDesires(user)
	return a.FormulateIntentions(user), nil
}

// Reason hands a decision point to the agent's reasoner.
func (a *Agent) Reason(ctx context.Context, plan *Plan, task *Task, action *Action) error {
	a.mu.Lock()
	r := a.reasoner
	a.mu.Unlock()
	if r == nil {
		return ErrNoReasoner
	}
	return r.Reason(ctx, plan, task, action)
}

// GeneratePlan returns an empty pending plan for goal.
func GeneratePlan(goal *Goal) *Plan {
	return NewPlan("Plan for "+goal.Name, goal)
}

func (a *Agent) remember(ctx context.Context, kind, user string, value any) error {
	if a.memory == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	meta := map[string]string{"type": kind}
	if user != "" {
		meta["user"] = user
	}
	if err := a.memory.Save(ctx, string(data), meta, a.Name); err != nil {
		return fmt.Errorf("failed to save %s: %w", kind, err)
	}
	return nil
}

func (a *Agent) desireLocked(id string) *Goal {
	if i := a.desireIndexLocked(id); i >= 0 {
		return a.desires[i]
	}
	return nil
}

func (a *Agent) desireIndexLocked(id string) int {
	for i, g := range a.desires {
		if g.ID == id {
			return i
		}
	}
	return -1
}

func (a *Agent) planForLocked(g *Goal) *Plan {
	for _, p := range a.intentions {
		if p.Goal == g {
			return p
		}
	}
	return nil
}

func taskFor(g *Goal, name string) *Task {
	for _, t := range g.Tasks {
		if t.Name == name {
			return t
		}
	}
	return g.CreateTask(name)
}

func stringList(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if s := fmt.Sprint(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{fmt.Sprint(x)}
	}
}

// mergeDescriptions merges a name->description mapping (or a bare list of
// names) into dst and returns the hasDescription facts for it.
func mergeDescriptions(dst map[string]string, v any) [][3]string {
	entries := make(map[string]string)
	switch x := v.(type) {
	case map[string]string:
		for k, d := range x {
			entries[k] = d
		}
	case map[string]any:
		for k, d := range x {
			entries[k] = fmt.Sprint(d)
		}
	default:
		for _, name := range stringList(v) {
			entries[name] = ""
		}
	}

	names := make([]string, 0, len(entries))
	for k := range entries {
		names = append(names, k)
	}
	sort.Strings(names)

	var facts [][3]string
	for _, name := range names {
		if name == "" {
			continue
		}
		desc := entries[name]
		dst[name] = desc
		if desc != "" {
			facts = append(facts, [3]string{name, PredicateHasDescription, desc})
		}
	}
	return facts
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
