// Package bdi models an agent's beliefs, desires and intentions.
//
// Desires are Goals arranged in a tree. Intentions are Plans whose Tasks
// belong to exactly one Goal and carry the Actions an agent executes.
// Goals, plans and tasks are identified in the fact store by their ID,
// which defaults to their name.
//
// None of the types in this package are safe for concurrent mutation; the
// reasoning dispatcher serializes access per fact store.
package bdi

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/soundprediction/ontoreason/pkg/triplestore"
)

// Status is the lifecycle state of a goal, plan, task or action.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Fact predicates read by goals and agents.
const (
	PredicateHasPriority       = "hasPriority"
	PredicateHasSubgoal        = "hasSubgoal"
	PredicateHasGoal           = "hasGoal"
	PredicateHasPreference     = "hasPreference"
	PredicateProvidedFeedback  = "providedFeedback"
	PredicateHasDescription    = "hasDescription"
	PredicateHasOnboardingStep = "hasOnboardingStep"
)

// ErrInvalidAttachment is returned when a goal, task or action would be
// attached to the wrong owner.
var ErrInvalidAttachment = errors.New("invalid attachment")

// InvalidAttachmentError reports a task that does not belong to the goal
// it was used with.
type InvalidAttachmentError struct {
	Goal string
	Task string
}

func (e *InvalidAttachmentError) Error() string {
	return fmt.Sprintf("invalid attachment: task %q is not associated with goal %q", e.Task, e.Goal)
}

// Is reports whether target is ErrInvalidAttachment.
func (e *InvalidAttachmentError) Is(target error) bool {
	return target == ErrInvalidAttachment
}

// Goal is a desire of the agent.
type Goal struct {
	ID          string
	Name        string
	Description string
	Priority    int
	Deadline    *time.Time
	Status      Status
	Parent      *Goal
	Subgoals    []*Goal
	Tasks       []*Task
	Progress    float64
}

// NewGoal returns a pending goal whose ID is its name.
func NewGoal(name, description string, priority int) *Goal {
	return &Goal{
		ID:          name,
		Name:        name,
		Description: description,
		Priority:    priority,
		Status:      StatusPending,
	}
}

// AddSubgoal attaches s below g. The subgoal's priority is clamped to the
// parent's and its deadline to the earlier of the two; a subgoal without a
// deadline, or below a parent without one, inherits the parent's.
func (g *Goal) AddSubgoal(s *Goal) error {
	if s == nil {
		return fmt.Errorf("%w: nil subgoal", ErrInvalidAttachment)
	}
	if s.Parent != nil {
		return fmt.Errorf("%w: goal %q already has parent %q", ErrInvalidAttachment, s.Name, s.Parent.Name)
	}
	for a := g; a != nil; a = a.Parent {
		if a == s {
			return fmt.Errorf("%w: goal %q is an ancestor of %q", ErrInvalidAttachment, s.Name, g.Name)
		}
	}

	s.Parent = g
	s.Priority = min(s.Priority, g.Priority)
	if s.Deadline != nil && g.Deadline != nil {
		if g.Deadline.Before(*s.Deadline) {
			d := *g.Deadline
			s.Deadline = &d
		}
	} else if g.Deadline != nil {
		d := *g.Deadline
		s.Deadline = &d
	} else {
		s.Deadline = nil
	}
	g.Subgoals = append(g.Subgoals, s)
	return nil
}

// Subgoal returns the direct subgoal with the given ID.
func (g *Goal) Subgoal(id string) (*Goal, bool) {
	for _, s := range g.Subgoals {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

// CreateTask creates a pending task owned by g.
func (g *Goal) CreateTask(name string) *Task {
	t := NewTask(name)
	t.Goal = g
	g.Tasks = append(g.Tasks, t)
	return t
}

// AddAction appends action to task. The task must have been created by g;
// otherwise an *InvalidAttachmentError is returned and task is unchanged.
func (g *Goal) AddAction(task *Task, action *Action) error {
	if task == nil || task.Goal != g {
		name := ""
		if task != nil {
			name = task.Name
		}
		return &InvalidAttachmentError{Goal: g.Name, Task: name}
	}
	task.Actions = append(task.Actions, action)
	task.UpdateStatus()
	return nil
}

// ReasonAndUpdate raises the goal's priority to the highest hasPriority
// fact recorded for it and attaches a subgoal for every hasSubgoal fact
// not already present. It returns the number of subgoals added.
func (g *Goal) ReasonAndUpdate(store triplestore.Store) int {
	for _, p := range triplestore.Objects(store, g.ID, PredicateHasPriority) {
		if v, err := strconv.Atoi(p); err == nil && v > g.Priority {
			g.Priority = v
		}
	}

	added := 0
	for _, name := range triplestore.Objects(store, g.ID, PredicateHasSubgoal) {
		if _, exists := g.Subgoal(name); exists {
			continue
		}
		if err := g.AddSubgoal(NewGoal(name, "Subgoal of "+g.Name, g.Priority)); err == nil {
			added++
		}
	}
	return added
}

// Plan is an intention: an ordered list of tasks pursuing one goal.
type Plan struct {
	ID     string
	Name   string
	Goal   *Goal
	Tasks  []*Task
	Status Status
}

// NewPlan returns a pending plan whose ID is its name.
func NewPlan(name string, goal *Goal) *Plan {
	return &Plan{ID: name, Name: name, Goal: goal, Status: StatusPending}
}

// Goals returns the plan's goal followed by its direct subgoals.
func (p *Plan) Goals() []*Goal {
	if p == nil || p.Goal == nil {
		return nil
	}
	return append([]*Goal{p.Goal}, p.Goal.Subgoals...)
}

// Task is a unit of work owned by a goal.
type Task struct {
	ID          string
	Name        string
	Description string
	Goal        *Goal
	Actions     []*Action
	Status      Status
}

// NewTask returns a pending task with no owning goal.
func NewTask(name string) *Task {
	return &Task{ID: name, Name: name, Status: StatusPending}
}

// UpdateStatus derives the task status from its actions: failed if any
// failed, completed if all completed, in progress once any has started.
func (t *Task) UpdateStatus() {
	if len(t.Actions) == 0 {
		return
	}
	completed, started := 0, false
	for _, a := range t.Actions {
		switch a.Status {
		case StatusFailed:
			t.Status = StatusFailed
			return
		case StatusCompleted:
			completed++
			started = true
		case StatusInProgress:
			started = true
		}
	}
	switch {
	case completed == len(t.Actions):
		t.Status = StatusCompleted
	case started:
		t.Status = StatusInProgress
	default:
		t.Status = StatusPending
	}
}

// Action is a single step of a task.
type Action struct {
	ID         string
	Name       string
	Parameters map[string]string
	Status     Status
}

// NewAction returns a pending action whose ID is its name.
func NewAction(name string, params map[string]string) *Action {
	return &Action{ID: name, Name: name, Parameters: params, Status: StatusPending}
}
