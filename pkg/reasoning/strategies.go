package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/rules"
	"github.com/soundprediction/ontoreason/pkg/triplestore"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// Built-in strategy names.
const (
	StrategyOWLRL                     = "owl_rl"
	StrategyCustomRules               = "custom_rules"
	StrategyGoalBasedReasoning        = "goal_based_reasoning"
	StrategyStrategicDecisionMaking   = "strategic_decision_making"
	StrategyOperationalOptimization   = "operational_optimization"
	StrategyPerformanceMonitoring     = "performance_monitoring"
	StrategyRiskAssessment            = "risk_assessment"
	StrategyCollaborationCoordination = "collaboration_coordination"
	StrategyAdaptabilityLearning      = "adaptability_learning"
	StrategyUserPreferenceReasoning   = "user_preference_reasoning"
	StrategyBayesian                  = "bayesian"
	StrategyInductive                 = "inductive"
	StrategyDeductive                 = "deductive"
	StrategyAbductive                 = "abductive"
	StrategyCaseBased                 = "case_based"
)

// Predicates read and written by the built-in strategies.
const (
	PredNextStep           = "nextStep"
	PredProgress           = "progress"
	PredAlignedWith        = "alignedWith"
	PredAlignmentScore     = "alignmentScore"
	PredRequires           = "requires"
	PredAvailable          = "available"
	PredBlocked            = "blocked"
	PredBlockedBy          = "blockedBy"
	PredCompletionRate     = "completionRate"
	PredHasRisk            = "hasRisk"
	PredRiskLevel          = "riskLevel"
	PredAssignedTo         = "assignedTo"
	PredCollaboratesWith   = "collaboratesWith"
	PredLearnedFrom        = "learnedFrom"
	PredRespects           = "respects"
	PredOutcome            = "outcome"
	PredSuccessProbability = "successProbability"
	PredType               = "rdf:type"
	PredTypicallyHas       = "typicallyHas"
	PredImplies            = "implies"
	PredHolds              = "holds"
	PredObserved           = "observed"
	PredExplains           = "explains"
	PredHypothesis         = "hypothesis"
	PredSuggestedSolution  = "suggestedSolution"
)

// ErrMissingContext is returned by a strategy that needs a plan, task or
// action the decision point does not have.
var ErrMissingContext = errors.New("missing decision context")

// DefaultsConfig configures RegisterDefaults.
type DefaultsConfig struct {
	// CustomRules is Datalog rule text for the custom_rules strategy. When
	// empty the strategy does nothing.
	CustomRules string
	FactLimit   int
	Logger      *slog.Logger
}

// RegisterDefaults registers every built-in strategy.
func RegisterDefaults(reg *Registry, cfg DefaultsConfig) error {
	opts := rules.Options{FactLimit: cfg.FactLimit, Logger: cfg.Logger}
	owl, err := rules.NewOWLRLEngine(opts)
	if err != nil {
		return fmt.Errorf("failed to build OWL-RL rules: %w", err)
	}
	var custom *rules.Engine
	if strings.TrimSpace(cfg.CustomRules) != "" {
		if custom, err = rules.NewEngine(cfg.CustomRules, opts); err != nil {
			return fmt.Errorf("failed to build custom rules: %w", err)
		}
	}

	strategies := []Strategy{
		NewStrategyFunc(StrategyOWLRL, closureStrategy(owl)),
		NewStrategyFunc(StrategyCustomRules, closureStrategy(custom)),
		NewStrategyFunc(StrategyGoalBasedReasoning, goalBased),
		NewStrategyFunc(StrategyStrategicDecisionMaking, strategicDecision),
		NewStrategyFunc(StrategyOperationalOptimization, operationalOptimization),
		NewStrategyFunc(StrategyPerformanceMonitoring, performanceMonitoring),
		NewStrategyFunc(StrategyRiskAssessment, riskAssessment),
		NewStrategyFunc(StrategyCollaborationCoordination, collaborationCoordination),
		NewStrategyFunc(StrategyAdaptabilityLearning, adaptabilityLearning),
		NewStrategyFunc(StrategyUserPreferenceReasoning, userPreferences),
		NewStrategyFunc(StrategyBayesian, bayesian),
		NewStrategyFunc(StrategyInductive, inductive),
		NewStrategyFunc(StrategyDeductive, deductive),
		NewStrategyFunc(StrategyAbductive, abductive),
		NewStrategyFunc(StrategyCaseBased, caseBased),
	}
	for _, s := range strategies {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// closureStrategy inserts the rule closure of the whole store. A nil
// engine makes the strategy a no-op.
func closureStrategy(e *rules.Engine) func(context.Context, *Context) error {
	return func(_ context.Context, c *Context) error {
		if e == nil {
			return nil
		}
		derived, err := e.Closure(c.Store.Facts())
		if err != nil {
			return err
		}
		added, err := insertAll(c.Store, derived)
		if err != nil {
			return err
		}
		c.Logger.Debug("Rule closure applied", "derived", len(derived), "added", added)
		return nil
	}
}

// goalBased completes achieved goals and decomposes the rest through
// hasSubgoal facts, recording next steps and progress.
func goalBased(_ context.Context, c *Context) error {
	if c.Plan == nil || c.Plan.Goal == nil {
		return fmt.Errorf("%w: plan with a goal", ErrMissingContext)
	}
	for _, g := range c.Plan.Goals() {
		status, _ := triplestore.Status(c.Store, g.ID)
		if g.Progress >= 1 || status == string(bdi.StatusCompleted) {
			g.Progress = 1
			g.Status = bdi.StatusCompleted
			if err := c.Store.UpdateStatus(g.ID, string(bdi.StatusCompleted)); err != nil {
				return err
			}
			continue
		}

		g.ReasonAndUpdate(c.Store)
		if len(g.Subgoals) == 0 {
			continue
		}
		done := 0
		for _, s := range g.Subgoals {
			if st, _ := triplestore.Status(c.Store, s.ID); st == string(bdi.StatusCompleted) || s.Status == bdi.StatusCompleted {
				done++
				continue
			}
			if _, err := c.Store.InsertFact(g.ID, PredNextStep, s.ID); err != nil {
				return err
			}
		}
		g.Progress = float64(done) / float64(len(g.Subgoals))
		if err := setValue(c.Store, g.ID, PredProgress, fmt.Sprintf("%.2f", g.Progress)); err != nil {
			return err
		}
		if g.Status == bdi.StatusPending {
			g.Status = bdi.StatusInProgress
			if err := c.Store.UpdateStatus(g.ID, string(bdi.StatusInProgress)); err != nil {
				return err
			}
		}
	}
	return nil
}

// strategicDecision scores how many of a goal's keywords the decision
// point mentions.
func strategicDecision(_ context.Context, c *Context) error {
	if c.Plan == nil || c.Plan.Goal == nil {
		return fmt.Errorf("%w: plan with a goal", ErrMissingContext)
	}
	words := bdi.ContextFeatures(c.Plan.Name, nameOf(c.Task), nameOf(c.Action))
	best := 0.0
	for _, g := range c.Plan.Goals() {
		goalWords := bdi.ContextFeatures(g.Name, g.Description)
		if len(goalWords) == 0 {
			continue
		}
		score := float64(overlap(words, goalWords)) / float64(len(goalWords))
		if score == 0 {
			continue
		}
		if _, err := c.Store.InsertFact(c.Plan.ID, PredAlignedWith, g.ID); err != nil {
			return err
		}
		best = max(best, score)
	}
	return setValue(c.Store, c.Plan.ID, PredAlignmentScore, fmt.Sprintf("%.2f", best))
}

// operationalOptimization marks tasks whose required resources are
// recorded as unavailable.
func operationalOptimization(_ context.Context, c *Context) error {
	tasks := contextTasks(c)
	if len(tasks) == 0 {
		return fmt.Errorf("%w: task", ErrMissingContext)
	}
	for _, t := range tasks {
		blocked := false
		for _, r := range triplestore.Objects(c.Store, t.ID, PredRequires) {
			if len(c.Store.Match(types.Pattern{Subject: r, Predicate: PredAvailable, Object: "false"})) == 0 {
				continue
			}
			blocked = true
			if _, err := c.Store.InsertFact(t.ID, PredBlockedBy, r); err != nil {
				return err
			}
		}
		if err := setValue(c.Store, t.ID, PredBlocked, fmt.Sprint(blocked)); err != nil {
			return err
		}
	}
	return nil
}

func performanceMonitoring(_ context.Context, c *Context) error {
	if c.Task == nil {
		return fmt.Errorf("%w: task", ErrMissingContext)
	}
	c.Task.UpdateStatus()
	if len(c.Task.Actions) == 0 {
		return nil
	}
	completed := 0
	for _, a := range c.Task.Actions {
		if a.Status == bdi.StatusCompleted {
			completed++
		}
	}
	rate := float64(completed) / float64(len(c.Task.Actions))
	return setValue(c.Store, c.Task.ID, PredCompletionRate, fmt.Sprintf("%.2f", rate))
}

// riskAssessment grades the recorded risks of the decision point: none is
// low, one or two is medium, more is high.
func riskAssessment(_ context.Context, c *Context) error {
	subject := c.PlanID()
	if subject == "" {
		subject = c.TaskID()
	}
	if subject == "" {
		return fmt.Errorf("%w: plan or task", ErrMissingContext)
	}

	risks := make(map[string]struct{})
	for _, id := range []string{c.PlanID(), c.TaskID(), c.ActionID()} {
		if id == "" {
			continue
		}
		for _, r := range triplestore.Objects(c.Store, id, PredHasRisk) {
			risks[r] = struct{}{}
		}
	}
	level := "low"
	switch {
	case len(risks) >= 3:
		level = "high"
	case len(risks) >= 1:
		level = "medium"
	}
	return setValue(c.Store, subject, PredRiskLevel, level)
}

func collaborationCoordination(_ context.Context, c *Context) error {
	var agents []string
	seen := make(map[string]struct{})
	for _, t := range contextTasks(c) {
		for _, a := range triplestore.Objects(c.Store, t.ID, PredAssignedTo) {
			if _, dup := seen[a]; !dup {
				seen[a] = struct{}{}
				agents = append(agents, a)
			}
		}
	}
	sort.Strings(agents)
	for _, a := range agents {
		for _, b := range agents {
			if a == b {
				continue
			}
			if _, err := c.Store.InsertFact(a, PredCollaboratesWith, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// adaptabilityLearning retains a completed action as a case, once. The
// solution is the action's "solution" parameter, or its name.
func adaptabilityLearning(_ context.Context, c *Context) error {
	if c.Action == nil {
		return fmt.Errorf("%w: action", ErrMissingContext)
	}
	if c.Action.Status != bdi.StatusCompleted || c.Cases == nil {
		return nil
	}
	if len(triplestore.Objects(c.Store, c.Action.ID, PredLearnedFrom)) > 0 {
		return nil
	}
	solution := c.Action.Parameters["solution"]
	if solution == "" {
		solution = c.Action.Name
	}
	kase := c.Cases.Retain(bdi.Case{
		Plan:     nameOf(c.Plan),
		Task:     nameOf(c.Task),
		Action:   c.Action.Name,
		Solution: solution,
	})
	_, err := c.Store.InsertFact(c.Action.ID, PredLearnedFrom, kase.ID)
	return err
}

// userPreferences copies the preferences of every user pursuing the plan's
// goal onto the plan.
func userPreferences(_ context.Context, c *Context) error {
	if c.Plan == nil || c.Plan.Goal == nil {
		return fmt.Errorf("%w: plan with a goal", ErrMissingContext)
	}
	for _, b := range c.Store.QueryAll(
		types.Pattern{Subject: "?user", Predicate: bdi.PredicateHasGoal, Object: c.Plan.Goal.ID},
		types.Pattern{Subject: "?user", Predicate: bdi.PredicateHasPreference, Object: "?pref"},
	) {
		if _, err := c.Store.InsertFact(c.Plan.ID, PredRespects, b["pref"]); err != nil {
			return err
		}
	}
	return nil
}

// bayesian estimates the action's success probability as the mean of a
// Beta(1,1) posterior. Outcome objects starting with "success" or
// "failure" count as one observation each, so repeated runs can be
// recorded as "success#2" and so on.
func bayesian(_ context.Context, c *Context) error {
	if c.Action == nil {
		return fmt.Errorf("%w: action", ErrMissingContext)
	}
	successes, failures := 0, 0
	for _, o := range triplestore.Objects(c.Store, c.Action.ID, PredOutcome) {
		switch o = strings.ToLower(o); {
		case strings.HasPrefix(o, "success"):
			successes++
		case strings.HasPrefix(o, "failure"):
			failures++
		}
	}
	p := float64(1+successes) / float64(2+successes+failures)
	return setValue(c.Store, c.Action.ID, PredSuccessProbability, fmt.Sprintf("%.3f", p))
}

// inductive asserts (C, typicallyHas, "p=o") when every instance of class
// C, and at least two of them, share the fact (x, p, o).
func inductive(_ context.Context, c *Context) error {
	instances := make(map[string][]string)
	var classes []string
	for _, f := range c.Store.Match(types.Pattern{Predicate: PredType}) {
		if _, ok := instances[f.Object]; !ok {
			classes = append(classes, f.Object)
		}
		instances[f.Object] = append(instances[f.Object], f.Subject)
	}

	for _, class := range classes {
		members := instances[class]
		if len(members) < 2 {
			continue
		}
		for _, f := range c.Store.Match(types.Pattern{Subject: members[0]}) {
			if f.Predicate == PredType || f.Predicate == triplestore.PredicateStatus {
				continue
			}
			shared := true
			for _, m := range members[1:] {
				if len(c.Store.Match(types.Pattern{Subject: m, Predicate: f.Predicate, Object: f.Object})) == 0 {
					shared = false
					break
				}
			}
			if !shared {
				continue
			}
			if _, err := c.Store.InsertFact(class, PredTypicallyHas, f.Predicate+"="+f.Object); err != nil {
				return err
			}
		}
	}
	return nil
}

// deductive applies modus ponens to a fixpoint: (A implies B) and
// (x holds A) give (x holds B).
func deductive(_ context.Context, c *Context) error {
	for {
		added := 0
		for _, b := range c.Store.QueryAll(
			types.Pattern{Subject: "?a", Predicate: PredImplies, Object: "?b"},
			types.Pattern{Subject: "?x", Predicate: PredHolds, Object: "?a"},
		) {
			ok, err := c.Store.InsertFact(b["x"], PredHolds, b["b"])
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}
		if added == 0 {
			return nil
		}
	}
}

// abductive proposes every hypothesis that explains an observation.
func abductive(_ context.Context, c *Context) error {
	for _, b := range c.Store.QueryAll(
		types.Pattern{Subject: "?x", Predicate: PredObserved, Object: "?e"},
		types.Pattern{Subject: "?h", Predicate: PredExplains, Object: "?e"},
	) {
		if _, err := c.Store.InsertFact(b["x"], PredHypothesis, b["h"]); err != nil {
			return err
		}
	}
	return nil
}

func caseBased(_ context.Context, c *Context) error {
	subject := c.ActionID()
	if subject == "" {
		subject = c.TaskID()
	}
	if subject == "" {
		return fmt.Errorf("%w: action or task", ErrMissingContext)
	}
	if c.Cases == nil {
		return nil
	}
	hits := c.Cases.Retrieve(nameOf(c.Plan), nameOf(c.Task), nameOf(c.Action), 1)
	if len(hits) == 0 {
		return nil
	}
	return setValue(c.Store, subject, PredSuggestedSolution, hits[0].Case.Solution)
}

func contextTasks(c *Context) []*bdi.Task {
	var tasks []*bdi.Task
	if c.Plan != nil {
		tasks = append(tasks, c.Plan.Tasks...)
	}
	if c.Task != nil {
		for _, t := range tasks {
			if t == c.Task {
				return tasks
			}
		}
		tasks = append(tasks, c.Task)
	}
	return tasks
}

// setValue makes value the only object of (subject, predicate, *).
func setValue(store triplestore.Store, subject, predicate, value string) error {
	for _, old := range triplestore.Objects(store, subject, predicate) {
		if old != value {
			store.Remove(subject, predicate, old)
		}
	}
	_, err := store.InsertFact(subject, predicate, value)
	return err
}

func insertAll(store triplestore.Store, triples []types.Triple) (int, error) {
	added := 0
	for _, t := range triples {
		ok, err := store.InsertFact(t.Subject, t.Predicate, t.Object)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func overlap(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	n := 0
	for _, x := range b {
		if _, ok := set[x]; ok {
			n++
		}
	}
	return n
}
