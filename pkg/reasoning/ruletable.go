package reasoning

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode controls how matching rules combine.
type Mode string

const (
	// ModeFirst selects the strategies of the first matching rule.
	ModeFirst Mode = "first"
	// ModeUnion selects the ordered union of every matching rule.
	ModeUnion Mode = "union"
)

// ErrInvalidRuleTable is returned for a rule table that cannot be used.
var ErrInvalidRuleTable = errors.New("invalid rule table")

// Matcher lists case-insensitive substrings per decision-point field. An
// empty list matches anything; Any matches against every field.
type Matcher struct {
	Plan   []string `yaml:"plan,omitempty" json:"plan,omitempty"`
	Task   []string `yaml:"task,omitempty" json:"task,omitempty"`
	Action []string `yaml:"action,omitempty" json:"action,omitempty"`
	Any    []string `yaml:"any,omitempty" json:"any,omitempty"`
}

// Matches reports whether every non-empty list matches its field.
func (m Matcher) Matches(plan, task, action string) bool {
	return containsAny(plan, m.Plan) &&
		containsAny(task, m.Task) &&
		containsAny(action, m.Action) &&
		(len(m.Any) == 0 || containsAny(plan, m.Any) || containsAny(task, m.Any) || containsAny(action, m.Any))
}

func containsAny(value string, substrings []string) bool {
	if len(substrings) == 0 {
		return true
	}
	value = strings.ToLower(value)
	for _, s := range substrings {
		if strings.Contains(value, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// Rule maps a matcher to strategy names.
type Rule struct {
	Name       string   `yaml:"name" json:"name"`
	Match      Matcher  `yaml:"match" json:"match"`
	Strategies []string `yaml:"strategies" json:"strategies"`
}

// RuleTable is an ordered list of rules.
type RuleTable struct {
	Mode  Mode   `yaml:"mode" json:"mode"`
	Rules []Rule `yaml:"rules" json:"rules"`
}

// Select returns the strategy names for a decision point. No match yields
// an empty selection.
func (t RuleTable) Select(plan, task, action string) []string {
	var selected []string
	seen := make(map[string]struct{})
	for _, r := range t.Rules {
		if !r.Match.Matches(plan, task, action) {
			continue
		}
		for _, name := range r.Strategies {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			selected = append(selected, name)
		}
		if t.Mode != ModeUnion {
			break
		}
	}
	return selected
}

// Validate checks the mode and that every rule names a strategy.
func (t RuleTable) Validate() error {
	switch t.Mode {
	case ModeFirst, ModeUnion:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRuleTable, t.Mode)
	}
	for i, r := range t.Rules {
		if len(r.Strategies) == 0 {
			return fmt.Errorf("%w: rule %d (%s) has no strategies", ErrInvalidRuleTable, i, r.Name)
		}
	}
	return nil
}

// ParseRuleTable decodes a YAML rule table. A missing mode means union.
func ParseRuleTable(data []byte) (RuleTable, error) {
	var t RuleTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return RuleTable{}, fmt.Errorf("%w: %w", ErrInvalidRuleTable, err)
	}
	if t.Mode == "" {
		t.Mode = ModeUnion
	}
	if err := t.Validate(); err != nil {
		return RuleTable{}, err
	}
	return t, nil
}

// LoadRuleTable reads a YAML rule table from path.
func LoadRuleTable(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleTable{}, fmt.Errorf("failed to read rule table: %w", err)
	}
	return ParseRuleTable(data)
}

// DefaultRuleTable returns the built-in selection rules.
func DefaultRuleTable() RuleTable {
	return RuleTable{
		Mode: ModeUnion,
		Rules: []Rule{
			{
				Name: "strategic",
				Match: Matcher{
					Plan:   []string{"Strategic Plan"},
					Task:   []string{"Market Analysis"},
					Action: []string{"Competitor Analysis"},
				},
				Strategies: []string{StrategyOWLRL, StrategyCustomRules, StrategyStrategicDecisionMaking},
			},
			{
				Name: "operational",
				Match: Matcher{
					Plan:   []string{"Operational Plan"},
					Task:   []string{"Process Optimization"},
					Action: []string{"Resource Allocation"},
				},
				Strategies: []string{StrategyOperationalOptimization, StrategyPerformanceMonitoring},
			},
			{
				Name:       "risk",
				Match:      Matcher{Any: []string{"Risk"}},
				Strategies: []string{StrategyRiskAssessment, StrategyBayesian},
			},
			{
				Name:       "collaboration",
				Match:      Matcher{Any: []string{"Collaborat"}},
				Strategies: []string{StrategyCollaborationCoordination},
			},
			{
				Name:       "learning",
				Match:      Matcher{Any: []string{"Learn", "Adapt"}},
				Strategies: []string{StrategyAdaptabilityLearning, StrategyInductive, StrategyCaseBased},
			},
			{
				Name:       "onboarding",
				Match:      Matcher{Any: []string{"Onboarding", "Preference"}},
				Strategies: []string{StrategyUserPreferenceReasoning, StrategyGoalBasedReasoning},
			},
			{
				Name:       "diagnosis",
				Match:      Matcher{Any: []string{"Diagnos", "Investigat"}},
				Strategies: []string{StrategyAbductive, StrategyDeductive},
			},
		},
	}
}
