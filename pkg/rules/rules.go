// Package rules computes the Datalog closure of a set of triples.
//
// Facts are loaded as the extensional predicate fact(S, P, O) and copied
// into triple(S, P, O); rules derive further triple atoms. Programs are
// parsed and analyzed once and evaluated against a fresh store per call.
//
// Rule text uses Mangle syntax, for example:
//
//	triple(X, "ancestorOf", Z) :- triple(X, "parentOf", Z).
//	triple(X, "ancestorOf", Z) :- triple(X, "parentOf", Y), triple(Y, "ancestorOf", Z).
package rules

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/soundprediction/ontoreason/pkg/types"
)

// DefaultFactLimit caps the number of facts one evaluation may derive.
const DefaultFactLimit = 100000

// ErrInvalidProgram is returned when rule text does not parse or analyze.
var ErrInvalidProgram = errors.New("invalid rule program")

const prelude = `
Decl fact(S, P, O).
triple(S, P, O) :- fact(S, P, O).
`

// OWLRL is the built-in RDFS / OWL-RL subset.
const OWLRL = `
triple(X, "subclass_of", Z) :- triple(X, "subclass_of", Y), triple(Y, "subclass_of", Z).
triple(X, "rdf:type", C) :- triple(X, "rdf:type", D), triple(D, "subclass_of", C).
triple(X, "rdf:type", C) :- triple(P, "domain", C), triple(X, P, Y).
triple(Y, "rdf:type", C) :- triple(P, "range", C), triple(X, P, Y).
triple(P, "subproperty_of", R) :- triple(P, "subproperty_of", Q), triple(Q, "subproperty_of", R).
triple(X, Q, Y) :- triple(P, "subproperty_of", Q), triple(X, P, Y).
triple(Y, Q, X) :- triple(P, "inverse_of", Q), triple(X, P, Y).
triple(Y, P, X) :- triple(P, "inverse_of", Q), triple(X, Q, Y).
triple(Y, P, X) :- triple(P, "rdf:type", "SymmetricProperty"), triple(X, P, Y).
triple(X, P, Z) :- triple(P, "rdf:type", "TransitiveProperty"), triple(X, P, Y), triple(Y, P, Z).
`

var triplePredicate = ast.PredicateSym{Symbol: "triple", Arity: 3}

// Options configures an Engine.
type Options struct {
	// FactLimit caps derived facts per evaluation. Zero means DefaultFactLimit.
	FactLimit int
	Logger    *slog.Logger
}

// Engine evaluates one analyzed rule program.
type Engine struct {
	info   *analysis.ProgramInfo
	limit  int
	logger *slog.Logger
}

// NewEngine parses and analyzes rules. The fact/triple prelude is added
// automatically.
func NewEngine(rules string, opts Options) (*Engine, error) {
	unit, err := parse.Unit(strings.NewReader(prelude + rules))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse rules: %w", ErrInvalidProgram, err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to analyze rules: %w", ErrInvalidProgram, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.FactLimit
	if limit <= 0 {
		limit = DefaultFactLimit
	}
	return &Engine{info: info, limit: limit, logger: logger.With("component", "rules")}, nil
}

// NewOWLRLEngine returns an engine for the built-in OWLRL rules.
func NewOWLRLEngine(opts Options) (*Engine, error) {
	return NewEngine(OWLRL, opts)
}

// LoadFile reads rule text from path.
func LoadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read rules file: %w", err)
	}
	return string(data), nil
}

// Closure evaluates the program over facts to a fixpoint and returns the
// triples that were derived and are not among facts, in a stable order.
func (e *Engine) Closure(facts []types.Triple) ([]types.Triple, error) {
	start := time.Now()
	store := factstore.NewSimpleInMemoryStore()
	input := make(map[types.Triple]struct{}, len(facts))
	for _, f := range facts {
		input[f] = struct{}{}
		store.Add(ast.NewAtom("fact", ast.String(f.Subject), ast.String(f.Predicate), ast.String(f.Object)))
	}

	stats, err := engine.EvalProgramWithStats(e.info, store, engine.WithCreatedFactLimit(e.limit))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate rules: %w", err)
	}

	var derived []types.Triple
	seen := make(map[types.Triple]struct{})
	err = store.GetFacts(ast.NewQuery(triplePredicate), func(a ast.Atom) error {
		t, ok := atomToTriple(a)
		if !ok {
			return nil
		}
		if _, exists := input[t]; exists {
			return nil
		}
		if _, dup := seen[t]; dup {
			return nil
		}
		seen[t] = struct{}{}
		derived = append(derived, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read derived facts: %w", err)
	}
	sortTriples(derived)

	e.logger.Debug("Rule closure computed",
		"input", len(facts),
		"derived", len(derived),
		"strata", len(stats.Strata),
		"duration", time.Since(start))
	return derived, nil
}

func atomToTriple(a ast.Atom) (types.Triple, bool) {
	if len(a.Args) != 3 {
		return types.Triple{}, false
	}
	var terms [3]string
	for i, arg := range a.Args {
		c, ok := arg.(ast.Constant)
		if !ok {
			return types.Triple{}, false
		}
		switch c.Type {
		case ast.StringType, ast.NameType:
			terms[i] = c.Symbol
		default:
			terms[i] = c.String()
		}
		if terms[i] == "" {
			return types.Triple{}, false
		}
	}
	return types.Triple{Subject: terms[0], Predicate: terms[1], Object: terms[2]}, true
}

func sortTriples(ts []types.Triple) {
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		return a.Object < b.Object
	})
}
