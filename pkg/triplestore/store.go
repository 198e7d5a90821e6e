// Package triplestore keeps subject-predicate-object facts in memory and
// answers pattern queries over them.
package triplestore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/soundprediction/ontoreason/pkg/types"
)

// PredicateStatus is the predicate maintained by UpdateStatus.
const PredicateStatus = "status"

// ErrInvalidTriple is returned when a fact has an empty term.
var ErrInvalidTriple = errors.New("invalid triple")

// Store is a set of facts.
type Store interface {
	// InsertFact adds a fact and reports false when it was already present.
	InsertFact(subject, predicate, object string) (bool, error)
	// QueryFacts returns the distinct bindings of the pattern's variables,
	// in the insertion order of the first matching fact.
	QueryFacts(pattern types.Pattern) []types.Binding
	// QueryAll joins conjunctive patterns.
	QueryAll(patterns ...types.Pattern) []types.Binding
	// Match returns the matching facts in insertion order.
	Match(pattern types.Pattern) []types.Triple
	// UpdateStatus replaces every (entity, status, *) fact with one.
	UpdateStatus(entity, status string) error
	// Remove deletes a fact and reports whether it was present.
	Remove(subject, predicate, object string) bool
	Facts() []types.Triple
	Len() int
}

// MemoryStore is a Store guarded by a RWMutex.
type MemoryStore struct {
	mu          sync.RWMutex
	facts       []types.Triple
	set         map[types.Triple]struct{}
	bySubject   map[string][]int
	byPredicate map[string][]int
	byObject    map[string][]int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{set: make(map[types.Triple]struct{})}
	s.reindex()
	return s
}

// InsertFact implements Store.
func (s *MemoryStore) InsertFact(subject, predicate, object string) (bool, error) {
	t := types.Triple{Subject: subject, Predicate: predicate, Object: object}
	if err := t.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidTriple, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(t), nil
}

// InsertTriples adds several facts and returns how many were new.
func (s *MemoryStore) InsertTriples(triples []types.Triple) (int, error) {
	for _, t := range triples {
		if err := t.Validate(); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidTriple, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, t := range triples {
		if s.insertLocked(t) {
			added++
		}
	}
	return added, nil
}

func (s *MemoryStore) insertLocked(t types.Triple) bool {
	if _, exists := s.set[t]; exists {
		return false
	}
	idx := len(s.facts)
	s.facts = append(s.facts, t)
	s.set[t] = struct{}{}
	s.bySubject[t.Subject] = append(s.bySubject[t.Subject], idx)
	s.byPredicate[t.Predicate] = append(s.byPredicate[t.Predicate], idx)
	s.byObject[t.Object] = append(s.byObject[t.Object], idx)
	return true
}

// UpdateStatus implements Store.
func (s *MemoryStore) UpdateStatus(entity, status string) error {
	t := types.Triple{Subject: entity, Predicate: PredicateStatus, Object: status}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTriple, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(func(f types.Triple) bool {
		return f.Subject == entity && f.Predicate == PredicateStatus
	})
	s.insertLocked(t)
	return nil
}

// Remove implements Store.
func (s *MemoryStore) Remove(subject, predicate, object string) bool {
	t := types.Triple{Subject: subject, Predicate: predicate, Object: object}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[t]; !ok {
		return false
	}
	s.removeLocked(func(f types.Triple) bool { return f == t })
	return true
}

func (s *MemoryStore) removeLocked(drop func(types.Triple) bool) {
	kept := s.facts[:0]
	removed := false
	for _, f := range s.facts {
		if drop(f) {
			delete(s.set, f)
			removed = true
			continue
		}
		kept = append(kept, f)
	}
	s.facts = kept
	if removed {
		s.reindex()
	}
}

func (s *MemoryStore) reindex() {
	s.bySubject = make(map[string][]int)
	s.byPredicate = make(map[string][]int)
	s.byObject = make(map[string][]int)
	for i, f := range s.facts {
		s.bySubject[f.Subject] = append(s.bySubject[f.Subject], i)
		s.byPredicate[f.Predicate] = append(s.byPredicate[f.Predicate], i)
		s.byObject[f.Object] = append(s.byObject[f.Object], i)
	}
}

// Match implements Store.
func (s *MemoryStore) Match(pattern types.Pattern) []types.Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []types.Triple
	for _, i := range s.candidatesLocked(pattern) {
		if _, ok := bind(pattern, s.facts[i], nil); ok {
			matches = append(matches, s.facts[i])
		}
	}
	return matches
}

// QueryFacts implements Store.
func (s *MemoryStore) QueryFacts(pattern types.Pattern) []types.Binding {
	return s.QueryAll(pattern)
}

// QueryAll implements Store. Patterns are evaluated left to right; a
// variable bound by an earlier pattern constrains the later ones.
func (s *MemoryStore) QueryAll(patterns ...types.Pattern) []types.Binding {
	if len(patterns) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	bindings := []types.Binding{{}}
	for _, p := range patterns {
		var next []types.Binding
		for _, b := range bindings {
			resolved := substitute(p, b)
			for _, i := range s.candidatesLocked(resolved) {
				if nb, ok := bind(resolved, s.facts[i], b); ok {
					next = append(next, nb)
				}
			}
		}
		bindings = dedupe(next)
		if len(bindings) == 0 {
			return nil
		}
	}
	return bindings
}

// candidatesLocked narrows the scan with the most selective index.
func (s *MemoryStore) candidatesLocked(p types.Pattern) []int {
	var best []int
	found := false
	for _, idx := range []struct {
		term  string
		index map[string][]int
	}{
		{p.Subject, s.bySubject},
		{p.Predicate, s.byPredicate},
		{p.Object, s.byObject},
	} {
		if isConstant(idx.term) {
			list := idx.index[idx.term]
			if !found || len(list) < len(best) {
				best, found = list, true
			}
		}
	}
	if found {
		return best
	}
	all := make([]int, len(s.facts))
	for i := range all {
		all[i] = i
	}
	return all
}

// Facts implements Store.
func (s *MemoryStore) Facts() []types.Triple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Triple(nil), s.facts...)
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// Status returns the current status of entity, if any.
func Status(s Store, entity string) (string, bool) {
	facts := s.Match(types.Pattern{Subject: entity, Predicate: PredicateStatus})
	if len(facts) == 0 {
		return "", false
	}
	return facts[len(facts)-1].Object, true
}

// Objects returns the objects of every (subject, predicate, *) fact.
func Objects(s Store, subject, predicate string) []string {
	facts := s.Match(types.Pattern{Subject: subject, Predicate: predicate})
	objects := make([]string, 0, len(facts))
	for _, f := range facts {
		objects = append(objects, f.Object)
	}
	return objects
}

func isConstant(term string) bool {
	return term != "" && !types.IsVariable(term)
}

func substitute(p types.Pattern, b types.Binding) types.Pattern {
	resolve := func(term string) string {
		if types.IsVariable(term) {
			if v, ok := b[term[1:]]; ok {
				return v
			}
		}
		return term
	}
	return types.Pattern{Subject: resolve(p.Subject), Predicate: resolve(p.Predicate), Object: resolve(p.Object)}
}

// bind matches one fact against a pattern, extending base. A variable
// repeated in the pattern must take the same value.
func bind(p types.Pattern, f types.Triple, base types.Binding) (types.Binding, bool) {
	out := make(types.Binding, len(base)+3)
	for k, v := range base {
		out[k] = v
	}
	for _, pair := range [3][2]string{{p.Subject, f.Subject}, {p.Predicate, f.Predicate}, {p.Object, f.Object}} {
		term, value := pair[0], pair[1]
		switch {
		case term == "":
		case types.IsVariable(term):
			name := term[1:]
			if existing, ok := out[name]; ok && existing != value {
				return nil, false
			}
			out[name] = value
		case term != value:
			return nil, false
		}
	}
	return out, true
}

func dedupe(bindings []types.Binding) []types.Binding {
	seen := make(map[string]struct{}, len(bindings))
	out := bindings[:0]
	for _, b := range bindings {
		key := bindingKey(b)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

func bindingKey(b types.Binding) string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := ""
	for _, k := range keys {
		key += fmt.Sprintf("%d:%s=%d:%s;", len(k), k, len(b[k]), b[k])
	}
	return key
}
