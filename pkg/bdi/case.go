package bdi

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/soundprediction/ontoreason/pkg/utils"
)

// Case is a retained (plan, task, action) context with the solution that
// worked for it. Cases are immutable once retained.
type Case struct {
	ID        string    `json:"id"`
	Plan      string    `json:"plan"`
	Task      string    `json:"task"`
	Action    string    `json:"action"`
	Solution  string    `json:"solution"`
	Features  []string  `json:"features"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredCase is a retrieval hit.
type ScoredCase struct {
	Case  Case
	Score float64
}

// CaseBase stores retained cases.
type CaseBase struct {
	mu    sync.RWMutex
	cases []Case
	now   func() time.Time
}

// NewCaseBase returns an empty case base.
func NewCaseBase() *CaseBase {
	return &CaseBase{now: time.Now}
}

// Retain stores a copy of c with a fresh ID and creation time. When
// c.Features is empty the features are derived from the context names.
func (b *CaseBase) Retain(c Case) Case {
	c.ID = uuid.NewString()
	if len(c.Features) == 0 {
		c.Features = ContextFeatures(c.Plan, c.Task, c.Action)
	} else {
		c.Features = normalizeFeatures(c.Features)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c.CreatedAt = b.now()
	b.cases = append(b.cases, c)
	return c
}

// Retrieve returns up to k cases ranked by Jaccard similarity between their
// features and the features of the given context. Cases with no overlap
// are not returned; ties keep retention order.
func (b *CaseBase) Retrieve(plan, task, action string, k int) []ScoredCase {
	query := ContextFeatures(plan, task, action)

	b.mu.RLock()
	items := make([]utils.ScoredItem[Case], 0, len(b.cases))
	for _, c := range b.cases {
		if score := Jaccard(query, c.Features); score > 0 {
			items = append(items, utils.ScoredItem[Case]{Item: c, Score: score})
		}
	}
	b.mu.RUnlock()

	ranked := utils.TopKByScore(items, len(items))
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	out := make([]ScoredCase, len(ranked))
	for i, r := range ranked {
		out[i] = ScoredCase{Case: r.Item, Score: r.Score}
	}
	return out
}

// Restore adds previously retained cases as they are, keeping their IDs
// and creation times. Cases whose ID is already present are skipped. It
// returns how many were added.
func (b *CaseBase) Restore(cases []Case) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool, len(b.cases))
	for _, c := range b.cases {
		seen[c.ID] = true
	}
	added := 0
	for _, c := range cases {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		c.Features = normalizeFeatures(c.Features)
		b.cases = append(b.cases, c)
		added++
	}
	return added
}

// Len returns the number of retained cases.
func (b *CaseBase) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.cases)
}

// Cases returns the retained cases in retention order.
func (b *CaseBase) Cases() []Case {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Case(nil), b.cases...)
}

// ContextFeatures returns the sorted, lower-cased word set of the names.
func ContextFeatures(names ...string) []string {
	var words []string
	for _, n := range names {
		words = append(words, strings.FieldsFunc(n, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})...)
	}
	return normalizeFeatures(words)
}

func normalizeFeatures(features []string) []string {
	set := make(map[string]struct{}, len(features))
	for _, f := range features {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			set[f] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both are empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, x := range b {
		if _, dup := seen[x]; dup {
			continue
		}
		seen[x] = struct{}{}
		if _, ok := set[x]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
