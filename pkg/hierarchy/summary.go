package hierarchy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Summarizer turns the labels under a cluster into a short text.
type Summarizer interface {
	Summarize(ctx context.Context, labels []string) (string, error)
}

// ListSummarizer joins labels in sorted order. It is deterministic and
// needs no model.
type ListSummarizer struct {
	// MaxItems truncates long lists. Zero means no limit.
	MaxItems int
}

var _ Summarizer = ListSummarizer{}

// Summarize implements Summarizer.
func (s ListSummarizer) Summarize(_ context.Context, labels []string) (string, error) {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	if s.MaxItems > 0 && len(sorted) > s.MaxItems {
		extra := len(sorted) - s.MaxItems
		return fmt.Sprintf("%s and %d more", strings.Join(sorted[:s.MaxItems], ", "), extra), nil
	}
	return strings.Join(sorted, ", "), nil
}

// Summaries builds one summary per cluster of d. labels[c] lists the
// labels of the nodes in community c. At most concurrency summaries run at
// once; zero means 4.
func Summaries(ctx context.Context, d *Dendrogram, labels [][]string, summarizer Summarizer, concurrency int) (map[int]string, error) {
	if summarizer == nil {
		summarizer = ListSummarizer{}
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	var mu sync.Mutex
	summaries := make(map[int]string, d.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, c := range d.Clusters() {
		var clusterLabels []string
		for _, community := range c.Members {
			if community < len(labels) {
				clusterLabels = append(clusterLabels, labels[community]...)
			}
		}
		g.Go(func() error {
			text, err := summarizer.Summarize(gctx, clusterLabels)
			if err != nil {
				return fmt.Errorf("failed to summarize cluster %d: %w", c.ID, err)
			}
			mu.Lock()
			summaries[c.ID] = text
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
