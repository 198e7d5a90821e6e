package ontoreason

import (
	"context"
	"fmt"
	"time"

	"github.com/soundprediction/ontoreason/pkg/checkpoint"
)

// RestoreReport describes one Restore.
type RestoreReport struct {
	ID    string `json:"id"`
	Facts int    `json:"facts"`
	Cases int    `json:"cases"`
}

// Checkpoint saves every fact and retained case to m.
func (c *Client) Checkpoint(ctx context.Context, m *checkpoint.Manager) (*checkpoint.State, error) {
	c.mu.RLock()
	state := &checkpoint.State{
		CreatedAt:    time.Now().UTC(),
		GraphVersion: c.graph.Version(),
		Facts:        c.store.Facts(),
		Cases:        c.dispatcher.Cases().Cases(),
	}
	c.mu.RUnlock()

	if err := m.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	c.logger.InfoContext(ctx, "Checkpoint saved",
		"id", state.ID,
		"facts", len(state.Facts),
		"cases", len(state.Cases))
	return state, nil
}

// Restore inserts the facts and cases of s. Facts and cases already
// present are left alone. Restored cases become graph nodes, so the
// client is stale until the next Rebuild.
func (c *Client) Restore(ctx context.Context, s *checkpoint.State) (*RestoreReport, error) {
	report := &RestoreReport{ID: s.ID}
	for _, f := range s.Facts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		inserted, err := c.store.InsertFact(f.Subject, f.Predicate, f.Object)
		if err != nil {
			return report, fmt.Errorf("failed to restore fact %s: %w", f, err)
		}
		if inserted {
			report.Facts++
		}
	}
	report.Cases = c.dispatcher.Cases().Restore(s.Cases)
	c.registerCases()
	c.observeFacts()

	c.logger.InfoContext(ctx, "Checkpoint restored",
		"id", s.ID,
		"facts", report.Facts,
		"cases", report.Cases)
	return report, nil
}
