package ontoreason

import (
	"context"
	"fmt"
	"slices"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/driver"
	"github.com/soundprediction/ontoreason/pkg/reasoning"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// InsertFact adds (subject, predicate, object) to the store and reports
// whether it was new. Facts never touch embeddings or communities.
func (c *Client) InsertFact(ctx context.Context, subject, predicate, object string) (bool, error) {
	inserted, err := c.store.InsertFact(subject, predicate, object)
	if err != nil {
		return false, err
	}
	if inserted {
		c.logger.DebugContext(ctx, "Fact inserted", "subject", subject, "predicate", predicate, "object", object)
		c.observeFacts()
	}
	return inserted, nil
}

// QueryFacts returns the bindings of the pattern's variables.
func (c *Client) QueryFacts(_ context.Context, pattern types.Pattern) []types.Binding {
	return c.store.QueryFacts(pattern)
}

// QueryAll joins conjunctive patterns.
func (c *Client) QueryAll(_ context.Context, patterns ...types.Pattern) []types.Binding {
	return c.store.QueryAll(patterns...)
}

// UpdateStatus replaces the status fact of entity.
func (c *Client) UpdateStatus(ctx context.Context, entity, status string) error {
	if err := c.store.UpdateStatus(entity, status); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "Status updated", "entity", entity, "status", status)
	c.observeFacts()
	return nil
}

// Reason dispatches the strategies selected for the decision point. Cases
// retained by the run are added to the graph as case nodes; they get
// embeddings at the next Rebuild.
func (c *Client) Reason(ctx context.Context, plan *bdi.Plan, task *bdi.Task, action *bdi.Action) (*reasoning.Report, error) {
	report, err := c.dispatcher.Dispatch(ctx, plan, task, action)
	c.registerCases()
	c.observeFacts()
	if err != nil {
		return report, err
	}
	c.logger.InfoContext(ctx, "Reasoning dispatched",
		"selected", report.Selected,
		"failed", len(report.Failed),
		"duration", report.Duration)
	return report, nil
}

// registerCases adds a node for every case the graph lacks. After a
// Rebuild each new node is isolated, so it joins the partition as a
// singleton community.
func (c *Client) registerCases() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cs := range c.dispatcher.Cases().Cases() {
		if c.graph.HasNode(cs.ID) {
			continue
		}
		desc := fmt.Sprintf("%s / %s / %s: %s", cs.Plan, cs.Task, cs.Action, cs.Solution)
		if err := c.graph.AddNode(types.KindCase, cs.ID, desc); err != nil {
			c.logger.Warn("Failed to register case node", "case", cs.ID, "error", err)
			continue
		}
		if !c.built {
			continue
		}
		groups := append(slices.Clone(c.groups), []string{cs.ID})
		if err := c.graph.SetCommunity(cs.ID, len(groups)-1); err != nil {
			c.logger.Warn("Failed to assign case community", "case", cs.ID, "error", err)
			continue
		}
		c.groups = groups
	}
}

// Export writes the graph and every fact to each sink in turn.
func (c *Client) Export(ctx context.Context, sinks ...driver.Sink) error {
	c.mu.RLock()
	snapshot := driver.Snapshot{
		Nodes: c.graph.Nodes(),
		Edges: c.graph.Edges(),
		Facts: c.store.Facts(),
	}
	c.mu.RUnlock()

	if err := driver.Write(ctx, snapshot, sinks...); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Graph exported",
		"sinks", len(sinks),
		"nodes", len(snapshot.Nodes),
		"edges", len(snapshot.Edges),
		"facts", len(snapshot.Facts))
	return nil
}

// agentReasoner lets the agent reason through the client so retained
// cases reach the graph.
type agentReasoner struct {
	c *Client
}

func (r agentReasoner) Reason(ctx context.Context, plan *bdi.Plan, task *bdi.Task, action *bdi.Action) error {
	report, err := r.c.Reason(ctx, plan, task, action)
	if err != nil {
		return err
	}
	return report.Err()
}
