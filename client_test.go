package ontoreason

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/checkpoint"
	"github.com/soundprediction/ontoreason/pkg/config"
	"github.com/soundprediction/ontoreason/pkg/metrics"
	"github.com/soundprediction/ontoreason/pkg/ontology"
	"github.com/soundprediction/ontoreason/pkg/reasoning"
	"github.com/soundprediction/ontoreason/pkg/types"
	"github.com/soundprediction/ontoreason/pkg/utils"
)

func animalOntology() *ontology.Static {
	s := ontology.NewStatic()
	s.AddClass("Animal", "A living creature")
	s.AddClass("Dog", "A domesticated animal", "Animal")
	s.AddProperty("owns", "Person", "Animal", "")
	return s
}

func testConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Embedding.Dimension = 32
	return cfg
}

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	c, err := NewClient(animalOntology(), testConfig(), opts)
	require.NoError(t, err)
	return c
}

func TestQueryBeforeRebuild(t *testing.T) {
	c := newTestClient(t, Options{})
	assert.True(t, c.Stale())

	res, err := c.ProcessQuery(context.Background(), "Dog")
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Empty(t, res.Summary)

	summaries, err := c.SummarizeHierarchy(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestRebuildAndQuery(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})

	report, err := c.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Nodes)
	assert.Equal(t, 3, report.Edges)
	assert.Positive(t, report.Communities)
	assert.False(t, c.Stale())

	for _, n := range c.Graph().Nodes() {
		assert.NotEmpty(t, n.Embedding, n.ID)
		assert.NotNil(t, n.Community, n.ID)
	}

	res, err := c.ProcessQuery(ctx, "Dog")
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "Dog", res.Results[0].ID)
	assert.InDelta(t, 1.0, res.Results[0].Score, 1e-6)
	assert.Contains(t, res.Summary, "- Dog: A domesticated animal")

	summaries, err := c.SummarizeHierarchy(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, c.Stats().Clusters)
}

func TestUnknownQueryIsEmpty(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	_, err := c.Rebuild(ctx)
	require.NoError(t, err)

	res, err := c.ProcessQuery(ctx, "zebra")
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestFactsDoNotInvalidateEmbeddings(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	_, err := c.Rebuild(ctx)
	require.NoError(t, err)

	inserted, err := c.InsertFact(ctx, "rex", "rdf:type", "Dog")
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = c.InsertFact(ctx, "rex", "rdf:type", "Dog")
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = c.InsertFact(ctx, "", "rdf:type", "Dog")
	assert.Error(t, err)

	require.NoError(t, c.UpdateStatus(ctx, "rex", "adopted"))
	require.NoError(t, c.UpdateStatus(ctx, "rex", "home"))

	bindings := c.QueryFacts(ctx, types.Pattern{Subject: "?x", Predicate: "rdf:type", Object: "Dog"})
	require.Len(t, bindings, 1)
	assert.Equal(t, "rex", bindings[0]["x"])

	joined := c.QueryAll(ctx,
		types.Pattern{Subject: "?x", Predicate: "rdf:type", Object: "Dog"},
		types.Pattern{Subject: "?x", Predicate: "status", Object: "?s"},
	)
	require.Len(t, joined, 1)
	assert.Equal(t, "home", joined[0]["s"])

	assert.False(t, c.Stale())
	assert.Equal(t, 2, c.Stats().Facts)
}

func TestReasonRegistersCases(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	_, err := c.Rebuild(ctx)
	require.NoError(t, err)
	before := c.Graph().NodeCount()

	goal := bdi.NewGoal("Grow", "", 1)
	plan := bdi.NewPlan("Learning Plan", goal)
	task := goal.CreateTask("Review")
	action := bdi.NewAction("Ship", map[string]string{"solution": "ship weekly"})
	action.Status = bdi.StatusCompleted
	require.NoError(t, goal.AddAction(task, action))

	report, err := c.Reason(ctx, plan, task, action)
	require.NoError(t, err)
	assert.Contains(t, report.Ran, reasoning.StrategyAdaptabilityLearning)

	assert.Equal(t, before+1, c.Graph().NodeCount())
	assert.True(t, c.Stale())
	assert.Equal(t, 1, c.Stats().Cases)

	var found bool
	for _, n := range c.Graph().Nodes() {
		if n.Kind == types.KindCase {
			found = true
			assert.Contains(t, n.Description, "ship weekly")
		}
	}
	assert.True(t, found)

	_, err = c.Rebuild(ctx)
	require.NoError(t, err)
	assert.False(t, c.Stale())

	// Retaining again is a no-op, so the graph is unchanged.
	_, err = c.Reason(ctx, plan, task, action)
	require.NoError(t, err)
	assert.False(t, c.Stale())
}

func assertPartitioned(t *testing.T, c *Client) {
	t.Helper()
	for _, n := range c.Graph().Nodes() {
		_, ok := n.CommunityID()
		assert.True(t, ok, "node %s has no community", n.ID)
	}
}

func TestCaseNodesJoinPartition(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	_, err := c.Rebuild(ctx)
	require.NoError(t, err)
	communities := c.Stats().Graph.Communities

	goal := bdi.NewGoal("Grow", "", 1)
	plan := bdi.NewPlan("Learning Plan", goal)
	task := goal.CreateTask("Review")
	action := bdi.NewAction("Ship", map[string]string{"solution": "ship weekly"})
	action.Status = bdi.StatusCompleted
	require.NoError(t, goal.AddAction(task, action))

	_, err = c.Reason(ctx, plan, task, action)
	require.NoError(t, err)
	assertPartitioned(t, c)
	assert.Equal(t, communities+1, c.Stats().Graph.Communities)

	members := make(map[int]int)
	caseCommunity := -1
	for _, n := range c.Graph().Nodes() {
		id, _ := n.CommunityID()
		members[id]++
		if n.Kind == types.KindCase {
			caseCommunity = id
		}
	}
	require.NotEqual(t, -1, caseCommunity)
	assert.Equal(t, 1, members[caseCommunity], "case node is a singleton community")

	// Queries still resolve with the extra community.
	_, err = c.ProcessQuery(ctx, "Dog")
	require.NoError(t, err)
}

func TestAgentSharesStore(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})

	plans, err := c.Agent().Onboard(ctx, "alice", map[string]any{
		bdi.KeyUserGoals: []string{"Launch"},
	})
	require.NoError(t, err)
	require.Len(t, plans, 1)

	bindings := c.QueryFacts(ctx, types.Pattern{Subject: "alice", Predicate: bdi.PredicateHasGoal, Object: "?g"})
	require.Len(t, bindings, 1)
	assert.Equal(t, "Launch", bindings[0]["g"])

	require.NoError(t, c.Agent().Reason(ctx, plans[0], nil, nil))
}

func TestExportParquet(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, Options{})
	_, err := c.Rebuild(ctx)
	require.NoError(t, err)
	_, err = c.InsertFact(ctx, "rex", "rdf:type", "Dog")
	require.NoError(t, err)

	w, err := utils.NewParquetGraphWriter(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, c.Export(ctx, w))

	nodes, err := w.ReadNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
	for _, n := range nodes {
		assert.Len(t, n.Embedding, 32)
	}
}

func TestMetricsObserved(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	c := newTestClient(t, Options{Metrics: m})

	_, err := c.ProcessQuery(ctx, "Dog")
	require.NoError(t, err)
	_, err = c.Rebuild(ctx)
	require.NoError(t, err)
	_, err = c.ProcessQuery(ctx, "Dog")
	require.NoError(t, err)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "ontoreason_queries_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			counts[metric.GetLabel()[0].GetValue()] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, counts[metrics.QueryEmpty])
	assert.Equal(t, 1.0, counts[metrics.QueryHit])
}

func TestConfigFromSettings(t *testing.T) {
	s := &config.Config{}
	s.Hierarchy.Threshold = 0.25
	s.Reasoning.FactLimit = 500

	cfg, err := ConfigFromSettings(s)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.HierarchyThreshold)
	assert.Equal(t, 500, cfg.FactLimit)
	assert.Nil(t, cfg.RuleTable)

	s.Reasoning.RuleTableFile = "does-not-exist.yaml"
	_, err = ConfigFromSettings(s)
	assert.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(nil, nil, Options{})
	require.NoError(t, err)
	assert.Positive(t, c.Graph().NodeCount())
	assert.Contains(t, c.Stats().Strategies, reasoning.StrategyOWLRL)

	_, err = LoadOntology("")
	require.NoError(t, err)
}

func TestCheckpointRestore(t *testing.T) {
	ctx := context.Background()
	src := newTestClient(t, Options{})
	_, err := src.InsertFact(ctx, "rex", "rdf:type", "Dog")
	require.NoError(t, err)

	goal := bdi.NewGoal("Grow", "", 1)
	plan := bdi.NewPlan("Learning Plan", goal)
	task := goal.CreateTask("Review")
	action := bdi.NewAction("Ship", map[string]string{"solution": "ship weekly"})
	action.Status = bdi.StatusCompleted
	require.NoError(t, goal.AddAction(task, action))
	_, err = src.Reason(ctx, plan, task, action)
	require.NoError(t, err)

	m, err := checkpoint.NewManager(t.TempDir())
	require.NoError(t, err)
	state, err := src.Checkpoint(ctx, m)
	require.NoError(t, err)
	assert.Len(t, state.Cases, 1)

	loaded, err := m.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	dst := newTestClient(t, Options{})
	_, err = dst.Rebuild(ctx)
	require.NoError(t, err)
	report, err := dst.Restore(ctx, loaded)
	require.NoError(t, err)
	assert.Equal(t, src.Stats().Facts, report.Facts)
	assert.Equal(t, 1, report.Cases)
	assert.True(t, dst.Graph().HasNode(state.Cases[0].ID))
	assert.True(t, dst.Stale())
	assertPartitioned(t, dst)

	bindings := dst.QueryFacts(ctx, types.Pattern{Subject: "rex", Predicate: "rdf:type", Object: "?c"})
	require.Len(t, bindings, 1)
	assert.Equal(t, "Dog", bindings[0]["c"])

	again, err := dst.Restore(ctx, loaded)
	require.NoError(t, err)
	assert.Zero(t, again.Facts)
	assert.Zero(t, again.Cases)
}
