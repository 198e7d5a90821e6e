package ontoreason

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/community"
	"github.com/soundprediction/ontoreason/pkg/config"
	"github.com/soundprediction/ontoreason/pkg/embedder"
	"github.com/soundprediction/ontoreason/pkg/graph"
	"github.com/soundprediction/ontoreason/pkg/hierarchy"
	"github.com/soundprediction/ontoreason/pkg/metrics"
	"github.com/soundprediction/ontoreason/pkg/ontology"
	"github.com/soundprediction/ontoreason/pkg/reasoning"
	"github.com/soundprediction/ontoreason/pkg/retrieval"
	"github.com/soundprediction/ontoreason/pkg/rules"
	"github.com/soundprediction/ontoreason/pkg/triplestore"
	"github.com/soundprediction/ontoreason/pkg/types"
	"github.com/soundprediction/ontoreason/pkg/utils"
)

// DefaultAgentName names the agent created by NewClient.
const DefaultAgentName = "ontoreason"

// Config holds configuration for the Client.
type Config struct {
	Embedding          embedder.Config
	Community          community.Config
	Retrieval          retrieval.Config
	HierarchyThreshold float64
	// SummaryConcurrency bounds concurrent cluster summaries. Zero means 4.
	SummaryConcurrency int
	// RuleTable selects strategies per decision point. Nil uses
	// reasoning.DefaultRuleTable.
	RuleTable *reasoning.RuleTable
	// CustomRules is Datalog text for the custom_rules strategy.
	CustomRules string
	FactLimit   int
	AgentName   string
}

// NewDefaultConfig returns the default configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Embedding:          embedder.NewDefaultConfig(),
		Community:          community.NewDefaultConfig(),
		Retrieval:          retrieval.NewDefaultConfig(),
		HierarchyThreshold: hierarchy.DefaultThreshold,
		SummaryConcurrency: 4,
		FactLimit:          rules.DefaultFactLimit,
		AgentName:          DefaultAgentName,
	}
}

// ConfigFromSettings maps loaded settings onto a Config, reading the rule
// table and custom rules files they name.
func ConfigFromSettings(s *config.Config) (*Config, error) {
	cfg := NewDefaultConfig()
	cfg.Embedding = s.Embedding
	cfg.Community = s.Community
	cfg.Retrieval = s.Retrieval
	cfg.HierarchyThreshold = s.Hierarchy.Threshold
	if s.Hierarchy.SummaryConcurrency > 0 {
		cfg.SummaryConcurrency = s.Hierarchy.SummaryConcurrency
	}
	if s.Reasoning.FactLimit > 0 {
		cfg.FactLimit = s.Reasoning.FactLimit
	}
	if s.Reasoning.RuleTableFile != "" {
		table, err := reasoning.LoadRuleTable(s.Reasoning.RuleTableFile)
		if err != nil {
			return nil, err
		}
		cfg.RuleTable = &table
	}
	if s.Reasoning.CustomRulesFile != "" {
		text, err := rules.LoadFile(s.Reasoning.CustomRulesFile)
		if err != nil {
			return nil, err
		}
		cfg.CustomRules = text
	}
	return cfg, nil
}

// LoadOntology reads an ontology file, or returns the built-in onboarding
// ontology when path is empty.
func LoadOntology(path string) (*ontology.Static, error) {
	if path == "" {
		return ontology.Onboarding(), nil
	}
	return ontology.LoadFile(path)
}

// Options carries optional collaborators.
type Options struct {
	// Store holds facts. Nil means a new in-memory store.
	Store triplestore.Store
	// Memory receives agent state snapshots.
	Memory bdi.Memory
	// Summarizer writes cluster summaries. Nil means hierarchy.ListSummarizer.
	Summarizer hierarchy.Summarizer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// RebuildReport describes one Rebuild.
type RebuildReport struct {
	Version     uint64        `json:"version"`
	Nodes       int           `json:"nodes"`
	Edges       int           `json:"edges"`
	Symbols     int           `json:"symbols"`
	Communities int           `json:"communities"`
	Clusters    int           `json:"clusters"`
	Levels      int           `json:"levels"`
	Duration    time.Duration `json:"duration"`
}

// Stats summarizes the client state.
type Stats struct {
	Graph      graph.Stats `json:"graph"`
	Facts      int         `json:"facts"`
	Cases      int         `json:"cases"`
	Built      bool        `json:"built"`
	Stale      bool        `json:"stale"`
	Clusters   int         `json:"clusters"`
	Levels     int         `json:"levels"`
	Strategies []string    `json:"strategies"`
}

// Client builds a knowledge graph from an ontology and serves retrieval
// and reasoning over it.
type Client struct {
	config      *Config
	graph       *graph.KnowledgeGraph
	store       triplestore.Store
	engine      *retrieval.Engine
	partitioner community.Partitioner
	registry    *reasoning.Registry
	dispatcher  *reasoning.Dispatcher
	agent       *bdi.Agent
	summarizer  hierarchy.Summarizer
	metrics     *metrics.Metrics
	logger      *slog.Logger

	// mu guards the derived state below. Queries hold the read lock and
	// Rebuild holds the write lock throughout.
	mu         sync.RWMutex
	model      *embedder.Model
	groups     [][]string
	dendrogram *hierarchy.Dendrogram
	builtAt    uint64
	built      bool
}

// NewClient builds the graph from adapter and wires the reasoning stack.
// Embeddings, communities and the dendrogram are computed by Rebuild. A nil
// adapter uses the onboarding ontology and a nil cfg the defaults.
func NewClient(adapter ontology.Adapter, cfg *Config, opts Options) (*Client, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if adapter == nil {
		adapter = ontology.Onboarding()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Embedding.Validate(); err != nil {
		return nil, err
	}

	engine, err := retrieval.NewEngine(cfg.Retrieval, logger)
	if err != nil {
		return nil, err
	}
	partitioner, err := community.New(cfg.Community, logger)
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(adapter, logger)
	if err != nil {
		return nil, err
	}

	store := opts.Store
	if store == nil {
		store = triplestore.NewMemoryStore()
	}

	registry := reasoning.NewRegistry()
	if err := reasoning.RegisterDefaults(registry, reasoning.DefaultsConfig{
		CustomRules: cfg.CustomRules,
		FactLimit:   cfg.FactLimit,
		Logger:      logger,
	}); err != nil {
		return nil, err
	}
	table := reasoning.DefaultRuleTable()
	if cfg.RuleTable != nil {
		if err := cfg.RuleTable.Validate(); err != nil {
			return nil, err
		}
		table = *cfg.RuleTable
	}

	var observer reasoning.Observer
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	dispatcher := reasoning.NewDispatcher(registry, table, store, reasoning.DispatcherOptions{
		Observer: observer,
		Logger:   logger,
	})

	summarizer := opts.Summarizer
	if summarizer == nil {
		summarizer = hierarchy.ListSummarizer{}
	}

	c := &Client{
		config:      cfg,
		graph:       g,
		store:       store,
		engine:      engine,
		partitioner: partitioner,
		registry:    registry,
		dispatcher:  dispatcher,
		summarizer:  summarizer,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "client"),
	}

	name := cfg.AgentName
	if name == "" {
		name = DefaultAgentName
	}
	c.agent = bdi.NewAgent(name, store, bdi.AgentOptions{
		Memory:   opts.Memory,
		Reasoner: agentReasoner{c},
		Logger:   logger,
	})
	c.observeFacts()
	return c, nil
}

// Graph returns the knowledge graph.
func (c *Client) Graph() *graph.KnowledgeGraph { return c.graph }

// Store returns the triple store.
func (c *Client) Store() triplestore.Store { return c.store }

// Registry returns the strategy registry, for registering custom
// strategies.
func (c *Client) Registry() *reasoning.Registry { return c.registry }

// Dispatcher returns the reasoning dispatcher.
func (c *Client) Dispatcher() *reasoning.Dispatcher { return c.dispatcher }

// Agent returns the BDI agent sharing the client's store.
func (c *Client) Agent() *bdi.Agent { return c.agent }

// Rebuild recomputes embeddings and communities concurrently, then the
// dendrogram over community embeddings. Queries wait until it finishes.
func (c *Client) Rebuild(ctx context.Context) (*RebuildReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	version := c.graph.Version()

	var (
		model     *embedder.Model
		partition community.Partition
		eg        errgroup.Group
	)
	eg.Go(func() error {
		return utils.CatchPanic(func() error {
			m, err := embedder.Fit(embedder.CorpusFromGraph(c.graph, c.config.Embedding), c.config.Embedding, c.logger)
			if err != nil {
				return fmt.Errorf("failed to fit embeddings: %w", err)
			}
			model = m
			return nil
		})
	})
	eg.Go(func() error {
		return utils.CatchPanic(func() error {
			partition = c.partitioner.Partition(c.graph.Projection())
			return nil
		})
	})
	if err := eg.Wait(); err != nil {
		c.logger.ErrorContext(ctx, "Rebuild failed", "error", err)
		return nil, err
	}

	ids := c.graph.NodeIDs()
	vectors := model.Vectors(ids)
	c.graph.AssignEmbeddings(vectors)
	c.graph.AssignCommunities(partition)

	groups := partition.Groups()
	dendrogram, err := hierarchy.Build(hierarchy.CommunityEmbeddings(groups, vectors), c.config.HierarchyThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to build dendrogram: %w", err)
	}

	c.model = model
	c.groups = groups
	c.dendrogram = dendrogram
	c.builtAt = version
	c.built = true

	report := &RebuildReport{
		Version:     version,
		Nodes:       c.graph.NodeCount(),
		Edges:       c.graph.EdgeCount(),
		Symbols:     len(model.Symbols()),
		Communities: len(groups),
		Clusters:    dendrogram.Len(),
		Levels:      dendrogram.Levels(),
		Duration:    time.Since(start),
	}
	if c.metrics != nil {
		c.metrics.ObserveRebuild(report.Duration, report.Nodes, report.Edges)
	}
	c.logger.InfoContext(ctx, "Graph rebuilt",
		"nodes", report.Nodes,
		"edges", report.Edges,
		"communities", report.Communities,
		"clusters", report.Clusters,
		"duration", report.Duration)
	return report, nil
}

// Stale reports whether the graph changed since the last Rebuild, or was
// never built.
func (c *Client) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.built || c.graph.Version() != c.builtAt
}

// ProcessQuery ranks graph nodes against text. Before the first Rebuild,
// and for text that names no known symbol, the result is empty.
func (c *Client) ProcessQuery(ctx context.Context, text string) (*types.QueryResult, error) {
	start := time.Now()
	result, err := c.processQuery(text)

	outcome := metrics.QueryHit
	switch {
	case errors.Is(err, embedder.ErrUnknownSymbol):
		c.logger.DebugContext(ctx, "Query matched no symbol", "query", text)
		result, err = types.EmptyQueryResult(), nil
		outcome = metrics.QueryEmpty
	case err != nil:
		c.logger.ErrorContext(ctx, "Query failed", "query", text, "error", err)
		outcome = metrics.QueryError
	case len(result.Results) == 0:
		outcome = metrics.QueryEmpty
	}
	if c.metrics != nil {
		c.metrics.ObserveQuery(outcome, time.Since(start))
	}
	return result, err
}

func (c *Client) processQuery(text string) (*types.QueryResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.built {
		return types.EmptyQueryResult(), nil
	}
	return c.engine.ProcessQuery(&retrieval.Snapshot{
		Nodes:      c.graph.Nodes(),
		Groups:     c.groups,
		Dendrogram: c.dendrogram,
		Embedder:   c.model,
	}, text)
}

// SummarizeHierarchy summarizes every dendrogram cluster from the ids of
// its member nodes.
func (c *Client) SummarizeHierarchy(ctx context.Context) (map[int]string, error) {
	c.mu.RLock()
	dendrogram, groups := c.dendrogram, c.groups
	c.mu.RUnlock()
	if dendrogram == nil {
		return map[int]string{}, nil
	}
	return hierarchy.Summaries(ctx, dendrogram, groups, c.summarizer, c.config.SummaryConcurrency)
}

// Stats reports graph, store and derived state sizes.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{
		Graph:      c.graph.Stats(),
		Facts:      c.store.Len(),
		Cases:      c.dispatcher.Cases().Len(),
		Built:      c.built,
		Strategies: c.registry.Names(),
	}
	s.Stale = !c.built || s.Graph.Version != c.builtAt
	if c.dendrogram != nil {
		s.Clusters = c.dendrogram.Len()
		s.Levels = c.dendrogram.Levels()
	}
	return s
}

func (c *Client) observeFacts() {
	if c.metrics != nil {
		c.metrics.SetFacts(c.store.Len())
	}
}
