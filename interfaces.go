package ontoreason

import (
	"context"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/checkpoint"
	"github.com/soundprediction/ontoreason/pkg/driver"
	"github.com/soundprediction/ontoreason/pkg/reasoning"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// Consumers should depend on the smallest interface that meets their needs.

// QueryEngine answers natural-language queries.
type QueryEngine interface {
	ProcessQuery(ctx context.Context, text string) (*types.QueryResult, error)
}

// FactStore reads and writes facts.
type FactStore interface {
	InsertFact(ctx context.Context, subject, predicate, object string) (bool, error)
	QueryFacts(ctx context.Context, pattern types.Pattern) []types.Binding
	QueryAll(ctx context.Context, patterns ...types.Pattern) []types.Binding
	UpdateStatus(ctx context.Context, entity, status string) error
}

// Reasoner runs reasoning strategies for a decision point.
type Reasoner interface {
	Reason(ctx context.Context, plan *bdi.Plan, task *bdi.Task, action *bdi.Action) (*reasoning.Report, error)
}

// GraphAdmin maintains the derived graph state.
type GraphAdmin interface {
	Rebuild(ctx context.Context) (*RebuildReport, error)
	Stale() bool
	Stats() Stats
	SummarizeHierarchy(ctx context.Context) (map[int]string, error)
	Export(ctx context.Context, sinks ...driver.Sink) error
}

// Checkpointer saves and restores facts and retained cases.
type Checkpointer interface {
	Checkpoint(ctx context.Context, m *checkpoint.Manager) (*checkpoint.State, error)
	Restore(ctx context.Context, s *checkpoint.State) (*RestoreReport, error)
}

// Ontoreason is the full client surface.
type Ontoreason interface {
	QueryEngine
	FactStore
	Reasoner
	GraphAdmin
	Checkpointer
	Agent() *bdi.Agent
}

var _ Ontoreason = (*Client)(nil)
