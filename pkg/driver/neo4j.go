package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/ontoreason/pkg/config"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// All exported nodes carry this label besides their kind label, so a
// single uniqueness constraint covers every id.
const symbolLabel = "Symbol"

// Neo4jSink writes graph snapshots to Neo4j with idempotent MERGE queries.
type Neo4jSink struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jSink creates a sink from connection settings. It does not dial;
// call VerifyConnectivity to check the server.
func NewNeo4jSink(cfg config.Neo4jConfig, logger *slog.Logger) (*Neo4jSink, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	return &Neo4jSink{
		client:   client,
		database: database,
		logger:   logger.With("component", "driver.neo4j"),
	}, nil
}

// VerifyConnectivity checks that the server is reachable.
func (n *Neo4jSink) VerifyConnectivity(ctx context.Context) error {
	return n.client.VerifyConnectivity(ctx)
}

// Close releases the driver.
func (n *Neo4jSink) Close(ctx context.Context) error {
	return n.client.Close(ctx)
}

// CreateIndices creates the id uniqueness constraint.
func (n *Neo4jSink) CreateIndices(ctx context.Context) error {
	query := fmt.Sprintf("CREATE CONSTRAINT symbol_id IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", symbolLabel)
	return n.write(ctx, func(tx neo4j.ManagedTransaction) error {
		_, err := tx.Run(ctx, query, nil)
		return err
	})
}

// WriteNodes merges nodes by id, one UNWIND per kind label.
func (n *Neo4jSink) WriteNodes(ctx context.Context, nodes []*types.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	labels, groups := groupNodes(nodes)
	updatedAt := time.Now().UTC().Format(time.RFC3339)

	err := n.write(ctx, func(tx neo4j.ManagedTransaction) error {
		for _, label := range labels {
			query := fmt.Sprintf(`
				UNWIND $nodes AS row
				MERGE (n:%s {id: row.id})
				SET n:%s
				SET n += row
				SET n.updated_at = $updated_at
			`, symbolLabel, label)
			if _, err := tx.Run(ctx, query, map[string]any{
				"nodes":      groups[label],
				"updated_at": updatedAt,
			}); err != nil {
				return fmt.Errorf("failed to upsert %s nodes: %w", label, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	n.logger.Info("Nodes exported", "count", len(nodes), "labels", len(labels))
	return nil
}

// WriteEdges merges typed relationships between existing nodes. Edges
// whose endpoints are missing are skipped by the MATCH.
func (n *Neo4jSink) WriteEdges(ctx context.Context, edges []types.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	relTypes, groups := groupEdges(edges)

	err := n.write(ctx, func(tx neo4j.ManagedTransaction) error {
		for _, rel := range relTypes {
			query := fmt.Sprintf(`
				UNWIND $edges AS row
				MATCH (s:%[1]s {id: row.source}), (t:%[1]s {id: row.target})
				MERGE (s)-[r:%[2]s]->(t)
				SET r.label = row.label
			`, symbolLabel, rel)
			if _, err := tx.Run(ctx, query, map[string]any{"edges": groups[rel]}); err != nil {
				return fmt.Errorf("failed to upsert %s edges: %w", rel, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	n.logger.Info("Edges exported", "count", len(edges), "types", len(relTypes))
	return nil
}

// WriteFacts merges triples as FACT relationships keyed by predicate.
// Subjects and objects that are not graph symbols become Entity nodes.
func (n *Neo4jSink) WriteFacts(ctx context.Context, facts []types.Triple) error {
	if len(facts) == 0 {
		return nil
	}
	rows := make([]map[string]any, len(facts))
	for i, f := range facts {
		rows[i] = map[string]any{"subject": f.Subject, "predicate": f.Predicate, "object": f.Object}
	}

	err := n.write(ctx, func(tx neo4j.ManagedTransaction) error {
		_, err := tx.Run(ctx, `
			UNWIND $facts AS row
			MERGE (s:Entity {id: row.subject})
			MERGE (o:Entity {id: row.object})
			MERGE (s)-[:FACT {predicate: row.predicate}]->(o)
		`, map[string]any{"facts": rows})
		if err != nil {
			return fmt.Errorf("failed to upsert facts: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	n.logger.Info("Facts exported", "count", len(facts))
	return nil
}

// Counts returns the number of exported symbols and relationships between
// them.
func (n *Neo4jSink) Counts(ctx context.Context) (nodes, edges int64, err error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:%[1]s)
			OPTIONAL MATCH (n)-[r]->(:%[1]s)
			RETURN count(DISTINCT n) AS nodes, count(r) AS edges
		`, symbolLabel)
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count exported graph: %w", err)
	}

	record, ok := result.(*neo4j.Record)
	if !ok || record == nil {
		return 0, 0, fmt.Errorf("unexpected count result %T", result)
	}
	if nodes, _, err = neo4j.GetRecordValue[int64](record, "nodes"); err != nil {
		return 0, 0, fmt.Errorf("failed to read node count: %w", err)
	}
	if edges, _, err = neo4j.GetRecordValue[int64](record, "edges"); err != nil {
		return 0, 0, fmt.Errorf("failed to read edge count: %w", err)
	}
	return nodes, edges, nil
}

func (n *Neo4jSink) write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return err
}
