package driver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/soundprediction/ontoreason/pkg/config"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// Default pool settings for PostgresSink.
const (
	DefaultPostgresMaxOpenConns    = 10
	DefaultPostgresMaxIdleConns    = 2
	DefaultPostgresConnMaxLifetime = 5 * time.Minute
)

// schema creates the export tables. Embeddings are stored as JSONB so the
// sink works without the vector extension.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ontoreason_nodes (
		id TEXT PRIMARY KEY,
		kind VARCHAR(32) NOT NULL,
		description TEXT,
		community BIGINT,
		embedding JSONB,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ontoreason_edges (
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		label TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (source, target, label)
	)`,
	`CREATE TABLE IF NOT EXISTS ontoreason_facts (
		subject TEXT NOT NULL,
		predicate TEXT NOT NULL,
		object TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (subject, predicate, object)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ontoreason_nodes_kind ON ontoreason_nodes(kind)`,
	`CREATE INDEX IF NOT EXISTS idx_ontoreason_nodes_community ON ontoreason_nodes(community)`,
	`CREATE INDEX IF NOT EXISTS idx_ontoreason_facts_predicate ON ontoreason_facts(predicate)`,
}

// PostgresSink upserts graph snapshots into PostgreSQL tables. Every write
// runs in one transaction per call.
type PostgresSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresSink opens a connection pool for cfg.URL and pings it.
func NewPostgresSink(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) (*PostgresSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgres url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = DefaultPostgresMaxOpenConns
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(min(DefaultPostgresMaxIdleConns, maxOpen))
	db.SetConnMaxLifetime(DefaultPostgresConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSink{
		db:     db,
		logger: logger.With("component", "driver.postgres"),
	}, nil
}

// Initialize creates the export tables and indices.
func (p *PostgresSink) Initialize(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (p *PostgresSink) Close() error {
	return p.db.Close()
}

// WriteNodes upserts nodes by id.
func (p *PostgresSink) WriteNodes(ctx context.Context, nodes []*types.Node) error {
	if len(nodes) == 0 {
		return nil
	}
	now := time.Now().UTC()
	err := p.inTx(ctx, `
		INSERT INTO ontoreason_nodes (id, kind, description, community, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			description = EXCLUDED.description,
			community = EXCLUDED.community,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at`,
		func(stmt *sql.Stmt) error {
			for _, n := range nodes {
				row, err := nodeRow(n)
				if err != nil {
					return err
				}
				if _, err := stmt.ExecContext(ctx, append(row, now)...); err != nil {
					return fmt.Errorf("failed to upsert node %s: %w", n.ID, err)
				}
			}
			return nil
		})
	if err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "Nodes exported", "count", len(nodes))
	return nil
}

// WriteEdges upserts edges keyed by (source, target, label).
func (p *PostgresSink) WriteEdges(ctx context.Context, edges []types.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return p.inTx(ctx, `
		INSERT INTO ontoreason_edges (source, target, label, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source, target, label) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		func(stmt *sql.Stmt) error {
			for _, e := range edges {
				if _, err := stmt.ExecContext(ctx, e.Source, e.Target, e.Type, now); err != nil {
					return fmt.Errorf("failed to upsert edge %s-%s->%s: %w", e.Source, e.Type, e.Target, err)
				}
			}
			return nil
		})
}

// WriteFacts upserts triples.
func (p *PostgresSink) WriteFacts(ctx context.Context, facts []types.Triple) error {
	if len(facts) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return p.inTx(ctx, `
		INSERT INTO ontoreason_facts (subject, predicate, object, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject, predicate, object) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		func(stmt *sql.Stmt) error {
			for _, f := range facts {
				if _, err := stmt.ExecContext(ctx, f.Subject, f.Predicate, f.Object, now); err != nil {
					return fmt.Errorf("failed to upsert fact %s: %w", f, err)
				}
			}
			return nil
		})
}

// Prune deletes nodes whose id is not in keep. Exports only upsert, so a
// caller mirroring the graph exactly runs Prune after WriteNodes.
func (p *PostgresSink) Prune(ctx context.Context, keep []string) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM ontoreason_nodes WHERE NOT (id = ANY($1))`, pq.Array(keep))
	if err != nil {
		return 0, fmt.Errorf("failed to prune nodes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned nodes: %w", err)
	}
	return n, nil
}

func (p *PostgresSink) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	if err := fn(stmt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// nodeRow returns the id, kind, description, community and embedding
// column values of n. Unset community and embedding become NULL.
func nodeRow(n *types.Node) ([]any, error) {
	var community sql.NullInt64
	if c, ok := n.CommunityID(); ok {
		community = sql.NullInt64{Int64: int64(c), Valid: true}
	}
	var embedding []byte
	if n.HasEmbedding() {
		var err error
		embedding, err = json.Marshal(n.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding of %s: %w", n.ID, err)
		}
	}
	return []any{n.ID, string(n.Kind), n.Description, community, embedding}, nil
}
