// Package checkpoint saves and restores the runtime state that a rebuild
// cannot recreate: triple-store facts and retained reasoning cases.
//
// The knowledge graph itself is derived from the ontology, so it is not
// stored. Restored case nodes are re-registered by the caller and receive
// embeddings at the next rebuild.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// ErrInvalidID is returned when a checkpoint ID contains path traversal
// sequences or invalid characters.
var ErrInvalidID = errors.New("invalid checkpoint ID: contains path traversal or invalid characters")

const (
	filePrefix = "checkpoint_"
	fileSuffix = ".json"
)

// State is one checkpoint.
type State struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	GraphVersion uint64         `json:"graph_version"`
	Facts        []types.Triple `json:"facts"`
	Cases        []bdi.Case     `json:"cases,omitempty"`
}

// NewID returns a sortable ID for a checkpoint taken at t.
func NewID(t time.Time) string {
	return t.UTC().Format("20060102T150405.000000000Z")
}

// Manager stores checkpoints as JSON files in one directory.
type Manager struct {
	dir string
}

// NewManager creates dir if needed. An empty dir means
// os.TempDir()/ontoreason-checkpoints.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "ontoreason-checkpoints")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the checkpoint directory.
func (m *Manager) Dir() string {
	return m.dir
}

func validateID(id string) error {
	if id == "" ||
		strings.Contains(id, "..") ||
		strings.ContainsAny(id, `/\`) ||
		strings.ContainsRune(id, '\x00') {
		return ErrInvalidID
	}
	return nil
}

// Path returns the file path for id.
func (m *Manager) Path(id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	path := filepath.Join(m.dir, filePrefix+id+fileSuffix)
	if filepath.Dir(path) != filepath.Clean(m.dir) {
		return "", ErrInvalidID
	}
	return path, nil
}

// Save writes s atomically. A zero CreatedAt is set to now and an empty ID
// is derived from CreatedAt.
func (m *Manager) Save(ctx context.Context, s *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.ID == "" {
		s.ID = NewID(s.CreatedAt)
	}
	path, err := m.Path(s.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}
	return nil
}

// Load reads the checkpoint id. It returns nil, nil when none exists.
func (m *Manager) Load(ctx context.Context, id string) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := m.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &s, nil
}

// Delete removes the checkpoint id. Missing checkpoints are not an error.
func (m *Manager) Delete(_ context.Context, id string) error {
	path, err := m.Path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// List returns the stored checkpoint IDs, oldest first. Unreadable or
// temporary files are skipped.
func (m *Manager) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if validateID(id) == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Latest loads the newest checkpoint, or nil when there is none.
func (m *Manager) Latest(ctx context.Context) (*State, error) {
	ids, err := m.List(ctx)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return m.Load(ctx, ids[len(ids)-1])
}

// Prune deletes all but the newest keep checkpoints and returns how many
// were removed. keep <= 0 removes nothing.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	ids, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for len(ids)-removed > keep {
		if err := m.Delete(ctx, ids[removed]); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// CleanOld removes checkpoints created before now - maxAge.
func (m *Manager) CleanOld(ctx context.Context, maxAge time.Duration) (int, error) {
	ids, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, id := range ids {
		s, err := m.Load(ctx, id)
		if err != nil || s == nil || !s.CreatedAt.Before(cutoff) {
			continue
		}
		if err := m.Delete(ctx, id); err != nil {
			continue
		}
		removed++
	}
	return removed, nil
}
