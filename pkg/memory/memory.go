// Package memory stores snapshots of agent state and answers substring
// searches over them.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyValue is returned when saving an empty record.
var ErrEmptyValue = errors.New("memory value cannot be empty")

// Record is one saved memory.
type Record struct {
	ID        string            `json:"id"`
	Value     string            `json:"value"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Agent     string            `json:"agent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// matches reports whether the lower-cased query occurs in the value, the
// agent or any metadata value.
func (r Record) matches(query string) bool {
	if query == "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.Value), query) || strings.Contains(strings.ToLower(r.Agent), query) {
		return true
	}
	for _, v := range r.Metadata {
		if strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}

// Storage persists records.
type Storage interface {
	Put(ctx context.Context, r Record) error
	// Scan visits records newest first until fn returns false.
	Scan(ctx context.Context, fn func(Record) bool) error
	Close() error
}

// Memory saves and searches records in a Storage.
type Memory struct {
	storage Storage
	now     func() time.Time
	logger  *slog.Logger
}

// New returns a Memory backed by storage.
func New(storage Storage, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{storage: storage, now: time.Now, logger: logger.With("component", "memory")}
}

// Save stores value with its metadata.
func (m *Memory) Save(ctx context.Context, value string, metadata map[string]string, agent string) error {
	_, err := m.SaveRecord(ctx, value, metadata, agent)
	return err
}

// SaveRecord stores value and returns the saved record.
func (m *Memory) SaveRecord(ctx context.Context, value string, metadata map[string]string, agent string) (Record, error) {
	if value == "" {
		return Record{}, ErrEmptyValue
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	r := Record{
		ID:        uuid.NewString(),
		Value:     value,
		Metadata:  meta,
		Agent:     agent,
		CreatedAt: m.now().UTC(),
	}
	if err := m.storage.Put(ctx, r); err != nil {
		return Record{}, fmt.Errorf("failed to save memory: %w", err)
	}
	m.logger.Debug("Memory saved", "id", r.ID, "agent", agent, "type", meta["type"])
	return r, nil
}

// Search returns up to limit records, newest first, whose value, agent or
// metadata contains query case-insensitively. A limit <= 0 returns all.
func (m *Memory) Search(ctx context.Context, query string, limit int) ([]Record, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	var out []Record
	err := m.storage.Scan(ctx, func(r Record) bool {
		if r.matches(query) {
			out = append(out, r)
		}
		return limit <= 0 || len(out) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search memory: %w", err)
	}
	return out, nil
}

// Close closes the underlying storage.
func (m *Memory) Close() error {
	return m.storage.Close()
}

// InMemoryStorage keeps records in a slice.
type InMemoryStorage struct {
	mu      sync.RWMutex
	records []Record
}

var _ Storage = (*InMemoryStorage)(nil)

// NewInMemoryStorage returns empty storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{}
}

// Put implements Storage.
func (s *InMemoryStorage) Put(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// Scan implements Storage.
func (s *InMemoryStorage) Scan(ctx context.Context, fn func(Record) bool) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(s.records[i]) {
			return nil
		}
	}
	return nil
}

// Close implements Storage.
func (s *InMemoryStorage) Close() error { return nil }
