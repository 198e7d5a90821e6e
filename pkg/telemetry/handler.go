// Package telemetry persists error-level log records to Parquet files so
// failed queries, rebuilds and strategy runs can be analysed offline.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/ontoreason/pkg/types"
)

// DefaultFlushEvery is the buffered record count that triggers a write.
const DefaultFlushEvery = 100

// LogRecord represents a single log entry for Parquet storage
type LogRecord struct {
	ID            string    `parquet:"id"`
	Timestamp     time.Time `parquet:"timestamp"`
	Level         string    `parquet:"level"`
	Message       string    `parquet:"message"`
	Component     string    `parquet:"component"`
	UserID        string    `parquet:"user_id"`
	SessionID     string    `parquet:"session_id"`
	RequestSource string    `parquet:"request_source"`
	SourceFile    string    `parquet:"source_file"`
	LineNumber    int       `parquet:"line_number"`
	Attributes    string    `parquet:"attributes"` // JSON object
}

// sink is the buffer shared by a handler and every clone derived from it.
type sink struct {
	mu         sync.Mutex
	outputDir  string
	flushEvery int
	buffer     []LogRecord
	files      int
}

// ParquetHandler is a slog.Handler that passes every record on and
// buffers error records for Parquet files.
type ParquetHandler struct {
	next  slog.Handler
	sink  *sink
	attrs []slog.Attr
	group string
}

var _ slog.Handler = (*ParquetHandler)(nil)

// NewParquetHandler creates a new ParquetHandler writing into outputDir.
// flushEvery <= 0 means DefaultFlushEvery.
func NewParquetHandler(next slog.Handler, outputDir string, flushEvery int) (*ParquetHandler, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}
	return &ParquetHandler{
		next: next,
		sink: &sink{
			outputDir:  outputDir,
			flushEvery: flushEvery,
			buffer:     make([]LogRecord, 0, flushEvery),
		},
	}, nil
}

// Enabled implements slog.Handler
func (h *ParquetHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle implements slog.Handler
func (h *ParquetHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.next.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level < slog.LevelError {
		return nil
	}

	record := LogRecord{
		ID:        uuid.NewString(),
		Timestamp: r.Time.UTC(),
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	if v, ok := ctx.Value(types.ContextKeyUserID).(string); ok {
		record.UserID = v
	}
	if v, ok := ctx.Value(types.ContextKeySessionID).(string); ok {
		record.SessionID = v
	}
	if v, ok := ctx.Value(types.ContextKeyRequestSource).(string); ok {
		record.RequestSource = v
	}

	attrs := make(map[string]any)
	add := func(a slog.Attr) bool {
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		if a.Key == "component" {
			record.Component = a.Value.String()
			return true
		}
		attrs[key] = a.Value.Resolve().Any()
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)
	if len(attrs) > 0 {
		encoded, err := json.Marshal(attrs)
		if err != nil {
			encoded = []byte(fmt.Sprintf(`{"encode_error":%q}`, err.Error()))
		}
		record.Attributes = string(encoded)
	}

	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		record.SourceFile = frame.File
		record.LineNumber = frame.Line
	}

	return h.sink.add(record)
}

// WithAttrs implements slog.Handler. Clones share the buffer.
func (h *ParquetHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

// WithGroup implements slog.Handler
func (h *ParquetHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	if name != "" {
		if c.group != "" {
			c.group += "." + name
		} else {
			c.group = name
		}
	}
	return &c
}

// Flush writes buffered records now.
func (h *ParquetHandler) Flush() error {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.flush()
}

// Close flushes the remaining records.
func (h *ParquetHandler) Close() error {
	return h.Flush()
}

// Files reports how many Parquet files have been written.
func (h *ParquetHandler) Files() int {
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	return h.sink.files
}

func (s *sink) add(r LogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, r)
	if len(s.buffer) >= s.flushEvery {
		return s.flush()
	}
	return nil
}

// flush writes the buffer to a new file. Caller must hold the lock.
func (s *sink) flush() error {
	if len(s.buffer) == 0 {
		return nil
	}
	now := time.Now()
	name := fmt.Sprintf("errors_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	if err := parquet.WriteFile(filepath.Join(s.outputDir, name), s.buffer); err != nil {
		// The records stay buffered for the next attempt.
		fmt.Fprintf(os.Stderr, "failed to write telemetry parquet file: %v\n", err)
		return err
	}
	s.buffer = s.buffer[:0]
	s.files++
	return nil
}
