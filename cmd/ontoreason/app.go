package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/soundprediction/ontoreason"
	"github.com/soundprediction/ontoreason/pkg/alert"
	"github.com/soundprediction/ontoreason/pkg/config"
	"github.com/soundprediction/ontoreason/pkg/hierarchy"
	"github.com/soundprediction/ontoreason/pkg/logger"
	"github.com/soundprediction/ontoreason/pkg/memory"
	"github.com/soundprediction/ontoreason/pkg/metrics"
	"github.com/soundprediction/ontoreason/pkg/nlp"
	"github.com/soundprediction/ontoreason/pkg/telemetry"
)

// app is the wired runtime shared by every command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *ontoreason.Client
	metrics *metrics.Metrics
	closers []io.Closer
}

// newApp loads configuration and wires the client with its collaborators.
func newApp(cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	log, closer, err := logger.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closer)

	if cfg.Telemetry.Enabled && cfg.Telemetry.ParquetPath != "" {
		handler, err := telemetry.NewParquetHandler(log.Handler(), cfg.Telemetry.ParquetPath, cfg.Telemetry.FlushEvery)
		if err != nil {
			return nil, err
		}
		log = slog.New(handler)
		a.closers = append(a.closers, handler)
	}
	slog.SetDefault(log)
	a.logger = log

	alerter := alert.New(cfg.Alert, log)
	var summarizer hierarchy.Summarizer = hierarchy.ListSummarizer{MaxItems: cfg.Hierarchy.SummaryMaxItems}
	if cfg.Hierarchy.LLMSummaries {
		chat, err := nlp.New(cfg.NLP, cfg.CircuitBreaker, alerter, log)
		if err != nil {
			return nil, err
		}
		if chat != nil {
			a.closers = append(a.closers, chat)
			summarizer = nlp.NewLLMSummarizer(chat, nlp.SummarizerOptions{Fallback: summarizer, Logger: log})
		}
	}

	storage, err := openStorage(cfg.Memory, log)
	if err != nil {
		return nil, err
	}
	mem := memory.New(storage, log)
	a.closers = append(a.closers, mem)

	adapter, err := ontoreason.LoadOntology(cfg.Ontology.Path)
	if err != nil {
		return nil, err
	}
	clientCfg, err := ontoreason.ConfigFromSettings(cfg)
	if err != nil {
		return nil, err
	}

	a.metrics = metrics.New()
	a.client, err = ontoreason.NewClient(adapter, clientCfg, ontoreason.Options{
		Memory:     mem,
		Summarizer: summarizer,
		Metrics:    a.metrics,
		Logger:     log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return a, nil
}

func openStorage(cfg config.MemoryConfig, log *slog.Logger) (memory.Storage, error) {
	switch cfg.Backend {
	case "", "memory":
		return memory.NewInMemoryStorage(), nil
	case "badger":
		return memory.OpenBadger(memory.BadgerOptions{Dir: cfg.Dir, Logger: log})
	default:
		return nil, fmt.Errorf("unsupported memory backend: %s", cfg.Backend)
	}
}

// rebuild builds the derived graph state, logging a short report.
func (a *app) rebuild(ctx context.Context) (*ontoreason.RebuildReport, error) {
	report, err := a.client.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild graph: %w", err)
	}
	return report, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
