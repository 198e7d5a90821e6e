package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/ontoreason/pkg/config"
	"github.com/soundprediction/ontoreason/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the ontoreason HTTP server",
	Long: `Start the ontoreason HTTP server. The graph is built once at startup;
POST /api/v1/rebuild recomputes it.

The server provides endpoints for:
- Natural-language queries
- Inserting and querying facts
- Reasoning dispatch and agent beliefs
- Health checks and Prometheus metrics

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	serverCmd.Flags().String("memory-backend", "memory", "Agent memory backend (memory, badger)")
	serverCmd.Flags().String("memory-dir", "", "Badger directory for agent memory")

	serverCmd.Flags().String("nlp-provider", "", "Chat model provider for cluster summaries (openai)")
	serverCmd.Flags().String("nlp-model", "", "Chat model")
	serverCmd.Flags().String("nlp-api-key", "", "Chat model API key")
	serverCmd.Flags().String("nlp-base-url", "", "Chat model base URL for OpenAI-compatible services")

	serverCmd.Flags().String("telemetry-parquet-path", "", "Directory for error telemetry Parquet files")
	checkpointFlags(serverCmd)
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	overrideConfigWithFlags(cmd, cfg)
	applyCheckpointFlags(cmd, cfg)
	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	useCheckpoint, _ := cmd.Flags().GetBool("checkpoint")
	if useCheckpoint {
		if err := a.restoreLatest(cmd.Context()); err != nil {
			return err
		}
	}
	if _, err := a.rebuild(cmd.Context()); err != nil {
		return err
	}

	srv := server.New(cfg, a.client, a.metrics, a.logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Start()
	}()

	select {
	case err := <-serverErrChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		a.logger.Info("Received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		if useCheckpoint {
			if err := a.saveCheckpoint(shutdownCtx); err != nil {
				return err
			}
		}
		a.logger.Info("Server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = serverHost
	}
	if flags.Changed("port") {
		cfg.Server.Port = serverPort
	}
	if flags.Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	if flags.Changed("memory-backend") {
		cfg.Memory.Backend, _ = flags.GetString("memory-backend")
	}
	if flags.Changed("memory-dir") {
		cfg.Memory.Dir, _ = flags.GetString("memory-dir")
	}

	if flags.Changed("nlp-provider") {
		cfg.NLP.Provider, _ = flags.GetString("nlp-provider")
		cfg.Hierarchy.LLMSummaries = cfg.NLP.Provider != ""
	}
	if flags.Changed("nlp-model") {
		cfg.NLP.Model, _ = flags.GetString("nlp-model")
	}
	if flags.Changed("nlp-api-key") {
		cfg.NLP.APIKey, _ = flags.GetString("nlp-api-key")
	}
	if flags.Changed("nlp-base-url") {
		cfg.NLP.BaseURL, _ = flags.GetString("nlp-base-url")
	}

	if flags.Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = flags.GetString("telemetry-parquet-path")
		cfg.Telemetry.Enabled = cfg.Telemetry.ParquetPath != ""
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Memory.Backend == "badger" && cfg.Memory.Dir == "" {
		return fmt.Errorf("memory directory is required for the badger backend")
	}
	return nil
}
