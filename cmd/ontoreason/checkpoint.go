package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/ontoreason/pkg/checkpoint"
	"github.com/soundprediction/ontoreason/pkg/config"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and clean fact and case checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored checkpoints, oldest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyCheckpointFlags(cmd, cfg)
		m, err := checkpoint.NewManager(cfg.Checkpoint.Dir)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		ids, err := m.List(ctx)
		if err != nil {
			return err
		}
		rows := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			s, err := m.Load(ctx, id)
			if err != nil || s == nil {
				continue
			}
			rows = append(rows, map[string]any{
				"id":            s.ID,
				"created_at":    s.CreatedAt,
				"graph_version": s.GraphVersion,
				"facts":         len(s.Facts),
				"cases":         len(s.Cases),
			})
		}
		return writeJSON(cmd.OutOrStdout(), rows)
	},
}

var checkpointCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove checkpoints older than --max-age",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyCheckpointFlags(cmd, cfg)
		m, err := checkpoint.NewManager(cfg.Checkpoint.Dir)
		if err != nil {
			return err
		}
		maxAge, _ := cmd.Flags().GetDuration("max-age")
		removed, err := m.CleanOld(cmd.Context(), maxAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d checkpoint(s)\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointListCmd, checkpointCleanCmd)
	checkpointCmd.PersistentFlags().String("checkpoint-dir", "", "checkpoint directory")
	checkpointCleanCmd.Flags().Duration("max-age", 7*24*time.Hour, "age beyond which checkpoints are removed")
}

// checkpointFlags registers the flags of commands that restore and save
// checkpoints around their work.
func checkpointFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("checkpoint", false, "restore the latest checkpoint first and save a new one when done")
	cmd.Flags().String("checkpoint-dir", "", "checkpoint directory")
}

func applyCheckpointFlags(cmd *cobra.Command, cfg *config.Config) {
	if dir, _ := cmd.Flags().GetString("checkpoint-dir"); dir != "" {
		cfg.Checkpoint.Dir = dir
	}
}

// restoreLatest loads the newest checkpoint into the client, if any.
func (a *app) restoreLatest(ctx context.Context) error {
	m, err := checkpoint.NewManager(a.cfg.Checkpoint.Dir)
	if err != nil {
		return err
	}
	s, err := m.Latest(ctx)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if s == nil {
		a.logger.InfoContext(ctx, "No checkpoint to restore", "dir", m.Dir())
		return nil
	}
	_, err = a.client.Restore(ctx, s)
	return err
}

// saveCheckpoint stores the client state and prunes old checkpoints.
func (a *app) saveCheckpoint(ctx context.Context) error {
	m, err := checkpoint.NewManager(a.cfg.Checkpoint.Dir)
	if err != nil {
		return err
	}
	if _, err := a.client.Checkpoint(ctx, m); err != nil {
		return err
	}
	if _, err := m.Prune(ctx, a.cfg.Checkpoint.Keep); err != nil {
		a.logger.WarnContext(ctx, "Failed to prune checkpoints", "error", err)
	}
	return nil
}
