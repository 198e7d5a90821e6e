package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/soundprediction/ontoreason/pkg/config"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the knowledge graph and report its derived state",
	Long: `Build the knowledge graph from the configured ontology, train embeddings,
detect communities and build the community dendrogram. With --summaries,
every dendrogram cluster is summarized as well.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().Bool("summaries", false, "summarize every dendrogram cluster")
	buildCmd.Flags().Bool("llm-summaries", false, "summarize clusters with the configured chat model")
}

func runBuild(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("llm-summaries") {
		cfg.Hierarchy.LLMSummaries, _ = cmd.Flags().GetBool("llm-summaries")
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	report, err := a.rebuild(ctx)
	if err != nil {
		return err
	}

	out := map[string]any{"report": report, "stats": a.client.Stats()}
	if summarize, _ := cmd.Flags().GetBool("summaries"); summarize {
		summaries, err := a.client.SummarizeHierarchy(ctx)
		if err != nil {
			return fmt.Errorf("failed to summarize hierarchy: %w", err)
		}
		out["summaries"] = orderedSummaries(summaries)
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

type clusterSummary struct {
	Cluster int    `json:"cluster"`
	Summary string `json:"summary"`
}

func orderedSummaries(summaries map[int]string) []clusterSummary {
	out := make([]clusterSummary, 0, len(summaries))
	for id, s := range summaries {
		out = append(out, clusterSummary{Cluster: id, Summary: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cluster < out[j].Cluster })
	return out
}

// loadConfig loads configuration and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("ontology") {
		cfg.Ontology.Path, _ = flags.GetString("ontology")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
