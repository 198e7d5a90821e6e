package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Answer a natural-language query against the graph",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().Bool("json", false, "print the result as JSON")
	queryCmd.Flags().Int("top-k", 0, "maximum number of results (0 uses the configured value)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("top-k") {
		cfg.Retrieval.TopK, _ = cmd.Flags().GetInt("top-k")
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if _, err := a.rebuild(ctx); err != nil {
		return err
	}

	result, err := a.client.ProcessQuery(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	out := cmd.OutOrStdout()
	if len(result.Results) == 0 {
		fmt.Fprintln(out, "No matching nodes.")
		return nil
	}
	for i, r := range result.Results {
		fmt.Fprintf(out, "%2d. %-30s %.4f  %s\n", i+1, r.ID, r.Score, r.Source)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, result.Summary)
	return nil
}
