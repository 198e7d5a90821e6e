package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soundprediction/ontoreason/pkg/bdi"
	"github.com/soundprediction/ontoreason/pkg/types"
)

var reasonCmd = &cobra.Command{
	Use:   "reason",
	Short: "Dispatch reasoning strategies for a decision point",
	Long: `Dispatch the reasoning strategies the rule table selects for a
(plan, task, action) decision point, optionally seeding facts first, and
print the dispatch report and the resulting facts.

Example:
  ontoreason reason --plan "Strategic Plan" --task "Market Analysis" \
    --action "Competitor Analysis" --fact "acme,rdf:type,Competitor"`,
	RunE: runReason,
}

func init() {
	rootCmd.AddCommand(reasonCmd)
	reasonCmd.Flags().String("plan", "", "plan name (required)")
	reasonCmd.Flags().String("goal", "", "goal name (defaults to the plan name)")
	reasonCmd.Flags().String("task", "", "task name")
	reasonCmd.Flags().String("action", "", "action name")
	reasonCmd.Flags().String("action-status", "", "action status (pending, in_progress, completed, failed)")
	reasonCmd.Flags().StringToString("param", nil, "action parameter key=value")
	reasonCmd.Flags().StringArray("fact", nil, "fact to insert first, as subject,predicate,object")
	checkpointFlags(reasonCmd)
	_ = reasonCmd.MarkFlagRequired("plan")
}

func runReason(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyCheckpointFlags(cmd, cfg)
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	flags := cmd.Flags()
	useCheckpoint, _ := flags.GetBool("checkpoint")
	if useCheckpoint {
		if err := a.restoreLatest(ctx); err != nil {
			return err
		}
	}

	facts, _ := flags.GetStringArray("fact")
	for _, raw := range facts {
		t, err := parseFact(raw)
		if err != nil {
			return err
		}
		if _, err := a.client.InsertFact(ctx, t.Subject, t.Predicate, t.Object); err != nil {
			return err
		}
	}

	planName, _ := flags.GetString("plan")
	goalName, _ := flags.GetString("goal")
	taskName, _ := flags.GetString("task")
	actionName, _ := flags.GetString("action")
	status, _ := flags.GetString("action-status")
	params, _ := flags.GetStringToString("param")

	if goalName == "" {
		goalName = planName
	}
	goal := bdi.NewGoal(goalName, "", bdi.DefaultGoalPriority)
	plan := bdi.NewPlan(planName, goal)
	var task *bdi.Task
	if taskName != "" {
		task = goal.CreateTask(taskName)
		plan.Tasks = append(plan.Tasks, task)
	}
	var action *bdi.Action
	if actionName != "" {
		action = bdi.NewAction(actionName, params)
		if status != "" {
			action.Status = bdi.Status(status)
		}
		if task != nil {
			if err := goal.AddAction(task, action); err != nil {
				return err
			}
		}
	}

	report, err := a.client.Reason(ctx, plan, task, action)
	if err != nil {
		return fmt.Errorf("reasoning failed: %w", err)
	}

	failed := make(map[string]string, len(report.Failed))
	for name, ferr := range report.Failed {
		failed[name] = ferr.Error()
	}
	if useCheckpoint {
		if err := a.saveCheckpoint(ctx); err != nil {
			return err
		}
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"selected": report.Selected,
		"ran":      report.Ran,
		"failed":   failed,
		"skipped":  report.Skipped,
		"facts":    a.client.Store().Facts(),
	})
}

// parseFact splits "subject,predicate,object".
func parseFact(raw string) (types.Triple, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) != 3 {
		return types.Triple{}, fmt.Errorf("invalid fact %q: want subject,predicate,object", raw)
	}
	return types.Triple{
		Subject:   strings.TrimSpace(parts[0]),
		Predicate: strings.TrimSpace(parts[1]),
		Object:    strings.TrimSpace(parts[2]),
	}, nil
}
