package cmd

import (
	"fmt"

	"github.com/fairlead/apportion/internal/config"
	"github.com/fairlead/apportion/internal/intake"
	"github.com/fairlead/apportion/internal/scheduler"
	"github.com/fairlead/apportion/internal/workload"
	"github.com/spf13/cobra"
)

var planStrategy string

var planCmd = &cobra.Command{
	Use:   "plan [plan file]",
	Short: "Partition a work plan into shards",
	Long: `Read a work plan and divide its items into execution shards.

The partitioning strategy is selectable:
  size          balance shard sizes across the worker count
  complexity    cap each shard's complexity budget
  dependencies  group items into dependency tiers
  resources     bound the worker count by host capacity (default)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planStrategy, "strategy", "s", "resources",
		"partition strategy: size, complexity, dependencies, resources")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	path := cfg.Intake.PlanFile
	if len(args) == 1 {
		path = args[0]
	}
	plan, err := intake.LoadPlan(path)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer logger.Close()

	sched := scheduler.New(cfg, logger)
	defer sched.Close()

	var shards []workload.WorkShard
	switch planStrategy {
	case "size", "resources":
		if planStrategy == "size" && cfg.Scheduler.Workers == 0 {
			return fmt.Errorf("size strategy needs scheduler.workers set")
		}
		shards = sched.Plan(plan.Items)
	case "complexity":
		shards = sched.PlanByComplexity(plan.Items)
	case "dependencies":
		shards, err = sched.PlanByDependencies(plan.Items)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown strategy %q", planStrategy)
	}

	printTitle(fmt.Sprintf("Shard plan (%s, %d shards)", planStrategy, len(shards)))

	var maxSize float64
	for _, s := range shards {
		if s.TotalSize > maxSize {
			maxSize = s.TotalSize
		}
	}
	if maxSize == 0 {
		maxSize = 1
	}
	width := termWidth() / 3

	for _, s := range shards {
		printHeader(fmt.Sprintf("%s (worker %d)", s.ID, s.WorkerIndex))
		printField("Items", fmt.Sprintf("%d", s.Len()))
		printField("Size", fmt.Sprintf("%.1f  %s", s.TotalSize, bar(s.TotalSize/maxSize, width)))
		printField("Complexity", fmt.Sprintf("%.1f", s.TotalComplexity))
		printField("Duration", s.EstimatedDuration.String())
		for _, item := range s.Items {
			fmt.Printf("    - %s\n", item.ID)
		}
		fmt.Println()
	}

	return nil
}
