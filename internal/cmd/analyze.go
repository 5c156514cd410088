package cmd

import (
	"fmt"
	"strings"

	"github.com/fairlead/apportion/internal/config"
	"github.com/fairlead/apportion/internal/intake"
	"github.com/fairlead/apportion/internal/scheduler"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [plan file]",
	Short: "Analyze a work plan",
	Long: `Read a work plan and report item totals, the complexity distribution,
and the critical path through the dependency graph.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	analysis := sched.Analyze(plan.Items)

	name := plan.Name
	if name == "" {
		name = path
	}
	printTitle(fmt.Sprintf("Workload: %s", name))
	printField("Items", fmt.Sprintf("%d", analysis.TotalItems))
	printField("Total size", fmt.Sprintf("%.1f", analysis.TotalSize))
	printField("Total complexity", fmt.Sprintf("%.1f", analysis.TotalComplexity))
	printField("Estimated duration", analysis.TotalEstimatedDuration.String())
	fmt.Println()

	printHeader("Complexity distribution")
	h := analysis.Histogram
	total := analysis.TotalItems
	if total == 0 {
		total = 1
	}
	width := termWidth() / 3
	for _, row := range []struct {
		label string
		count int
	}{
		{"low", h.Low},
		{"medium", h.Medium},
		{"high", h.High},
		{"critical", h.Critical},
	} {
		fmt.Printf("  %-9s %s %d\n", row.label,
			bar(float64(row.count)/float64(total), width), row.count)
	}
	fmt.Println()

	if len(analysis.CriticalPath) > 0 {
		printHeader("Critical path")
		fmt.Printf("  %s\n", strings.Join(analysis.CriticalPath, " -> "))
		printField("Path duration", analysis.CriticalPathDuration.String())
	} else if analysis.TotalItems > 0 {
		fmt.Println(warnStyle.Render("  dependency cycle: no critical path"))
	}

	return nil
}
