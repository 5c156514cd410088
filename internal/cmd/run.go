package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fairlead/apportion/internal/config"
	"github.com/fairlead/apportion/internal/errors"
	"github.com/fairlead/apportion/internal/intake"
	"github.com/fairlead/apportion/internal/scheduler"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run [plan file]",
	Short: "Allocate a work plan onto its workers",
	Long: `Read a work plan, register its workers, and allocate every item.
Items that no worker can take are queued and reported.

With --watch the scheduler keeps running and re-allocates whenever the
plan file changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Bool("watch", false, "reload and re-allocate when the plan file changes")
	_ = viper.BindPFlag("intake.watch", runCmd.Flags().Lookup("watch"))
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
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
	sched.Start()
	defer sched.Close()

	if err := allocatePlan(sched, plan); err != nil {
		return err
	}

	if !cfg.Intake.Watch {
		return nil
	}

	watcher, err := intake.NewWatcher(path, cfg.Intake.Debounce(), logger, func(p *intake.Plan) {
		fmt.Println()
		printTitle("Plan changed, re-allocating")
		if err := allocatePlan(sched, p); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Println(labelStyle.Render("watching for plan changes, ctrl-c to stop"))
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	return nil
}

// allocatePlan registers the plan's workers and submits every item.
func allocatePlan(sched *scheduler.Scheduler, plan *intake.Plan) error {
	for _, spec := range plan.Workers {
		if err := sched.RegisterWorker(spec.Profile()); err != nil {
			return err
		}
	}
	if len(sched.Workers()) == 0 {
		return fmt.Errorf("plan has no workers to allocate onto")
	}

	// Dependency-ordered submission keeps prerequisites ahead of their
	// dependents when the graph is acyclic.
	items := plan.Items
	if tiers, err := sched.PlanByDependencies(plan.Items); err == nil {
		items = nil
		for _, s := range tiers {
			items = append(items, s.Items...)
		}
	}

	shards := sched.Plan(plan.Items)
	printTitle(fmt.Sprintf("Allocating %d items across %d shards", len(plan.Items), len(shards)))

	for _, item := range items {
		result, err := sched.Submit(item)
		if err != nil {
			if errors.Is(err, errors.ErrNoAvailableWorker) {
				fmt.Printf("  %s %s\n", warnStyle.Render("queued"), item.ID)
				continue
			}
			return err
		}
		fmt.Printf("  %s -> %s  confidence %.2f  eta %s\n",
			valueStyle.Render(result.TaskID), headerStyle.Render(result.WorkerID),
			result.Confidence, result.EstimatedCompletion)
		if len(result.Alternatives) > 0 {
			fmt.Printf("    %s %v\n", labelStyle.Render("alternatives:"), result.Alternatives)
		}
	}

	if queued := sched.Queued(); len(queued) > 0 {
		fmt.Println()
		printHeader(fmt.Sprintf("%d tasks queued for capacity", len(queued)))
		for _, id := range queued {
			fmt.Printf("  - %s\n", id)
		}
	}
	return nil
}
