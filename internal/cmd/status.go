package cmd

import (
	"fmt"

	"github.com/fairlead/apportion/internal/config"
	"github.com/fairlead/apportion/internal/resource"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show host capacity and bottlenecks",
	Long:  `Sample the host and report capacity, the sustainable worker count, and any resource bottlenecks.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	defer logger.Close()

	monitor := resource.NewMonitor(resource.WithLogger(logger))
	snap := monitor.Refresh()

	width := termWidth() / 3

	printTitle("Host capacity")
	printField("CPU cores", fmt.Sprintf("%d", snap.CPU.Cores))
	if snap.CPU.SpeedMHz > 0 {
		printField("CPU speed", fmt.Sprintf("%.0f MHz", snap.CPU.SpeedMHz))
	}
	printField("CPU usage", fmt.Sprintf("%.0f%%  %s", snap.CPU.Usage*100, bar(snap.CPU.Usage, width)))
	memFraction := 0.0
	if snap.Memory.TotalMB > 0 {
		memFraction = snap.Memory.UsedMB / snap.Memory.TotalMB
	}
	printField("Memory", fmt.Sprintf("%.0f / %.0f MB  %s",
		snap.Memory.UsedMB, snap.Memory.TotalMB, bar(memFraction, width)))
	printField("Disk usage", fmt.Sprintf("%.0f%%  %s", snap.Disk.Usage*100, bar(snap.Disk.Usage, width)))
	if len(snap.Network.Interfaces) > 0 {
		printField("Interfaces", fmt.Sprintf("%v", snap.Network.Interfaces))
	}
	fmt.Println()

	printHeader("Scheduling advice")
	printField("Optimal workers", fmt.Sprintf("%d", monitor.OptimalWorkers()))

	bottlenecks := monitor.DetectBottlenecks()
	if len(bottlenecks) == 0 {
		printField("Bottlenecks", "none")
	} else {
		for _, b := range bottlenecks {
			fmt.Printf("  %s %s at %.0f%%: %s\n",
				severityRender(string(b.Severity)), b.Resource, b.Utilization*100, b.Impact)
		}
	}
	for _, s := range monitor.SuggestOptimizations() {
		fmt.Printf("  %s %s (%s)\n", labelStyle.Render("suggest:"), s.Action, s.Reason)
	}

	return nil
}
