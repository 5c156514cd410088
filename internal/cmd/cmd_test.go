package cmd

import "testing"

func TestRootCommand(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd is nil")
	}

	if rootCmd.Use != "apportion" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "apportion")
	}

	// Check for expected subcommands (compare by Name(), not Use which includes args)
	expectedCmds := []string{"analyze", "plan", "run", "status"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestPlanStrategyFlag(t *testing.T) {
	flag := planCmd.Flags().Lookup("strategy")
	if flag == nil {
		t.Fatal("plan command missing --strategy flag")
	}
	if flag.DefValue != "resources" {
		t.Errorf("strategy default = %q, want %q", flag.DefValue, "resources")
	}
}

func TestRunWatchFlag(t *testing.T) {
	if runCmd.Flags().Lookup("watch") == nil {
		t.Error("run command missing --watch flag")
	}
}
