package cmd

import (
	"strings"

	"github.com/fairlead/apportion/internal/config"
	"github.com/fairlead/apportion/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "apportion",
	Short: "Adaptive parallel-work scheduler",
	Long: `Apportion estimates the cost of heterogeneous work items, partitions
them into execution shards, matches them to capacity-bounded workers,
and rebalances outstanding work as runtime feedback arrives.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/apportion/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/apportion")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APPORTION")
	// Replace dots with underscores for nested keys in env vars
	// e.g., APPORTION_SCHEDULER_STRATEGY for scheduler.strategy
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger builds the logger described by the configuration.
func newLogger(cfg *config.Config) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}
	logger, err := logging.NewLogger(cfg.Paths.LogDir, cfg.Logging.Level)
	if err != nil {
		return logging.NopLogger()
	}
	return logger
}
