package cmd

import (
	"opencanvas-service/config"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd is the base command called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "opencanvas",
	Short: "OpenCanvas content service",
	Long:  "HTTP API, engagement ranking and score maintenance for OpenCanvas posts.",
	// Errors are already printed by cobra; usage only helps for flag errors.
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}
