package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const app = "poolctl"

var rootCmd = &cobra.Command{
	Use:   app,
	Short: "poolctl manages the interview question pool",
	Long: "poolctl talks to the same store and AI provider as the interview server. " +
		"It reads the server's environment (or .env) for configuration.",
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}
