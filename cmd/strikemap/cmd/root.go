package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strikemap-systems/strikemap/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "strikemap",
	Short: "StrikeMap attack intelligence backend",
	Long: `strikemap ingests live attack reports from threat-intelligence
feeds, normalizes them into anonymized attack events, and broadcasts
them to connected globe clients over WebSocket.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
}
