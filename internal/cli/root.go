package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "analyzer",
	Short: "League draft analytics engine",
	Long: "Ingest ranked matches into per-patch champion, matchup and synergy aggregates,\n" +
		"and recommend champions for a draft from player comfort, team synergy,\n" +
		"lane matchups and the current meta.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedChampionsCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(reduceCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(cleanupPlayersCmd)
	rootCmd.AddCommand(resetAggregatesCmd)
	rootCmd.AddCommand(statusCmd)
}

// withApp builds the app for one command run and closes it afterwards.
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath, logLevel)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a, args)
	}
}
