package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectCount int

var ingestCmd = &cobra.Command{
	Use:   "ingest <matchID...>",
	Short: "Fetch, store and merge matches by ID",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		ctx := signalContext(a.logger)
		svc, _, err := a.fetchingIngest(ctx)
		if err != nil {
			return err
		}
		report := svc.ProcessMatches(ctx, args)
		PrintReport(cmd.OutOrStdout(), "matches", report)
		return report.Err()
	}),
}

var collectCmd = &cobra.Command{
	Use:   "collect <riotID|puuid...>",
	Short: "Collect players' recent matches and rebuild their champion stats",
	Long: "Each argument is a Riot ID (Name#TAG) or a PUUID. Players are collected independently;\n" +
		"one failing player does not stop the rest unless the API key is rejected.",
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		ctx := signalContext(a.logger)
		c, err := a.collector(ctx)
		if err != nil {
			return err
		}
		count := collectCount
		if count <= 0 {
			count = a.cfg.Ingest.MatchesPerPlayer
		}
		report := c.CollectPlayers(ctx, args, count)
		PrintReport(cmd.OutOrStdout(), fmt.Sprintf("players (%d matches each)", count), report)
		return report.Err()
	}),
}

func init() {
	collectCmd.Flags().IntVar(&collectCount, "count", 0, "matches per player (default from config)")
}
