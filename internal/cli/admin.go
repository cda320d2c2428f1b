package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"draft-analyzer/internal/model"
	"draft-analyzer/internal/riot"
)

var (
	cleanupDays  int
	resetConfirm bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if _, err := a.openStore(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", a.cfg.Database.Driver)
		return nil
	}),
}

// ChampionSource loads the champion catalog.
type ChampionSource interface {
	GetChampions(ctx context.Context) ([]model.Champion, string, error)
}

// ChampionSink stores the champion catalog.
type ChampionSink interface {
	UpsertChampions(ctx context.Context, champions []model.Champion) error
}

// SeedChampions copies the current catalog into the store.
func SeedChampions(ctx context.Context, src ChampionSource, dst ChampionSink) (int, string, error) {
	champs, version, err := src.GetChampions(ctx)
	if err != nil {
		return 0, "", err
	}
	if len(champs) == 0 {
		return 0, version, errors.New("champion catalog is empty")
	}
	if err := dst.UpsertChampions(ctx, champs); err != nil {
		return 0, version, fmt.Errorf("failed to store champions: %w", err)
	}
	return len(champs), version, nil
}

var seedChampionsCmd = &cobra.Command{
	Use:   "seed-champions",
	Short: "Load the champion catalog from Data Dragon",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		ctx := cmd.Context()
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		n, version, err := SeedChampions(ctx, riot.NewDataDragonClient(riot.WithLogger(a.logger)), store)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d champions from patch %s\n", n, version)
		return nil
	}),
}

var cleanupPlayersCmd = &cobra.Command{
	Use:   "cleanup-players",
	Short: "Delete players not looked at recently, with their champion stats",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		ctx := cmd.Context()
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		age := a.cfg.Ingest.StalePlayerAge
		if cleanupDays > 0 {
			age = time.Duration(cleanupDays) * 24 * time.Hour
		}
		n, err := store.DeleteStalePlayers(ctx, time.Now().Add(-age))
		if err != nil {
			return err
		}
		a.logger.Info("stale players removed", "count", n, "older_than", age)
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d players not accessed in %s\n", n, age)
		return nil
	}),
}

var resetAggregatesCmd = &cobra.Command{
	Use:   "reset-aggregates",
	Short: "Delete every entity, matchup and synergy aggregate",
	Long:  "Stored matches and players are kept. Aggregates fill again as new matches are ingested.",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		if !resetConfirm {
			return errors.New("refusing to reset without --yes")
		}
		ctx := cmd.Context()
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if err := store.ResetAggregates(ctx); err != nil {
			return err
		}
		a.logger.Warn("aggregates reset")
		fmt.Fprintln(cmd.OutOrStdout(), "aggregates deleted")
		return nil
	}),
}

func init() {
	cleanupPlayersCmd.Flags().IntVar(&cleanupDays, "days", 0, "age threshold in days (default from config, 7)")
	resetAggregatesCmd.Flags().BoolVar(&resetConfirm, "yes", false, "confirm the reset")
}
