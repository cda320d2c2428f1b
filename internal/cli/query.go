package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"draft-analyzer/internal/db"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/recommend"
)

var (
	recTeam      []string
	recOpponents []string
	recRole      string
	recLimit     int

	aggPatch string
	aggRank  string
	aggRole  string
	aggLimit int
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <puuid>",
	Short: "Rank champions for a player's next pick",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		ctx := cmd.Context()
		scorer, err := a.scorer(ctx)
		if err != nil {
			return err
		}
		results, err := scorer.Recommend(ctx, recommend.Request{
			PUUID:     args[0],
			Team:      recTeam,
			Opponents: recOpponents,
			Role:      recRole,
			Limit:     recLimit,
		})
		if err != nil {
			return err
		}
		PrintRecommendations(cmd.OutOrStdout(), results)
		return nil
	}),
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate [championID]",
	Short: "Show entity aggregates",
	Long: "With a champion ID and --patch, shows that exact aggregate (rank and role default to ALL).\n" +
		"With a champion ID alone, shows its most recent aggregate for --role.\n" +
		"Without a champion ID, lists the most played aggregates matching the filters.",
	Args: cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		ctx := cmd.Context()
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}

		role := strings.ToUpper(aggRole)
		rank := strings.ToUpper(aggRank)
		if len(args) == 0 {
			aggs, err := store.ListEntityAggregates(ctx, db.AggregateFilter{
				Patch: aggPatch, RankBucket: rank, Role: role, Limit: aggLimit,
			})
			if err != nil {
				return err
			}
			PrintAggregates(cmd.OutOrStdout(), aggs)
			return nil
		}

		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid champion ID %q", args[0])
		}
		if role == "" {
			role = model.RoleAll
		}
		var agg *model.EntityAggregate
		if aggPatch == "" {
			agg, err = store.LatestEntityAggregate(ctx, id, role)
		} else {
			if rank == "" {
				rank = model.RankAll
			}
			agg, err = store.GetEntityAggregate(ctx, model.EntityKey{ChampionID: id, Patch: aggPatch, RankBucket: rank, Role: role})
		}
		if errors.Is(err, db.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "no aggregate for that key")
			return nil
		}
		if err != nil {
			return err
		}
		PrintAggregates(cmd.OutOrStdout(), []model.EntityAggregate{*agg})
		return nil
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the database holds and whether the API key works",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
		ctx := cmd.Context()
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		o, err := store.Overview(ctx)
		if err != nil {
			return err
		}
		PrintOverview(cmd.OutOrStdout(), o)

		key := "not set"
		if rc, err := a.riotClient(); err == nil {
			switch valid, err := rc.ValidateKey(ctx); {
			case err != nil:
				key = "unknown (" + err.Error() + ")"
			case valid:
				key = "valid"
			default:
				key = "rejected"
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Riot API key: %s\n", key)
		return nil
	}),
}

func init() {
	recommendCmd.Flags().StringSliceVar(&recTeam, "team", nil, "allied champion names")
	recommendCmd.Flags().StringSliceVar(&recOpponents, "opponents", nil, "enemy champion names")
	recommendCmd.Flags().StringVar(&recRole, "role", "", "preferred role (TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY)")
	recommendCmd.Flags().IntVar(&recLimit, "limit", recommend.DefaultLimit, "number of results")

	aggregateCmd.Flags().StringVar(&aggPatch, "patch", "", "patch bucket, e.g. 14.3")
	aggregateCmd.Flags().StringVar(&aggRank, "rank", "", "rank bucket (ALL or DIAMOND_PLUS)")
	aggregateCmd.Flags().StringVar(&aggRole, "role", "", "role (default ALL)")
	aggregateCmd.Flags().IntVar(&aggLimit, "limit", 20, "rows when listing")
}
