package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"draft-analyzer/internal/api"
	"draft-analyzer/internal/collector"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: "Serves status, match ingestion, player collection, aggregates, recommendations and\n" +
		"cache invalidation over HTTP. Without a Riot API key the ingestion routes answer 503.",
	Args: cobra.NoArgs,
	RunE: withApp(runServe),
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) context.Context {
	return collector.SetupSignalHandler(logger, func(context.Context) {
		logger.Info("stopping")
	})
}

func runServe(_ *cobra.Command, a *app, _ []string) error {
	ctx := signalContext(a.logger)

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	scorer, err := a.scorer(ctx)
	if err != nil {
		return err
	}
	deps := api.Deps{
		Store:     store,
		Recommend: scorer,
		Cache:     a.uggClient(),
	}

	if a.cfg.Riot.APIKey == "" {
		a.logger.Warn("no Riot API key, match and player ingestion disabled")
	} else {
		svc, _, err := a.fetchingIngest(ctx)
		if err != nil {
			return err
		}
		coll, err := a.collector(ctx)
		if err != nil {
			return err
		}
		deps.Matches = svc
		deps.Players = coll
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	return api.NewServer(addr, deps, a.logger).ListenAndServe(ctx)
}
