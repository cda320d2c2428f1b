package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"draft-analyzer/internal/ingest"
	"draft-analyzer/internal/model"
	"draft-analyzer/internal/recommend"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

func pct(v float64) string { return fmt.Sprintf("%.1f%%", v) }

func score(v float64) string { return fmt.Sprintf("%.2f", v) }

// PrintRecommendations writes one row per candidate, best first.
func PrintRecommendations(w io.Writer, results []recommend.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No recommendations. Is the player collected and the champion catalog seeded?")
		return
	}
	table := newTable(w)
	table.Header("#", "CHAMPION", "SCORE", "COMFORT", "SYNERGY", "MATCHUP", "META", "REASON")
	for i, r := range results {
		table.Append(
			strconv.Itoa(i+1),
			r.ChampionName,
			score(r.Score),
			score(r.Comfort),
			score(r.Synergy),
			score(r.Matchup),
			score(r.Meta),
			r.Reason,
		)
	}
	table.Render()
}

// PrintAggregates writes entity aggregates as a table.
func PrintAggregates(w io.Writer, aggs []model.EntityAggregate) {
	table := newTable(w)
	table.Header("CHAMPION", "PATCH", "RANK", "ROLE", "GAMES", "WIN%", "K", "D", "A", "CS", "GOLD", "DMG", "VISION", "TIER")
	for _, a := range aggs {
		table.Append(
			strconv.Itoa(a.ChampionID),
			a.Patch,
			a.RankBucket,
			a.Role,
			strconv.Itoa(a.Games),
			pct(a.WinRate),
			fmt.Sprintf("%.1f", a.AvgKills),
			fmt.Sprintf("%.1f", a.AvgDeaths),
			fmt.Sprintf("%.1f", a.AvgAssists),
			fmt.Sprintf("%.0f", a.AvgCS),
			fmt.Sprintf("%.0f", a.AvgGold),
			fmt.Sprintf("%.0f", a.AvgDamage),
			fmt.Sprintf("%.1f", a.AvgVision),
			strconv.Itoa(a.Tier),
		)
	}
	table.Render()
}

// PrintOverview writes the store counts.
func PrintOverview(w io.Writer, o *model.Overview) {
	table := newTable(w)
	table.Header("WHAT", "COUNT")
	rows := []struct {
		name string
		n    int
	}{
		{"matches", o.Matches},
		{"matches (24h)", o.MatchesLast24h},
		{"participants", o.Participants},
		{"players", o.Players},
		{"champions", o.Champions},
		{"entity aggregates", o.EntityAggregates},
		{"matchup aggregates", o.MatchupAggregates},
		{"synergy aggregates", o.SynergyAggregates},
	}
	for _, r := range rows {
		table.Append(r.name, strconv.Itoa(r.n))
	}
	table.Render()
}

// PrintReport summarises a batch and lists its failures.
func PrintReport(w io.Writer, what string, r *ingest.BatchReport) {
	fmt.Fprintf(w, "%s: %d processed, %d skipped, %d failed\n", what, r.Processed, r.Skipped, len(r.Failures))
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s\n", f.Error())
	}
}
