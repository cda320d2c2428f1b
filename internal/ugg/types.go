package ugg

// CounterData is one row of a champion's counter page: an opponent the
// champion does well against.
type CounterData struct {
	ChampionName string  `json:"championName"`
	WinRate      float64 `json:"winRate"`
	Games        int     `json:"games"`
}

// ChampionStats is one row of the role tier list. Tier is 0 when the
// page did not show one.
type ChampionStats struct {
	WinRate float64 `json:"winRate"`
	Tier    int     `json:"tier"`
}

// Dataset names, also used as cache namespaces.
const (
	datasetCounters = "counters"
	datasetSynergy  = "synergy"
	datasetTiers    = "tiers"
	datasetStats    = "stats"
)
