package model

import (
	"fmt"
	"time"
)

// Bucket labels shared by the aggregator, the merger and the store.
const (
	RoleAll         = "ALL"
	RankAll         = "ALL"
	RankHigh        = "DIAMOND_PLUS"
	PatchUnknown    = "unknown"
	SynergyTypeTeam = "TEAM"
)

// Match is one completed game as stored by the analyzer.
type Match struct {
	MatchID      string        `json:"matchId"`
	GameMode     string        `json:"gameMode"`
	GameType     string        `json:"gameType"`
	GameStart    time.Time     `json:"gameStart"`
	GameDuration int           `json:"gameDuration"` // seconds
	GameVersion  string        `json:"gameVersion"`
	QueueID      int           `json:"queueId"`
	PlatformID   string        `json:"platformId"`
	Participants []Participant `json:"participants"`
}

// Participant is a single player's line in a match.
type Participant struct {
	MatchID            string `json:"matchId"`
	ParticipantID      int    `json:"participantId"`
	PUUID              string `json:"puuid"`
	GameName           string `json:"gameName,omitempty"`
	TagLine            string `json:"tagLine,omitempty"`
	TeamID             int    `json:"teamId"`
	ChampionID         int    `json:"championId"`
	ChampionName       string `json:"championName"`
	IndividualPosition string `json:"individualPosition"`
	TeamPosition       string `json:"teamPosition"`
	Win                bool   `json:"win"`

	Kills       int `json:"kills"`
	Deaths      int `json:"deaths"`
	Assists     int `json:"assists"`
	CS          int `json:"cs"`
	GoldEarned  int `json:"goldEarned"`
	DamageDealt int `json:"damageDealt"`
	DamageTaken int `json:"damageTaken"`
	VisionScore int `json:"visionScore"`
	WardsPlaced int `json:"wardsPlaced"`
	WardsKilled int `json:"wardsKilled"`
	ChampLevel  int `json:"champLevel"`

	Items []int `json:"items,omitempty"`
}

// Champion is a catalog entry.
type Champion struct {
	ChampionID int      `json:"championId"`
	Key        string   `json:"key"`
	Name       string   `json:"name"`
	Title      string   `json:"title,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Player is a tracked account.
type Player struct {
	PUUID        string    `json:"puuid"`
	GameName     string    `json:"gameName"`
	TagLine      string    `json:"tagLine"`
	Region       string    `json:"region"`
	LastUpdated  time.Time `json:"lastUpdated"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// PlayerChampion is a player's history on one champion.
type PlayerChampion struct {
	PUUID         string    `json:"puuid"`
	ChampionID    int       `json:"championId"`
	GamesPlayed   int       `json:"gamesPlayed"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	WinRate       float64   `json:"winRate"`
	AvgKills      float64   `json:"avgKills"`
	AvgDeaths     float64   `json:"avgDeaths"`
	AvgAssists    float64   `json:"avgAssists"`
	AvgCS         float64   `json:"avgCs"`
	MasteryLevel  int       `json:"masteryLevel"`
	MasteryPoints int       `json:"masteryPoints"`
	LastPlayed    time.Time `json:"lastPlayed"`
}

// EntityKey identifies one champion aggregate bucket.
type EntityKey struct {
	ChampionID int    `json:"championId"`
	Patch      string `json:"patch"`
	RankBucket string `json:"rankBucket"`
	Role       string `json:"role"`
}

func (k EntityKey) String() string {
	return fmt.Sprintf("entity:%d:%s:%s:%s", k.ChampionID, k.Patch, k.RankBucket, k.Role)
}

// MatchupKey identifies a lane matchup. Champion1ID is always the lower ID.
type MatchupKey struct {
	Champion1ID int    `json:"champion1Id"`
	Champion2ID int    `json:"champion2Id"`
	Patch       string `json:"patch"`
	RankBucket  string `json:"rankBucket"`
	Role        string `json:"role"`
}

func (k MatchupKey) String() string {
	return fmt.Sprintf("matchup:%d:%d:%s:%s:%s", k.Champion1ID, k.Champion2ID, k.Patch, k.RankBucket, k.Role)
}

// SynergyKey identifies a same-team pairing. Champion1ID is always the lower ID.
type SynergyKey struct {
	Champion1ID int    `json:"champion1Id"`
	Champion2ID int    `json:"champion2Id"`
	Patch       string `json:"patch"`
	RankBucket  string `json:"rankBucket"`
}

func (k SynergyKey) String() string {
	return fmt.Sprintf("synergy:%d:%d:%s:%s", k.Champion1ID, k.Champion2ID, k.Patch, k.RankBucket)
}

// EntityAggregate is the running total for one champion bucket.
type EntityAggregate struct {
	EntityKey
	Games       int       `json:"games"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	WinRate     float64   `json:"winRate"`
	AvgKills    float64   `json:"avgKills"`
	AvgDeaths   float64   `json:"avgDeaths"`
	AvgAssists  float64   `json:"avgAssists"`
	AvgCS       float64   `json:"avgCs"`
	AvgGold     float64   `json:"avgGold"`
	AvgDamage   float64   `json:"avgDamage"`
	AvgVision   float64   `json:"avgVision"`
	Tier        int       `json:"tier"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// MatchupAggregate is the running head-to-head record for two champions in a role.
type MatchupAggregate struct {
	MatchupKey
	Games            int       `json:"games"`
	Champion1Wins    int       `json:"champion1Wins"`
	Champion2Wins    int       `json:"champion2Wins"`
	Champion1WinRate float64   `json:"champion1WinRate"`
	Champion2WinRate float64   `json:"champion2WinRate"`
	Score            float64   `json:"score"`
	LastUpdated      time.Time `json:"lastUpdated"`
}

// SynergyAggregate is the running record for two champions on the same team.
type SynergyAggregate struct {
	SynergyKey
	Games       int       `json:"games"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	WinRate     float64   `json:"winRate"`
	Score       float64   `json:"score"`
	SynergyType string    `json:"synergyType"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Overview summarises what the store holds.
type Overview struct {
	Matches           int `json:"matches"`
	Participants      int `json:"participants"`
	Players           int `json:"players"`
	Champions         int `json:"champions"`
	EntityAggregates  int `json:"entityAggregates"`
	MatchupAggregates int `json:"matchupAggregates"`
	SynergyAggregates int `json:"synergyAggregates"`
	MatchesLast24h    int `json:"matchesLast24h"`
}
