package riot

import (
	"time"

	"draft-analyzer/internal/model"
)

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation       int64              `json:"gameCreation"`
	GameStartTimestamp int64              `json:"gameStartTimestamp"`
	GameDuration       int                `json:"gameDuration"`
	GameMode           string             `json:"gameMode"`
	GameType           string             `json:"gameType"`
	GameVersion        string             `json:"gameVersion"`
	QueueID            int                `json:"queueId"`
	PlatformID         string             `json:"platformId"`
	Participants       []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	ParticipantID      int    `json:"participantId"`
	PUUID              string `json:"puuid"`
	RiotIdGameName     string `json:"riotIdGameName"`
	RiotIdTagline      string `json:"riotIdTagline"`
	TeamID             int    `json:"teamId"`
	ChampionID         int    `json:"championId"`
	ChampionName       string `json:"championName"`
	ChampLevel         int    `json:"champLevel"`
	IndividualPosition string `json:"individualPosition"`
	TeamPosition       string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	Win                bool   `json:"win"`

	Kills                       int `json:"kills"`
	Deaths                      int `json:"deaths"`
	Assists                     int `json:"assists"`
	TotalMinionsKilled          int `json:"totalMinionsKilled"`
	NeutralMinionsKilled        int `json:"neutralMinionsKilled"`
	GoldEarned                  int `json:"goldEarned"`
	TotalDamageDealtToChampions int `json:"totalDamageDealtToChampions"`
	TotalDamageTaken            int `json:"totalDamageTaken"`
	VisionScore                 int `json:"visionScore"`
	WardsPlaced                 int `json:"wardsPlaced"`
	WardsKilled                 int `json:"wardsKilled"`

	Item0 int `json:"item0"`
	Item1 int `json:"item1"`
	Item2 int `json:"item2"`
	Item3 int `json:"item3"`
	Item4 int `json:"item4"`
	Item5 int `json:"item5"`
	Item6 int `json:"item6"` // Trinket
}

// MasteryResponse is one entry from /lol/champion-mastery/v4/champion-masteries/by-puuid
type MasteryResponse struct {
	PUUID          string `json:"puuid"`
	ChampionID     int    `json:"championId"`
	ChampionLevel  int    `json:"championLevel"`
	ChampionPoints int    `json:"championPoints"`
	LastPlayTime   int64  `json:"lastPlayTime"`
}

// ToMatch converts the v5 DTO into the analyzer's match model.
func (r *MatchResponse) ToMatch() *model.Match {
	start := r.Info.GameStartTimestamp
	if start == 0 {
		start = r.Info.GameCreation
	}

	m := &model.Match{
		MatchID:      r.Metadata.MatchID,
		GameMode:     r.Info.GameMode,
		GameType:     r.Info.GameType,
		GameDuration: r.Info.GameDuration,
		GameVersion:  r.Info.GameVersion,
		QueueID:      r.Info.QueueID,
		PlatformID:   r.Info.PlatformID,
	}
	if start > 0 {
		m.GameStart = time.UnixMilli(start).UTC()
	}

	m.Participants = make([]model.Participant, 0, len(r.Info.Participants))
	for _, p := range r.Info.Participants {
		m.Participants = append(m.Participants, model.Participant{
			MatchID:            m.MatchID,
			ParticipantID:      p.ParticipantID,
			PUUID:              p.PUUID,
			GameName:           p.RiotIdGameName,
			TagLine:            p.RiotIdTagline,
			TeamID:             p.TeamID,
			ChampionID:         p.ChampionID,
			ChampionName:       p.ChampionName,
			IndividualPosition: p.IndividualPosition,
			TeamPosition:       p.TeamPosition,
			Win:                p.Win,
			Kills:              p.Kills,
			Deaths:             p.Deaths,
			Assists:            p.Assists,
			CS:                 p.TotalMinionsKilled + p.NeutralMinionsKilled,
			GoldEarned:         p.GoldEarned,
			DamageDealt:        p.TotalDamageDealtToChampions,
			DamageTaken:        p.TotalDamageTaken,
			VisionScore:        p.VisionScore,
			WardsPlaced:        p.WardsPlaced,
			WardsKilled:        p.WardsKilled,
			ChampLevel:         p.ChampLevel,
			Items:              nonEmptyItems(p.Item0, p.Item1, p.Item2, p.Item3, p.Item4, p.Item5, p.Item6),
		})
	}
	return m
}

// nonEmptyItems drops empty slots (item ID 0).
func nonEmptyItems(ids ...int) []int {
	var out []int
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	return out
}
