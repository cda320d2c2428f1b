package stats

import (
	"sort"

	"draft-analyzer/internal/model"
)

// Sums holds per-game totals that are later folded into averages.
type Sums struct {
	Kills   float64
	Deaths  float64
	Assists float64
	CS      float64
	Gold    float64
	Damage  float64
	Vision  float64
}

func (s *Sums) add(p *model.Participant) {
	s.Kills += float64(p.Kills)
	s.Deaths += float64(p.Deaths)
	s.Assists += float64(p.Assists)
	s.CS += float64(p.CS)
	s.Gold += float64(p.GoldEarned)
	s.Damage += float64(p.DamageDealt)
	s.Vision += float64(p.VisionScore)
}

// EntityDelta is one match's contribution to a champion bucket.
type EntityDelta struct {
	Key    model.EntityKey
	Games  int
	Wins   int
	Losses int
	Sums   Sums
}

// MatchupDelta is one match's contribution to a lane matchup.
type MatchupDelta struct {
	Key           model.MatchupKey
	Games         int
	Champion1Wins int
	Champion2Wins int
}

// SynergyDelta is one match's contribution to a same-team pairing.
type SynergyDelta struct {
	Key    model.SynergyKey
	Games  int
	Wins   int
	Losses int
}

// Deltas is everything one match contributes to the aggregates.
type Deltas struct {
	MatchID    string
	Patch      string
	RankBucket string
	Entities   []EntityDelta
	Matchups   []MatchupDelta
	Synergies  []SynergyDelta
}

// Empty reports whether the match contributed nothing.
func (d *Deltas) Empty() bool {
	return len(d.Entities) == 0 && len(d.Matchups) == 0 && len(d.Synergies) == 0
}

// Aggregate derives the deltas for one match. Participants whose
// champion is not known are dropped before any pairing happens. The
// result is ordered by key so equal input gives equal output.
func Aggregate(m *model.Match, known func(championID int) bool) *Deltas {
	d := &Deltas{
		MatchID:    m.MatchID,
		Patch:      PatchBucket(m.GameVersion),
		RankBucket: RankBucket(m.QueueID),
	}

	resolved := make([]*model.Participant, 0, len(m.Participants))
	for i := range m.Participants {
		p := &m.Participants[i]
		if known != nil && !known(p.ChampionID) {
			continue
		}
		resolved = append(resolved, p)
	}

	d.Entities = entityDeltas(resolved, d.Patch, d.RankBucket)
	d.Matchups = matchupDeltas(resolved, d.Patch, d.RankBucket)
	d.Synergies = synergyDeltas(resolved, d.Patch, d.RankBucket)
	return d
}

func entityDeltas(ps []*model.Participant, patch, rank string) []EntityDelta {
	byKey := make(map[model.EntityKey]*EntityDelta)
	add := func(key model.EntityKey, p *model.Participant) {
		ed, ok := byKey[key]
		if !ok {
			ed = &EntityDelta{Key: key}
			byKey[key] = ed
		}
		ed.Games++
		if p.Win {
			ed.Wins++
		} else {
			ed.Losses++
		}
		ed.Sums.add(p)
	}

	for _, p := range ps {
		base := model.EntityKey{ChampionID: p.ChampionID, Patch: patch, RankBucket: rank, Role: model.RoleAll}
		add(base, p)
		if role := RoleOf(p); role != "" && role != model.RoleAll {
			base.Role = role
			add(base, p)
		}
	}

	out := make([]EntityDelta, 0, len(byKey))
	for _, ed := range byKey {
		out = append(out, *ed)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.ChampionID != b.ChampionID {
			return a.ChampionID < b.ChampionID
		}
		return a.Role < b.Role
	})
	return out
}

// ordered returns the pair with the lower champion ID first.
func ordered(a, b *model.Participant) (*model.Participant, *model.Participant) {
	if b.ChampionID < a.ChampionID {
		return b, a
	}
	return a, b
}

func matchupDeltas(ps []*model.Participant, patch, rank string) []MatchupDelta {
	byKey := make(map[model.MatchupKey]*MatchupDelta)

	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			a, b := ps[i], ps[j]
			if a.TeamID == b.TeamID || a.ChampionID == b.ChampionID {
				continue
			}
			role := RoleOf(a)
			if role == "" || role != RoleOf(b) {
				continue
			}

			first, second := ordered(a, b)
			key := model.MatchupKey{
				Champion1ID: first.ChampionID,
				Champion2ID: second.ChampionID,
				Patch:       patch,
				RankBucket:  rank,
				Role:        role,
			}
			md, ok := byKey[key]
			if !ok {
				md = &MatchupDelta{Key: key}
				byKey[key] = md
			}
			md.Games++
			if first.Win {
				md.Champion1Wins++
			} else if second.Win {
				md.Champion2Wins++
			}
		}
	}

	out := make([]MatchupDelta, 0, len(byKey))
	for _, md := range byKey {
		out = append(out, *md)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		if a.Champion1ID != b.Champion1ID {
			return a.Champion1ID < b.Champion1ID
		}
		return a.Champion2ID < b.Champion2ID
	})
	return out
}

func synergyDeltas(ps []*model.Participant, patch, rank string) []SynergyDelta {
	byKey := make(map[model.SynergyKey]*SynergyDelta)

	for i := 0; i < len(ps); i++ {
		for j := i + 1; j < len(ps); j++ {
			a, b := ps[i], ps[j]
			if a.TeamID != b.TeamID || a.ChampionID == b.ChampionID {
				continue
			}

			first, second := ordered(a, b)
			key := model.SynergyKey{
				Champion1ID: first.ChampionID,
				Champion2ID: second.ChampionID,
				Patch:       patch,
				RankBucket:  rank,
			}
			sd, ok := byKey[key]
			if !ok {
				sd = &SynergyDelta{Key: key}
				byKey[key] = sd
			}
			sd.Games++
			if first.Win {
				sd.Wins++
			} else {
				sd.Losses++
			}
		}
	}

	out := make([]SynergyDelta, 0, len(byKey))
	for _, sd := range byKey {
		out = append(out, *sd)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Champion1ID != b.Champion1ID {
			return a.Champion1ID < b.Champion1ID
		}
		return a.Champion2ID < b.Champion2ID
	})
	return out
}
