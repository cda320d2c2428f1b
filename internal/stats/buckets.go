package stats

import (
	"strings"

	"draft-analyzer/internal/model"
)

// Queue IDs whose matches count toward the high-rank bucket.
var highRankQueues = map[int]bool{
	420: true, // ranked solo/duo
	440: true, // ranked flex
}

// PatchBucket reduces a full game version ("14.3.567.8910") to its
// "major.minor" patch. Empty or malformed versions map to "unknown".
func PatchBucket(version string) string {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return model.PatchUnknown
	}
	return parts[0] + "." + parts[1]
}

// RankBucket maps a queue ID to its rank bucket. Unknown queues are "ALL".
func RankBucket(queueID int) string {
	if highRankQueues[queueID] {
		return model.RankHigh
	}
	return model.RankAll
}

// RoleOf returns the participant's lane, preferring the team-assigned
// position. An empty result means no usable role.
func RoleOf(p *model.Participant) string {
	role := strings.ToUpper(strings.TrimSpace(p.TeamPosition))
	if role == "" || role == "INVALID" {
		role = strings.ToUpper(strings.TrimSpace(p.IndividualPosition))
	}
	if role == "INVALID" {
		return ""
	}
	return role
}
