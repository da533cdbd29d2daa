package audit

import (
	"math"

	"github.com/jonathan/claim-detective/internal/types"
)

// Transparency scoring constants. The score is a reporting metric only.
const (
	transparencyBase          = 0.5
	eventCountTier1           = 5
	eventCountTier2           = 15
	eventCountBonus           = 0.1
	categoryBonus             = 0.05
	maxCategoryBonus          = 0.15
	humanInterventionBonus    = 0.1
	richDetailFieldsThreshold = 3.0
	richDetailBonus           = 0.1
)

// TransparencyReport explains how a transparency score was assembled.
type TransparencyReport struct {
	Score             float64  `json:"score"`
	EventCount        int      `json:"event_count"`
	Categories        []string `json:"categories"`
	HumanIntervention bool     `json:"human_intervention"`
	AvgDetailFields   float64  `json:"avg_detail_fields"`
}

// Transparency scores how well a trail documents the decisions behind a claim.
func Transparency(events []types.AuditEvent) TransparencyReport {
	report := TransparencyReport{EventCount: len(events), Categories: []string{}}
	score := transparencyBase

	if len(events) >= eventCountTier1 {
		score += eventCountBonus
	}
	if len(events) >= eventCountTier2 {
		score += eventCountBonus
	}

	seen := make(map[string]bool)
	fields := 0
	for _, ev := range events {
		cat := types.EventCategory(ev.Type)
		if !seen[cat] {
			seen[cat] = true
			report.Categories = append(report.Categories, cat)
		}
		if types.IsHumanIntervention(ev.Type) {
			report.HumanIntervention = true
		}
		fields += len(ev.Data)
	}

	if n := len(report.Categories); n > 1 {
		score += math.Min(float64(n-1)*categoryBonus, maxCategoryBonus)
	}
	if report.HumanIntervention {
		score += humanInterventionBonus
	}
	if len(events) > 0 {
		report.AvgDetailFields = float64(fields) / float64(len(events))
		if report.AvgDetailFields >= richDetailFieldsThreshold {
			score += richDetailBonus
		}
	}

	report.Score = math.Min(math.Round(score*1000)/1000, 1.0)
	return report
}
