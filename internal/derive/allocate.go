package derive

import (
	"fmt"
	"math"
	"strings"

	"squad-planner/internal/domain"
)

type TierInput struct {
	Group     string
	AvgDamage float64
	Count     int
}

type AllocationInput struct {
	Tiers  []TierInput
	Ratios []domain.SubTypeRatio
	Budget float64
}

// Allocate splits a troop budget across tiers in proportion to each tier's
// average damage, weighted by how many formations of the tier are fielded,
// then breaks each tier's troops into sub-type counts in thousands.
// Tiers with no proven damage receive nothing.
func Allocate(in AllocationInput) []domain.FormationRow {
	var denominator float64
	for _, t := range in.Tiers {
		if positive(t.AvgDamage) {
			denominator += t.AvgDamage * float64(max(t.Count, 0))
		}
	}

	rows := make([]domain.FormationRow, 0, len(in.Tiers))
	for _, t := range in.Tiers {
		count := max(t.Count, 0)
		damage := t.AvgDamage
		if !positive(damage) {
			damage = 0
		}

		var share float64
		if denominator > 0 && damage > 0 {
			share = damage / denominator
		}
		troops := Round(finite(in.Budget)*share, 2)

		row := domain.FormationRow{
			Group:    t.Group,
			Damage:   damage,
			Count:    count,
			Troops:   troops,
			SubTypes: make([]domain.SubTypeCount, 0, len(in.Ratios)),
		}
		for _, r := range in.Ratios {
			n := RoundToHalf(troops * finite(r.Percent) / 100 / 1000)
			row.SubTypes = append(row.SubTypes, domain.SubTypeCount{Name: r.Name, Count: n})
			row.MarchSize += n
		}
		row.Total = Round(troops*float64(count), 2)
		rows = append(rows, row)
	}
	return rows
}

// RoundToHalf rounds to the nearest 0.5.
func RoundToHalf(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return math.Round(x*2) / 2
}

// MarchText renders a row as the one-line summary players paste into chat,
// e.g. "Red - 12.5k - 10k - 8k - 8k - 4k".
func MarchText(row domain.FormationRow) string {
	parts := []string{row.Group}
	for _, st := range row.SubTypes {
		parts = append(parts, fmt.Sprintf("%gk", st.Count))
	}
	return strings.Join(parts, " - ")
}

func positive(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
