package derive

import (
	"sort"

	"squad-planner/internal/domain"
)

// SortRules returns a copy of rules ordered by limit, highest first. Rules
// with equal limits keep their input order.
func SortRules(rules []domain.ThresholdRule) []domain.ThresholdRule {
	out := append([]domain.ThresholdRule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Limit > out[j].Limit
	})
	return out
}

// TierOf returns the tier of the highest rule whose limit the score reaches,
// or domain.DefaultTier when the score is below every limit.
func TierOf(score float64, rules []domain.ThresholdRule) domain.Tier {
	for _, r := range SortRules(rules) {
		if score >= r.Limit {
			return tierFromRule(r)
		}
	}
	return domain.DefaultTier
}

func tierFromRule(r domain.ThresholdRule) domain.Tier {
	name := r.Name
	if name == "" {
		name = r.Color
	}
	return domain.Tier{Color: r.Color, Name: name, Limit: r.Limit}
}
