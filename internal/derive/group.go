package derive

import (
	"encoding/json"

	"squad-planner/internal/domain"
)

// ViewAverage is the combined archer/cavalry tiering view.
const ViewAverage = "average"

type PlayerScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type TierBucket struct {
	Tier     domain.Tier   `json:"tier"`
	AvgScore float64       `json:"avg_score"`
	Members  []PlayerScore `json:"members"`
}

// TierBuckets maps tier colors to their buckets and remembers display order:
// descending rule limit with the default bucket last.
type TierBuckets struct {
	order   []string
	buckets map[string]*TierBucket
}

func newTierBuckets() TierBuckets {
	return TierBuckets{buckets: make(map[string]*TierBucket)}
}

func (b *TierBuckets) seed(tier domain.Tier) *TierBucket {
	if existing, ok := b.buckets[tier.Color]; ok {
		return existing
	}
	bucket := &TierBucket{Tier: tier, Members: []PlayerScore{}}
	b.buckets[tier.Color] = bucket
	b.order = append(b.order, tier.Color)
	return bucket
}

// Group classifies every player and computes per-tier averages. One bucket is
// seeded per rule plus the default bucket, so empty tiers are always present
// with an average of 0.
func Group(players []PlayerScore, rules []domain.ThresholdRule) TierBuckets {
	out := newTierBuckets()
	for _, r := range SortRules(rules) {
		out.seed(tierFromRule(r))
	}
	out.seed(domain.DefaultTier)

	for _, p := range players {
		tier := TierOf(p.Score, rules)
		bucket := out.seed(tier)
		bucket.Members = append(bucket.Members, p)
	}

	for _, bucket := range out.buckets {
		bucket.AvgScore = average(bucket.Members)
	}
	return out
}

func average(members []PlayerScore) float64 {
	if len(members) == 0 {
		return 0
	}
	var total float64
	for _, m := range members {
		total += m.Score
	}
	return Round(total/float64(len(members)), 2)
}

func (b TierBuckets) Bucket(color string) (TierBucket, bool) {
	bucket, ok := b.buckets[color]
	if !ok {
		return TierBucket{}, false
	}
	return *bucket, true
}

func (b TierBuckets) Len() int {
	return len(b.order)
}

// Ordered returns the buckets in tier rank order.
func (b TierBuckets) Ordered() []TierBucket {
	out := make([]TierBucket, 0, len(b.order))
	for _, color := range b.order {
		out = append(out, *b.buckets[color])
	}
	return out
}

func (b TierBuckets) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Ordered())
}

func (b *TierBuckets) UnmarshalJSON(data []byte) error {
	var ordered []TierBucket
	if err := json.Unmarshal(data, &ordered); err != nil {
		return err
	}
	*b = newTierBuckets()
	for i := range ordered {
		bucket := b.seed(ordered[i].Tier)
		bucket.AvgScore = ordered[i].AvgScore
		bucket.Members = append(bucket.Members, ordered[i].Members...)
	}
	return nil
}

// RoleBuckets holds one TierBuckets per role plus the averaged view.
type RoleBuckets map[string]TierBuckets

// Recompute rebuilds every tier view from a full snapshot of players. The
// siege view is only produced when at least one player has siege damage.
func Recompute(players []domain.Player, rules []domain.ThresholdRule) RoleBuckets {
	out := RoleBuckets{}
	for _, role := range []domain.Role{domain.RoleArcher, domain.RoleCavalry} {
		out[string(role)] = Group(scoresFor(players, role), rules)
	}

	for _, p := range players {
		if p.Final(domain.RoleSiege) > 0 {
			out[string(domain.RoleSiege)] = Group(scoresFor(players, domain.RoleSiege), rules)
			break
		}
	}

	blended := make([]PlayerScore, 0, len(players))
	for _, p := range players {
		blended = append(blended, PlayerScore{
			Name:  p.Name,
			Score: (p.Final(domain.RoleArcher) + p.Final(domain.RoleCavalry)) / 2,
		})
	}
	out[ViewAverage] = Group(blended, rules)
	return out
}

func scoresFor(players []domain.Player, role domain.Role) []PlayerScore {
	out := make([]PlayerScore, 0, len(players))
	for _, p := range players {
		out = append(out, PlayerScore{Name: p.Name, Score: p.Final(role)})
	}
	return out
}
