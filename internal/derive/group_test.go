package derive

import (
	"encoding/json"
	"testing"

	"squad-planner/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroup(t *testing.T) {
	players := []PlayerScore{
		{Name: "alpha", Score: 2100},
		{Name: "bravo", Score: 1500},
		{Name: "charlie", Score: 1450.5},
		{Name: "delta", Score: 100},
	}
	buckets := Group(players, ladder)

	ordered := buckets.Ordered()
	require.Len(t, ordered, 5)
	assert.Equal(t, []string{"Red", "Green", "Blue", "Bronze", "Default"}, []string{
		ordered[0].Tier.Name, ordered[1].Tier.Name, ordered[2].Tier.Name, ordered[3].Tier.Name, ordered[4].Tier.Name,
	})

	green, ok := buckets.Bucket("#357a35")
	require.True(t, ok)
	assert.Equal(t, []PlayerScore{{"bravo", 1500}, {"charlie", 1450.5}}, green.Members)
	assert.Equal(t, 1475.25, green.AvgScore)

	blue, ok := buckets.Bucket("#4545f5")
	require.True(t, ok)
	assert.Empty(t, blue.Members)
	assert.Equal(t, 0.0, blue.AvgScore)

	def, ok := buckets.Bucket(domain.DefaultTierColor)
	require.True(t, ok)
	assert.Equal(t, []PlayerScore{{"delta", 100}}, def.Members)
}

func TestGroupAverageRounding(t *testing.T) {
	players := []PlayerScore{{"a", 700}, {"b", 700.01}, {"c", 700.01}}
	bucket, _ := Group(players, ladder).Bucket("#805637")
	assert.Equal(t, 700.01, bucket.AvgScore)
}

func TestGroupEmpty(t *testing.T) {
	buckets := Group(nil, nil)
	require.Equal(t, 1, buckets.Len())
	bucket := buckets.Ordered()[0]
	assert.True(t, bucket.Tier.Default)
	assert.Equal(t, 0.0, bucket.AvgScore)
}

func TestTierBucketsJSONRoundTrip(t *testing.T) {
	buckets := Group([]PlayerScore{{"a", 2000}, {"b", 10}}, ladder)
	data, err := json.Marshal(buckets)
	require.NoError(t, err)

	var decoded TierBuckets
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, buckets.Ordered(), decoded.Ordered())
}

func TestRecompute(t *testing.T) {
	players := []domain.Player{
		{Name: "alpha", FinalDamage: map[domain.Role]float64{domain.RoleArcher: 2200, domain.RoleCavalry: 1800}},
		{Name: "bravo", FinalDamage: map[domain.Role]float64{domain.RoleArcher: 500, domain.RoleCavalry: 1100}},
		{Name: "charlie"},
	}
	views := Recompute(players, ladder)

	assert.Contains(t, views, "archer")
	assert.Contains(t, views, "cavalry")
	assert.Contains(t, views, ViewAverage)
	assert.NotContains(t, views, "siege")

	archerRed, _ := views["archer"].Bucket("#ff3d3d")
	assert.Equal(t, []PlayerScore{{"alpha", 2200}}, archerRed.Members)

	avgRed, _ := views[ViewAverage].Bucket("#ff3d3d")
	assert.Equal(t, []PlayerScore{{"alpha", 2000}}, avgRed.Members)

	avgBronze, _ := views[ViewAverage].Bucket("#805637")
	assert.Equal(t, []PlayerScore{{"bravo", 800}}, avgBronze.Members)

	avgDefault, _ := views[ViewAverage].Bucket(domain.DefaultTierColor)
	assert.Equal(t, []PlayerScore{{"charlie", 0}}, avgDefault.Members)
}

func TestRecomputeWithSiege(t *testing.T) {
	players := []domain.Player{
		{Name: "alpha", FinalDamage: map[domain.Role]float64{domain.RoleSiege: 700}},
	}
	views := Recompute(players, ladder)
	require.Contains(t, views, "siege")
	bronze, _ := views["siege"].Bucket("#805637")
	assert.Equal(t, 700.0, bronze.AvgScore)
}
