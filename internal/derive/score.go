package derive

import (
	"math"
	"strconv"
	"strings"

	"squad-planner/internal/domain"
)

const (
	// ScorePrecision is the number of decimals a damage score is rounded to.
	ScorePrecision = 1

	attackExponent   = 0.95
	blessingExponent = 0.9
	scoreDivisor     = 10000

	TroopPrefix = "Troop"
	LethalKey   = "Lethal Hit Rate"
)

// RoleFields names the seven attributes read for one stat group.
type RoleFields struct {
	Attack             string
	Health             string
	Defense            string
	Damage             string
	DamageReceived     string
	AttackBlessing     string
	ProtectionBlessing string
}

func FieldsFor(prefix string) RoleFields {
	return RoleFields{
		Attack:             prefix + " Attack",
		Health:             prefix + " Health",
		Defense:            prefix + " Defense",
		Damage:             prefix + " Damage",
		DamageReceived:     prefix + " Damage Received",
		AttackBlessing:     prefix + " Attack Blessing",
		ProtectionBlessing: prefix + " Protection Blessing",
	}
}

type ScoreBreakdown struct {
	AtkSum      float64 `json:"atk_sum"`
	VarAtkSum   float64 `json:"var_atk_sum"`
	DmgSum      float64 `json:"dmg_sum"`
	VarDmgSum   float64 `json:"var_dmg_sum"`
	BlessSum    float64 `json:"bless_sum"`
	VarBlessSum float64 `json:"var_bless_sum"`
	Bonus       float64 `json:"bonus"`
	Lethal      float64 `json:"lethal"`
	Part1       float64 `json:"part1"`
	Part2       float64 `json:"part2"`
	Part3       float64 `json:"part3"`
	Part4       float64 `json:"part4"`
	Score       float64 `json:"score"`
}

// Calculator turns raw attributes into damage scores. The zero value is not
// usable; build one with NewCalculator.
type Calculator struct {
	troop  RoleFields
	roles  map[domain.Role]RoleFields
	lethal string
}

// NewCalculator builds a calculator from role → field prefix pairs, e.g.
// archer → "Archer". Roles without a prefix use their capitalized name.
func NewCalculator(prefixes map[domain.Role]string) *Calculator {
	c := &Calculator{
		troop:  FieldsFor(TroopPrefix),
		roles:  make(map[domain.Role]RoleFields, len(domain.Roles)),
		lethal: LethalKey,
	}
	for _, role := range domain.Roles {
		prefix := prefixes[role]
		if prefix == "" {
			prefix = role.Label()
		}
		c.roles[role] = FieldsFor(prefix)
	}
	return c
}

var defaultCalculator = NewCalculator(nil)

func DefaultCalculator() *Calculator {
	return defaultCalculator
}

func (c *Calculator) fields(role domain.Role) RoleFields {
	if f, ok := c.roles[role]; ok {
		return f
	}
	return FieldsFor(role.Label())
}

// Covers reports whether attrs carry any value of the role's own fields.
// Optional roles without their own stats are not scored.
func (c *Calculator) Covers(attrs map[string]string, role domain.Role) bool {
	f := c.fields(role)
	for _, key := range []string{f.Attack, f.Health, f.Defense, f.Damage, f.DamageReceived, f.AttackBlessing, f.ProtectionBlessing} {
		if v, ok := attrs[key]; ok && v != "" && v != domain.MissingValue {
			return true
		}
	}
	return false
}

// Breakdown evaluates the damage formula without rounding.
func (c *Calculator) Breakdown(attrs map[string]string, role domain.Role, bonus string) ScoreBreakdown {
	get := func(key string) float64 { return Number(attrs[key]) }
	t := c.troop
	v := c.fields(role)

	var b ScoreBreakdown
	b.AtkSum = get(t.Attack) + get(t.Health) + get(t.Defense)
	b.VarAtkSum = get(v.Attack) + get(v.Health) + get(v.Defense)
	b.DmgSum = get(t.Damage) + get(t.DamageReceived)
	b.VarDmgSum = get(v.Damage) + get(v.DamageReceived)
	b.BlessSum = get(t.AttackBlessing) + get(t.ProtectionBlessing)
	b.VarBlessSum = get(v.AttackBlessing) + get(v.ProtectionBlessing)
	b.Bonus = Number(bonus)
	b.Lethal = get(c.lethal)

	b.Part1 = pow(b.VarAtkSum+b.AtkSum, attackExponent)
	b.Part2 = pow(b.BlessSum+b.VarBlessSum, blessingExponent)
	b.Part3 = (b.DmgSum + b.VarDmgSum + b.Bonus) / 100
	b.Part4 = b.Part1 * b.Part2 * (1 + b.Part3)
	b.Score = (b.Part4 * (1 + b.Lethal/100)) / scoreDivisor
	return b
}

// Score returns the role damage score rounded to ScorePrecision.
func (c *Calculator) Score(attrs map[string]string, role domain.Role, bonus string) float64 {
	return Round(c.Breakdown(attrs, role, bonus).Score, ScorePrecision)
}

// FinalDamage is the persisted "Final <Role> Damage": the role score scaled
// by the player's multiplier.
func (c *Calculator) FinalDamage(attrs map[string]string, role domain.Role, bonus, multiplier string) float64 {
	return Round(c.Score(attrs, role, bonus)*Number(multiplier), ScorePrecision)
}

func Score(attrs map[string]string, role domain.Role, bonus string) float64 {
	return defaultCalculator.Score(attrs, role, bonus)
}

// Number coerces noisy OCR text to a float. Every character other than a
// digit or a decimal point is dropped and the longest parseable prefix is
// used; anything unparseable is 0.
func Number(s string) float64 {
	var b strings.Builder
	dot := false
scan:
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.':
			if dot {
				break scan
			}
			dot = true
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(b.String(), "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Round rounds half away from zero to the given number of decimals.
// Non-finite input yields 0.
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	p := math.Pow10(places)
	return math.Round(x*p) / p
}

func pow(base, exp float64) float64 {
	if base <= 0 {
		return 0
	}
	return math.Pow(base, exp)
}
