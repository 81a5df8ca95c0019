package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleArcher  Role = "archer"
	RoleCavalry Role = "cavalry"
	RoleSiege   Role = "siege"
)

// Roles lists every role in display order.
var Roles = []Role{RoleArcher, RoleCavalry, RoleSiege}

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleArcher:
		return RoleArcher, true
	case RoleCavalry:
		return RoleCavalry, true
	case RoleSiege:
		return RoleSiege, true
	}
	return "", false
}

// Label is the capitalized role name used in field names ("Archer").
func (r Role) Label() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

func (r Role) AtlantisField() string {
	return r.Label() + " Atlantis"
}

func (r Role) FinalDamageField() string {
	return "Final " + r.Label() + " Damage"
}

const (
	MultiplierField    = "Multiplier"
	AverageDamageField = "Average Damage"
	MissingValue       = "NA"
)

type Player struct {
	Name          string            `json:"-"`
	Attributes    map[string]string `json:"attributes"`
	Multiplier    string            `json:"multiplier"`
	Atlantis      map[Role]string   `json:"atlantis"`
	FinalDamage   map[Role]float64  `json:"final_damage"`
	AverageDamage float64           `json:"average_damage"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// SetField applies a single user edit. Multiplier and "<Role> Atlantis"
// are recognised; everything else is stored as a raw attribute.
func (p *Player) SetField(field, value string) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]string)
	}
	if p.Atlantis == nil {
		p.Atlantis = make(map[Role]string)
	}
	if field == MultiplierField {
		p.Multiplier = value
		return
	}
	for _, role := range Roles {
		if field == role.AtlantisField() {
			p.Atlantis[role] = value
			return
		}
	}
	p.Attributes[field] = value
}

func (p *Player) Final(role Role) float64 {
	if p.FinalDamage == nil {
		return 0
	}
	return p.FinalDamage[role]
}

type ThresholdRule struct {
	Limit float64 `json:"limit" yaml:"limit"`
	Color string  `json:"color" yaml:"color"`
	Name  string  `json:"name" yaml:"name"`
}

type Tier struct {
	Color   string  `json:"color"`
	Name    string  `json:"name"`
	Limit   float64 `json:"limit"`
	Default bool    `json:"default"`
}

const (
	DefaultTierColor = "default"
	DefaultTierName  = "Default"
)

var DefaultTier = Tier{Color: DefaultTierColor, Name: DefaultTierName, Default: true}

type AtlantisOption struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type Slot string

const (
	SlotTower  Slot = "tower"
	SlotThrone Slot = "throne"
)

// Slots lists every formation slot.
var Slots = []Slot{SlotTower, SlotThrone}

func ParseSlot(s string) (Slot, bool) {
	switch Slot(strings.ToLower(strings.TrimSpace(s))) {
	case SlotTower:
		return SlotTower, true
	case SlotThrone:
		return SlotThrone, true
	}
	return "", false
}

type SubTypeRatio struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// FormationSettings is the admin-entered troop budget for one (role, slot).
// Tier percentages are whole numbers (25 means 25%).
type FormationSettings struct {
	Total   float64 `json:"total" yaml:"total"`
	Guards  float64 `json:"guards" yaml:"guards"`
	Archers float64 `json:"archers" yaml:"archers"`
	Cavalry float64 `json:"cavalry" yaml:"cavalry"`
	Siege   float64 `json:"siege" yaml:"siege"`
	T10     float64 `json:"t10" yaml:"t10"`
	T9      float64 `json:"t9" yaml:"t9"`
	T8      float64 `json:"t8" yaml:"t8"`
	T7      float64 `json:"t7" yaml:"t7"`
	T6      float64 `json:"t6" yaml:"t6"`
}

func (s FormationSettings) Budget(role Role) float64 {
	switch role {
	case RoleArcher:
		return s.Archers
	case RoleCavalry:
		return s.Cavalry
	case RoleSiege:
		return s.Siege
	}
	return 0
}

func (s FormationSettings) Ratios() []SubTypeRatio {
	return []SubTypeRatio{
		{Name: "T10", Percent: s.T10},
		{Name: "T9", Percent: s.T9},
		{Name: "T8", Percent: s.T8},
		{Name: "T7", Percent: s.T7},
		{Name: "T6", Percent: s.T6},
	}
}

type SubTypeCount struct {
	Name  string  `json:"name"`
	Count float64 `json:"count"`
}

type FormationRow struct {
	Group     string         `json:"group"`
	Damage    float64        `json:"damage"`
	Count     int            `json:"count"`
	Troops    float64        `json:"troops"`
	SubTypes  []SubTypeCount `json:"sub_types"`
	MarchSize float64        `json:"march_size"`
	Total     float64        `json:"total"`
}
