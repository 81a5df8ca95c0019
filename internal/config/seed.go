package config

import (
	"errors"
	"fmt"
	"os"

	"squad-planner/internal/domain"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Seed carries the vocabulary and the initial settings written to an empty
// store. Stored settings always win over the seed once they exist.
type Seed struct {
	DesiredKeys  []string                            `yaml:"desired_keys"`
	RolePrefixes map[domain.Role]string              `yaml:"role_prefixes"`
	Thresholds   []domain.ThresholdRule              `yaml:"thresholds"`
	Atlantis     map[string]float64                  `yaml:"atlantis"`
	Formations   map[string]domain.FormationSettings `yaml:"formations"`
}

func DefaultSeed() *Seed {
	return &Seed{
		DesiredKeys: []string{
			"Troop Attack",
			"Troop Health",
			"Troop Defense",
			"Troop Damage",
			"Troop Damage Received",
			"Troop Attack Blessing",
			"Troop Protection Blessing",
			"Archer Attack",
			"Archer Health",
			"Archer Defense",
			"Archer Damage",
			"Archer Damage Received",
			"Archer Attack Blessing",
			"Archer Protection Blessing",
			"Cavalry Attack",
			"Cavalry Health",
			"Cavalry Defense",
			"Cavalry Damage",
			"Cavalry Damage Received",
			"Cavalry Attack Blessing",
			"Cavalry Protection Blessing",
			"Lethal Hit Rate",
		},
		RolePrefixes: map[domain.Role]string{
			domain.RoleArcher:  "Archer",
			domain.RoleCavalry: "Cavalry",
			domain.RoleSiege:   "Siege",
		},
		Thresholds: []domain.ThresholdRule{
			{Limit: 60, Color: "#805637", Name: "Brown"},
			{Limit: 80, Color: "#802480", Name: "Purple"},
			{Limit: 100, Color: "#4545f5", Name: "Blue"},
			{Limit: 120, Color: "#69f5f5", Name: "Cyan"},
			{Limit: 140, Color: "#357a35", Name: "Green"},
			{Limit: 160, Color: "#fcfc60", Name: "Yellow"},
			{Limit: 180, Color: "#fabf52", Name: "Orange"},
			{Limit: 200, Color: "#ff3d3d", Name: "Red"},
		},
		Atlantis:   map[string]float64{"None": 0},
		Formations: map[string]domain.FormationSettings{},
	}
}

// FormationKey names the settings document of one (role, slot) pair.
func FormationKey(role domain.Role, slot domain.Slot) string {
	return string(role) + "_" + string(slot)
}

// LoadSeed reads cfg.SeedPath and overlays it on DefaultSeed. A missing file
// is not an error.
func LoadSeed(cfg *Config, logger zerolog.Logger) (*Seed, error) {
	seed := DefaultSeed()
	if cfg.SeedPath == "" {
		return seed, nil
	}

	b, err := os.ReadFile(cfg.SeedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug().Str("path", cfg.SeedPath).Msg("seed file not found, using built-in defaults")
			return seed, nil
		}
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var file Seed
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", cfg.SeedPath, err)
	}

	merged := mergeSeed(seed, &file)
	logger.Info().
		Str("path", cfg.SeedPath).
		Int("desired_keys", len(merged.DesiredKeys)).
		Int("thresholds", len(merged.Thresholds)).
		Int("formations", len(merged.Formations)).
		Msg("seed loaded")
	return merged, nil
}

// mergeSeed overrides a with every non-empty section of b. Lists replace,
// maps merge key by key.
func mergeSeed(a, b *Seed) *Seed {
	out := *a
	if len(b.DesiredKeys) > 0 {
		out.DesiredKeys = append([]string(nil), b.DesiredKeys...)
	}
	if len(b.Thresholds) > 0 {
		out.Thresholds = append([]domain.ThresholdRule(nil), b.Thresholds...)
	}

	out.RolePrefixes = make(map[domain.Role]string, len(a.RolePrefixes))
	for k, v := range a.RolePrefixes {
		out.RolePrefixes[k] = v
	}
	for k, v := range b.RolePrefixes {
		out.RolePrefixes[k] = v
	}

	out.Atlantis = make(map[string]float64, len(a.Atlantis))
	for k, v := range a.Atlantis {
		out.Atlantis[k] = v
	}
	for k, v := range b.Atlantis {
		out.Atlantis[k] = v
	}

	out.Formations = make(map[string]domain.FormationSettings, len(a.Formations))
	for k, v := range a.Formations {
		out.Formations[k] = v
	}
	for k, v := range b.Formations {
		out.Formations[k] = v
	}
	return &out
}
