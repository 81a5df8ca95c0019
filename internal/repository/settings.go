package repository

import (
	"context"

	"squad-planner/internal/config"
	"squad-planner/internal/constants"
	"squad-planner/internal/domain"

	"github.com/rs/zerolog"
)

type thresholdsDoc struct {
	Rules []domain.ThresholdRule `json:"rules"`
}

type atlantisDoc struct {
	Options map[string]float64 `json:"options"`
}

// SettingsRepository holds admin-managed settings in the settings collection.
type SettingsRepository struct {
	store  *DocumentStore
	logger zerolog.Logger
}

func NewSettingsRepository(store *DocumentStore, logger zerolog.Logger) *SettingsRepository {
	return &SettingsRepository{store: store, logger: logger}
}

// Thresholds returns the stored rules in their saved order. The bool is false
// when nothing has been saved yet.
func (r *SettingsRepository) Thresholds(ctx context.Context) ([]domain.ThresholdRule, bool, error) {
	var doc thresholdsDoc
	ok, err := r.store.Get(ctx, constants.CollectionSettings, constants.ThresholdsKey, &doc)
	if err != nil || !ok {
		return nil, ok, err
	}
	return doc.Rules, true, nil
}

func (r *SettingsRepository) SaveThresholds(ctx context.Context, rules []domain.ThresholdRule) error {
	if rules == nil {
		rules = []domain.ThresholdRule{}
	}
	return r.store.Set(ctx, constants.CollectionSettings, constants.ThresholdsKey, thresholdsDoc{Rules: rules}, false)
}

func (r *SettingsRepository) Atlantis(ctx context.Context) (map[string]float64, bool, error) {
	var doc atlantisDoc
	ok, err := r.store.Get(ctx, constants.CollectionSettings, constants.AtlantisKey, &doc)
	if err != nil || !ok {
		return nil, ok, err
	}
	if doc.Options == nil {
		doc.Options = map[string]float64{}
	}
	return doc.Options, true, nil
}

func (r *SettingsRepository) SaveAtlantis(ctx context.Context, options map[string]float64) error {
	if options == nil {
		options = map[string]float64{}
	}
	return r.store.Set(ctx, constants.CollectionSettings, constants.AtlantisKey, atlantisDoc{Options: options}, false)
}

func formationSettingsKey(role domain.Role, slot domain.Slot) string {
	return "formation_" + config.FormationKey(role, slot)
}

func (r *SettingsRepository) Formation(ctx context.Context, role domain.Role, slot domain.Slot) (domain.FormationSettings, bool, error) {
	var settings domain.FormationSettings
	ok, err := r.store.Get(ctx, constants.CollectionSettings, formationSettingsKey(role, slot), &settings)
	return settings, ok, err
}

func (r *SettingsRepository) SaveFormation(ctx context.Context, role domain.Role, slot domain.Slot, settings domain.FormationSettings) error {
	return r.store.Set(ctx, constants.CollectionSettings, formationSettingsKey(role, slot), settings, false)
}
