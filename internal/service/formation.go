package service

import (
	"context"
	"fmt"
	"math"
	"sync"

	"squad-planner/internal/auth"
	"squad-planner/internal/config"
	"squad-planner/internal/constants"
	"squad-planner/internal/derive"
	"squad-planner/internal/domain"
	"squad-planner/internal/repository"

	"github.com/rs/zerolog"
)

type FormationService struct {
	settings *repository.SettingsRepository
	rows     *repository.FormationRepository
	tiers    *TierService
	checker  *auth.Checker
	seed     *config.Seed
	mu       sync.Mutex
	logger   zerolog.Logger
}

func NewFormationService(
	settings *repository.SettingsRepository,
	rows *repository.FormationRepository,
	tiers *TierService,
	checker *auth.Checker,
	seed *config.Seed,
	logger zerolog.Logger,
) *FormationService {
	return &FormationService{
		settings: settings,
		rows:     rows,
		tiers:    tiers,
		checker:  checker,
		seed:     seed,
		logger:   logger,
	}
}

func validateFormation(role domain.Role, slot domain.Slot) error {
	if err := validateRole(role); err != nil {
		return err
	}
	return validateSlot(slot)
}

// Settings returns the stored budget for (role, slot), the seeded one when
// nothing is stored, or zero settings.
func (s *FormationService) Settings(ctx context.Context, role domain.Role, slot domain.Slot) (domain.FormationSettings, error) {
	if err := validateFormation(role, slot); err != nil {
		return domain.FormationSettings{}, err
	}

	settings, ok, err := s.settings.Formation(ctx, role, slot)
	if err != nil {
		return domain.FormationSettings{}, err
	}
	if !ok {
		settings = s.seed.Formations[config.FormationKey(role, slot)]
	}
	return settings, nil
}

func (s *FormationService) SaveSettings(ctx context.Context, actor auth.Actor, role domain.Role, slot domain.Slot, settings domain.FormationSettings) error {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return err
	}
	if err := validateFormation(role, slot); err != nil {
		return err
	}
	for _, v := range []float64{
		settings.Total, settings.Guards, settings.Archers, settings.Cavalry, settings.Siege,
		settings.T10, settings.T9, settings.T8, settings.T7, settings.T6,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return ErrInvalidSettings
		}
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.settings.SaveFormation(ctx, role, slot, settings); err != nil {
		s.logger.Error().Err(err).Str("role", string(role)).Str("slot", string(slot)).Msg("failed to save formation settings")
		return fmt.Errorf("failed to save formation settings: %w", err)
	}
	s.logger.Info().Str("role", string(role)).Str("slot", string(slot)).Str("actor", actor.Email).Msg("formation settings saved")
	return nil
}

// Load returns the allocation for (role, slot) against the current tier
// averages. Stored counts are kept; tiers seen for the first time field one
// formation when they have damage and none otherwise.
func (s *FormationService) Load(ctx context.Context, role domain.Role, slot domain.Slot) ([]domain.FormationRow, error) {
	if err := validateFormation(role, slot); err != nil {
		return nil, err
	}
	return s.compute(ctx, role, slot, nil)
}

// SetCount changes how many formations of one tier are fielded and stores
// the reallocated rows.
func (s *FormationService) SetCount(ctx context.Context, actor auth.Actor, role domain.Role, slot domain.Slot, group string, count int) ([]domain.FormationRow, error) {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return nil, err
	}
	if err := validateFormation(role, slot); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, ErrInvalidCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.compute(ctx, role, slot, map[string]int{group: count})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.rows.Save(ctx, role, slot, rows); err != nil {
		s.logger.Error().Err(err).Str("role", string(role)).Str("slot", string(slot)).Msg("failed to save formation")
		return nil, fmt.Errorf("failed to save formation: %w", err)
	}

	s.logger.Info().
		Str("role", string(role)).
		Str("slot", string(slot)).
		Str("group", group).
		Int("count", count).
		Str("actor", actor.Email).
		Msg("formation count updated")
	return rows, nil
}

func (s *FormationService) compute(ctx context.Context, role domain.Role, slot domain.Slot, overrides map[string]int) ([]domain.FormationRow, error) {
	view, err := s.tiers.View(ctx, string(role))
	if err != nil {
		return nil, err
	}

	settings, err := s.Settings(ctx, role, slot)
	if err != nil {
		return nil, err
	}

	stored, err := s.rows.Rows(ctx, role, slot)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(stored))
	for _, row := range stored {
		counts[row.Group] = row.Count
	}

	buckets := view.Ordered()
	inputs := make([]derive.TierInput, 0, len(buckets))
	for _, b := range buckets {
		count, ok := counts[b.Tier.Name]
		if !ok && b.AvgScore > 0 {
			count = 1
		}
		inputs = append(inputs, derive.TierInput{Group: b.Tier.Name, AvgDamage: b.AvgScore, Count: count})
	}

	for group, count := range overrides {
		found := false
		for i := range inputs {
			if inputs[i].Group == group {
				inputs[i].Count = count
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrTierNotFound, group)
		}
	}

	return derive.Allocate(derive.AllocationInput{
		Tiers:  inputs,
		Ratios: settings.Ratios(),
		Budget: settings.Budget(role),
	}), nil
}
