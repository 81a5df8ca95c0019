package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"squad-planner/internal/auth"
	"squad-planner/internal/config"
	"squad-planner/internal/constants"
	"squad-planner/internal/domain"
	"squad-planner/internal/repository"

	"github.com/rs/zerolog"
)

type SettingsService struct {
	repo    *repository.SettingsRepository
	checker *auth.Checker
	seed    *config.Seed
	logger  zerolog.Logger
}

func NewSettingsService(repo *repository.SettingsRepository, checker *auth.Checker, seed *config.Seed, logger zerolog.Logger) *SettingsService {
	return &SettingsService{repo: repo, checker: checker, seed: seed, logger: logger}
}

// validateRules checks that every tier can be told apart. Buckets are keyed by
// color and formation counts by name, so both must be unique; names are also
// used as a path segment and may not shadow the default tier.
func validateRules(rules []domain.ThresholdRule) error {
	colors := make(map[string]struct{}, len(rules))
	names := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		color := strings.TrimSpace(r.Color)
		name := strings.TrimSpace(r.Name)
		if color == "" || name == "" || strings.Contains(name, "/") || math.IsNaN(r.Limit) || math.IsInf(r.Limit, 0) {
			return fmt.Errorf("%w: rule %d", ErrInvalidThreshold, i+1)
		}
		if strings.EqualFold(color, domain.DefaultTierColor) || strings.EqualFold(name, domain.DefaultTierName) {
			return fmt.Errorf("%w: rule %d reuses the default tier", ErrDuplicateTier, i+1)
		}

		key := strings.ToLower(name)
		if _, dup := names[key]; dup {
			return fmt.Errorf("%w: name %q", ErrDuplicateTier, name)
		}
		names[key] = struct{}{}
		if _, dup := colors[color]; dup {
			return fmt.Errorf("%w: color %q", ErrDuplicateTier, color)
		}
		colors[color] = struct{}{}
	}
	return nil
}

// Thresholds returns the stored tier rules in their saved order, falling back
// to the seeded rules before the first save.
func (s *SettingsService) Thresholds(ctx context.Context) ([]domain.ThresholdRule, error) {
	rules, ok, err := s.repo.Thresholds(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return append([]domain.ThresholdRule(nil), s.seed.Thresholds...), nil
	}
	return rules, nil
}

func (s *SettingsService) UpdateThresholds(ctx context.Context, actor auth.Actor, rules []domain.ThresholdRule) error {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return err
	}
	if err := validateRules(rules); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.repo.SaveThresholds(ctx, rules); err != nil {
		s.logger.Error().Err(err).Msg("failed to save thresholds")
		return fmt.Errorf("failed to save thresholds: %w", err)
	}
	s.logger.Info().Int("rules", len(rules)).Str("actor", actor.Email).Msg("thresholds updated")
	return nil
}

// AtlantisOptions returns the selectable atlantis bonuses ordered by value,
// then label.
func (s *SettingsService) AtlantisOptions(ctx context.Context) ([]domain.AtlantisOption, error) {
	options, ok, err := s.repo.Atlantis(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		options = s.seed.Atlantis
	}

	out := make([]domain.AtlantisOption, 0, len(options))
	for label, value := range options {
		out = append(out, domain.AtlantisOption{Label: label, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

func (s *SettingsService) SetAtlantisOptions(ctx context.Context, actor auth.Actor, options []domain.AtlantisOption) error {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return err
	}

	byLabel := make(map[string]float64, len(options))
	for _, o := range options {
		label := strings.TrimSpace(o.Label)
		if label == "" || math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return fmt.Errorf("%w: %q", ErrInvalidOption, o.Label)
		}
		byLabel[label] = o.Value
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if err := s.repo.SaveAtlantis(ctx, byLabel); err != nil {
		s.logger.Error().Err(err).Msg("failed to save atlantis options")
		return fmt.Errorf("failed to save atlantis options: %w", err)
	}
	s.logger.Info().Int("options", len(byLabel)).Str("actor", actor.Email).Msg("atlantis options updated")
	return nil
}

// Seed writes the seeded settings that are not stored yet. Existing
// documents are never overwritten.
func (s *SettingsService) Seed(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	written := 0

	if _, ok, err := s.repo.Thresholds(ctx); err != nil {
		return err
	} else if !ok {
		if err := validateRules(s.seed.Thresholds); err != nil {
			return fmt.Errorf("seeded thresholds: %w", err)
		}
		if err := s.repo.SaveThresholds(ctx, s.seed.Thresholds); err != nil {
			return fmt.Errorf("failed to seed thresholds: %w", err)
		}
		written++
	}

	if _, ok, err := s.repo.Atlantis(ctx); err != nil {
		return err
	} else if !ok {
		if err := s.repo.SaveAtlantis(ctx, s.seed.Atlantis); err != nil {
			return fmt.Errorf("failed to seed atlantis options: %w", err)
		}
		written++
	}

	for _, role := range domain.Roles {
		for _, slot := range domain.Slots {
			settings, seeded := s.seed.Formations[config.FormationKey(role, slot)]
			if !seeded {
				continue
			}
			if _, ok, err := s.repo.Formation(ctx, role, slot); err != nil {
				return err
			} else if ok {
				continue
			}
			if err := s.repo.SaveFormation(ctx, role, slot, settings); err != nil {
				return fmt.Errorf("failed to seed formation %s/%s: %w", role, slot, err)
			}
			written++
		}
	}

	s.logger.Info().Int("written", written).Msg("settings seeded")
	return nil
}
