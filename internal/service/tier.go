package service

import (
	"context"
	"fmt"
	"sync"

	"squad-planner/internal/auth"
	"squad-planner/internal/constants"
	"squad-planner/internal/derive"
	"squad-planner/internal/domain"
	"squad-planner/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// TierService derives tier buckets from the full player list. Passes run one
// at a time; each works on its own snapshot of players and rules.
type TierService struct {
	players   *repository.PlayerRepository
	settings  *SettingsService
	snapshots *repository.SnapshotRepository
	checker   *auth.Checker
	mu        sync.Mutex
	logger    zerolog.Logger
}

func NewTierService(
	players *repository.PlayerRepository,
	settings *SettingsService,
	snapshots *repository.SnapshotRepository,
	checker *auth.Checker,
	logger zerolog.Logger,
) *TierService {
	return &TierService{
		players:   players,
		settings:  settings,
		snapshots: snapshots,
		checker:   checker,
		logger:    logger,
	}
}

func (s *TierService) load(ctx context.Context) ([]domain.Player, []domain.ThresholdRule, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	var (
		players []domain.Player
		rules   []domain.ThresholdRule
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		players, err = s.players.List(gCtx)
		return err
	})
	g.Go(func() error {
		var err error
		rules, err = s.settings.Thresholds(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Msg("failed to load tier inputs")
		return nil, nil, fmt.Errorf("failed to load tier inputs: %w", err)
	}
	return players, rules, nil
}

// Recompute rebuilds every tier view from the stored players and rules.
func (s *TierService) Recompute(ctx context.Context) (derive.RoleBuckets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	players, rules, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	views := derive.Recompute(players, rules)
	s.logger.Debug().Int("players", len(players)).Int("rules", len(rules)).Int("views", len(views)).Msg("tiers recomputed")
	return views, nil
}

// View returns one tier view. A view with no data, such as siege before any
// siege stats exist, comes back with every tier empty.
func (s *TierService) View(ctx context.Context, name string) (derive.TierBuckets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	players, rules, err := s.load(ctx)
	if err != nil {
		return derive.TierBuckets{}, err
	}

	if view, ok := derive.Recompute(players, rules)[name]; ok {
		return view, nil
	}
	return derive.Group(nil, rules), nil
}

// Publish recomputes the tiers and stores them as the current summary.
func (s *TierService) Publish(ctx context.Context, actor auth.Actor) (*repository.TierSnapshot, error) {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return nil, err
	}

	views, err := s.Recompute(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	snap, err := s.snapshots.Publish(ctx, views, actor.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to publish tier summary")
		return nil, fmt.Errorf("failed to publish tier summary: %w", err)
	}
	return snap, nil
}

func (s *TierService) Latest(ctx context.Context) (*repository.TierSnapshot, error) {
	return s.snapshots.Latest(ctx)
}
