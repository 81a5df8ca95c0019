package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"squad-planner/internal/auth"
	"squad-planner/internal/config"
	"squad-planner/internal/constants"
	"squad-planner/internal/derive"
	"squad-planner/internal/domain"
	"squad-planner/internal/repository"

	"github.com/rs/zerolog"
)

type PlayerService struct {
	repo    *repository.PlayerRepository
	ocr     *OCRService
	checker *auth.Checker
	calc    *derive.Calculator
	seed    *config.Seed
	logger  zerolog.Logger
}

func NewPlayerService(
	repo *repository.PlayerRepository,
	ocr *OCRService,
	checker *auth.Checker,
	calc *derive.Calculator,
	seed *config.Seed,
	logger zerolog.Logger,
) *PlayerService {
	return &PlayerService{
		repo:    repo,
		ocr:     ocr,
		checker: checker,
		calc:    calc,
		seed:    seed,
		logger:  logger,
	}
}

// Submit recognizes a player's screenshots and stores the parsed stats.
func (s *PlayerService) Submit(ctx context.Context, actor auth.Actor, name string, images [][]byte) (*domain.Player, error) {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if len(images) > constants.MaxImagesPerRun {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyImages, len(images), constants.MaxImagesPerRun)
	}

	s.logger.Info().Str("player", name).Int("images", len(images)).Str("actor", actor.Email).Msg("submitting screenshots")

	texts, err := s.ocr.RecognizeAll(ctx, images)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize screenshots: %w", err)
	}
	return s.store(ctx, name, derive.ParseMany(texts, s.seed.DesiredKeys))
}

// SubmitText stores stats parsed from already recognized text.
func (s *PlayerService) SubmitText(ctx context.Context, actor auth.Actor, name, rawText string) (*domain.Player, error) {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	s.logger.Info().Str("player", name).Int("chars", len(rawText)).Str("actor", actor.Email).Msg("submitting text")
	return s.store(ctx, name, derive.Parse(rawText, s.seed.DesiredKeys))
}

// store replaces the player's stats. A resubmitted player keeps the
// multiplier and atlantis selections already chosen for them.
func (s *PlayerService) store(ctx context.Context, name string, attrs derive.AttributeMap) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	now := time.Now().UTC()
	player := &domain.Player{
		Name:       name,
		Multiplier: "1",
		Atlantis:   map[domain.Role]string{domain.RoleArcher: "0", domain.RoleCavalry: "0"},
		CreatedAt:  now,
	}

	existing, err := s.repo.Get(ctx, name)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		player.Multiplier = existing.Multiplier
		for role, v := range existing.Atlantis {
			player.Atlantis[role] = v
		}
		if !existing.CreatedAt.IsZero() {
			player.CreatedAt = existing.CreatedAt
		}
	}

	player.Attributes = attrs.Map()
	player.UpdatedAt = now
	s.applyDerived(player)

	if err := s.repo.Save(ctx, player); err != nil {
		s.logger.Error().Err(err).Str("player", name).Msg("failed to save player")
		return nil, fmt.Errorf("failed to save player: %w", err)
	}

	s.logger.Info().
		Str("player", name).
		Float64("archer", player.Final(domain.RoleArcher)).
		Float64("cavalry", player.Final(domain.RoleCavalry)).
		Msg("player stats stored")
	return player, nil
}

// applyDerived recomputes every final damage and the average from the
// player's current attributes and selections.
func (s *PlayerService) applyDerived(p *domain.Player) {
	p.FinalDamage = make(map[domain.Role]float64, len(domain.Roles))
	for _, role := range domain.Roles {
		if role == domain.RoleSiege && !s.calc.Covers(p.Attributes, role) {
			continue
		}
		p.FinalDamage[role] = s.calc.FinalDamage(p.Attributes, role, p.Atlantis[role], p.Multiplier)
	}
	p.AverageDamage = derive.Round((p.Final(domain.RoleArcher)+p.Final(domain.RoleCavalry))/2, derive.ScorePrecision)
}

func isDerivedField(field string) bool {
	if field == domain.AverageDamageField {
		return true
	}
	for _, role := range domain.Roles {
		if field == role.FinalDamageField() {
			return true
		}
	}
	return false
}

// UpdateField edits one field and writes the player back with refreshed
// derived values in a single write.
func (s *PlayerService) UpdateField(ctx context.Context, actor auth.Actor, name, field, value string) (*domain.Player, error) {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return nil, err
	}
	if isDerivedField(field) {
		return nil, fmt.Errorf("%w: %s", ErrReadOnlyField, field)
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	player, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	player.SetField(field, value)
	player.UpdatedAt = time.Now().UTC()
	s.applyDerived(player)

	if err := s.repo.Save(ctx, player); err != nil {
		s.logger.Error().Err(err).Str("player", name).Str("field", field).Msg("failed to update player")
		return nil, fmt.Errorf("failed to update player: %w", err)
	}

	s.logger.Info().Str("player", name).Str("field", field).Str("actor", actor.Email).Msg("player field updated")
	return player, nil
}

func (s *PlayerService) Rename(ctx context.Context, actor auth.Actor, oldName, newName string) error {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return err
	}
	oldName = strings.TrimSpace(oldName)
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrInvalidName
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if newName == oldName {
		_, err := s.Get(ctx, oldName)
		return err
	}

	err := s.repo.Rename(ctx, oldName, newName)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, oldName)
	case errors.Is(err, repository.ErrExists):
		return fmt.Errorf("%w: %s", ErrPlayerExists, newName)
	case err != nil:
		s.logger.Error().Err(err).Str("from", oldName).Str("to", newName).Msg("failed to rename player")
		return fmt.Errorf("failed to rename player: %w", err)
	}

	s.logger.Info().Str("from", oldName).Str("to", newName).Str("actor", actor.Email).Msg("player renamed")
	return nil
}

func (s *PlayerService) Delete(ctx context.Context, actor auth.Actor, name string) error {
	if err := s.checker.AssertPrivileged(actor); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	if _, err := s.Get(ctx, name); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}

	s.logger.Info().Str("player", name).Str("actor", actor.Email).Msg("player deleted")
	return nil
}

func (s *PlayerService) Get(ctx context.Context, name string) (*domain.Player, error) {
	player, err := s.repo.Get(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, name)
	}
	return player, err
}

// List returns every player ordered by name.
func (s *PlayerService) List(ctx context.Context) ([]domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	players, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list players")
		return nil, err
	}
	s.logger.Debug().Int("count", len(players)).Msg("players listed")
	return players, nil
}

// ExportTSV writes the copyable stats table: one row per player with the
// desired attributes, selections and final damages. Percent signs are
// dropped so the values paste into a spreadsheet as numbers.
func (s *PlayerService) ExportTSV(ctx context.Context, w io.Writer) error {
	players, err := s.List(ctx)
	if err != nil {
		return err
	}

	roles := []domain.Role{domain.RoleArcher, domain.RoleCavalry}
	for _, p := range players {
		if p.Final(domain.RoleSiege) > 0 {
			roles = append(roles, domain.RoleSiege)
			break
		}
	}

	header := append([]string{"Name"}, s.seed.DesiredKeys...)
	header = append(header, domain.MultiplierField)
	for _, role := range roles {
		header = append(header, role.AtlantisField())
	}
	for _, role := range roles {
		header = append(header, role.FinalDamageField())
	}
	header = append(header, domain.AverageDamageField)

	out := csv.NewWriter(w)
	out.Comma = '\t'
	if err := out.Write(header); err != nil {
		return err
	}

	for _, p := range players {
		row := []string{p.Name}
		for _, key := range s.seed.DesiredKeys {
			v, ok := p.Attributes[key]
			if !ok || v == "" {
				v = domain.MissingValue
			}
			row = append(row, strings.ReplaceAll(v, "%", ""))
		}
		row = append(row, p.Multiplier)
		for _, role := range roles {
			row = append(row, p.Atlantis[role])
		}
		for _, role := range roles {
			row = append(row, formatDamage(p.Final(role)))
		}
		row = append(row, formatDamage(p.AverageDamage))
		if err := out.Write(row); err != nil {
			return err
		}
	}

	out.Flush()
	return out.Error()
}

func formatDamage(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
