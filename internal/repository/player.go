package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"squad-planner/internal/constants"
	"squad-planner/internal/domain"

	"github.com/rs/zerolog"
)

// PlayerRepository stores one document per player in the stats collection,
// keyed by player name.
type PlayerRepository struct {
	store  *DocumentStore
	logger zerolog.Logger
}

func NewPlayerRepository(store *DocumentStore, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{store: store, logger: logger}
}

func (r *PlayerRepository) Get(ctx context.Context, name string) (*domain.Player, error) {
	var player domain.Player
	ok, err := r.store.Get(ctx, constants.CollectionStats, name, &player)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("player %q: %w", name, ErrNotFound)
	}
	player.Name = name
	return &player, nil
}

func (r *PlayerRepository) List(ctx context.Context) ([]domain.Player, error) {
	docs, err := r.store.GetAll(ctx, constants.CollectionStats)
	if err != nil {
		return nil, err
	}

	players := make([]domain.Player, 0, len(docs))
	for _, doc := range docs {
		var p domain.Player
		if err := doc.Decode(&p); err != nil {
			r.logger.Warn().Err(err).Str("player", doc.Key).Msg("skipping undecodable player document")
			continue
		}
		p.Name = doc.Key
		// the body is the record; row timestamps only fill in for bodies
		// written without them
		if p.CreatedAt.IsZero() {
			p.CreatedAt = doc.CreatedAt
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = doc.UpdatedAt
		}
		players = append(players, p)
	}
	return players, nil
}

// Save replaces the player's document with a single write.
func (r *PlayerRepository) Save(ctx context.Context, player *domain.Player) error {
	if err := r.store.Set(ctx, constants.CollectionStats, player.Name, player, false); err != nil {
		return err
	}
	r.logger.Debug().Str("player", player.Name).Msg("player saved")
	return nil
}

func (r *PlayerRepository) Delete(ctx context.Context, name string) error {
	return r.store.Delete(ctx, constants.CollectionStats, name)
}

// Rename moves a player document to a new name. It fails with ErrNotFound
// when oldName is missing and ErrExists when newName is taken.
func (r *PlayerRepository) Rename(ctx context.Context, oldName, newName string) error {
	return r.store.Rename(ctx, constants.CollectionStats, oldName, newName, func(body json.RawMessage) (any, error) {
		var p domain.Player
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		return &p, nil
	})
}
