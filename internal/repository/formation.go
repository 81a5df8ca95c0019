package repository

import (
	"context"

	"squad-planner/internal/config"
	"squad-planner/internal/constants"
	"squad-planner/internal/domain"

	"github.com/rs/zerolog"
)

type formationDoc struct {
	Rows []domain.FormationRow `json:"rows"`
}

// FormationRepository stores the computed rows of one (role, slot) formation.
// Rows are always written together.
type FormationRepository struct {
	store  *DocumentStore
	logger zerolog.Logger
}

func NewFormationRepository(store *DocumentStore, logger zerolog.Logger) *FormationRepository {
	return &FormationRepository{store: store, logger: logger}
}

func (r *FormationRepository) Rows(ctx context.Context, role domain.Role, slot domain.Slot) ([]domain.FormationRow, error) {
	var doc formationDoc
	if _, err := r.store.Get(ctx, constants.CollectionFormation, config.FormationKey(role, slot), &doc); err != nil {
		return nil, err
	}
	return doc.Rows, nil
}

func (r *FormationRepository) Save(ctx context.Context, role domain.Role, slot domain.Slot, rows []domain.FormationRow) error {
	if rows == nil {
		rows = []domain.FormationRow{}
	}
	if err := r.store.Set(ctx, constants.CollectionFormation, config.FormationKey(role, slot), formationDoc{Rows: rows}, false); err != nil {
		return err
	}
	r.logger.Debug().Str("role", string(role)).Str("slot", string(slot)).Int("rows", len(rows)).Msg("formation saved")
	return nil
}
