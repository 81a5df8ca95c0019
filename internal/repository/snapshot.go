package repository

import (
	"context"
	"fmt"
	"time"

	"squad-planner/internal/constants"
	"squad-planner/internal/derive"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// TierSnapshot is the published tier summary consumed by read-only clients.
type TierSnapshot struct {
	Revision    string             `json:"revision"`
	PublishedAt time.Time          `json:"published_at"`
	PublishedBy string             `json:"published_by"`
	Views       derive.RoleBuckets `json:"views"`
}

type SnapshotRepository struct {
	store  *DocumentStore
	logger zerolog.Logger
}

func NewSnapshotRepository(store *DocumentStore, logger zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{store: store, logger: logger}
}

// Publish stores views as the current tier summary under a fresh revision id.
func (r *SnapshotRepository) Publish(ctx context.Context, views derive.RoleBuckets, actor string) (*TierSnapshot, error) {
	revision, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate revision: %w", err)
	}

	snap := &TierSnapshot{
		Revision:    revision,
		PublishedAt: time.Now().UTC(),
		PublishedBy: actor,
		Views:       views,
	}
	if err := r.store.Set(ctx, constants.CollectionAnalytics, constants.TierSummaryKey, snap, false); err != nil {
		return nil, err
	}

	r.logger.Info().Str("revision", revision).Str("actor", actor).Int("views", len(views)).Msg("tier summary published")
	return snap, nil
}

func (r *SnapshotRepository) Latest(ctx context.Context) (*TierSnapshot, error) {
	var snap TierSnapshot
	ok, err := r.store.Get(ctx, constants.CollectionAnalytics, constants.TierSummaryKey, &snap)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("tier summary: %w", ErrNotFound)
	}
	return &snap, nil
}
