package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"squad-planner/internal/config"
	"squad-planner/internal/constants"
	"squad-planner/internal/database"
	"squad-planner/internal/db"
	"squad-planner/internal/derive"
	"squad-planner/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	sqlDB, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewDocumentStore(sqlDB, db.New(sqlDB), zerolog.Nop())
}

func TestDocumentStoreSetGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var out map[string]any
	ok, err := store.Get(ctx, "stats", "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "stats", "alice", map[string]any{"a": 1, "b": "x"}, false))
	ok, err = store.Get(ctx, "stats", "alice", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": float64(1), "b": "x"}, out)
}

func TestDocumentStoreMerge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "settings", "k", map[string]any{"a": 1, "b": 2}, false))
	require.NoError(t, store.Set(ctx, "settings", "k", map[string]any{"b": 3, "c": 4}, true))

	var out map[string]float64
	_, err := store.Get(ctx, "settings", "k", &out)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 1, "b": 3, "c": 4}, out)

	require.NoError(t, store.Set(ctx, "settings", "k", map[string]any{"z": 9}, false))
	out = nil
	_, err = store.Get(ctx, "settings", "k", &out)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"z": 9}, out)
}

func TestDocumentStoreGetAllOrderedByKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, key := range []string{"charlie", "alpha", "bravo"} {
		require.NoError(t, store.Set(ctx, "stats", key, map[string]string{"k": key}, false))
	}
	require.NoError(t, store.Set(ctx, "settings", "other", map[string]string{}, false))

	docs, err := store.GetAll(ctx, "stats")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "alpha", docs[0].Key)
	assert.Equal(t, "bravo", docs[1].Key)
	assert.Equal(t, "charlie", docs[2].Key)
}

func TestDocumentStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Set(ctx, "stats", "a", map[string]int{"x": 1}, false))
	require.NoError(t, store.Delete(ctx, "stats", "a"))
	require.NoError(t, store.Delete(ctx, "stats", "a"))

	var out map[string]int
	ok, err := store.Get(ctx, "stats", "a", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlayerRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepository(newTestStore(t), zerolog.Nop())

	p := &domain.Player{
		Name:        "alice",
		Attributes:  map[string]string{"Troop Attack": "150%"},
		Multiplier:  "1",
		Atlantis:    map[domain.Role]string{domain.RoleArcher: "0"},
		FinalDamage: map[domain.Role]float64{domain.RoleArcher: 12.5},
	}
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, "150%", got.Attributes["Troop Attack"])
	assert.Equal(t, 12.5, got.Final(domain.RoleArcher))

	_, err = repo.Get(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "alice", all[0].Name)
	assert.False(t, all[0].UpdatedAt.IsZero())
}

func TestPlayerRepositoryRename(t *testing.T) {
	ctx := context.Background()
	repo := NewPlayerRepository(newTestStore(t), zerolog.Nop())

	require.NoError(t, repo.Save(ctx, &domain.Player{Name: "alice", Multiplier: "2"}))
	require.NoError(t, repo.Save(ctx, &domain.Player{Name: "carol", Multiplier: "3"}))

	t.Run("moves document", func(t *testing.T) {
		require.NoError(t, repo.Rename(ctx, "alice", "bob"))

		got, err := repo.Get(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "2", got.Multiplier)

		_, err = repo.Get(ctx, "alice")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing source", func(t *testing.T) {
		err := repo.Rename(ctx, "nobody", "dave")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("taken target leaves both untouched", func(t *testing.T) {
		err := repo.Rename(ctx, "bob", "carol")
		assert.ErrorIs(t, err, ErrExists)

		bob, err := repo.Get(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "2", bob.Multiplier)
		carol, err := repo.Get(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, "3", carol.Multiplier)
	})
}

func TestRenameKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	repo := NewPlayerRepository(store, zerolog.Nop())

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, &domain.Player{Name: "a", Multiplier: "1", CreatedAt: created, UpdatedAt: created}))

	before, err := store.GetAll(ctx, constants.CollectionStats)
	require.NoError(t, err)
	require.Len(t, before, 1)

	require.NoError(t, repo.Rename(ctx, "a", "b"))

	got, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, created.Equal(got.CreatedAt), "get: %v", got.CreatedAt)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)
	assert.True(t, created.Equal(list[0].CreatedAt), "list: %v", list[0].CreatedAt)

	after, err := store.GetAll(ctx, constants.CollectionStats)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, before[0].CreatedAt.Equal(after[0].CreatedAt), "row created_at moved from %v to %v", before[0].CreatedAt, after[0].CreatedAt)
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(newTestStore(t), zerolog.Nop())

	_, ok, err := repo.Thresholds(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	rules := []domain.ThresholdRule{
		{Limit: 600, Color: "#805637", Name: "Brown"},
		{Limit: 2000, Color: "#ff3d3d", Name: "Red"},
	}
	require.NoError(t, repo.SaveThresholds(ctx, rules))
	got, ok, err := repo.Thresholds(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rules, got)

	require.NoError(t, repo.SaveAtlantis(ctx, map[string]float64{"None": 0, "Lv 5": 10}))
	opts, ok, err := repo.Atlantis(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10.0, opts["Lv 5"])

	settings := domain.FormationSettings{Total: 500000, Archers: 200000, T10: 25}
	require.NoError(t, repo.SaveFormation(ctx, domain.RoleArcher, domain.SlotTower, settings))
	gotSettings, ok, err := repo.Formation(ctx, domain.RoleArcher, domain.SlotTower)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, settings, gotSettings)

	_, ok, err = repo.Formation(ctx, domain.RoleArcher, domain.SlotThrone)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFormationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFormationRepository(newTestStore(t), zerolog.Nop())

	rows, err := repo.Rows(ctx, domain.RoleCavalry, domain.SlotThrone)
	require.NoError(t, err)
	assert.Empty(t, rows)

	want := []domain.FormationRow{{Group: "Red", Damage: 2100, Count: 2, Troops: 1000, SubTypes: []domain.SubTypeCount{{Name: "T10", Count: 0.5}}}}
	require.NoError(t, repo.Save(ctx, domain.RoleCavalry, domain.SlotThrone, want))

	rows, err = repo.Rows(ctx, domain.RoleCavalry, domain.SlotThrone)
	require.NoError(t, err)
	assert.Equal(t, want, rows)
}

func TestSnapshotRepositoryPublish(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository(newTestStore(t), zerolog.Nop())

	_, err := repo.Latest(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	rules := []domain.ThresholdRule{{Limit: 10, Color: "red", Name: "Red"}}
	views := derive.Recompute([]domain.Player{
		{Name: "a", FinalDamage: map[domain.Role]float64{domain.RoleArcher: 12, domain.RoleCavalry: 8}},
	}, rules)

	first, err := repo.Publish(ctx, views, "admin@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, first.Revision)

	second, err := repo.Publish(ctx, views, "admin@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, second.Revision)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Revision, latest.Revision)

	archer := latest.Views[string(domain.RoleArcher)]
	red, ok := archer.Bucket("red")
	require.True(t, ok)
	assert.Equal(t, 12.0, red.AvgScore)
	assert.Equal(t, []derive.PlayerScore{{Name: "a", Score: 12}}, red.Members)
}

