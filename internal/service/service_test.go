package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"squad-planner/internal/auth"
	"squad-planner/internal/config"
	"squad-planner/internal/database"
	"squad-planner/internal/db"
	"squad-planner/internal/derive"
	"squad-planner/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const adminEmail = "admin@example.com"

var (
	admin    = auth.Actor{Email: adminEmail}
	stranger = auth.Actor{Email: "viewer@example.com"}
)

// fakeRecognizer maps image bytes to canned text.
type fakeRecognizer struct {
	texts   map[string]string
	calls   atomic.Int32
	release chan struct{}
}

func (f *fakeRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	text, ok := f.texts[string(image)]
	if !ok {
		return "", errors.New("unreadable image")
	}
	return text, nil
}

type testEnv struct {
	players    *PlayerService
	settings   *SettingsService
	tiers      *TierService
	formations *FormationService
	ocr        *OCRService
	recognizer *fakeRecognizer
	seed       *config.Seed
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	sqlDB, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "planner.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store := repository.NewDocumentStore(sqlDB, db.New(sqlDB), logger)
	playerRepo := repository.NewPlayerRepository(store, logger)
	settingsRepo := repository.NewSettingsRepository(store, logger)
	formationRepo := repository.NewFormationRepository(store, logger)
	snapshotRepo := repository.NewSnapshotRepository(store, logger)

	seed := config.DefaultSeed()
	checker := auth.NewChecker([]string{adminEmail}, logger)
	recognizer := &fakeRecognizer{texts: map[string]string{}}
	ocr := NewOCRService(recognizer, logger)

	settings := NewSettingsService(settingsRepo, checker, seed, logger)
	tiers := NewTierService(playerRepo, settings, snapshotRepo, checker, logger)

	return &testEnv{
		players:    NewPlayerService(playerRepo, ocr, checker, derive.NewCalculator(seed.RolePrefixes), seed, logger),
		settings:   settings,
		tiers:      tiers,
		formations: NewFormationService(settingsRepo, formationRepo, tiers, checker, seed, logger),
		ocr:        ocr,
		recognizer: recognizer,
		seed:       seed,
	}
}

// Two players: alice scores 67 archer / 53.6 cavalry, bob 129.4 / 103.6.
const (
	aliceText = "Troop Attack 100000\nTroop Attack Blessing 10\nArcher Damage 50%\nCavalry Damage 20%"
	bobText   = "Troop Attack 200000\nTroop Attack Blessing 10\nArcher Damage 50%\nCavalry Damage 20%"
)

func (e *testEnv) addPlayers(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := e.players.SubmitText(ctx, admin, "alice", aliceText)
	require.NoError(t, err)
	_, err = e.players.SubmitText(ctx, admin, "bob", bobText)
	require.NoError(t, err)
}
