package fx

import (
	"context"
	"database/sql"

	"squad-planner/internal/api"
	"squad-planner/internal/auth"
	"squad-planner/internal/config"
	"squad-planner/internal/database"
	"squad-planner/internal/db"
	"squad-planner/internal/derive"
	"squad-planner/internal/logger"
	"squad-planner/internal/repository"
	"squad-planner/internal/server"
	"squad-planner/internal/service"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

func ProvideCalculator(seed *config.Seed) *derive.Calculator {
	return derive.NewCalculator(seed.RolePrefixes)
}

// SeedSettings writes seeded settings before the server starts taking writes.
func SeedSettings(lc fx.Lifecycle, settings *service.SettingsService, logger zerolog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := settings.Seed(ctx); err != nil {
				logger.Error().Err(err).Msg("failed to seed settings")
				return err
			}
			return nil
		},
	})
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// repos
	fx.Provide(repository.NewDocumentStore),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewSettingsRepository),
	fx.Provide(repository.NewFormationRepository),
	fx.Provide(repository.NewSnapshotRepository),
	fx.Provide(auth.NewCheckerFromConfig),
	fx.Provide(ProvideCalculator),
	// api client
	fx.Provide(fx.Annotate(api.NewVisionClient, fx.As(new(service.Recognizer)))),
	// svc
	fx.Provide(service.NewOCRService),
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewSettingsService),
	fx.Provide(service.NewTierService),
	fx.Provide(service.NewFormationService),
	// server
	fx.Provide(server.NewHub),
	fx.Provide(server.NewPlannerServer),
	fx.Invoke(SeedSettings),
)
