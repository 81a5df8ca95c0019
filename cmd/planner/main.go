package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"squad-planner/internal/config"
	fxmodules "squad-planner/internal/fx"
	"squad-planner/internal/logger"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var rootCtx = context.Background()

var rootCmd = &cobra.Command{
	Use:   "planner",
	Short: "Operator tools for the squad planner",
	Long: `Inspect player stats, tiers and formations from the command line.

Commands that read stored data open the same SQLite file as the server.
Every flag can also be set with a PLANNER_ environment variable, e.g.
PLANNER_DB=/data/planner.db.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if !viper.GetBool("color") {
			color.NoColor = true
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("db", "", "SQLite database path (defaults to DB_PATH)")
	rootCmd.PersistentFlags().String("seed", "", "seed YAML path (defaults to SEED_PATH)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level written to stderr")
	rootCmd.PersistentFlags().Bool("color", true, "colorize output")
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(parseCmd, scoreCmd, tiersCmd, formationCmd, kptCmd)
}

func initConfig() {
	viper.SetEnvPrefix("PLANNER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func cliLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = zerolog.WarnLevel
	}
	return logger.Console(os.Stderr, level)
}

// applyOverrides lays command line paths over the environment config.
func applyOverrides(cfg *config.Config) *config.Config {
	if v := viper.GetString("db"); v != "" {
		cfg.DBPath = v
	}
	if v := viper.GetString("seed"); v != "" {
		cfg.SeedPath = v
	}
	return cfg
}

// loadSeed reads the vocabulary without opening the database.
func loadSeed() (*config.Seed, error) {
	log := cliLogger()
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}
	return config.LoadSeed(applyOverrides(cfg), log)
}

// withApp starts the service graph, fills targets and returns a stop func.
func withApp(targets ...any) (func(), error) {
	var sqlDB *sql.DB
	app := fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Decorate(func(zerolog.Logger) zerolog.Logger { return cliLogger() }),
		fx.Decorate(applyOverrides),
		fx.Populate(append(targets, &sqlDB)...),
	)
	if err := app.Start(rootCtx); err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return func() {
		_ = app.Stop(rootCtx)
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
