package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const defaultVisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

type Config struct {
	DBPath         string
	ServerPort     string
	LogLevel       string
	VisionAPIKey   string
	VisionEndpoint string
	AdminEmails    []string
	AllowedOrigins []string
	SeedPath       string
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DBPath:         getEnv("DB_PATH", "planner.db"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		VisionAPIKey:   getEnv("VISION_API_KEY", ""),
		VisionEndpoint: getEnv("VISION_ENDPOINT", defaultVisionEndpoint),
		AdminEmails:    splitList(getEnv("ADMIN_EMAILS", "")),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		SeedPath:       getEnv("SEED_PATH", "seed.yaml"),
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	if cfg.VisionAPIKey == "" {
		logger.Warn().Msg("VISION_API_KEY is not set, screenshot recognition is disabled")
	}
	if len(cfg.AdminEmails) == 0 {
		logger.Warn().Msg("ADMIN_EMAILS is empty, every write will be rejected")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("seed_path", cfg.SeedPath).
		Int("admins", len(cfg.AdminEmails)).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var Module = fx.Provide(Load, LoadSeed)
