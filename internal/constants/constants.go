package constants

import "time"

const (
	ExternalAPITimeout = 20 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

// Document store collections.
const (
	CollectionStats     = "stats"
	CollectionSettings  = "settings"
	CollectionFormation = "formation"
	CollectionAnalytics = "analytics"
)

// Well-known document keys.
const (
	ThresholdsKey  = "thresholds"
	AtlantisKey    = "atlantis_damage"
	TierSummaryKey = "tier_summary"
)

const (
	MaxUploadBytes  = 20 << 20
	MaxImagesPerRun = 10
	OCRConcurrency  = 4
)
