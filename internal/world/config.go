package world

import (
	"strings"

	"geocoin-carrier/server/internal/grid"
)

const (
	DefaultSeed             = "geocoin"
	DefaultVisibilityRadius = 8
	DefaultSpawnProbability = 0.1
)

// DefaultOrigin is the classroom spawn point the prototype shipped with.
var DefaultOrigin = grid.LatLng{Lat: 36.989495, Lng: -122.062771}

// Config captures the world tunables.
type Config struct {
	Seed             string      `json:"seed"`
	CellWidth        float64     `json:"cellWidth"`
	VisibilityRadius int         `json:"visibilityRadius"`
	SpawnProbability float64     `json:"spawnProbability"`
	Origin           grid.LatLng `json:"origin"`
}

func (cfg Config) normalized() Config {
	normalized := cfg
	normalized.Seed = strings.TrimSpace(normalized.Seed)
	if normalized.Seed == "" {
		normalized.Seed = DefaultSeed
	}
	if normalized.CellWidth <= 0 {
		normalized.CellWidth = grid.DefaultCellWidth
	}
	if normalized.VisibilityRadius <= 0 {
		normalized.VisibilityRadius = DefaultVisibilityRadius
	}
	if normalized.SpawnProbability < 0 {
		normalized.SpawnProbability = 0
	}
	if normalized.SpawnProbability > 1 {
		normalized.SpawnProbability = 1
	}
	if normalized.Origin == (grid.LatLng{}) {
		normalized.Origin = DefaultOrigin
	}
	return normalized
}

// Normalized exposes the clamp pass for callers assembling configs.
func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

// DefaultConfig returns the prototype defaults.
func DefaultConfig() Config {
	return Config{
		Seed:             DefaultSeed,
		CellWidth:        grid.DefaultCellWidth,
		VisibilityRadius: DefaultVisibilityRadius,
		SpawnProbability: DefaultSpawnProbability,
		Origin:           DefaultOrigin,
	}
}
