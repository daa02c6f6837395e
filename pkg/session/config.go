package session

import (
	"time"

	"github.com/teslashibe/go-pacvision/pkg/geometry"
	"github.com/teslashibe/go-pacvision/pkg/grid"
	"github.com/teslashibe/go-pacvision/pkg/mapextract"
)

// Config holds the control loop parameters
type Config struct {
	GridWidth  int
	GridHeight int
	Padding    geometry.Padding

	// Detection class that marks the player character
	CharacterClass string

	// How long to sample frames for the static map
	MapCaptureDuration time.Duration

	// Loop pacing; zero runs as fast as frames arrive
	FrameInterval time.Duration

	// Number of recent frame latencies kept for Stats
	StatsWindow int

	// Minimum gap between "loop lagging" warnings
	LagWarnInterval time.Duration
}

// DefaultConfig returns the arcade defaults at 30 FPS
func DefaultConfig() Config {
	return Config{
		GridWidth:          grid.DefaultWidth,
		GridHeight:         grid.DefaultHeight,
		CharacterClass:     "pacman",
		MapCaptureDuration: mapextract.DefaultDuration,
		FrameInterval:      time.Second / 30,
		StatsWindow:        300,
		LagWarnInterval:    5 * time.Second,
	}
}
