// Package config holds the pacvision runtime configuration: a flat mapping of
// option names to values, loaded from YAML with environment overrides.
package config

import (
	"time"

	"github.com/teslashibe/go-pacvision/pkg/capture"
	"github.com/teslashibe/go-pacvision/pkg/classify"
	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/geometry"
	"github.com/teslashibe/go-pacvision/pkg/grid"
	"github.com/teslashibe/go-pacvision/pkg/localize"
	"github.com/teslashibe/go-pacvision/pkg/mapextract"
)

// Option names as they appear in the config file.
const (
	KeyGridWidth          = "grid_width"
	KeyGridHeight         = "grid_height"
	KeyPadTop             = "pad_top"
	KeyPadBottom          = "pad_bottom"
	KeyPadLeft            = "pad_left"
	KeyPadRight           = "pad_right"
	KeyCaptureRegion      = "capture_region"
	KeyWallColors         = "wall_colors"
	KeyPathColor          = "path_color"
	KeyPelletColors       = "pellet_colors"
	KeyColorTolerance     = "color_tolerance"
	KeyIgnoreAreas        = "ignore_areas"
	KeyMapCaptureDuration = "map_capture_duration"
	KeyMapCaptureInterval = "map_capture_interval"
	KeyTargetFPS          = "target_fps"
	KeyCharacterClass     = "character_class"
	KeyTemplateDir        = "template_dir"
	KeyMatchThreshold     = "match_threshold"
	KeyTieBreak           = "tie_break"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
	KeyDebug              = "debug"
	KeyDashboardPort      = "dashboard_port"
	KeyLogDir             = "log_dir"
	KeyReplayDir          = "replay_dir"
)

// Config holds everything the perception loop needs at startup.
type Config struct {
	// Grid
	GridWidth  int
	GridHeight int
	Padding    geometry.Padding

	// Capture
	CaptureRegion capture.Region
	ReplayDir     string // Replay recorded frames instead of grabbing the screen

	// Colors (BGR)
	WallColors     []frame.BGR
	PathColor      frame.BGR
	PelletColors   []frame.BGR
	ColorTolerance float64

	// Localization
	IgnoreAreas    []localize.Rect
	CharacterClass string
	TieBreak       string // "first" or "nearest"

	// Detection
	TemplateDir    string
	MatchThreshold float64

	// Map extraction
	MapCaptureDuration time.Duration
	MapCaptureInterval time.Duration

	// Loop
	TargetFPS int

	// Logging and debug
	LogLevel      string
	LogFormat     string
	Debug         bool
	DashboardPort string // Empty disables the dashboard
	LogDir        string // Empty disables the data logger
}

// Default returns the calibrated arcade setup.
func Default() Config {
	pal := classify.DefaultPalette()
	return Config{
		GridWidth:  grid.DefaultWidth,
		GridHeight: grid.DefaultHeight,

		CaptureRegion: capture.Region{Top: 159, Left: 953, Width: 959, Height: 446},

		WallColors:     pal.Walls,
		PathColor:      pal.Path,
		PelletColors:   pal.Pellets,
		ColorTolerance: classify.DefaultTolerance,

		// Lives counter in the bottom-left corner
		IgnoreAreas: []localize.Rect{
			{X: 24, Y: 366, W: 52, H: 22},
			{X: 14, Y: 359, W: 67, H: 36},
		},
		CharacterClass: "pacman",
		TieBreak:       "first",

		TemplateDir:    "assets/templates",
		MatchThreshold: 0.7,

		MapCaptureDuration: mapextract.DefaultDuration,
		MapCaptureInterval: mapextract.DefaultInterval,

		TargetFPS: 30,

		LogLevel: "info",
	}
}

// Palette returns the classifier palette built from the configured colors.
func (c Config) Palette() classify.Palette {
	return classify.Palette{
		Walls:   c.WallColors,
		Path:    c.PathColor,
		Pellets: c.PelletColors,
	}
}

// ClassifierConfig returns classifier thresholds with the configured palette.
func (c Config) ClassifierConfig() classify.Config {
	cc := classify.DefaultConfig()
	cc.Palette = c.Palette()
	cc.Tolerance = c.ColorTolerance
	return cc
}

// FrameInterval returns the target loop period.
func (c Config) FrameInterval() time.Duration {
	if c.TargetFPS <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.TargetFPS)
}
