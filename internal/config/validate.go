package config

import (
	"fmt"

	"github.com/teslashibe/go-pacvision/pkg/localize"
)

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// Validate checks that geometry and thresholds are usable. Grid size and
// padding are rejected here rather than producing undefined cell mapping later.
func (c *Config) Validate() error {
	if c.GridWidth <= 0 || c.GridHeight <= 0 {
		return &ConfigError{Field: "grid", Message: fmt.Sprintf("grid size must be positive, got %dx%d", c.GridWidth, c.GridHeight)}
	}

	p := c.Padding
	if p.Top < 0 || p.Bottom < 0 || p.Left < 0 || p.Right < 0 {
		return &ConfigError{Field: "padding", Message: fmt.Sprintf("padding must be non-negative, got %+v", p)}
	}

	if !c.CaptureRegion.Empty() {
		w, h := p.Effective(c.CaptureRegion.Width, c.CaptureRegion.Height)
		if w <= 0 || h <= 0 {
			return &ConfigError{Field: "padding", Message: fmt.Sprintf("padding leaves %dx%d of a %dx%d capture region",
				w, h, c.CaptureRegion.Width, c.CaptureRegion.Height)}
		}
	}

	if c.ColorTolerance <= 0 {
		return &ConfigError{Field: KeyColorTolerance, Message: "must be positive"}
	}
	if len(c.WallColors) == 0 {
		return &ConfigError{Field: KeyWallColors, Message: "at least one wall color is required"}
	}

	for i, r := range c.IgnoreAreas {
		if r.W < 0 || r.H < 0 {
			return &ConfigError{Field: KeyIgnoreAreas, Message: fmt.Sprintf("area %d has negative size", i)}
		}
	}

	if _, err := localize.StrategyByName(c.TieBreak); err != nil {
		return &ConfigError{Field: KeyTieBreak, Message: err.Error()}
	}

	if c.TargetFPS <= 0 {
		return &ConfigError{Field: KeyTargetFPS, Message: "must be positive"}
	}
	if c.MapCaptureDuration < 0 || c.MapCaptureInterval < 0 {
		return &ConfigError{Field: KeyMapCaptureDuration, Message: "durations must be non-negative"}
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return &ConfigError{Field: KeyMatchThreshold, Message: "must be between 0 and 1"}
	}

	switch c.LogFormat {
	case "", "text", "json":
	default:
		return &ConfigError{Field: KeyLogFormat, Message: "must be text or json"}
	}

	return nil
}
