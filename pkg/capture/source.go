// Package capture provides frame sources for the perception loop:
// a live screen region and replay of recorded frames.
package capture

import (
	"errors"

	"github.com/teslashibe/go-pacvision/pkg/frame"
)

// ErrNoFrame means no frame was available on this call. Callers skip the
// iteration; it is not fatal.
var ErrNoFrame = errors.New("capture: no frame available")

// ErrEndOfStream means the source is exhausted and will never produce another
// frame, e.g. a replay that reached its last file. Loops stop cleanly on it.
var ErrEndOfStream = errors.New("capture: end of stream")

// Source supplies fixed-size BGR frames.
type Source interface {
	Capture() (*frame.Frame, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (*frame.Frame, error)

// Capture implements Source.
func (fn SourceFunc) Capture() (*frame.Frame, error) {
	return fn()
}

// Region is the screen rectangle to grab, in screen pixels.
type Region struct {
	Top    int `json:"top" yaml:"top"`
	Left   int `json:"left" yaml:"left"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Empty reports whether the region has no area, meaning "whole screen".
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
