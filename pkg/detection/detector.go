// Package detection finds game sprites (the character, ghosts) in captured frames
package detection

import (
	"github.com/teslashibe/go-pacvision/pkg/frame"
)

// Default class names produced by the template detector
const (
	ClassCharacter = "pacman"
	ClassGhost     = "ghost"
)

// Box is a detection bounding box in frame pixels
type Box struct {
	X, Y       int     // Top-left corner
	W, H       int     // Width and height
	Confidence float64 // Match score (0-1)
}

// Center returns the center point of the box
func (b Box) Center() (x, y float64) {
	return float64(b.X) + float64(b.W)/2, float64(b.Y) + float64(b.H)/2
}

// Area returns the area of the box in pixels
func (b Box) Area() int {
	return b.W * b.H
}

// Result holds the boxes found per class for one frame
type Result map[string][]Box

// Class returns the boxes for a class (nil if none)
func (r Result) Class(name string) []Box {
	if r == nil {
		return nil
	}
	return r[name]
}

// Count returns the total number of boxes across classes
func (r Result) Count() int {
	n := 0
	for _, boxes := range r {
		n += len(boxes)
	}
	return n
}

// Detector is the interface for sprite detection backends
type Detector interface {
	// Detect finds sprites in the frame, grouped by class name
	Detect(f *frame.Frame) (Result, error)

	// Close releases resources
	Close() error
}

// Config holds template detector configuration
type Config struct {
	TemplateDir string             // Directory of <class>.png templates
	Thresholds  map[string]float32 // Per-class minimum normalized correlation
	Default     float32            // Threshold for classes without an entry
	NMSThresh   float32            // Overlap threshold for duplicate suppression
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		TemplateDir: "assets/templates",
		Thresholds: map[string]float32{
			ClassCharacter: 0.7, // Sprite rotates, so it matches less tightly
			ClassGhost:     0.8,
		},
		Default:   0.8,
		NMSThresh: 0.3,
	}
}

// Threshold returns the match threshold for a class
func (c Config) Threshold(class string) float32 {
	if t, ok := c.Thresholds[class]; ok {
		return t
	}
	return c.Default
}
