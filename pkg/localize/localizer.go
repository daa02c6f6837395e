// Package localize resolves raw character detections to a single grid cell.
package localize

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-pacvision/pkg/detection"
	"github.com/teslashibe/go-pacvision/pkg/geometry"
	"github.com/teslashibe/go-pacvision/pkg/grid"
)

// Rect is an axis-aligned region in capture pixels. Bounds are inclusive.
type Rect struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Contains reports whether (px, py) lies inside r, edges included.
func (r Rect) Contains(px, py float64) bool {
	return px >= float64(r.X) && px <= float64(r.X+r.W) &&
		py >= float64(r.Y) && py <= float64(r.Y+r.H)
}

// Candidate is a detection center that survived ignore filtering.
type Candidate struct {
	X, Y float64
	Box  detection.Box
}

// Strategy picks one candidate from a non-empty list. last is the previously
// resolved pixel center, nil when unknown.
type Strategy interface {
	Pick(cands []Candidate, last *Candidate) Candidate
}

// First picks the first candidate in detector order.
type First struct{}

// Pick implements Strategy.
func (First) Pick(cands []Candidate, _ *Candidate) Candidate {
	return cands[0]
}

// Nearest picks the candidate closest to the last resolved center, falling
// back to the first candidate when there is no history. Ties keep detector order.
type Nearest struct{}

// Pick implements Strategy.
func (Nearest) Pick(cands []Candidate, last *Candidate) Candidate {
	if last == nil {
		return cands[0]
	}
	best := cands[0]
	bestDist := math.Hypot(best.X-last.X, best.Y-last.Y)
	for _, c := range cands[1:] {
		if d := math.Hypot(c.X-last.X, c.Y-last.Y); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// StrategyByName maps a configuration value to a strategy.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "", "first":
		return First{}, nil
	case "nearest":
		return Nearest{}, nil
	default:
		return nil, fmt.Errorf("localize: unknown tie-break %q", name)
	}
}

// Localizer turns detections into a grid position. It remembers the last
// resolved center for the Nearest strategy; it is owned by the control loop.
type Localizer struct {
	ignore   []Rect
	strategy Strategy
	last     *Candidate
}

// New creates a localizer. A nil strategy means First.
func New(ignore []Rect, strategy Strategy) *Localizer {
	if strategy == nil {
		strategy = First{}
	}
	rects := make([]Rect, len(ignore))
	copy(rects, ignore)
	return &Localizer{ignore: rects, strategy: strategy}
}

// Candidates returns the box centers not inside any ignore region, in input order.
func (l *Localizer) Candidates(boxes []detection.Box) []Candidate {
	var out []Candidate
	for _, b := range boxes {
		cx, cy := b.Center()
		if l.ignored(cx, cy) {
			continue
		}
		out = append(out, Candidate{X: cx, Y: cy, Box: b})
	}
	return out
}

// Locate resolves boxes to a cell, or nil when no candidate survives.
func (l *Localizer) Locate(boxes []detection.Box, m geometry.Mapper) *grid.Position {
	cands := l.Candidates(boxes)
	if len(cands) == 0 {
		return nil
	}

	chosen := l.strategy.Pick(cands, l.last)
	l.last = &chosen

	col, row := m.PixelToCell(chosen.X, chosen.Y)
	return &grid.Position{X: col, Y: row}
}

// Reset forgets the last resolved center.
func (l *Localizer) Reset() {
	l.last = nil
}

func (l *Localizer) ignored(x, y float64) bool {
	for _, r := range l.ignore {
		if r.Contains(x, y) {
			return true
		}
	}
	return false
}
