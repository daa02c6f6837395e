// Package classify decides per-cell wall / pellet / empty state from reference colors.
package classify

import (
	"math"

	"github.com/teslashibe/go-pacvision/pkg/frame"
)

// DefaultTolerance is the Euclidean BGR distance under which two colors match.
const DefaultTolerance = 60.0

// Distance is the Euclidean (L2) distance between two colors in BGR space.
// Every match decision in this package uses it.
func Distance(a, b frame.BGR) float64 {
	db := float64(a.B) - float64(b.B)
	dg := float64(a.G) - float64(b.G)
	dr := float64(a.R) - float64(b.R)
	return math.Sqrt(db*db + dg*dg + dr*dr)
}

// Matches reports whether c is strictly within tol of ref.
func Matches(c, ref frame.BGR, tol float64) bool {
	return Distance(c, ref) < tol
}

// MatchesAny reports whether c is within tol of any color in refs.
func MatchesAny(c frame.BGR, refs []frame.BGR, tol float64) bool {
	for _, ref := range refs {
		if Matches(c, ref, tol) {
			return true
		}
	}
	return false
}

// Palette is the set of reference colors for one game skin.
type Palette struct {
	Walls   []frame.BGR
	Path    frame.BGR
	Pellets []frame.BGR
}

// DefaultPalette returns the arcade maze colors (BGR).
func DefaultPalette() Palette {
	return Palette{
		Walls: []frame.BGR{
			{B: 107, G: 0, R: 37},
			{B: 22, G: 0, R: 166},
			{B: 0, G: 135, R: 0},
			{B: 0, G: 112, R: 101},
		},
		Path: frame.BGR{},
		Pellets: []frame.BGR{
			{B: 174, G: 184, R: 255},
		},
	}
}
