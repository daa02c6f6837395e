package classify

import (
	"image"
	"math"

	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/geometry"
	"github.com/teslashibe/go-pacvision/pkg/grid"
)

// Config holds the classifier thresholds.
type Config struct {
	Palette   Palette
	Tolerance float64 // L2 distance in BGR

	WallPatch        int     // Odd side of the wall sampling square
	WallMinMatches   int     // Wall if matches > this
	PelletPatchRatio float64 // Pellet square side as a fraction of the smaller cell side
	PelletMinMatches int     // Pellet if matches >= this
}

// DefaultConfig returns the thresholds tuned for the arcade skin.
func DefaultConfig() Config {
	return Config{
		Palette:          DefaultPalette(),
		Tolerance:        DefaultTolerance,
		WallPatch:        3,
		WallMinMatches:   2,
		PelletPatchRatio: 0.6,
		PelletMinMatches: 4,
	}
}

// Classifier labels cells of a clean background frame. It is stateless and safe
// for concurrent use.
type Classifier struct {
	cfg Config
}

// New creates a classifier. Non-positive or even patch sizes are corrected.
func New(cfg Config) *Classifier {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	cfg.WallPatch = oddAtLeastOne(cfg.WallPatch)
	if cfg.PelletPatchRatio <= 0 {
		cfg.PelletPatchRatio = 0.6
	}
	return &Classifier{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Classify returns the state of cell (col, row) in f.
func (c *Classifier) Classify(f *frame.Frame, m geometry.Mapper, col, row int) grid.Cell {
	cx, cy := m.CellCenterPixel(col, row)

	// Fast path: open corridor at the center
	if Matches(f.At(cx, cy), c.cfg.Palette.Path, c.cfg.Tolerance) {
		return grid.Empty
	}

	wallPatch := patch(cx, cy, c.cfg.WallPatch).Intersect(f.Bounds())
	if c.countMatches(f, wallPatch, c.cfg.Palette.Walls) > c.cfg.WallMinMatches {
		return grid.Wall
	}

	cw, ch := m.CellSize()
	side := oddAtLeastOne(int(c.cfg.PelletPatchRatio * math.Min(cw, ch)))
	pelletPatch := patch(cx, cy, side).Intersect(f.Bounds())
	if c.countMatches(f, pelletPatch, c.cfg.Palette.Pellets) >= c.cfg.PelletMinMatches {
		return grid.Pellet
	}

	return grid.Empty
}

// ClassifyAll labels every cell, indexed [row][col].
func (c *Classifier) ClassifyAll(f *frame.Frame, m geometry.Mapper) [][]grid.Cell {
	cols, rows := m.GridSize()
	out := make([][]grid.Cell, rows)
	for r := 0; r < rows; r++ {
		out[r] = make([]grid.Cell, cols)
		for col := 0; col < cols; col++ {
			out[r][col] = c.Classify(f, m, col, r)
		}
	}
	return out
}

func (c *Classifier) countMatches(f *frame.Frame, r image.Rectangle, refs []frame.BGR) int {
	if len(refs) == 0 {
		return 0
	}
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if MatchesAny(f.At(x, y), refs, c.cfg.Tolerance) {
				n++
			}
		}
	}
	return n
}

// patch returns the side x side square centered on (cx, cy).
func patch(cx, cy, side int) image.Rectangle {
	half := side / 2
	return image.Rect(cx-half, cy-half, cx+half+1, cy+half+1)
}

func oddAtLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	if n%2 == 0 {
		return n + 1
	}
	return n
}
