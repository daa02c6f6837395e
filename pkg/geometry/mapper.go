// Package geometry maps between capture pixel space and maze grid cells.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrGeometry is returned when padding and frame size leave no playable area.
// Callers treat it as "mapping unavailable this frame", not as a fatal error.
var ErrGeometry = errors.New("geometry: invalid geometry")

// Padding is the pixel margin between the capture boundary and the grid area.
type Padding struct {
	Top    int `json:"top" yaml:"top"`
	Bottom int `json:"bottom" yaml:"bottom"`
	Left   int `json:"left" yaml:"left"`
	Right  int `json:"right" yaml:"right"`
}

// Validate rejects negative margins.
func (p Padding) Validate() error {
	if p.Top < 0 || p.Bottom < 0 || p.Left < 0 || p.Right < 0 {
		return fmt.Errorf("%w: negative padding %+v", ErrGeometry, p)
	}
	return nil
}

// Effective returns the playable width and height inside a frame of the given size.
func (p Padding) Effective(width, height int) (int, int) {
	return width - p.Left - p.Right, height - p.Top - p.Bottom
}

// Mapper converts pixel coordinates to cells and back for one frame size.
// Cell sizes are kept as float64 so rounding does not accumulate across the grid.
type Mapper struct {
	pad        Padding
	gridW      int
	gridH      int
	cellWidth  float64
	cellHeight float64
}

// NewMapper builds a mapper for a width x height frame split into gridW x gridH cells.
func NewMapper(width, height int, pad Padding, gridW, gridH int) (Mapper, error) {
	if gridW <= 0 || gridH <= 0 {
		return Mapper{}, fmt.Errorf("%w: grid size %dx%d", ErrGeometry, gridW, gridH)
	}
	if err := pad.Validate(); err != nil {
		return Mapper{}, err
	}

	effW, effH := pad.Effective(width, height)
	if effW <= 0 || effH <= 0 {
		return Mapper{}, fmt.Errorf("%w: effective area %dx%d for frame %dx%d", ErrGeometry, effW, effH, width, height)
	}

	return Mapper{
		pad:        pad,
		gridW:      gridW,
		gridH:      gridH,
		cellWidth:  float64(effW) / float64(gridW),
		cellHeight: float64(effH) / float64(gridH),
	}, nil
}

// GridSize returns the grid cardinality.
func (m Mapper) GridSize() (cols, rows int) {
	return m.gridW, m.gridH
}

// CellSize returns the real-valued cell dimensions in pixels.
func (m Mapper) CellSize() (w, h float64) {
	return m.cellWidth, m.cellHeight
}

// Padding returns the margins the mapper was built with.
func (m Mapper) Padding() Padding {
	return m.pad
}

// PixelToCell returns the cell containing pixel (px, py), clamped to the grid.
func (m Mapper) PixelToCell(px, py float64) (col, row int) {
	col = int(math.Floor((px - float64(m.pad.Left)) / m.cellWidth))
	row = int(math.Floor((py - float64(m.pad.Top)) / m.cellHeight))
	return clamp(col, 0, m.gridW-1), clamp(row, 0, m.gridH-1)
}

// CellCenterPixel returns the pixel at the center of cell (col, row).
func (m Mapper) CellCenterPixel(col, row int) (px, py int) {
	px = m.pad.Left + int(math.Floor((float64(col)+0.5)*m.cellWidth))
	py = m.pad.Top + int(math.Floor((float64(row)+0.5)*m.cellHeight))
	return px, py
}

// CellRect returns the pixel bounds of cell (col, row).
func (m Mapper) CellRect(col, row int) image.Rectangle {
	x0 := m.pad.Left + int(math.Floor(float64(col)*m.cellWidth))
	y0 := m.pad.Top + int(math.Floor(float64(row)*m.cellHeight))
	x1 := m.pad.Left + int(math.Floor(float64(col+1)*m.cellWidth))
	y1 := m.pad.Top + int(math.Floor(float64(row+1)*m.cellHeight))
	return image.Rect(x0, y0, x1, y1)
}

// InGrid reports whether (col, row) is a valid cell.
func (m Mapper) InGrid(col, row int) bool {
	return col >= 0 && row >= 0 && col < m.gridW && row < m.gridH
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
