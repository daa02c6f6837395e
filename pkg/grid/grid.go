package grid

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/geometry"
)

// Default maze cardinality.
const (
	DefaultWidth  = 28
	DefaultHeight = 31
)

// ErrAlreadyInitialized is returned when the static map is built twice in one session.
// Re-initializing would silently reset pellet progress, so the session must halt.
var ErrAlreadyInitialized = errors.New("grid: already initialized")

// Classifier decides the state of one cell from a background frame.
type Classifier interface {
	Classify(f *frame.Frame, m geometry.Mapper, col, row int) Cell
}

// Grid is the session's maze model. One writer (the control loop) mutates it;
// any number of readers take copies via Cells, Counters or Snapshot.
type Grid struct {
	mu          sync.RWMutex
	width       int
	height      int
	cells       [][]Cell
	counters    Counters
	initialized bool
}

// New allocates an all-empty grid.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid: invalid size %dx%d", width, height)
	}

	cells := make([][]Cell, height)
	for r := range cells {
		cells[r] = make([]Cell, width)
	}

	return &Grid{
		width:  width,
		height: height,
		cells:  cells,
	}, nil
}

// Size returns the grid dimensions.
func (g *Grid) Size() (width, height int) {
	return g.width, g.height
}

// Initialized reports whether the static map has been built.
func (g *Grid) Initialized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.initialized
}

// InitializeFromBackground classifies every cell of bg and fixes the pellet total.
// It may succeed at most once per grid.
func (g *Grid) InitializeFromBackground(bg *frame.Frame, m geometry.Mapper, c Classifier) error {
	if bg == nil {
		return errors.New("grid: nil background")
	}
	if cols, rows := m.GridSize(); cols != g.width || rows != g.height {
		return fmt.Errorf("grid: mapper is %dx%d, grid is %dx%d", cols, rows, g.width, g.height)
	}

	// Classify outside the lock; it only reads bg.
	cells := make([][]Cell, g.height)
	total := 0
	for r := 0; r < g.height; r++ {
		cells[r] = make([]Cell, g.width)
		for col := 0; col < g.width; col++ {
			cells[r][col] = c.Classify(bg, m, col, r)
			if cells[r][col] == Pellet {
				total++
			}
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.initialized {
		return ErrAlreadyInitialized
	}

	g.cells = cells
	g.counters = Counters{Total: total, Remaining: total}
	g.initialized = true
	return nil
}

// Observe records the character at pos. A pellet under it becomes empty, then
// the counters are recounted from the cells. A nil pos only recounts.
func (g *Grid) Observe(pos *Position) Counters {
	g.mu.Lock()
	defer g.mu.Unlock()

	if pos != nil && g.inBounds(pos.X, pos.Y) && g.cells[pos.Y][pos.X] == Pellet {
		g.cells[pos.Y][pos.X] = Empty
	}

	remaining := 0
	for _, row := range g.cells {
		for _, c := range row {
			if c == Pellet {
				remaining++
			}
		}
	}

	g.counters.Remaining = remaining
	g.counters.Eaten = g.counters.Total - remaining
	return g.counters
}

// Cell returns the state at (col, row); out-of-range cells read as Wall.
func (g *Grid) Cell(col, row int) Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.inBounds(col, row) {
		return Wall
	}
	return g.cells[row][col]
}

// Cells returns a deep copy of the grid indexed [row][col].
func (g *Grid) Cells() [][]Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.copyCells()
}

// Counters returns the current pellet counters.
func (g *Grid) Counters() Counters {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.counters
}

// Snapshot returns an immutable copy of the model with the given character position.
func (g *Grid) Snapshot(pos *Position) State {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var p *Position
	if pos != nil {
		cp := *pos
		p = &cp
	}

	return State{
		Grid:      g.copyCells(),
		Character: p,
		Counters:  g.counters,
	}
}

func (g *Grid) copyCells() [][]Cell {
	out := make([][]Cell, len(g.cells))
	for r, row := range g.cells {
		out[r] = make([]Cell, len(row))
		copy(out[r], row)
	}
	return out
}

func (g *Grid) inBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.width && row < g.height
}
