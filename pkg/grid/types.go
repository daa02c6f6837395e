// Package grid holds the per-session maze model: cell states, pellet bookkeeping
// and the resolved character position.
package grid

import "fmt"

// Cell is the classified state of one maze tile.
type Cell int

const (
	// Empty is open path, possibly a pellet already eaten.
	Empty Cell = iota
	// Pellet is a collectible not yet eaten.
	Pellet
	// Wall never changes once the static map is built.
	Wall
)

// String returns a readable name for the cell state.
func (c Cell) String() string {
	switch c {
	case Empty:
		return "empty"
	case Pellet:
		return "pellet"
	case Wall:
		return "wall"
	default:
		return fmt.Sprintf("cell(%d)", int(c))
	}
}

// Position is a grid coordinate. X is the column, Y the row.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Counters is the pellet bookkeeping. Total == Eaten + Remaining always holds.
type Counters struct {
	Total     int `json:"pellets_total"`
	Eaten     int `json:"pellets_eaten"`
	Remaining int `json:"pellets_remaining"`
}

// State is an immutable per-frame snapshot handed to consumers and debug sinks.
type State struct {
	Grid      [][]Cell  `json:"grid"`
	Character *Position `json:"character_position"`
	Counters
}
