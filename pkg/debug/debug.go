// Package debug provides global debug logging flags and grid rendering
package debug

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-pacvision/pkg/grid"
)

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether per-frame detection logs are shown.
// Use --debug-frames to enable these very verbose logs
var Frames bool

// Log prints a message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		fmt.Printf(format, args...)
	}
}

// Logln prints a message with newline only if debug mode is enabled
func Logln(msg string) {
	if Enabled {
		fmt.Println(msg)
	}
}

// FrameLog prints a message only if per-frame debug mode is enabled
func FrameLog(format string, args ...interface{}) {
	if Frames {
		fmt.Printf(format, args...)
	}
}

// Glyphs used by RenderGrid.
const (
	GlyphWall      = '#'
	GlyphPellet    = '.'
	GlyphEmpty     = ' '
	GlyphCharacter = 'P'
)

// RenderGrid draws the maze one row per line. The character cell, when known,
// overrides whatever is underneath it.
func RenderGrid(cells [][]grid.Cell, pos *grid.Position) string {
	var b strings.Builder
	for y, row := range cells {
		for x, c := range row {
			if pos != nil && pos.X == x && pos.Y == y {
				b.WriteByte(GlyphCharacter)
				continue
			}
			switch c {
			case grid.Wall:
				b.WriteByte(GlyphWall)
			case grid.Pellet:
				b.WriteByte(GlyphPellet)
			default:
				b.WriteByte(GlyphEmpty)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Printer is a debug sink that prints each snapshot while debug mode is on.
type Printer struct {
	// Every prints one in N snapshots; zero or one prints all of them
	Every int
	n     int
}

// Publish renders the snapshot with its counters.
func (p *Printer) Publish(s grid.State) {
	if !Enabled {
		return
	}
	p.n++
	if p.Every > 1 && (p.n-1)%p.Every != 0 {
		return
	}

	pos := "none"
	if s.Character != nil {
		pos = fmt.Sprintf("(%d,%d)", s.Character.X, s.Character.Y)
	}
	fmt.Printf("🎮 character=%s pellets %d/%d eaten, %d left\n%s",
		pos, s.Eaten, s.Total, s.Remaining, RenderGrid(s.Grid, s.Character))
}
