package datalog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/grid"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func readEntries(t *testing.T, l *Logger) []Entry {
	t.Helper()
	f, err := os.Open(filepath.Join(l.Dir(), dataFile))
	if err != nil {
		t.Fatalf("open data file: %v", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestNew_CreatesSessionLayout(t *testing.T) {
	l := newTestLogger(t)

	base := filepath.Base(l.Dir())
	parts := strings.Split(base, "_")
	if len(parts) != 3 || len(parts[0]) != 8 || len(parts[1]) != 6 || len(parts[2]) != 8 {
		t.Errorf("session dir name: got %q, want YYYYmmdd_HHMMSS_xxxxxxxx", base)
	}
	if st, err := os.Stat(filepath.Join(l.Dir(), framesDir)); err != nil || !st.IsDir() {
		t.Errorf("frames dir missing: %v", err)
	}
}

func TestReasons(t *testing.T) {
	at := func(x, y int) *grid.Position { return &grid.Position{X: x, Y: y} }

	l := newTestLogger(t)
	steps := []struct {
		frameID     int
		pos         *grid.Position
		interesting bool
		want        []string
	}{
		{0, at(1, 1), false, []string{ReasonPeriodic}},
		{1, at(1, 1), false, nil},
		{2, at(2, 1), false, []string{ReasonPositionChange}},
		{3, nil, false, []string{ReasonPositionChange}},
		{4, nil, true, []string{ReasonInteresting}},
		{10, at(3, 1), true, []string{ReasonPeriodic, ReasonPositionChange, ReasonInteresting}},
	}

	for _, s := range steps {
		got := l.Reasons(s.frameID, s.pos, s.interesting)
		if !reflect.DeepEqual(got, s.want) {
			t.Errorf("frame %d reasons: got %v, want %v", s.frameID, got, s.want)
		}
		if err := l.Record(s.frameID, nil, grid.State{Character: s.pos}, s.interesting); err != nil {
			t.Fatalf("Record %d: %v", s.frameID, err)
		}
	}

	if got := l.Written(); got != 5 {
		t.Errorf("Written: got %d, want 5", got)
	}
}

func TestRecord_WritesFrameAndEntry(t *testing.T) {
	l := newTestLogger(t)

	f := frame.New(16, 8)
	f.Set(3, 3, frame.BGR{B: 255})
	state := grid.State{
		Grid:      [][]grid.Cell{{grid.Wall, grid.Pellet}},
		Character: &grid.Position{X: 1, Y: 0},
		Counters:  grid.Counters{Total: 1, Eaten: 0, Remaining: 1},
	}

	if err := l.Record(20, f, state, false); err != nil {
		t.Fatalf("Record: %v", err)
	}
	// Not periodic, same position, not interesting
	if err := l.Record(21, f, state, false); err != nil {
		t.Fatalf("Record: %v", err)
	}
	l.Close()

	entries := readEntries(t, l)
	if len(entries) != 1 {
		t.Fatalf("entries: got %d, want 1", len(entries))
	}
	e := entries[0]
	if e.FrameID != 20 || e.ImageFile != "frames/frame_000020.jpg" {
		t.Errorf("entry: got id=%d image=%q", e.FrameID, e.ImageFile)
	}
	if e.Timestamp <= 0 {
		t.Errorf("Timestamp: got %v", e.Timestamp)
	}
	if e.State.Remaining != 1 || e.State.Character == nil || e.State.Character.X != 1 {
		t.Errorf("State: got %+v", e.State)
	}
	if e.State.Grid[0][0] != grid.Wall {
		t.Errorf("State.Grid: got %v", e.State.Grid)
	}

	if _, err := os.Stat(filepath.Join(l.Dir(), e.ImageFile)); err != nil {
		t.Errorf("frame image: %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	l := newTestLogger(t)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
