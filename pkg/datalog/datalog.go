// Package datalog records perception sessions to disk for offline analysis:
// selected frames as JPEG plus one JSON line per recorded frame.
package datalog

import (
	"encoding/json"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-pacvision/internal/log"
	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/grid"
)

// Reasons a frame is recorded.
const (
	ReasonPeriodic       = "periodic"
	ReasonPositionChange = "position_change"
	ReasonInteresting    = "interesting"
)

const (
	framesDir = "frames"
	dataFile  = "data.jsonl"
)

// Config controls where and how often frames are recorded
type Config struct {
	Dir         string // Parent directory for session directories
	Every       int    // Record every Nth frame; zero disables periodic records
	JPEGQuality int
}

// DefaultConfig returns the default logger settings
func DefaultConfig() Config {
	return Config{
		Dir:         "logs",
		Every:       10,
		JPEGQuality: 90,
	}
}

// Entry is one line of data.jsonl
type Entry struct {
	FrameID   int        `json:"frame_id"`
	Timestamp float64    `json:"timestamp"`
	ImageFile string     `json:"image_file"`
	Reasons   []string   `json:"reasons"`
	State     grid.State `json:"state"`
}

// Logger writes one session directory. Safe for concurrent use.
type Logger struct {
	cfg  Config
	dir  string
	file *os.File
	enc  *json.Encoder

	mu        sync.Mutex
	lastPos   *grid.Position
	hasRecord bool
	written   int
}

// New creates <dir>/<YYYYmmdd_HHMMSS>_<id8>/frames and opens data.jsonl.
func New(cfg Config) (*Logger, error) {
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultConfig().JPEGQuality
	}

	name := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), uuid.New().String()[:8])
	dir := filepath.Join(cfg.Dir, name)
	if err := os.MkdirAll(filepath.Join(dir, framesDir), 0755); err != nil {
		return nil, fmt.Errorf("datalog: create session dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, dataFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("datalog: open %s: %w", dataFile, err)
	}

	log.Info("data logger started", "dir", dir)
	return &Logger{
		cfg:  cfg,
		dir:  dir,
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

// Dir returns the session directory.
func (l *Logger) Dir() string {
	return l.dir
}

// Written returns how many entries have been recorded.
func (l *Logger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Reasons returns why a frame would be recorded, empty when it would not.
func (l *Logger) Reasons(frameID int, pos *grid.Position, interesting bool) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reasons(frameID, pos, interesting)
}

func (l *Logger) reasons(frameID int, pos *grid.Position, interesting bool) []string {
	var out []string
	if l.cfg.Every > 0 && frameID%l.cfg.Every == 0 {
		out = append(out, ReasonPeriodic)
	}
	if l.hasRecord && !samePosition(l.lastPos, pos) {
		out = append(out, ReasonPositionChange)
	}
	if interesting {
		out = append(out, ReasonInteresting)
	}
	return out
}

// Record writes the frame and snapshot when at least one trigger fires. The
// character position is tracked on every call so changes are detected
// between recorded frames too.
func (l *Logger) Record(frameID int, f *frame.Frame, s grid.State, interesting bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	reasons := l.reasons(frameID, s.Character, interesting)
	l.hasRecord = true
	l.lastPos = copyPosition(s.Character)
	if len(reasons) == 0 {
		return nil
	}

	image := filepath.ToSlash(filepath.Join(framesDir, fmt.Sprintf("frame_%06d.jpg", frameID)))
	if f != nil {
		if err := l.writeJPEG(filepath.Join(l.dir, image), f); err != nil {
			return err
		}
	} else {
		image = ""
	}

	entry := Entry{
		FrameID:   frameID,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		ImageFile: image,
		Reasons:   reasons,
		State:     s,
	}
	if err := l.enc.Encode(entry); err != nil {
		return fmt.Errorf("datalog: write entry %d: %w", frameID, err)
	}
	l.written++
	return nil
}

// Close flushes and closes data.jsonl.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	log.Info("data logger closed", "dir", l.dir, "entries", l.written)
	return err
}

func (l *Logger) writeJPEG(path string, f *frame.Frame) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("datalog: create frame: %w", err)
	}
	if err := jpeg.Encode(out, f.ToRGBA(), &jpeg.Options{Quality: l.cfg.JPEGQuality}); err != nil {
		out.Close()
		return fmt.Errorf("datalog: encode frame: %w", err)
	}
	return out.Close()
}

func samePosition(a, b *grid.Position) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyPosition(p *grid.Position) *grid.Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
