// Package session runs the perception control loop: it bootstraps the static
// maze from a burst of frames, then turns every frame into a grid snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-pacvision/internal/log"
	"github.com/teslashibe/go-pacvision/pkg/capture"
	"github.com/teslashibe/go-pacvision/pkg/debug"
	"github.com/teslashibe/go-pacvision/pkg/detection"
	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/geometry"
	"github.com/teslashibe/go-pacvision/pkg/grid"
	"github.com/teslashibe/go-pacvision/pkg/localize"
	"github.com/teslashibe/go-pacvision/pkg/mapextract"
)

// Consumer receives one snapshot per processed frame.
type Consumer interface {
	Consume(grid.State)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(grid.State)

// Consume implements Consumer.
func (f ConsumerFunc) Consume(s grid.State) { f(s) }

// Sink is a debug output such as the dashboard or the console printer.
type Sink interface {
	Publish(grid.State)
}

// BackgroundSink is implemented by sinks that also want the extracted map image.
type BackgroundSink interface {
	PublishBackground(*frame.Frame)
}

// Recorder persists frames and snapshots, typically a datalog.Logger.
type Recorder interface {
	Record(frameID int, f *frame.Frame, s grid.State, interesting bool) error
}

// Session owns the grid and every per-session component. It is driven by a
// single goroutine; Stats and the grid snapshots are safe to read concurrently.
type Session struct {
	id     string
	config Config
	logger *slog.Logger

	source     capture.Source
	detector   detection.Detector
	classifier grid.Classifier
	localizer  *localize.Localizer
	extractor  *mapextract.Extractor
	grid       *grid.Grid

	consumer Consumer
	sinks    []Sink
	recorder Recorder

	background *frame.Frame
	frameID    int
	lastEaten  int

	mu        sync.RWMutex
	latencies []float64
	processed int
	skipped   int
	lagging   int
	lastLag   time.Time
}

// New creates a session. The localizer may be nil for the default
// first-candidate strategy with no ignore areas.
func New(config Config, source capture.Source, detector detection.Detector,
	classifier grid.Classifier, localizer *localize.Localizer) (*Session, error) {
	g, err := grid.New(config.GridWidth, config.GridHeight)
	if err != nil {
		return nil, err
	}
	if localizer == nil {
		localizer = localize.New(nil, nil)
	}
	if config.StatsWindow <= 0 {
		config.StatsWindow = DefaultConfig().StatsWindow
	}

	id := uuid.New().String()
	return &Session{
		id:         id,
		config:     config,
		logger:     log.Component("session").With("session", id[:8]),
		source:     source,
		detector:   detector,
		classifier: classifier,
		localizer:  localizer,
		extractor:  mapextract.New(mapextract.DefaultConfig()),
		grid:       g,
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Grid returns the session's maze model for read access.
func (s *Session) Grid() *grid.Grid {
	return s.grid
}

// Background returns the extracted static map, nil before Bootstrap succeeds.
func (s *Session) Background() *frame.Frame {
	return s.background
}

// SetExtractor replaces the map extractor, e.g. to change the sample interval.
func (s *Session) SetExtractor(e *mapextract.Extractor) {
	s.extractor = e
}

// SetConsumer sets the downstream snapshot consumer.
func (s *Session) SetConsumer(c Consumer) {
	s.consumer = c
}

// AddSink registers a debug sink.
func (s *Session) AddSink(sink Sink) {
	s.sinks = append(s.sinks, sink)
}

// SetRecorder sets the data logger.
func (s *Session) SetRecorder(r Recorder) {
	s.recorder = r
}

// Bootstrap samples frames for the configured duration, extracts the static
// map and initializes the grid from it. When no frame or no valid geometry is
// available the session continues with an uninitialized grid (pellet total 0).
// Calling it twice returns grid.ErrAlreadyInitialized, which is fatal.
func (s *Session) Bootstrap(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.grid.Initialized() {
		return grid.ErrAlreadyInitialized
	}

	s.logger.Info("capturing static map", "duration", s.config.MapCaptureDuration)
	s.extractor.Reset()
	n, err := s.extractor.CaptureFrames(ctx, s.source, s.config.MapCaptureDuration)
	if err != nil {
		return fmt.Errorf("capture map frames: %w", err)
	}

	bg, err := s.extractor.ExtractCleanMap()
	if errors.Is(err, mapextract.ErrNoFrames) {
		s.logger.Warn("no frames for map extraction, continuing without a maze")
		return nil
	}
	if err != nil {
		return err
	}

	m, err := geometry.NewMapper(bg.Width, bg.Height, s.config.Padding, s.config.GridWidth, s.config.GridHeight)
	if err != nil {
		s.logger.Warn("background does not fit the grid, continuing without a maze", "error", err)
		return nil
	}

	if err := s.grid.InitializeFromBackground(bg, m, s.classifier); err != nil {
		return err
	}
	s.background = bg

	c := s.grid.Counters()
	s.logger.Info("maze initialized", "frames", n, "pellets", c.Total)
	debug.Logln(debug.RenderGrid(s.grid.Cells(), nil))

	for _, sink := range s.sinks {
		if bs, ok := sink.(BackgroundSink); ok {
			bs.PublishBackground(bg)
		}
	}
	return nil
}

// Step processes one frame. ok is false when the frame was skipped because no
// frame was available, the geometry did not fit or detection failed. An
// exhausted source is reported as capture.ErrEndOfStream.
func (s *Session) Step(ctx context.Context) (state grid.State, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return grid.State{}, false, err
	}

	f, err := s.source.Capture()
	if errors.Is(err, capture.ErrEndOfStream) {
		return grid.State{}, false, err
	}
	if err != nil || f == nil {
		if !errors.Is(err, capture.ErrNoFrame) && err != nil {
			s.logger.Debug("capture failed", "error", err)
		}
		s.skip()
		return grid.State{}, false, nil
	}

	m, err := geometry.NewMapper(f.Width, f.Height, s.config.Padding, s.config.GridWidth, s.config.GridHeight)
	if err != nil {
		s.logger.Warn("skipping frame", "error", err)
		s.skip()
		return grid.State{}, false, nil
	}

	res, err := s.detector.Detect(f)
	if err != nil {
		s.logger.Warn("detection failed", "error", err)
		s.skip()
		return grid.State{}, false, nil
	}

	boxes := res.Class(s.config.CharacterClass)
	pos := s.localizer.Locate(boxes, m)
	counters := s.grid.Observe(pos)
	state = s.grid.Snapshot(pos)

	if pos != nil {
		debug.FrameLog("🎯 frame %d: %d %s boxes, cell (%d,%d)\n", s.frameID, len(boxes), s.config.CharacterClass, pos.X, pos.Y)
	} else {
		debug.FrameLog("🎯 frame %d: no %s\n", s.frameID, s.config.CharacterClass)
	}

	if s.consumer != nil {
		s.consumer.Consume(state)
	}
	for _, sink := range s.sinks {
		sink.Publish(state)
	}

	if s.recorder != nil {
		ate := counters.Eaten > s.lastEaten
		if err := s.recorder.Record(s.frameID, f, state, ate); err != nil {
			s.logger.Warn("data log write failed", "frame", s.frameID, "error", err)
		}
	}
	s.lastEaten = counters.Eaten
	s.frameID++

	s.mu.Lock()
	s.processed++
	s.mu.Unlock()
	return state, true, nil
}

// Run bootstraps the maze and then steps at the configured frame interval
// until ctx is cancelled, the source ends or a fatal error occurs.
// Cancellation and end of stream return nil.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Bootstrap(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	s.logger.Info("perception loop started", "interval", s.config.FrameInterval)
	for {
		start := time.Now()
		if _, _, err := s.Step(ctx); err != nil {
			if errors.Is(err, capture.ErrEndOfStream) {
				s.logger.Info("frame source exhausted, perception loop stopped", "frames", s.frameID)
				return nil
			}
			if ctx.Err() != nil {
				s.logger.Info("perception loop stopped", "frames", s.frameID)
				return nil
			}
			return err
		}
		elapsed := time.Since(start)
		s.observeLatency(start, elapsed)

		wait := s.config.FrameInterval - elapsed
		if wait <= 0 {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("perception loop stopped", "frames", s.frameID)
			return nil
		case <-time.After(wait):
		}
	}
}

func (s *Session) skip() {
	s.mu.Lock()
	s.skipped++
	s.mu.Unlock()
}

func (s *Session) observeLatency(now time.Time, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latencies = append(s.latencies, float64(elapsed)/float64(time.Millisecond))
	if len(s.latencies) > s.config.StatsWindow {
		s.latencies = s.latencies[len(s.latencies)-s.config.StatsWindow:]
	}

	if s.config.FrameInterval <= 0 || elapsed <= s.config.FrameInterval {
		return
	}
	s.lagging++
	if now.Sub(s.lastLag) >= s.config.LagWarnInterval {
		s.lastLag = now
		s.logger.Warn("loop lagging behind target rate",
			"elapsed", elapsed, "target", s.config.FrameInterval, "lagging_frames", s.lagging)
	}
}
