package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-pacvision/pkg/capture"
	"github.com/teslashibe/go-pacvision/pkg/detection"
	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/geometry"
	"github.com/teslashibe/go-pacvision/pkg/grid"
	"github.com/teslashibe/go-pacvision/pkg/localize"
	"github.com/teslashibe/go-pacvision/pkg/mapextract"
)

// 4x3 maze, 10px cells:
//
//	####
//	#..#
//	####
var layout = [][]grid.Cell{
	{grid.Wall, grid.Wall, grid.Wall, grid.Wall},
	{grid.Wall, grid.Pellet, grid.Pellet, grid.Wall},
	{grid.Wall, grid.Wall, grid.Wall, grid.Wall},
}

type layoutClassifier struct{}

func (layoutClassifier) Classify(_ *frame.Frame, _ geometry.Mapper, col, row int) grid.Cell {
	return layout[row][col]
}

// scriptedDetector returns one result per call, repeating the last one.
type scriptedDetector struct {
	mu      sync.Mutex
	results []detection.Result
	err     error
	calls   int
}

func (d *scriptedDetector) Detect(*frame.Frame) (detection.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if len(d.results) == 0 {
		return detection.Result{}, nil
	}
	r := d.results[0]
	if len(d.results) > 1 {
		d.results = d.results[1:]
	}
	return r, nil
}

func (d *scriptedDetector) Close() error { return nil }

// boxAt returns a 4x4 character box centered on a cell center.
func boxAt(col, row int) detection.Result {
	cx, cy := col*10+5, row*10+5
	return detection.Result{"pacman": {{X: cx - 2, Y: cy - 2, W: 4, H: 4, Confidence: 0.9}}}
}

type recordedState struct {
	frameID     int
	interesting bool
	state       grid.State
}

type fakeRecorder struct {
	records []recordedState
}

func (r *fakeRecorder) Record(frameID int, _ *frame.Frame, s grid.State, interesting bool) error {
	r.records = append(r.records, recordedState{frameID, interesting, s})
	return nil
}

type fakeSink struct {
	states     []grid.State
	background *frame.Frame
}

func (s *fakeSink) Publish(st grid.State) { s.states = append(s.states, st) }
func (s *fakeSink) PublishBackground(f *frame.Frame) { s.background = f }

func frameSource() capture.Source {
	return capture.SourceFunc(func() (*frame.Frame, error) {
		return frame.New(40, 30), nil
	})
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.GridWidth, cfg.GridHeight = 4, 3
	cfg.MapCaptureDuration = time.Second
	cfg.FrameInterval = time.Millisecond
	return cfg
}

func newTestSession(t *testing.T, cfg Config, src capture.Source, det detection.Detector, loc *localize.Localizer) *Session {
	t.Helper()
	s, err := New(cfg, src, det, layoutClassifier{}, loc)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetExtractor(mapextract.New(mapextract.Config{Interval: time.Millisecond, MaxFrames: 3}))
	return s
}

func TestBootstrap_InitializesGrid(t *testing.T) {
	s := newTestSession(t, testConfig(), frameSource(), &scriptedDetector{}, nil)
	sink := &fakeSink{}
	s.AddSink(sink)

	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	if !s.Grid().Initialized() {
		t.Fatal("grid not initialized")
	}
	c := s.Grid().Counters()
	if c.Total != 2 || c.Remaining != 2 || c.Eaten != 0 {
		t.Errorf("counters: got %+v, want total=2 remaining=2", c)
	}
	if s.Background() == nil || sink.background != s.Background() {
		t.Error("background not published to sink")
	}
	if len(s.ID()) != 36 {
		t.Errorf("ID: got %q, want a uuid", s.ID())
	}
}

func TestBootstrap_NoFramesFallsBack(t *testing.T) {
	src := capture.SourceFunc(func() (*frame.Frame, error) { return nil, capture.ErrNoFrame })
	cfg := testConfig()
	cfg.MapCaptureDuration = 20 * time.Millisecond
	s := newTestSession(t, cfg, src, &scriptedDetector{}, nil)

	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if s.Grid().Initialized() {
		t.Error("grid should stay uninitialized")
	}
	if got := s.Stats().Counters.Total; got != 0 {
		t.Errorf("Total: got %d, want 0", got)
	}
}

func TestBootstrap_TwiceIsFatal(t *testing.T) {
	s := newTestSession(t, testConfig(), frameSource(), &scriptedDetector{}, nil)

	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("first Bootstrap: %v", err)
	}
	if err := s.Bootstrap(context.Background()); !errors.Is(err, grid.ErrAlreadyInitialized) {
		t.Errorf("second Bootstrap: got %v, want ErrAlreadyInitialized", err)
	}
}

func TestBootstrap_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSession(t, testConfig(), frameSource(), &scriptedDetector{}, nil)
	if err := s.Bootstrap(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Bootstrap: got %v, want context.Canceled", err)
	}
}

func TestStep_EatsPelletAndFansOut(t *testing.T) {
	det := &scriptedDetector{results: []detection.Result{boxAt(1, 1), boxAt(1, 1), boxAt(2, 1)}}
	s := newTestSession(t, testConfig(), frameSource(), det, nil)

	var consumed []grid.State
	s.SetConsumer(ConsumerFunc(func(st grid.State) { consumed = append(consumed, st) }))
	sink := &fakeSink{}
	s.AddSink(sink)
	rec := &fakeRecorder{}
	s.SetRecorder(rec)

	ctx := context.Background()
	if err := s.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	wantEaten := []int{1, 1, 2}
	wantInteresting := []bool{true, false, true}
	for i := range wantEaten {
		st, ok, err := s.Step(ctx)
		if err != nil || !ok {
			t.Fatalf("Step %d: ok=%v err=%v", i, ok, err)
		}
		if st.Eaten != wantEaten[i] {
			t.Errorf("Step %d Eaten: got %d, want %d", i, st.Eaten, wantEaten[i])
		}
		if st.Total != st.Eaten+st.Remaining {
			t.Errorf("Step %d: counters inconsistent %+v", i, st.Counters)
		}
		if rec.records[i].interesting != wantInteresting[i] {
			t.Errorf("Step %d interesting: got %v, want %v", i, rec.records[i].interesting, wantInteresting[i])
		}
		if rec.records[i].frameID != i {
			t.Errorf("Step %d frameID: got %d", i, rec.records[i].frameID)
		}
	}

	last := consumed[len(consumed)-1]
	if last.Character == nil || *last.Character != (grid.Position{X: 2, Y: 1}) {
		t.Errorf("Character: got %v, want (2,1)", last.Character)
	}
	if last.Grid[1][1] != grid.Empty || last.Grid[1][2] != grid.Empty {
		t.Errorf("eaten cells should be empty: %v", last.Grid[1])
	}
	if len(consumed) != 3 || len(sink.states) != 3 {
		t.Errorf("fan-out: consumer got %d, sink got %d, want 3", len(consumed), len(sink.states))
	}
	if got := s.Stats().Processed; got != 3 {
		t.Errorf("Processed: got %d, want 3", got)
	}
}

func TestStep_Skips(t *testing.T) {
	tests := []struct {
		name string
		src  capture.Source
		det  *scriptedDetector
		pad  geometry.Padding
	}{
		{
			name: "no frame",
			src:  capture.SourceFunc(func() (*frame.Frame, error) { return nil, capture.ErrNoFrame }),
			det:  &scriptedDetector{},
		},
		{
			name: "capture error",
			src:  capture.SourceFunc(func() (*frame.Frame, error) { return nil, errors.New("display gone") }),
			det:  &scriptedDetector{},
		},
		{
			name: "padding larger than frame",
			src:  frameSource(),
			det:  &scriptedDetector{},
			pad:  geometry.Padding{Top: 20, Bottom: 20},
		},
		{
			name: "detector error",
			src:  frameSource(),
			det:  &scriptedDetector{err: errors.New("model missing")},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Padding = tc.pad
			s := newTestSession(t, cfg, tc.src, tc.det, nil)
			called := false
			s.SetConsumer(ConsumerFunc(func(grid.State) { called = true }))

			_, ok, err := s.Step(context.Background())
			if err != nil {
				t.Fatalf("Step: %v", err)
			}
			if ok {
				t.Error("Step: got ok, want skipped")
			}
			if called {
				t.Error("consumer called for skipped frame")
			}
			if got := s.Stats().Skipped; got != 1 {
				t.Errorf("Skipped: got %d, want 1", got)
			}
		})
	}
}

func TestStep_UninitializedGridStillLocates(t *testing.T) {
	det := &scriptedDetector{results: []detection.Result{boxAt(2, 1)}}
	s := newTestSession(t, testConfig(), frameSource(), det, nil)

	st, ok, err := s.Step(context.Background())
	if err != nil || !ok {
		t.Fatalf("Step: ok=%v err=%v", ok, err)
	}
	if st.Character == nil || *st.Character != (grid.Position{X: 2, Y: 1}) {
		t.Errorf("Character: got %v, want (2,1)", st.Character)
	}
	if st.Total != 0 || st.Eaten != 0 {
		t.Errorf("counters: got %+v, want zero", st.Counters)
	}
}

func TestStep_IgnoreAreaHidesCharacter(t *testing.T) {
	det := &scriptedDetector{results: []detection.Result{boxAt(1, 1)}}
	loc := localize.New([]localize.Rect{{X: 10, Y: 10, W: 10, H: 10}}, nil)
	s := newTestSession(t, testConfig(), frameSource(), det, loc)
	if err := s.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	st, ok, err := s.Step(context.Background())
	if err != nil || !ok {
		t.Fatalf("Step: ok=%v err=%v", ok, err)
	}
	if st.Character != nil {
		t.Errorf("Character: got %v, want nil", st.Character)
	}
	if st.Eaten != 0 {
		t.Errorf("Eaten: got %d, want 0", st.Eaten)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	det := &scriptedDetector{results: []detection.Result{boxAt(1, 1)}}
	s := newTestSession(t, testConfig(), frameSource(), det, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	n := 0
	s.SetConsumer(ConsumerFunc(func(grid.State) {
		n++
		if n >= 5 {
			once.Do(cancel)
		}
	}))

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: got %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Run did not stop")
	}

	st := s.Stats()
	if !st.Initialized {
		t.Error("Stats: grid not initialized")
	}
	if st.Processed < 5 {
		t.Errorf("Processed: got %d, want >= 5", st.Processed)
	}
	if st.MeanMs < 0 || st.MaxMs < st.MeanMs {
		t.Errorf("latency stats inconsistent: mean=%v max=%v", st.MeanMs, st.MaxMs)
	}
	if st.Counters.Eaten != 1 {
		t.Errorf("Eaten: got %d, want 1", st.Counters.Eaten)
	}
}

func TestRun_StopsAtEndOfStream(t *testing.T) {
	var mu sync.Mutex
	left := 8
	src := capture.SourceFunc(func() (*frame.Frame, error) {
		mu.Lock()
		defer mu.Unlock()
		if left == 0 {
			return nil, capture.ErrEndOfStream
		}
		left--
		return frame.New(40, 30), nil
	})
	det := &scriptedDetector{results: []detection.Result{boxAt(1, 1)}}
	s := newTestSession(t, testConfig(), src, det, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: got %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept going after the source ended")
	}

	// 3 frames go to map extraction, the other 5 through the loop
	st := s.Stats()
	if st.Processed != 5 {
		t.Errorf("Processed: got %d, want 5", st.Processed)
	}
	if st.Skipped != 0 {
		t.Errorf("Skipped: got %d, want 0", st.Skipped)
	}
}

func TestStep_EndOfStream(t *testing.T) {
	src := capture.SourceFunc(func() (*frame.Frame, error) { return nil, capture.ErrEndOfStream })
	s := newTestSession(t, testConfig(), src, &scriptedDetector{}, nil)

	_, ok, err := s.Step(context.Background())
	if ok || !errors.Is(err, capture.ErrEndOfStream) {
		t.Errorf("Step: got ok=%v err=%v, want ErrEndOfStream", ok, err)
	}
}

func TestObserveLatency_WindowAndLag(t *testing.T) {
	cfg := testConfig()
	cfg.StatsWindow = 3
	cfg.FrameInterval = 10 * time.Millisecond
	s := newTestSession(t, cfg, frameSource(), &scriptedDetector{}, nil)

	now := time.Now()
	for _, ms := range []int{5, 5, 20, 30} {
		s.observeLatency(now, time.Duration(ms)*time.Millisecond)
	}

	st := s.Stats()
	if len(s.latencies) != 3 {
		t.Errorf("window: got %d samples, want 3", len(s.latencies))
	}
	if st.Lagging != 2 {
		t.Errorf("Lagging: got %d, want 2", st.Lagging)
	}
	if st.MaxMs != 30 {
		t.Errorf("MaxMs: got %v, want 30", st.MaxMs)
	}
	// 5, 20, 30
	if st.MeanMs < 18.33 || st.MeanMs > 18.34 {
		t.Errorf("MeanMs: got %v, want ~18.33", st.MeanMs)
	}
}
