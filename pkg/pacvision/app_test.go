package pacvision

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-pacvision/internal/config"
	"github.com/teslashibe/go-pacvision/pkg/capture"
	"github.com/teslashibe/go-pacvision/pkg/classify"
	"github.com/teslashibe/go-pacvision/pkg/detection"
	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/grid"
	"github.com/teslashibe/go-pacvision/pkg/session"
)

type stubDetector struct{ closed bool }

func (d *stubDetector) Detect(*frame.Frame) (detection.Result, error) {
	// Character centered in cell (1,1) of a 4x3 grid over 40x30 pixels
	return detection.Result{detection.ClassCharacter: {{X: 13, Y: 13, W: 4, H: 4}}}, nil
}

func (d *stubDetector) Close() error {
	d.closed = true
	return nil
}

// mazeFrame paints walls on the border and one pellet dot per inner cell.
func mazeFrame() *frame.Frame {
	pal := classify.DefaultPalette()
	f := frame.New(40, 30)
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			if x < 10 || x >= 30 || y < 10 || y >= 20 {
				f.Set(x, y, pal.Walls[0])
			}
		}
	}
	for _, cx := range []int{15, 25} {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				f.Set(cx+dx, 15+dy, pal.Pellets[0])
			}
		}
	}
	return f
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.GridWidth, cfg.GridHeight = 4, 3
	cfg.CaptureRegion = capture.Region{}
	cfg.MapCaptureDuration = 30 * time.Millisecond
	cfg.MapCaptureInterval = 5 * time.Millisecond
	cfg.TargetFPS = 200
	cfg.LogDir = t.TempDir()
	return cfg
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.GridWidth = 0
	if _, err := New(cfg); err == nil {
		t.Error("New: expected error for zero grid width")
	}
}

func TestApp_RunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	det := &stubDetector{}
	app.SetSource(capture.SourceFunc(func() (*frame.Frame, error) { return mazeFrame(), nil }))
	app.SetDetector(det)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last grid.State
	frames := 0
	app.SetConsumer(session.ConsumerFunc(func(s grid.State) {
		last = s
		frames++
		if frames == 3 {
			cancel()
		}
	}))

	if err := app.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	app.Shutdown()

	if last.Total != 2 || last.Eaten != 1 || last.Remaining != 1 {
		t.Errorf("counters: got %+v, want total=2 eaten=1", last.Counters)
	}
	if last.Character == nil || *last.Character != (grid.Position{X: 1, Y: 1}) {
		t.Errorf("character: got %v, want (1,1)", last.Character)
	}
	if last.Grid[0][0] != grid.Wall {
		t.Errorf("corner: got %v, want wall", last.Grid[0][0])
	}
	if !det.closed {
		t.Error("detector not closed on shutdown")
	}

	// Data logger recorded at least frame 0
	sessions, err := os.ReadDir(cfg.LogDir)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("log dir: %v, %d sessions", err, len(sessions))
	}
	data, err := os.ReadFile(filepath.Join(cfg.LogDir, sessions[0].Name(), "data.jsonl"))
	if err != nil || len(data) == 0 {
		t.Errorf("data.jsonl: %v, %d bytes", err, len(data))
	}
}

func TestApp_RunBeforeInit(t *testing.T) {
	app, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.Run(context.Background()); err == nil {
		t.Error("Run before Init: expected error")
	}
}
