// Package pacvision wires the perception pipeline into a runnable application:
// frame source, detector, maze model, control loop and debug outputs.
package pacvision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-pacvision/internal/config"
	"github.com/teslashibe/go-pacvision/internal/log"
	"github.com/teslashibe/go-pacvision/pkg/capture"
	"github.com/teslashibe/go-pacvision/pkg/classify"
	"github.com/teslashibe/go-pacvision/pkg/datalog"
	"github.com/teslashibe/go-pacvision/pkg/debug"
	"github.com/teslashibe/go-pacvision/pkg/detection"
	"github.com/teslashibe/go-pacvision/pkg/localize"
	"github.com/teslashibe/go-pacvision/pkg/mapextract"
	"github.com/teslashibe/go-pacvision/pkg/session"
	"github.com/teslashibe/go-pacvision/pkg/web"
)

// App is the pacvision application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config config.Config
	logger *slog.Logger

	// Perception
	source   capture.Source
	detector detection.Detector
	session  *session.Session
	consumer session.Consumer

	// Outputs
	webServer *web.Server
	dataLog   *datalog.Logger
}

// New validates the configuration and sets up logging.
func New(cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Setup(log.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	debug.Enabled = cfg.Debug

	return &App{
		config: cfg,
		logger: log.Component("app"),
	}, nil
}

// SetSource overrides the frame source chosen from the configuration.
func (a *App) SetSource(src capture.Source) {
	a.source = src
}

// SetDetector overrides the configured detector.
func (a *App) SetDetector(d detection.Detector) {
	a.detector = d
}

// SetConsumer sets the downstream consumer of grid snapshots.
func (a *App) SetConsumer(c session.Consumer) {
	a.consumer = c
}

// Session returns the control loop, nil before Init.
func (a *App) Session() *session.Session {
	return a.session
}

// Init builds every component. Call this after New() and before Run().
func (a *App) Init() error {
	fmt.Println("🟡 pacvision - maze perception")
	fmt.Println("==============================")
	if debug.Enabled {
		fmt.Println("🐛 Debug mode enabled")
	}

	if a.source == nil {
		src, err := a.openSource()
		if err != nil {
			return fmt.Errorf("frame source: %w", err)
		}
		a.source = src
	}

	if a.detector == nil {
		fmt.Print("🔍 Loading detector templates... ")
		d, err := detection.NewTemplate(a.detectorConfig())
		if err != nil {
			return fmt.Errorf("detector: %w", err)
		}
		a.detector = d
		fmt.Println("✅")
	}

	strategy, err := localize.StrategyByName(a.config.TieBreak)
	if err != nil {
		return err
	}

	s, err := session.New(a.sessionConfig(), a.source, a.detector,
		classify.New(a.config.ClassifierConfig()),
		localize.New(a.config.IgnoreAreas, strategy))
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	s.SetExtractor(mapextract.New(mapextract.Config{
		Interval:  a.config.MapCaptureInterval,
		MaxFrames: mapextract.DefaultMaxFrames,
	}))
	if a.consumer != nil {
		s.SetConsumer(a.consumer)
	}
	s.AddSink(&debug.Printer{Every: a.config.TargetFPS})
	a.session = s

	if a.config.LogDir != "" {
		dl, err := datalog.New(datalog.Config{Dir: a.config.LogDir, Every: 10})
		if err != nil {
			a.logger.Warn("data logger disabled", "error", err)
		} else {
			a.dataLog = dl
			s.SetRecorder(dl)
		}
	}

	if a.config.DashboardPort != "" {
		a.webServer = web.NewServer(a.config.DashboardPort)
		a.webServer.StatsFunc = s.Stats
		s.AddSink(a.webServer)
	}

	a.logger.Info("initialized", "session", s.ID(), "grid", fmt.Sprintf("%dx%d", a.config.GridWidth, a.config.GridHeight))
	return nil
}

// Run bootstraps the maze and runs the loop. Blocks until ctx is cancelled
// or the session halts.
func (a *App) Run(ctx context.Context) error {
	if a.session == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.webServer != nil {
		a.webServer.StartAsync()
		a.webServer.AddEvent("info", "session "+a.session.ID()[:8]+" started")
	}

	fmt.Println("\n🎮 Watching the maze... (Ctrl+C to exit)")
	return a.session.Run(ctx)
}

// Shutdown releases every component.
func (a *App) Shutdown() {
	if a.session != nil {
		st := a.session.Stats()
		a.logger.Info("session summary",
			"frames", st.Processed, "skipped", st.Skipped, "lagging", st.Lagging,
			"latency_mean_ms", st.MeanMs, "pellets_eaten", st.Counters.Eaten)
	}
	if a.webServer != nil {
		a.webServer.Shutdown()
	}
	if a.dataLog != nil {
		a.dataLog.Close()
	}
	if a.detector != nil {
		a.detector.Close()
	}
	fmt.Println("\n👋 Goodbye!")
}

func (a *App) openSource() (capture.Source, error) {
	if a.config.ReplayDir != "" {
		r, err := capture.NewReplay(a.config.ReplayDir, false)
		if err != nil {
			return nil, err
		}
		a.logger.Info("replaying frames", "dir", a.config.ReplayDir, "frames", r.Len())
		return r, nil
	}
	return capture.NewScreen(a.config.CaptureRegion)
}

func (a *App) detectorConfig() detection.Config {
	dc := detection.DefaultConfig()
	dc.TemplateDir = a.config.TemplateDir
	dc.Thresholds[a.config.CharacterClass] = float32(a.config.MatchThreshold)
	return dc
}

func (a *App) sessionConfig() session.Config {
	sc := session.DefaultConfig()
	sc.GridWidth = a.config.GridWidth
	sc.GridHeight = a.config.GridHeight
	sc.Padding = a.config.Padding
	sc.CharacterClass = a.config.CharacterClass
	sc.MapCaptureDuration = a.config.MapCaptureDuration
	sc.FrameInterval = a.config.FrameInterval()
	return sc
}
