// pacvision - screen-pixel maze perception
// Captures the game window, builds the static maze and tracks the player
// character and pellet progress frame by frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-pacvision/internal/config"
	"github.com/teslashibe/go-pacvision/pkg/debug"
	"github.com/teslashibe/go-pacvision/pkg/grid"
	"github.com/teslashibe/go-pacvision/pkg/pacvision"
)

func main() {
	cfg, saveTo := parseFlags()

	if saveTo != "" {
		if err := cfg.Save(saveTo); err != nil {
			log.Fatalf("❌ Save config: %v", err)
		}
		log.Printf("💾 Config written to %s", saveTo)
		return
	}

	app, err := pacvision.New(cfg)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	// Stand-in for the decision agent: report pellet progress
	app.SetConsumer(&progressReporter{})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, app)
	cancel()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// lifecycle is the part of the App that main drives.
type lifecycle interface {
	Init() error
	Run(ctx context.Context) error
	Shutdown()
}

// run initializes and runs the app. Shutdown always happens before it
// returns, so log files, templates and the dashboard are released even when
// the caller exits with an error.
func run(ctx context.Context, app lifecycle) error {
	defer app.Shutdown()

	if err := app.Init(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := app.Run(ctx); err != nil {
		return fmt.Errorf("runtime error: %w", err)
	}
	return nil
}

// parseFlags loads the config file and applies command line overrides.
func parseFlags() (config.Config, string) {
	configPath := flag.String("config", "", "Path to YAML config (env PACVISION_* overrides)")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugFrames := flag.Bool("debug-frames", false, "Log every frame's detections (very verbose)")
	replay := flag.String("replay", "", "Replay frames from a directory instead of the screen")
	port := flag.String("port", "", "Dashboard port (empty disables)")
	logDir := flag.String("log-dir", "", "Record frames and snapshots under this directory")
	tieBreak := flag.String("tie-break", "", "Character tie-break: first or nearest")
	saveConfig := flag.String("save-config", "", "Write the effective config to this path and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}

	if *debugFlag {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	debug.Frames = *debugFrames
	if *replay != "" {
		cfg.ReplayDir = *replay
	}
	if *port != "" {
		cfg.DashboardPort = *port
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *tieBreak != "" {
		cfg.TieBreak = *tieBreak
	}
	return cfg, *saveConfig
}

// progressReporter prints a line whenever a pellet is eaten.
type progressReporter struct {
	eaten int
}

func (p *progressReporter) Consume(s grid.State) {
	if s.Eaten <= p.eaten {
		return
	}
	p.eaten = s.Eaten
	log.Printf("🟡 %d/%d pellets eaten, %d left", s.Eaten, s.Total, s.Remaining)
}
