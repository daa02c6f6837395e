// extract - build the static maze from recorded frames
// Reads a directory of frames, takes the temporal median to remove moving
// sprites, writes the clean background and prints the classified grid.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"

	"github.com/teslashibe/go-pacvision/internal/config"
	"github.com/teslashibe/go-pacvision/pkg/capture"
	"github.com/teslashibe/go-pacvision/pkg/classify"
	"github.com/teslashibe/go-pacvision/pkg/debug"
	"github.com/teslashibe/go-pacvision/pkg/geometry"
	"github.com/teslashibe/go-pacvision/pkg/grid"
	"github.com/teslashibe/go-pacvision/pkg/mapextract"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	dir := flag.String("frames", "", "Directory of recorded frames (required)")
	out := flag.String("out", "background.png", "Where to write the clean background")
	maxFrames := flag.Int("max", mapextract.DefaultMaxFrames, "Maximum frames to sample")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}

	src, err := capture.NewReplay(*dir, false)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ext := mapextract.New(mapextract.Config{MaxFrames: *maxFrames})
	for ext.Len() < *maxFrames {
		f, err := src.Capture()
		if err != nil {
			break
		}
		if err := ext.Add(f); err != nil {
			log.Printf("⚠️  Skipping frame: %v", err)
		}
	}

	fmt.Printf("🧮 Median of %d frames... ", ext.Len())
	bg, err := ext.ExtractCleanMap()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	fmt.Println("✅")

	if err := writePNG(*out, bg.ToRGBA()); err != nil {
		log.Fatalf("❌ Write background: %v", err)
	}
	fmt.Printf("💾 Background written to %s (%dx%d)\n", *out, bg.Width, bg.Height)

	m, err := geometry.NewMapper(bg.Width, bg.Height, cfg.Padding, cfg.GridWidth, cfg.GridHeight)
	if err != nil {
		log.Fatalf("❌ Geometry: %v", err)
	}

	g, err := grid.New(cfg.GridWidth, cfg.GridHeight)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := g.InitializeFromBackground(bg, m, classify.New(cfg.ClassifierConfig())); err != nil {
		log.Fatalf("❌ %v", err)
	}

	fmt.Print(debug.RenderGrid(g.Cells(), nil))
	fmt.Printf("🟡 %d pellets\n", g.Counters().Total)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
