package detection

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/teslashibe/go-pacvision/internal/log"
	"github.com/teslashibe/go-pacvision/pkg/debug"
	"github.com/teslashibe/go-pacvision/pkg/frame"
	"gocv.io/x/gocv"
)

// TemplateDetector finds sprites by normalized cross-correlation against
// per-class template images
type TemplateDetector struct {
	config    Config
	templates map[string]gocv.Mat
	mu        sync.Mutex // Protects matching
}

// NewTemplate loads every <class>.png from cfg.TemplateDir
func NewTemplate(cfg Config) (*TemplateDetector, error) {
	entries, err := os.ReadDir(cfg.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("template dir: %w", err)
	}

	d := &TemplateDetector{
		config:    cfg,
		templates: make(map[string]gocv.Mat),
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".png") || strings.Contains(name, "snapshot") {
			continue
		}

		path := filepath.Join(cfg.TemplateDir, name)
		tmpl := gocv.IMRead(path, gocv.IMReadColor)
		if tmpl.Empty() {
			log.Warn("failed to load template", "path", path)
			continue
		}

		class := strings.TrimSuffix(name, ".png")
		d.templates[class] = tmpl
		log.Info("loaded template", "class", class, "size", fmt.Sprintf("%dx%d", tmpl.Cols(), tmpl.Rows()))
	}

	if len(d.templates) == 0 {
		return nil, fmt.Errorf("no templates found in %s", cfg.TemplateDir)
	}

	return d, nil
}

// Classes returns the loaded class names in sorted order
func (d *TemplateDetector) Classes() []string {
	classes := make([]string, 0, len(d.templates))
	for c := range d.templates {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

// Detect matches every template against the frame
func (d *TemplateDetector) Detect(f *frame.Frame) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f == nil || f.Width == 0 || f.Height == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	img, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
	if err != nil {
		return nil, fmt.Errorf("frame to mat: %w", err)
	}
	defer img.Close()

	result := make(Result, len(d.templates))
	for _, class := range d.Classes() {
		tmpl := d.templates[class]
		if tmpl.Cols() > img.Cols() || tmpl.Rows() > img.Rows() {
			continue
		}
		boxes := d.match(img, tmpl, d.config.Threshold(class))
		if len(boxes) > 0 {
			result[class] = boxes
		}
	}

	if n := result.Count(); n > 0 {
		debug.Log("🔍 templates matched %d sprite(s)\n", n)
	}

	return result, nil
}

// match returns the boxes scoring at least thresh, with overlapping hits merged
func (d *TemplateDetector) match(img, tmpl gocv.Mat, thresh float32) []Box {
	res := gocv.NewMat()
	defer res.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	gocv.MatchTemplate(img, tmpl, &res, gocv.TmCcoeffNormed, mask)

	// One bulk read of the score map instead of a cgo call per pixel
	data, err := res.DataPtrFloat32()
	if err != nil {
		log.Warn("read match scores", "error", err)
		return nil
	}
	rects, scores := peaks(data, res.Cols(), res.Rows(), tmpl.Cols(), tmpl.Rows(), thresh)
	if len(rects) == 0 {
		return nil
	}

	keep := gocv.NMSBoxes(rects, scores, thresh, d.config.NMSThresh)
	sort.Ints(keep)

	boxes := make([]Box, 0, len(keep))
	for _, i := range keep {
		r := rects[i]
		boxes = append(boxes, Box{
			X:          r.Min.X,
			Y:          r.Min.Y,
			W:          r.Dx(),
			H:          r.Dy(),
			Confidence: float64(scores[i]),
		})
	}
	return boxes
}

// peaks returns a template-sized box for every score of at least thresh in a
// row-major score map. Row-major order keeps detector order stable from frame
// to frame.
func peaks(data []float32, cols, rows, w, h int, thresh float32) ([]image.Rectangle, []float32) {
	var rects []image.Rectangle
	var scores []float32
	n := min(len(data), cols*rows)
	for i := 0; i < n; i++ {
		if data[i] < thresh {
			continue
		}
		x, y := i%cols, i/cols
		rects = append(rects, image.Rect(x, y, x+w, y+h))
		scores = append(scores, data[i])
	}
	return rects, scores
}

// Close releases the template matrices
func (d *TemplateDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for class, m := range d.templates {
		m.Close()
		delete(d.templates, class)
	}
	return nil
}
