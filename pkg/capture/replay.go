package capture

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/teslashibe/go-pacvision/pkg/frame"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var replayExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// ReplaySource plays back recorded frames from a directory in name order.
// Useful for offline map extraction and regression runs against data logger output.
type ReplaySource struct {
	mu    sync.Mutex
	paths []string
	next  int
	loop  bool
}

// NewReplay lists the image files in dir. With loop set, playback wraps around.
func NewReplay(dir string, loop bool) (*ReplaySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("replay dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if replayExts[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("replay dir %s: no images", dir)
	}

	return &ReplaySource{paths: paths, loop: loop}, nil
}

// Len returns the number of recorded frames.
func (r *ReplaySource) Len() int {
	return len(r.paths)
}

// Capture decodes the next frame. At the end of a non-looping replay it
// returns ErrEndOfStream.
func (r *ReplaySource) Capture() (*frame.Frame, error) {
	r.mu.Lock()
	if r.next >= len(r.paths) {
		if !r.loop {
			r.mu.Unlock()
			return nil, ErrEndOfStream
		}
		r.next = 0
	}
	path := r.paths[r.next]
	r.next++
	r.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrNoFrame, filepath.Base(path), err)
	}
	return frame.FromImage(img), nil
}

// Rewind restarts playback from the first frame.
func (r *ReplaySource) Rewind() {
	r.mu.Lock()
	r.next = 0
	r.mu.Unlock()
}
