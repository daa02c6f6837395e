package capture

import (
	"fmt"
	"image"
	"sync"

	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/vova616/screenshot"
)

// grabFunc captures a screen rectangle.
type grabFunc func(r image.Rectangle) (*image.RGBA, error)

// ScreenSource grabs a fixed region of the primary display.
type ScreenSource struct {
	mu     sync.Mutex
	region image.Rectangle
	grab   grabFunc
}

// NewScreen creates a screen source. An empty region captures the whole screen.
func NewScreen(region Region) (*ScreenSource, error) {
	s := &ScreenSource{grab: screenshot.CaptureRect}
	if err := s.SetRegion(region); err != nil {
		return nil, err
	}
	return s, nil
}

// SetRegion changes the captured rectangle.
func (s *ScreenSource) SetRegion(region Region) error {
	var r image.Rectangle
	if region.Empty() {
		full, err := screenshot.ScreenRect()
		if err != nil {
			return fmt.Errorf("screen rect: %w", err)
		}
		r = full
	} else {
		r = image.Rect(region.Left, region.Top, region.Left+region.Width, region.Top+region.Height)
	}

	s.mu.Lock()
	s.region = r
	s.mu.Unlock()
	return nil
}

// Bounds returns the captured rectangle.
func (s *ScreenSource) Bounds() image.Rectangle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.region
}

// Capture grabs the region and drops alpha. Grab failures are reported as
// ErrNoFrame so the loop skips the iteration.
func (s *ScreenSource) Capture() (*frame.Frame, error) {
	s.mu.Lock()
	r, grab := s.region, s.grab
	s.mu.Unlock()

	img, err := grab(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNoFrame
	}
	return frame.FromImage(img), nil
}
