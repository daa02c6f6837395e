// Package mapextract recovers the static maze background from a short burst of
// frames by taking the per-pixel temporal median. Anything present in a minority
// of samples at a pixel (the character, ghosts) is outvoted by the background.
package mapextract

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/teslashibe/go-pacvision/internal/log"
	"github.com/teslashibe/go-pacvision/pkg/capture"
	"github.com/teslashibe/go-pacvision/pkg/frame"
)

// ErrNoFrames is returned by ExtractCleanMap when nothing was captured.
// Callers fall back to an uninitialized grid.
var ErrNoFrames = errors.New("mapextract: no frames captured")

// Defaults for a map capture burst.
const (
	DefaultDuration  = 3 * time.Second
	DefaultInterval  = 50 * time.Millisecond // 20 Hz is plenty for a static map
	DefaultMaxFrames = 600
)

// Config controls sampling.
type Config struct {
	Interval  time.Duration // Delay between captures
	MaxFrames int           // Stop collecting after this many frames (0 = unlimited)
}

// DefaultConfig returns 20 Hz sampling with a memory cap.
func DefaultConfig() Config {
	return Config{
		Interval:  DefaultInterval,
		MaxFrames: DefaultMaxFrames,
	}
}

// Extractor accumulates frames and computes the clean background.
type Extractor struct {
	cfg    Config
	frames []*frame.Frame
}

// New creates an extractor.
func New(cfg Config) *Extractor {
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	return &Extractor{cfg: cfg}
}

// Len returns the number of frames collected.
func (e *Extractor) Len() int {
	return len(e.frames)
}

// Reset drops all collected frames.
func (e *Extractor) Reset() {
	e.frames = nil
}

// Add appends a frame. Frames that differ in size from the first one are
// rejected; nil frames are ignored.
func (e *Extractor) Add(f *frame.Frame) error {
	if f == nil {
		return nil
	}
	if len(e.frames) > 0 && !e.frames[0].SameSize(f) {
		return fmt.Errorf("mapextract: frame %dx%d does not match %dx%d",
			f.Width, f.Height, e.frames[0].Width, e.frames[0].Height)
	}
	e.frames = append(e.frames, f)
	return nil
}

// CaptureFrames pulls from src every Interval until duration elapses, the frame
// cap is reached, the source ends, or ctx is done. Missing frames are skipped. It returns the
// number of frames added; on cancellation the frames collected so far are kept
// and ctx.Err() is returned.
//
// Each Capture runs on its own goroutine so a stalled source cannot hold the
// caller past ctx or the capture window. A late result is discarded.
func (e *Extractor) CaptureFrames(ctx context.Context, src capture.Source, duration time.Duration) (int, error) {
	l := log.Component("mapextract")
	l.Info("capturing map frames", "duration", duration, "interval", e.cfg.Interval)

	end := time.Now().Add(duration)
	window := time.NewTimer(duration)
	defer window.Stop()
	tick := time.NewTimer(0)
	defer tick.Stop()

	added := 0
	skipped := 0

loop:
	for {
		select {
		case <-ctx.Done():
			l.Warn("map capture aborted", "captured", added, "err", ctx.Err())
			return added, ctx.Err()
		case <-window.C:
			break loop
		case <-tick.C:
		}

		if !time.Now().Before(end) {
			break loop
		}

		var res captureResult
		select {
		case <-ctx.Done():
			l.Warn("map capture aborted while waiting on source", "captured", added, "err", ctx.Err())
			return added, ctx.Err()
		case <-window.C:
			l.Warn("frame source stalled past capture window", "captured", added)
			break loop
		case res = <-captureAsync(src):
		}

		switch {
		case errors.Is(res.err, capture.ErrEndOfStream):
			l.Info("frame source exhausted", "captured", added)
			break loop
		case res.err != nil:
			skipped++
		case res.frame == nil:
			skipped++
		default:
			if err := e.Add(res.frame); err != nil {
				l.Warn("dropping frame", "err", err)
				skipped++
			} else {
				added++
			}
		}

		if e.cfg.MaxFrames > 0 && len(e.frames) >= e.cfg.MaxFrames {
			break loop
		}
		tick.Reset(e.cfg.Interval)
	}

	l.Info("map capture complete", "captured", added, "skipped", skipped)
	return added, nil
}

type captureResult struct {
	frame *frame.Frame
	err   error
}

// captureAsync runs one Capture in the background. The channel is buffered so
// the goroutine exits even when nobody is left to receive.
func captureAsync(src capture.Source) <-chan captureResult {
	ch := make(chan captureResult, 1)
	go func() {
		f, err := src.Capture()
		ch <- captureResult{frame: f, err: err}
	}()
	return ch
}

// ExtractCleanMap returns the per-pixel, per-channel median of the collected
// frames. For an even count the two middle values are averaged and truncated.
func (e *Extractor) ExtractCleanMap() (*frame.Frame, error) {
	n := len(e.frames)
	if n == 0 {
		return nil, ErrNoFrames
	}
	if n == 1 {
		return e.frames[0].Clone(), nil
	}

	first := e.frames[0]
	out := frame.New(first.Width, first.Height)
	samples := make([]uint8, n)

	for i := range out.Pix {
		for k, f := range e.frames {
			samples[k] = f.Pix[i]
		}
		out.Pix[i] = median(samples)
	}

	return out, nil
}

// median sorts s in place and returns its middle value.
func median(s []uint8) uint8 {
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return uint8((int(s[mid-1]) + int(s[mid])) / 2)
}
