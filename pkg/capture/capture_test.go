package capture

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-pacvision/pkg/frame"
	"golang.org/x/image/bmp"
)

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func writeBMP(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, c)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := bmp.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestReplay_OrderAndEnd(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "frame_000002.png"), color.RGBA{G: 200, A: 255})
	writePNG(t, filepath.Join(dir, "frame_000001.png"), color.RGBA{R: 200, A: 255})
	os.WriteFile(filepath.Join(dir, "data.jsonl"), []byte("{}\n"), 0644)

	r, err := NewReplay(dir, false)
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", r.Len())
	}

	f, err := r.Capture()
	if err != nil {
		t.Fatalf("Capture 1: %v", err)
	}
	if got := f.At(0, 0); got != (frame.BGR{R: 200}) {
		t.Errorf("frame 1: got %+v, want red", got)
	}

	if _, err := r.Capture(); err != nil {
		t.Fatalf("Capture 2: %v", err)
	}
	if _, err := r.Capture(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Capture past end: got %v, want ErrEndOfStream", err)
	}
	if _, err := r.Capture(); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Capture past end again: got %v, want ErrEndOfStream", err)
	}

	r.Rewind()
	if _, err := r.Capture(); err != nil {
		t.Errorf("Capture after rewind: %v", err)
	}
}

func TestReplay_Loop(t *testing.T) {
	dir := t.TempDir()
	writeBMP(t, filepath.Join(dir, "a.bmp"), color.RGBA{B: 255, A: 255})

	r, err := NewReplay(dir, true)
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	for i := 0; i < 3; i++ {
		f, err := r.Capture()
		if err != nil {
			t.Fatalf("Capture %d: %v", i, err)
		}
		if got := f.At(0, 0); got != (frame.BGR{B: 255}) {
			t.Errorf("Capture %d: got %+v, want blue", i, got)
		}
	}
}

func TestReplay_EmptyDir(t *testing.T) {
	if _, err := NewReplay(t.TempDir(), false); err == nil {
		t.Error("Expected error for directory without images")
	}
}

func TestScreenSource_GrabFailureIsSkip(t *testing.T) {
	s := &ScreenSource{
		region: image.Rect(0, 0, 10, 10),
		grab: func(image.Rectangle) (*image.RGBA, error) {
			return nil, errors.New("display unavailable")
		},
	}

	if _, err := s.Capture(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("Capture: got %v, want ErrNoFrame", err)
	}
}

func TestScreenSource_Capture(t *testing.T) {
	s := &ScreenSource{
		region: image.Rect(5, 5, 15, 13),
		grab: func(r image.Rectangle) (*image.RGBA, error) {
			img := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
			img.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})
			return img, nil
		},
	}

	f, err := s.Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if f.Width != 10 || f.Height != 8 {
		t.Errorf("size: got %dx%d, want 10x8", f.Width, f.Height)
	}
	if got := f.At(1, 1); got != (frame.BGR{B: 30, G: 20, R: 10}) {
		t.Errorf("pixel: got %+v", got)
	}
}

func TestSourceFunc(t *testing.T) {
	var src Source = SourceFunc(func() (*frame.Frame, error) { return frame.New(1, 1), nil })
	if f, err := src.Capture(); err != nil || f.Width != 1 {
		t.Errorf("SourceFunc: got %v, %v", f, err)
	}
}
