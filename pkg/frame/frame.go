// Package frame provides the 3-channel pixel buffer shared by capture, vision and logging.
package frame

import (
	"fmt"
	"image"
	"image/color"
)

// BGR is a single pixel in blue, green, red channel order (OpenCV convention).
type BGR struct {
	B, G, R uint8
}

// RGBA converts the pixel to an opaque color.RGBA.
func (c BGR) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// Frame is a fixed-size 3-channel image without alpha.
// Pix holds rows top to bottom, each pixel as B, G, R.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a black frame.
func New(width, height int) *Frame {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// FromBytes wraps a packed BGR buffer. The slice is not copied.
func FromBytes(width, height int, pix []uint8) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame: invalid size %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("frame: buffer length %d, want %d", len(pix), width*height*3)
	}
	return &Frame{Width: width, Height: height, Pix: pix}, nil
}

// FromImage copies any image into a BGR frame, dropping alpha.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy())

	// Fast path for the common RGBA case (screen grabs, decoded PNGs)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < f.Height; y++ {
			src := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			dst := f.Pix[y*f.Width*3:]
			for x := 0; x < f.Width; x++ {
				dst[x*3+0] = src[x*4+2]
				dst[x*3+1] = src[x*4+1]
				dst[x*3+2] = src[x*4+0]
			}
		}
		return f
	}

	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			f.Set(x, y, BGR{B: c.B, G: c.G, R: c.R})
		}
	}
	return f
}

// InBounds reports whether (x, y) addresses a pixel of the frame.
func (f *Frame) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// At returns the pixel at (x, y). Out-of-range reads return black.
func (f *Frame) At(x, y int) BGR {
	if !f.InBounds(x, y) {
		return BGR{}
	}
	i := (y*f.Width + x) * 3
	return BGR{B: f.Pix[i], G: f.Pix[i+1], R: f.Pix[i+2]}
}

// Set writes the pixel at (x, y). Out-of-range writes are ignored.
func (f *Frame) Set(x, y int, c BGR) {
	if !f.InBounds(x, y) {
		return
	}
	i := (y*f.Width + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = c.B, c.G, c.R
}

// Fill paints the rectangle r (clipped to the frame) with c.
func (f *Frame) Fill(r image.Rectangle, c BGR) {
	r = r.Intersect(f.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			f.Set(x, y, c)
		}
	}
}

// Bounds returns the frame rectangle anchored at the origin.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// SameSize reports whether two frames have identical dimensions.
func (f *Frame) SameSize(o *Frame) bool {
	return o != nil && f.Width == o.Width && f.Height == o.Height
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	pix := make([]uint8, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// ToRGBA converts the frame to an image.RGBA for encoding.
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := (y*f.Width + x) * 3
			j := img.PixOffset(x, y)
			img.Pix[j+0] = f.Pix[i+2]
			img.Pix[j+1] = f.Pix[i+1]
			img.Pix[j+2] = f.Pix[i+0]
			img.Pix[j+3] = 255
		}
	}
	return img
}
