package dcp

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors for the validation failures described in the package
// documentation. Callers can test for them with errors.Is.
var (
	// ErrInvalidParameter indicates a rejected algorithm parameter
	// (even patch size, non-positive radius, percentile out of range, ...).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidImage indicates unusable image data (empty dimensions,
	// mismatched sizes, non-finite samples).
	ErrInvalidImage = errors.New("invalid image")
)

// Image is a dense H×W RGB image with float64 samples, nominally in [0,1].
// Pixels are stored row-major with interleaved channels: the sample for
// channel c of pixel (x, y) lives at Pix[(y*W+x)*3+c]. Channel order is
// R, G, B.
//
// Pipeline stages never mutate their input Image; they allocate fresh
// outputs.
type Image struct {
	W, H int
	Pix  []float64
}

// NewImage allocates a zeroed w×h RGB image.
func NewImage(w, h int) *Image {
	return &Image{W: w, H: h, Pix: make([]float64, w*h*3)}
}

// At returns the sample for channel c (0=R, 1=G, 2=B) at (x, y).
func (m *Image) At(x, y, c int) float64 {
	return m.Pix[(y*m.W+x)*3+c]
}

// Set stores the sample for channel c at (x, y).
func (m *Image) Set(x, y, c int, v float64) {
	m.Pix[(y*m.W+x)*3+c] = v
}

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	out := &Image{W: m.W, H: m.H, Pix: make([]float64, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Grayscale converts the image to a single-channel luma map using the
// NTSC weighting 0.2989·R + 0.5870·G + 0.1140·B. The result is used as
// the guide image for the guided-filter refinement path.
func (m *Image) Grayscale() *Gray {
	out := NewGray(m.W, m.H)
	for i := 0; i < m.W*m.H; i++ {
		p := m.Pix[i*3:]
		out.Pix[i] = 0.2989*p[0] + 0.5870*p[1] + 0.1140*p[2]
	}
	return out
}

// validate rejects empty and non-finite images. Called once at the
// pipeline entry; the individual stages assume a valid image.
func (m *Image) validate() error {
	if m == nil || m.W <= 0 || m.H <= 0 {
		return fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if len(m.Pix) != m.W*m.H*3 {
		return fmt.Errorf("%w: pixel buffer is %d samples, want %d",
			ErrInvalidImage, len(m.Pix), m.W*m.H*3)
	}
	for i, v := range m.Pix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite sample at index %d", ErrInvalidImage, i)
		}
	}
	return nil
}

// Gray is a dense H×W single-channel float64 map, row-major. It carries
// dark channels, guide images and transmission maps through the pipeline.
type Gray struct {
	W, H int
	Pix  []float64
}

// NewGray allocates a zeroed w×h map.
func NewGray(w, h int) *Gray {
	return &Gray{W: w, H: h, Pix: make([]float64, w*h)}
}

// At returns the value at (x, y).
func (g *Gray) At(x, y int) float64 {
	return g.Pix[y*g.W+x]
}

// Set stores the value at (x, y).
func (g *Gray) Set(x, y int, v float64) {
	g.Pix[y*g.W+x] = v
}

// Clone returns a deep copy.
func (g *Gray) Clone() *Gray {
	out := &Gray{W: g.W, H: g.H, Pix: make([]float64, len(g.Pix))}
	copy(out.Pix, g.Pix)
	return out
}

// clamp01 constrains v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
