// Package render produces visualization images for dehazing results:
// false-color transmission heatmaps and side-by-side comparison figures.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/hazetools/dehaze/internal/codec"
	"github.com/hazetools/dehaze/internal/dcp"
)

// gradientStop anchors a color at a position in [0, 1].
type gradientStop struct {
	pos   float64
	color colorful.Color
}

// heatStops is a cold-to-hot ramp: opaque haze (low transmission) renders
// dark blue, clear air renders bright yellow. Interpolation runs in Luv so
// the perceived brightness rises monotonically along the ramp.
var heatStops = []gradientStop{
	{0.0, colorful.Color{R: 0.05, G: 0.03, B: 0.35}},
	{0.35, colorful.Color{R: 0.12, G: 0.40, B: 0.65}},
	{0.65, colorful.Color{R: 0.20, G: 0.72, B: 0.45}},
	{1.0, colorful.Color{R: 0.98, G: 0.91, B: 0.15}},
}

// heatColor maps a clamped [0,1] value onto the gradient.
func heatColor(v float64) colorful.Color {
	if v <= heatStops[0].pos {
		return heatStops[0].color
	}
	for i := 0; i < len(heatStops)-1; i++ {
		lo, hi := heatStops[i], heatStops[i+1]
		if v <= hi.pos {
			t := (v - lo.pos) / (hi.pos - lo.pos)
			return lo.color.BlendLuv(hi.color, t).Clamped()
		}
	}
	return heatStops[len(heatStops)-1].color
}

// TransmissionHeatmap renders a transmission map as a false-color image.
//
// Values are clamped to [0, 1] before lookup, so unrefined maps with
// out-of-range samples still render.
func TransmissionHeatmap(t *dcp.Gray) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, t.W, t.H))
	for y := 0; y < t.H; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < t.W; x++ {
			v := t.Pix[y*t.W+x]
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			r, g, b := heatColor(v).RGB255()
			p := row[x*4:]
			p[0], p[1], p[2], p[3] = r, g, b, 0xff
		}
	}
	return out
}

// panel is one cell of a comparison figure.
type panel struct {
	img image.Image
}

// ComparisonFigure assembles the original image, each method's dehazed
// output, and each method's transmission heatmap into a single figure.
//
// Layout is two rows: photographs on top (original first, then one dehazed
// result per method run), heatmaps below (initial transmission first, then
// one refined map per run). Panels are resized to a common cell size with
// Lanczos resampling and separated by a thin margin.
//
// Returns an error when the result holds no method runs.
func ComparisonFigure(original *dcp.Image, res *dcp.Result) (*image.NRGBA, error) {
	if res == nil || len(res.Runs) == 0 {
		return nil, fmt.Errorf("comparison figure requires at least one method run")
	}

	top := []panel{{codec.ToImage(original)}}
	bottom := []panel{{TransmissionHeatmap(res.InitialTransmission)}}
	for _, run := range res.Runs {
		top = append(top, panel{codec.ToImage(run.Radiance)})
		bottom = append(bottom, panel{TransmissionHeatmap(run.Transmission)})
	}

	const (
		cellW  = 320
		margin = 4
	)
	cellH := cellW * original.H / original.W
	if cellH < 1 {
		cellH = 1
	}

	cols := len(top)
	figW := cols*cellW + (cols+1)*margin
	figH := 2*cellH + 3*margin
	fig := imaging.New(figW, figH, color.White)

	for i, p := range top {
		resized := imaging.Resize(p.img, cellW, cellH, imaging.Lanczos)
		fig = imaging.Paste(fig, resized, image.Pt(margin+i*(cellW+margin), margin))
	}
	for i, p := range bottom {
		resized := imaging.Resize(p.img, cellW, cellH, imaging.Lanczos)
		fig = imaging.Paste(fig, resized, image.Pt(margin+i*(cellW+margin), 2*margin+cellH))
	}
	return fig, nil
}
