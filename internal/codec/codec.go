package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"

	"github.com/hazetools/dehaze/internal/dcp"
)

// Load reads an image file from disk and converts it to the pipeline's
// normalized float representation.
//
// Parameters:
//   - path: Path to a PNG, JPEG, GIF, BMP, or TIFF file.
//
// Returns:
//   - *dcp.Image: RGB samples normalized to [0, 1]. Alpha is discarded.
//   - error: Non-nil if the file cannot be opened or decoded.
func Load(path string) (*dcp.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return FromImage(img), nil
}

// Decode reads an encoded image from a stream and converts it to the
// pipeline's normalized float representation.
//
// This is the upload-handling counterpart of Load: HTTP handlers pass the
// request body or a multipart file here without touching the filesystem.
func Decode(r io.Reader) (*dcp.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// FromImage converts any image.Image to normalized float RGB.
//
// The image is first cloned to NRGBA so that sampling is uniform across
// source color models (YCbCr from JPEG, paletted GIF, 16-bit PNG).
func FromImage(img image.Image) *dcp.Image {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()

	out := dcp.NewImage(w, h)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4:]
			q := out.Pix[(y*w+x)*3:]
			q[0] = float64(p[0]) / 255
			q[1] = float64(p[1]) / 255
			q[2] = float64(p[2]) / 255
		}
	}
	return out
}

// ToImage converts a normalized float image back to an 8-bit NRGBA image.
//
// Samples are clamped to [0, 1] before quantization, so out-of-range values
// produced by intermediate stages render as pure black or white instead of
// wrapping.
func ToImage(img *dcp.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.W, img.H))
	for y := 0; y < img.H; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < img.W; x++ {
			p := img.Pix[(y*img.W+x)*3:]
			q := row[x*4:]
			q[0] = quantize(p[0])
			q[1] = quantize(p[1])
			q[2] = quantize(p[2])
			q[3] = 0xff
		}
	}
	return out
}

// GrayToImage converts a single-channel float map to an 8-bit grayscale
// image, clamping samples to [0, 1].
func GrayToImage(g *dcp.Gray) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.W, g.H))
	for y := 0; y < g.H; y++ {
		row := out.Pix[y*out.Stride:]
		for x := 0; x < g.W; x++ {
			row[x] = quantize(g.Pix[y*g.W+x])
		}
	}
	return out
}

// Save writes a float image to disk as PNG.
func Save(path string, img *dcp.Image) error {
	if err := imgio.Save(path, ToImage(img), imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// SavePNG writes any image.Image to disk as PNG.
func SavePNG(path string, img image.Image) error {
	if err := imgio.Save(path, img, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// SaveGray writes a single-channel float map to disk as grayscale PNG.
func SaveGray(path string, g *dcp.Gray) error {
	if err := imgio.Save(path, GrayToImage(g), imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// EncodeBase64PNG encodes an image as a PNG data URI suitable for direct
// embedding in JSON event payloads or HTML img tags.
//
// The returned string has the form "data:image/png;base64,<payload>".
func EncodeBase64PNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imgio.PNGEncoder()(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// quantize maps a [0,1] float sample to an 8-bit value with rounding.
func quantize(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
