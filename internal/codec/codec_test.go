package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazetools/dehaze/internal/dcp"
)

func testNRGBA(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8((x * 37) % 256),
				G: uint8((y * 53) % 256),
				B: uint8((x*y + 11) % 256),
				A: 0xff,
			})
		}
	}
	return img
}

func TestFromImage_Normalizes(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 127, B: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 51, G: 102, B: 204, A: 255})

	got := FromImage(src)
	if got.W != 2 || got.H != 1 {
		t.Fatalf("dimensions: got %dx%d, want 2x1", got.W, got.H)
	}

	want := []float64{0, 127.0 / 255, 1, 51.0 / 255, 102.0 / 255, 204.0 / 255}
	for i, v := range want {
		if math.Abs(got.Pix[i]-v) > 1e-12 {
			t.Errorf("sample %d: got %g, want %g", i, got.Pix[i], v)
		}
	}
}

func TestRoundTrip_EightBitLossless(t *testing.T) {
	src := testNRGBA(13, 9)

	back := ToImage(FromImage(src))
	for i := range src.Pix {
		if src.Pix[i] != back.Pix[i] {
			t.Fatalf("byte %d: got %d, want %d", i, back.Pix[i], src.Pix[i])
		}
	}
}

func TestToImage_ClampsOutOfRange(t *testing.T) {
	img := dcp.NewImage(1, 1)
	img.Pix[0] = -0.5
	img.Pix[1] = 1.5
	img.Pix[2] = 0.5

	out := ToImage(img)
	c := out.NRGBAAt(0, 0)
	if c.R != 0 || c.G != 255 {
		t.Errorf("clamping: got R=%d G=%d, want R=0 G=255", c.R, c.G)
	}
	if c.B != 128 {
		t.Errorf("midpoint: got B=%d, want 128", c.B)
	}
	if c.A != 255 {
		t.Errorf("alpha: got %d, want 255", c.A)
	}
}

func TestGrayToImage(t *testing.T) {
	g := dcp.NewGray(2, 2)
	g.Pix = []float64{0, 0.5, 1, 2}

	out := GrayToImage(g)
	want := []uint8{0, 128, 255, 255}
	for i, w := range want {
		y := i / 2
		x := i % 2
		if got := out.GrayAt(x, y).Y; got != w {
			t.Errorf("pixel %d: got %d, want %d", i, got, w)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roundtrip.png")

	src := FromImage(testNRGBA(8, 6))
	if err := Save(path, src); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.W != src.W || got.H != src.H {
		t.Fatalf("dimensions: got %dx%d, want %dx%d", got.W, got.H, src.W, src.H)
	}
	for i := range src.Pix {
		if math.Abs(got.Pix[i]-src.Pix[i]) > 1e-12 {
			t.Fatalf("sample %d: got %g, want %g", i, got.Pix[i], src.Pix[i])
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDecode_Stream(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testNRGBA(5, 4)); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	img, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if img.W != 5 || img.H != 4 {
		t.Fatalf("dimensions: got %dx%d, want 5x4", img.W, img.H)
	}
}

func TestDecode_Garbage(t *testing.T) {
	if _, err := Decode(strings.NewReader("definitely not an image")); err == nil {
		t.Fatal("expected error for undecodable stream")
	}
}

func TestEncodeBase64PNG(t *testing.T) {
	uri, err := EncodeBase64PNG(testNRGBA(3, 3))
	if err != nil {
		t.Fatalf("EncodeBase64PNG failed: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("data URI does not start with %q", prefix)
	}
	if len(uri) == len(prefix) {
		t.Fatal("empty payload")
	}
}

func TestEncodeBase64PNG_NonEmptyForGray(t *testing.T) {
	g := dcp.NewGray(2, 2)
	uri, err := EncodeBase64PNG(GrayToImage(g))
	if err != nil {
		t.Fatalf("EncodeBase64PNG failed: %v", err)
	}
	if !strings.Contains(uri, ";base64,") {
		t.Fatalf("malformed data URI: %q", uri)
	}
}

func TestSaveGray_WritesReadablePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gray.png")
	g := dcp.NewGray(4, 4)
	for i := range g.Pix {
		g.Pix[i] = float64(i) / 15
	}

	if err := SaveGray(path, g); err != nil {
		t.Fatalf("SaveGray failed: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 4 || decoded.Bounds().Dy() != 4 {
		t.Fatalf("dimensions: got %v, want 4x4", decoded.Bounds())
	}
}
