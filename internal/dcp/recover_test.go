package dcp

import (
	"errors"
	"math"
	"testing"
)

func TestRecoverRadiance_IdentityTransmission(t *testing.T) {
	// t ≡ 1 makes the recovery an exact identity for any A.
	img := randomImage(6, 5, 44)
	tr := uniformGray(6, 5, 1)

	out, err := RecoverRadiance(img, [3]float64{0.8, 0.7, 0.9}, tr, 0.1)
	if err != nil {
		t.Fatalf("RecoverRadiance failed: %v", err)
	}
	for i := range img.Pix {
		if math.Abs(out.Pix[i]-img.Pix[i]) > 1e-12 {
			t.Errorf("sample %d: got %g, want %g", i, out.Pix[i], img.Pix[i])
		}
	}
}

func TestRecoverRadiance_FloorsTransmission(t *testing.T) {
	// Transmission 0.01 with t0 = 0.1: the divisor must be 0.1.
	img := uniformImage(2, 2, 0.6, 0.5, 0.4)
	tr := uniformGray(2, 2, 0.01)
	a := [3]float64{0.9, 0.9, 0.9}

	out, err := RecoverRadiance(img, a, tr, 0.1)
	if err != nil {
		t.Fatalf("RecoverRadiance failed: %v", err)
	}
	for c := 0; c < 3; c++ {
		want := clamp01((img.At(0, 0, c)-a[c])/0.1 + a[c])
		if got := out.At(0, 0, c); math.Abs(got-want) > 1e-12 {
			t.Errorf("channel %d: got %g, want %g", c, got, want)
		}
	}
}

func TestRecoverRadiance_ClampsOutput(t *testing.T) {
	img := randomImage(5, 5, 6)
	tr := uniformGray(5, 5, 0.05)

	out, err := RecoverRadiance(img, [3]float64{0.95, 0.95, 0.95}, tr, 0.1)
	if err != nil {
		t.Fatalf("RecoverRadiance failed: %v", err)
	}
	for i, v := range out.Pix {
		if v < 0 || v > 1 {
			t.Errorf("out[%d] = %g outside [0,1]", i, v)
		}
	}
}

func TestRecoverRadiance_RejectsBadT0(t *testing.T) {
	img := uniformImage(2, 2, 0.5, 0.5, 0.5)
	tr := uniformGray(2, 2, 0.5)

	for _, t0 := range []float64{0, -0.1, 1, 1.5} {
		if _, err := RecoverRadiance(img, [3]float64{1, 1, 1}, tr, t0); !errors.Is(err, ErrInvalidParameter) {
			t.Errorf("t0 %g: got %v, want ErrInvalidParameter", t0, err)
		}
	}
}

func TestRecoverRadiance_RejectsMismatchedTransmission(t *testing.T) {
	img := uniformImage(2, 2, 0.5, 0.5, 0.5)
	tr := uniformGray(3, 3, 0.5)

	if _, err := RecoverRadiance(img, [3]float64{1, 1, 1}, tr, 0.1); !errors.Is(err, ErrInvalidImage) {
		t.Errorf("got %v, want ErrInvalidImage", err)
	}
}
