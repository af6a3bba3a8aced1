package dcp

import "fmt"

// atmLightFloor is the minimum value an atmospheric light component may
// take when normalizing. A component at or near zero would blow up the
// per-channel division; flooring it keeps the estimate finite without
// aborting the run.
const atmLightFloor = 1e-6

// InitialTransmission estimates the unrefined transmission map:
//
//	t̃ = 1 − ω · darkchannel(I / A)
//
// where the division is per channel. Components of A are floored at a
// small positive epsilon before dividing. The output is deliberately not
// clamped; values may fall slightly outside [0,1] until the refinement
// stage clamps its result.
func InitialTransmission(img *Image, a [3]float64, patchSize int, omega float64) (*Gray, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	if omega < 0 || omega > 1 {
		return nil, fmt.Errorf("%w: omega must be in [0,1], got %g", ErrInvalidParameter, omega)
	}

	var inv [3]float64
	for c := 0; c < 3; c++ {
		ac := a[c]
		if ac < atmLightFloor {
			ac = atmLightFloor
		}
		inv[c] = 1 / ac
	}

	norm := NewImage(img.W, img.H)
	for i := 0; i < img.W*img.H; i++ {
		src := img.Pix[i*3:]
		dst := norm.Pix[i*3:]
		dst[0] = src[0] * inv[0]
		dst[1] = src[1] * inv[1]
		dst[2] = src[2] * inv[2]
	}

	dark, err := DarkChannel(norm, patchSize)
	if err != nil {
		return nil, err
	}

	t := NewGray(img.W, img.H)
	for i, v := range dark.Pix {
		t.Pix[i] = 1 - omega*v
	}
	return t, nil
}
