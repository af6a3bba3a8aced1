package dcp

import "fmt"

// RecoverRadiance inverts the haze formation model:
//
//	J = (I − A) / max(t, t0) + A
//
// per pixel and channel, with A broadcast across the image and t
// broadcast across channels. The t0 floor keeps near-zero transmission
// from amplifying noise without bound. Every output sample is clamped to
// [0,1].
//
// With t ≡ 1 the recovery is the identity: J = I exactly.
func RecoverRadiance(img *Image, a [3]float64, t *Gray, t0 float64) (*Image, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	if t == nil || t.W != img.W || t.H != img.H {
		return nil, fmt.Errorf("%w: transmission dimensions do not match image", ErrInvalidImage)
	}
	if t0 <= 0 || t0 >= 1 {
		return nil, fmt.Errorf("%w: t0 must be in (0,1), got %g", ErrInvalidParameter, t0)
	}

	out := NewImage(img.W, img.H)
	for i := 0; i < img.W*img.H; i++ {
		tv := t.Pix[i]
		if tv < t0 {
			tv = t0
		}
		src := img.Pix[i*3:]
		dst := out.Pix[i*3:]
		for c := 0; c < 3; c++ {
			dst[c] = clamp01((src[c]-a[c])/tv + a[c])
		}
	}
	return out, nil
}
