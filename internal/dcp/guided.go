package dcp

import "fmt"

// RefineGuidedFilter smooths a transmission map with an edge-aware guided
// filter, after He, Sun and Tang, "Guided Image Filtering" (ECCV 2010).
//
// The filter fits a local linear model t ≈ a·I + b per window of the
// grayscale guide I, then averages the overlapping per-window estimates:
//
//	a = cov(I, t) / (var(I) + ε)
//	b = mean(t) − a·mean(I)
//	out = mean(a)·I + mean(b)
//
// radius is the full box-window edge length; radius 1 leaves the input
// unchanged and radius < 1 is rejected. A very large epsilon drives a
// toward 0 everywhere, degenerating to a plain box smoothing of the
// transmission, independent of the guide. The result is clamped to [0,1].
func RefineGuidedFilter(t, guide *Gray, radius int, epsilon float64) (*Gray, error) {
	if t == nil || guide == nil || t.W != guide.W || t.H != guide.H || t.W <= 0 || t.H <= 0 {
		return nil, fmt.Errorf("%w: transmission and guide dimensions must match and be non-empty",
			ErrInvalidImage)
	}
	if radius < 1 {
		return nil, fmt.Errorf("%w: guided filter radius must be >= 1, got %d",
			ErrInvalidParameter, radius)
	}
	if epsilon <= 0 {
		return nil, fmt.Errorf("%w: guided filter epsilon must be > 0, got %g",
			ErrInvalidParameter, epsilon)
	}

	n := t.W * t.H
	prodII := NewGray(t.W, t.H)
	prodIP := NewGray(t.W, t.H)
	for i := 0; i < n; i++ {
		prodII.Pix[i] = guide.Pix[i] * guide.Pix[i]
		prodIP.Pix[i] = guide.Pix[i] * t.Pix[i]
	}

	meanI := boxFilter(guide, radius)
	meanP := boxFilter(t, radius)
	corrI := boxFilter(prodII, radius)
	corrIP := boxFilter(prodIP, radius)

	a := NewGray(t.W, t.H)
	b := NewGray(t.W, t.H)
	for i := 0; i < n; i++ {
		varI := corrI.Pix[i] - meanI.Pix[i]*meanI.Pix[i]
		covIP := corrIP.Pix[i] - meanI.Pix[i]*meanP.Pix[i]
		a.Pix[i] = covIP / (varI + epsilon)
		b.Pix[i] = meanP.Pix[i] - a.Pix[i]*meanI.Pix[i]
	}

	meanA := boxFilter(a, radius)
	meanB := boxFilter(b, radius)

	out := NewGray(t.W, t.H)
	for i := 0; i < n; i++ {
		out.Pix[i] = clamp01(meanA.Pix[i]*guide.Pix[i] + meanB.Pix[i])
	}
	return out, nil
}
