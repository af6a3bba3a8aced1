package dcp

import (
	"fmt"
	"sort"
)

// AtmosphericLight estimates the global atmospheric light A.
//
// It selects the k = floor(n·percentile) pixels (minimum 1) with the
// largest dark-channel values, then returns the color of the candidate
// whose channel sum is largest, read from the original image. The result
// is therefore always an actual pixel of the input, never an average.
//
// Ties are broken deterministically toward the lowest row-major index,
// both when cutting off the top-k set and when comparing channel sums.
func AtmosphericLight(img *Image, dark *Gray, percentile float64) ([3]float64, error) {
	var a [3]float64
	if err := img.validate(); err != nil {
		return a, err
	}
	if dark == nil || dark.W != img.W || dark.H != img.H {
		return a, fmt.Errorf("%w: dark channel dimensions do not match image", ErrInvalidImage)
	}
	if percentile <= 0 || percentile > 1 {
		return a, fmt.Errorf("%w: percentile must be in (0,1], got %g",
			ErrInvalidParameter, percentile)
	}

	n := img.W * img.H
	k := int(float64(n) * percentile)
	if k < 1 {
		k = 1
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		di, dj := dark.Pix[idx[i]], dark.Pix[idx[j]]
		if di != dj {
			return di > dj
		}
		return idx[i] < idx[j]
	})

	bestIdx := -1
	bestSum := -1.0
	for _, i := range idx[:k] {
		p := img.Pix[i*3:]
		sum := p[0] + p[1] + p[2]
		if sum > bestSum || (sum == bestSum && i < bestIdx) {
			bestSum = sum
			bestIdx = i
		}
	}

	p := img.Pix[bestIdx*3:]
	a[0], a[1], a[2] = p[0], p[1], p[2]
	return a, nil
}
