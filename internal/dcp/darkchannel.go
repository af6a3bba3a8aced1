package dcp

import "fmt"

// DarkChannel computes the dark channel of an RGB image: the per-pixel
// minimum over the three color channels, followed by a square local
// minimum filter of edge patchSize.
//
// Border handling replicates the nearest edge pixel (windows are clamped
// to the image), which for a minimum filter is equivalent to shrinking
// the window at the border.
//
// The output range is a subset of the input range, so it lies in [0,1]
// whenever the input does. patchSize must be a positive odd integer.
func DarkChannel(img *Image, patchSize int) (*Gray, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	if patchSize < 1 || patchSize%2 == 0 {
		return nil, fmt.Errorf("%w: patch size must be a positive odd integer, got %d",
			ErrInvalidParameter, patchSize)
	}

	minCh := NewGray(img.W, img.H)
	for i := 0; i < img.W*img.H; i++ {
		p := img.Pix[i*3:]
		v := p[0]
		if p[1] < v {
			v = p[1]
		}
		if p[2] < v {
			v = p[2]
		}
		minCh.Pix[i] = v
	}

	return minFilter(minCh, patchSize), nil
}

// minFilter applies a size×size sliding minimum with clamped windows.
// The square filter is separable: a horizontal pass followed by a
// vertical pass over the horizontal result.
func minFilter(src *Gray, size int) *Gray {
	half := size / 2
	w, h := src.W, src.H

	// Horizontal pass.
	tmp := NewGray(w, h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*w : (y+1)*w]
		out := tmp.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			lo, hi := x-half, x+half
			if lo < 0 {
				lo = 0
			}
			if hi > w-1 {
				hi = w - 1
			}
			v := row[lo]
			for i := lo + 1; i <= hi; i++ {
				if row[i] < v {
					v = row[i]
				}
			}
			out[x] = v
		}
	}

	// Vertical pass.
	dst := NewGray(w, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			lo, hi := y-half, y+half
			if lo < 0 {
				lo = 0
			}
			if hi > h-1 {
				hi = h - 1
			}
			v := tmp.Pix[lo*w+x]
			for i := lo + 1; i <= hi; i++ {
				if tmp.Pix[i*w+x] < v {
					v = tmp.Pix[i*w+x]
				}
			}
			dst.Pix[y*w+x] = v
		}
	}
	return dst
}
