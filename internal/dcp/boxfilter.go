package dcp

// boxFilter computes the uniform local mean over a size×size window via a
// summed-area table, so one application costs O(W·H) regardless of the
// window size. Windows are clamped at the image border and normalized by
// the true number of pixels they cover, so border means stay unbiased.
//
// For even sizes the window extends one pixel further up/left than
// down/right. Size 1 is the identity.
func boxFilter(src *Gray, size int) *Gray {
	w, h := src.W, src.H
	lo := size / 2
	hi := (size - 1) / 2

	// sat[(y+1)*(w+1)+(x+1)] = sum of src over [0,x]×[0,y].
	sat := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		rowSum := 0.0
		for x := 0; x < w; x++ {
			rowSum += src.Pix[y*w+x]
			sat[(y+1)*(w+1)+(x+1)] = sat[y*(w+1)+(x+1)] + rowSum
		}
	}

	dst := NewGray(w, h)
	for y := 0; y < h; y++ {
		y1, y2 := y-lo, y+hi
		if y1 < 0 {
			y1 = 0
		}
		if y2 > h-1 {
			y2 = h - 1
		}
		for x := 0; x < w; x++ {
			x1, x2 := x-lo, x+hi
			if x1 < 0 {
				x1 = 0
			}
			if x2 > w-1 {
				x2 = w - 1
			}
			sum := sat[(y2+1)*(w+1)+(x2+1)] - sat[y1*(w+1)+(x2+1)] -
				sat[(y2+1)*(w+1)+x1] + sat[y1*(w+1)+x1]
			dst.Pix[y*w+x] = sum / float64((y2-y1+1)*(x2-x1+1))
		}
	}
	return dst
}
