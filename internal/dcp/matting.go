package dcp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Conjugate-gradient budget for the soft-matting solve. The solver stops
// at the relative residual tolerance or the iteration cap, whichever
// comes first; hitting the cap is non-fatal.
const (
	cgTolerance = 1e-6
	cgMaxIter   = 2000
)

// SolveStats describes the linear solve behind a soft-matting refinement.
type SolveStats struct {
	// Converged is false when the iteration budget ran out before the
	// residual tolerance was met. The returned map is then the best
	// iterate observed, not the exact solution.
	Converged  bool
	Iterations int

	// Residual is the final relative residual ‖b − Mx‖/‖b‖.
	Residual float64
}

// RefineSoftMatting refines a transmission map by closed-form matting,
// after Levin, Lischinski and Weiss, "A Closed-Form Solution to Natural
// Image Matting" (PAMI 2008): it assembles the sparse matting Laplacian L
// from per-window color statistics of the full-color image and solves
//
//	(L + λ·I) t = λ·t̃
//
// with conjugate gradient (L + λI is symmetric positive-definite for
// λ > 0). Local windows are winSize×winSize, clipped at the image border.
// The result is clamped to [0,1].
//
// This is by far the most expensive stage of the pipeline — O(H·W·k⁴)
// assembly plus an iterative solve over H·W unknowns — and is intended
// for batch/offline use only.
func RefineSoftMatting(t *Gray, img *Image, lambda, epsilon float64, winSize int) (*Gray, SolveStats, error) {
	var stats SolveStats
	if err := img.validate(); err != nil {
		return nil, stats, err
	}
	if t == nil || t.W != img.W || t.H != img.H {
		return nil, stats, fmt.Errorf("%w: transmission dimensions do not match image", ErrInvalidImage)
	}
	if winSize < 1 || winSize%2 == 0 {
		return nil, stats, fmt.Errorf("%w: soft matting window size must be a positive odd integer, got %d",
			ErrInvalidParameter, winSize)
	}
	if lambda <= 0 {
		return nil, stats, fmt.Errorf("%w: soft matting lambda must be > 0, got %g",
			ErrInvalidParameter, lambda)
	}
	if epsilon <= 0 {
		return nil, stats, fmt.Errorf("%w: soft matting epsilon must be > 0, got %g",
			ErrInvalidParameter, epsilon)
	}

	lap, err := buildMattingLaplacian(img, epsilon, winSize)
	if err != nil {
		return nil, stats, err
	}

	b := make([]float64, len(t.Pix))
	for i, v := range t.Pix {
		b[i] = lambda * v
	}
	x, stats := lap.solveCG(lambda, b, t.Pix)

	out := NewGray(t.W, t.H)
	for i, v := range x {
		out.Pix[i] = clamp01(v)
	}
	return out, stats, nil
}

// sparseMatrix is a symmetric N×N matrix in CSR form. Rows are pre-sized
// to the full (2·winSize−1)² neighborhood stencil (clipped at borders),
// so window contributions accumulate by direct slot arithmetic in a
// single pass with no dynamic insertion.
type sparseMatrix struct {
	n       int
	w, h    int
	stencil int // Chebyshev radius of the nonzero band: winSize-1
	rowPtr  []int
	cols    []int32
	vals    []float64
}

func newSparseMatrix(w, h, winSize int) *sparseMatrix {
	n := w * h
	r := winSize - 1
	m := &sparseMatrix{n: n, w: w, h: h, stencil: r, rowPtr: make([]int, n+1)}

	nnz := 0
	for y := 0; y < h; y++ {
		ny := spanLen(y, r, h)
		for x := 0; x < w; x++ {
			nnz += ny * spanLen(x, r, w)
			m.rowPtr[y*w+x+1] = nnz
		}
	}

	m.cols = make([]int32, nnz)
	m.vals = make([]float64, nnz)
	for y := 0; y < h; y++ {
		yLo := maxInt(0, y-r)
		yHi := minInt(h-1, y+r)
		for x := 0; x < w; x++ {
			xLo := maxInt(0, x-r)
			xHi := minInt(w-1, x+r)
			p := m.rowPtr[y*w+x]
			for jy := yLo; jy <= yHi; jy++ {
				for jx := xLo; jx <= xHi; jx++ {
					m.cols[p] = int32(jy*w + jx)
					p++
				}
			}
		}
	}
	return m
}

// slot returns the CSR value index for entry (row at (y,x), column at
// (jy,jx)). The column must lie within the row's stencil.
func (m *sparseMatrix) slot(y, x, jy, jx int) int {
	yLo := maxInt(0, y-m.stencil)
	xLo := maxInt(0, x-m.stencil)
	nDx := spanLen(x, m.stencil, m.w)
	return m.rowPtr[y*m.w+x] + (jy-yLo)*nDx + (jx - xLo)
}

// mulVecShift computes dst = M·x + shift·x.
func (m *sparseMatrix) mulVecShift(dst, x []float64, shift float64) {
	for i := 0; i < m.n; i++ {
		sum := 0.0
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			sum += m.vals[p] * x[m.cols[p]]
		}
		dst[i] = sum + shift*x[i]
	}
}

// buildMattingLaplacian assembles the matting Laplacian of img. For every
// pixel p it takes the winSize×winSize window W(p) clipped at the border,
// computes the window's color mean μ and 3×3 covariance Σ, and for every
// ordered pixel pair (i, j) in W(p) accumulates
//
//	δ(i=j) − (1 + (cᵢ−μ)ᵀ (Σ + (ε/|W|)·I₃)⁻¹ (cⱼ−μ)) / |W|
//
// By construction every row of the result sums to zero.
func buildMattingLaplacian(img *Image, epsilon float64, winSize int) (*sparseMatrix, error) {
	w, h := img.W, img.H
	half := winSize / 2
	lap := newSparseMatrix(w, h, winSize)

	maxWin := winSize * winSize
	wins := make([]int, 0, maxWin)      // pixel indices of the current window
	diffs := make([]float64, 3*maxWin)  // cᵢ − μ
	proj := make([]float64, 3*maxWin)   // (Σ + εI)⁻¹ (cᵢ − μ)
	regCov := mat.NewDense(3, 3, nil)
	invCov := mat.NewDense(3, 3, nil)

	for cy := 0; cy < h; cy++ {
		yLo := maxInt(0, cy-half)
		yHi := minInt(h-1, cy+half)
		for cx := 0; cx < w; cx++ {
			xLo := maxInt(0, cx-half)
			xHi := minInt(w-1, cx+half)

			wins = wins[:0]
			var sum [3]float64
			var sumSq [3][3]float64
			for y := yLo; y <= yHi; y++ {
				for x := xLo; x <= xHi; x++ {
					i := y*w + x
					wins = append(wins, i)
					c := img.Pix[i*3:]
					for a := 0; a < 3; a++ {
						sum[a] += c[a]
						for b := a; b < 3; b++ {
							sumSq[a][b] += c[a] * c[b]
						}
					}
				}
			}

			winN := float64(len(wins))
			var mu [3]float64
			for a := 0; a < 3; a++ {
				mu[a] = sum[a] / winN
			}
			reg := epsilon / winN
			for a := 0; a < 3; a++ {
				for b := a; b < 3; b++ {
					cov := sumSq[a][b]/winN - mu[a]*mu[b]
					if a == b {
						cov += reg
					}
					regCov.Set(a, b, cov)
					regCov.Set(b, a, cov)
				}
			}
			if err := invCov.Inverse(regCov); err != nil {
				return nil, fmt.Errorf("invert window covariance at (%d,%d): %w", cx, cy, err)
			}

			for k, i := range wins {
				c := img.Pix[i*3:]
				d := diffs[k*3:]
				d[0] = c[0] - mu[0]
				d[1] = c[1] - mu[1]
				d[2] = c[2] - mu[2]
			}
			for k := range wins {
				d := diffs[k*3:]
				e := proj[k*3:]
				for a := 0; a < 3; a++ {
					e[a] = invCov.At(a, 0)*d[0] + invCov.At(a, 1)*d[1] + invCov.At(a, 2)*d[2]
				}
			}

			invW := 1 / winN
			for ki, i := range wins {
				iy, ix := i/w, i%w
				ei := proj[ki*3:]
				for kj, j := range wins {
					dj := diffs[kj*3:]
					val := -(1 + ei[0]*dj[0] + ei[1]*dj[1] + ei[2]*dj[2]) * invW
					if i == j {
						val++
					}
					lap.vals[lap.slot(iy, ix, j/w, j%w)] += val
				}
			}
		}
	}
	return lap, nil
}

// solveCG runs conjugate gradient on (M + shift·I) x = b, starting from
// x0. It keeps the iterate with the smallest residual seen, so a
// non-converged solve still returns the best available answer.
func (m *sparseMatrix) solveCG(shift float64, b, x0 []float64) ([]float64, SolveStats) {
	n := m.n
	x := make([]float64, n)
	copy(x, x0)

	r := make([]float64, n)
	ap := make([]float64, n)
	m.mulVecShift(ap, x, shift)
	for i := range r {
		r[i] = b[i] - ap[i]
	}
	p := make([]float64, n)
	copy(p, r)

	bNorm := norm2(b)
	if bNorm == 0 {
		return make([]float64, n), SolveStats{Converged: true}
	}

	best := make([]float64, n)
	copy(best, x)
	bestRes := norm2(r) / bNorm

	rsOld := dot(r, r)
	stats := SolveStats{Residual: bestRes}
	for iter := 0; iter < cgMaxIter; iter++ {
		res := math.Sqrt(rsOld) / bNorm
		if res < bestRes {
			bestRes = res
			copy(best, x)
		}
		if res < cgTolerance {
			stats.Converged = true
			stats.Iterations = iter
			stats.Residual = res
			return x, stats
		}

		m.mulVecShift(ap, p, shift)
		alpha := rsOld / dot(p, ap)
		for i := range x {
			x[i] += alpha * p[i]
			r[i] -= alpha * ap[i]
		}
		rsNew := dot(r, r)
		beta := rsNew / rsOld
		for i := range p {
			p[i] = r[i] + beta*p[i]
		}
		rsOld = rsNew
		stats.Iterations = iter + 1
	}

	res := math.Sqrt(rsOld) / bNorm
	if res < bestRes {
		bestRes = res
		copy(best, x)
	}
	stats.Residual = bestRes
	return best, stats
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm2(a []float64) float64 {
	return math.Sqrt(dot(a, a))
}

// spanLen is the number of valid coordinates within radius r of c on an
// axis of length limit.
func spanLen(c, r, limit int) int {
	lo := maxInt(0, c-r)
	hi := minInt(limit-1, c+r)
	return hi - lo + 1
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
