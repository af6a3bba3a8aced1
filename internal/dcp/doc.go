// Package dcp implements single-image haze removal using the Dark Channel
// Prior, after He, Sun and Tang, "Single Image Haze Removal Using Dark
// Channel Prior" (CVPR 2009).
//
// # Haze Model
//
// A hazy observation I is modeled per pixel and channel as
//
//	I(x) = J(x)·t(x) + A·(1 − t(x))
//
// where J is the true scene radiance, A is the globally constant
// atmospheric light and t ∈ [0,1] is the transmission (the fraction of
// radiance that survives scattering). The pipeline estimates A and t from
// the input alone, then inverts the model.
//
// # Pipeline
//
// Run executes the stages strictly in order:
//
//  1. Dark channel: channel-wise minimum followed by a square local
//     minimum filter.
//  2. Atmospheric light: the brightest input pixel among the
//     top-percentile dark-channel pixels.
//  3. Initial transmission: 1 − ω·darkchannel(I/A).
//  4. Refinement: either an edge-aware guided filter (fast, the default)
//     or closed-form soft matting (a sparse matting-Laplacian solve,
//     batch/offline only).
//  5. Radiance recovery: (I − A)/max(t, t0) + A, clamped to [0,1].
//
// Every stage is a pure function of its inputs; nothing is shared between
// runs, so independent runs may execute concurrently. Stage completion is
// reported through a caller-supplied Sink.
//
// # Error Handling
//
// Parameter and image validation fail fast with ErrInvalidParameter or
// ErrInvalidImage before any computation. Numeric degeneracies
// (atmospheric light components at zero) are floored locally. A
// non-converged soft-matting solve returns its best iterate and reports a
// warning through the Sink; it never aborts the run.
package dcp
