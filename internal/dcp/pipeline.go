package dcp

import (
	"context"
	"fmt"
)

// MethodResult is the output of one refinement method: the refined
// transmission map and the radiance recovered with it.
type MethodResult struct {
	Method       Method
	Transmission *Gray
	Radiance     *Image

	// Solve is non-nil for soft matting and reports the linear solve.
	Solve *SolveStats
}

// Result carries every artifact of a pipeline run: the intermediates of
// the shared estimation stages plus one MethodResult per refinement
// method executed. Batch callers typically use only Runs; diagnostic
// callers get the full trace.
type Result struct {
	DarkChannel         *Gray
	AtmosphericLight    [3]float64
	InitialTransmission *Gray
	Runs                []MethodResult
}

// ByMethod returns the result for method m, or nil if it did not run.
func (r *Result) ByMethod(m Method) *MethodResult {
	for i := range r.Runs {
		if r.Runs[i].Method == m {
			return &r.Runs[i]
		}
	}
	return nil
}

// Run executes the full haze-removal pipeline on one image.
//
// The run is a pure function of img and cfg: the input is never mutated
// and no state survives the call, so concurrent runs need no
// coordination. sink receives one event per completed stage, called
// synchronously and in order; pass nil to discard events. ctx is checked
// between stages, so cancellation is coarse-grained.
//
// An unrecognized refinement method is substituted with the default
// (guided filter) and reported as a warning rather than failing the run.
func Run(ctx context.Context, img *Image, cfg Config, sink Sink) (*Result, error) {
	if sink == nil {
		sink = NopSink{}
	}
	if err := img.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sink.Progress(StageStart, fmt.Sprintf("Processing %dx%d image...", img.W, img.H))

	alg := cfg.Algorithm
	dark, err := DarkChannel(img, alg.PatchSize)
	if err != nil {
		return nil, err
	}
	sink.Artifact(StageDarkChannel, "Dark channel computed.",
		Artifact{Name: "dark_channel", Gray: dark})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a, err := AtmosphericLight(img, dark, alg.AtmosphericLightPercentile)
	if err != nil {
		return nil, err
	}
	sink.Progress(StageAtmosphericLight,
		fmt.Sprintf("Atmospheric light estimated: A = [%.3f, %.3f, %.3f]", a[0], a[1], a[2]))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	initial, err := InitialTransmission(img, a, alg.PatchSize, alg.Omega)
	if err != nil {
		return nil, err
	}
	sink.Artifact(StageInitialTransmission, "Initial transmission estimated.",
		Artifact{Name: "initial_transmission", Gray: initial})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{
		DarkChannel:         dark,
		AtmosphericLight:    a,
		InitialTransmission: initial,
	}

	for _, method := range resolveMethods(cfg.Refinement.Method, sink) {
		mr, err := refineAndRecover(img, cfg, a, initial, method, sink)
		if err != nil {
			return nil, err
		}
		res.Runs = append(res.Runs, mr)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sink.Progress(StageDone, "Pipeline finished.")
	return res, nil
}

// resolveMethods maps the configured method onto the closed set of
// refinement strategies, substituting the default for unknown values.
func resolveMethods(m Method, sink Sink) []Method {
	switch m {
	case MethodGuidedFilter, "":
		return []Method{MethodGuidedFilter}
	case MethodSoftMatting:
		return []Method{MethodSoftMatting}
	case MethodAll:
		return []Method{MethodGuidedFilter, MethodSoftMatting}
	default:
		sink.Progress(StageRefinement,
			fmt.Sprintf("Warning: refinement method %q is not supported, using %q.",
				string(m), string(MethodGuidedFilter)))
		return []Method{MethodGuidedFilter}
	}
}

func refineAndRecover(img *Image, cfg Config, a [3]float64, initial *Gray, method Method, sink Sink) (MethodResult, error) {
	mr := MethodResult{Method: method}

	switch method {
	case MethodGuidedFilter:
		sink.Progress(StageRefinement, "Refining transmission with the guided filter...")
		gf := cfg.Refinement.GuidedFilter
		refined, err := RefineGuidedFilter(initial, img.Grayscale(), gf.Radius, gf.Epsilon)
		if err != nil {
			return mr, err
		}
		mr.Transmission = refined

	case MethodSoftMatting:
		sink.Progress(StageRefinement, "Refining transmission with soft matting (slow)...")
		sm := cfg.Refinement.SoftMatting
		refined, stats, err := RefineSoftMatting(initial, img, sm.Lambda, sm.Epsilon, sm.WinSize)
		if err != nil {
			return mr, err
		}
		if !stats.Converged {
			sink.Progress(StageRefinement,
				fmt.Sprintf("Warning: soft matting solver stopped after %d iterations at residual %.2e; using best iterate.",
					stats.Iterations, stats.Residual))
		}
		mr.Transmission = refined
		mr.Solve = &stats

	default:
		return mr, fmt.Errorf("%w: refinement method %q", ErrInvalidParameter, string(method))
	}

	sink.Artifact(StageRefinement, fmt.Sprintf("Transmission refined (%s).", string(method)),
		Artifact{Name: "refined_transmission_" + string(method), Gray: mr.Transmission})

	radiance, err := RecoverRadiance(img, a, mr.Transmission, cfg.Algorithm.T0)
	if err != nil {
		return mr, err
	}
	mr.Radiance = radiance
	sink.Artifact(StageRecovery, fmt.Sprintf("Scene radiance recovered (%s).", string(method)),
		Artifact{Name: "dehazed_" + string(method), Image: radiance})
	return mr, nil
}
