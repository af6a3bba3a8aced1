package dcp

import "fmt"

// Method selects the transmission refinement strategy for a run.
type Method string

const (
	// MethodGuidedFilter refines with an edge-aware guided filter.
	// O(H·W) per run regardless of radius; the default, and the only
	// method exposed by latency-sensitive deployments.
	MethodGuidedFilter Method = "guided_filter"

	// MethodSoftMatting refines with closed-form matting: a sparse
	// matting-Laplacian solve over all pixels. Far more expensive;
	// intended for batch/offline runs only.
	MethodSoftMatting Method = "soft_matting"

	// MethodAll runs every available refinement method and reports one
	// result per method.
	MethodAll Method = "all"
)

// AlgorithmConfig holds the parameters shared by the base estimation
// stages (dark channel, atmospheric light, initial transmission, radiance
// recovery).
type AlgorithmConfig struct {
	// PatchSize is the square minimum-filter window edge. Odd, >= 1.
	PatchSize int `yaml:"patch_size" json:"patch_size"`

	// Omega is the haze-retention factor in [0,1]. Values below 1 keep a
	// trace of haze for depth perception.
	Omega float64 `yaml:"omega" json:"omega"`

	// AtmosphericLightPercentile is the fraction of brightest
	// dark-channel pixels considered when estimating A. In (0,1].
	AtmosphericLightPercentile float64 `yaml:"atmospheric_light_percentile" json:"atmospheric_light_percentile"`

	// T0 is the lower transmission bound used during radiance recovery.
	// In (0,1); prevents division blow-up in dense haze.
	T0 float64 `yaml:"t0" json:"t0"`
}

// GuidedFilterConfig parameterizes the guided-filter refiner.
type GuidedFilterConfig struct {
	// Radius is the full edge length of the box-filter window, >= 1.
	// Radius 1 degenerates to the identity filter.
	Radius int `yaml:"radius" json:"radius"`

	// Epsilon is the regularizer on the guide variance. Larger values
	// smooth more and track the guide's edges less.
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
}

// SoftMattingConfig parameterizes the soft-matting refiner.
type SoftMattingConfig struct {
	// Lambda weighs fidelity to the initial transmission against the
	// matting-Laplacian smoothness term. > 0.
	Lambda float64 `yaml:"lambda" json:"lambda"`

	// Epsilon regularizes the per-window color covariance inversion. > 0.
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`

	// WinSize is the square local window edge for the Laplacian. Odd, >= 1.
	WinSize int `yaml:"win_size" json:"win_size"`
}

// RefinementConfig selects and parameterizes transmission refinement.
type RefinementConfig struct {
	Method       Method             `yaml:"method" json:"method"`
	GuidedFilter GuidedFilterConfig `yaml:"guided_filter" json:"guided_filter"`
	SoftMatting  SoftMattingConfig  `yaml:"soft_matting" json:"soft_matting"`
}

// Config is the full parameter set for one pipeline run.
type Config struct {
	Algorithm  AlgorithmConfig  `yaml:"algorithm" json:"algorithm"`
	Refinement RefinementConfig `yaml:"refinement" json:"refinement"`
}

// DefaultConfig returns the parameter set used when a caller supplies
// nothing: the values recommended by the original paper, guided-filter
// refinement.
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmConfig{
			PatchSize:                  15,
			Omega:                      0.95,
			AtmosphericLightPercentile: 0.001,
			T0:                         0.1,
		},
		Refinement: RefinementConfig{
			Method: MethodGuidedFilter,
			GuidedFilter: GuidedFilterConfig{
				Radius:  60,
				Epsilon: 1e-3,
			},
			SoftMatting: SoftMattingConfig{
				Lambda:  1e-3,
				Epsilon: 1e-7,
				WinSize: 3,
			},
		},
	}
}

// Validate rejects parameter combinations before any computation begins.
// All violations wrap ErrInvalidParameter. An unrecognized refinement
// method is deliberately not an error here: Run substitutes the default
// method with a warning instead.
func (c Config) Validate() error {
	a := c.Algorithm
	if a.PatchSize < 1 || a.PatchSize%2 == 0 {
		return fmt.Errorf("%w: patch_size must be a positive odd integer, got %d",
			ErrInvalidParameter, a.PatchSize)
	}
	if a.Omega < 0 || a.Omega > 1 {
		return fmt.Errorf("%w: omega must be in [0,1], got %g", ErrInvalidParameter, a.Omega)
	}
	if a.AtmosphericLightPercentile <= 0 || a.AtmosphericLightPercentile > 1 {
		return fmt.Errorf("%w: atmospheric_light_percentile must be in (0,1], got %g",
			ErrInvalidParameter, a.AtmosphericLightPercentile)
	}
	if a.T0 <= 0 || a.T0 >= 1 {
		return fmt.Errorf("%w: t0 must be in (0,1), got %g", ErrInvalidParameter, a.T0)
	}

	gf := c.Refinement.GuidedFilter
	if gf.Radius < 1 {
		return fmt.Errorf("%w: guided_filter.radius must be >= 1, got %d",
			ErrInvalidParameter, gf.Radius)
	}
	if gf.Epsilon <= 0 {
		return fmt.Errorf("%w: guided_filter.epsilon must be > 0, got %g",
			ErrInvalidParameter, gf.Epsilon)
	}

	sm := c.Refinement.SoftMatting
	if sm.WinSize < 1 || sm.WinSize%2 == 0 {
		return fmt.Errorf("%w: soft_matting.win_size must be a positive odd integer, got %d",
			ErrInvalidParameter, sm.WinSize)
	}
	if sm.Lambda <= 0 {
		return fmt.Errorf("%w: soft_matting.lambda must be > 0, got %g",
			ErrInvalidParameter, sm.Lambda)
	}
	if sm.Epsilon <= 0 {
		return fmt.Errorf("%w: soft_matting.epsilon must be > 0, got %g",
			ErrInvalidParameter, sm.Epsilon)
	}
	return nil
}
