// Package batch expands parameter grids into concrete pipeline
// configurations and runs them concurrently over a single input image.
package batch

import (
	"fmt"
	"sort"

	"github.com/hazetools/dehaze/internal/dcp"
)

// Grid maps dotted parameter paths to the list of values each should
// sweep. Example:
//
//	Grid{
//	    "algorithm.omega":                  {0.8, 0.9, 0.95},
//	    "refinement.guided_filter.radius":  {30, 60},
//	}
type Grid map[string][]any

// Variant is one fully resolved configuration from a grid expansion.
type Variant struct {
	// Name is a stable identifier of the form "run_001". Numbering follows
	// the expansion order, which is deterministic for a given grid.
	Name string

	// Params holds the overridden values keyed by dotted path.
	Params map[string]any

	// Config is the base configuration with Params applied.
	Config dcp.Config
}

// Expand produces the Cartesian product of a grid over a base config.
//
// Paths are iterated in sorted order and values in their declared order,
// so expansion order and run names are deterministic. An empty grid yields
// a single variant holding the unmodified base config. Each resulting
// config is validated; an invalid combination fails the whole expansion.
func Expand(base dcp.Config, grid Grid) ([]Variant, error) {
	paths := make([]string, 0, len(grid))
	for p := range grid {
		if len(grid[p]) == 0 {
			return nil, fmt.Errorf("parameter %q has no values", p)
		}
		paths = append(paths, p)
	}
	sort.Strings(paths)

	total := 1
	for _, p := range paths {
		total *= len(grid[p])
	}

	variants := make([]Variant, 0, total)
	idx := make([]int, len(paths))
	for i := 0; i < total; i++ {
		cfg := base
		params := make(map[string]any, len(paths))
		for k, p := range paths {
			v := grid[p][idx[k]]
			if err := applyOverride(&cfg, p, v); err != nil {
				return nil, err
			}
			params[p] = v
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("grid combination %v: %w", params, err)
		}
		variants = append(variants, Variant{
			Name:   fmt.Sprintf("run_%03d", i+1),
			Params: params,
			Config: cfg,
		})

		// Odometer increment over the rightmost path first.
		for k := len(paths) - 1; k >= 0; k-- {
			idx[k]++
			if idx[k] < len(grid[paths[k]]) {
				break
			}
			idx[k] = 0
		}
	}
	return variants, nil
}

// applyOverride sets one dotted-path parameter on a config.
//
// YAML decoding hands over int, float64, or string values depending on how
// the literal was written, so numeric targets accept either numeric form.
func applyOverride(cfg *dcp.Config, path string, v any) error {
	switch path {
	case "algorithm.patch_size":
		return setInt(&cfg.Algorithm.PatchSize, path, v)
	case "algorithm.omega":
		return setFloat(&cfg.Algorithm.Omega, path, v)
	case "algorithm.atmospheric_light_percentile":
		return setFloat(&cfg.Algorithm.AtmosphericLightPercentile, path, v)
	case "algorithm.t0":
		return setFloat(&cfg.Algorithm.T0, path, v)
	case "refinement.method":
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("parameter %q: expected string, got %T", path, v)
		}
		cfg.Refinement.Method = dcp.Method(s)
		return nil
	case "refinement.guided_filter.radius":
		return setInt(&cfg.Refinement.GuidedFilter.Radius, path, v)
	case "refinement.guided_filter.epsilon":
		return setFloat(&cfg.Refinement.GuidedFilter.Epsilon, path, v)
	case "refinement.soft_matting.lambda":
		return setFloat(&cfg.Refinement.SoftMatting.Lambda, path, v)
	case "refinement.soft_matting.epsilon":
		return setFloat(&cfg.Refinement.SoftMatting.Epsilon, path, v)
	case "refinement.soft_matting.win_size":
		return setInt(&cfg.Refinement.SoftMatting.WinSize, path, v)
	default:
		return fmt.Errorf("unknown grid parameter %q", path)
	}
}

func setInt(dst *int, path string, v any) error {
	switch n := v.(type) {
	case int:
		*dst = n
	case int64:
		*dst = int(n)
	case float64:
		if n != float64(int(n)) {
			return fmt.Errorf("parameter %q: %v is not an integer", path, v)
		}
		*dst = int(n)
	default:
		return fmt.Errorf("parameter %q: expected integer, got %T", path, v)
	}
	return nil
}

func setFloat(dst *float64, path string, v any) error {
	switch n := v.(type) {
	case float64:
		*dst = n
	case int:
		*dst = float64(n)
	case int64:
		*dst = float64(n)
	default:
		return fmt.Errorf("parameter %q: expected number, got %T", path, v)
	}
	return nil
}
