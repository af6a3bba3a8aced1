// Package config loads pipeline and experiment configuration from YAML
// files.
//
// Omitted keys keep their default values, so a config file only needs to
// name the parameters it overrides. Loaded configurations are validated
// before being returned.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hazetools/dehaze/internal/batch"
	"github.com/hazetools/dehaze/internal/dcp"
)

// Load reads a pipeline configuration from a YAML file.
//
// The file's keys overlay dcp.DefaultConfig, so a partial file is valid.
// Returns an error if the file cannot be read, parsed, or fails parameter
// validation.
func Load(path string) (dcp.Config, error) {
	cfg := dcp.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// experimentFile is the on-disk shape of an experiment definition: a base
// pipeline configuration with a parameter_grid key alongside it.
type experimentFile struct {
	Base dcp.Config `yaml:",inline"`
	Grid batch.Grid `yaml:"parameter_grid"`
}

// LoadExperiment reads an experiment definition from a YAML file.
//
// The returned base config overlays dcp.DefaultConfig the same way Load
// does. The grid maps dotted parameter paths (for example
// "algorithm.omega" or "refinement.guided_filter.radius") to the list of
// values to sweep. An empty or missing parameter_grid is valid and yields
// a single run with the base config.
func LoadExperiment(path string) (dcp.Config, batch.Grid, error) {
	file := experimentFile{Base: dcp.DefaultConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		return file.Base, nil, fmt.Errorf("failed to read experiment config: %w", err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file.Base, nil, fmt.Errorf("failed to parse experiment config: %w", err)
	}
	if err := file.Base.Validate(); err != nil {
		return file.Base, nil, fmt.Errorf("invalid experiment config %s: %w", path, err)
	}
	return file.Base, file.Grid, nil
}
