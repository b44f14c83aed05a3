// Copyright (C) 2021 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads despike settings from YAML files, with defaults for
// missing entries. Command line flags override loaded values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mlnoga/despike/internal/dspk"
)

// Application configuration
type Config struct {
	// Despeckling parameters
	Processing struct {
		// Bins is the number of bins per histogram axis
		Bins int32 `yaml:"bins"`

		// TMin and TMax are the lower and upper cumulative probability cutoffs
		TMin float32 `yaml:"tMin"`
		TMax float32 `yaml:"tMax"`

		// Sigma is the significance confidence budget, 0 keeps the default
		Sigma float32 `yaml:"sigma"`

		// ThetaStep is the angle search resolution in radians, 0 keeps the default
		ThetaStep float64 `yaml:"thetaStep"`

		// Radius is the local median window radius in pixels
		Radius int32 `yaml:"radius"`

		// Iterations is the maximum number of flagging rounds
		Iterations int `yaml:"iterations"`

		// Intensity also clips on the global intensity distribution
		Intensity bool `yaml:"intensity"`

		// Repair replaces flagged pixels with their local median
		Repair bool `yaml:"repair"`

		// RangeSigmas clips the binning range to the background mode plus/minus
		// this many fitted standard deviations, 0 uses the full data range
		RangeSigmas float32 `yaml:"rangeSigmas"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Pattern is the output FITS filename pattern, e.g. dspk%04d.fits
		Pattern string `yaml:"pattern"`

		// TIFF saves a 16-bit TIFF preview of the middle plane per output
		TIFF bool `yaml:"tiff"`

		// Heatmap saves a PNG heatmap of the first histogram slice per output
		Heatmap bool `yaml:"heatmap"`
	} `yaml:"output"`

	// REST serving parameters
	Serve struct {
		// Addr is the listen address for despike serve, e.g. :8080
		Addr string `yaml:"addr"`
	} `yaml:"serve"`
}

// Returns a configuration with default values
func Default() *Config {
	cfg := &Config{}
	p := dspk.DefaultParams()
	cfg.Processing.Bins = p.Bins
	cfg.Processing.TMin = p.TMin
	cfg.Processing.TMax = p.TMax
	cfg.Processing.Sigma = p.Sigma
	cfg.Processing.ThetaStep = p.ThetaStep
	cfg.Processing.Radius = p.Radius
	cfg.Processing.Iterations = p.Iterations
	cfg.Processing.Intensity = p.Intensity
	cfg.Processing.Repair = p.Repair
	cfg.Processing.RangeSigmas = 0
	cfg.Output.Pattern = "dspk%04d.fits"
	cfg.Output.TIFF = false
	cfg.Output.Heatmap = false
	cfg.Serve.Addr = ":8080"
	return cfg
}

// Loads configuration from the given YAML file, starting from defaults for
// missing entries
func Load(fileName string) (*Config, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", fileName, err)
	}
	return cfg, nil
}

// Saves the configuration to the given YAML file
func (cfg *Config) Save(fileName string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(fileName, data, 0644)
}

// Converts the processing section into despeckling parameters
func (cfg *Config) Params() dspk.Params {
	return dspk.Params{
		Bins:       cfg.Processing.Bins,
		TMin:       cfg.Processing.TMin,
		TMax:       cfg.Processing.TMax,
		Sigma:      cfg.Processing.Sigma,
		ThetaStep:  cfg.Processing.ThetaStep,
		Radius:     cfg.Processing.Radius,
		Iterations: cfg.Processing.Iterations,
		Intensity:  cfg.Processing.Intensity,
		Repair:     cfg.Processing.Repair,
	}
}
