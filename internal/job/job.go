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

// Package job runs the despeckling pipeline over sets of files, shared
// between the command line and the REST interface.
package job

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pbnjay/memory"

	"github.com/mlnoga/despike/internal/config"
	"github.com/mlnoga/despike/internal/cube"
	"github.com/mlnoga/despike/internal/dspk"
	"github.com/mlnoga/despike/internal/report"
	"github.com/mlnoga/despike/internal/stats"
)

// Assumed working set per in-flight file in MiB, to bound concurrency on
// small-memory machines
const jobMemoryMB = 2048

// Expands the given filename patterns and despeckles every matching file with
// the given configuration, writing outputs per the output section. Files run
// concurrently, bounded by CPU count and physical memory. Returns the first
// error encountered after all files have finished
func RunFiles(patterns []string, cfg *config.Config, logWriter io.Writer) error {
	fileNames, err := glob(patterns)
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "Despeckling %d files with %d bins, cutoffs [%g, %g]\n",
		len(fileNames), cfg.Processing.Bins, cfg.Processing.TMin, cfg.Processing.TMax)

	limiter := make(chan bool, maxConcurrent())
	errs := make(chan error, len(fileNames))
	for i, fileName := range fileNames {
		limiter <- true
		go func(i int, fileName string) {
			defer func() { <-limiter }()
			errs <- runFile(i, fileName, cfg, logWriter)
		}(i, fileName)
	}
	for i := 0; i < cap(limiter); i++ { // wait for goroutines to finish
		limiter <- true
	}

	for range fileNames { // collect errors
		if e := <-errs; e != nil {
			if err == nil {
				err = e
			} else {
				err = fmt.Errorf("%s; %s", err.Error(), e.Error())
			}
		}
	}
	return err
}

// Despeckles a single file with the given configuration and writes its outputs
func runFile(id int, fileName string, cfg *config.Config, logWriter io.Writer) error {
	c, err := cube.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("%d: reading %s: %w", id, fileName, err)
	}
	fmt.Fprintf(logWriter, "%d: read %s cube from %s\n", id, c.Dsz, fileName)

	p := cfg.Params()
	if rs := cfg.Processing.RangeSigmas; rs > 0 {
		p.DMin, p.DMax = stats.EstimateRange(c.Data, 4096, rs)
		fmt.Fprintf(logWriter, "%d: clipped binning range to [%.4g, %.4g] at %.1f sigmas\n", id, p.DMin, p.DMax, rs)
	}

	spikes, db, err := dspk.Despike(c, nil, p, logWriter)
	if err != nil {
		return fmt.Errorf("%d: despeckling %s: %w", id, fileName, err)
	}
	fmt.Fprintf(logWriter, "%d: flagged %d spike pixels (%.3f%%) in total\n",
		id, len(spikes), 100.0*float32(len(spikes))/float32(len(c.Data)))

	outName := fmt.Sprintf(cfg.Output.Pattern, id)
	if err = c.WriteFile(outName); err != nil {
		return fmt.Errorf("%d: writing %s: %w", id, outName, err)
	}
	fmt.Fprintf(logWriter, "%d: wrote despeckled cube to %s\n", id, outName)

	if cfg.Output.TIFF {
		tiffName := replaceSuffix(outName, ".tiff")
		min, _, max := c.MinMeanMax(nil)
		if err = c.WriteMonoTIFF16ToFile(tiffName, c.Dsz.Z/2, min, max, 1.0); err != nil {
			return fmt.Errorf("%d: writing %s: %w", id, tiffName, err)
		}
		fmt.Fprintf(logWriter, "%d: wrote preview to %s\n", id, tiffName)
	}

	if cfg.Output.Heatmap {
		pngName := replaceSuffix(outName, ".png")
		if err = report.WriteHistogramPNGToFile(pngName, db, 0); err != nil {
			return fmt.Errorf("%d: writing %s: %w", id, pngName, err)
		}
		fmt.Fprintf(logWriter, "%d: wrote histogram heatmap to %s\n", id, pngName)
	}
	return nil
}

// Expands filename patterns into a list of matching files
func glob(patterns []string) ([]string, error) {
	var fileNames []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("globbing %s: %w", pattern, err)
		}
		fileNames = append(fileNames, matches...)
	}
	if len(fileNames) == 0 {
		return nil, fmt.Errorf("no files match %v", patterns)
	}
	return fileNames, nil
}

// Bounds the number of concurrently processed files by CPU count and by
// physical memory, assuming a fixed working set per file
func maxConcurrent() int {
	n := runtime.NumCPU()
	if byMem := int(memory.TotalMemory() / 1024 / 1024 / jobMemoryMB); byMem < n {
		n = byMem
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Replaces the filename suffix with the given one
func replaceSuffix(fileName, suffix string) string {
	ext := filepath.Ext(fileName)
	return strings.TrimSuffix(fileName, ext) + suffix
}
