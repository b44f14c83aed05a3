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

package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/pbnjay/memory"

	"github.com/mlnoga/despike/internal/config"
	"github.com/mlnoga/despike/internal/job"
	"github.com/mlnoga/despike/internal/rest"
)

const version = "0.1.0"

var totalMiBs = memory.TotalMemory() / 1024 / 1024

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var cfgFile = flag.String("config", "", "load settings from YAML `file`")
var out = flag.String("out", "dspk%04d.fits", "save despeckled cubes with given filename `pattern`")
var tiffOut = flag.Bool("tiff", false, "save 16-bit TIFF previews of the middle plane next to the outputs")
var heatmap = flag.Bool("heatmap", false, "save PNG heatmaps of the joint histogram next to the outputs")

var bins = flag.Int64("bins", 256, "number of bins per histogram axis")
var tMin = flag.Float64("tMin", 0.01, "lower cumulative probability cutoff in (0,1)")
var tMax = flag.Float64("tMax", 0.99, "upper cumulative probability cutoff in (0,1), must be >= tMin")
var sigma = flag.Float64("sigma", 0, "significant points required outside the cutoff interval, 0=default 15")
var thetaStep = flag.Float64("thetaStep", 0, "angle search resolution in radians, 0=default pi/(2*bins)")
var radius = flag.Int64("radius", 5, "local median window radius in pixels")
var iterations = flag.Int64("iter", 3, "maximum number of flagging rounds")
var intensity = flag.Bool("intensity", false, "also clip on the global intensity distribution")
var repair = flag.Bool("repair", true, "replace flagged pixels with their local median")
var rangeSigmas = flag.Float64("rangeSigmas", 0, "clip binning range to background mode +- n fitted sigmas, 0=full range")

var addr = flag.String("addr", ":8080", "listen address for serve")
var chroot = flag.String("chroot", "", "serve: change filesystem root to `dir` (requires root)")
var setuid = flag.Int64("setuid", -1, "serve: change user id after chroot, -1=no change")

func main() {
	logWriter := os.Stdout
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Despike Copyright (c) 2021 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (run|serve|legal|version) (cube0.fits ... cuben.fits)

Commands:
  run     Despeckle the given FITS cubes
  serve   Serve the despeckling pipeline over REST
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(logWriter, "Could not create CPU profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(logWriter, "Could not start CPU profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer pprof.StopCPUProfile()
	}

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(logWriter, "Error loading configuration: %s\n", err.Error())
		os.Exit(-1)
	}

	switch args[0] {
	case "run":
		fmt.Fprintf(logWriter, "Despike %s running on %d CPUs with %d MiB physical memory\n",
			version, runtime.NumCPU(), totalMiBs)
		if err := job.RunFiles(args[1:], cfg, logWriter); err != nil {
			fmt.Fprintf(logWriter, "error: %s\n", err.Error())
			os.Exit(-1)
		}
		fmt.Fprintf(logWriter, "Done after %v\n", time.Since(start))

	case "serve":
		listenAddr := cfg.Serve.Addr
		if set := flagWasSet("addr"); set || listenAddr == "" {
			listenAddr = *addr
		}
		if err := rest.Serve(listenAddr, *chroot, int(*setuid), cfg); err != nil {
			fmt.Fprintf(logWriter, "error: %s\n", err.Error())
			os.Exit(-1)
		}

	case "legal":
		fmt.Fprintf(logWriter, "%s\n", legal)

	case "version":
		fmt.Fprintf(logWriter, "Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
		flag.Usage()
		os.Exit(-1)
	}

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			fmt.Fprintf(logWriter, "Could not create memory profile: %s\n", err.Error())
			os.Exit(-1)
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(logWriter, "Could not write memory profile: %s\n", err.Error())
			os.Exit(-1)
		}
	}
}

// Reports whether the named flag was given on the command line
func flagWasSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Loads configuration from the -config file if given, else defaults, and
// overlays the command line flags that were explicitly set
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *cfgFile != "" {
		cfg, err = config.Load(*cfgFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["bins"] || *cfgFile == "" {
		cfg.Processing.Bins = int32(*bins)
	}
	if set["tMin"] || *cfgFile == "" {
		cfg.Processing.TMin = float32(*tMin)
	}
	if set["tMax"] || *cfgFile == "" {
		cfg.Processing.TMax = float32(*tMax)
	}
	if set["sigma"] || *cfgFile == "" {
		cfg.Processing.Sigma = float32(*sigma)
	}
	if set["thetaStep"] || *cfgFile == "" {
		cfg.Processing.ThetaStep = *thetaStep
	}
	if set["radius"] || *cfgFile == "" {
		cfg.Processing.Radius = int32(*radius)
	}
	if set["iter"] || *cfgFile == "" {
		cfg.Processing.Iterations = int(*iterations)
	}
	if set["intensity"] || *cfgFile == "" {
		cfg.Processing.Intensity = *intensity
	}
	if set["repair"] || *cfgFile == "" {
		cfg.Processing.Repair = *repair
	}
	if set["rangeSigmas"] || *cfgFile == "" {
		cfg.Processing.RangeSigmas = float32(*rangeSigmas)
	}
	if set["out"] || *cfgFile == "" {
		cfg.Output.Pattern = *out
	}
	if set["tiff"] || *cfgFile == "" {
		cfg.Output.TIFF = *tiffOut
	}
	if set["heatmap"] || *cfgFile == "" {
		cfg.Output.Heatmap = *heatmap
	}
	return cfg, nil
}
