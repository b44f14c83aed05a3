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

package dspk

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/mlnoga/despike/internal/cube"
)

// Default number of statistically significant points required outside the
// cutoff interval for a histogram column to be trusted
const DefaultSigma float32 = 15

// A despeckling database: the histograms, cumulative distributions and
// threshold curves for one despeckle configuration. All arrays are allocated
// once and recomputed every pass.
//
// Hsz.X counts local-statistic bins, Hsz.Y value bins, and Hsz.Z the number
// of axes processed. Arrays follow the (x + hx*y + hz*axis) stride convention
// of the data cube.
type DB struct {
	Dsz cube.Dims // data volume extents
	Hsz cube.Dims // histogram extents: X=statistic bins, Y=value bins, Z=axes
	Tsz cube.Dims // threshold curve extents: X=statistic bins, Z=axes

	DMin float32 // lower edge of the physical value range mapped onto bins
	DMax float32 // upper edge of the physical value range mapped onto bins

	Hist []float32 // joint histogram of value bin vs statistic bin, per axis
	Cumd []float32 // cumulative distribution along the value bin axis, per column
	Cnts []float32 // raw sample count per statistic bin column, per axis

	T9 []float32 // lower acceptance bound in value bins, per statistic bin and axis
	T1 []float32 // upper acceptance bound in value bins, per statistic bin and axis

	Ihst []float32 // intensity histogram ignoring the local statistic
	Icmd []float32 // cumulative distribution of the intensity histogram
	I9   float32   // global lower intensity bin cutoff
	I1   float32   // global upper intensity bin cutoff

	Sigma     float32 // significance confidence budget, default DefaultSigma
	ThetaStep float64 // angle search resolution in radians, default pi/(Hsz.X+Hsz.Y)
}

// Creates a despeckling database for the given data extents, bin count, number
// of axes and physical value range. The same bin count and range are used for
// the value and the statistic axis. Fails for degenerate configurations.
func NewDB(dsz cube.Dims, bins, numAxes int32, dmin, dmax float32) (*DB, error) {
	if bins < 2 {
		return nil, fmt.Errorf("bin count %d must be at least 2", bins)
	}
	if numAxes < 1 {
		return nil, fmt.Errorf("number of axes %d must be at least 1", numAxes)
	}
	if !(dmax > dmin) {
		return nil, fmt.Errorf("invalid value range [%g, %g]", dmin, dmax)
	}
	hsz := cube.Dims{X: bins, Y: bins, Z: numAxes}
	tsz := cube.Dims{X: bins, Y: numAxes, Z: 1}
	return &DB{
		Dsz:       dsz,
		Hsz:       hsz,
		Tsz:       tsz,
		DMin:      dmin,
		DMax:      dmax,
		Hist:      make([]float32, hsz.Elements()),
		Cumd:      make([]float32, hsz.Elements()),
		Cnts:      make([]float32, hsz.X*hsz.Z),
		T9:        make([]float32, tsz.X*tsz.Y),
		T1:        make([]float32, tsz.X*tsz.Y),
		Ihst:      make([]float32, hsz.X),
		Icmd:      make([]float32, hsz.X),
		Sigma:     DefaultSigma,
		ThetaStep: math.Pi / float64(hsz.X+hsz.Y),
	}, nil
}

// Runs fn concurrently over [0,n) split into contiguous chunks, one per CPU,
// and waits for all chunks to complete
func parallelOver(n int32, fn func(lo, hi int32)) {
	step := (n + int32(runtime.NumCPU()) - 1) / int32(runtime.NumCPU())
	if step < 1 {
		step = 1
	}
	var wg sync.WaitGroup
	for lo := int32(0); lo < n; lo += step {
		hi := lo + step
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int32) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
