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
	"io"
	"runtime"
	"sync"

	"github.com/mlnoga/despike/internal/cube"
	"github.com/mlnoga/despike/internal/median"
)

// Despeckling parameters
type Params struct {
	Bins       int32   `json:"bins"`       // number of bins per histogram axis
	TMin       float32 `json:"tMin"`       // lower cumulative probability cutoff
	TMax       float32 `json:"tMax"`       // upper cumulative probability cutoff
	Sigma      float32 `json:"sigma"`      // significance confidence budget, 0=default
	ThetaStep  float64 `json:"thetaStep"`  // angle search resolution in radians, 0=default
	Radius     int32   `json:"radius"`     // local median window radius in pixels
	Iterations int     `json:"iterations"` // maximum number of flagging rounds
	Intensity  bool    `json:"intensity"`  // also clip on the global intensity distribution
	Repair     bool    `json:"repair"`     // replace flagged pixels with their local median
	DMin       float32 `json:"dMin"`       // lower edge of the value range, DMin==DMax=auto
	DMax       float32 `json:"dMax"`       // upper edge of the value range, DMin==DMax=auto
}

// Returns despeckling parameters with default values
func DefaultParams() Params {
	return Params{
		Bins:       256,
		TMin:       0.01,
		TMax:       0.99,
		Sigma:      0,
		ThetaStep:  0,
		Radius:     5,
		Iterations: 3,
		Intensity:  false,
		Repair:     true,
	}
}

// Despeckles the cube in place: for every axis with more than one sample,
// builds the joint histogram of pixel value vs local median, derives the
// per-column acceptance bounds, and flags pixels falling outside them as bad
// in the goodness map. Rounds repeat until no new spikes appear or the
// iteration limit is reached; optionally flagged pixels are then repaired with
// their local median. Pixels already marked bad in the incoming goodness map
// are excluded from all statistics and never touched.
// Returns the indices of all newly flagged pixels and the final database
func Despike(c *cube.Cube, gmap []float32, p Params, logWriter io.Writer) (spikes []int32, db *DB, err error) {
	if gmap == nil {
		gmap = cube.NewGoodMap(c.Dsz.Elements())
	}
	if p.Radius < 1 {
		return nil, nil, fmt.Errorf("local median radius %d must be at least 1", p.Radius)
	}
	if !(p.TMin > 0 && p.TMin < 1 && p.TMax > 0 && p.TMax < 1 && p.TMax >= p.TMin) {
		return nil, nil, fmt.Errorf("invalid cutoff probabilities [%g, %g]", p.TMin, p.TMax)
	}

	dmin, dmax := p.DMin, p.DMax
	if dmin == dmax {
		dmin, _, dmax = c.MinMeanMax(gmap)
	}

	axes := despikeAxes(c.Dsz)
	if len(axes) == 0 {
		return nil, nil, fmt.Errorf("cube %v has no axis with more than one sample", c.Dsz)
	}

	db, err = NewDB(c.Dsz, p.Bins, int32(len(axes)), dmin, dmax)
	if err != nil {
		return nil, nil, err
	}
	if p.Sigma > 0 {
		db.Sigma = p.Sigma
	}
	if p.ThetaStep > 0 {
		db.ThetaStep = p.ThetaStep
	}

	lmed := make([]float32, len(c.Data))
	for iter := 0; iter < p.Iterations; iter++ {
		db.InitHistogram()

		numBefore := len(spikes)
		for slice, axis := range axes {
			median.LocalMedian(lmed, c.Data, gmap, c.Dsz, axis, p.Radius)
			db.CalcHistogram(c.Data, gmap, lmed, int32(slice))
			db.CalcCumulativeDistribution(int32(slice))
			db.CalcThresh(p.TMin, p.TMax, int32(slice))

			flagged := db.LocateSpikes(c.Data, gmap, lmed, int32(slice))
			spikes = append(spikes, flagged...)
			fmt.Fprintf(logWriter, "%d: axis %d flagged %d spike pixels (%.3f%%)\n",
				iter, axis, len(flagged), 100.0*float32(len(flagged))/float32(len(c.Data)))
		}

		if p.Intensity {
			db.CalcIntensityHistogram(c.Data, gmap)
			db.CalcIntensityCumulativeDistribution()
			db.CalcIntensityThresh(p.TMin, p.TMax)

			flagged := db.LocateIntensitySpikes(c.Data, gmap)
			spikes = append(spikes, flagged...)
			fmt.Fprintf(logWriter, "%d: intensity cutoffs [%g, %g] flagged %d pixels (%.3f%%)\n",
				iter, db.I9, db.I1, len(flagged), 100.0*float32(len(flagged))/float32(len(c.Data)))
		}

		if len(spikes) == numBefore {
			break
		}
	}

	if p.Repair && len(spikes) > 0 {
		median.LocalMedian(lmed, c.Data, gmap, c.Dsz, axes[0], p.Radius)
		median.ReplaceSparse(c.Data, spikes, lmed)
		fmt.Fprintf(logWriter, "repaired %d spike pixels with their local median\n", len(spikes))
	}
	return spikes, db, nil
}

// Returns the axes of the cube eligible for despiking, i.e. those with more
// than one sample
func despikeAxes(dsz cube.Dims) (axes []int32) {
	for axis, extent := range []int32{dsz.X, dsz.Y, dsz.Z} {
		if extent > 1 {
			axes = append(axes, int32(axis))
		}
	}
	return axes
}

// Flags every good pixel whose value bin lies outside the acceptance bounds
// [T9, T1] of its local-statistic column in the given histogram slice, marking
// it bad in the goodness map. Returns the indices of the newly flagged pixels
func (db *DB) LocateSpikes(data, gmap, lmed []float32, slice int32) []int32 {
	tz := db.Tsz.X
	return locateConcurrent(data, func(i int) bool {
		if gmap[i] == cube.BadPix {
			return false
		}
		X := DataToBin(lmed[i], db.DMin, db.DMax, db.Hsz.X)
		if X < 0 {
			X = 0
		} else if X >= db.Hsz.X {
			X = db.Hsz.X - 1
		}
		Y := float32(DataToBin(data[i], db.DMin, db.DMax, db.Hsz.Y))
		T := tz*slice + X
		return Y < db.T9[T] || Y > db.T1[T]
	}, gmap)
}

// Flags every good pixel whose value bin lies outside the global intensity
// cutoffs [I9, I1], marking it bad in the goodness map. Returns the indices of
// the newly flagged pixels
func (db *DB) LocateIntensitySpikes(data, gmap []float32) []int32 {
	return locateConcurrent(data, func(i int) bool {
		if gmap[i] == cube.BadPix {
			return false
		}
		Y := float32(DataToBin(data[i], db.DMin, db.DMax, db.Hsz.X))
		return Y < db.I9 || Y > db.I1
	}, gmap)
}

// Runs the spike predicate concurrently over all pixels, marks matches bad in
// the goodness map and returns their indices in ascending order
func locateConcurrent(data []float32, isSpike func(i int) bool, gmap []float32) []int32 {
	step := (len(data) + runtime.NumCPU() - 1) / runtime.NumCPU()
	if step < 1 {
		step = 1
	}
	numChunks := (len(data) + step - 1) / step
	partials := make([][]int32, numChunks)

	var wg sync.WaitGroup
	wg.Add(numChunks)
	for chunk := 0; chunk < numChunks; chunk++ {
		go func(chunk int) {
			defer wg.Done()
			start, end := chunk*step, (chunk+1)*step
			if end > len(data) {
				end = len(data)
			}
			var flagged []int32
			for i := start; i < end; i++ {
				if isSpike(i) {
					gmap[i] = cube.BadPix
					flagged = append(flagged, int32(i))
				}
			}
			partials[chunk] = flagged
		}(chunk)
	}
	wg.Wait()

	var all []int32
	for _, part := range partials {
		all = append(all, part...)
	}
	return all
}
