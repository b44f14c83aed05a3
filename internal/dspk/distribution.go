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
	"math"
	"runtime"
	"sync"

	"github.com/mlnoga/despike/internal/cube"
)

// Converts a physical value into a discrete bin index for the given range and
// bin count. Does not clamp: values outside [min,max] yield out of range
// indices, and callers indexing an array must guard against them.
// nbins must be at least 2
func DataToBin(v, min, max float32, nbins int32) int32 {
	delta := (max - min) / (float32(nbins) - 1)
	return int32(math.Floor(float64((v - min) / delta)))
}

// Converts a discrete bin index back into a physical value, the inverse of
// DataToBin up to floor truncation
func BinToData(bin int32, min, max float32, nbins int32) float32 {
	delta := (max - min) / (float32(nbins) - 1)
	return float32(bin)*delta + min
}

// Zeroes the joint histogram for all axes and the intensity histogram.
// Must be called once before accumulation, never between axes
func (db *DB) InitHistogram() {
	for i := range db.Hist {
		db.Hist[i] = 0
	}
	for i := range db.Ihst {
		db.Ihst[i] = 0
	}
}

// Accumulates the joint histogram of value bin vs local-statistic bin for the
// given axis from the data, skipping pixels marked bad in the goodness map and
// pixels mapping outside the bin range. Pixel chunks run concurrently with
// private accumulators merged in a reduction pass, so the result equals the
// serial sum regardless of pixel order
func (db *DB) CalcHistogram(data, gmap, lmed []float32, axis int32) {
	hx, hy, hz := db.Hsz.Strides()
	nbinsX, nbinsY := db.Hsz.X, db.Hsz.Y

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
			counts := make([]int32, nbinsX*nbinsY)
			for i := start; i < end; i++ {
				// don't incorporate pixels already marked as bad
				if gmap[i] == cube.BadPix {
					continue
				}
				X := DataToBin(lmed[i], db.DMin, db.DMax, nbinsX)
				Y := DataToBin(data[i], db.DMin, db.DMax, nbinsY)
				if X < 0 || X >= nbinsX || Y < 0 || Y >= nbinsY {
					continue
				}
				counts[hy*Y+hx*X]++
			}
			partials[chunk] = counts
		}(chunk)
	}
	wg.Wait()

	base := hz * axis
	for _, counts := range partials {
		for j, c := range counts {
			if c != 0 {
				db.Hist[base+int32(j)] += float32(c)
			}
		}
	}
}

// Integrates the joint histogram for the given axis along the value bin
// direction into a cumulative distribution, records the per-column sample
// counts, and then normalizes both the cumulative distribution and the
// histogram column by that count. Columns with zero samples become exactly
// zero. Columns are independent and run concurrently; within one column the
// summing pass completes before normalization begins
func (db *DB) CalcCumulativeDistribution(axis int32) {
	hx, hy, hz := db.Hsz.Strides()

	parallelOver(db.Hsz.X, func(lo, hi int32) {
		for x := lo; x < hi; x++ {

			// march along y to build the cumulative distribution
			sum := float32(0)
			for y := int32(0); y < db.Hsz.Y; y++ {
				H := hz*axis + hy*y + hx*x
				sum = sum + db.Hist[H]
				db.Cumd[H] = sum
			}

			// save number of counts for each statistic bin
			db.Cnts[x+db.Hsz.X*axis] = sum

			// normalize
			for y := int32(0); y < db.Hsz.Y; y++ {
				H := hz*axis + hy*y + hx*x
				if sum != 0 {
					db.Cumd[H] = db.Cumd[H] / sum
					db.Hist[H] = db.Hist[H] / sum
				} else {
					db.Cumd[H] = 0
					db.Hist[H] = 0
				}
			}
		}
	})
}

// Accumulates the one-dimensional intensity histogram from the data, ignoring
// the local statistic, skipping pixels marked bad and pixels mapping outside
// the bin range. Concurrent chunks use private accumulators like CalcHistogram
func (db *DB) CalcIntensityHistogram(data, gmap []float32) {
	nbins := db.Hsz.X

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
			counts := make([]int32, nbins)
			for i := start; i < end; i++ {
				if gmap[i] == cube.BadPix {
					continue
				}
				X := DataToBin(data[i], db.DMin, db.DMax, nbins)
				if X < 0 || X >= nbins {
					continue
				}
				counts[X]++
			}
			partials[chunk] = counts
		}(chunk)
	}
	wg.Wait()

	for _, counts := range partials {
		for j, c := range counts {
			if c != 0 {
				db.Ihst[j] += float32(c)
			}
		}
	}
}

// Integrates the intensity histogram into a cumulative distribution and
// normalizes both by the total sample count, with the same two-pass shape as
// the per-column variant. The sum is computed once for the whole array
func (db *DB) CalcIntensityCumulativeDistribution() {
	sum := float32(0)
	for x := int32(0); x < db.Hsz.X; x++ {
		sum = sum + db.Ihst[x]
		db.Icmd[x] = sum
	}

	for x := int32(0); x < db.Hsz.X; x++ {
		if sum != 0 {
			db.Icmd[x] = db.Icmd[x] / sum
			db.Ihst[x] = db.Ihst[x] / sum
		} else {
			db.Icmd[x] = 0
			db.Ihst[x] = 0
		}
	}
}
