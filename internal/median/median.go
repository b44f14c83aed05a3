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

package median

import (
	"runtime"
	"sync"

	"github.com/mlnoga/despike/internal/cube"
	"github.com/mlnoga/despike/internal/qsort"
)

// Computes the local median of every pixel along the given axis (0=x, 1=y, 2=z),
// using a running window of +-radius clipped at the volume borders. Pixels marked
// bad in the goodness map are excluded from the window; a pixel whose window
// contains no good pixels keeps its own value. Stores the result in dst,
// which must have the same length as data.
func LocalMedian(dst, data, gmap []float32, dsz cube.Dims, axis, radius int32) {
	extent, stride := axisExtentStride(dsz, axis)

	// parallelize into as many goroutines as we have CPUs
	stepSize := (len(data) + runtime.NumCPU() - 1) / runtime.NumCPU()
	var wg sync.WaitGroup
	wg.Add((len(data) + stepSize - 1) / stepSize)

	for step := 0; step < len(data); step += stepSize {
		go func(start int) {
			defer wg.Done()
			end := start + stepSize
			if end > len(data) {
				end = len(data)
			}
			buffer := make([]float32, 2*radius+1)
			for i := start; i < end; i++ {
				dst[i] = localMedianAt(data, gmap, i, axisCoord(i, dsz, axis), extent, stride, radius, buffer)
			}
		}(step)
	}

	wg.Wait()
}

// Computes the local median for a single pixel with linear index i at position c along the axis
func localMedianAt(data, gmap []float32, i int, c, extent, stride, radius int32, buffer []float32) float32 {
	lo, hi := c-radius, c+radius
	if lo < 0 {
		lo = 0
	}
	if hi > extent-1 {
		hi = extent - 1
	}
	num := 0
	for j := lo; j <= hi; j++ {
		index := i + int(j-c)*int(stride)
		if gmap[index] == cube.BadPix {
			continue
		}
		buffer[num] = data[index]
		num++
	}
	if num == 0 {
		return data[i]
	}
	if num == 9 {
		return qsort.MedianFloat32Slice9(buffer[:num])
	}
	return qsort.QSelectMedianFloat32(buffer[:num])
}

// Replaces the data values at the given sparse indices with their local statistic
func ReplaceSparse(data []float32, indices []int32, lmed []float32) {
	for _, i := range indices {
		data[i] = lmed[i]
	}
}

// Returns the extent of and linear stride along the given axis
func axisExtentStride(dsz cube.Dims, axis int32) (extent, stride int32) {
	sx, sy, sz := dsz.Strides()
	switch axis {
	case 0:
		return dsz.X, sx
	case 1:
		return dsz.Y, sy
	default:
		return dsz.Z, sz
	}
}

// Returns the coordinate of the pixel with linear index i along the given axis
func axisCoord(i int, dsz cube.Dims, axis int32) int32 {
	switch axis {
	case 0:
		return int32(i) % dsz.X
	case 1:
		return (int32(i) / dsz.X) % dsz.Y
	default:
		return int32(i) / (dsz.X * dsz.Y)
	}
}
