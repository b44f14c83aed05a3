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

package stats

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// Calculate histogram of data between min and max into given bins
func Histogram(data []float32, min, max float32, bins []int32) {
	for i := range bins {
		bins[i] = 0
	}
	scale := float32(len(bins)-1) / (max - min)
	for _, d := range data {
		index := int((d - min) * scale)
		if index < 0 || index >= len(bins) {
			continue
		}
		bins[index]++
	}
}

// Returns the location and the value of the histogram peak
func GetPeak(bins []int32, min, max float32) (x, y float32) {
	maxIndex, maxValue := -1, int32(math.MinInt32)
	for i, v := range bins {
		if v > maxValue {
			maxIndex, maxValue = i, v
		}
	}

	x = min + (float32(maxIndex)+0.5)*(max-min)/float32(len(bins)-1)
	y = float32(maxValue)
	return x, y
}

// Calculates the mode and the standard deviation of the given histogram by
// fitting a normal distribution with Nelder-Mead, starting from the peak
func ModeStdDevFromHistogram(bins []int32, min, max float32) (mode, stdDev float32, err error) {
	// Take an educated initial guess: the maximum value of the histogram
	peak, peakVal := GetPeak(bins, min, max)

	// Now minimize the distance between the histogram and a normal distribution
	x0 := []float64{float64(peakVal), float64(peak), float64(max-min) / 16}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			alpha, mu, sigma := float32(x[0]), float32(x[1]), float32(x[2])
			scaler := alpha / (sigma * float32(math.Sqrt(2*math.Pi)))
			sumSqDiff := float32(0)

			for i, y := range bins {
				x := min + (float32(i)+0.5)*(max-min)/float32(len(bins)-1)

				xmusig := (x - mu) / sigma
				yPredict := scaler * float32(math.Exp(float64(-0.5*xmusig*xmusig)))

				diff := float32(y) - yPredict
				sumSqDiff += diff * diff
			}
			variance := sumSqDiff / float32(len(bins))
			return math.Sqrt(float64(variance))
		},
	}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return -1, -1, err
	}

	return float32(result.X[1]), float32(math.Abs(result.X[2])), nil
}

// Calculates mean and standard deviation of the given data
func MeanStdDev(xs []float32) (mean, stdDev float32) {
	xmean := float32(0)
	for _, x := range xs {
		xmean += x
	}
	xmean /= float32(len(xs))
	xvar := float32(0)
	for _, x := range xs {
		diff := x - xmean
		xvar += diff * diff
	}
	xvar /= float32(len(xs))
	return xmean, float32(math.Sqrt(float64(xvar)))
}

// Estimates a value range [lo, hi] for histogram binning from the data: the
// background mode plus/minus sigmas standard deviations of the fitted normal,
// clipped to the actual data minimum and maximum. Falls back to the sample
// mean and standard deviation if the fit fails, and to min/max if sigmas is
// not positive
func EstimateRange(data []float32, bins int, sigmas float32) (lo, hi float32) {
	lo, hi = minMax(data)
	if sigmas <= 0 || lo >= hi {
		return lo, hi
	}
	binned := make([]int32, bins)
	Histogram(data, lo, hi, binned)
	mode, stdDev, err := ModeStdDevFromHistogram(binned, lo, hi)
	if err != nil || stdDev <= 0 {
		mode, stdDev = MeanStdDev(data)
		if stdDev <= 0 {
			return lo, hi
		}
	}
	return clipRange(lo, hi, mode, stdDev, sigmas)
}

// Clips the range [lo, hi] to center plus/minus sigmas standard deviations
func clipRange(lo, hi, center, stdDev, sigmas float32) (float32, float32) {
	if l := center - sigmas*stdDev; l > lo {
		lo = l
	}
	if h := center + sigmas*stdDev; h < hi {
		hi = h
	}
	return lo, hi
}

func minMax(data []float32) (min, max float32) {
	min, max = float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, d := range data {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}
