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
	"testing"

	"github.com/valyala/fastrand"
)

func TestHistogram(t *testing.T) {
	data := []float32{0, 1, 1, 2, 2, 2, 3}
	bins := make([]int32, 4)
	Histogram(data, 0, 3, bins)

	expect := []int32{1, 2, 3, 1}
	for i := range expect {
		if bins[i] != expect[i] {
			t.Errorf("bins[%d] got %d expect %d", i, bins[i], expect[i])
		}
	}

	x, y := GetPeak(bins, 0, 3)
	if y != 3 {
		t.Errorf("peak value got %f expect 3", y)
	}
	if x <= 1.5 || x >= 3 {
		t.Errorf("peak location got %f expect in (1.5, 3)", x)
	}
}

func TestHistogramIgnoresOutOfRange(t *testing.T) {
	data := []float32{-5, 0, 1, 2, 3, 100}
	bins := make([]int32, 4)
	Histogram(data, 0, 3, bins)

	sum := int32(0)
	for _, b := range bins {
		sum += b
	}
	if sum != 4 {
		t.Errorf("total count got %d expect 4", sum)
	}
}

func TestMeanStdDev(t *testing.T) {
	mean, stdDev := MeanStdDev([]float32{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Errorf("mean got %f expect 5", mean)
	}
	if stdDev != 2 {
		t.Errorf("stdDev got %f expect 2", stdDev)
	}
}

func TestEstimateRange(t *testing.T) {
	// a noisy background around 100 with a handful of large outliers
	rng := fastrand.RNG{}
	data := make([]float32, 10000)
	for i := range data {
		// sum of uniforms approximates a normal distribution around 100
		sum := float32(0)
		for j := 0; j < 12; j++ {
			sum += float32(rng.Uint32n(1000)) / 1000
		}
		data[i] = 94 + sum
	}
	for i := 0; i < 10; i++ {
		data[i] = 1000
	}

	lo, hi := EstimateRange(data, 1024, 5)
	min, max := minMax(data)
	if lo < min || hi > max {
		t.Errorf("range [%f, %f] exceeds data range [%f, %f]", lo, hi, min, max)
	}
	if lo >= hi {
		t.Errorf("degenerate range [%f, %f]", lo, hi)
	}

	// non-positive sigmas falls back to the full data range
	lo, hi = EstimateRange(data, 1024, 0)
	if lo != min || hi != max {
		t.Errorf("fallback range [%f, %f] expect [%f, %f]", lo, hi, min, max)
	}
}

func TestClipRangeFromMeanStdDev(t *testing.T) {
	// the fit fallback clips around the sample mean and standard deviation
	data := []float32{2, 4, 4, 4, 5, 5, 7, 9}
	mean, stdDev := MeanStdDev(data)

	lo, hi := clipRange(2, 9, mean, stdDev, 1)
	if lo != 3 || hi != 7 {
		t.Errorf("got [%f, %f] expect [3, 7]", lo, hi)
	}

	// wide windows stay clipped to the incoming bounds
	lo, hi = clipRange(2, 9, mean, stdDev, 10)
	if lo != 2 || hi != 9 {
		t.Errorf("got [%f, %f] expect [2, 9]", lo, hi)
	}
}

func TestEstimateRangeConstantData(t *testing.T) {
	data := []float32{5, 5, 5, 5}
	lo, hi := EstimateRange(data, 16, 3)
	if lo != 5 || hi != 5 {
		t.Errorf("got [%f, %f] expect [5, 5]", lo, hi)
	}
}
