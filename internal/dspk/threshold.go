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
)

// Calculates the lower and upper threshold curves T9 and T1 for the given axis:
// first the exact per-column thresholds from the cumulative distribution, then
// the extrapolation into statistically insignificant columns. Extrapolation
// must run second, as it anchors on the exact threshold at the histogram center
func (db *DB) CalcThresh(tmin, tmax float32, axis int32) {
	db.CalcExactThresh(tmin, tmax, axis)
	db.CalcExtrapThresh(tmin, tmax, axis)
}

// Locates per statistic-bin column the first value bin whose cumulative
// distribution crosses tmin resp. tmax, storing the lower bound y-1 in T9 and
// the upper bound y in T1. Columns without a crossing keep the sentinel
// initialization T1=x, T9=x-1. The tmax scan continues from where the tmin
// scan stopped, which is only correct for tmax >= tmin since the cumulative
// distribution is non-decreasing. Columns run concurrently
func (db *DB) CalcExactThresh(tmin, tmax float32, axis int32) {
	hx, hy, hz := db.Hsz.Strides()
	tx, tz := int32(1), db.Tsz.X

	parallelOver(db.Hsz.X, func(lo, hi int32) {
		for x := lo; x < hi; x++ {
			T := tz*axis + tx*x

			// initialize thresholds with not-found sentinels
			db.T1[T] = float32(x)
			db.T9[T] = float32(x - 1)

			// locate lower threshold
			var y int32
			for y = 0; y < db.Hsz.Y; y++ {
				c := db.Cumd[hz*axis+hy*y+hx*x]
				if c > tmin {
					db.T9[T] = float32(y - 1)
					break
				}
			}

			// locate upper threshold, starting from where we left off
			for ; y < db.Hsz.Y; y++ {
				c := db.Cumd[hz*axis+hy*y+hx*x]
				if c > tmax {
					db.T1[T] = float32(y)
					break
				}
			}
		}
	})
}

// Extrapolates both threshold curves for the given axis into columns with too
// few samples, fitting a line through the most populated column
func (db *DB) CalcExtrapThresh(tmin, tmax float32, axis int32) {
	x0 := db.CalcHistCenter(axis)

	thetaMin := db.MedianExtrapolation(db.T9, tmin, x0, axis)
	thetaMax := db.MedianExtrapolation(db.T1, tmax, x0, axis)

	db.ApplyExtrapThresh(db.T9, tmin, x0, thetaMin, axis)
	db.ApplyExtrapThresh(db.T1, tmax, x0, thetaMax, axis)
}

// Returns the statistic bin index with the maximum sample count for the given
// axis. Ties keep the highest index
func (db *DB) CalcHistCenter(axis int32) (x0 int32) {
	maxCnt := float32(-1)
	for x := int32(0); x < db.Tsz.X; x++ {
		if c := db.Cnts[x+db.Tsz.X*axis]; c >= maxCnt {
			maxCnt, x0 = c, x
		}
	}
	return x0
}

// Returns the minimum sample count a column needs for its threshold estimate
// to be statistically trustworthy at the given cutoff: the number of expected
// significant points Sigma divided by the width of the cutoff interval.
// Valid for cutoffs in (0,1)
func (db *DB) MinSamples(thresh float32) int32 {
	interval := thresh
	if 1-thresh < interval {
		interval = 1 - thresh
	}
	return int32(math.Ceil(float64(db.Sigma / interval)))
}

// Searches for the angle theta in [0, pi/2) such that a line through the
// anchor (x0, t[x0]) with slope tan(theta) has at least half of the
// statistically significant columns at or below it. The forward sweep in
// steps of ThetaStep returns the first such angle, or 0 for a horizontal
// line if the search is exhausted or no column is significant
func (db *DB) MedianExtrapolation(t []float32, thresh float32, x0, axis int32) float64 {
	tx, tz := int32(1), db.Tsz.X
	minCnts := float32(db.MinSamples(thresh))

	// y-value at the most statistically significant point anchors the line
	y0 := float64(t[tz*axis+tx*x0])

	for theta := 0.0; theta < math.Pi/2; theta += db.ThetaStep {
		m := math.Tan(theta)
		b := y0 - m*float64(x0)

		lsum, usum := 0, 0
		for x := int32(0); x < db.Hsz.X; x++ {
			T := tz*axis + tx*x
			if db.Cnts[T] > minCnts {
				y := m*float64(x) + b
				if float64(t[T]) > y {
					usum++
				} else {
					lsum++
				}
			}
		}
		if lsum+usum == 0 {
			return 0
		}
		if float64(lsum)/float64(usum+lsum) >= 0.50 {
			return theta
		}
	}
	return 0
}

// Replaces the threshold of every column with fewer samples than the cutoff
// requires by the value of the line through (x0, t[x0]) with slope tan(theta),
// clamped into the valid value bin range [0, Hsz.Y-1]. Columns with
// sufficient samples keep their exact threshold. Pure function of its inputs,
// applying it twice yields the same result. Columns run concurrently
func (db *DB) ApplyExtrapThresh(t []float32, thresh float32, x0 int32, theta float64, axis int32) {
	tx, tz := int32(1), db.Tsz.X
	minCnts := float32(db.MinSamples(thresh))

	y0 := float64(t[tz*axis+tx*x0])
	m := math.Tan(theta)
	b := y0 - m*float64(x0)

	parallelOver(db.Hsz.X, func(lo, hi int32) {
		for x := lo; x < hi; x++ {
			T := tz*axis + tx*x

			// if point is not statistically significant
			if db.Cnts[T] < minCnts {
				v := m*float64(x) + b

				// make sure we don't cross top/bottom of histogram
				v = math.Max(math.Min(v, float64(db.Hsz.Y-1)), 0)
				t[T] = float32(v)
			}
		}
	})
}

// Locates the global lower and upper intensity bin cutoffs I9 and I1 from the
// intensity cumulative distribution, taking the first crossing of tmin resp.
// tmax and ignoring subsequent crossings
func (db *DB) CalcIntensityThresh(tmin, tmax float32) {
	i9, i1 := float32(0), float32(0)

	found := false
	for x := int32(0); x < db.Hsz.X; x++ {
		if c := db.Icmd[x]; c > tmin && !found {
			i9 = float32(x - 1)
			found = true
		}
	}

	found = false
	for x := int32(0); x < db.Hsz.X; x++ {
		if c := db.Icmd[x]; c > tmax && !found {
			i1 = float32(x)
			found = true
		}
	}

	db.I9, db.I1 = i9, i1
}
