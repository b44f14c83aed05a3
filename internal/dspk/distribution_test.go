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
	"testing"

	"github.com/valyala/fastrand"

	"github.com/mlnoga/despike/internal/cube"
)

func TestBinMapping(t *testing.T) {
	min, max, nbins := float32(1), float32(4), int32(4)

	// with nbins-1 intervals of width 1, integral values map onto their own bin
	for v := int32(0); v < nbins; v++ {
		if bin := DataToBin(min+float32(v), min, max, nbins); bin != v {
			t.Errorf("dataToBin(%f) got %d expect %d", min+float32(v), bin, v)
		}
		if x := BinToData(v, min, max, nbins); x != min+float32(v) {
			t.Errorf("binToData(%d) got %f expect %f", v, x, min+float32(v))
		}
	}

	// values outside the range map outside [0, nbins)
	if bin := DataToBin(min-1, min, max, nbins); bin >= 0 {
		t.Errorf("underflow got bin %d expect negative", bin)
	}
	if bin := DataToBin(max+1, min, max, nbins); bin < nbins {
		t.Errorf("overflow got bin %d expect >= %d", bin, nbins)
	}
}

func TestBinMappingRandomRoundTrip(t *testing.T) {
	rng := fastrand.RNG{}
	min, max, nbins := float32(-3), float32(13), int32(17)
	for i := 0; i < 1000; i++ {
		bin := int32(rng.Uint32n(uint32(nbins)))
		if b := DataToBin(BinToData(bin, min, max, nbins), min, max, nbins); b != bin {
			t.Errorf("roundtrip of bin %d got %d", bin, b)
		}
	}
}

func TestHistogramDiagonal(t *testing.T) {
	dsz := cube.Dims{X: 4, Y: 1, Z: 1}
	db, err := NewDB(dsz, 4, 1, 1, 4)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}

	data := []float32{1, 2, 3, 4}
	gmap := cube.NewGoodMap(dsz.Elements())
	db.InitHistogram()
	db.CalcHistogram(data, gmap, data, 0)

	// each pixel is its own local statistic, so counts lie on the diagonal
	hx, hy, _ := db.Hsz.Strides()
	for y := int32(0); y < db.Hsz.Y; y++ {
		for x := int32(0); x < db.Hsz.X; x++ {
			expect := float32(0)
			if x == y {
				expect = 1
			}
			if h := db.Hist[hy*y+hx*x]; h != expect {
				t.Errorf("hist[%d,%d] got %f expect %f", x, y, h, expect)
			}
		}
	}
}

func TestHistogramSkipsBadAndOutOfRange(t *testing.T) {
	dsz := cube.Dims{X: 4, Y: 1, Z: 1}
	db, err := NewDB(dsz, 4, 1, 1, 4)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}

	// one bad pixel, one pixel above the range
	data := []float32{1, 2, 3, 100}
	gmap := []float32{cube.GoodPix, cube.BadPix, cube.GoodPix, cube.GoodPix}
	db.InitHistogram()
	db.CalcHistogram(data, gmap, data, 0)

	sum := float32(0)
	for _, h := range db.Hist {
		sum += h
	}
	if sum != 2 {
		t.Errorf("total count got %f expect 2", sum)
	}
}

func TestCumulativeDistribution(t *testing.T) {
	dsz := cube.Dims{X: 4, Y: 1, Z: 1}
	db, err := NewDB(dsz, 4, 1, 1, 4)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}

	data := []float32{1, 2, 3, 4}
	gmap := cube.NewGoodMap(dsz.Elements())
	db.InitHistogram()
	db.CalcHistogram(data, gmap, data, 0)
	db.CalcCumulativeDistribution(0)

	// every column holds a single count, so its distribution steps from 0 to 1
	hx, hy, _ := db.Hsz.Strides()
	for x := int32(0); x < db.Hsz.X; x++ {
		if db.Cnts[x] != 1 {
			t.Errorf("cnts[%d] got %f expect 1", x, db.Cnts[x])
		}
		for y := int32(0); y < db.Hsz.Y; y++ {
			expect := float32(0)
			if y >= x {
				expect = 1
			}
			if c := db.Cumd[hy*y+hx*x]; c != expect {
				t.Errorf("cumd[%d,%d] got %f expect %f", x, y, c, expect)
			}
		}
	}
}

func TestCumulativeDistributionEmptyColumn(t *testing.T) {
	dsz := cube.Dims{X: 2, Y: 1, Z: 1}
	db, err := NewDB(dsz, 4, 1, 0, 1)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}

	// all pixels land in column 0, columns 1..3 stay empty
	data := []float32{0, 0}
	gmap := cube.NewGoodMap(dsz.Elements())
	db.InitHistogram()
	db.CalcHistogram(data, gmap, data, 0)
	db.CalcCumulativeDistribution(0)

	hx, hy, _ := db.Hsz.Strides()
	for x := int32(1); x < db.Hsz.X; x++ {
		if db.Cnts[x] != 0 {
			t.Errorf("cnts[%d] got %f expect 0", x, db.Cnts[x])
		}
		for y := int32(0); y < db.Hsz.Y; y++ {
			if c := db.Cumd[hy*y+hx*x]; c != 0 {
				t.Errorf("cumd[%d,%d] got %f expect 0", x, y, c)
			}
		}
	}
}

func TestIntensityDistribution(t *testing.T) {
	dsz := cube.Dims{X: 4, Y: 1, Z: 1}
	db, err := NewDB(dsz, 4, 1, 1, 4)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}

	data := []float32{1, 2, 2, 4}
	gmap := cube.NewGoodMap(dsz.Elements())
	db.InitHistogram()
	db.CalcIntensityHistogram(data, gmap)
	db.CalcIntensityCumulativeDistribution()

	expect := []float32{0.25, 0.75, 0.75, 1.0}
	for x := range expect {
		if db.Icmd[x] != expect[x] {
			t.Errorf("icmd[%d] got %f expect %f", x, db.Icmd[x], expect[x])
		}
	}
}

func TestNewDBRejectsDegenerate(t *testing.T) {
	dsz := cube.Dims{X: 4, Y: 1, Z: 1}
	if _, err := NewDB(dsz, 1, 1, 0, 1); err == nil {
		t.Errorf("expected error for bin count below 2")
	}
	if _, err := NewDB(dsz, 4, 0, 0, 1); err == nil {
		t.Errorf("expected error for zero axes")
	}
	if _, err := NewDB(dsz, 4, 1, 1, 1); err == nil {
		t.Errorf("expected error for empty value range")
	}
}
