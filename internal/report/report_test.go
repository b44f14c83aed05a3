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

package report

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/mlnoga/despike/internal/cube"
	"github.com/mlnoga/despike/internal/dspk"
)

func TestWriteHistogramPNG(t *testing.T) {
	db, err := dspk.NewDB(cube.Dims{X: 16, Y: 1, Z: 1}, 16, 1, 0, 1)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}
	for i := range db.Hist {
		db.Hist[i] = float32(i) / float32(len(db.Hist))
	}
	for x := int32(0); x < db.Tsz.X; x++ {
		db.T9[x] = 2
		db.T1[x] = 12
	}

	buf := bytes.Buffer{}
	if err := WriteHistogramPNG(&buf, db, 0); err != nil {
		t.Fatalf("write failed: %s", err.Error())
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode failed: %s", err.Error())
	}
	bounds := img.Bounds()
	if bounds.Dx() != 16 || bounds.Dy() != 16 {
		t.Errorf("image size got %dx%d expect 16x16", bounds.Dx(), bounds.Dy())
	}

	// the threshold overlays replace the heatmap pixels at their curve rows
	r, g, b, _ := img.At(0, 15-2).RGBA()
	if r>>8 != uint32(t9Color.R) || g>>8 != uint32(t9Color.G) || b>>8 != uint32(t9Color.B) {
		t.Errorf("lower curve pixel got (%d, %d, %d)", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = img.At(0, 15-12).RGBA()
	if r>>8 != uint32(t1Color.R) || g>>8 != uint32(t1Color.G) || b>>8 != uint32(t1Color.B) {
		t.Errorf("upper curve pixel got (%d, %d, %d)", r>>8, g>>8, b>>8)
	}
}

func TestRampColorClamps(t *testing.T) {
	lo, hi := rampColor(-1), rampColor(2)
	if lo != rampColor(0) {
		t.Errorf("underflow not clamped")
	}
	if hi != rampColor(1) {
		t.Errorf("overflow not clamped")
	}
	if lo == hi {
		t.Errorf("ramp endpoints coincide")
	}
}
