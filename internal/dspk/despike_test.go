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
	"io"
	"testing"

	"github.com/mlnoga/despike/internal/cube"
)

func TestDespikeFlagsOutlier(t *testing.T) {
	// a long constant run with a single massive outlier in the middle
	dsz := cube.Dims{X: 1001, Y: 1, Z: 1}
	c := cube.New(dsz)
	for i := range c.Data {
		c.Data[i] = 100
	}
	spike := int32(500)
	c.Data[spike] = 1000

	p := DefaultParams()
	p.Bins = 4
	p.DMin, p.DMax = 100, 1000
	gmap := cube.NewGoodMap(dsz.Elements())

	spikes, db, err := Despike(c, gmap, p, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}
	if db == nil {
		t.Fatalf("no database returned")
	}
	if len(spikes) != 1 || spikes[0] != spike {
		t.Fatalf("flagged %v expect [%d]", spikes, spike)
	}
	if gmap[spike] != cube.BadPix {
		t.Errorf("spike pixel not marked bad")
	}
	if cube.CountBad(gmap) != 1 {
		t.Errorf("%d pixels marked bad expect 1", cube.CountBad(gmap))
	}
	if c.Data[spike] != 100 {
		t.Errorf("spike repaired to %f expect 100", c.Data[spike])
	}
}

func TestDespikeLeavesCleanDataAlone(t *testing.T) {
	dsz := cube.Dims{X: 64, Y: 8, Z: 1}
	c := cube.New(dsz)
	for i := range c.Data {
		c.Data[i] = 50
	}

	p := DefaultParams()
	p.Bins = 8
	p.DMin, p.DMax = 0, 100
	gmap := cube.NewGoodMap(dsz.Elements())

	spikes, _, err := Despike(c, gmap, p, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}
	if len(spikes) != 0 {
		t.Errorf("flagged %d pixels in clean data", len(spikes))
	}
	if cube.CountBad(gmap) != 0 {
		t.Errorf("%d pixels marked bad in clean data", cube.CountBad(gmap))
	}
}

func TestDespikeRespectsIncomingBadPixels(t *testing.T) {
	dsz := cube.Dims{X: 1001, Y: 1, Z: 1}
	c := cube.New(dsz)
	for i := range c.Data {
		c.Data[i] = 100
	}
	spike := int32(500)
	c.Data[spike] = 1000

	p := DefaultParams()
	p.Bins = 4
	p.DMin, p.DMax = 100, 1000
	p.Repair = false

	// the outlier is already masked, so nothing new must be flagged
	gmap := cube.NewGoodMap(dsz.Elements())
	gmap[spike] = cube.BadPix

	spikes, _, err := Despike(c, gmap, p, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}
	if len(spikes) != 0 {
		t.Errorf("flagged %d pixels expect 0", len(spikes))
	}
	if c.Data[spike] != 1000 {
		t.Errorf("masked pixel was modified to %f", c.Data[spike])
	}
}

func TestDespikeRejectsInvalidParams(t *testing.T) {
	c := cube.New(cube.Dims{X: 8, Y: 1, Z: 1})

	p := DefaultParams()
	p.Radius = 0
	if _, _, err := Despike(c, nil, p, io.Discard); err == nil {
		t.Errorf("expected error for zero radius")
	}

	p = DefaultParams()
	p.TMin, p.TMax = 0.9, 0.1
	if _, _, err := Despike(c, nil, p, io.Discard); err == nil {
		t.Errorf("expected error for inverted cutoffs")
	}

	// a single sample has no axis to despike along
	c = cube.New(cube.Dims{X: 1, Y: 1, Z: 1})
	if _, _, err := Despike(c, nil, DefaultParams(), io.Discard); err == nil {
		t.Errorf("expected error for degenerate cube")
	}
}

func TestLocateSpikes(t *testing.T) {
	dsz := cube.Dims{X: 4, Y: 1, Z: 1}
	db, err := NewDB(dsz, 4, 1, 1, 4)
	if err != nil {
		t.Fatalf("unexpected error %s", err.Error())
	}

	// accept only value bins [0, 1] in every column
	for x := int32(0); x < db.Tsz.X; x++ {
		db.T9[x] = 0
		db.T1[x] = 1
	}

	data := []float32{1, 2, 3, 4}
	lmed := []float32{1, 1, 1, 1}
	gmap := cube.NewGoodMap(dsz.Elements())

	flagged := db.LocateSpikes(data, gmap, lmed, 0)
	if len(flagged) != 2 || flagged[0] != 2 || flagged[1] != 3 {
		t.Fatalf("flagged %v expect [2 3]", flagged)
	}
	if gmap[2] != cube.BadPix || gmap[3] != cube.BadPix {
		t.Errorf("flagged pixels not marked bad")
	}
}
