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

package cube

import (
	"fmt"
	"math"
)

// Integer extents of a three-dimensional dense array, most quickly varying dimension first.
type Dims struct {
	X int32
	Y int32
	Z int32
}

// Returns the total number of elements for the given extents
func (d Dims) Elements() int32 { return d.X * d.Y * d.Z }

// Returns the linear strides for the given extents: 1 in x, d.X in y, d.X*d.Y in z
func (d Dims) Strides() (sx, sy, sz int32) { return 1, d.X, d.X * d.Y }

func (d Dims) String() string { return fmt.Sprintf("%dx%dx%d", d.X, d.Y, d.Z) }

// Goodness map sentinel values. A pixel marked BadPix is excluded from all
// statistics, and never overwritten by later passes.
const (
	GoodPix float32 = 1
	BadPix  float32 = 0
)

// A dense volume of float32 samples with row-major layout,
// e.g. a stack of solar spectrograph exposures
type Cube struct {
	Dsz  Dims      // axis extents, x varies fastest
	Data []float32 // len is Dsz.Elements()
}

// Creates a cube of the given extents with newly allocated, zeroed data
func New(dsz Dims) *Cube {
	return &Cube{Dsz: dsz, Data: make([]float32, dsz.Elements())}
}

// Creates a cube of the given extents around existing data. Data is not copied
func NewFromData(dsz Dims, data []float32) (*Cube, error) {
	if int32(len(data)) != dsz.Elements() {
		return nil, fmt.Errorf("data length %d does not match dimensions %v", len(data), dsz)
	}
	return &Cube{Dsz: dsz, Data: data}, nil
}

// Returns the linear index of the sample at (x,y,z)
func (c *Cube) Index(x, y, z int32) int32 {
	sx, sy, sz := c.Dsz.Strides()
	return sx*x + sy*y + sz*z
}

// Returns the sample at (x,y,z)
func (c *Cube) At(x, y, z int32) float32 { return c.Data[c.Index(x, y, z)] }

// Returns the z-th plane of the cube as a flat slice of Dsz.X*Dsz.Y samples
func (c *Cube) Plane(z int32) []float32 {
	n := c.Dsz.X * c.Dsz.Y
	return c.Data[z*n : (z+1)*n]
}

// Calculates minimum, mean and maximum of the cube data, ignoring pixels
// marked bad in the goodness map. A nil goodness map treats all pixels as good.
// Returns (0,0,0) if no good pixels exist.
func (c *Cube) MinMeanMax(gmap []float32) (min, mean, max float32) {
	mmin, mmax := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	sum, num := float64(0), int64(0)
	for i, v := range c.Data {
		if gmap != nil && gmap[i] == BadPix {
			continue
		}
		if v < mmin {
			mmin = v
		}
		if v > mmax {
			mmax = v
		}
		sum += float64(v)
		num++
	}
	if num == 0 {
		return 0, 0, 0
	}
	return mmin, float32(sum / float64(num)), mmax
}

// Creates a goodness map for the cube with all pixels marked good
func NewGoodMap(n int32) []float32 {
	gmap := make([]float32, n)
	for i := range gmap {
		gmap[i] = GoodPix
	}
	return gmap
}

// Counts the pixels marked bad in the given goodness map
func CountBad(gmap []float32) (num int32) {
	for _, g := range gmap {
		if g == BadPix {
			num++
		}
	}
	return num
}
