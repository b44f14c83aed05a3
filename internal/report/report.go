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
	"bufio"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/mlnoga/despike/internal/dspk"
)

// Heatmap color ramp endpoints, blended perceptually
var rampLow = colorful.Color{R: 0.03, G: 0.05, B: 0.20}
var rampHigh = colorful.Color{R: 0.99, G: 0.91, B: 0.21}

// Colors for the lower and upper threshold curve overlays
var t9Color = color.RGBA{64, 255, 64, 255}
var t1Color = color.RGBA{255, 64, 64, 255}

// Writes a heatmap of the given joint histogram slice with the threshold
// curves overlaid to a PNG file. Statistic bins run left to right, value bins
// bottom to top
func WriteHistogramPNGToFile(fileName string, db *dspk.DB, slice int32) error {
	f, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err = WriteHistogramPNG(w, db, slice); err != nil {
		return err
	}
	return w.Flush()
}

// Writes a heatmap of the given joint histogram slice with the threshold
// curves overlaid as PNG
func WriteHistogramPNG(w io.Writer, db *dspk.DB, slice int32) error {
	hx, hy, hz := db.Hsz.Strides()
	width, height := int(db.Hsz.X), int(db.Hsz.Y)
	img := image.NewRGBA(image.Rectangle{image.Point{0, 0}, image.Point{width, height}})

	for y := int32(0); y < db.Hsz.Y; y++ {
		imgY := height - 1 - int(y) // value bin 0 at the bottom
		for x := int32(0); x < db.Hsz.X; x++ {
			v := db.Hist[hz*slice+hy*y+hx*x]
			img.SetRGBA(int(x), imgY, rampColor(v))
		}
	}

	// overlay threshold curves
	for x := int32(0); x < db.Tsz.X; x++ {
		T := db.Tsz.X*slice + x
		setCurvePoint(img, int(x), db.T9[T], height, t9Color)
		setCurvePoint(img, int(x), db.T1[T], height, t1Color)
	}

	return png.Encode(w, img)
}

// Maps a normalized histogram value in [0,1] onto the color ramp,
// log-scaled so sparse bins remain visible
func rampColor(v float32) color.RGBA {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	t := math.Log1p(float64(v)*255) / math.Log1p(255)
	c := rampLow.BlendLuv(rampHigh, t).Clamped()
	return color.RGBA{uint8(c.R * 255), uint8(c.G * 255), uint8(c.B * 255), 255}
}

// Plots one point of a threshold curve, clamping the value bin into the image
func setCurvePoint(img *image.RGBA, x int, bin float32, height int, c color.RGBA) {
	y := int(bin + 0.5)
	if y < 0 {
		y = 0
	}
	if y > height-1 {
		y = height - 1
	}
	img.SetRGBA(x, height-1-y, c)
}
