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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// Writes the cube to a FITS file with the given filename.
// Creates/overwrites the file if necessary
func (c *Cube) WriteFile(fileName string) error {
	f, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err = c.Write(w); err != nil {
		return err
	}
	return w.Flush()
}

// Writes the cube to an io.Writer as 32-bit floating point FITS
func (c *Cube) Write(w io.Writer) error {
	sb := strings.Builder{}
	writeHeaderBool(&sb, "SIMPLE", true, "    FITS standard 4.0")
	writeHeaderInt32(&sb, "BITPIX", -32, "    32-bit floating point")
	writeHeaderInt32(&sb, "NAXIS", 3, "[1] Number of axis")
	writeHeaderInt32(&sb, "NAXIS1", c.Dsz.X, "[1] Axis size")
	writeHeaderInt32(&sb, "NAXIS2", c.Dsz.Y, "[1] Axis size")
	writeHeaderInt32(&sb, "NAXIS3", c.Dsz.Z, "[1] Axis size")
	fmt.Fprintf(&sb, "%-80s", "END")

	// pad header block with spaces to fill the block
	if rem := sb.Len() % fitsBlockSize; rem > 0 {
		for i := rem; i < fitsBlockSize; i++ {
			sb.WriteRune(' ')
		}
	}
	if _, err := w.Write([]byte(sb.String())); err != nil {
		return err
	}
	return writeFloat32Array(w, c.Data)
}

// Writes a FITS header boolean value
func writeHeaderBool(w io.Writer, key string, value bool, comment string) {
	v := "F"
	if value {
		v = "T"
	}
	fmt.Fprintf(w, "%-8s= %20s / %-47s", key, v, comment)
}

// Writes a FITS header int32 value
func writeHeaderInt32(w io.Writer, key string, value int32, comment string) {
	fmt.Fprintf(w, "%-8s= %20d / %-47s", key, value, comment)
}

// Writes a float32 array in big-endian byte order, replacing NaNs with zeros,
// padded with zero bytes to a multiple of the FITS block size
func writeFloat32Array(w io.Writer, data []float32) error {
	buf := make([]byte, fitsBlockSize)
	used := 0
	for _, v := range data {
		if math.IsNaN(float64(v)) {
			v = 0
		}
		binary.BigEndian.PutUint32(buf[used:], math.Float32bits(v))
		used += 4
		if used == len(buf) {
			if _, err := w.Write(buf); err != nil {
				return err
			}
			used = 0
		}
	}
	if used > 0 {
		for i := used; i < len(buf); i++ {
			buf[i] = 0
		}
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
