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
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strconv"
	"strings"
)

const fitsBlockSize = 2880    // FITS header and data unit block size
const fitsHeaderLineSize = 80 // FITS header line size

// Reads a FITS file with up to three axes into a cube.
// Decompresses gzip if the file has a .gz or .gzip suffix
func ReadFile(fileName string) (*Cube, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	ext := strings.ToLower(path.Ext(fileName))
	if ext == ".gz" || ext == ".gzip" {
		r, err = gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
	}
	return Read(r)
}

// Reads a FITS data unit with up to three axes into a cube
func Read(r io.Reader) (*Cube, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if !h.simple {
		return nil, fmt.Errorf("not a valid FITS file, SIMPLE=T missing in header")
	}
	if h.naxis < 1 || h.naxis > 3 {
		return nil, fmt.Errorf("unsupported number of axes %d, expected 1..3", h.naxis)
	}

	dsz := Dims{1, 1, 1}
	for i, n := range h.naxisn[:h.naxis] {
		switch i {
		case 0:
			dsz.X = n
		case 1:
			dsz.Y = n
		case 2:
			dsz.Z = n
		}
	}

	c := New(dsz)
	if err = readData(r, c.Data, h.bitpix, h.bzero); err != nil {
		return nil, err
	}
	return c, nil
}

// Relevant subset of a FITS primary header
type header struct {
	simple bool
	bitpix int32
	naxis  int32
	naxisn [3]int32
	bzero  float32
}

// Reads FITS header blocks until the END keyword, keeping the keys the cube model needs
func readHeader(r io.Reader) (h header, err error) {
	buf := make([]byte, fitsBlockSize)
	for end := false; !end; {
		if _, err = io.ReadFull(r, buf); err != nil {
			return h, err
		}
		for lineNo := 0; lineNo < fitsBlockSize/fitsHeaderLineSize && !end; lineNo++ {
			line := string(buf[lineNo*fitsHeaderLineSize : (lineNo+1)*fitsHeaderLineSize])
			end = h.parseLine(line)
		}
	}
	return h, nil
}

// Parses a single 80-character header line. Returns true on the END keyword
func (h *header) parseLine(line string) (end bool) {
	key := strings.TrimSpace(line[:8])
	if key == "END" {
		return true
	}
	if key == "" || key == "COMMENT" || key == "HISTORY" || len(line) < 10 || line[8] != '=' {
		return false
	}
	value := line[10:]
	if idx := strings.IndexByte(value, '/'); idx >= 0 { // strip value comment
		value = value[:idx]
	}
	value = strings.TrimSpace(value)

	switch key {
	case "SIMPLE":
		h.simple = value == "T"
	case "BITPIX":
		if v, err := strconv.ParseInt(value, 10, 32); err == nil {
			h.bitpix = int32(v)
		}
	case "NAXIS":
		if v, err := strconv.ParseInt(value, 10, 32); err == nil {
			h.naxis = int32(v)
		}
	case "NAXIS1", "NAXIS2", "NAXIS3":
		if v, err := strconv.ParseInt(value, 10, 32); err == nil {
			h.naxisn[key[5]-'1'] = int32(v)
		}
	case "BZERO":
		if v, err := strconv.ParseFloat(value, 32); err == nil {
			h.bzero = float32(v)
		}
	}
	return false
}

// Reads image data of the given bits per pixel, converting to float32 and applying the BZERO offset
func readData(r io.Reader, data []float32, bitpix int32, bzero float32) error {
	switch bitpix {
	case 8:
		buf := make([]byte, len(data))
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i, b := range buf {
			data[i] = float32(b) + bzero
		}
	case 16:
		buf := make([]byte, 2*len(data))
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i := range data {
			v := int16(binary.BigEndian.Uint16(buf[2*i:]))
			data[i] = float32(v) + bzero
		}
	case 32:
		buf := make([]byte, 4*len(data))
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i := range data {
			v := int32(binary.BigEndian.Uint32(buf[4*i:]))
			data[i] = float32(v) + bzero
		}
	case -32:
		buf := make([]byte, 4*len(data))
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i := range data {
			data[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[4*i:])) + bzero
		}
	case -64:
		buf := make([]byte, 8*len(data))
		if _, err := io.ReadFull(r, buf); err != nil {
			return err
		}
		for i := range data {
			data[i] = float32(math.Float64frombits(binary.BigEndian.Uint64(buf[8*i:]))) + float32(bzero)
		}
	default:
		return fmt.Errorf("unsupported BITPIX value %d", bitpix)
	}
	return nil
}
