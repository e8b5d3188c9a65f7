package cred

import (
	"fmt"
	"math"
)

// Image is a row-major 2-D buffer of detector intensities. All correction
// math runs on float64; writers convert back with ToUint16 or ToInt16.
type Image struct {
	Rows int
	Cols int
	Pix  []float64
}

// NewImage allocates a zeroed rows x cols image.
func NewImage(rows, cols int) Image {
	return Image{Rows: rows, Cols: cols, Pix: make([]float64, rows*cols)}
}

// ImageFromUint16 wraps raw detector counts.
func ImageFromUint16(rows, cols int, pix []uint16) (Image, error) {
	if rows <= 0 || cols <= 0 {
		return Image{}, fmt.Errorf("invalid image dimensions %dx%d", rows, cols)
	}
	if len(pix) != rows*cols {
		return Image{}, fmt.Errorf("pixel buffer has %d values, want %d for %dx%d", len(pix), rows*cols, rows, cols)
	}
	im := NewImage(rows, cols)
	for i, v := range pix {
		im.Pix[i] = float64(v)
	}
	return im, nil
}

// ImageFromInt16 wraps signed pixel data such as MRC mode 1 payloads.
func ImageFromInt16(rows, cols int, pix []int16) (Image, error) {
	if len(pix) != rows*cols {
		return Image{}, fmt.Errorf("pixel buffer has %d values, want %d for %dx%d", len(pix), rows*cols, rows, cols)
	}
	im := NewImage(rows, cols)
	for i, v := range pix {
		im.Pix[i] = float64(v)
	}
	return im, nil
}

// At returns the value at (row, col).
func (im Image) At(row, col int) float64 { return im.Pix[row*im.Cols+col] }

// Set stores v at (row, col).
func (im Image) Set(row, col int, v float64) { im.Pix[row*im.Cols+col] = v }

// SameShape reports whether both images have identical dimensions.
func (im Image) SameShape(o Image) bool { return im.Rows == o.Rows && im.Cols == o.Cols }

// Clone returns a deep copy.
func (im Image) Clone() Image {
	out := Image{Rows: im.Rows, Cols: im.Cols, Pix: make([]float64, len(im.Pix))}
	copy(out.Pix, im.Pix)
	return out
}

// Mean returns the arithmetic mean of all pixels.
func (im Image) Mean() float64 {
	if len(im.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range im.Pix {
		sum += v
	}
	return sum / float64(len(im.Pix))
}

// Min and Max of the pixel values.
func (im Image) Min() float64 {
	m := math.Inf(1)
	for _, v := range im.Pix {
		m = math.Min(m, v)
	}
	return m
}

func (im Image) Max() float64 {
	m := math.Inf(-1)
	for _, v := range im.Pix {
		m = math.Max(m, v)
	}
	return m
}

// FlipRows returns a copy with the row order reversed (top/bottom flip).
func (im Image) FlipRows() Image {
	out := NewImage(im.Rows, im.Cols)
	for r := 0; r < im.Rows; r++ {
		copy(out.Pix[r*im.Cols:(r+1)*im.Cols], im.Pix[(im.Rows-1-r)*im.Cols:(im.Rows-r)*im.Cols])
	}
	return out
}

// ToUint16 truncates toward zero and clips into [0, 65535].
func (im Image) ToUint16() []uint16 {
	out := make([]uint16, len(im.Pix))
	for i, v := range im.Pix {
		switch {
		case math.IsNaN(v) || v <= 0:
			out[i] = 0
		case v >= math.MaxUint16:
			out[i] = math.MaxUint16
		default:
			out[i] = uint16(v)
		}
	}
	return out
}

// ToInt16 truncates toward zero and clips into [-32768, 32767].
func (im Image) ToInt16() []int16 {
	out := make([]int16, len(im.Pix))
	for i, v := range im.Pix {
		switch {
		case math.IsNaN(v):
			out[i] = 0
		case v >= math.MaxInt16:
			out[i] = math.MaxInt16
		case v <= math.MinInt16:
			out[i] = math.MinInt16
		default:
			out[i] = int16(v)
		}
	}
	return out
}
