package correct

import (
	"errors"
	"fmt"

	"github.com/banshee-data/cred.convert/internal/cred"
)

// ErrUnsupportedLayout is returned for frame shapes no layout is defined for.
var ErrUnsupportedLayout = errors.New("unsupported sensor layout")

// SensorLayout describes how the central cross of a 2x2 Timepix quad is
// represented in a frame.
type SensorLayout int

const (
	// LayoutRaw is a 512x512 readout in which the double-width pixels along
	// the sensor gap carry ~2.7x the counts of a regular pixel.
	LayoutRaw SensorLayout = iota
	// LayoutGapped is a 516x516 canvas with four synthetic gap rows/columns.
	LayoutGapped
	// LayoutPassthrough leaves frames untouched (non-Timepix detectors).
	LayoutPassthrough
)

const (
	rawSize       = 512
	gappedSize    = 516
	gapHalf       = 256
	gapWidth      = gappedSize - rawSize
	gapAttenuator = 2.7
)

func (l SensorLayout) String() string {
	switch l {
	case LayoutRaw:
		return "raw"
	case LayoutGapped:
		return "gapped"
	case LayoutPassthrough:
		return "passthrough"
	}
	return fmt.Sprintf("SensorLayout(%d)", int(l))
}

// ParseSensorLayout maps a configuration value onto a layout. "auto" and ""
// return ok=false, meaning the layout is resolved from the frame shape.
func ParseSensorLayout(s string) (layout SensorLayout, ok bool, err error) {
	switch s {
	case "", "auto":
		return 0, false, nil
	case "raw":
		return LayoutRaw, true, nil
	case "gapped":
		return LayoutGapped, true, nil
	case "passthrough":
		return LayoutPassthrough, true, nil
	}
	return 0, false, fmt.Errorf("%w: %q", ErrUnsupportedLayout, s)
}

// ResolveLayout picks the layout from the frame shape. Shapes other than
// 512x512 and 516x516 are rejected.
func ResolveLayout(rows, cols int) (SensorLayout, error) {
	switch {
	case rows == rawSize && cols == rawSize:
		return LayoutRaw, nil
	case rows == gappedSize && cols == gappedSize:
		return LayoutGapped, nil
	}
	return 0, fmt.Errorf("%w: %dx%d frames (want %dx%d or %dx%d)",
		ErrUnsupportedLayout, rows, cols, rawSize, rawSize, gappedSize, gappedSize)
}

// OutputShape is the frame shape Apply produces for a rows x cols input.
func (l SensorLayout) OutputShape(rows, cols int) (int, int) {
	if l == LayoutGapped {
		return rawSize, rawSize
	}
	return rows, cols
}

// Apply normalises img for the layout. Raw frames get the gap rows and
// columns 255 and 256 divided by 2.7 (the centre pixels of the cross are
// attenuated along both axes); gapped frames have their four synthetic
// rows and columns removed, yielding 512x512.
func (l SensorLayout) Apply(img cred.Image) (cred.Image, error) {
	switch l {
	case LayoutPassthrough:
		return img.Clone(), nil
	case LayoutRaw:
		if img.Rows != rawSize || img.Cols != rawSize {
			return cred.Image{}, cred.ShapeError("raw sensor layout", rawSize, rawSize, img.Rows, img.Cols)
		}
		out := img.Clone()
		for _, g := range []int{gapHalf - 1, gapHalf} {
			for c := 0; c < out.Cols; c++ {
				out.Set(g, c, out.At(g, c)/gapAttenuator)
			}
		}
		for r := 0; r < out.Rows; r++ {
			for _, g := range []int{gapHalf - 1, gapHalf} {
				out.Set(r, g, out.At(r, g)/gapAttenuator)
			}
		}
		return out, nil
	case LayoutGapped:
		if img.Rows != gappedSize || img.Cols != gappedSize {
			return cred.Image{}, cred.ShapeError("gapped sensor layout", gappedSize, gappedSize, img.Rows, img.Cols)
		}
		out := cred.NewImage(rawSize, rawSize)
		for r := 0; r < rawSize; r++ {
			src := r
			if r >= gapHalf {
				src += gapWidth
			}
			for c := 0; c < rawSize; c++ {
				sc := c
				if c >= gapHalf {
					sc += gapWidth
				}
				out.Set(r, c, img.At(src, sc))
			}
		}
		return out, nil
	}
	return cred.Image{}, fmt.Errorf("%w: %v", ErrUnsupportedLayout, l)
}
