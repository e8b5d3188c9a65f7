// Package mrc reads and writes single-section MRC2000 images as consumed by
// REDp. Frames are stored as 16-bit signed integers (mode 1) in host byte
// order behind a fixed 1024-byte header.
package mrc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/banshee-data/cred.convert/internal/cred"
)

const (
	// HeaderSize is the fixed MRC header length in bytes.
	HeaderSize = 1024

	// FirstNumber is added to the acquisition position to build file names.
	FirstNumber = 10000

	// Creator is stored in the first header label.
	Creator = "cred.convert"

	modeInt8    = 0
	modeInt16   = 1
	modeFloat32 = 2
	modeUint16  = 6
)

var (
	stampLittle = [4]byte{0x44, 0x41, 0x00, 0x00}
	stampBig    = [4]byte{0x11, 0x11, 0x00, 0x00}
	mapTag      = [4]byte{'M', 'A', 'P', ' '}
)

// Header is the MRC2000 main header in on-disk field order.
type Header struct {
	NX, NY, NZ                int32
	Mode                      int32
	NXStart, NYStart, NZStart int32
	MX, MY, MZ                int32
	XLen, YLen, ZLen          float32
	Alpha, Beta, Gamma        float32
	MapC, MapR, MapS          int32
	AMin, AMax, AMean         float32
	ISPG                      int32
	NSymBT                    int32
	Extra                     [100]byte
	XOrigin, YOrigin, ZOrigin float32
	Map                       [4]byte
	MachineStamp              [4]byte
	RMS                       float32
	NLabl                     int32
	Labels                    [10][80]byte
}

// Label returns label i with trailing padding removed.
func (h Header) Label(i int) string {
	return string(bytes.TrimRight(h.Labels[i][:], "\x00 "))
}

// hostOrder reports the byte order of the running machine and its stamp.
func hostOrder() (binary.ByteOrder, [4]byte) {
	var probe [2]byte
	binary.NativeEndian.PutUint16(probe[:], 1)
	if probe[0] == 1 {
		return binary.LittleEndian, stampLittle
	}
	return binary.BigEndian, stampBig
}

// NewHeader describes a rows x cols int16 image. Density statistics are
// computed from data.
func NewHeader(rows, cols int, data []int16) Header {
	_, stamp := hostOrder()
	h := Header{
		NX: int32(cols), NY: int32(rows), NZ: 1,
		Mode: modeInt16,
		MX:   int32(cols), MY: int32(rows), MZ: 1,
		Alpha: 90, Beta: 90, Gamma: 90,
		MapC: 1, MapR: 2, MapS: 3,
		Map:          mapTag,
		MachineStamp: stamp,
		NLabl:        1,
	}
	copy(h.Labels[0][:], Creator)

	if len(data) > 0 {
		lo, hi := math.Inf(1), math.Inf(-1)
		var sum float64
		for _, v := range data {
			f := float64(v)
			lo, hi = math.Min(lo, f), math.Max(hi, f)
			sum += f
		}
		mean := sum / float64(len(data))
		var ss float64
		for _, v := range data {
			d := float64(v) - mean
			ss += d * d
		}
		h.AMin, h.AMax, h.AMean = float32(lo), float32(hi), float32(mean)
		h.RMS = float32(math.Sqrt(ss / float64(len(data))))
	}
	return h
}

// Encode writes header and int16 payload in host byte order.
func Encode(w io.Writer, rows, cols int, data []int16) error {
	if len(data) != rows*cols {
		return fmt.Errorf("mrc payload has %d values, want %d", len(data), rows*cols)
	}
	order, _ := hostOrder()
	h := NewHeader(rows, cols, data)
	if err := binary.Write(w, order, &h); err != nil {
		return fmt.Errorf("write mrc header: %w", err)
	}
	if err := binary.Write(w, order, data); err != nil {
		return fmt.Errorf("write mrc data: %w", err)
	}
	return nil
}

// ReadWarnings collects recoverable header anomalies found by Decode.
type ReadWarnings struct {
	BadMachineStamp bool // unknown stamp; little-endian was assumed
	BadMapTag       bool // "MAP " tag absent
	ExtraSections   int  // sections beyond the first that were ignored
}

// Any reports whether a warning was raised.
func (w ReadWarnings) Any() bool {
	return w.BadMachineStamp || w.BadMapTag || w.ExtraSections > 0
}

// File is a decoded MRC image.
type File struct {
	Header Header
	Image  cred.Image
}

// ErrMalformed is returned for files that cannot be decoded.
var ErrMalformed = errors.New("malformed mrc file")

// Decode reads an MRC file. Unknown machine stamps and missing map tags are
// reported through the returned ReadWarnings rather than failing.
func Decode(r io.Reader) (File, ReadWarnings, error) {
	var warn ReadWarnings
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return File{}, warn, fmt.Errorf("read mrc header: %w", err)
	}

	var order binary.ByteOrder = binary.LittleEndian
	switch stamp := [4]byte(raw[212:216]); {
	case stamp[0] == stampLittle[0] && stamp[1] == stampLittle[1]:
	case stamp[0] == stampBig[0] && stamp[1] == stampBig[1]:
		order = binary.BigEndian
	default:
		warn.BadMachineStamp = true
	}

	var h Header
	if err := binary.Read(bytes.NewReader(raw), order, &h); err != nil {
		return File{}, warn, fmt.Errorf("decode mrc header: %w", err)
	}
	if h.Map != mapTag {
		warn.BadMapTag = true
	}
	if h.NX <= 0 || h.NY <= 0 || h.NZ <= 0 {
		return File{}, warn, fmt.Errorf("%w: dimensions %dx%dx%d", ErrMalformed, h.NX, h.NY, h.NZ)
	}
	warn.ExtraSections = int(h.NZ) - 1

	// symmetry records sit between header and data
	if h.NSymBT > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(h.NSymBT)); err != nil {
			return File{}, warn, fmt.Errorf("skip mrc extended header: %w", err)
		}
	}

	rows, cols := int(h.NY), int(h.NX)
	img := cred.NewImage(rows, cols)
	var err error
	switch h.Mode {
	case modeInt8:
		buf := make([]int8, rows*cols)
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				img.Pix[i] = float64(v)
			}
		}
	case modeInt16:
		buf := make([]int16, rows*cols)
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				img.Pix[i] = float64(v)
			}
		}
	case modeFloat32:
		buf := make([]float32, rows*cols)
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				img.Pix[i] = float64(v)
			}
		}
	case modeUint16:
		buf := make([]uint16, rows*cols)
		if err = binary.Read(r, order, buf); err == nil {
			for i, v := range buf {
				img.Pix[i] = float64(v)
			}
		}
	default:
		return File{}, warn, fmt.Errorf("%w: unsupported mode %d", ErrMalformed, h.Mode)
	}
	if err != nil {
		return File{}, warn, fmt.Errorf("read mrc data: %w", err)
	}
	return File{Header: h, Image: img}, warn, nil
}
