// Package smv reads and writes ADSC-style SMV detector images: a 512-byte
// "{KEY=VALUE;...}" ASCII header padded with NUL bytes, followed by
// little-endian unsigned 16-bit pixels.
package smv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/cred.convert/internal/cred"
)

// HeaderBytes is the fixed header size.
const HeaderBytes = 512

// ErrMalformed is returned when a file is not a readable SMV image.
var ErrMalformed = errors.New("malformed smv file")

// Header is the SMV header in on-disk field order.
type Header struct {
	Size1       int // fast axis (columns)
	Size2       int // slow axis (rows)
	PixelSize   float64
	Beamline    string
	DetectorSN  int
	Date        string
	Time        float64 // exposure, seconds
	Distance    float64 // mm
	Phi         float64
	OscStart    float64
	OscRange    float64
	Wavelength  float64
	BeamCenterX float64 // pixels, column
	BeamCenterY float64 // pixels, row
	DenzoXBeam  float64 // mm, row * pixel size
	DenzoYBeam  float64 // mm, column * pixel size
}

// Field is one rendered KEY=VALUE pair.
type Field struct {
	Key   string
	Value string
}

func f4(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

// Fields renders the header in file order.
func (h Header) Fields() []Field {
	return []Field{
		{"HEADER_BYTES", strconv.Itoa(HeaderBytes)},
		{"DIM", "2"},
		{"BYTE_ORDER", "little_endian"},
		{"TYPE", "unsigned_short"},
		{"SIZE1", strconv.Itoa(h.Size1)},
		{"SIZE2", strconv.Itoa(h.Size2)},
		{"PIXEL_SIZE", strconv.FormatFloat(h.PixelSize, 'f', -1, 64)},
		{"BIN", "1x1"},
		{"BIN_TYPE", "HW"},
		{"ADC", "fast"},
		{"CREV", "1"},
		{"BEAMLINE", h.Beamline},
		{"DETECTOR_SN", strconv.Itoa(h.DetectorSN)},
		{"DATE", h.Date},
		{"TIME", strconv.FormatFloat(h.Time, 'f', -1, 64)},
		{"DISTANCE", f4(h.Distance)},
		{"TWOTHETA", "0.00"},
		{"PHI", f4(h.Phi)},
		{"OSC_START", f4(h.OscStart)},
		{"OSC_RANGE", f4(h.OscRange)},
		{"WAVELENGTH", f4(h.Wavelength)},
		{"BEAM_CENTER_X", f4(h.BeamCenterX)},
		{"BEAM_CENTER_Y", f4(h.BeamCenterY)},
		{"DENZO_X_BEAM", f4(h.DenzoXBeam)},
		{"DENZO_Y_BEAM", f4(h.DenzoYBeam)},
	}
}

// RenderHeader lays out the header block. The result is always exactly
// HeaderBytes long; fields that would push the closing brace past the
// limit are left out and their keys returned.
func RenderHeader(h Header) (block [HeaderBytes]byte, dropped []string) {
	var b bytes.Buffer
	b.WriteString("{\n")
	for _, f := range h.Fields() {
		line := f.Key + "=" + f.Value + ";\n"
		if b.Len()+len(line)+1 > HeaderBytes {
			dropped = append(dropped, f.Key)
			continue
		}
		b.WriteString(line)
	}
	b.WriteByte('}')
	copy(block[:], b.Bytes())
	return block, dropped
}

// Encode writes header and pixels. len(pix) must equal Size1*Size2.
func Encode(w io.Writer, h Header, pix []uint16) (dropped []string, err error) {
	if len(pix) != h.Size1*h.Size2 {
		return nil, fmt.Errorf("smv payload has %d values, want %dx%d", len(pix), h.Size2, h.Size1)
	}
	block, dropped := RenderHeader(h)
	if _, err := w.Write(block[:]); err != nil {
		return dropped, fmt.Errorf("write smv header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, pix); err != nil {
		return dropped, fmt.Errorf("write smv data: %w", err)
	}
	return dropped, nil
}

// File is a decoded SMV image with its raw header values.
type File struct {
	Fields map[string]string
	Keys   []string // header keys in file order
	Image  cred.Image
}

// Decode parses an SMV image. HEADER_BYTES larger than 512 is honoured.
func Decode(r io.Reader) (File, error) {
	br := bufio.NewReader(r)
	head := make([]byte, HeaderBytes)
	if _, err := io.ReadFull(br, head); err != nil {
		return File{}, fmt.Errorf("read smv header: %w", err)
	}
	end := bytes.IndexByte(head, '}')
	if len(head) == 0 || head[0] != '{' || end < 0 {
		return File{}, fmt.Errorf("%w: header is not enclosed in braces", ErrMalformed)
	}

	f := File{Fields: map[string]string{}}
	for _, line := range strings.Split(string(head[1:end]), "\n") {
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		f.Fields[key] = strings.TrimRight(strings.TrimSpace(val), ";")
		f.Keys = append(f.Keys, key)
	}

	size := HeaderBytes
	if v, ok := f.Fields["HEADER_BYTES"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < HeaderBytes {
			return File{}, fmt.Errorf("%w: HEADER_BYTES=%q", ErrMalformed, v)
		}
		size = n
	}
	if _, err := io.CopyN(io.Discard, br, int64(size-HeaderBytes)); err != nil {
		return File{}, fmt.Errorf("skip smv header: %w", err)
	}

	cols, err1 := strconv.Atoi(f.Fields["SIZE1"])
	rows, err2 := strconv.Atoi(f.Fields["SIZE2"])
	if err1 != nil || err2 != nil || rows <= 0 || cols <= 0 {
		return File{}, fmt.Errorf("%w: SIZE1=%q SIZE2=%q", ErrMalformed, f.Fields["SIZE1"], f.Fields["SIZE2"])
	}
	var order binary.ByteOrder = binary.LittleEndian
	if strings.Contains(f.Fields["BYTE_ORDER"], "big") {
		order = binary.BigEndian
	}
	pix := make([]uint16, rows*cols)
	if err := binary.Read(br, order, pix); err != nil {
		return File{}, fmt.Errorf("read smv data: %w", err)
	}
	f.Image, _ = cred.ImageFromUint16(rows, cols, pix)
	return f, nil
}

// Float returns a numeric header value.
func (f File) Float(key string) (float64, error) {
	v, ok := f.Fields[key]
	if !ok {
		return 0, fmt.Errorf("smv header has no %s", key)
	}
	return strconv.ParseFloat(v, 64)
}
