// Package xdsinp generates XDS.INP by patching dataset values into a frozen
// template at fixed line numbers.
package xdsinp

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// FileName is the input file XDS reads from its working directory.
const FileName = "XDS.INP"

// ErrTemplateMismatch is returned when a template does not carry the
// expected keyword on one of the patched lines.
var ErrTemplateMismatch = errors.New("xds template mismatch")

//go:embed XDS.INP.template
var defaultTemplate []byte

// Template returns a copy of the embedded template.
func Template() []byte { return append([]byte(nil), defaultTemplate...) }

// Default resolution limits in Angstrom.
const (
	DefaultLowRes  = 20.0
	DefaultHighRes = 0.8
)

// firstFileNumber is the number the first MRC file of a series carries.
// The frame count handed to XDS is derived from the end marker with it.
const firstFileNumber = 10001

// Patched lines, 1-based.
const (
	lineDataRange       = 54
	lineExclude         = 55
	lineSpotRange       = 56
	lineBackgroundRange = 58
	lineStartingAngle   = 69
	lineResolution      = 134
	lineOrigin          = 156
	lineDistance        = 157
	lineOscillation     = 159
	lineRotationAxis    = 162
)

var keywords = map[int]string{
	lineDataRange:       "DATA_RANGE",
	lineExclude:         "EXCLUDE_DATA_RANGE",
	lineSpotRange:       "SPOT_RANGE",
	lineBackgroundRange: "BACKGROUND_RANGE",
	lineStartingAngle:   "STARTING_ANGLE",
	lineResolution:      "INCLUDE_RESOLUTION_RANGE",
	lineOrigin:          "ORGX",
	lineDistance:        "DETECTOR_DISTANCE",
	lineOscillation:     "OSCILLATION_RANGE",
	lineRotationAxis:    "ROTATION_AXIS",
}

// Options control XDS.INP generation.
type Options struct {
	// IndEnd is one past the file number of the last frame; zero derives
	// it from the last frame index.
	IndEnd  int
	LowRes  float64
	HighRes float64
	// Template overrides the embedded template.
	Template []byte
}

// Params are the dataset values written into the template.
type Params struct {
	DataEnd      int
	Exclude      [][2]int
	StartAngle   float64
	LowRes       float64
	HighRes      float64
	Origin       cred.Point
	Distance     float64
	OscRange     float64
	RotationAxis float64 // radians, already inverted for negative rotation
}

// NewParams derives the template values for a job.
func NewParams(in formats.Input, opts Options) Params {
	g := in.Geometry
	indEnd := opts.IndEnd
	if indEnd == 0 {
		indEnd = firstFileNumber + in.Last()
	}
	low, high := opts.LowRes, opts.HighRes
	if low == 0 {
		low = DefaultLowRes
	}
	if high == 0 {
		high = DefaultHighRes
	}
	axis := g.RotationAxis()
	if g.StartAngle() > g.EndAngle() {
		axis += math.Pi
	}
	return Params{
		DataEnd:      indEnd - firstFileNumber,
		Exclude:      cred.Subranges(in.Missing),
		StartAngle:   g.StartAngle(),
		LowRes:       low,
		HighRes:      high,
		Origin:       in.Beam.Mean,
		Distance:     g.Distance(),
		OscRange:     g.OscillationRange(),
		RotationAxis: axis,
	}
}

func lineKeyword(line string) string {
	s := strings.TrimLeft(line, " !")
	if i := strings.IndexByte(s, '='); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Check verifies that template carries every patched keyword on its line.
func Check(template []byte) error {
	lines := strings.Split(strings.TrimSuffix(string(template), "\n"), "\n")
	if len(lines) < lineRotationAxis {
		return fmt.Errorf("%w: %d lines, need at least %d", ErrTemplateMismatch, len(lines), lineRotationAxis)
	}
	for n, kw := range keywords {
		if got := lineKeyword(lines[n-1]); got != kw {
			return fmt.Errorf("%w: line %d is %q, want %s", ErrTemplateMismatch, n, got, kw)
		}
	}
	return nil
}

// Patch returns template with the dataset lines replaced. Every other line
// is copied verbatim.
func Patch(template []byte, p Params) ([]byte, error) {
	if err := Check(template); err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSuffix(string(template), "\n"), "\n")

	frameRange := fmt.Sprintf("           1 %d", p.DataEnd)
	set := map[int]string{
		lineDataRange:       "DATA_RANGE=" + frameRange,
		lineSpotRange:       "SPOT_RANGE=" + frameRange,
		lineBackgroundRange: "BACKGROUND_RANGE=" + frameRange,
		lineStartingAngle:   "STARTING_ANGLE= " + formats.ShortFloat(p.StartAngle),
		lineResolution: fmt.Sprintf("INCLUDE_RESOLUTION_RANGE= %s   %s",
			formats.ShortFloat(p.LowRes), formats.ShortFloat(p.HighRes)),
		lineOrigin: fmt.Sprintf("ORGX= %s    ORGY= %s       !Detector origin (pixels). Often close to the image center, i.e. ORGX=NX/2; ORGY=NY/2",
			formats.ShortFloat(p.Origin.X), formats.ShortFloat(p.Origin.Y)),
		lineDistance: fmt.Sprintf("DETECTOR_DISTANCE= +%s   ! can be negative. Positive because the detector normal points away from the crystal.",
			formats.ShortFloat(p.Distance)),
		lineOscillation: " OSCILLATION_RANGE= " + formats.ShortFloat(p.OscRange),
		lineRotationAxis: fmt.Sprintf("ROTATION_AXIS= %s %s 0",
			formats.ShortFloat(math.Cos(p.RotationAxis)), formats.ShortFloat(math.Cos(p.RotationAxis+math.Pi/2))),
	}
	if len(p.Exclude) > 0 {
		ex := make([]string, len(p.Exclude))
		for i, r := range p.Exclude {
			ex[i] = fmt.Sprintf("EXCLUDE_DATA_RANGE=%d %d", r[0], r[1])
		}
		set[lineExclude] = strings.Join(ex, "\n")
	}
	for n, l := range set {
		lines[n-1] = l
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

// Job writes dir/XDS.INP.
func Job(in formats.Input, dir string, opts Options) formats.Job {
	path := filepath.Join(dir, FileName)
	return formats.Job{Path: path, Run: func() error {
		tmpl := opts.Template
		if tmpl == nil {
			tmpl = defaultTemplate
		}
		out, err := Patch(tmpl, NewParams(in, opts))
		if err != nil {
			return fmt.Errorf("xds: %w", err)
		}
		return fsutil.WriteArtifact(in.FS, path, func(w io.Writer) error {
			_, err := w.Write(out)
			return err
		})
	}}
}

// Write writes dir/XDS.INP and returns its path.
func Write(in formats.Input, dir string, opts Options) ([]string, error) {
	return formats.RunAll([]formats.Job{Job(in, dir, opts)})
}
