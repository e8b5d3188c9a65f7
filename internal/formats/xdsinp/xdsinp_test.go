package xdsinp

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

func testInput(t *testing.T, start, end float64, missing []int) formats.Input {
	t.Helper()
	g, err := cred.NewGeometry(cred.GeometryParams{
		Wavelength: 0.0251, PhysicalPixelsize: 0.055, Pixelsize: 0.0106,
		OscAngle: 0.5, StartAngle: start, EndAngle: end,
	})
	require.NoError(t, err)
	return formats.Input{
		FS:       fsutil.NewMemoryFileSystem(),
		Geometry: g,
		Frames:   []cred.Frame{{Index: 1}, {Index: 2}, {Index: 49}},
		Beam:     cred.BeamCenter{Mean: cred.Point{X: 255.5, Y: 260.25}},
		Missing:  missing,
	}
}

func splitLines(b []byte) []string {
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func TestEmbeddedTemplateIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, Check(Template()))
}

func TestPatchDataRange(t *testing.T) {
	t.Parallel()

	in := testInput(t, -30, 30, nil)
	out, err := Patch(Template(), NewParams(in, Options{IndEnd: 10050}))
	require.NoError(t, err)

	lines := splitLines(out)
	assert.Equal(t, "DATA_RANGE=           1 49", lines[53])
	assert.Equal(t, "!EXCLUDE_DATA_RANGE=", lines[54])
	assert.Equal(t, "SPOT_RANGE=           1 49", lines[55])
	assert.Equal(t, "BACKGROUND_RANGE=           1 49", lines[57])
	assert.Equal(t, "STARTING_ANGLE= -30.0", lines[68])
	assert.Equal(t, "INCLUDE_RESOLUTION_RANGE= 20.0   0.8", lines[133])
	assert.True(t, strings.HasPrefix(lines[155], "ORGX= 255.5    ORGY= 260.25       !Detector origin"))
	assert.True(t, strings.HasPrefix(lines[156], "DETECTOR_DISTANCE= +"+formats.ShortFloat(in.Geometry.Distance())+"   !"))
	assert.Equal(t, " OSCILLATION_RANGE= 0.5", lines[158])
	assert.Equal(t, "ROTATION_AXIS= 1.0 "+formats.ShortFloat(math.Cos(math.Pi/2))+" 0", lines[161])
}

func TestPatchDerivesEndFromLastFrame(t *testing.T) {
	t.Parallel()

	in := testInput(t, 0, 10, nil)
	p := NewParams(in, Options{})
	assert.Equal(t, 49, p.DataEnd)
	assert.Equal(t, DefaultLowRes, p.LowRes)
	assert.Equal(t, DefaultHighRes, p.HighRes)
}

func TestPatchKeepsOtherLinesVerbatim(t *testing.T) {
	t.Parallel()

	tmpl := splitLines(Template())
	out, err := Patch(Template(), NewParams(testInput(t, 0, 10, nil), Options{}))
	require.NoError(t, err)
	lines := splitLines(out)
	require.Len(t, lines, len(tmpl))

	for i := range tmpl {
		if _, patched := keywords[i+1]; patched {
			continue
		}
		assert.Equal(t, tmpl[i], lines[i], "line %d", i+1)
	}
}

func TestPatchExcludesMissingRanges(t *testing.T) {
	t.Parallel()

	in := testInput(t, 0, 10, []int{3, 4, 5, 10, 20, 21})
	out, err := Patch(Template(), NewParams(in, Options{}))
	require.NoError(t, err)

	lines := splitLines(out)
	assert.Equal(t, []string{
		"EXCLUDE_DATA_RANGE=3 5",
		"EXCLUDE_DATA_RANGE=10 10",
		"EXCLUDE_DATA_RANGE=20 21",
	}, lines[54:57])
	assert.Equal(t, "SPOT_RANGE=           1 49", lines[57])
	assert.Len(t, lines, len(splitLines(Template()))+2)
}

func TestPatchInvertsRotationAxis(t *testing.T) {
	t.Parallel()

	in := testInput(t, 30, -30, nil)
	p := NewParams(in, Options{})
	assert.InDelta(t, math.Pi, p.RotationAxis, 1e-12)

	out, err := Patch(Template(), p)
	require.NoError(t, err)
	lines := splitLines(out)
	want := "ROTATION_AXIS= -1.0 " + formats.ShortFloat(math.Cos(math.Pi+math.Pi/2)) + " 0"
	assert.Equal(t, want, lines[161])
}

func TestTemplateMismatch(t *testing.T) {
	t.Parallel()

	tmpl := splitLines(Template())

	short := strings.Join(tmpl[:150], "\n")
	_, err := Patch([]byte(short), Params{})
	assert.ErrorIs(t, err, ErrTemplateMismatch)

	moved := append([]string{"! extra line"}, tmpl...)
	_, err = Patch([]byte(strings.Join(moved, "\n")), Params{})
	assert.ErrorIs(t, err, ErrTemplateMismatch)
}

func TestWriteUsesTemplateOverride(t *testing.T) {
	t.Parallel()

	in := testInput(t, 0, 10, nil)
	_, err := Write(in, "/out/XDS", Options{Template: []byte("JOB= XYCORR\n")})
	require.ErrorIs(t, err, ErrTemplateMismatch)
	assert.False(t, in.FS.Exists("/out/XDS/XDS.INP"))

	paths, err := Write(in, "/out/XDS", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/XDS/XDS.INP"}, paths)
	data, err := in.FS.ReadFile("/out/XDS/XDS.INP")
	require.NoError(t, err)
	assert.Contains(t, string(data), "NAME_TEMPLATE_OF_DATA_FRAMES= data/?????.img   SMV")
}
