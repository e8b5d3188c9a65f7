package pets

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
	"github.com/banshee-data/cred.convert/internal/timeutil"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	g, err := cred.NewGeometry(cred.GeometryParams{
		Wavelength: 0.0251, PhysicalPixelsize: 0.055, Pixelsize: 0.0106,
		OscAngle: 0.5, StartAngle: 10, EndAngle: -10,
	})
	require.NoError(t, err)

	fsys := fsutil.NewMemoryFileSystem()
	in := formats.Input{
		FS:       fsys,
		Geometry: g,
		Frames:   []cred.Frame{{Index: 1}, {Index: 2}, {Index: 4}},
		Clock:    timeutil.NewMockClock(time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)),
	}
	opts := Options{
		Prefix: "# camera {missing_field}\ndetector default\nbeamstop no",
		Suffix: "bin 2\ncifentries\n_exptl_crystal_colour red\nendcifentries",
	}
	paths, err := Write(in, "/out/PETS", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/PETS/pets.pts"}, paths)

	data, err := fsys.ReadFile("/out/PETS/pets.pts")
	require.NoError(t, err)

	want := NewTitle(in.Now()) + "\n" +
		"# camera {missing_field}\n" +
		"detector default\n" +
		"beamstop no\n" +
		"geometry continuous\n" +
		"lambda 0.0251\n" +
		"aperpixel 0.0106\n" +
		"phi 0.25\n" +
		"omega 0.0\n" +
		"bin 1\n" +
		"reflectionsize 20\n" +
		"noiseparameters 3.5 38\n" +
		"\n" +
		"imagelist\n" +
		"tiff/00001.tiff    10.0000 0.00\n" +
		"tiff/00002.tiff     9.5000 0.00\n" +
		"tiff/00004.tiff     8.5000 0.00\n" +
		"endimagelist\n" +
		"cifentries\n" +
		"_exptl_crystal_colour red\n" +
		"endcifentries"
	assert.Equal(t, want, string(data))
}

func TestOmega(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 270.0, Omega(-0.5*math.Pi), 1e-9)
	assert.InDelta(t, 90.0, Omega(0.5*math.Pi), 1e-9)
	assert.InDelta(t, 0.0, Omega(0), 1e-9)
	assert.InDelta(t, 356.0, Omega(-4*math.Pi/180), 1e-9)
}

func TestContextFeedsPlaceholders(t *testing.T) {
	t.Parallel()

	g, err := cred.NewGeometry(cred.GeometryParams{Wavelength: 0.0251, PhysicalPixelsize: 0.055, Pixelsize: 0.0106})
	require.NoError(t, err)
	in := formats.Input{Geometry: g, Frames: []cred.Frame{{Index: 3}, {Index: 7}}}

	got := PartialFormat("lambda {wavelength}\n# frames {first_frame}-{last_frame} ({nframes})", Context(in))
	assert.Equal(t, "lambda 0.0251\n# frames 3-7 (2)", got)
	assert.False(t, strings.Contains(got, "{"))
}
