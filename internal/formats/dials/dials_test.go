package dials

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

func TestRotationAxisToXYZ(t *testing.T) {
	t.Parallel()

	axis := 30 * math.Pi / 180

	d, err := RotationAxisToXYZ(axis, false, SettingDIALS)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(3)/2, d.X, 1e-12)
	assert.InDelta(t, 0.5, d.Y, 1e-12)
	assert.Zero(t, d.Z)

	x, err := RotationAxisToXYZ(axis, false, SettingXDS)
	require.NoError(t, err)
	assert.InDelta(t, d.X, x.X, 1e-12)
	assert.InDelta(t, -d.Y, x.Y, 1e-12)

	inv, err := RotationAxisToXYZ(axis, true, SettingDIALS)
	require.NoError(t, err)
	assert.InDelta(t, -d.X, inv.X, 1e-12)
	assert.InDelta(t, -d.Y, inv.Y, 1e-12)

	_, err = RotationAxisToXYZ(axis, false, "mosflm")
	assert.ErrorIs(t, err, ErrUnknownSetting)
}

func TestEncodeShell(t *testing.T) {
	t.Parallel()

	v := NewVariables([]int{1, 2, 3, 6, 7, 9}, []int{4, 5, 8}, &Axis{X: 0.5, Y: -0.25})
	var buf bytes.Buffer
	require.NoError(t, EncodeShell(&buf, v))

	want := "#!/usr/bin/env bash\n" +
		"scan_range='scan_range=1,3 scan_range=6,7 scan_range=9,9'\n" +
		"exclude_images='exclude_images=4,5,8'\n" +
		"rotation_axis='geometry.goniometer.axes=0.5000,-0.2500,0.0000'\n" +
		"#\n" +
		"# To run:\n" +
		"#     source dials_variables.sh\n" +
		"#\n" +
		"# and:\n" +
		"#     dials.import directory=data $rotation_axis\n" +
		"#     dials.find_spots datablock.json $scan_range\n" +
		"#     dials.integrate $exclude_images refined.pickle refined.json\n" +
		"#\n"
	assert.Equal(t, want, buf.String())
}

func TestEncodeBatchWithoutAxis(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, EncodeBatch(&buf, NewVariables([]int{1, 2}, nil, nil)))

	want := "@echo off\n" +
		"\n" +
		"set scan_range=scan_range=1,2\n" +
		"set exclude_images=exclude_images=\n" +
		"\n" +
		":: To run:\n" +
		"::     call dials_variables.bat\n" +
		"::\n" +
		"::     dials.import directory=data %rotation_axis%\n" +
		"::     dials.find_spots datablock.json %scan_range%\n" +
		"::     dials.integrate %exclude_images% refined.pickle refined.json\n"
	assert.Equal(t, want, buf.String())
}

func TestWrite(t *testing.T) {
	t.Parallel()

	g, err := cred.NewGeometry(cred.GeometryParams{
		Wavelength: 0.0251, PhysicalPixelsize: 0.055, Pixelsize: 0.0106,
		StartAngle: 10, EndAngle: -10, OscAngle: 0.5,
	})
	require.NoError(t, err)

	fsys := fsutil.NewMemoryFileSystem()
	in := formats.Input{
		FS:       fsys,
		Geometry: g,
		Frames:   []cred.Frame{{Index: 1}, {Index: 3}},
		Missing:  []int{2},
	}
	paths, err := Write(in, "/out/SMV")
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/SMV/dials_variables.bat", "/out/SMV/dials_variables.sh"}, paths)

	sh, err := fsys.ReadFile("/out/SMV/dials_variables.sh")
	require.NoError(t, err)
	assert.Contains(t, string(sh), "scan_range='scan_range=1,1 scan_range=3,3'\n")
	assert.Contains(t, string(sh), "exclude_images='exclude_images=2'\n")
	assert.Contains(t, string(sh), "rotation_axis='geometry.goniometer.axes=-1.0000,0.0000,0.0000'\n")
}
