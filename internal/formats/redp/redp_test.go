package redp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	fsys := fsutil.NewMemoryFileSystem()
	in := formats.Input{
		FS:     fsys,
		Frames: []cred.Frame{{Index: 1}, {Index: 2}, {Index: 10}},
		Beam:   cred.BeamCenter{Mean: cred.Point{X: 250.125, Y: 261.5}},
	}
	paths, err := Write(in, "/out/RED")
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/RED/shifts.sc"}, paths)

	data, err := fsys.ReadFile("/out/RED/shifts.sc")
	require.NoError(t, err)
	want := " 250.12 261.50\n" +
		"   1    0.00    0.00\n" +
		"   2    0.00    0.00\n" +
		"  10    0.00    0.00\n"
	assert.Equal(t, want, string(data))
}
