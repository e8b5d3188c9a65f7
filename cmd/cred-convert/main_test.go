package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats/tiffout"
	"github.com/banshee-data/cred.convert/internal/fsutil"
	"github.com/banshee-data/cred.convert/internal/monitoring"
	"github.com/banshee-data/cred.convert/internal/security"
	"github.com/banshee-data/cred.convert/internal/testutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func writeTestFrames(t *testing.T, fsys fsutil.FileSystem, dir string, indices ...int) {
	t.Helper()
	for _, i := range indices {
		img, err := cred.ImageFromUint16(512, 512, testutil.BeamSpot(512, 512, 256, 250, 2, 20000, 10))
		require.NoError(t, err)
		require.NoError(t, tiffout.WriteFrame(fsys, filepath.Join(dir, tiffout.Name(i)), img))
	}
	require.NoError(t, fsys.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))
}

func TestParseFlags(t *testing.T) {
	var out bytes.Buffer
	f, err := parseFlags([]string{"-in", "/data", "-osc", "0.45", "-start", "-30", "-end", "30", "-camera-length", "250"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "/data", f.inDir)
	assert.Equal(t, ".", f.outDir)
	assert.Equal(t, 0.45, f.oscAngle)
	assert.Equal(t, -30.0, f.startAngle)
	assert.Equal(t, 250, f.cameraLength)

	tests := [][]string{
		{"-osc", "0.5"},
		{"-in", "/data"},
		{"-in", "/data", "-osc", "0.5", "-darkfield", "/dark.tiff"},
		{"-bogus"},
	}
	for _, args := range tests {
		_, err := parseFlags(args, &out)
		assert.Error(t, err, "args %v", args)
	}

	_, err = parseFlags([]string{"-h"}, &out)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestSplitOutputs(t *testing.T) {
	assert.Equal(t, []string{"smv", "xds"}, splitOutputs(" smv, ,xds,"))
	assert.Nil(t, splitOutputs(""))
}

func TestReadFrames(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeTestFrames(t, fsys, "/data", 3, 1)

	frames, err := readFrames(fsys, "/data")
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, 1, frames[0].Index)
	assert.Equal(t, 3, frames[1].Index)
	assert.Equal(t, 20000.0, frames[0].Image.At(256, 250))

	_, err = readFrames(fsys, "/empty")
	assert.Error(t, err)
}

func TestReadFlatfield(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	ff, err := readFlatfield(fsys, "", "")
	require.NoError(t, err)
	assert.Nil(t, ff)

	writeTestFrames(t, fsys, "/calib", 1)
	ff, err = readFlatfield(fsys, "/calib/00001.tiff", "/calib/00001.tiff")
	require.NoError(t, err)
	require.NotNil(t, ff.Dark)
	assert.Equal(t, 512, ff.Flat.Rows)

	_, err = readFlatfield(fsys, "/calib/missing.tiff", "")
	assert.Error(t, err)
}

func TestRunVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &out, fsutil.NewMemoryFileSystem()))
	assert.True(t, strings.HasPrefix(out.String(), "cred-convert dev"))
}

func TestRunConversionAndJobs(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeTestFrames(t, fsys, "/data", 1, 2, 4)
	dbPath := filepath.Join(t.TempDir(), "jobs.db")

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"-in", "/data", "-out", "/out", "-osc", "0.5", "-start", "-20", "-end", "-18.5",
		"-outputs", "smv,xds,redp", "-job-db", dbPath,
	}, &out, fsys)
	require.NoError(t, err)

	printed := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"/out/RED/shifts.sc",
		"/out/SMV/XDS.INP",
		"/out/SMV/data/00001.img",
		"/out/SMV/data/00002.img",
		"/out/SMV/data/00003.img",
		"/out/SMV/data/00004.img",
	}, printed)

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"jobs", "-job-db", dbPath, "list"}, &out, fsys))
	assert.Contains(t, out.String(), "succeeded")

	out.Reset()
	err = run(context.Background(), []string{"jobs", "list"}, &out, fsys)
	assert.ErrorContains(t, err, "no job ledger configured")
}

func TestRunRejectsUnknownOutput(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeTestFrames(t, fsys, "/data", 1)
	var out bytes.Buffer
	err := run(context.Background(), []string{"-in", "/data", "-osc", "0.5", "-outputs", "cbf"}, &out, fsys)
	assert.ErrorContains(t, err, "cbf")
	assert.False(t, fsys.Exists("/out/SMV/XDS.INP"))
}

func TestRunRejectsEscapingSubdir(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	writeTestFrames(t, fsys, "/data", 1)
	cfgPath := filepath.Join(t.TempDir(), "convert.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"smv_subdir": "../../etc"}`), 0o644))

	var out bytes.Buffer
	err := run(context.Background(), []string{"-in", "/data", "-out", t.TempDir(), "-osc", "0.5", "-config", cfgPath}, &out, fsys)
	assert.ErrorIs(t, err, security.ErrPathEscape)
	assert.Empty(t, out.String())
}
