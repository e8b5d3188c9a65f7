// Package dials writes the helper scripts DIALS users source before
// processing a series with gaps: scan ranges of observed frames, the frames
// to exclude and the goniometer axis.
package dials

import (
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// Script names.
const (
	ShellScript = "dials_variables.sh"
	BatchScript = "dials_variables.bat"
)

// Setting selects the handedness convention of a rotation axis vector.
type Setting string

const (
	SettingXDS   Setting = "xds"
	SettingDIALS Setting = "dials"
)

// ErrUnknownSetting is returned for conventions other than xds and dials.
var ErrUnknownSetting = errors.New("unknown rotation axis setting")

// Axis is a goniometer axis direction.
type Axis struct{ X, Y, Z float64 }

// RotationAxisToXYZ converts an in-plane rotation axis angle (radians) to a
// direction vector. invert adds pi, for rotation towards lower angles.
func RotationAxisToXYZ(axis float64, invert bool, setting Setting) (Axis, error) {
	if invert {
		axis += math.Pi
	}
	x, y := math.Cos(axis), math.Sin(axis)
	switch setting {
	case SettingDIALS:
		return Axis{X: x, Y: y}, nil
	case SettingXDS:
		return Axis{X: x, Y: -y}, nil
	}
	return Axis{}, fmt.Errorf("%w: %q", ErrUnknownSetting, setting)
}

// Variables are the values both scripts export.
type Variables struct {
	ScanRange     string
	ExcludeImages string
	Axis          *Axis
}

// NewVariables derives the script variables for observed and missing
// frame indices.
func NewVariables(observed, missing []int, axis *Axis) Variables {
	ranges := cred.Subranges(observed)
	scan := make([]string, len(ranges))
	for i, r := range ranges {
		scan[i] = fmt.Sprintf("scan_range=%d,%d", r[0], r[1])
	}
	excl := make([]string, len(missing))
	for i, n := range missing {
		excl[i] = strconv.Itoa(n)
	}
	return Variables{
		ScanRange:     strings.Join(scan, " "),
		ExcludeImages: strings.Join(excl, ","),
		Axis:          axis,
	}
}

func (v Variables) axes() string {
	return fmt.Sprintf("geometry.goniometer.axes=%.4f,%.4f,%.4f", v.Axis.X, v.Axis.Y, v.Axis.Z)
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// EncodeShell writes the bash variant. Lines end in "\n".
func EncodeShell(w io.Writer, v Variables) error {
	lines := []string{
		"#!/usr/bin/env bash",
		fmt.Sprintf("scan_range='%s'", v.ScanRange),
		fmt.Sprintf("exclude_images='exclude_images=%s'", v.ExcludeImages),
	}
	if v.Axis != nil {
		lines = append(lines, fmt.Sprintf("rotation_axis='%s'", v.axes()))
	}
	lines = append(lines,
		"#",
		"# To run:",
		"#     source dials_variables.sh",
		"#",
		"# and:",
		"#     dials.import directory=data $rotation_axis",
		"#     dials.find_spots datablock.json $scan_range",
		"#     dials.integrate $exclude_images refined.pickle refined.json",
		"#",
	)
	return writeLines(w, lines)
}

// EncodeBatch writes the cmd.exe variant, also with "\n" line endings.
func EncodeBatch(w io.Writer, v Variables) error {
	lines := []string{
		"@echo off",
		"",
		"set scan_range=" + v.ScanRange,
		"set exclude_images=exclude_images=" + v.ExcludeImages,
	}
	if v.Axis != nil {
		lines = append(lines, "set rotation_axis="+v.axes())
	}
	lines = append(lines,
		"",
		":: To run:",
		"::     call dials_variables.bat",
		"::",
		"::     dials.import directory=data %rotation_axis%",
		"::     dials.find_spots datablock.json %scan_range%",
		"::     dials.integrate %exclude_images% refined.pickle refined.json",
	)
	return writeLines(w, lines)
}

// Jobs returns the jobs writing both scripts into dir.
func Jobs(in formats.Input, dir string) []formats.Job {
	g := in.Geometry
	axis, _ := RotationAxisToXYZ(g.RotationAxis(), g.StartAngle() > g.EndAngle(), SettingDIALS)
	v := NewVariables(in.Indices(), in.Missing, &axis)

	encoders := []struct {
		name string
		enc  func(io.Writer, Variables) error
	}{
		{ShellScript, EncodeShell},
		{BatchScript, EncodeBatch},
	}
	jobs := make([]formats.Job, 0, len(encoders))
	for _, e := range encoders {
		path := filepath.Join(dir, e.name)
		jobs = append(jobs, formats.Job{Path: path, Run: func() error {
			return fsutil.WriteArtifact(in.FS, path, func(w io.Writer) error { return e.enc(w, v) })
		}})
	}
	return jobs
}

// Write writes both scripts and returns their paths.
func Write(in formats.Input, dir string) ([]string, error) {
	return formats.RunAll(Jobs(in, dir))
}
