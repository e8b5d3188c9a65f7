// Package ed3d writes the REDp ".ed3d" frame manifest that accompanies the
// MRC frames of a series.
package ed3d

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/formats/mrc"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// FileName is the manifest name REDp looks for.
const FileName = "1.ed3d"

// Encode writes the manifest for in. Frames are listed in acquisition
// order with their goniometer angle; names match mrc.Name.
func Encode(w io.Writer, in formats.Input) error {
	g := in.Geometry
	lines := []string{
		"WAVELENGTH    " + formats.ShortFloat(g.Wavelength()),
		fmt.Sprintf("ROTATIONAXIS    %5f", g.RotationAxisDegrees()),
		fmt.Sprintf("CCDPIXELSIZE    %5f", g.Pixelsize()),
		fmt.Sprintf("GONIOTILTSTEP    %5f", g.OscillationRange()),
		"BEAMTILTSTEP    0",
		"BEAMTILTRANGE    0.000",
		"STRETCHINGMP    0.0",
		"STRETCHINGAZIMUTH    0.0",
		"",
		"FILELIST",
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	first := in.First()
	for n, f := range in.Frames {
		angle := g.FrameAngle(f.Index - first)
		if _, err := fmt.Fprintf(w, "FILE %s    % 12.4f    0    % 12.4f\n", mrc.Name(n), angle, angle); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "ENDFILELIST")
	return err
}

// Job writes dir/1.ed3d.
func Job(in formats.Input, dir string) formats.Job {
	path := filepath.Join(dir, FileName)
	return formats.Job{Path: path, Run: func() error {
		return fsutil.WriteArtifact(in.FS, path, func(w io.Writer) error { return Encode(w, in) })
	}}
}

// Write writes dir/1.ed3d and returns its path.
func Write(in formats.Input, dir string) ([]string, error) {
	return formats.RunAll([]formats.Job{Job(in, dir)})
}
