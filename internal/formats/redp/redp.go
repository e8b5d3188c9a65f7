// Package redp writes the REDp shift-correction file that accompanies the
// MRC frames and the ed3d manifest.
package redp

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// FileName is the shift-correction file REDp reads.
const FileName = "shifts.sc"

// Encode writes the mean beam center (column first) followed by a zero
// shift for every observed frame index.
func Encode(w io.Writer, in formats.Input) error {
	bc := in.Beam.Mean
	if _, err := fmt.Fprintf(w, " %.2f %.2f\n", bc.X, bc.Y); err != nil {
		return err
	}
	for _, i := range in.Indices() {
		if _, err := fmt.Fprintf(w, "%4d%8.2f%8.2f\n", i, 0.0, 0.0); err != nil {
			return err
		}
	}
	return nil
}

// Job writes dir/shifts.sc.
func Job(in formats.Input, dir string) formats.Job {
	path := filepath.Join(dir, FileName)
	return formats.Job{Path: path, Run: func() error {
		return fsutil.WriteArtifact(in.FS, path, func(w io.Writer) error { return Encode(w, in) })
	}}
}

// Write writes dir/shifts.sc and returns its path.
func Write(in formats.Input, dir string) ([]string, error) {
	return formats.RunAll([]formats.Job{Job(in, dir)})
}
