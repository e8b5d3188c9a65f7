package mrc

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/cred.convert/internal/correct"
	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// Name is the file name of the frame at acquisition position n (0-based).
func Name(n int) string { return fmt.Sprintf("%d.mrc", FirstNumber+n) }

// Prepare turns a corrected frame into REDp orientation: rows are flipped so
// the origin is bottom-left, then the elliptical distortion is removed about
// the beam center expressed in the flipped frame.
func Prepare(img cred.Image, d cred.DistortionParams, beam cred.Point) (cred.Image, error) {
	flipped := img.FlipRows()
	if d.Stretch == 0 {
		return flipped, nil
	}
	center := cred.Point{X: beam.X, Y: float64(img.Rows-1) - beam.Y}
	return correct.RemoveDistortion(flipped, d, center)
}

// WriteFrame prepares img and writes it to path.
func WriteFrame(fsys fsutil.FileSystem, path string, img cred.Image, d cred.DistortionParams, beam cred.Point) error {
	out, err := Prepare(img, d, beam)
	if err != nil {
		return fmt.Errorf("mrc %s: %w", path, err)
	}
	data := out.ToInt16()
	return fsutil.WriteArtifact(fsys, path, func(w io.Writer) error {
		return Encode(w, out.Rows, out.Cols, data)
	})
}

// Jobs returns one job per frame, named by acquisition position.
func Jobs(in formats.Input, dir string) []formats.Job {
	d := in.Geometry.DistortionParams()
	jobs := make([]formats.Job, 0, len(in.Frames))
	for n, f := range in.Frames {
		path := filepath.Join(dir, Name(n))
		img := f.Image
		jobs = append(jobs, formats.Job{Path: path, Run: func() error {
			return WriteFrame(in.FS, path, img, d, in.Beam.Mean)
		}})
	}
	return jobs
}

// Write converts every frame sequentially.
func Write(in formats.Input, dir string) ([]string, error) {
	return formats.RunAll(Jobs(in, dir))
}
