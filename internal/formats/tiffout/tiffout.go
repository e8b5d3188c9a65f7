// Package tiffout writes corrected frames as 16-bit grayscale TIFF, the
// image format PETS2 reads, and decodes TIFF frames and flatfields.
package tiffout

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
	"path/filepath"

	"golang.org/x/image/tiff"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// Name is the file name of frame index.
func Name(index int) string { return fmt.Sprintf("%05d.tiff", index) }

// ToGray16 converts img to a 16-bit grayscale image with clipping.
func ToGray16(img cred.Image) *image.Gray16 {
	g := image.NewGray16(image.Rect(0, 0, img.Cols, img.Rows))
	for i, v := range img.ToUint16() {
		binary.BigEndian.PutUint16(g.Pix[2*i:], v)
	}
	return g
}

// Encode writes img as an uncompressed 16-bit TIFF.
func Encode(w io.Writer, img cred.Image) error {
	return tiff.Encode(w, ToGray16(img), &tiff.Options{Compression: tiff.Uncompressed})
}

// Decode reads a TIFF into an Image. Non-gray images are converted with
// the 16-bit gray colour model.
func Decode(r io.Reader) (cred.Image, error) {
	m, err := tiff.Decode(r)
	if err != nil {
		return cred.Image{}, fmt.Errorf("decode tiff: %w", err)
	}
	b := m.Bounds()
	out := cred.NewImage(b.Dy(), b.Dx())
	switch g := m.(type) {
	case *image.Gray16:
		for row := 0; row < out.Rows; row++ {
			for col := 0; col < out.Cols; col++ {
				out.Set(row, col, float64(g.Gray16At(b.Min.X+col, b.Min.Y+row).Y))
			}
		}
	case *image.Gray:
		for row := 0; row < out.Rows; row++ {
			for col := 0; col < out.Cols; col++ {
				out.Set(row, col, float64(g.GrayAt(b.Min.X+col, b.Min.Y+row).Y))
			}
		}
	default:
		for row := 0; row < out.Rows; row++ {
			for col := 0; col < out.Cols; col++ {
				c := color.Gray16Model.Convert(m.At(b.Min.X+col, b.Min.Y+row)).(color.Gray16)
				out.Set(row, col, float64(c.Y))
			}
		}
	}
	return out, nil
}

// ReadImage decodes the TIFF at path.
func ReadImage(fsys fsutil.FileSystem, path string) (cred.Image, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return cred.Image{}, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return cred.Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// WriteFrame writes img to path.
func WriteFrame(fsys fsutil.FileSystem, path string, img cred.Image) error {
	return fsutil.WriteArtifact(fsys, path, func(w io.Writer) error { return Encode(w, img) })
}

// Jobs returns one job per frame, named by frame index.
func Jobs(in formats.Input, dir string) []formats.Job {
	jobs := make([]formats.Job, 0, len(in.Frames))
	for _, f := range in.Frames {
		path := filepath.Join(dir, Name(f.Index))
		img := f.Image
		jobs = append(jobs, formats.Job{Path: path, Run: func() error {
			return WriteFrame(in.FS, path, img)
		}})
	}
	return jobs
}

// Write converts every frame sequentially.
func Write(in formats.Input, dir string) ([]string, error) {
	return formats.RunAll(Jobs(in, dir))
}
