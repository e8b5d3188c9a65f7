package pets

import (
	"fmt"
	"io"
	"math"
	"path/filepath"

	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// FileName is the PETS2 project input written next to the TIFF frames.
const FileName = "pets.pts"

// Options control pets.pts generation.
type Options struct {
	// Geometry is the acquisition geometry keyword; empty means continuous.
	Geometry string
	// TiffDir is the image directory relative to pets.pts; empty means "tiff".
	TiffDir string
	// Prefix and Suffix are configured text placed around the generated
	// keywords. Their keywords win over generated ones. {field} and
	// {field:.4f}-style placeholders are resolved from Context.
	Prefix string
	Suffix string
}

// Context lists the values {field} placeholders in prefix and suffix text
// may refer to.
func Context(in formats.Input) map[string]any {
	g := in.Geometry
	return map[string]any{
		"wavelength":         g.Wavelength(),
		"pixelsize":          g.Pixelsize(),
		"physical_pixelsize": g.PhysicalPixelsize(),
		"distance":           g.Distance(),
		"osc_angle":          g.OscAngle(),
		"start_angle":        g.StartAngle(),
		"end_angle":          g.EndAngle(),
		"rotation_axis":      g.RotationAxis(),
		"exposure_time":      g.ExposureTime(),
		"stretch_amplitude":  g.StretchAmplitude(),
		"stretch_azimuth":    g.StretchAzimuth(),
		"beam_center_x":      in.Beam.Mean.X,
		"beam_center_y":      in.Beam.Mean.Y,
		"first_frame":        in.First(),
		"last_frame":         in.Last(),
		"nframes":            len(in.Frames),
	}
}

// Omega is the in-plane rotation axis angle in degrees, in [0, 360).
func Omega(axis float64) float64 {
	omega := math.Mod(axis*180/math.Pi, 360)
	if omega < 0 {
		omega += 360
	}
	return omega
}

// Build assembles the uncompiled input for a job.
func Build(in formats.Input, opts Options) *Factory {
	g := in.Geometry
	geometry := opts.Geometry
	if geometry == "" {
		geometry = "continuous"
	}
	tiffDir := opts.TiffDir
	if tiffDir == "" {
		tiffDir = "tiff"
	}

	f := NewFactory()
	f.Title = NewTitle(in.Now())
	f.Prefix = opts.Prefix
	f.Suffix = opts.Suffix
	f.Add("geometry", geometry)
	f.Add("lambda", g.Wavelength())
	f.Add("Aperpixel", g.Pixelsize())
	f.Add("phi", g.OscAngle()/2)
	f.Add("omega", Omega(g.RotationAxis()))
	f.Add("bin", 1)
	f.Add("reflectionsize", 20)
	f.Add("noiseparameters", 3.5, 38)
	f.Add("")

	first := in.First()
	images := make([]any, len(in.Frames))
	for n, fr := range in.Frames {
		angle := g.FrameAngle(fr.Index - first)
		images[n] = fmt.Sprintf("%s/%05d.tiff %10.4f 0.00", tiffDir, fr.Index, angle)
	}
	if len(images) > 0 {
		f.Add("imagelist", images...)
	}
	return f
}

// Job writes dir/pets.pts.
func Job(in formats.Input, dir string, opts Options) formats.Job {
	path := filepath.Join(dir, FileName)
	return formats.Job{Path: path, Run: func() error {
		compiled := Build(in, opts).Compile(Context(in))
		return fsutil.WriteArtifact(in.FS, path, func(w io.Writer) error {
			_, err := io.WriteString(w, compiled.String())
			return err
		})
	}}
}

// Write writes dir/pets.pts and returns its path.
func Write(in formats.Input, dir string, opts Options) ([]string, error) {
	return formats.RunAll([]formats.Job{Job(in, dir, opts)})
}
