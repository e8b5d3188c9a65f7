package smv

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/banshee-data/cred.convert/internal/correct"
	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/fsutil"
	"github.com/banshee-data/cred.convert/internal/monitoring"
)

// Defaults recognised by DIALS for this detector.
const (
	DefaultBeamline   = "TIMEPIX_SU"
	DetectorSerial    = 901
	ReferenceDistance = 1.1 // empirical camera-length correction factor
)

// Frame header keys read from acquisition metadata.
const (
	HeaderAcquiredAt = "ImageGetTime"      // unix seconds, float64
	HeaderExposure   = "ImageExposureTime" // seconds, float64
)

// Options control SMV generation.
type Options struct {
	Beamline string
	// ReferencePixelsize is the physical pixel size the camera length was
	// calibrated for. When the geometry uses a different size the distance
	// is multiplied by ReferenceDistance.
	ReferencePixelsize float64
	// Layout forces a sensor layout; nil resolves it from the frame shape.
	Layout *correct.SensorLayout
	// FillMissing writes blank frames for missing indices so DIALS sees a
	// contiguous sequence.
	FillMissing bool
}

// Name is the file name of frame index.
func Name(index int) string { return fmt.Sprintf("%05d.img", index) }

// Distance returns the header camera length for g.
func Distance(g cred.Geometry, opts Options) float64 {
	d := g.Distance()
	if opts.ReferencePixelsize != 0 && opts.ReferencePixelsize != g.PhysicalPixelsize() {
		d *= ReferenceDistance
	}
	return d
}

// NewHeader builds the header for frame index of a job. rows and cols are
// the dimensions after sensor-gap handling.
func NewHeader(in formats.Input, opts Options, index, rows, cols int, meta map[string]any) Header {
	g := in.Geometry
	phi := g.FrameAngle(index - in.First())
	bc := in.Beam.Mean
	beamline := opts.Beamline
	if beamline == "" {
		beamline = DefaultBeamline
	}

	acquired := in.Now()
	if v, ok := meta[HeaderAcquiredAt].(float64); ok {
		sec := int64(v)
		acquired = time.Unix(sec, int64((v-float64(sec))*1e9))
	}
	exposure := g.ExposureTime()
	if v, ok := meta[HeaderExposure].(float64); ok {
		exposure = v
	}

	return Header{
		Size1:       cols,
		Size2:       rows,
		PixelSize:   g.PhysicalPixelsize(),
		Beamline:    beamline,
		DetectorSN:  DetectorSerial,
		Date:        acquired.Format("2006-01-02 15:04:05.000000"),
		Time:        exposure,
		Distance:    Distance(g, opts),
		Phi:         phi,
		OscStart:    phi,
		OscRange:    g.OscillationRange(),
		Wavelength:  g.Wavelength(),
		BeamCenterX: bc.X,
		BeamCenterY: bc.Y,
		DenzoXBeam:  bc.Y * g.PhysicalPixelsize(),
		DenzoYBeam:  bc.X * g.PhysicalPixelsize(),
	}
}

func resolveLayout(opts Options, rows, cols int) (correct.SensorLayout, error) {
	if opts.Layout != nil {
		return *opts.Layout, nil
	}
	return correct.ResolveLayout(rows, cols)
}

// WriteFrame writes one image with header h to path.
func WriteFrame(fsys fsutil.FileSystem, path string, h Header, img cred.Image) error {
	return fsutil.WriteArtifact(fsys, path, func(w io.Writer) error {
		dropped, err := Encode(w, h, img.ToUint16())
		if len(dropped) > 0 {
			monitoring.Warnf("smv %s: header fields %v do not fit in %d bytes", path, dropped, HeaderBytes)
		}
		return err
	})
}

// Jobs returns one job per observed frame plus, with FillMissing, one per
// missing index. The sensor layout is resolved once for the series.
func Jobs(in formats.Input, dir string, opts Options) ([]formats.Job, error) {
	if len(in.Frames) == 0 {
		return nil, nil
	}
	layout, err := resolveLayout(opts, in.Frames[0].Image.Rows, in.Frames[0].Image.Cols)
	if err != nil {
		return nil, fmt.Errorf("smv: %w", err)
	}

	var jobs []formats.Job
	for _, f := range in.Frames {
		path := filepath.Join(dir, Name(f.Index))
		jobs = append(jobs, formats.Job{Path: path, Run: func() error {
			img, err := layout.Apply(f.Image)
			if err != nil {
				return fmt.Errorf("smv frame %d: %w", f.Index, err)
			}
			return WriteFrame(in.FS, path, NewHeader(in, opts, f.Index, img.Rows, img.Cols, f.Header), img)
		}})
	}

	if opts.FillMissing {
		rows, cols := layout.OutputShape(in.Frames[0].Image.Rows, in.Frames[0].Image.Cols)
		blank := cred.NewImage(rows, cols)
		for _, i := range in.Missing {
			h := NewHeader(in, opts, i, rows, cols, nil)
			path := filepath.Join(dir, Name(i))
			jobs = append(jobs, formats.Job{Path: path, Run: func() error {
				return WriteFrame(in.FS, path, h, blank)
			}})
		}
	}
	return jobs, nil
}

// Write converts every frame sequentially.
func Write(in formats.Input, dir string, opts Options) ([]string, error) {
	jobs, err := Jobs(in, dir, opts)
	if err != nil {
		return nil, err
	}
	return formats.RunAll(jobs)
}
