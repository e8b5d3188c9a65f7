// Package convert runs one cRED conversion job: it corrects a frame series,
// locates the primary beam once and fans the artifact writers out over a
// bounded worker pool.
package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/cred.convert/internal/beamcenter"
	"github.com/banshee-data/cred.convert/internal/correct"
	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats"
	"github.com/banshee-data/cred.convert/internal/formats/dials"
	"github.com/banshee-data/cred.convert/internal/formats/ed3d"
	"github.com/banshee-data/cred.convert/internal/formats/mrc"
	"github.com/banshee-data/cred.convert/internal/formats/pets"
	"github.com/banshee-data/cred.convert/internal/formats/redp"
	"github.com/banshee-data/cred.convert/internal/formats/smv"
	"github.com/banshee-data/cred.convert/internal/formats/tiffout"
	"github.com/banshee-data/cred.convert/internal/formats/xdsinp"
	"github.com/banshee-data/cred.convert/internal/fsutil"
	"github.com/banshee-data/cred.convert/internal/jobstore"
	"github.com/banshee-data/cred.convert/internal/monitoring"
	"github.com/banshee-data/cred.convert/internal/timeutil"
)

// Output directories below Options.OutDir.
const (
	REDDir  = "RED"
	SMVDir  = "SMV"
	TIFFDir = "tiff"
)

// DefaultWorkers bounds the writer pool when Options.Workers is unset.
const DefaultWorkers = 4

// Options configure a Converter. The zero value writes to the working
// directory of the OS filesystem with no correction.
type Options struct {
	FS    fsutil.FileSystem
	Clock timeutil.Clock

	OutDir    string
	SMVSubdir string // images below SMVDir; empty means "data"
	Workers   int

	Corrector     correct.Corrector
	BeamThreshold float64 // zero means beamcenter.DefaultThreshold
	// FallbackBeam is used when no beam can be found in the data.
	FallbackBeam *cred.Point

	SMV  smv.Options
	XDS  xdsinp.Options
	PETS pets.Options

	// Store records each run when set.
	Store *jobstore.Store
}

// Converter holds one corrected series and its lazily computed beam center.
// A job is recorded once, so with a Store set Run should be called once.
type Converter struct {
	id       uuid.UUID
	opts     Options
	series   *cred.Series
	geometry cred.Geometry
	frames   []cred.Frame // corrected, ascending index
	missing  []int

	beamOnce sync.Once
	beam     cred.BeamCenter
	beamErr  error
}

// New validates frames, derives the geometry and corrects every frame.
// Missing indices are logged, not fatal.
func New(frames []cred.Frame, params cred.GeometryParams, opts Options) (*Converter, error) {
	series, err := cred.NewSeries(frames)
	if err != nil {
		return nil, fmt.Errorf("new series: %w", err)
	}
	missing := series.ReportGaps()

	geometry, err := cred.NewGeometry(params)
	if err != nil {
		return nil, fmt.Errorf("new geometry: %w", err)
	}

	if opts.FS == nil {
		opts.FS = fsutil.OSFileSystem{}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.SMVSubdir == "" {
		opts.SMVSubdir = "data"
	}
	if opts.BeamThreshold == 0 {
		opts.BeamThreshold = beamcenter.DefaultThreshold
	}

	corrected := make([]cred.Frame, 0, series.Len())
	for _, f := range series.Frames() {
		img, err := opts.Corrector.Correct(f, nil)
		if err != nil {
			return nil, fmt.Errorf("correct: %w", err)
		}
		corrected = append(corrected, cred.Frame{Index: f.Index, Image: img, Header: f.Header})
	}

	return &Converter{
		id:       uuid.New(),
		opts:     opts,
		series:   series,
		geometry: geometry,
		frames:   corrected,
		missing:  missing,
	}, nil
}

// ID identifies the job in logs and in the job store.
func (c *Converter) ID() uuid.UUID { return c.id }

// Frames returns the corrected frames. Callers must not mutate them.
func (c *Converter) Frames() []cred.Frame { return c.frames }

// Missing returns the indices absent from the acquisition range.
func (c *Converter) Missing() []int { return c.missing }

// Geometry returns the scan geometry.
func (c *Converter) Geometry() cred.Geometry { return c.geometry }

// BeamCenter estimates the primary beam over the corrected frames on first
// use and caches the result. A configured fallback replaces a failed
// estimate.
func (c *Converter) BeamCenter() (cred.BeamCenter, error) {
	c.beamOnce.Do(func() {
		c.beam, c.beamErr = beamcenter.Estimate(c.frames, c.opts.BeamThreshold)
		if c.beamErr == nil {
			monitoring.Logf("job %s: beam center x=%.2f±%.2f y=%.2f±%.2f",
				c.id, c.beam.Mean.X, c.beam.Std.X, c.beam.Mean.Y, c.beam.Std.Y)
			return
		}
		if fb := c.opts.FallbackBeam; fb != nil {
			monitoring.Warnf("job %s: %v; using configured beam center (%.2f, %.2f)", c.id, c.beamErr, fb.X, fb.Y)
			c.beam, c.beamErr = beamcenter.Manual(fb.X, fb.Y), nil
		}
	})
	return c.beam, c.beamErr
}

// Input is the read-only writer view of the job.
func (c *Converter) Input(beam cred.BeamCenter) formats.Input {
	return formats.Input{
		FS:       c.opts.FS,
		Frames:   c.frames,
		Geometry: c.geometry,
		Beam:     beam,
		Missing:  c.missing,
		Clock:    c.opts.Clock,
	}
}

// Jobs returns the writer jobs of outputs in dispatch order.
func (c *Converter) Jobs(in formats.Input, outputs []Output) ([]formats.Job, error) {
	root := c.opts.OutDir
	red := filepath.Join(root, REDDir)
	smvRoot := filepath.Join(root, SMVDir)

	var jobs []formats.Job
	for _, o := range outputs {
		switch o {
		case OutputMRC:
			jobs = append(jobs, mrc.Jobs(in, red)...)
		case OutputSMV:
			js, err := smv.Jobs(in, filepath.Join(smvRoot, c.opts.SMVSubdir), c.opts.SMV)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, js...)
		case OutputTIFF:
			jobs = append(jobs, tiffout.Jobs(in, filepath.Join(root, TIFFDir))...)
		case OutputED3D:
			jobs = append(jobs, ed3d.Job(in, red))
		case OutputXDS:
			jobs = append(jobs, xdsinp.Job(in, smvRoot, c.opts.XDS))
		case OutputPETS:
			opts := c.opts.PETS
			if opts.TiffDir == "" {
				opts.TiffDir = TIFFDir
			}
			jobs = append(jobs, pets.Job(in, root, opts))
		case OutputDIALS:
			jobs = append(jobs, dials.Jobs(in, smvRoot)...)
		case OutputREDp:
			jobs = append(jobs, redp.Job(in, red))
		case OutputBeamCenters:
			jobs = append(jobs, c.beamCenterJobs(in, root)...)
		default:
			return nil, fmt.Errorf("%q: %w", o, ErrUnknownOutput)
		}
	}
	return jobs, nil
}

func (c *Converter) beamCenterJobs(in formats.Input, root string) []formats.Job {
	txt := filepath.Join(root, beamcenter.CentersFile)
	jobs := []formats.Job{{Path: txt, Run: func() error {
		return beamcenter.WriteCenters(in.FS, txt, in.Beam, c.series.CompleteRange())
	}}}
	if in.Beam.Fallback {
		monitoring.Warnf("job %s: no per-frame centroids, skipping %s", c.id, beamcenter.PlotFile)
		return jobs
	}
	png := filepath.Join(root, beamcenter.PlotFile)
	return append(jobs, formats.Job{Path: png, Run: func() error {
		return beamcenter.PlotCenters(in.FS, png, in.Beam)
	}})
}

// Run computes the beam center, then writes every artifact of outputs on at
// most Options.Workers goroutines and waits for all of them. It returns the
// sorted paths written; on failure the paths of the jobs that did succeed
// are returned with the first error. ctx is checked only before dispatch.
func (c *Converter) Run(ctx context.Context, outputs []Output) ([]string, error) {
	start := c.opts.Clock.Now()
	if err := c.begin(ctx, start); err != nil {
		return nil, err
	}

	paths, err := c.run(ctx, outputs)

	elapsed := c.opts.Clock.Since(start)
	if err != nil {
		monitoring.Logf("job %s: failed after %v: %v", c.id, elapsed, err)
	} else {
		monitoring.Logf("job %s: wrote %d artifacts in %v", c.id, len(paths), elapsed)
	}
	if ferr := c.finish(ctx, start.Add(elapsed), paths, err); ferr != nil && err == nil {
		err = ferr
	}
	return paths, err
}

func (c *Converter) run(ctx context.Context, outputs []Output) ([]string, error) {
	beam, err := c.BeamCenter()
	if err != nil {
		return nil, fmt.Errorf("beam center: %w", err)
	}
	jobs, err := c.Jobs(c.Input(beam), outputs)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		written = make([]string, 0, len(jobs))
		g       errgroup.Group
	)
	g.SetLimit(c.opts.Workers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := j.Run(); err != nil {
				return err
			}
			mu.Lock()
			written = append(written, j.Path)
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()
	sort.Strings(written)
	return written, err
}

func (c *Converter) begin(ctx context.Context, start time.Time) error {
	if c.opts.Store == nil {
		return nil
	}
	_, err := c.opts.Store.Begin(ctx, jobstore.Job{
		ID:         c.id,
		StartedAt:  start,
		Frames:     c.series.Len(),
		Missing:    len(c.missing),
		FirstIndex: c.series.First(),
		LastIndex:  c.series.Last(),
	})
	if err != nil {
		return fmt.Errorf("job store: %w", err)
	}
	return nil
}

func (c *Converter) finish(ctx context.Context, end time.Time, paths []string, runErr error) error {
	if c.opts.Store == nil {
		return nil
	}
	beam, err := c.BeamCenter()
	if err != nil {
		beam = cred.BeamCenter{Mean: cred.NaNPoint(), Std: cred.NaNPoint()}
	}
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		ctx = context.WithoutCancel(ctx)
	}
	if err := c.opts.Store.Finish(ctx, c.id, end, beam, paths, runErr); err != nil {
		return fmt.Errorf("job store: %w", err)
	}
	return nil
}
