package beamcenter

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// Artifact names.
const (
	CentersFile = "beam_centers.txt"
	PlotFile    = "beam_centers.png"
)

// WriteCenters writes one "%10.4f %10.4f" (x, y) line per index of
// indices. Frames without a centroid, or absent from bc.PerFrame, are
// written as NaN so line numbers follow the complete acquisition range.
func WriteCenters(fsys fsutil.FileSystem, path string, bc cred.BeamCenter, indices []int) error {
	return fsutil.WriteArtifact(fsys, path, func(w io.Writer) error {
		for _, i := range indices {
			p, ok := bc.PerFrame[i]
			if !ok {
				p = cred.NaNPoint()
			}
			if _, err := fmt.Fprintf(w, "%10.4f %10.4f\n", p.X, p.Y); err != nil {
				return err
			}
		}
		return nil
	})
}

// PlotCenters renders per-frame centroids against frame index with the
// mean drawn as horizontal reference lines.
func PlotCenters(fsys fsutil.FileSystem, path string, bc cred.BeamCenter) error {
	indices := make([]int, 0, len(bc.PerFrame))
	for i := range bc.PerFrame {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	xs := make(plotter.XYs, 0, len(indices))
	ys := make(plotter.XYs, 0, len(indices))
	for _, i := range indices {
		p := bc.PerFrame[i]
		if !p.Valid() {
			continue
		}
		xs = append(xs, plotter.XY{X: float64(i), Y: p.X})
		ys = append(ys, plotter.XY{X: float64(i), Y: p.Y})
	}
	if len(xs) == 0 {
		return fmt.Errorf("plot beam centers: %w", cred.ErrNoBeamFound)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Beam center x=%.2f±%.2f y=%.2f±%.2f", bc.Mean.X, bc.Std.X, bc.Mean.Y, bc.Std.Y)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Pixel"
	p.Add(plotter.NewGrid())

	for _, s := range []struct {
		pts   plotter.XYs
		mean  float64
		label string
		color color.RGBA
	}{
		{xs, bc.Mean.X, "x (column)", color.RGBA{R: 31, G: 119, B: 180, A: 255}},
		{ys, bc.Mean.Y, "y (row)", color.RGBA{R: 214, G: 39, B: 40, A: 255}},
	} {
		sc, err := plotter.NewScatter(s.pts)
		if err != nil {
			return fmt.Errorf("plot beam centers: %w", err)
		}
		sc.GlyphStyle.Color = s.color
		sc.GlyphStyle.Radius = vg.Points(2)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}

		first, last := s.pts[0].X, s.pts[len(s.pts)-1].X
		mean, err := plotter.NewLine(plotter.XYs{{X: first, Y: s.mean}, {X: last, Y: s.mean}})
		if err != nil {
			return fmt.Errorf("plot beam centers: %w", err)
		}
		mean.Color = s.color
		mean.Width = vg.Points(1)
		mean.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

		p.Add(sc, mean)
		p.Legend.Add(s.label, sc)
	}

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("plot beam centers: %w", err)
	}
	return fsutil.WriteArtifact(fsys, path, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	})
}
