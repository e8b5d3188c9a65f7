// Package beamcenter locates the primary beam across a rotation series.
package beamcenter

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cred.convert/internal/cred"
)

// DefaultThreshold marks primary-beam pixels on a Timepix detector.
const DefaultThreshold = 10000

// Centroid returns the mean (row, col) of all pixels above threshold as a
// Point{X: col, Y: row}, or NaNPoint when no pixel qualifies.
func Centroid(img cred.Image, threshold float64) cred.Point {
	var sumR, sumC float64
	var n int
	for r := 0; r < img.Rows; r++ {
		row := img.Pix[r*img.Cols : (r+1)*img.Cols]
		for c, v := range row {
			if v > threshold {
				sumR += float64(r)
				sumC += float64(c)
				n++
			}
		}
	}
	if n == 0 {
		return cred.NaNPoint()
	}
	return cred.Point{X: sumC / float64(n), Y: sumR / float64(n)}
}

// Estimate computes the beam center of frames. Per-frame centroids are
// flattened to (row, col, row, col, ...), non-finite components are dropped
// and the remainder must still form whole pairs; otherwise a
// *cred.DataIntegrityError is returned. Mean and population standard
// deviation are taken per axis. The result does not depend on frame order
// and repeated frames are counted every time they appear.
func Estimate(frames []cred.Frame, threshold float64) (cred.BeamCenter, error) {
	perFrame := make(map[int]cred.Point, len(frames))
	flat := make([]float64, 0, 2*len(frames))
	for _, f := range frames {
		p := Centroid(f.Image, threshold)
		perFrame[f.Index] = p
		flat = append(flat, p.Y, p.X)
	}

	rows, cols, err := pairs(flat, len(frames))
	if err != nil {
		return cred.BeamCenter{}, err
	}
	if len(rows) == 0 {
		return cred.BeamCenter{}, fmt.Errorf("%d frames above %g counts: %w", len(frames), threshold, cred.ErrNoBeamFound)
	}
	meanR, stdR := stat.PopMeanStdDev(rows, nil)
	meanC, stdC := stat.PopMeanStdDev(cols, nil)

	return cred.BeamCenter{
		Mean:     cred.Point{X: meanC, Y: meanR},
		Std:      cred.Point{X: stdC, Y: stdR},
		PerFrame: perFrame,
	}, nil
}

// Manual returns a beam center taken from configuration.
func Manual(x, y float64) cred.BeamCenter {
	return cred.BeamCenter{Mean: cred.Point{X: x, Y: y}, Fallback: true}
}

// pairs drops the non-finite components of flat (row, col, row, col, ...)
// and splits the rest into row and column samples. A remainder that is not
// made of whole pairs is a *cred.DataIntegrityError.
func pairs(flat []float64, frames int) (rows, cols []float64, err error) {
	finite := make([]float64, 0, len(flat))
	for _, v := range flat {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite)%2 != 0 {
		return nil, nil, &cred.DataIntegrityError{Values: len(finite), Dimension: 2, Frames: frames}
	}
	n := len(finite) / 2
	rows = make([]float64, n)
	cols = make([]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = finite[2*i]
		cols[i] = finite[2*i+1]
	}
	return rows, cols, nil
}
