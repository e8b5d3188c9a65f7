package correct

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cred.convert/internal/cred"
)

// EllipseToCircle returns M = R1(az) * diag(1-s, 1+s) * R2(az), the affine
// map that removes an elliptical stretch of amplitude s (a fraction) along
// azimuth az (radians).
func EllipseToCircle(azimuth, stretch float64) *mat.Dense {
	c, s := math.Cos(azimuth), math.Sin(azimuth)
	r1 := mat.NewDense(2, 2, []float64{c, -s, s, c})
	scale := mat.NewDense(2, 2, []float64{1 - stretch, 0, 0, 1 + stretch})
	r2 := mat.NewDense(2, 2, []float64{c, s, -s, c})

	var tmp, m mat.Dense
	tmp.Mul(r1, scale)
	m.Mul(&tmp, r2)
	return &m
}

// CircleToEllipse is the inverse of EllipseToCircle and reintroduces the
// stretch, e.g. to simulate a distorted detector.
func CircleToEllipse(azimuth, stretch float64) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(EllipseToCircle(azimuth, stretch)); err != nil {
		return nil, fmt.Errorf("invert distortion matrix (azimuth=%g, stretch=%g): %w", azimuth, stretch, err)
	}
	return &inv, nil
}

// ApplyAffine resamples img so that output[o] = input[M*o + offset] with
// offset = center - M*center, i.e. the transform is anchored at center
// (row, col). Interpolation is a cubic B-spline; samples falling outside the
// input are filled with 0.
func ApplyAffine(img cred.Image, m mat.Matrix, centerRow, centerCol float64) (cred.Image, error) {
	if r, c := m.Dims(); r != 2 || c != 2 {
		return cred.Image{}, fmt.Errorf("affine matrix must be 2x2, got %dx%d", r, c)
	}
	m00, m01 := m.At(0, 0), m.At(0, 1)
	m10, m11 := m.At(1, 0), m.At(1, 1)
	offRow := centerRow - (m00*centerRow + m01*centerCol)
	offCol := centerCol - (m10*centerRow + m11*centerCol)

	coeffs := splineCoefficients(img)
	out := cred.NewImage(img.Rows, img.Cols)
	for r := 0; r < img.Rows; r++ {
		fr := float64(r)
		for c := 0; c < img.Cols; c++ {
			fc := float64(c)
			out.Pix[r*img.Cols+c] = coeffs.sample(m00*fr+m01*fc+offRow, m10*fr+m11*fc+offCol)
		}
	}
	return out, nil
}

// RemoveDistortion applies EllipseToCircle about center.
func RemoveDistortion(img cred.Image, d cred.DistortionParams, center cred.Point) (cred.Image, error) {
	return ApplyAffine(img, EllipseToCircle(d.Azimuth, d.Stretch), center.Y, center.X)
}

// AddDistortion applies CircleToEllipse about center.
func AddDistortion(img cred.Image, d cred.DistortionParams, center cred.Point) (cred.Image, error) {
	m, err := CircleToEllipse(d.Azimuth, d.Stretch)
	if err != nil {
		return cred.Image{}, err
	}
	return ApplyAffine(img, m, center.Y, center.X)
}
