package correct

import (
	"math"

	"github.com/banshee-data/cred.convert/internal/cred"
)

// Cubic B-spline interpolation with mirror-symmetric coefficient extension.
const (
	splinePole = -0.2679491924311227 // sqrt(3) - 2
	splineGain = 6.0                 // (1 - z)(1 - 1/z)
	edgeTol    = 1e-9
)

type bspline struct {
	rows, cols int
	c          []float64
}

// splineCoefficients runs the separable recursive prefilter over both axes.
func splineCoefficients(img cred.Image) bspline {
	c := make([]float64, len(img.Pix))
	copy(c, img.Pix)

	line := make([]float64, max(img.Rows, img.Cols))
	for r := 0; r < img.Rows; r++ {
		prefilter(c[r*img.Cols : (r+1)*img.Cols])
	}
	for col := 0; col < img.Cols; col++ {
		l := line[:img.Rows]
		for r := range l {
			l[r] = c[r*img.Cols+col]
		}
		prefilter(l)
		for r := range l {
			c[r*img.Cols+col] = l[r]
		}
	}
	return bspline{rows: img.Rows, cols: img.Cols, c: c}
}

// prefilter converts samples to cubic B-spline coefficients in place.
func prefilter(s []float64) {
	n := len(s)
	if n < 2 {
		return
	}
	z := splinePole
	for i := range s {
		s[i] *= splineGain
	}

	// causal initialisation for a mirror-symmetric signal
	zn := math.Pow(z, float64(n-1))
	sum := s[0] + zn*s[n-1]
	z2n := zn * zn
	zk := z
	for k := 1; k < n-1; k++ {
		sum += (zk + z2n/zk) * s[k]
		zk *= z
	}
	s[0] = sum / (1 - z2n)
	for k := 1; k < n; k++ {
		s[k] += z * s[k-1]
	}

	s[n-1] = z / (z*z - 1) * (s[n-1] + z*s[n-2])
	for k := n - 2; k >= 0; k-- {
		s[k] = z * (s[k+1] - s[k])
	}
}

// mirror folds an out-of-range index back into [0, n).
func mirror(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

func weights(t float64) [4]float64 {
	t2, t3 := t*t, t*t*t
	u := 1 - t
	return [4]float64{
		u * u * u / 6,
		(4 - 6*t2 + 3*t3) / 6,
		(1 + 3*t + 3*t2 - 3*t3) / 6,
		t3 / 6,
	}
}

// sample evaluates the spline at fractional (row, col); outside the image
// it returns 0.
func (b bspline) sample(row, col float64) float64 {
	if row < -edgeTol || row > float64(b.rows-1)+edgeTol || col < -edgeTol || col > float64(b.cols-1)+edgeTol {
		return 0
	}
	r0 := int(math.Floor(row))
	c0 := int(math.Floor(col))
	wr := weights(row - float64(r0))
	wc := weights(col - float64(c0))

	var v float64
	for i := 0; i < 4; i++ {
		rr := mirror(r0-1+i, b.rows) * b.cols
		var acc float64
		for j := 0; j < 4; j++ {
			acc += wc[j] * b.c[rr+mirror(c0-1+j, b.cols)]
		}
		v += wr[i] * acc
	}
	return v
}
