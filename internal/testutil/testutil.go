// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// GaussianSpot renders a rows x cols detector frame holding a single
// Gaussian spot of the given peak height and sigma centred on (cy, cx)
// above a flat background. Values are clipped to the uint16 range.
func GaussianSpot(rows, cols int, cy, cx, peak, sigma, background float64) []uint16 {
	pix := make([]uint16, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			d2 := (float64(r)-cy)*(float64(r)-cy) + (float64(c)-cx)*(float64(c)-cx)
			v := background + peak*math.Exp(-d2/(2*sigma*sigma))
			pix[r*cols+c] = uint16(math.Min(math.Round(v), math.MaxUint16))
		}
	}
	return pix
}

// BeamSpot renders a frame with a flat saturated square of side 2*half+1
// centred on (cy, cx) on top of a low background: a primary beam that any
// centroid threshold below value picks up symmetrically.
func BeamSpot(rows, cols, cy, cx, half int, value, background uint16) []uint16 {
	pix := make([]uint16, rows*cols)
	for i := range pix {
		pix[i] = background
	}
	for r := cy - half; r <= cy+half; r++ {
		for c := cx - half; c <= cx+half; c++ {
			if r >= 0 && r < rows && c >= 0 && c < cols {
				pix[r*cols+c] = value
			}
		}
	}
	return pix
}
