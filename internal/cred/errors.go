package cred

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySeries is returned when a series is built from no frames.
	ErrEmptySeries = errors.New("frame series is empty")

	// ErrDuplicateIndex is returned when two frames share an index.
	ErrDuplicateIndex = errors.New("duplicate frame index")

	// ErrShapeMismatch is returned when two images that must share a shape do not.
	ErrShapeMismatch = errors.New("image shape mismatch")

	// ErrUndefinedDistance is returned when the camera length cannot be
	// derived because the wavelength or the reciprocal pixel size is zero or
	// not finite.
	ErrUndefinedDistance = errors.New("detector distance is undefined")

	// ErrNoBeamFound is returned when no frame carries a primary-beam pixel
	// above the estimation threshold.
	ErrNoBeamFound = errors.New("no frame contains a primary beam above threshold")
)

// DataIntegrityError reports centroid data that cannot be reshaped into
// (row, col) pairs after NaN filtering.
type DataIntegrityError struct {
	Values    int // finite centroid components remaining after filtering
	Dimension int // expected coordinate dimensionality
	Frames    int // frames sampled
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("beam centroid data is not rectangular: %d finite values from %d frames is not a multiple of %d",
		e.Values, e.Frames, e.Dimension)
}

// ShapeError wraps ErrShapeMismatch with the offending shapes.
func ShapeError(what string, wantRows, wantCols, gotRows, gotCols int) error {
	return fmt.Errorf("%s: want %dx%d, got %dx%d: %w", what, wantRows, wantCols, gotRows, gotCols, ErrShapeMismatch)
}
