package correct

import (
	"fmt"

	"github.com/banshee-data/cred.convert/internal/cred"
)

// Corrector applies the per-frame correction chain. The zero value passes
// frames through unchanged.
type Corrector struct {
	// Flatfield is optional; nil skips gain normalisation.
	Flatfield *Flatfield
	// DeadPixels are repaired before the flatfield division.
	DeadPixels []DeadPixel
}

// Distortion anchors a distortion removal at a detector position.
type Distortion struct {
	Params cred.DistortionParams
	Center cred.Point
}

// Correct returns the corrected image of frame: dead pixels, then flatfield,
// then (when d is non-nil) ellipse-to-circle resampling about d.Center.
func (c Corrector) Correct(frame cred.Frame, d *Distortion) (cred.Image, error) {
	img := frame.Image.Clone()
	if len(c.DeadPixels) > 0 {
		img = RemoveDeadPixels(img, c.DeadPixels)
	}
	if c.Flatfield != nil {
		var err error
		if img, err = c.Flatfield.Apply(img); err != nil {
			return cred.Image{}, fmt.Errorf("frame %d: %w", frame.Index, err)
		}
	}
	if d != nil && d.Params.Stretch != 0 {
		var err error
		if img, err = RemoveDistortion(img, d.Params, d.Center); err != nil {
			return cred.Image{}, fmt.Errorf("frame %d: %w", frame.Index, err)
		}
	}
	return img, nil
}
