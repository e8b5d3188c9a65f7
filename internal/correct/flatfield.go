package correct

import (
	"math"

	"github.com/banshee-data/cred.convert/internal/cred"
)

// Flatfield is a per-pixel gain reference with an optional dark reference.
type Flatfield struct {
	Flat cred.Image
	Dark *cred.Image
}

// Apply normalises img by the flatfield gain:
//
//	out = img * mean(flat) / flat
//	out = (img - dark) * mean(flat-dark) / (flat-dark)   with a darkfield
//
// Results are truncated toward zero. Pixels whose reference is not positive
// become 0.
func (ff Flatfield) Apply(img cred.Image) (cred.Image, error) {
	if !img.SameShape(ff.Flat) {
		return cred.Image{}, cred.ShapeError("flatfield", img.Rows, img.Cols, ff.Flat.Rows, ff.Flat.Cols)
	}
	ref := ff.Flat
	if ff.Dark != nil {
		if !img.SameShape(*ff.Dark) {
			return cred.Image{}, cred.ShapeError("darkfield", img.Rows, img.Cols, ff.Dark.Rows, ff.Dark.Cols)
		}
		ref = ff.Flat.Clone()
		for i := range ref.Pix {
			ref.Pix[i] -= ff.Dark.Pix[i]
		}
	}

	mean := ref.Mean()
	out := cred.NewImage(img.Rows, img.Cols)
	for i, v := range img.Pix {
		r := ref.Pix[i]
		if r <= 0 {
			continue
		}
		if ff.Dark != nil {
			v -= ff.Dark.Pix[i]
		}
		out.Pix[i] = math.Trunc(v * mean / r)
	}
	return out, nil
}

// Repaired returns a copy of ff with dead repaired in the flat reference
// and, when set, the dark reference. Apply on the result sees no zero
// reference at a repaired pixel, and mean(flat) is not pulled down by it.
func (ff Flatfield) Repaired(dead []DeadPixel) *Flatfield {
	out := &Flatfield{Flat: RemoveDeadPixels(ff.Flat, dead)}
	if ff.Dark != nil {
		dark := RemoveDeadPixels(*ff.Dark, dead)
		out.Dark = &dark
	}
	return out
}
