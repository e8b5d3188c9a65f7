package correct

import "github.com/banshee-data/cred.convert/internal/cred"

// DeadPixel is a (row, col) detector coordinate flagged as defective.
type DeadPixel struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

// RemoveDeadPixels replaces every flagged pixel by the mean of its 3x3
// neighbourhood (clipped at the borders). Pixels are repaired in order, so a
// later repair sees earlier ones. Coordinates outside the image are ignored.
func RemoveDeadPixels(img cred.Image, dead []DeadPixel) cred.Image {
	out := img.Clone()
	for _, p := range dead {
		if p.Row < 0 || p.Row >= img.Rows || p.Col < 0 || p.Col >= img.Cols {
			continue
		}
		var sum float64
		var n int
		for r := max(p.Row-1, 0); r <= min(p.Row+1, img.Rows-1); r++ {
			for c := max(p.Col-1, 0); c <= min(p.Col+1, img.Cols-1); c++ {
				sum += out.At(r, c)
				n++
			}
		}
		out.Set(p.Row, p.Col, sum/float64(n))
	}
	return out
}

// DetectDeadPixels flags every pixel of a flatfield that reads zero.
func DetectDeadPixels(flat cred.Image) []DeadPixel {
	var dead []DeadPixel
	for r := 0; r < flat.Rows; r++ {
		for c := 0; c < flat.Cols; c++ {
			if flat.At(r, c) == 0 {
				dead = append(dead, DeadPixel{Row: r, Col: c})
			}
		}
	}
	return dead
}
