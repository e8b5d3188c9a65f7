package cred

import (
	"fmt"
	"sort"

	"github.com/banshee-data/cred.convert/internal/monitoring"
)

// Frame is one detector readout of a rotation series.
type Frame struct {
	Index  int
	Image  Image
	Header map[string]any
}

// NewFrame builds a frame from raw uint16 counts.
func NewFrame(index, rows, cols int, pix []uint16, header map[string]any) (Frame, error) {
	im, err := ImageFromUint16(rows, cols, pix)
	if err != nil {
		return Frame{}, fmt.Errorf("frame %d: %w", index, err)
	}
	return Frame{Index: index, Image: im, Header: header}, nil
}

// Series is a collection of frames kept in ascending index order.
// Indices are unique but need not be contiguous.
type Series struct {
	frames []Frame
}

// NewSeries validates and sorts frames. All frames must share one shape.
func NewSeries(frames []Frame) (*Series, error) {
	if len(frames) == 0 {
		return nil, ErrEmptySeries
	}
	sorted := make([]Frame, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	rows, cols := sorted[0].Image.Rows, sorted[0].Image.Cols
	for i, f := range sorted {
		if i > 0 && f.Index == sorted[i-1].Index {
			return nil, fmt.Errorf("index %d: %w", f.Index, ErrDuplicateIndex)
		}
		if f.Image.Rows != rows || f.Image.Cols != cols {
			return nil, ShapeError(fmt.Sprintf("frame %d", f.Index), rows, cols, f.Image.Rows, f.Image.Cols)
		}
	}
	return &Series{frames: sorted}, nil
}

// Frames returns the frames in ascending index order. Callers must not
// mutate the returned slice.
func (s *Series) Frames() []Frame { return s.frames }

// Len is the number of observed frames.
func (s *Series) Len() int { return len(s.frames) }

// Shape returns the common frame dimensions.
func (s *Series) Shape() (rows, cols int) {
	return s.frames[0].Image.Rows, s.frames[0].Image.Cols
}

// First and Last return the lowest and highest observed index.
func (s *Series) First() int { return s.frames[0].Index }
func (s *Series) Last() int  { return s.frames[len(s.frames)-1].Index }

// ObservedRange lists the indices present, ascending.
func (s *Series) ObservedRange() []int {
	out := make([]int, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Index
	}
	return out
}

// CompleteRange lists every index from First to Last inclusive.
func (s *Series) CompleteRange() []int {
	out := make([]int, 0, s.Last()-s.First()+1)
	for i := s.First(); i <= s.Last(); i++ {
		out = append(out, i)
	}
	return out
}

// MissingRange lists indices in CompleteRange that were not observed.
func (s *Series) MissingRange() []int {
	var missing []int
	next := s.First()
	for _, f := range s.frames {
		for ; next < f.Index; next++ {
			missing = append(missing, next)
		}
		next = f.Index + 1
	}
	return missing
}

// ReportGaps logs missing indices and returns them. Gaps never abort a job.
func (s *Series) ReportGaps() []int {
	missing := s.MissingRange()
	if len(missing) > 0 {
		monitoring.Warnf("series %d..%d is missing %d frame(s): %v", s.First(), s.Last(), len(missing), Subranges(missing))
	}
	return missing
}

// Subranges groups ascending indices into contiguous inclusive [first, last]
// runs, e.g. [1 2 3 5 7 8] -> [[1 3] [5 5] [7 8]].
func Subranges(indices []int) [][2]int {
	if len(indices) == 0 {
		return nil
	}
	var out [][2]int
	start, prev := indices[0], indices[0]
	for _, i := range indices[1:] {
		if i == prev+1 {
			prev = i
			continue
		}
		out = append(out, [2]int{start, prev})
		start, prev = i, i
	}
	return append(out, [2]int{start, prev})
}
