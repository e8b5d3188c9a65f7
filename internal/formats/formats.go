// Package formats holds what the individual artifact writers share: the
// read-only job input and the unit of work the orchestrator schedules.
package formats

import (
	"sort"
	"time"

	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/fsutil"
	"github.com/banshee-data/cred.convert/internal/timeutil"
)

// Input is the read-only view of a conversion job handed to every writer.
// Frames are corrected and in ascending index order.
type Input struct {
	FS       fsutil.FileSystem
	Frames   []cred.Frame
	Geometry cred.Geometry
	Beam     cred.BeamCenter
	Missing  []int
	Clock    timeutil.Clock
}

// First returns the lowest frame index, or 0 without frames.
func (in Input) First() int {
	if len(in.Frames) == 0 {
		return 0
	}
	return in.Frames[0].Index
}

// Last returns the highest frame index, or 0 without frames.
func (in Input) Last() int {
	if len(in.Frames) == 0 {
		return 0
	}
	return in.Frames[len(in.Frames)-1].Index
}

// Indices lists observed frame indices.
func (in Input) Indices() []int {
	out := make([]int, len(in.Frames))
	for i, f := range in.Frames {
		out[i] = f.Index
	}
	return out
}

// Now is the job timestamp used in generated headers.
func (in Input) Now() time.Time {
	if in.Clock == nil {
		return timeutil.RealClock{}.Now()
	}
	return in.Clock.Now()
}

// Job writes one artifact. Each job owns its file handle; jobs of one
// conversion share no mutable state and may run concurrently.
type Job struct {
	Path string
	Run  func() error
}

// RunAll executes jobs in order, stopping at the first failure, and
// returns the sorted paths that were written.
func RunAll(jobs []Job) ([]string, error) {
	paths := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if err := j.Run(); err != nil {
			sort.Strings(paths)
			return paths, err
		}
		paths = append(paths, j.Path)
	}
	sort.Strings(paths)
	return paths, nil
}
