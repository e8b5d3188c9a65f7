package convert

import (
	"errors"
	"fmt"
	"strings"
)

// Output names one artifact family a conversion can produce.
type Output string

const (
	OutputMRC         Output = "mrc"
	OutputSMV         Output = "smv"
	OutputED3D        Output = "ed3d"
	OutputXDS         Output = "xds"
	OutputPETS        Output = "pets"
	OutputTIFF        Output = "tiff"
	OutputDIALS       Output = "dials"
	OutputREDp        Output = "redp"
	OutputBeamCenters Output = "beam_centers"
)

// ErrUnknownOutput is returned for an output name ParseOutputs does not know.
var ErrUnknownOutput = errors.New("unknown output")

var allOutputs = []Output{
	OutputMRC, OutputSMV, OutputTIFF, OutputED3D, OutputXDS,
	OutputPETS, OutputDIALS, OutputREDp, OutputBeamCenters,
}

// AllOutputs lists every output in dispatch order.
func AllOutputs() []Output { return append([]Output(nil), allOutputs...) }

// ParseOutputs maps configured names to outputs. Names are matched
// case-insensitively and repeated names are kept once; no names selects
// every output.
func ParseOutputs(names []string) ([]Output, error) {
	if len(names) == 0 {
		return AllOutputs(), nil
	}
	seen := make(map[Output]bool, len(names))
	out := make([]Output, 0, len(names))
	for _, name := range names {
		o := Output(strings.ToLower(strings.TrimSpace(name)))
		if !o.valid() {
			return nil, fmt.Errorf("%q: %w", name, ErrUnknownOutput)
		}
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out, nil
}

func (o Output) valid() bool {
	for _, known := range allOutputs {
		if o == known {
			return true
		}
	}
	return false
}
