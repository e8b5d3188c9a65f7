package main

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/banshee-data/cred.convert/internal/correct"
	"github.com/banshee-data/cred.convert/internal/cred"
	"github.com/banshee-data/cred.convert/internal/formats/tiffout"
	"github.com/banshee-data/cred.convert/internal/fsutil"
)

// frameName matches stored frames such as 00012.tiff or frame_12.tif; the
// trailing number is the frame index.
var frameName = regexp.MustCompile(`(\d+)\.tiff?$`)

// readFrames decodes every indexed TIFF in dir. Files without a trailing
// number are skipped.
func readFrames(fsys fsutil.FileSystem, dir string) ([]cred.Frame, error) {
	names, err := fsys.List(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var frames []cred.Frame
	for _, name := range names {
		m := frameName.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		img, err := tiffout.ReadImage(fsys, filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		frames = append(frames, cred.Frame{Index: index, Image: img})
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames in %s: %w", dir, cred.ErrEmptySeries)
	}
	return frames, nil
}

// readFlatfield loads the gain reference and optional dark reference.
// An empty flat path returns nil.
func readFlatfield(fsys fsutil.FileSystem, flatPath, darkPath string) (*correct.Flatfield, error) {
	if flatPath == "" {
		return nil, nil
	}
	flat, err := tiffout.ReadImage(fsys, flatPath)
	if err != nil {
		return nil, fmt.Errorf("flatfield: %w", err)
	}
	ff := &correct.Flatfield{Flat: flat}
	if darkPath != "" {
		dark, err := tiffout.ReadImage(fsys, darkPath)
		if err != nil {
			return nil, fmt.Errorf("darkfield: %w", err)
		}
		ff.Dark = &dark
	}
	return ff, nil
}
