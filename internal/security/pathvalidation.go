// Package security guards where conversion artifacts may be written.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside its root.
var ErrPathEscape = errors.New("path escapes output directory")

// canonical resolves symlinks in the longest existing prefix of path so a
// not-yet-created artifact below a symlinked directory is still caught.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if filepath.Dir(dir) == dir {
			return abs, nil
		}
	}
}

// ValidatePathWithinDirectory reports ErrPathEscape when path, after
// cleaning and symlink resolution, is not root or below it. root need not
// exist yet.
func ValidatePathWithinDirectory(path, root string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	r, err := canonical(root)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(r, p)
	if err != nil {
		return fmt.Errorf("%s: %w", path, ErrPathEscape)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%s is outside %s: %w", path, root, ErrPathEscape)
	}
	return nil
}

// ValidateOutputLayout checks every configured sub-directory against root.
func ValidateOutputLayout(root string, subdirs ...string) error {
	for _, sub := range subdirs {
		if filepath.IsAbs(sub) {
			return fmt.Errorf("%s must be relative: %w", sub, ErrPathEscape)
		}
		if err := ValidatePathWithinDirectory(filepath.Join(root, sub), root); err != nil {
			return err
		}
	}
	return nil
}
