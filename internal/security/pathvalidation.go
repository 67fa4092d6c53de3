// Package security holds filesystem path checks for CLI inputs.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathWithinDirectory reports whether path resolves to a location inside dir.
// Both paths are made absolute and cleaned first, so relative segments cannot
// disguise the relationship.
func PathWithinDirectory(path, dir string) (bool, error) {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", path, err)
	}
	absDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", dir, err)
	}

	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return false, nil
	}
	return true, nil
}

// ValidateOutputDir rejects an output directory located inside the scene
// root. Reconstruction artifacts written there would be picked up as a rig
// folder by the next scan.
func ValidateOutputDir(outputDir, inputRoot string) error {
	inside, err := PathWithinDirectory(outputDir, inputRoot)
	if err != nil {
		return err
	}
	if inside {
		return fmt.Errorf("output dir %s is inside scene root %s", outputDir, inputRoot)
	}
	return nil
}
