// Package sysutil collects the small filesystem, globbing, and
// socket-lifecycle helpers shared by the boundary-catalog loader and
// the coordinator's local listeners.
package sysutil

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// DiscoverCatalogs expands pattern (a doublestar glob, so "**" is
// supported for recursive per-job directories) and returns the
// deduplicated, absolute paths of the regular files it matches, in
// sorted order.
func DiscoverCatalogs(pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		pattern = filepath.Join(wd, pattern)
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(matches))
	var result []string
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		result = append(result, abs)
	}
	sort.Strings(result)
	return result, nil
}
