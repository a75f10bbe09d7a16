package imageprep

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipNames are junk files that commonly sit next to photos.
var skipNames = map[string]bool{
	"Thumbs.db":   true,
	"desktop.ini": true,
}

// IsSupported reports whether the file extension belongs to a format the
// decode stack can open.
func IsSupported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// skippable reports whether a directory entry name should be ignored
// outright: dotfiles, editor temp files, and OS junk.
func skippable(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~") {
		return true
	}
	return skipNames[name]
}

// ListImages returns the absolute paths of the supported image files under
// root, sorted lexicographically. The sort order is what makes runs over
// the same directory deterministic: clustering visits photos in this order.
// Hidden files and hidden directories are skipped.
func ListImages(root string, recursive bool) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory %q: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", root)
	}

	var paths []string
	if recursive {
		err = filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() {
				if path != absRoot && skippable(entry.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !skippable(entry.Name()) && IsSupported(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk directory %q: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(absRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %q: %w", root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || skippable(entry.Name()) || !IsSupported(entry.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(absRoot, entry.Name()))
		}
	}

	sort.Strings(paths)
	return paths, nil
}
