package placement

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ============================================================================
// Undo
// ============================================================================

// UndoResult summarizes a reversal.
type UndoResult struct {
	Restored   int
	Failed     int
	DirsPruned int
}

// Undo reverses the run recorded in the output directory's manifest:
// move-mode placements go back to their original paths, copy-mode
// placements are deleted (the originals were never touched). Entries are
// walked newest-first so collision-suffixed files unwind cleanly. A clean
// pass removes the manifest; a partial pass rewrites it with only the
// entries that still need reversing.
func Undo(fs afero.Fs, outputDir string) (*UndoResult, error) {
	manifest, err := LoadManifest(fs, outputDir)
	if err != nil {
		return nil, err
	}

	result := &UndoResult{}
	var remaining []Operation

	for i := len(manifest.Operations) - 1; i >= 0; i-- {
		op := manifest.Operations[i]
		if err := undoOne(fs, manifest.Mode, op); err != nil {
			log.Warnf("failed to undo %s: %v", op.Destination, err)
			result.Failed++
			remaining = append(remaining, op)
			continue
		}
		result.Restored++
	}

	result.DirsPruned = pruneEmptyDirs(fs, outputDir)

	if len(remaining) == 0 {
		if err := RemoveManifest(fs, outputDir); err != nil {
			return result, err
		}
		log.Infof("undo complete: %d restored, %d directories pruned", result.Restored, result.DirsPruned)
		return result, nil
	}

	// Keep the failures reversible: restore original order and rewrite.
	for left, right := 0, len(remaining)-1; left < right; left, right = left+1, right-1 {
		remaining[left], remaining[right] = remaining[right], remaining[left]
	}
	manifest.Operations = remaining
	if err := manifest.Save(fs, outputDir); err != nil {
		return result, err
	}
	return result, fmt.Errorf("undo incomplete: %d of %d operations failed", result.Failed, result.Failed+result.Restored)
}

// undoOne reverses a single operation.
func undoOne(fs afero.Fs, mode FileMode, op Operation) error {
	if mode == ModeCopy {
		if err := fs.Remove(op.Destination); err != nil {
			if os.IsNotExist(err) {
				log.Debugf("already gone: %s", op.Destination)
				return nil
			}
			return fmt.Errorf("failed to remove %s: %w", op.Destination, err)
		}
		return nil
	}

	if err := fs.MkdirAll(filepath.Dir(op.Source), 0o755); err != nil {
		return fmt.Errorf("failed to recreate %s: %w", filepath.Dir(op.Source), err)
	}
	if err := moveFile(fs, op.Destination, op.Source); err != nil {
		return fmt.Errorf("failed to move back to %s: %w", op.Source, err)
	}
	return nil
}

// pruneEmptyDirs removes directories under root left empty by the undo,
// deepest first. The root itself stays.
func pruneEmptyDirs(fs afero.Fs, root string) int {
	var dirs []string
	_ = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable entries are simply not pruned.
			return nil
		}
		if info.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})

	// Deepest first, so children empty out their parents.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	pruned := 0
	for _, dir := range dirs {
		entries, err := afero.ReadDir(fs, dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := fs.Remove(dir); err == nil {
			pruned++
			log.Debugf("pruned empty directory %s", dir)
		}
	}
	return pruned
}
