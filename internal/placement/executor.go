package placement

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ============================================================================
// Placement Executor
// ============================================================================

// Failure records one placement that could not be completed.
type Failure struct {
	SourcePath string
	Err        error
}

// Result summarizes an execution.
type Result struct {
	Placed   int
	Failed   int
	Failures []Failure
	// FinalPaths maps each placed source to the destination actually used,
	// which may differ from the plan when the disk already held a file
	// with the planned name.
	FinalPaths map[string]string
	Manifest   *Manifest
}

// Executor performs planned placements against a filesystem.
type Executor struct {
	fs        afero.Fs
	outputDir string
}

// NewExecutor creates an executor writing under outputDir.
func NewExecutor(fs afero.Fs, outputDir string) *Executor {
	return &Executor{fs: fs, outputDir: outputDir}
}

// Execute performs the plan in order. Individual failures are logged and
// counted, never fatal: one unreadable file must not strand the other nine
// hundred. The manifest is written atomically when the loop ends, including
// on cancellation, so everything already placed stays reversible.
func (e *Executor) Execute(ctx context.Context, plan []Placement, mode FileMode, runID string) (*Result, error) {
	result := &Result{
		FinalPaths: make(map[string]string),
		Manifest: &Manifest{
			RunID:      runID,
			Mode:       mode,
			Created:    time.Now(),
			Operations: []Operation{},
		},
	}

	var cancelled error
	for _, pl := range plan {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}

		dest, err := e.placeOne(pl, mode)
		if err != nil {
			log.Warnf("failed to place %s: %v", pl.SourcePath, err)
			result.Failed++
			result.Failures = append(result.Failures, Failure{SourcePath: pl.SourcePath, Err: err})
			continue
		}

		result.Placed++
		result.FinalPaths[pl.SourcePath] = dest
		result.Manifest.Operations = append(result.Manifest.Operations, Operation{
			Source:      pl.SourcePath,
			Destination: dest,
			Category:    pl.Category,
			Label:       pl.Name,
		})
		log.Debugf("placed %s -> %s", pl.SourcePath, dest)
	}

	if err := result.Manifest.Save(e.fs, e.outputDir); err != nil {
		return result, err
	}
	if cancelled != nil {
		return result, cancelled
	}
	return result, nil
}

// placeOne copies or moves a single file, resolving any on-disk name
// collision the planner could not see.
func (e *Executor) placeOne(pl Placement, mode FileMode) (string, error) {
	if err := e.fs.MkdirAll(filepath.Dir(pl.DestPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", pl.DestDir, err)
	}

	dest, err := availablePath(e.fs, pl.DestPath)
	if err != nil {
		return "", err
	}

	if mode == ModeMove {
		if err := moveFile(e.fs, pl.SourcePath, dest); err != nil {
			return "", err
		}
	} else {
		if err := copyFile(e.fs, pl.SourcePath, dest); err != nil {
			return "", err
		}
	}
	return dest, nil
}

// availablePath steps _2, _3, ... suffixes until the path is free on disk.
func availablePath(fs afero.Fs, path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 2; ; n++ {
		exists, err := afero.Exists(fs, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check destination %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
}

// copyFile copies src to dst preserving the modification time, so that
// organized copies still sort naturally in file browsers.
func copyFile(fs afero.Fs, src, dst string) error {
	info, err := fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	in, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", dst, err)
	}

	if err := fs.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
		log.Debugf("could not preserve mtime on %s: %v", dst, err)
	}
	return nil
}

// moveFile renames src to dst, falling back to copy+remove when the rename
// crosses filesystems.
func moveFile(fs afero.Fs, src, dst string) error {
	if err := fs.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(fs, src, dst); err != nil {
		return err
	}
	if err := fs.Remove(src); err != nil {
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}
