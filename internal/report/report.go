// Package report writes the per-run organization log: what was analyzed,
// where each photo went, and what failed. The log is the operator's record
// of a run; the manifest next to it is the machine's.
package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// ============================================================================
// Run Report
// ============================================================================

// FileName is the report file written inside the output root.
const FileName = "organization_log.json"

// ConfigSnapshot records the settings that shaped the run, so an operator
// reading the log later can tell why photos landed where they did.
type ConfigSnapshot struct {
	Mode                string  `json:"mode"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	TExactSeconds       int     `json:"t_exact_seconds"`
	THighSeconds        int     `json:"t_high_seconds"`
	Provider            string  `json:"provider"`
	Model               string  `json:"model"`
	CopyOrMove          string  `json:"copy_or_move"`
	DryRun              bool    `json:"dry_run"`
}

// Statistics is the run's counter block.
type Statistics struct {
	ImagesTotal int   `json:"images_total"`
	Analyzed    int   `json:"analyzed"`
	CacheHits   int   `json:"cache_hits"`
	VisionCalls int64 `json:"vision_calls"`
	Placed      int   `json:"placed"`
	Failed      int   `json:"failed"`
	Skipped     int   `json:"skipped"`
}

// ClusterSummary describes one discovered cluster (auto-cluster mode only).
type ClusterSummary struct {
	Name string `json:"name"`
	Size int    `json:"size"`
	Bib  string `json:"bib,omitempty"`
}

// ImageOutcome records where one photo ended up.
type ImageOutcome struct {
	Path        string `json:"path"`
	Outcome     string `json:"outcome"`
	Destination string `json:"destination,omitempty"`
	Error       string `json:"error,omitempty"`
}

// VisionError records one non-fatal vision service failure.
type VisionError struct {
	Path  string `json:"path"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Report is the full run log.
type Report struct {
	RunID        string           `json:"run_id"`
	Mode         string           `json:"mode"`
	CreatedAt    time.Time        `json:"created_at"`
	Config       ConfigSnapshot   `json:"config"`
	Statistics   Statistics       `json:"statistics"`
	Categories   map[string]int   `json:"categories"`
	Clusters     []ClusterSummary `json:"clusters,omitempty"`
	Images       []ImageOutcome   `json:"images"`
	VisionErrors []VisionError    `json:"vision_errors,omitempty"`
}

// Write stores the report in the output directory.
func Write(fs afero.Fs, outputDir string, r *Report) error {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	path := filepath.Join(outputDir, FileName)
	if err := fs.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
