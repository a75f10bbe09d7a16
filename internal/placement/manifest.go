package placement

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// ============================================================================
// Reversal Manifest
// ============================================================================

// ManifestName is the manifest file written inside the output root. It is
// what makes a run reversible; losing it means undo can no longer tell
// which files the organizer created.
const ManifestName = ".original_paths.json"

// Operation records one completed file placement.
type Operation struct {
	Source      string   `json:"source"`
	Destination string   `json:"destination"`
	Category    Category `json:"category"`
	Label       string   `json:"label,omitempty"`
}

// Manifest is the reversal record for the most recent run into an output
// directory. Each run replaces it, so undo always unwinds the latest run.
type Manifest struct {
	RunID      string      `json:"run_id"`
	Mode       FileMode    `json:"mode"`
	Created    time.Time   `json:"created"`
	Operations []Operation `json:"operations"`
}

// manifestPath returns the manifest location for an output root.
func manifestPath(outputDir string) string {
	return filepath.Join(outputDir, ManifestName)
}

// LoadManifest reads the manifest of a previous run. A missing file returns
// ErrManifestMissing.
func LoadManifest(fs afero.Fs, outputDir string) (*Manifest, error) {
	raw, err := afero.ReadFile(fs, manifestPath(outputDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrManifestMissing, outputDir)
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

// Save atomically replaces the on-disk manifest.
func (m *Manifest) Save(fs afero.Fs, outputDir string) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := manifestPath(outputDir)
	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// RemoveManifest deletes the manifest file after a clean undo.
func RemoveManifest(fs afero.Fs, outputDir string) error {
	if err := fs.Remove(manifestPath(outputDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove manifest: %w", err)
	}
	return nil
}
