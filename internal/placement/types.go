// Package placement maps classified photos onto the output directory layout
// and performs the file operations: planning destinations, executing copies
// or moves, recording the reversal manifest, and undoing a previous run.
package placement

import "errors"

// ============================================================================
// Placement Types
// ============================================================================

// Category is the routing class of a photo.
type Category string

const (
	CategorySingle   Category = "single_subject"
	CategoryMultiple Category = "multiple_subjects"
	CategoryUnknown  Category = "unknown_subjects"
	CategoryNoFaces  Category = "no_faces"
)

// Fixed directory names under the output root. Single-subject photos go
// into a directory named after the person or cluster instead.
const (
	DirMultiple = "Multiple_People"
	DirUnknown  = "Unknown_Faces"
	DirNoFaces  = "No_Faces_Detected"
)

// FileMode selects how photos reach their destination.
type FileMode string

const (
	ModeCopy FileMode = "copy"
	ModeMove FileMode = "move"
)

// ErrManifestMissing means undo was requested for a directory that has no
// reversal manifest, either because nothing was organized there or because
// a previous undo already completed.
var ErrManifestMissing = errors.New("no reversal manifest found")

// Decision is the classification outcome for one photo, before any
// name collision handling.
type Decision struct {
	SourcePath string
	Category   Category
	// Name is the destination grouping token: the person or cluster name
	// for single-subject photos, the joined name list for multi-subject
	// photos in database mode. Empty for the fixed buckets.
	Name string
}

// Placement is one planned file operation with its collision-resolved
// destination.
type Placement struct {
	SourcePath string
	Category   Category
	Name       string
	// DestDir is relative to the output root; DestPath is absolute.
	DestDir  string
	DestPath string
}
