// Package roster manages the database of known people: each entry pairs a
// name with the canonical gear description generated from a reference
// photo. Matching in database mode compares photo detections against these
// descriptions.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// ============================================================================
// People Roster
// ============================================================================

// FileName is the roster file, kept in the working directory.
const FileName = "face_database.json"

// DescribeFunc produces the canonical gear description for a reference
// image. The engine supplies one that routes through the analysis cache and
// the vision service.
type DescribeFunc func(ctx context.Context, path string) (string, error)

// Entry is one known person.
type Entry struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ReferencePaths []string  `json:"reference_paths"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// entryFile decodes both the current shape and the legacy single-reference
// shape older tool versions wrote.
type entryFile struct {
	Entry
	LegacyReferenceImage string `json:"reference_image,omitempty"`
	LegacyDescription    string `json:"facial_description,omitempty"`
	LegacyAddedDate      string `json:"added_date,omitempty"`
}

type rosterFile struct {
	People []entryFile `json:"people"`
}

// Stats summarizes roster health for the CLI.
type Stats struct {
	People      int
	WithNotes   int
	MissingRefs int
}

// Issue is one problem found by Validate.
type Issue struct {
	Name    string
	Problem string
}

// Roster is the loaded people database. Not safe for concurrent mutation;
// the CLI drives it from a single goroutine.
type Roster struct {
	fs   afero.Fs
	path string

	people []Entry
}

// Load opens the roster at path, returning an empty roster when the file
// does not exist yet.
func Load(fs afero.Fs, path string) (*Roster, error) {
	r := &Roster{fs: fs, path: path}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to read roster %q: %w", path, err)
	}

	var file rosterFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roster %q: %w", path, err)
	}

	r.people = make([]Entry, 0, len(file.People))
	for _, p := range file.People {
		r.people = append(r.people, normalizeEntry(p))
	}
	log.Debugf("loaded roster with %d people from %s", len(r.people), path)
	return r, nil
}

// normalizeEntry folds legacy field names into the current shape.
func normalizeEntry(p entryFile) Entry {
	entry := p.Entry
	if entry.Description == "" && p.LegacyDescription != "" {
		entry.Description = p.LegacyDescription
	}
	if len(entry.ReferencePaths) == 0 && p.LegacyReferenceImage != "" {
		entry.ReferencePaths = []string{p.LegacyReferenceImage}
	}
	if entry.CreatedAt.IsZero() && p.LegacyAddedDate != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, p.LegacyAddedDate); err == nil {
				entry.CreatedAt = t
				break
			}
		}
	}
	return entry
}

// Save writes the roster via a temp file and rename.
func (r *Roster) Save() error {
	people := make([]entryFile, 0, len(r.people))
	for _, p := range r.people {
		people = append(people, entryFile{Entry: p})
	}
	raw, err := json.MarshalIndent(rosterFile{People: people}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := r.fs.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create roster directory: %w", err)
	}
	if err := afero.WriteFile(r.fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write roster: %w", err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace roster: %w", err)
	}
	return nil
}

// Add registers a new person: the reference image is described through the
// vision service and the roster is persisted. Names are unique
// case-insensitively.
func (r *Roster) Add(ctx context.Context, name, referencePath, notes string, describe DescribeFunc) (*Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("person name must not be empty")
	}
	if _, ok := r.Get(name); ok {
		return nil, fmt.Errorf("person %q already exists", name)
	}
	if ok, err := afero.Exists(r.fs, referencePath); err != nil || !ok {
		return nil, fmt.Errorf("reference image %q does not exist", referencePath)
	}

	description, err := describe(ctx, referencePath)
	if err != nil {
		return nil, fmt.Errorf("failed to describe reference image: %w", err)
	}

	entry := Entry{
		Name:           name,
		Description:    description,
		ReferencePaths: []string{referencePath},
		Notes:          notes,
		CreatedAt:      time.Now(),
	}
	r.people = append(r.people, entry)

	if err := r.Save(); err != nil {
		return nil, err
	}
	log.Infof("added %q to roster (%d people)", name, len(r.people))
	return &entry, nil
}

// Remove deletes a person by name (case-insensitive) and persists.
func (r *Roster) Remove(name string) error {
	for i, p := range r.people {
		if strings.EqualFold(p.Name, name) {
			r.people = append(r.people[:i], r.people[i+1:]...)
			if err := r.Save(); err != nil {
				return err
			}
			log.Infof("removed %q from roster (%d people)", p.Name, len(r.people))
			return nil
		}
	}
	return fmt.Errorf("person %q not found", name)
}

// Get returns the entry for name, matched case-insensitively.
func (r *Roster) Get(name string) (*Entry, bool) {
	for i, p := range r.people {
		if strings.EqualFold(p.Name, name) {
			return &r.people[i], true
		}
	}
	return nil, false
}

// Entries returns the people in insertion order.
func (r *Roster) Entries() []Entry {
	entries := make([]Entry, len(r.people))
	copy(entries, r.people)
	return entries
}

// Len returns the number of people.
func (r *Roster) Len() int {
	return len(r.people)
}

// Stats summarizes the roster.
func (r *Roster) Stats() Stats {
	s := Stats{People: len(r.people)}
	for _, p := range r.people {
		if strings.TrimSpace(p.Notes) != "" {
			s.WithNotes++
		}
		for _, ref := range p.ReferencePaths {
			if ok, err := afero.Exists(r.fs, ref); err != nil || !ok {
				s.MissingRefs++
				break
			}
		}
	}
	return s
}

// Validate reports entries that cannot participate in matching: missing
// descriptions or vanished reference files.
func (r *Roster) Validate() []Issue {
	var issues []Issue
	for _, p := range r.people {
		if strings.TrimSpace(p.Description) == "" {
			issues = append(issues, Issue{Name: p.Name, Problem: "no gear description"})
		}
		for _, ref := range p.ReferencePaths {
			if ok, err := afero.Exists(r.fs, ref); err != nil || !ok {
				issues = append(issues, Issue{
					Name:    p.Name,
					Problem: fmt.Sprintf("reference image missing: %s", ref),
				})
			}
		}
	}
	return issues
}
