package placement

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/smegmarip/photo-organizer/pkg/utils"
)

// ============================================================================
// Placement Planner
// ============================================================================

// Planner turns classification decisions into collision-free destination
// paths under one output root. Planning is pure: nothing touches the disk,
// so a dry run can print the plan verbatim.
type Planner struct {
	outputDir string

	// dirOwners maps a resolved directory token to the (category, name)
	// identity that claimed it, so the same person always lands in the same
	// directory while two distinct names never share one.
	dirOwners map[string]string
	// fileNames tracks basenames reserved per resolved directory.
	fileNames map[string]map[string]bool
}

// NewPlanner creates a planner rooted at outputDir.
func NewPlanner(outputDir string) *Planner {
	p := &Planner{
		outputDir: outputDir,
		dirOwners: make(map[string]string),
		fileNames: make(map[string]map[string]bool),
	}
	// The fixed buckets own their tokens outright; a person named
	// "Unknown_Faces" must not be filed into the unknown bucket.
	for _, fixed := range []string{DirMultiple, DirUnknown, DirNoFaces} {
		p.dirOwners[fixed] = "/" + fixed
	}
	return p
}

// Plan resolves every decision to a placement, in input order.
func (p *Planner) Plan(decisions []Decision) []Placement {
	placements := make([]Placement, 0, len(decisions))
	for _, d := range decisions {
		placements = append(placements, p.place(d))
	}
	return placements
}

// place resolves a single decision.
func (p *Planner) place(d Decision) Placement {
	dir := p.resolveDir(d)
	base := p.resolveFileName(dir, filepath.Base(d.SourcePath))
	return Placement{
		SourcePath: d.SourcePath,
		Category:   d.Category,
		Name:       d.Name,
		DestDir:    dir,
		DestPath:   filepath.Join(p.outputDir, dir, base),
	}
}

// resolveDir maps the decision onto the layout, suffixing the directory
// token when a different identity already claimed it.
func (p *Planner) resolveDir(d Decision) string {
	switch d.Category {
	case CategorySingle:
		return p.claimDir("", d.Name, string(d.Category)+"/"+d.Name)
	case CategoryMultiple:
		if d.Name == "" {
			return DirMultiple
		}
		return p.claimDir(DirMultiple, d.Name, string(d.Category)+"/"+d.Name)
	case CategoryUnknown:
		return DirUnknown
	default:
		return DirNoFaces
	}
}

// claimDir reserves a sanitized directory token under parent for the given
// identity, reusing a token the same identity already holds.
func (p *Planner) claimDir(parent, name, identity string) string {
	token := utils.SanitizeName(name)
	for candidate, n := token, 2; ; n++ {
		key := filepath.Join(parent, candidate)
		owner, taken := p.dirOwners[key]
		if !taken {
			p.dirOwners[key] = identity
			return key
		}
		if owner == identity {
			return key
		}
		candidate = fmt.Sprintf("%s_%d", token, n)
	}
}

// resolveFileName reserves a collision-free basename within a planned
// directory, suffixing before the extension: img.jpg, img_2.jpg, img_3.jpg.
func (p *Planner) resolveFileName(dir, base string) string {
	names := p.fileNames[dir]
	if names == nil {
		names = make(map[string]bool)
		p.fileNames[dir] = names
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	candidate := base
	for n := 2; names[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
	names[candidate] = true
	return candidate
}
