// Package match decides who is in a photo: each detection is scored against
// every roster entry and the photo as a whole is classified into a
// placement category.
package match

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/smegmarip/photo-organizer/internal/placement"
	"github.com/smegmarip/photo-organizer/internal/roster"
	"github.com/smegmarip/photo-organizer/internal/vision"
	"github.com/smegmarip/photo-organizer/pkg/utils"
)

// ============================================================================
// Roster Matching
// ============================================================================

// Comparer scores the similarity of two gear descriptions.
type Comparer interface {
	CompareTwoDescriptions(ctx context.Context, description1, description2 string) (vision.Comparison, error)
}

// Match is the identification result for one detection. Name is empty when
// no roster entry reached the threshold.
type Match struct {
	Name       string
	Confidence float64
}

// Matched reports whether the detection was identified.
func (m Match) Matched() bool {
	return m.Name != ""
}

// Matcher identifies detections against a roster.
type Matcher struct {
	comparer  Comparer
	threshold float64
}

// NewMatcher creates a matcher that accepts scores at or above threshold.
func NewMatcher(comparer Comparer, threshold float64) *Matcher {
	return &Matcher{comparer: comparer, threshold: threshold}
}

// Identify scores one detection against every roster entry and returns the
// best match at or above the threshold. A fatal vision error aborts; a
// transient one scores that entry 0.0 and the sweep continues, so one
// hiccup cannot misfile a photo under the wrong name.
func (m *Matcher) Identify(ctx context.Context, detection vision.SubjectDetection, entries []roster.Entry) (Match, error) {
	best := Match{}
	for _, entry := range entries {
		if entry.Description == "" {
			continue
		}
		comparison, err := m.comparer.CompareTwoDescriptions(ctx, detection.OutfitDescription, entry.Description)
		if err != nil {
			if vision.IsFatal(err) {
				return Match{}, err
			}
			log.Warnf("comparison against %q failed, scoring 0.0: %v", entry.Name, err)
			continue
		}
		log.Debugf("match %q scored %.2f (%s)", entry.Name, comparison.Score,
			utils.TruncateString(comparison.Reason, 80))
		if comparison.Score > best.Confidence {
			best = Match{Name: entry.Name, Confidence: comparison.Score}
		}
	}

	if best.Confidence < m.threshold {
		return Match{Confidence: best.Confidence}, nil
	}
	return best, nil
}

// IdentifyAll identifies every detection in a photo.
func (m *Matcher) IdentifyAll(ctx context.Context, detections []vision.SubjectDetection, entries []roster.Entry) ([]Match, error) {
	matches := make([]Match, 0, len(detections))
	for _, d := range detections {
		match, err := m.Identify(ctx, d, entries)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// Classify routes a photo from its per-detection matches:
//
//	0 detections            -> no faces
//	1 detection, matched    -> single subject, the person's name
//	1 detection, unmatched  -> unknown subjects
//	2+ detections           -> multiple subjects; the name joins the matched
//	                           names with one "Unknown" per unmatched
//	                           detection, sorted for determinism
func Classify(matches []Match) placement.Decision {
	switch {
	case len(matches) == 0:
		return placement.Decision{Category: placement.CategoryNoFaces}
	case len(matches) == 1:
		if matches[0].Matched() {
			return placement.Decision{Category: placement.CategorySingle, Name: matches[0].Name}
		}
		return placement.Decision{Category: placement.CategoryUnknown}
	default:
		return placement.Decision{Category: placement.CategoryMultiple, Name: groupName(matches)}
	}
}

// groupName builds the multi-subject directory token: matched names
// deduplicated, one "Unknown" per unmatched detection, sorted by JoinNames.
func groupName(matches []Match) string {
	seen := make(map[string]bool)
	var tokens []string
	for _, m := range matches {
		if !m.Matched() {
			tokens = append(tokens, "Unknown")
			continue
		}
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		tokens = append(tokens, m.Name)
	}
	return utils.JoinNames(tokens)
}

// Describe renders a match for logs.
func (m Match) String() string {
	if !m.Matched() {
		return fmt.Sprintf("unmatched (best %.2f)", m.Confidence)
	}
	return fmt.Sprintf("%s (%.2f)", m.Name, m.Confidence)
}
