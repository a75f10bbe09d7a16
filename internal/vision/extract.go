package vision

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ============================================================================
// Response Extraction
// ============================================================================
//
// Models are instructed to answer with bare JSON, but in practice wrap it in
// fenced code blocks or prose. Each parser below walks a ladder of
// strategies, from strict to forgiving, and only fails when none apply.
// ============================================================================

var (
	fencedBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")
	similarityRegex  = regexp.MustCompile(`"similarity"\s*:\s*([0-9.]+)`)
	bareScoreRegex   = regexp.MustCompile(`\b(0?\.\d+|1\.0+|[01])\b`)
)

// stripFences removes a surrounding markdown code block, if any.
func stripFences(text string) string {
	if match := fencedBlockRegex.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(text)
}

// balancedRegion returns the first balanced region of text delimited by the
// open and close bytes, e.g. the first complete {...} object.
func balancedRegion(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start == -1 {
		return "", false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// parseDetections decodes a detect-all-subjects response. Both the bare
// array form and the {"outfits": []} envelope are accepted; an empty list
// is a valid result meaning no people were found.
func parseDetections(text string) ([]SubjectDetection, error) {
	cleaned := stripFences(text)

	// Strategy 1: direct parse of the array form
	var detections []SubjectDetection
	if err := json.Unmarshal([]byte(cleaned), &detections); err == nil {
		return pruneDetections(detections), nil
	}

	// Strategy 2: envelope form
	var envelope detectEnvelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err == nil && envelope.Outfits != nil {
		return pruneDetections(envelope.Outfits), nil
	}

	// Strategy 3: first balanced array embedded in prose
	if region, ok := balancedRegion(cleaned, '[', ']'); ok {
		if err := json.Unmarshal([]byte(region), &detections); err == nil {
			return pruneDetections(detections), nil
		}
	}

	// Strategy 4: first balanced object embedded in prose
	if region, ok := balancedRegion(cleaned, '{', '}'); ok {
		if err := json.Unmarshal([]byte(region), &envelope); err == nil && envelope.Outfits != nil {
			return pruneDetections(envelope.Outfits), nil
		}
	}

	// Some models answer the no-faces case with a bare sentinel.
	if strings.Contains(text, "NO_FACES_DETECTED") {
		return []SubjectDetection{}, nil
	}

	return nil, fmt.Errorf("could not extract detections from response: %q", truncateForError(text))
}

// pruneDetections drops entries without an outfit description; the
// description is the comparator input and a detection without one cannot
// participate in matching or clustering.
func pruneDetections(detections []SubjectDetection) []SubjectDetection {
	kept := make([]SubjectDetection, 0, len(detections))
	for _, d := range detections {
		if strings.TrimSpace(d.OutfitDescription) == "" {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// parseComparison decodes a compare-two-descriptions response. The ladder
// ends with a bare-number fallback because a score is recoverable even from
// a model that ignored the JSON instruction entirely.
func parseComparison(text string) (Comparison, error) {
	cleaned := stripFences(text)

	// Strategy 1: direct parse
	var comparison Comparison
	if err := json.Unmarshal([]byte(cleaned), &comparison); err == nil && validScore(comparison.Score) {
		return clampComparison(comparison), nil
	}

	// Strategy 2: first balanced object embedded in prose
	if region, ok := balancedRegion(cleaned, '{', '}'); ok {
		if err := json.Unmarshal([]byte(region), &comparison); err == nil && validScore(comparison.Score) {
			return clampComparison(comparison), nil
		}
	}

	// Strategy 3: "similarity": X.XX pattern
	if match := similarityRegex.FindStringSubmatch(text); match != nil {
		if score, err := strconv.ParseFloat(match[1], 64); err == nil && validScore(score) {
			return Comparison{Score: score}, nil
		}
	}

	// Strategy 4: any bare decimal in [0, 1]
	if match := bareScoreRegex.FindStringSubmatch(text); match != nil {
		if score, err := strconv.ParseFloat(match[1], 64); err == nil && validScore(score) {
			return Comparison{Score: score}, nil
		}
	}

	return Comparison{}, fmt.Errorf("could not extract similarity score from response: %q", truncateForError(text))
}

func validScore(score float64) bool {
	return score >= 0 && score <= 1
}

func clampComparison(c Comparison) Comparison {
	if c.Score < 0 {
		c.Score = 0
	}
	if c.Score > 1 {
		c.Score = 1
	}
	return c
}

func truncateForError(text string) string {
	const max = 200
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}
