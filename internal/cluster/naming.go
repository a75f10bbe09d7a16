package cluster

import (
	"fmt"
	"strings"

	"github.com/smegmarip/photo-organizer/internal/vision"
	"github.com/smegmarip/photo-organizer/pkg/utils"
)

// ============================================================================
// Cluster Naming
// ============================================================================

// maxNameTokens caps how many outfit features appear in a cluster name.
const maxNameTokens = 3

// Names assigns a unique display name to every cluster, in creation order
// so the names are stable across identical runs. A cluster with a bib
// number is named Racer_Bib_<bib>; otherwise the name is built from the
// exemplar's most distinctive features. Collisions get _2, _3, ...
// suffixes.
func (c *Clusterer) Names() map[int]string {
	taken := make(map[string]bool)
	names := make(map[int]string, len(c.clusters))
	for _, cl := range c.clusters {
		name := utils.UniqueName(utils.SanitizeName(displayName(cl)), taken)
		taken[name] = true
		names[cl.ID] = name
	}
	return names
}

// displayName builds the raw (pre-sanitize, pre-dedup) name of a cluster.
func displayName(cl *Cluster) string {
	if cl.Bib != "" {
		return "Racer_Bib_" + cl.Bib
	}
	tokens := featureTokens(cl.Exemplar, maxNameTokens)
	if len(tokens) == 0 {
		return fmt.Sprintf("Outfit_%d", cl.ID)
	}
	return fmt.Sprintf("Outfit_%d_%s", cl.ID, strings.Join(tokens, "_"))
}

// featureTokens picks up to max name tokens from the exemplar detection, in
// order of how recognizable the feature is at a glance: helmet colors, then
// suit colors, boot colors, and clothing patterns. Only the exemplar
// contributes; later members never rename a cluster.
func featureTokens(d vision.SubjectDetection, max int) []string {
	var raw []string
	raw = append(raw, d.HelmetColors...)
	raw = append(raw, d.ClothingColors...)
	raw = append(raw, d.BootColors...)
	raw = append(raw, d.ClothingPatterns...)

	var tokens []string
	for _, r := range raw {
		token := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(r), " ", ""))
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	tokens = utils.DeduplicateStrings(tokens)
	if len(tokens) > max {
		tokens = tokens[:max]
	}
	return tokens
}
