// Package cluster groups single-subject photos by outfit without a roster.
// Clustering is online and single-pass: each photo is routed as it arrives
// by comparing it against the exemplar of every existing cluster, cheapest
// evidence first. Timestamps beat visual judgment: frames shot seconds
// apart are the same subject regardless of what the model thinks of the
// outfits.
package cluster

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smegmarip/photo-organizer/internal/vision"
	"github.com/smegmarip/photo-organizer/pkg/utils"
)

// ============================================================================
// Online Clustering
// ============================================================================

const (
	// scoreExact is awarded inside the exact window; it is certainty, so the
	// sweep stops without consulting the vision service.
	scoreExact = 1.0
	// windowFloor is the minimum score inside the high-priority window; the
	// visual score can only raise it.
	windowFloor = 0.85
	// earlyExit stops the sweep once a cluster scores this high, saving the
	// remaining comparisons.
	earlyExit = 0.95
)

// Comparer scores the similarity of two gear descriptions.
type Comparer interface {
	CompareTwoDescriptions(ctx context.Context, description1, description2 string) (vision.Comparison, error)
}

// Options are the protocol knobs.
type Options struct {
	// TExact is the window within which two capture instants mean the same
	// subject with certainty.
	TExact time.Duration
	// THigh is the window within which timestamps still dominate visual
	// evidence.
	THigh time.Duration
	// Threshold is the minimum score to join an existing cluster.
	Threshold float64
}

// Rule identifies which evidence produced a score.
type Rule int

const (
	RuleNone Rule = iota
	RuleExactTime
	RuleTimeWindow
	RuleVisual
)

func (r Rule) String() string {
	switch r {
	case RuleExactTime:
		return "exact-time"
	case RuleTimeWindow:
		return "time-window"
	case RuleVisual:
		return "visual"
	default:
		return "none"
	}
}

// Member is one photo assigned to a cluster.
type Member struct {
	Path       string
	CapturedAt *time.Time
}

// Cluster is one discovered subject. The exemplar is the detection of the
// founding photo and is the only description later photos are compared
// against, which caps comparisons at one per cluster per photo.
type Cluster struct {
	ID       int
	Exemplar vision.SubjectDetection
	Members  []Member
	// LastSeen is the most recent non-nil capture instant among members;
	// the timestamp rules measure distance against it.
	LastSeen *time.Time
	// Bib is the first non-empty bib number seen among members. It wins
	// the cluster's display name.
	Bib string
}

// Assignment reports how a photo was routed.
type Assignment struct {
	Cluster *Cluster
	Score   float64
	Rule    Rule
	Created bool
}

// Clusterer is the online clustering engine. Not safe for concurrent use;
// the run loop feeds it one photo at a time, which is also what makes runs
// deterministic.
type Clusterer struct {
	comparer Comparer
	opts     Options

	clusters []*Cluster
	nextID   int
}

// New creates a clusterer.
func New(comparer Comparer, opts Options) *Clusterer {
	return &Clusterer{comparer: comparer, opts: opts, nextID: 1}
}

// Clusters returns the clusters in creation order.
func (c *Clusterer) Clusters() []*Cluster {
	return c.clusters
}

// Assign routes one single-subject photo: every existing cluster is scored
// in creation order, and the photo joins the best scorer at or above the
// threshold, otherwise founds a new cluster. Ties keep the earliest
// cluster. A fatal vision error aborts; transient comparison failures score
// that cluster 0.0 and the sweep continues.
func (c *Clusterer) Assign(ctx context.Context, path string, detection vision.SubjectDetection, capturedAt *time.Time) (Assignment, error) {
	var best *Cluster
	bestScore := 0.0
	bestRule := RuleNone

	for _, candidate := range c.clusters {
		score, rule, err := c.score(ctx, detection, capturedAt, candidate)
		if err != nil {
			return Assignment{}, err
		}
		// Strict greater-than keeps the first-created cluster on ties.
		if score > bestScore || best == nil {
			best, bestScore, bestRule = candidate, score, rule
		}
		if bestScore >= earlyExit {
			break
		}
	}

	if best != nil && bestScore >= c.opts.Threshold {
		c.join(best, path, detection, capturedAt)
		log.Debugf("joined cluster %d via %s (%.2f): %s", best.ID, bestRule, bestScore, path)
		return Assignment{Cluster: best, Score: bestScore, Rule: bestRule}, nil
	}

	opened := c.open(path, detection, capturedAt)
	log.Debugf("opened cluster %d (best score %.2f): %s", opened.ID, bestScore, path)
	return Assignment{Cluster: opened, Score: bestScore, Rule: bestRule, Created: true}, nil
}

// score evaluates one photo against one cluster, cheapest evidence first.
func (c *Clusterer) score(ctx context.Context, detection vision.SubjectDetection, capturedAt *time.Time, candidate *Cluster) (float64, Rule, error) {
	// Rule 1: capture instants within the exact window are the same
	// subject. No vision call is spent.
	gap, haveGap := timeGap(capturedAt, candidate.LastSeen)
	if haveGap && gap <= c.opts.TExact {
		return scoreExact, RuleExactTime, nil
	}

	// Rules 2 and 3 need the visual score.
	visual, err := c.visualScore(ctx, detection, candidate)
	if err != nil {
		return 0, RuleNone, err
	}

	// Rule 2: inside the high-priority window the score cannot drop below
	// the floor; an outfit mismatch within seconds is a model error, not
	// two subjects.
	if haveGap && gap <= c.opts.THigh {
		if visual < windowFloor {
			return windowFloor, RuleTimeWindow, nil
		}
		return visual, RuleTimeWindow, nil
	}

	// Rule 3: visual evidence only.
	return visual, RuleVisual, nil
}

// visualScore compares the photo's detection against the cluster exemplar.
// Transient failures score 0.0 so the sweep can continue; fatal failures
// propagate and abort the run.
func (c *Clusterer) visualScore(ctx context.Context, detection vision.SubjectDetection, candidate *Cluster) (float64, error) {
	comparison, err := c.comparer.CompareTwoDescriptions(ctx, detection.OutfitDescription, candidate.Exemplar.OutfitDescription)
	if err != nil {
		if vision.IsFatal(err) {
			return 0, fmt.Errorf("comparison against cluster %d failed: %w", candidate.ID, err)
		}
		log.Warnf("comparison against cluster %d failed, scoring 0.0: %v", candidate.ID, err)
		return 0, nil
	}
	log.Debugf("cluster %d scored %.2f (%s)", candidate.ID, comparison.Score,
		utils.TruncateString(comparison.Reason, 80))
	return comparison.Score, nil
}

// join adds the photo to an existing cluster.
func (c *Clusterer) join(cl *Cluster, path string, detection vision.SubjectDetection, capturedAt *time.Time) {
	cl.Members = append(cl.Members, Member{Path: path, CapturedAt: capturedAt})
	if capturedAt != nil {
		cl.LastSeen = capturedAt
	}
	if cl.Bib == "" && detection.BibNumber != nil && *detection.BibNumber != "" {
		cl.Bib = *detection.BibNumber
	}
}

// open founds a new cluster with the photo as exemplar.
func (c *Clusterer) open(path string, detection vision.SubjectDetection, capturedAt *time.Time) *Cluster {
	cl := &Cluster{
		ID:       c.nextID,
		Exemplar: detection,
		Members:  []Member{{Path: path, CapturedAt: capturedAt}},
		LastSeen: capturedAt,
	}
	if detection.BibNumber != nil && *detection.BibNumber != "" {
		cl.Bib = *detection.BibNumber
	}
	c.nextID++
	c.clusters = append(c.clusters, cl)
	return cl
}

// timeGap returns the absolute distance between two instants, reporting
// false when either side is unknown.
func timeGap(a, b *time.Time) (time.Duration, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	gap := a.Sub(*b)
	if gap < 0 {
		gap = -gap
	}
	return gap, true
}
