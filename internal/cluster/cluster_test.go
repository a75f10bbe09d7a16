package cluster_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smegmarip/photo-organizer/internal/cluster"
	"github.com/smegmarip/photo-organizer/internal/vision"
)

// fakeComparer returns scripted similarity scores keyed by the ordered
// (candidate, exemplar) description pair and counts every comparison the
// clusterer requests.
type fakeComparer struct {
	scores map[string]float64
	err    error
	calls  int
}

func pairKey(candidate, exemplar string) string {
	return candidate + "|" + exemplar
}

func (f *fakeComparer) CompareTwoDescriptions(_ context.Context, candidate, exemplar string) (vision.Comparison, error) {
	f.calls++
	if f.err != nil {
		return vision.Comparison{}, f.err
	}
	score, ok := f.scores[pairKey(candidate, exemplar)]
	if !ok {
		return vision.Comparison{}, fmt.Errorf("unscripted comparison: %q vs %q", candidate, exemplar)
	}
	return vision.Comparison{Score: score, Reason: "scripted"}, nil
}

// defaultOptions mirrors the auto-cluster defaults.
func defaultOptions() cluster.Options {
	return cluster.Options{
		TExact:    10 * time.Second,
		THigh:     30 * time.Second,
		Threshold: 0.5,
	}
}

// capturedAt builds a capture instant offset from a fixed base time.
func capturedAt(offset time.Duration) *time.Time {
	base := time.Date(2024, 1, 15, 14, 23, 45, 0, time.Local)
	t := base.Add(offset)
	return &t
}

func detection(description string) vision.SubjectDetection {
	return vision.SubjectDetection{OutfitDescription: description}
}

func bibDetection(description, bib string) vision.SubjectDetection {
	return vision.SubjectDetection{OutfitDescription: description, BibNumber: &bib}
}

func TestAssign_FirstPhotoOpensCluster(t *testing.T) {
	comparer := &fakeComparer{}
	c := cluster.New(comparer, defaultOptions())

	a, err := c.Assign(context.Background(), "/photos/a.jpg", detection("red suit"), capturedAt(0))

	require.NoError(t, err)
	assert.True(t, a.Created, "first photo should open a cluster")
	assert.Equal(t, 1, a.Cluster.ID, "cluster ids start at 1")
	assert.Zero(t, comparer.calls, "nothing to compare against yet")
}

func TestAssign_BurstJoinsWithoutComparisons(t *testing.T) {
	// Five frames within seconds of each other: a burst of the same racer.
	// Rule 1 must absorb all of them without a single vision call, and the
	// bib seen on the first frame names the cluster.
	comparer := &fakeComparer{}
	c := cluster.New(comparer, defaultOptions())

	offsets := []time.Duration{
		0,
		300 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		3 * time.Second,
	}
	first, err := c.Assign(context.Background(), "/photos/burst0.jpg", bibDetection("white and red suit", "23"), capturedAt(offsets[0]))
	require.NoError(t, err)

	for i, offset := range offsets[1:] {
		a, err := c.Assign(context.Background(),
			fmt.Sprintf("/photos/burst%d.jpg", i+1),
			detection(fmt.Sprintf("completely different outfit %d", i)),
			capturedAt(offset))
		require.NoError(t, err)
		assert.False(t, a.Created, "frame %d should join the burst cluster", i+1)
		assert.Equal(t, first.Cluster.ID, a.Cluster.ID)
		assert.Equal(t, cluster.RuleExactTime, a.Rule)
		assert.Equal(t, 1.0, a.Score, "exact window is certainty")
	}

	assert.Zero(t, comparer.calls, "timestamp rule must short-circuit the comparator")
	require.Len(t, c.Clusters(), 1)
	assert.Len(t, c.Clusters()[0].Members, 5)
	assert.Equal(t, map[int]string{1: "Racer_Bib_23"}, c.Names())
}

func TestAssign_TimeWindowOverridesWeakVisualScore(t *testing.T) {
	// Two shots 23 s apart: sequential gate shots of the same racer. The
	// comparator judges them 0.40, but inside the high-priority window the
	// score floors at 0.85.
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("dark outfit", "bright outfit"): 0.40,
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("bright outfit"), capturedAt(0))
	require.NoError(t, err)

	a, err := c.Assign(context.Background(), "/photos/b.jpg", detection("dark outfit"), capturedAt(23*time.Second))
	require.NoError(t, err)

	assert.False(t, a.Created, "photos 23s apart should cluster together")
	assert.Equal(t, cluster.RuleTimeWindow, a.Rule)
	assert.Equal(t, 0.85, a.Score, "window floors the score at 0.85")
	assert.Equal(t, 1, comparer.calls, "rule 2 still consults the comparator")
}

func TestAssign_TimeWindowKeepsStrongVisualScore(t *testing.T) {
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("red suit again", "red suit"): 0.92,
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("red suit"), capturedAt(0))
	require.NoError(t, err)

	a, err := c.Assign(context.Background(), "/photos/b.jpg", detection("red suit again"), capturedAt(20*time.Second))
	require.NoError(t, err)

	assert.Equal(t, 0.92, a.Score, "a visual score above the floor passes through")
	assert.Equal(t, cluster.RuleTimeWindow, a.Rule)
}

func TestAssign_DistantTimestampsSplitOnWeakVisualScore(t *testing.T) {
	// 120 s apart with a 0.40 visual score against a 0.5 threshold: two
	// different racers.
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("dark outfit", "bright outfit"): 0.40,
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("bright outfit"), capturedAt(0))
	require.NoError(t, err)

	a, err := c.Assign(context.Background(), "/photos/b.jpg", detection("dark outfit"), capturedAt(120*time.Second))
	require.NoError(t, err)

	assert.True(t, a.Created, "weak visual match outside the window opens a new cluster")
	assert.Equal(t, cluster.RuleVisual, a.Rule)
	assert.Len(t, c.Clusters(), 2)
}

func TestAssign_NoTimestampsFallsBackToVisual(t *testing.T) {
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("red suit variant", "red suit"): 0.60,
		pairKey("blue jacket", "red suit"):      0.20,
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("red suit"), nil)
	require.NoError(t, err)

	joined, err := c.Assign(context.Background(), "/photos/b.jpg", detection("red suit variant"), nil)
	require.NoError(t, err)
	assert.False(t, joined.Created)
	assert.Equal(t, cluster.RuleVisual, joined.Rule)
	assert.Equal(t, 0.60, joined.Score)

	split, err := c.Assign(context.Background(), "/photos/c.jpg", detection("blue jacket"), nil)
	require.NoError(t, err)
	assert.True(t, split.Created, "0.20 is below the 0.5 threshold")
}

func TestAssign_MixedTimestampPresenceUsesVisual(t *testing.T) {
	// One side missing an instant means the timestamp rules cannot fire.
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("red suit variant", "red suit"): 0.70,
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("red suit"), capturedAt(0))
	require.NoError(t, err)

	a, err := c.Assign(context.Background(), "/photos/b.jpg", detection("red suit variant"), nil)
	require.NoError(t, err)

	assert.Equal(t, cluster.RuleVisual, a.Rule, "missing instant disables rules 1 and 2")
	assert.False(t, a.Created)
}

func TestAssign_EqualWindowsMakeRule2Degenerate(t *testing.T) {
	opts := defaultOptions()
	opts.TExact = 10 * time.Second
	opts.THigh = 10 * time.Second
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("b", "a"): 0.30,
		pairKey("c", "a"): 0.30,
	}}
	c := cluster.New(comparer, opts)

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("a"), capturedAt(0))
	require.NoError(t, err)

	inside, err := c.Assign(context.Background(), "/photos/b.jpg", detection("b"), capturedAt(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, cluster.RuleExactTime, inside.Rule, "inside the window only rule 1 fires")

	outside, err := c.Assign(context.Background(), "/photos/c.jpg", detection("c"), capturedAt(25*time.Second))
	require.NoError(t, err)
	assert.Equal(t, cluster.RuleVisual, outside.Rule, "outside the window only rule 3 fires")
	assert.True(t, outside.Created)
}

func TestAssign_EarlyExitStopsSweep(t *testing.T) {
	// Three clusters exist; the candidate scores 0.96 against the first,
	// so the remaining two comparisons must never be issued.
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("b", "a"):  0.10,
		pairKey("c", "a"):  0.10,
		pairKey("c", "b"):  0.10,
		pairKey("a2", "a"): 0.96,
	}}
	c := cluster.New(comparer, defaultOptions())

	for _, desc := range []string{"a", "b", "c"} {
		_, err := c.Assign(context.Background(), "/photos/"+desc+".jpg", detection(desc), nil)
		require.NoError(t, err)
	}
	require.Len(t, c.Clusters(), 3)
	callsBefore := comparer.calls

	a, err := c.Assign(context.Background(), "/photos/a2.jpg", detection("a2"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, a.Cluster.ID)
	assert.Equal(t, 1, comparer.calls-callsBefore, "sweep should stop at the near-perfect match")
}

func TestAssign_TieKeepsFirstCreatedCluster(t *testing.T) {
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("b", "a"): 0.10,
		pairKey("x", "a"): 0.70,
		pairKey("x", "b"): 0.70,
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("a"), nil)
	require.NoError(t, err)
	_, err = c.Assign(context.Background(), "/photos/b.jpg", detection("b"), nil)
	require.NoError(t, err)

	a, err := c.Assign(context.Background(), "/photos/x.jpg", detection("x"), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, a.Cluster.ID, "equal scores keep the oldest cluster")
}

func TestAssign_LastSeenAdvancesWithMembers(t *testing.T) {
	// The window is measured against the cluster's most recent member, so a
	// run of shots each 25 s apart chains into one cluster even though the
	// last shot is 50 s from the exemplar.
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("b", "a"): 0.0,
		pairKey("c", "a"): 0.0,
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("a"), capturedAt(0))
	require.NoError(t, err)

	second, err := c.Assign(context.Background(), "/photos/b.jpg", detection("b"), capturedAt(25*time.Second))
	require.NoError(t, err)
	assert.Equal(t, cluster.RuleTimeWindow, second.Rule)
	assert.False(t, second.Created)

	third, err := c.Assign(context.Background(), "/photos/c.jpg", detection("c"), capturedAt(50*time.Second))
	require.NoError(t, err)
	assert.Equal(t, cluster.RuleTimeWindow, third.Rule, "gap to the last member is 25s, inside the window")
	assert.False(t, third.Created)
	assert.Len(t, c.Clusters(), 1)
}

func TestAssign_FirstBibWinsForNaming(t *testing.T) {
	comparer := &fakeComparer{}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("suit"), capturedAt(0))
	require.NoError(t, err)
	_, err = c.Assign(context.Background(), "/photos/b.jpg", bibDetection("suit", "23"), capturedAt(time.Second))
	require.NoError(t, err)
	_, err = c.Assign(context.Background(), "/photos/c.jpg", bibDetection("suit", "45"), capturedAt(2*time.Second))
	require.NoError(t, err)

	require.Len(t, c.Clusters(), 1)
	assert.Equal(t, "23", c.Clusters()[0].Bib, "first non-null bib sticks")
	assert.Equal(t, "Racer_Bib_23", c.Names()[1])
}

func TestAssign_TransientComparerErrorScoresZero(t *testing.T) {
	comparer := &fakeComparer{err: &vision.ServiceError{
		Category: vision.CategoryTransient,
		Message:  "rate limited",
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("a"), nil)
	require.NoError(t, err)

	a, err := c.Assign(context.Background(), "/photos/b.jpg", detection("b"), nil)

	require.NoError(t, err, "a transient comparison failure must not abort the sweep")
	assert.True(t, a.Created, "scored 0.0, below threshold, so a new cluster opens")
	assert.Len(t, c.Clusters(), 2)
}

func TestAssign_FatalComparerErrorAborts(t *testing.T) {
	comparer := &fakeComparer{err: &vision.ServiceError{
		Category: vision.CategoryAuth,
		Status:   401,
		Message:  "bad key",
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("a"), nil)
	require.NoError(t, err)

	_, err = c.Assign(context.Background(), "/photos/b.jpg", detection("b"), nil)

	require.Error(t, err)
	assert.True(t, vision.IsFatal(err), "auth failures propagate as fatal")
}

func TestAssign_ThresholdBoundaryJoins(t *testing.T) {
	comparer := &fakeComparer{scores: map[string]float64{
		pairKey("b", "a"): 0.50,
	}}
	c := cluster.New(comparer, defaultOptions())

	_, err := c.Assign(context.Background(), "/photos/a.jpg", detection("a"), nil)
	require.NoError(t, err)

	a, err := c.Assign(context.Background(), "/photos/b.jpg", detection("b"), nil)
	require.NoError(t, err)

	assert.False(t, a.Created, "a score equal to the threshold joins")
}
