package match_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smegmarip/photo-organizer/internal/match"
	"github.com/smegmarip/photo-organizer/internal/placement"
	"github.com/smegmarip/photo-organizer/internal/roster"
	"github.com/smegmarip/photo-organizer/internal/vision"
)

// fakeComparer scores pairs of descriptions from a script and can fail
// selected roster descriptions.
type fakeComparer struct {
	scores map[string]float64
	fail   map[string]error
	calls  int
}

func key(detection, entry string) string { return detection + "|" + entry }

func (f *fakeComparer) CompareTwoDescriptions(_ context.Context, detection, entry string) (vision.Comparison, error) {
	f.calls++
	if err, ok := f.fail[entry]; ok {
		return vision.Comparison{}, err
	}
	score, ok := f.scores[key(detection, entry)]
	if !ok {
		return vision.Comparison{}, fmt.Errorf("unscripted comparison: %q vs %q", detection, entry)
	}
	return vision.Comparison{Score: score}, nil
}

func entries(descriptions map[string]string) []roster.Entry {
	// Fixed order so tests are deterministic.
	names := []string{"Alice", "Bob", "Carol"}
	var out []roster.Entry
	for _, name := range names {
		if desc, ok := descriptions[name]; ok {
			out = append(out, roster.Entry{Name: name, Description: desc})
		}
	}
	return out
}

func TestIdentify_PicksBestEntryAboveThreshold(t *testing.T) {
	comparer := &fakeComparer{scores: map[string]float64{
		key("seen outfit", "alice gear"): 0.82,
		key("seen outfit", "bob gear"):   0.31,
	}}
	m := match.NewMatcher(comparer, 0.7)

	got, err := m.Identify(context.Background(),
		vision.SubjectDetection{OutfitDescription: "seen outfit"},
		entries(map[string]string{"Alice": "alice gear", "Bob": "bob gear"}))

	require.NoError(t, err)
	assert.True(t, got.Matched())
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, 0.82, got.Confidence)
	assert.Equal(t, 2, comparer.calls, "every entry is scored")
}

func TestIdentify_BelowThresholdIsUnmatched(t *testing.T) {
	comparer := &fakeComparer{scores: map[string]float64{
		key("seen outfit", "alice gear"): 0.69,
	}}
	m := match.NewMatcher(comparer, 0.7)

	got, err := m.Identify(context.Background(),
		vision.SubjectDetection{OutfitDescription: "seen outfit"},
		entries(map[string]string{"Alice": "alice gear"}))

	require.NoError(t, err)
	assert.False(t, got.Matched())
	assert.Equal(t, 0.69, got.Confidence, "best score is reported even when unmatched")
}

func TestIdentify_ThresholdBoundaryMatches(t *testing.T) {
	comparer := &fakeComparer{scores: map[string]float64{
		key("seen outfit", "alice gear"): 0.7,
	}}
	m := match.NewMatcher(comparer, 0.7)

	got, err := m.Identify(context.Background(),
		vision.SubjectDetection{OutfitDescription: "seen outfit"},
		entries(map[string]string{"Alice": "alice gear"}))

	require.NoError(t, err)
	assert.True(t, got.Matched(), "a score equal to the threshold matches")
}

func TestIdentify_SkipsEntriesWithoutDescriptions(t *testing.T) {
	comparer := &fakeComparer{scores: map[string]float64{
		key("seen outfit", "bob gear"): 0.9,
	}}
	m := match.NewMatcher(comparer, 0.7)

	got, err := m.Identify(context.Background(),
		vision.SubjectDetection{OutfitDescription: "seen outfit"},
		entries(map[string]string{"Alice": "", "Bob": "bob gear"}))

	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)
	assert.Equal(t, 1, comparer.calls, "entries without descriptions never reach the comparator")
}

func TestIdentify_TransientFailureSkipsEntry(t *testing.T) {
	comparer := &fakeComparer{
		scores: map[string]float64{
			key("seen outfit", "bob gear"): 0.8,
		},
		fail: map[string]error{
			"alice gear": &vision.ServiceError{Category: vision.CategoryTransient, Message: "overloaded"},
		},
	}
	m := match.NewMatcher(comparer, 0.7)

	got, err := m.Identify(context.Background(),
		vision.SubjectDetection{OutfitDescription: "seen outfit"},
		entries(map[string]string{"Alice": "alice gear", "Bob": "bob gear"}))

	require.NoError(t, err, "a transient failure must not abort the sweep")
	assert.Equal(t, "Bob", got.Name)
}

func TestIdentify_FatalFailureAborts(t *testing.T) {
	comparer := &fakeComparer{
		fail: map[string]error{
			"alice gear": &vision.ServiceError{Category: vision.CategoryAuth, Status: 401, Message: "bad key"},
		},
	}
	m := match.NewMatcher(comparer, 0.7)

	_, err := m.Identify(context.Background(),
		vision.SubjectDetection{OutfitDescription: "seen outfit"},
		entries(map[string]string{"Alice": "alice gear"}))

	require.Error(t, err)
	assert.True(t, vision.IsFatal(err))
}

func TestClassify_RoutesByMatchShape(t *testing.T) {
	tests := []struct {
		name    string
		matches []match.Match
		want    placement.Decision
	}{
		{
			name:    "no detections",
			matches: nil,
			want:    placement.Decision{Category: placement.CategoryNoFaces},
		},
		{
			name:    "single matched",
			matches: []match.Match{{Name: "Alice", Confidence: 0.82}},
			want:    placement.Decision{Category: placement.CategorySingle, Name: "Alice"},
		},
		{
			name:    "single unmatched",
			matches: []match.Match{{Confidence: 0.42}},
			want:    placement.Decision{Category: placement.CategoryUnknown},
		},
		{
			name: "two matched sorted",
			matches: []match.Match{
				{Name: "Bob", Confidence: 0.9},
				{Name: "Alice", Confidence: 0.8},
			},
			want: placement.Decision{Category: placement.CategoryMultiple, Name: "Alice_Bob"},
		},
		{
			name: "matched and unmatched",
			matches: []match.Match{
				{Name: "Bob", Confidence: 0.9},
				{Confidence: 0.2},
			},
			want: placement.Decision{Category: placement.CategoryMultiple, Name: "Bob_Unknown"},
		},
		{
			name: "duplicate names collapse",
			matches: []match.Match{
				{Name: "Bob", Confidence: 0.9},
				{Name: "Bob", Confidence: 0.8},
			},
			want: placement.Decision{Category: placement.CategoryMultiple, Name: "Bob"},
		},
		{
			name: "every unmatched detection counts",
			matches: []match.Match{
				{Confidence: 0.1},
				{Confidence: 0.2},
			},
			want: placement.Decision{Category: placement.CategoryMultiple, Name: "Unknown_Unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, match.Classify(tt.matches))
		})
	}
}

func TestIdentifyAll_PreservesDetectionOrder(t *testing.T) {
	comparer := &fakeComparer{scores: map[string]float64{
		key("first", "alice gear"):  0.9,
		key("second", "alice gear"): 0.1,
	}}
	m := match.NewMatcher(comparer, 0.7)

	matches, err := m.IdentifyAll(context.Background(),
		[]vision.SubjectDetection{
			{OutfitDescription: "first"},
			{OutfitDescription: "second"},
		},
		entries(map[string]string{"Alice": "alice gear"}))

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Alice", matches[0].Name)
	assert.False(t, matches[1].Matched())
}
