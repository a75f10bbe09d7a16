package report_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smegmarip/photo-organizer/internal/report"
)

func sampleReport() *report.Report {
	return &report.Report{
		RunID:     "7f1c9a2e",
		Mode:      "auto-cluster",
		CreatedAt: time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
		Config: report.ConfigSnapshot{
			Mode:                "auto-cluster",
			ConfidenceThreshold: 0.5,
			TExactSeconds:       10,
			THighSeconds:        30,
			Provider:            "gemini",
			Model:               "gemini-2.0-flash",
			CopyOrMove:          "copy",
		},
		Statistics: report.Statistics{
			ImagesTotal: 4,
			Analyzed:    3,
			CacheHits:   1,
			VisionCalls: 7,
			Placed:      4,
		},
		Categories: map[string]int{
			"Racer_Bib_17":      2,
			"Multiple_People":   1,
			"No_Faces_Detected": 1,
		},
		Clusters: []report.ClusterSummary{
			{Name: "Racer_Bib_17", Size: 2, Bib: "17"},
		},
		Images: []report.ImageOutcome{
			{Path: "/photos/a.jpg", Outcome: "placed", Destination: "/out/Racer_Bib_17/a.jpg"},
			{Path: "/photos/b.jpg", Outcome: "vision-error", Destination: "/out/No_Faces_Detected/b.jpg", Error: "deadline exceeded"},
		},
		VisionErrors: []report.VisionError{
			{Path: "/photos/b.jpg", Stage: "detect", Error: "deadline exceeded"},
		},
	}
}

func TestWrite_CreatesLogInsideOutputRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	want := sampleReport()

	require.NoError(t, report.Write(fs, "/out", want))

	raw, err := afero.ReadFile(fs, filepath.Join("/out", report.FileName))
	require.NoError(t, err, "the log must sit next to the organized photos")

	var got report.Report
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Mode, got.Mode)
	assert.Equal(t, want.Config, got.Config)
	assert.Equal(t, want.Statistics, got.Statistics)
	assert.Equal(t, want.Categories, got.Categories)
	assert.Equal(t, want.Clusters, got.Clusters)
	assert.Equal(t, want.Images, got.Images)
	assert.Equal(t, want.VisionErrors, got.VisionErrors)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
}

func TestWrite_CreatesMissingOutputDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	out := filepath.Join("/deep", "nested", "out")

	require.NoError(t, report.Write(fs, out, sampleReport()))

	exists, err := afero.DirExists(fs, out)
	require.NoError(t, err)
	assert.True(t, exists, "Write should create the output root on demand")
}

func TestWrite_OmitsEmptyOptionalSections(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := sampleReport()
	r.Clusters = nil
	r.VisionErrors = nil

	require.NoError(t, report.Write(fs, "/out", r))

	raw, err := afero.ReadFile(fs, filepath.Join("/out", report.FileName))
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.NotContains(t, keys, "clusters", "database mode runs carry no cluster section")
	assert.NotContains(t, keys, "vision_errors")
	assert.Contains(t, keys, "categories")
	assert.Contains(t, keys, "images")
}
