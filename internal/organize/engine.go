// Package organize runs the end-to-end pipeline: enumerate photos, analyze
// them through the cache-fronted vision service, classify by roster match
// or by online clustering, then plan and execute placements and write the
// run report.
package organize

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/smegmarip/photo-organizer/internal/cache"
	"github.com/smegmarip/photo-organizer/internal/capturetime"
	"github.com/smegmarip/photo-organizer/internal/cluster"
	"github.com/smegmarip/photo-organizer/internal/config"
	"github.com/smegmarip/photo-organizer/internal/imageprep"
	"github.com/smegmarip/photo-organizer/internal/match"
	"github.com/smegmarip/photo-organizer/internal/placement"
	"github.com/smegmarip/photo-organizer/internal/report"
	"github.com/smegmarip/photo-organizer/internal/roster"
	"github.com/smegmarip/photo-organizer/internal/vision"
)

// ============================================================================
// Organize Engine
// ============================================================================

// Mode selects how photos are classified.
type Mode string

const (
	ModeDatabase    Mode = "database"
	ModeAutoCluster Mode = "auto-cluster"
)

// ErrPartialFailure marks a run that completed with at least one analysis
// or placement failure. The CLI maps it to exit code 3.
var ErrPartialFailure = errors.New("run completed with failures")

// Options configure one run.
type Options struct {
	SourceDir  string
	OutputDir  string
	Mode       Mode
	FileMode   placement.FileMode
	DryRun     bool
	Recursive  bool
	Confidence float64
	RunID      string
	// RosterPath overrides the roster location; empty means the default
	// file in the working directory.
	RosterPath string
}

// Summary is the run outcome handed back to the CLI.
type Summary struct {
	RunID      string
	Statistics report.Statistics
	Categories map[string]int
	Clusters   []report.ClusterSummary
	ReportPath string
}

// Engine wires the pipeline components together.
type Engine struct {
	cfg    *config.Config
	fs     afero.Fs
	client *vision.Client
	cache  *cache.Cache
}

// New creates an engine.
func New(cfg *config.Config, fs afero.Fs, client *vision.Client, analysisCache *cache.Cache) *Engine {
	return &Engine{cfg: cfg, fs: fs, client: client, cache: analysisCache}
}

// DescribeReference produces the canonical gear description for a roster
// reference image, routed through the analysis cache.
func (e *Engine) DescribeReference(ctx context.Context, path string) (string, error) {
	src, err := imageprep.LoadSource(path)
	if err != nil {
		return "", err
	}
	if description, ok := e.cache.Description(src.ContentHash); ok {
		log.Debugf("cache hit for reference description of %s", filepath.Base(path))
		return description, nil
	}

	payload, err := src.Encode(e.cfg.MaxImageDim, e.maxImageBytes())
	if err != nil {
		return "", err
	}
	description, err := e.client.DescribeOneFace(ctx, payload)
	if err != nil {
		return "", err
	}
	if err := e.cache.PutDescription(src.ContentHash, description); err != nil {
		log.Warnf("failed to cache reference description: %v", err)
	}
	return description, nil
}

// cachedComparer fronts comparison calls with the analysis cache, and
// records every non-fatal failure against the photo being processed, for
// the report and the exit code. Fatal errors pass through untouched.
// Caching comparisons alongside detections is what makes a warm-cache
// re-run issue zero vision calls.
type cachedComparer struct {
	client *vision.Client
	cache  *cache.Cache
	photo  string
	errors []report.VisionError
}

func (r *cachedComparer) CompareTwoDescriptions(ctx context.Context, description1, description2 string) (vision.Comparison, error) {
	key := cache.PairKey(description1, description2)
	if comparison, ok := r.cache.Comparison(key); ok {
		return comparison, nil
	}

	comparison, err := r.client.CompareTwoDescriptions(ctx, description1, description2)
	if err != nil {
		if !vision.IsFatal(err) {
			r.errors = append(r.errors, report.VisionError{
				Path:  r.photo,
				Stage: "compare",
				Error: err.Error(),
			})
		}
		return comparison, err
	}
	if err := r.cache.PutComparison(key, comparison); err != nil {
		log.Warnf("failed to cache comparison: %v", err)
	}
	return comparison, nil
}

// pendingCluster defers the placement decision of an auto-clustered photo
// until the end of the run, when cluster names exist.
type pendingCluster struct {
	path      string
	clusterID int
}

// Run executes one organize run.
func (e *Engine) Run(ctx context.Context, opts Options) (*Summary, error) {
	paths, err := imageprep.ListImages(opts.SourceDir, opts.Recursive)
	if err != nil {
		return nil, err
	}
	log.Infof("found %d images under %s", len(paths), opts.SourceDir)

	var entries []roster.Entry
	recorder := &cachedComparer{client: e.client, cache: e.cache}
	matcher := match.NewMatcher(recorder, opts.Confidence)
	clusterer := cluster.New(recorder, cluster.Options{
		TExact:    e.cfg.TExactWindow(),
		THigh:     e.cfg.THighWindow(),
		Threshold: opts.Confidence,
	})

	if opts.Mode == ModeDatabase {
		rosterPath := opts.RosterPath
		if rosterPath == "" {
			rosterPath = roster.FileName
		}
		people, err := roster.Load(e.fs, rosterPath)
		if err != nil {
			return nil, err
		}
		entries = people.Entries()
		if len(entries) == 0 {
			log.Warnf("roster is empty; every face will land in %s", placement.DirUnknown)
		}
	}

	stats := report.Statistics{ImagesTotal: len(paths)}
	outcomes := make(map[string]*report.ImageOutcome, len(paths))
	captureTimes := make(map[string]*time.Time, len(paths))
	var decisions []placement.Decision
	var pending []pendingCluster

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			e.flushCache()
			return nil, err
		}

		log.WithFields(log.Fields{
			"index": i + 1,
			"total": len(paths),
			"file":  filepath.Base(path),
		}).Info("analyzing image")
		recorder.photo = path
		outcomes[path] = &report.ImageOutcome{Path: path}

		src, err := imageprep.LoadSource(path)
		if err != nil {
			log.Warnf("skipping %s: %v", path, err)
			stats.Skipped++
			outcomes[path].Outcome = "skipped"
			outcomes[path].Error = err.Error()
			continue
		}

		capturedAt, err := capturetime.FromFile(path)
		if err != nil {
			log.Debugf("no capture time for %s: %v", path, err)
		}
		captureTimes[path] = capturedAt

		detections, ok := e.cache.Detections(src.ContentHash)
		if ok {
			log.Debugf("cache hit for %s", filepath.Base(path))
			stats.CacheHits++
		} else {
			payload, encErr := src.Encode(e.cfg.MaxImageDim, e.maxImageBytes())
			if encErr != nil {
				// Undecodable or unencodable image: skipped, not placed.
				log.Warnf("skipping %s: %v", path, encErr)
				stats.Skipped++
				outcomes[path].Outcome = "skipped"
				outcomes[path].Error = encErr.Error()
				continue
			}

			detections, err = e.detect(ctx, src.ContentHash, payload)
			if err != nil {
				if vision.IsFatal(err) {
					e.flushCache()
					return nil, err
				}
				// Retry budget exhausted or garbled response: the photo is
				// still placed, in the no-faces bucket, and the run
				// continues.
				log.Warnf("analysis failed for %s: %v", path, err)
				recorder.errors = append(recorder.errors, report.VisionError{
					Path:  path,
					Stage: "detect",
					Error: err.Error(),
				})
				outcomes[path].Outcome = "vision-error"
				outcomes[path].Error = err.Error()
				decisions = append(decisions, placement.Decision{
					SourcePath: path,
					Category:   placement.CategoryNoFaces,
				})
				continue
			}
			stats.Analyzed++
		}

		decision, deferred, err := e.classify(ctx, matcher, clusterer, entries, opts.Mode, path, detections, capturedAt)
		if err != nil {
			e.flushCache()
			return nil, err
		}
		if deferred != nil {
			pending = append(pending, *deferred)
		} else {
			decisions = append(decisions, decision)
		}
	}

	e.flushCache()

	// Auto-clustered photos get their decisions now that names exist.
	names := clusterer.Names()
	for _, p := range pending {
		decisions = append(decisions, placement.Decision{
			SourcePath: p.path,
			Category:   placement.CategorySingle,
			Name:       names[p.clusterID],
		})
	}

	clusters := summarizeClusters(clusterer, names)
	plan := placement.NewPlanner(opts.OutputDir).Plan(decisions)
	stats.VisionCalls = e.client.Stats().Total()

	if opts.DryRun {
		return e.finishDryRun(opts, plan, stats, clusters, outcomes, recorder.errors)
	}
	return e.finishExecute(ctx, opts, plan, stats, clusters, outcomes, captureTimes, recorder.errors)
}

// detect asks the vision service for the subjects in one encoded photo and
// caches the result under its content hash.
func (e *Engine) detect(ctx context.Context, hash string, payload *vision.Payload) ([]vision.SubjectDetection, error) {
	detections, err := e.client.DetectAllSubjects(ctx, payload)
	if err != nil {
		return nil, err
	}
	if err := e.cache.PutDetections(hash, detections); err != nil {
		log.Warnf("failed to cache detections: %v", err)
	}
	log.Debugf("detected %d subject(s)", len(detections))
	return detections, nil
}

// classify routes one analyzed photo. Auto-clustered single-subject photos
// return a deferred decision instead, resolved after naming.
func (e *Engine) classify(
	ctx context.Context,
	matcher *match.Matcher,
	clusterer *cluster.Clusterer,
	entries []roster.Entry,
	mode Mode,
	path string,
	detections []vision.SubjectDetection,
	capturedAt *time.Time,
) (placement.Decision, *pendingCluster, error) {
	if mode == ModeDatabase {
		matches, err := matcher.IdentifyAll(ctx, detections, entries)
		if err != nil {
			return placement.Decision{}, nil, err
		}
		decision := match.Classify(matches)
		decision.SourcePath = path
		return decision, nil, nil
	}

	switch len(detections) {
	case 0:
		return placement.Decision{SourcePath: path, Category: placement.CategoryNoFaces}, nil, nil
	case 1:
		assignment, err := clusterer.Assign(ctx, path, detections[0], capturedAt)
		if err != nil {
			return placement.Decision{}, nil, err
		}
		return placement.Decision{}, &pendingCluster{path: path, clusterID: assignment.Cluster.ID}, nil
	default:
		// Multi-subject photos bypass clustering.
		return placement.Decision{SourcePath: path, Category: placement.CategoryMultiple}, nil, nil
	}
}

// finishDryRun logs the would-be placements and summarizes without touching
// the disk.
func (e *Engine) finishDryRun(
	opts Options,
	plan []placement.Placement,
	stats report.Statistics,
	clusters []report.ClusterSummary,
	outcomes map[string]*report.ImageOutcome,
	visionErrors []report.VisionError,
) (*Summary, error) {
	categories := make(map[string]int)
	for _, pl := range plan {
		log.Infof("dry-run: would %s %s -> %s", opts.FileMode, pl.SourcePath, pl.DestPath)
		categories[topDir(pl.DestDir)]++
		if o := outcomes[pl.SourcePath]; o != nil && o.Outcome == "" {
			o.Outcome = "dry-run"
			o.Destination = pl.DestPath
		}
	}
	for dir, count := range categories {
		log.Infof("dry-run: %s: %d photo(s)", dir, count)
	}

	summary := &Summary{
		RunID:      opts.RunID,
		Statistics: stats,
		Categories: categories,
		Clusters:   clusters,
	}
	if stats.Skipped > 0 || len(visionErrors) > 0 {
		return summary, fmt.Errorf("%w: %d skipped, %d vision errors",
			ErrPartialFailure, stats.Skipped, len(visionErrors))
	}
	return summary, nil
}

// finishExecute performs the plan, stamps capture times onto destinations,
// and writes the report.
func (e *Engine) finishExecute(
	ctx context.Context,
	opts Options,
	plan []placement.Placement,
	stats report.Statistics,
	clusters []report.ClusterSummary,
	outcomes map[string]*report.ImageOutcome,
	captureTimes map[string]*time.Time,
	visionErrors []report.VisionError,
) (*Summary, error) {
	if err := e.fs.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	executor := placement.NewExecutor(e.fs, opts.OutputDir)
	result, err := executor.Execute(ctx, plan, opts.FileMode, opts.RunID)
	if err != nil && result == nil {
		return nil, err
	}

	stats.Placed = result.Placed
	stats.Failed = result.Failed
	categories := make(map[string]int)
	for _, pl := range plan {
		dest, placed := result.FinalPaths[pl.SourcePath]
		o := outcomes[pl.SourcePath]
		if placed {
			categories[topDir(pl.DestDir)]++
			if o != nil {
				if o.Outcome == "" {
					o.Outcome = "placed"
				}
				o.Destination = dest
			}
			if t := captureTimes[pl.SourcePath]; t != nil {
				if stampErr := capturetime.StampFile(dest, *t); stampErr != nil {
					log.Debugf("could not stamp capture time: %v", stampErr)
				}
			}
		} else if o != nil && o.Outcome == "" {
			o.Outcome = "failed"
		}
	}
	for _, failure := range result.Failures {
		if o := outcomes[failure.SourcePath]; o != nil {
			o.Outcome = "failed"
			o.Error = failure.Err.Error()
		}
	}

	rep := &report.Report{
		RunID:     opts.RunID,
		Mode:      string(opts.Mode),
		CreatedAt: result.Manifest.Created,
		Config: report.ConfigSnapshot{
			Mode:                string(opts.Mode),
			ConfidenceThreshold: opts.Confidence,
			TExactSeconds:       e.cfg.TExactSeconds,
			THighSeconds:        e.cfg.THighSeconds,
			Provider:            e.cfg.Provider,
			Model:               vision.ResolveModel(e.cfg.Model(), e.cfg.Provider),
			CopyOrMove:          string(opts.FileMode),
			DryRun:              false,
		},
		Statistics:   stats,
		Categories:   categories,
		Clusters:     clusters,
		Images:       orderedOutcomes(plan, outcomes),
		VisionErrors: visionErrors,
	}
	if writeErr := report.Write(e.fs, opts.OutputDir, rep); writeErr != nil {
		log.Warnf("failed to write report: %v", writeErr)
	}

	summary := &Summary{
		RunID:      opts.RunID,
		Statistics: stats,
		Categories: categories,
		Clusters:   clusters,
		ReportPath: filepath.Join(opts.OutputDir, report.FileName),
	}
	logSummary(summary)

	if err != nil {
		// Cancelled mid-execution; the manifest covers what was placed.
		return summary, err
	}
	if stats.Failed > 0 || stats.Skipped > 0 || len(visionErrors) > 0 {
		return summary, fmt.Errorf("%w: %d failed, %d skipped, %d vision errors",
			ErrPartialFailure, stats.Failed, stats.Skipped, len(visionErrors))
	}
	return summary, nil
}

// orderedOutcomes returns image outcomes in plan order, with analysis-only
// failures (never planned) appended after.
func orderedOutcomes(plan []placement.Placement, outcomes map[string]*report.ImageOutcome) []report.ImageOutcome {
	ordered := make([]report.ImageOutcome, 0, len(outcomes))
	emitted := make(map[string]bool, len(outcomes))
	for _, pl := range plan {
		if o := outcomes[pl.SourcePath]; o != nil && !emitted[pl.SourcePath] {
			ordered = append(ordered, *o)
			emitted[pl.SourcePath] = true
		}
	}
	for _, o := range outcomes {
		if !emitted[o.Path] {
			ordered = append(ordered, *o)
		}
	}
	return ordered
}

// summarizeClusters renders the clusterer state for the report.
func summarizeClusters(clusterer *cluster.Clusterer, names map[int]string) []report.ClusterSummary {
	all := clusterer.Clusters()
	if len(all) == 0 {
		return nil
	}
	summaries := make([]report.ClusterSummary, 0, len(all))
	for _, cl := range all {
		summaries = append(summaries, report.ClusterSummary{
			Name: names[cl.ID],
			Size: len(cl.Members),
			Bib:  cl.Bib,
		})
	}
	return summaries
}

// logSummary prints the end-of-run totals.
func logSummary(s *Summary) {
	log.Infof("run %s complete: %d placed, %d failed, %d skipped (%d vision calls, %d cache hits)",
		s.RunID, s.Statistics.Placed, s.Statistics.Failed, s.Statistics.Skipped,
		s.Statistics.VisionCalls, s.Statistics.CacheHits)
	for _, cl := range s.Clusters {
		log.Infof("cluster %s: %d photo(s)", cl.Name, cl.Size)
	}
}

// flushCache persists the cache, logging rather than failing.
func (e *Engine) flushCache() {
	if err := e.cache.Flush(); err != nil {
		log.Warnf("failed to flush analysis cache: %v", err)
	}
}

// maxImageBytes converts the configured MB cap to bytes.
func (e *Engine) maxImageBytes() int64 {
	return int64(e.cfg.MaxImageMB * 1024 * 1024)
}

// topDir returns the first path element of a relative destination dir.
func topDir(dir string) string {
	dir = filepath.ToSlash(dir)
	if i := strings.IndexByte(dir, '/'); i != -1 {
		return dir[:i]
	}
	return dir
}
