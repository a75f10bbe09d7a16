package cli

import (
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/smegmarip/photo-organizer/internal/cache"
	"github.com/smegmarip/photo-organizer/internal/config"
	"github.com/smegmarip/photo-organizer/internal/organize"
	"github.com/smegmarip/photo-organizer/internal/placement"
	"github.com/smegmarip/photo-organizer/internal/roster"
)

// ============================================================================
// organize Command
// ============================================================================

type organizeOptions struct {
	output     string
	mode       string
	copyOrMove string
	dryRun     bool
	recursive  bool
	confidence float64
	undo       bool
}

func newOrganizeCommand() *cobra.Command {
	opts := organizeOptions{}

	cmd := &cobra.Command{
		Use:   "organize [SOURCE_DIR]",
		Short: "Sort a directory of photos into per-subject folders",
		Long: `Analyze every photo under SOURCE_DIR and place it in the output directory:
known people into directories named after them (database mode), unrecognized
subjects grouped by outfit (auto-cluster mode). Every run writes a reversal
manifest; --undo puts everything back.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrganize(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "./organized_photos", "output directory")
	flags.StringVar(&opts.mode, "mode", string(organize.ModeDatabase), "classification mode: database or auto-cluster")
	flags.StringVar(&opts.copyOrMove, "copy-or-move", string(placement.ModeCopy), "file operation: copy or move")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "log placements without touching any file")
	flags.BoolVarP(&opts.recursive, "recursive", "r", true, "descend into subdirectories")
	flags.Float64Var(&opts.confidence, "confidence", 0, "similarity threshold in [0,1] (default per mode)")
	flags.BoolVar(&opts.undo, "undo", false, "reverse the previous run recorded in the output directory")

	return cmd
}

func runOrganize(cmd *cobra.Command, opts organizeOptions, args []string) error {
	fs := afero.NewOsFs()

	if opts.undo {
		result, err := placement.Undo(fs, opts.output)
		if err != nil {
			if result != nil && result.Failed > 0 {
				return fmt.Errorf("%w: %v", organize.ErrPartialFailure, err)
			}
			return err
		}
		log.Infof("restored %d file(s), pruned %d directories", result.Restored, result.DirsPruned)
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("SOURCE_DIR is required (or use --undo)")
	}
	sourceDir := args[0]

	mode := organize.Mode(opts.mode)
	if mode != organize.ModeDatabase && mode != organize.ModeAutoCluster {
		return fmt.Errorf("--mode must be %q or %q, got %q",
			organize.ModeDatabase, organize.ModeAutoCluster, opts.mode)
	}
	fileMode := placement.FileMode(opts.copyOrMove)
	if fileMode != placement.ModeCopy && fileMode != placement.ModeMove {
		return fmt.Errorf("--copy-or-move must be %q or %q, got %q",
			placement.ModeCopy, placement.ModeMove, opts.copyOrMove)
	}
	if cmd.Flags().Changed("confidence") && (opts.confidence < 0 || opts.confidence > 1) {
		return fmt.Errorf("--confidence must be in [0, 1], got %v", opts.confidence)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	confidence := cfg.Confidence(mode == organize.ModeAutoCluster)
	if cmd.Flags().Changed("confidence") {
		confidence = opts.confidence
	}

	ctx := cmd.Context()
	client, err := newVisionClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	analysisCache, err := cache.Load(fs, cache.FileName)
	if err != nil {
		return err
	}

	engine := organize.New(cfg, fs, client, analysisCache)
	_, err = engine.Run(ctx, organize.Options{
		SourceDir:  sourceDir,
		OutputDir:  opts.output,
		Mode:       mode,
		FileMode:   fileMode,
		DryRun:     opts.dryRun,
		Recursive:  opts.recursive,
		Confidence: confidence,
		RunID:      uuid.NewString(),
		RosterPath: roster.FileName,
	})
	return err
}
