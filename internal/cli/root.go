// Package cli defines the photo-organizer command tree and maps run errors
// to process exit codes.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/smegmarip/photo-organizer/internal/config"
	"github.com/smegmarip/photo-organizer/internal/organize"
	"github.com/smegmarip/photo-organizer/internal/vision"
)

// ============================================================================
// Root Command
// ============================================================================

// Exit codes. Partial failure means the run finished but at least one photo
// could not be analyzed or placed.
const (
	ExitOK           = 0
	ExitUserError    = 1
	ExitVisionFatal  = 2
	ExitPartialError = 3
)

// Run executes the CLI and returns the process exit code.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		log.Errorf("%v", err)
	}
	return ExitCode(err)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "photo-organizer",
		Short: "Sort photos into per-person directories using a vision model",
		Long: `photo-organizer sorts a directory of photographs into per-subject
subdirectories. Subjects are recognized by their gear and clothing through an
external vision model, either against a database of known people or by
automatic outfit clustering. Analysis results are cached so re-runs are free.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(verbose)
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newOrganizeCommand())
	cmd.AddCommand(newDatabaseCommand())
	return cmd
}

// configureLogging sets up the package-level logger.
func configureLogging(verbose bool) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// ExitCode maps an error from the command tree to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, vision.ErrNoAPIKey):
		// Missing credentials are a configuration problem, not a backend
		// failure.
		return ExitUserError
	case errors.Is(err, organize.ErrPartialFailure):
		return ExitPartialError
	case vision.IsFatal(err):
		return ExitVisionFatal
	default:
		return ExitUserError
	}
}

// newVisionClient builds the configured provider's client. The context is
// only used for backend construction; calls carry their own deadlines.
func newVisionClient(ctx context.Context, cfg *config.Config) (*vision.Client, error) {
	var backend vision.Backend
	var err error
	switch cfg.Provider {
	case config.ProviderClaude:
		backend, err = vision.NewClaudeBackend(cfg.AnthropicAPIKey, cfg.ClaudeModel)
	default:
		backend, err = vision.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
	if err != nil {
		return nil, err
	}

	client := vision.NewClient(backend,
		vision.WithTimeout(cfg.VisionTimeout()),
		vision.WithRetry(cfg.RetryAttempts, cfg.RetryDelay()),
	)
	log.Debugf("vision backend: %s", client.Backend())
	return client, nil
}
