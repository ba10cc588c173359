// Command indexer runs the transcript pipeline offline: segmenting saved
// result documents and backfilling historical recordings from a manifest.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"transcript-indexer-go/internal/logger"
)

func newRootCommand(log *logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "indexer",
		Short:         "Offline tools for the call transcript indexer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSegmentCommand())
	root.AddCommand(newBackfillCommand(log))
	return root
}

func main() {
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(log).ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("command failed")
		stop()
		os.Exit(1)
	}
}
