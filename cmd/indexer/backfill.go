package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"transcript-indexer-go/internal/app"
	"transcript-indexer-go/internal/config"
	"transcript-indexer-go/internal/dataset"
	"transcript-indexer-go/internal/logger"
	"transcript-indexer-go/internal/metrics"
	"transcript-indexer-go/internal/types"
)

func newBackfillCommand(log *logger.Logger) *cobra.Command {
	var (
		dryRun bool
		bucket string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "backfill <manifest.xlsx>",
		Short: "Transcribe and index historical recordings listed in a manifest",
		Long: `Load recordings from the first sheet of an xlsx manifest and run each one
through the transcription pipeline, one at a time.

Columns are matched by header: id, procedure, jurisdiction, description,
bucket, key, file type and file name. Rows without a key are skipped.

Examples:
  indexer backfill recordings.xlsx --dry-run
  indexer backfill recordings.xlsx --bucket call-uploads --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs, summary, err := dataset.LoadAndSummarize(args[0], bucket, log)
			if err != nil {
				return err
			}
			if limit > 0 && len(reqs) > limit {
				reqs = reqs[:limit]
			}

			if dryRun {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			a, err := app.New(cmd.Context(), cfg, metrics.Default(), log)
			if err != nil {
				return err
			}
			defer a.Close()

			return runBackfill(cmd, a.Runner, reqs, log)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only load and summarise the manifest")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket for rows without one")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most this many recordings (0 = all)")
	return cmd
}

type syncRunner interface {
	Run(ctx context.Context, req types.RecordingRequest) (types.Execution, error)
}

func runBackfill(cmd *cobra.Command, runner syncRunner, reqs []types.RecordingRequest, log logrus.FieldLogger) error {
	failed := 0
	for i, req := range reqs {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		exec, err := runner.Run(cmd.Context(), req)
		entry := log.WithFields(logrus.Fields{
			"dynamo_id": req.DynamoID,
			"execution": exec.Name,
			"progress":  fmt.Sprintf("%d/%d", i+1, len(reqs)),
		})
		if err != nil {
			failed++
			entry.WithError(err).Error("recording failed")
			fmt.Fprintf(cmd.OutOrStdout(), "FAILED  %s  %v\n", req.DynamoID, err)
			continue
		}
		entry.Info("recording indexed")
		fmt.Fprintf(cmd.OutOrStdout(), "OK      %s  %s\n", req.DynamoID, exec.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d recordings failed", failed, len(reqs))
	}
	return nil
}
