package events

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/types"
)

// Starter begins a workflow execution for a recording.
type Starter interface {
	Start(ctx context.Context, req types.RecordingRequest) (types.Execution, error)
}

// Trigger starts one execution per new or changed recording.
type Trigger struct {
	decoder *Decoder
	starter Starter
	log     logrus.FieldLogger
}

func NewTrigger(d *Decoder, s Starter, log logrus.FieldLogger) *Trigger {
	return &Trigger{decoder: d, starter: s, log: log.WithField("component", "trigger")}
}

// Handle starts executions for every usable record in the batch. Executions
// that started are returned even when other records failed.
func (t *Trigger) Handle(ctx context.Context, batch Batch) ([]types.Execution, error) {
	reqs, decodeErr := t.decoder.RecordingRequests(batch)

	var (
		started []types.Execution
		errs    = []error{decodeErr}
	)
	for _, req := range reqs {
		exec, err := t.starter.Start(ctx, req)
		if err != nil {
			t.log.WithError(err).WithField("dynamo_id", req.DynamoID).Error("failed to start execution")
			errs = append(errs, err)
			continue
		}
		t.log.WithFields(logrus.Fields{"dynamo_id": req.DynamoID, "execution": exec.Name}).Info("execution started")
		started = append(started, exec)
	}
	return started, errors.Join(errs...)
}
