// Package pipeline runs a recording through transcription, processing and indexing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/metrics"
	"transcript-indexer-go/internal/transcription"
	"transcript-indexer-go/internal/types"
)

// Stages, in order.
const (
	StageSubmit  = "submit"
	StagePoll    = "poll"
	StageProcess = "process"
	StageIndex   = "index"
	StageDone    = "done"
)

type Transcriber interface {
	StartJob(ctx context.Context, req types.RecordingRequest) (string, error)
	JobStatus(ctx context.Context, name string) (transcription.Status, error)
}

type TranscriptProcessor interface {
	Process(ctx context.Context, transcriptionURL string, vocab map[string]string) (types.ObjectLocation, error)
}

type Uploader interface {
	Upload(ctx context.Context, req types.RecordingRequest, loc types.ObjectLocation) error
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 30 * time.Minute
)

type Config struct {
	SubmitAttempts int
	// SubmitBackoff is the wait before the first submission retry.
	SubmitBackoff    time.Duration
	PollInterval     time.Duration
	PollTimeout      time.Duration
	ExecutionTimeout time.Duration
}

// Runner executes workflows and records their state.
type Runner struct {
	cfg         Config
	transcriber Transcriber
	processor   TranscriptProcessor
	uploader    Uploader
	store       StateStore
	metrics     *metrics.Metrics
	log         logrus.FieldLogger

	wg sync.WaitGroup
}

func New(cfg Config, t Transcriber, p TranscriptProcessor, u Uploader, store StateStore, m *metrics.Metrics, log logrus.FieldLogger) *Runner {
	if cfg.SubmitAttempts < 1 {
		cfg.SubmitAttempts = 1
	}
	if cfg.SubmitBackoff <= 0 {
		cfg.SubmitBackoff = time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = cfg.PollTimeout + 10*time.Minute
	}
	return &Runner{
		cfg:         cfg,
		transcriber: t,
		processor:   p,
		uploader:    u,
		store:       store,
		metrics:     m,
		log:         log.WithField("component", "pipeline"),
	}
}

func newExecution(req types.RecordingRequest) types.Execution {
	now := time.Now().UTC()
	return types.Execution{
		Name:      uuid.New().String(),
		Status:    types.ExecutionRunning,
		Stage:     StageSubmit,
		Request:   req,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Start records a new execution and runs it in the background. The execution
// outlives ctx and is bounded by the configured execution timeout instead.
func (r *Runner) Start(ctx context.Context, req types.RecordingRequest) (types.Execution, error) {
	exec := newExecution(req)
	if err := r.store.Save(ctx, exec); err != nil {
		return types.Execution{}, err
	}

	running := exec
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.ExecutionTimeout)
		defer cancel()
		_ = r.execute(runCtx, &running)
	}()
	return exec, nil
}

// Run executes a workflow and returns its final state.
func (r *Runner) Run(ctx context.Context, req types.RecordingRequest) (types.Execution, error) {
	exec := newExecution(req)
	if err := r.store.Save(ctx, exec); err != nil {
		return types.Execution{}, err
	}
	runCtx, cancel := context.WithTimeout(ctx, r.cfg.ExecutionTimeout)
	defer cancel()
	err := r.execute(runCtx, &exec)
	return exec, err
}

// Get returns the stored state of an execution.
func (r *Runner) Get(ctx context.Context, name string) (types.Execution, error) {
	return r.store.Load(ctx, name)
}

// Running lists unfinished executions.
func (r *Runner) Running(ctx context.Context) ([]string, error) {
	return r.store.Running(ctx)
}

// Wait blocks until every execution started with Start has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, exec *types.Execution) (err error) {
	log := r.log.WithFields(logrus.Fields{"execution": exec.Name, "dynamo_id": exec.Request.DynamoID})
	log.Info("execution started")

	defer func() {
		exec.UpdatedAt = time.Now().UTC()
		if err != nil {
			exec.Status = types.ExecutionFailed
			exec.Error = err.Error()
			log.WithError(err).WithField("stage", exec.Stage).Error("execution failed")
		} else {
			exec.Status = types.ExecutionSucceeded
			exec.Stage = StageDone
			log.WithField("duration_ms", time.Since(exec.StartedAt).Milliseconds()).Info("execution succeeded")
		}
		r.metrics.Executions.WithLabelValues(exec.Status).Inc()
		r.save(context.WithoutCancel(ctx), log, *exec)
		if err != nil {
			err = fmt.Errorf("execution %s failed at %s: %w", exec.Name, exec.Stage, err)
		}
	}()

	start := time.Now()
	job, err := r.submit(ctx, exec.Request)
	r.metrics.StageSeconds.WithLabelValues(StageSubmit).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	exec.TranscribeJob = job
	r.advance(ctx, log, exec, StagePoll)

	start = time.Now()
	url, err := r.poll(ctx, log, job)
	r.metrics.StageSeconds.WithLabelValues(StagePoll).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	exec.TranscriptionURL = url
	r.advance(ctx, log, exec, StageProcess)

	loc, err := r.processor.Process(ctx, url, exec.Request.Vocabulary)
	if err != nil {
		return err
	}
	exec.ProcessedTranscription = &loc
	r.advance(ctx, log, exec, StageIndex)

	return r.uploader.Upload(ctx, exec.Request, loc)
}

func (r *Runner) advance(ctx context.Context, log logrus.FieldLogger, exec *types.Execution, stage string) {
	exec.Stage = stage
	exec.UpdatedAt = time.Now().UTC()
	log.WithField("stage", stage).Debug("stage reached")
	r.save(ctx, log, *exec)
}

func (r *Runner) save(ctx context.Context, log logrus.FieldLogger, exec types.Execution) {
	if err := r.store.Save(ctx, exec); err != nil {
		log.WithError(err).Warn("failed to persist execution state")
	}
}

func (r *Runner) submit(ctx context.Context, req types.RecordingRequest) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.SubmitBackoff
	bo.MaxElapsedTime = 0

	var job string
	op := func() error {
		name, err := r.transcriber.StartJob(ctx, req)
		if errors.Is(err, transcription.ErrUnsupportedMediaType) {
			return backoff.Permanent(err)
		}
		if err != nil {
			r.log.WithError(err).Warn("transcription submit failed")
			return err
		}
		job = name
		return nil
	}
	retries := backoff.WithMaxRetries(bo, uint64(r.cfg.SubmitAttempts-1))
	if err := backoff.Retry(op, backoff.WithContext(retries, ctx)); err != nil {
		return "", err
	}
	return job, nil
}

// poll checks the job every PollInterval until it completes, fails or the
// poll timeout passes. It returns the result document URL.
func (r *Runner) poll(ctx context.Context, log logrus.FieldLogger, job string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PollTimeout)
	defer cancel()

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		st, err := r.transcriber.JobStatus(ctx, job)
		switch {
		case err != nil:
			log.WithError(err).Warn("transcription status check failed")
		case st.Status == transcription.StatusCompleted:
			return st.TranscriptionURL, nil
		case st.Status == transcription.StatusFailed:
			return "", fmt.Errorf("transcription job %s failed: %s", job, st.FailureReason)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for transcription job %s: %w", job, ctx.Err())
		case <-ticker.C:
		}
	}
}
