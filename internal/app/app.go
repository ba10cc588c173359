// Package app wires the pipeline components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/assistant"
	"transcript-indexer-go/internal/config"
	"transcript-indexer-go/internal/contacts"
	"transcript-indexer-go/internal/enrichment"
	"transcript-indexer-go/internal/events"
	"transcript-indexer-go/internal/extractor"
	"transcript-indexer-go/internal/indexer"
	"transcript-indexer-go/internal/metrics"
	"transcript-indexer-go/internal/pipeline"
	"transcript-indexer-go/internal/processor"
	"transcript-indexer-go/internal/search"
	"transcript-indexer-go/internal/storage"
	"transcript-indexer-go/internal/transcription"
)

type App struct {
	Store       *storage.FS
	Transcriber *transcription.Client
	NLP         *extractor.Client
	Search      *search.Client
	Processor   *processor.Processor
	Indexer     *indexer.Indexer
	State       pipeline.StateStore
	Runner      *pipeline.Runner
	Contacts    *contacts.Store
	Assistant   *assistant.Assistant
	Decoder     *events.Decoder
	Trigger     *events.Trigger

	closers []func() error
}

// New builds every component. Close releases the Redis client and the contact table.
func New(ctx context.Context, cfg config.Config, m *metrics.Metrics, log logrus.FieldLogger) (*App, error) {
	a := &App{}

	store, err := storage.NewFS(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("open object storage: %w", err)
	}
	a.Store = store

	a.Transcriber = transcription.New(transcription.Config{
		Endpoint:         cfg.TranscribeEndpoint,
		Region:           cfg.Region,
		Language:         cfg.TranscribeLanguage,
		MaxSpeakerLabels: cfg.MaxSpeakerLabels,
		Timeout:          cfg.HTTPTimeout,
	}, log)
	a.NLP = extractor.New(cfg.ComprehendEndpoint, cfg.ComprehendLanguage, cfg.HTTPTimeout, log)
	a.Search = search.New(cfg.ESDomain, cfg.ESUsername, cfg.ESPassword, cfg.HTTPTimeout, log)

	a.Processor = processor.New(processor.Config{
		Bucket:          cfg.BucketName,
		IncludeEntities: cfg.IncludeEntities,
		Thresholds: enrichment.Options{
			EntityThreshold:    cfg.EntityConfidenceThreshold,
			KeyPhraseThreshold: cfg.KeyPhrasesConfidenceThreshold,
		},
	}, a.Transcriber, a.NLP, a.Store, m, log)
	a.Indexer = indexer.New(indexer.Config{
		Index:          cfg.ESIndex,
		ParagraphIndex: cfg.ESParagraphIndex,
		KeepAudio:      cfg.DebugMode,
	}, a.Store, a.Search, m, log)

	if cfg.RedisAddr == "" {
		log.Info("using in-memory execution state")
		a.State = pipeline.NewMemoryStateStore()
	} else {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}
		log.WithField("redis_addr", cfg.RedisAddr).Info("using redis execution state")
		a.State = pipeline.NewRedisStateStore(client, cfg.ExecutionTTL)
		a.closers = append(a.closers, client.Close)
	}

	a.Runner = pipeline.New(pipeline.Config{
		SubmitAttempts: cfg.SubmitAttempts,
		PollInterval:   cfg.PollInterval,
		PollTimeout:    cfg.PollTimeout,
	}, a.Transcriber, a.Processor, a.Indexer, a.State, m, log)

	a.Contacts, err = contacts.Open(cfg.ContactsDB)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open contact table: %w", err)
	}
	a.closers = append(a.closers, a.Contacts.Close)

	a.Assistant = assistant.New(a.NLP, a.Search, a.Contacts, cfg.ESIndex, m, log)
	a.Decoder = events.NewDecoder(m, log)
	a.Trigger = events.NewTrigger(a.Decoder, a.Runner, log)
	return a, nil
}

// Close waits for running executions, then releases connections.
func (a *App) Close() error {
	if a.Runner != nil {
		a.Runner.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
