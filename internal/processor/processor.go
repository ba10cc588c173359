// Package processor turns a finished transcription into the stored transcript record.
package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/enrichment"
	"transcript-indexer-go/internal/metrics"
	"transcript-indexer-go/internal/segmenter"
	"transcript-indexer-go/internal/storage"
	"transcript-indexer-go/internal/types"
)

// KeyPrefix is where processed transcripts are written in the bucket.
const KeyPrefix = "calls/transcript/"

// ResultFetcher downloads a transcription result document.
type ResultFetcher interface {
	FetchResults(ctx context.Context, url string) ([]byte, error)
}

// NLP runs batch entity and key-phrase detection.
type NLP interface {
	BatchDetectEntities(ctx context.Context, texts []string) (types.BatchEntitiesResponse, error)
	BatchDetectKeyPhrases(ctx context.Context, texts []string) (types.BatchKeyPhrasesResponse, error)
}

type Config struct {
	Bucket string
	// IncludeEntities controls whether entity lists are stored with the transcript.
	IncludeEntities bool
	Thresholds      enrichment.Options
}

type Processor struct {
	cfg     Config
	fetcher ResultFetcher
	nlp     NLP
	store   storage.ObjectStore
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func New(cfg Config, fetcher ResultFetcher, nlp NLP, store storage.ObjectStore, m *metrics.Metrics, log logrus.FieldLogger) *Processor {
	return &Processor{
		cfg:     cfg,
		fetcher: fetcher,
		nlp:     nlp,
		store:   store,
		metrics: m,
		log:     log.WithField("component", "processor"),
	}
}

// Process fetches the result document at transcriptionURL, builds the
// transcript record and stores it. It returns where the record was written.
func (p *Processor) Process(ctx context.Context, transcriptionURL string, vocab map[string]string) (types.ObjectLocation, error) {
	start := time.Now()
	loc, err := p.process(ctx, transcriptionURL, vocab)
	status := "ok"
	if err != nil {
		status = "error"
	}
	p.metrics.TranscriptsProcessed.WithLabelValues(status).Inc()
	p.metrics.StageSeconds.WithLabelValues("process").Observe(time.Since(start).Seconds())
	return loc, err
}

func (p *Processor) process(ctx context.Context, transcriptionURL string, vocab map[string]string) (types.ObjectLocation, error) {
	data, err := p.fetcher.FetchResults(ctx, transcriptionURL)
	if err != nil {
		return types.ObjectLocation{}, fmt.Errorf("fetch transcription result: %w", err)
	}

	record, err := p.Build(ctx, data, vocab)
	if err != nil {
		return types.ObjectLocation{}, err
	}

	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return types.ObjectLocation{}, fmt.Errorf("marshal transcript record: %w", err)
	}
	loc := types.ObjectLocation{Bucket: p.cfg.Bucket, Key: KeyPrefix + uuid.New().String() + ".json"}
	if err := p.store.Put(ctx, loc.Bucket, loc.Key, body); err != nil {
		return types.ObjectLocation{}, fmt.Errorf("store transcript record: %w", err)
	}

	p.log.WithFields(logrus.Fields{"bucket": loc.Bucket, "key": loc.Key}).Info("transcript record written")
	return loc, nil
}

// Build segments the result document and enriches it with NLP results.
func (p *Processor) Build(ctx context.Context, data []byte, vocab map[string]string) (types.TranscriptRecord, error) {
	in, err := segmenter.Parse(data, vocab)
	if err != nil {
		return types.TranscriptRecord{}, err
	}
	res, err := segmenter.Segment(in)
	if err != nil {
		return types.TranscriptRecord{}, err
	}
	p.metrics.ChunksPerTranscript.Observe(float64(len(res.Chunks)))
	p.log.WithFields(logrus.Fields{
		"chunks":        len(res.Chunks),
		"paragraphs":    len(res.Spoken()),
		"substitutions": res.Substitutions,
	}).Debug("transcript segmented")

	start := time.Now()
	ents, err := p.nlp.BatchDetectEntities(ctx, res.Chunks)
	if err != nil {
		return types.TranscriptRecord{}, err
	}
	p.log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("entity detection finished")

	start = time.Now()
	phrases, err := p.nlp.BatchDetectKeyPhrases(ctx, res.Chunks)
	if err != nil {
		return types.TranscriptRecord{}, err
	}
	p.log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("key phrase detection finished")

	p.metrics.NLPItemErrors.WithLabelValues("batch_detect_entities").Add(float64(len(ents.ErrorList)))
	p.metrics.NLPItemErrors.WithLabelValues("batch_detect_key_phrases").Add(float64(len(phrases.ErrorList)))

	lists, keyPhrases := enrichment.Process(ents, phrases, p.cfg.Thresholds, p.log)
	record := types.TranscriptRecord{
		Transcript: res.Transcript(),
		KeyPhrases: keyPhrases,
	}
	if p.cfg.IncludeEntities {
		record.TranscriptEntities = lists
	}
	return record, nil
}
