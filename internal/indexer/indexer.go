// Package indexer publishes processed transcripts to the search engine.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/metrics"
	"transcript-indexer-go/internal/search"
	"transcript-indexer-go/internal/storage"
	"transcript-indexer-go/internal/types"
)

// DocumentIndexer stores a document under an id.
type DocumentIndexer interface {
	Index(ctx context.Context, index, id string, doc any) (search.IndexResult, error)
}

type Config struct {
	Index string
	// ParagraphIndex, when set, also receives one document per spoken paragraph.
	ParagraphIndex string
	// KeepAudio skips deleting the source recording after indexing.
	KeepAudio bool
}

// ParagraphDocument is one speaker turn of an indexed recording.
type ParagraphDocument struct {
	RecordingID  string `json:"recording_id"`
	Position     int    `json:"position"`
	Speaker      string `json:"speaker,omitempty"`
	Text         string `json:"text"`
	Procedure    string `json:"procedure"`
	Jurisdiction string `json:"jurisdiction"`
}

type Indexer struct {
	cfg     Config
	store   storage.ObjectStore
	search  DocumentIndexer
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func New(cfg Config, store storage.ObjectStore, s DocumentIndexer, m *metrics.Metrics, log logrus.FieldLogger) *Indexer {
	return &Indexer{
		cfg:     cfg,
		store:   store,
		search:  s,
		metrics: m,
		log:     log.WithField("component", "indexer"),
	}
}

// Document builds the index document for a recording and its processed transcript.
func Document(req types.RecordingRequest, record types.TranscriptRecord) types.IndexDocument {
	return types.IndexDocument{
		AudioType:          req.FileType,
		Name:               req.FileName,
		Jurisdiction:       req.Jurisdiction,
		Description:        req.Description,
		Procedure:          req.Procedure,
		AudioS3Location:    "s3://" + req.BucketName + "/" + req.BucketKey,
		Transcript:         record.Transcript,
		TranscriptEntities: record.TranscriptEntities,
		KeyPhrases:         record.KeyPhrases,
	}
}

// Upload indexes the processed transcript at loc under the recording's id and
// then deletes the source recording unless audio is kept.
func (ix *Indexer) Upload(ctx context.Context, req types.RecordingRequest, loc types.ObjectLocation) error {
	start := time.Now()
	defer func() {
		ix.metrics.StageSeconds.WithLabelValues("index").Observe(time.Since(start).Seconds())
	}()

	log := ix.log.WithField("dynamo_id", req.DynamoID)

	data, err := ix.store.Get(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return fmt.Errorf("read processed transcript: %w", err)
	}
	var record types.TranscriptRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("decode processed transcript %s/%s: %w", loc.Bucket, loc.Key, err)
	}

	doc := Document(req, record)
	if _, err := ix.search.Index(ctx, ix.cfg.Index, req.DynamoID, doc); err != nil {
		return err
	}

	if ix.cfg.ParagraphIndex != "" {
		if err := ix.indexParagraphs(ctx, req, record.Transcript); err != nil {
			return err
		}
	}

	if ix.cfg.KeepAudio {
		log.Debug("debug mode, keeping source audio")
		return nil
	}
	if err := ix.store.Delete(ctx, req.BucketName, req.BucketKey); err != nil {
		return fmt.Errorf("delete source audio: %w", err)
	}
	log.WithFields(logrus.Fields{"bucket": req.BucketName, "key": req.BucketKey}).Info("source audio deleted")
	return nil
}

func (ix *Indexer) indexParagraphs(ctx context.Context, req types.RecordingRequest, transcript string) error {
	pos := 0
	for _, p := range strings.Split(transcript, "\n\n") {
		if p == "" {
			continue
		}
		speaker, text := splitSpeaker(p)
		doc := ParagraphDocument{
			RecordingID:  req.DynamoID,
			Position:     pos,
			Speaker:      speaker,
			Text:         text,
			Procedure:    req.Procedure,
			Jurisdiction: req.Jurisdiction,
		}
		id := req.DynamoID + "-" + strconv.Itoa(pos)
		if _, err := ix.search.Index(ctx, ix.cfg.ParagraphIndex, id, doc); err != nil {
			return err
		}
		pos++
	}
	return nil
}

// splitSpeaker separates a "label : text" paragraph.
func splitSpeaker(p string) (string, string) {
	label, text, ok := strings.Cut(p, " : ")
	if !ok || strings.Contains(label, " ") {
		return "", p
	}
	return label, text
}
