// Package extractor detects entities and key phrases in transcript text.
package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/awsjson"
	"transcript-indexer-go/internal/types"
)

// MaxBatchSize is the largest number of documents one batch call accepts.
const MaxBatchSize = 25

// Client calls the NLP service.
type Client struct {
	api      *awsjson.Client
	language string
	log      logrus.FieldLogger
}

func New(endpoint, language string, timeout time.Duration, log logrus.FieldLogger) *Client {
	return &Client{
		api:      awsjson.New(endpoint, "Comprehend_20171127", timeout),
		language: language,
		log:      log.WithField("component", "extractor"),
	}
}

type batchRequest struct {
	TextList     []string `json:"TextList"`
	LanguageCode string   `json:"LanguageCode"`
}

type detectRequest struct {
	Text         string `json:"Text"`
	LanguageCode string `json:"LanguageCode"`
}

// BatchDetectEntities detects entities in every text. Texts are sent in
// batches of MaxBatchSize and result indexes refer to positions in texts.
func (c *Client) BatchDetectEntities(ctx context.Context, texts []string) (types.BatchEntitiesResponse, error) {
	var out types.BatchEntitiesResponse
	err := c.eachBatch(texts, func(offset int, batch []string) error {
		var resp types.BatchEntitiesResponse
		if err := c.api.Call(ctx, "BatchDetectEntities", batchRequest{TextList: batch, LanguageCode: c.language}, &resp); err != nil {
			return err
		}
		for _, r := range resp.ResultList {
			r.Index += offset
			out.ResultList = append(out.ResultList, r)
		}
		out.ErrorList = append(out.ErrorList, rebase(resp.ErrorList, offset)...)
		return nil
	})
	if err != nil {
		return types.BatchEntitiesResponse{}, fmt.Errorf("batch detect entities: %w", err)
	}
	return out, nil
}

// BatchDetectKeyPhrases is BatchDetectEntities for key phrases.
func (c *Client) BatchDetectKeyPhrases(ctx context.Context, texts []string) (types.BatchKeyPhrasesResponse, error) {
	var out types.BatchKeyPhrasesResponse
	err := c.eachBatch(texts, func(offset int, batch []string) error {
		var resp types.BatchKeyPhrasesResponse
		if err := c.api.Call(ctx, "BatchDetectKeyPhrases", batchRequest{TextList: batch, LanguageCode: c.language}, &resp); err != nil {
			return err
		}
		for _, r := range resp.ResultList {
			r.Index += offset
			out.ResultList = append(out.ResultList, r)
		}
		out.ErrorList = append(out.ErrorList, rebase(resp.ErrorList, offset)...)
		return nil
	})
	if err != nil {
		return types.BatchKeyPhrasesResponse{}, fmt.Errorf("batch detect key phrases: %w", err)
	}
	return out, nil
}

// DetectEntities runs entity detection on a single document.
func (c *Client) DetectEntities(ctx context.Context, text string) ([]types.Entity, error) {
	var resp struct {
		Entities []types.Entity `json:"Entities"`
	}
	if err := c.api.Call(ctx, "DetectEntities", detectRequest{Text: text, LanguageCode: c.language}, &resp); err != nil {
		return nil, fmt.Errorf("detect entities: %w", err)
	}
	return resp.Entities, nil
}

// DetectKeyPhrases runs key-phrase detection on a single document.
func (c *Client) DetectKeyPhrases(ctx context.Context, text string) ([]types.KeyPhrase, error) {
	var resp struct {
		KeyPhrases []types.KeyPhrase `json:"KeyPhrases"`
	}
	if err := c.api.Call(ctx, "DetectKeyPhrases", detectRequest{Text: text, LanguageCode: c.language}, &resp); err != nil {
		return nil, fmt.Errorf("detect key phrases: %w", err)
	}
	return resp.KeyPhrases, nil
}

func (c *Client) eachBatch(texts []string, fn func(offset int, batch []string) error) error {
	for _, b := range Batches(texts, MaxBatchSize) {
		start := time.Now()
		if err := fn(b.Offset, b.Texts); err != nil {
			return err
		}
		c.log.WithFields(logrus.Fields{
			"offset":      b.Offset,
			"documents":   len(b.Texts),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("batch call finished")
	}
	return nil
}

// Batch is a run of consecutive texts starting at Offset.
type Batch struct {
	Offset int
	Texts  []string
}

// Batches splits texts into runs of at most size documents.
func Batches(texts []string, size int) []Batch {
	var out []Batch
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, Batch{Offset: start, Texts: texts[start:end]})
	}
	return out
}

func rebase(errs []types.BatchItemError, offset int) []types.BatchItemError {
	out := make([]types.BatchItemError, 0, len(errs))
	for _, e := range errs {
		e.Index += offset
		out = append(out, e)
	}
	return out
}
