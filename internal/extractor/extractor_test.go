package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript-indexer-go/internal/types"
)

// fakeNLP answers batch calls with one entity per document and reports an
// item error for any document equal to "bad".
type fakeNLP struct {
	mu      sync.Mutex
	targets []string
	sizes   []int
}

func (f *fakeNLP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.mu.Unlock()

	switch target {
	case "Comprehend_20171127.BatchDetectEntities", "Comprehend_20171127.BatchDetectKeyPhrases":
		var in batchRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.sizes = append(f.sizes, len(in.TextList))
		f.mu.Unlock()

		var results []map[string]any
		var errs []types.BatchItemError
		for i, text := range in.TextList {
			if text == "bad" {
				errs = append(errs, types.BatchItemError{Index: i, ErrorCode: "INTERNAL_SERVER_ERROR"})
				continue
			}
			results = append(results, map[string]any{
				"Index":      i,
				"Entities":   []types.Entity{{Type: "OTHER", Text: text, Score: 0.9}},
				"KeyPhrases": []types.KeyPhrase{{Text: text, Score: 0.9}},
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ResultList": results, "ErrorList": errs})
	case "Comprehend_20171127.DetectEntities":
		_, _ = w.Write([]byte(`{"Entities":[{"Type":"LOCATION","Text":"Surrey","Score":0.97}]}`))
	case "Comprehend_20171127.DetectKeyPhrases":
		_, _ = w.Write([]byte(`{"KeyPhrases":[{"Text":"a break-in","Score":0.91}]}`))
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestClient(t *testing.T) (*Client, *fakeNLP) {
	t.Helper()
	fake := &fakeNLP{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	log, _ := logtest.NewNullLogger()
	return New(srv.URL, "en", time.Second, log), fake
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("chunk %d", i)
	}
	return out
}

func TestBatches(t *testing.T) {
	b := Batches(texts(51), MaxBatchSize)

	require.Len(t, b, 3)
	assert.Equal(t, 0, b[0].Offset)
	assert.Len(t, b[0].Texts, 25)
	assert.Equal(t, 50, b[2].Offset)
	assert.Len(t, b[2].Texts, 1)
	assert.Empty(t, Batches(nil, MaxBatchSize))
}

func TestBatchDetectEntities_SplitsAndRebases(t *testing.T) {
	c, fake := newTestClient(t)
	in := texts(30)
	in[27] = "bad"

	resp, err := c.BatchDetectEntities(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, []int{25, 5}, fake.sizes)
	require.Len(t, resp.ResultList, 29)
	assert.Equal(t, 26, resp.ResultList[26].Index)
	assert.Equal(t, "chunk 28", resp.ResultList[27].Entities[0].Text)
	assert.Equal(t, 28, resp.ResultList[27].Index)
	require.Len(t, resp.ErrorList, 1)
	assert.Equal(t, 27, resp.ErrorList[0].Index)
}

func TestBatchDetectKeyPhrases(t *testing.T) {
	c, fake := newTestClient(t)

	resp, err := c.BatchDetectKeyPhrases(context.Background(), []string{"one", "two"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Comprehend_20171127.BatchDetectKeyPhrases"}, fake.targets)
	require.Len(t, resp.ResultList, 2)
	assert.Equal(t, "two", resp.ResultList[1].KeyPhrases[0].Text)
}

func TestBatchDetect_EmptyInputMakesNoCall(t *testing.T) {
	c, fake := newTestClient(t)

	ents, err := c.BatchDetectEntities(context.Background(), nil)
	require.NoError(t, err)
	phrases, err := c.BatchDetectKeyPhrases(context.Background(), []string{})
	require.NoError(t, err)

	assert.Empty(t, ents.ResultList)
	assert.Empty(t, phrases.ResultList)
	assert.Empty(t, fake.targets)
}

func TestDetectSingleDocument(t *testing.T) {
	c, _ := newTestClient(t)

	ents, err := c.DetectEntities(context.Background(), "someone broke in at Surrey")
	require.NoError(t, err)
	phrases, err := c.DetectKeyPhrases(context.Background(), "someone broke in at Surrey")
	require.NoError(t, err)

	assert.Equal(t, []types.Entity{{Type: "LOCATION", Text: "Surrey", Score: 0.97}}, ents)
	assert.Equal(t, []types.KeyPhrase{{Text: "a break-in", Score: 0.91}}, phrases)
}
