// Package search talks to the search engine's REST API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Client indexes and queries documents.
type Client struct {
	base     string
	username string
	password string
	http     *http.Client
	log      logrus.FieldLogger
}

// New returns a client for domain. A bare host name is reached over https.
func New(domain, username, password string, timeout time.Duration, log logrus.FieldLogger) *Client {
	base := strings.TrimRight(domain, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Client{
		base:     base,
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
		log:      log.WithField("component", "search"),
	}
}

// IndexResult is the engine's reply to an index request.
type IndexResult struct {
	Index   string `json:"_index"`
	ID      string `json:"_id"`
	Version int    `json:"_version"`
	Result  string `json:"result"`
}

// Index creates or replaces the document with the given id.
func (c *Client) Index(ctx context.Context, index, id string, doc any) (IndexResult, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return IndexResult{}, fmt.Errorf("marshal document: %w", err)
	}

	path := "/" + url.PathEscape(index) + "/_doc/" + url.PathEscape(id)
	start := time.Now()
	var res IndexResult
	if err := c.do(ctx, http.MethodPut, path, body, &res); err != nil {
		return IndexResult{}, fmt.Errorf("index %s/%s: %w", index, id, err)
	}

	c.log.WithFields(logrus.Fields{
		"index":       index,
		"id":          id,
		"result":      res.Result,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("document indexed")
	return res, nil
}

// Hit is one search result.
type Hit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

// MoreLikeThis finds documents whose field text resembles like.
func (c *Client) MoreLikeThis(ctx context.Context, index, field, like string, size int) ([]Hit, error) {
	query := map[string]any{
		"size": size,
		"query": map[string]any{
			"more_like_this": map[string]any{
				"fields":        []string{field},
				"like":          like,
				"min_term_freq": 1,
				"min_doc_freq":  2,
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	var res searchResponse
	if err := c.do(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_search", body, &res); err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	return res.Hits.Hits, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, target any) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 30 * time.Second

	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.username != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d: %s", resp.StatusCode, string(respBody))
			return lastErr
		}
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("request rejected: status %d: %s", resp.StatusCode, string(respBody))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(respBody, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(respBody))
			return backoff.Permanent(lastErr)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return lastErr
	}
	return nil
}
