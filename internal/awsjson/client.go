// Package awsjson calls managed services that speak the JSON 1.1 RPC protocol.
// Requests go to an endpoint that signs and forwards them, so the client only
// sets the target header and content type.
package awsjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const contentType = "application/x-amz-json-1.1"

// APIError is an error reported by the service in the response body.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d): %s", e.Type, e.StatusCode, e.Message)
}

// Client sends JSON 1.1 requests to one service endpoint.
type Client struct {
	Endpoint string
	// Prefix is the target prefix, e.g. "Transcribe" or "Comprehend_20171127".
	Prefix string
	HTTP   *http.Client
	// MaxAttempts bounds the number of requests per call. Zero means retry
	// until MaxElapsed is reached.
	MaxAttempts uint64
	MaxElapsed  time.Duration
}

// New returns a client with the given timeout on each request.
func New(endpoint, prefix string, timeout time.Duration) *Client {
	return &Client{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		Prefix:     prefix,
		HTTP:       &http.Client{Timeout: timeout},
		MaxElapsed: 30 * time.Second,
	}
}

// Call invokes the operation with in as the request body and decodes the
// response into out. Server errors and transport failures are retried.
func (c *Client) Call(ctx context.Context, operation string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	var bo backoff.BackOff
	exp := backoff.NewExponentialBackOff()
	exp.MaxElapsedTime = c.MaxElapsed
	bo = exp
	if c.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, c.MaxAttempts-1)
	}
	bo = backoff.WithContext(bo, ctx)

	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/", bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Amz-Target", c.Prefix+"."+operation)

		resp, err := c.HTTP.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 300 {
			lastErr = decodeError(resp.StatusCode, body)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return lastErr
			}
			return backoff.Permanent(lastErr)
		}
		if out == nil || len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			lastErr = fmt.Errorf("decode %s response: %w", operation, err)
			return backoff.Permanent(lastErr)
		}
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return fmt.Errorf("%s: %w", operation, lastErr)
	}
	return nil
}

func decodeError(status int, body []byte) *APIError {
	var raw struct {
		Type     string `json:"__type"`
		Message  string `json:"message"`
		MessageU string `json:"Message"`
	}
	_ = json.Unmarshal(body, &raw)

	apiErr := &APIError{StatusCode: status, Type: raw.Type, Message: raw.Message}
	if apiErr.Message == "" {
		apiErr.Message = raw.MessageU
	}
	if i := strings.LastIndex(apiErr.Type, "#"); i >= 0 {
		apiErr.Type = apiErr.Type[i+1:]
	}
	if apiErr.Type == "" {
		apiErr.Type = http.StatusText(status)
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}
