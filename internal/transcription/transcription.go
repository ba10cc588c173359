package transcription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/awsjson"
	"transcript-indexer-go/internal/types"
)

// ErrUnsupportedMediaType is returned for recordings whose content type has no media format.
var ErrUnsupportedMediaType = errors.New("unsupported audio type")

// Job statuses reported by the service.
const (
	StatusQueued     = "QUEUED"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// MediaFormats maps upload content types to media formats.
var MediaFormats = map[string]string{
	"audio/mpeg":      "mp3",
	"audio/wav":       "wav",
	"audio/flac":      "flac",
	"audio/mp4a-latm": "mp4",
}

// MediaFormat returns the media format for a content type.
func MediaFormat(contentType string) (string, error) {
	f, ok := MediaFormats[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, contentType)
	}
	return f, nil
}

type Config struct {
	Endpoint         string
	Region           string
	Language         string
	MaxSpeakerLabels int
	Timeout          time.Duration
}

// Client starts and tracks transcription jobs.
type Client struct {
	api  *awsjson.Client
	http *http.Client
	cfg  Config
	log  logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) *Client {
	api := awsjson.New(cfg.Endpoint, "Transcribe", cfg.Timeout)
	// the orchestrator retries submission itself
	api.MaxAttempts = 2
	return &Client{
		api:  api,
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
		log:  log.WithField("component", "transcription"),
	}
}

type startJobRequest struct {
	TranscriptionJobName string           `json:"TranscriptionJobName"`
	LanguageCode         string           `json:"LanguageCode"`
	MediaFormat          string           `json:"MediaFormat"`
	Media                media            `json:"Media"`
	Settings             settings         `json:"Settings"`
	ContentRedaction     contentRedaction `json:"ContentRedaction"`
}

type media struct {
	MediaFileURI string `json:"MediaFileUri"`
}

type settings struct {
	ShowSpeakerLabels bool `json:"ShowSpeakerLabels"`
	MaxSpeakerLabels  int  `json:"MaxSpeakerLabels"`
}

type contentRedaction struct {
	RedactionType   string `json:"RedactionType"`
	RedactionOutput string `json:"RedactionOutput"`
}

type jobResponse struct {
	TranscriptionJob struct {
		TranscriptionJobName   string `json:"TranscriptionJobName"`
		TranscriptionJobStatus string `json:"TranscriptionJobStatus"`
		FailureReason          string `json:"FailureReason"`
		Transcript             struct {
			TranscriptFileURI         string `json:"TranscriptFileUri"`
			RedactedTranscriptFileURI string `json:"RedactedTranscriptFileUri"`
		} `json:"Transcript"`
	} `json:"TranscriptionJob"`
}

// MediaURI is the regional object URL the service reads the recording from.
func (c *Client) MediaURI(bucket, key string) string {
	return fmt.Sprintf("https://s3-%s.amazonaws.com/%s/%s", c.cfg.Region, bucket, key)
}

// StartJob submits a speaker-labelled, PII-redacted transcription job for the
// recording and returns the job name.
func (c *Client) StartJob(ctx context.Context, req types.RecordingRequest) (string, error) {
	format, err := MediaFormat(req.FileType)
	if err != nil {
		return "", err
	}

	name := uuid.New().String()
	log := c.log.WithFields(logrus.Fields{
		"job":        name,
		"media_type": req.FileType,
		"bucket":     req.BucketName,
		"key":        req.BucketKey,
	})

	in := startJobRequest{
		TranscriptionJobName: name,
		LanguageCode:         c.cfg.Language,
		MediaFormat:          format,
		Media:                media{MediaFileURI: c.MediaURI(req.BucketName, req.BucketKey)},
		Settings:             settings{ShowSpeakerLabels: true, MaxSpeakerLabels: c.cfg.MaxSpeakerLabels},
		ContentRedaction:     contentRedaction{RedactionType: "PII", RedactionOutput: "redacted"},
	}
	if err := c.api.Call(ctx, "StartTranscriptionJob", in, nil); err != nil {
		log.WithError(err).Error("start transcription job failed")
		return "", fmt.Errorf("start transcription job: %w", err)
	}

	log.Info("transcription job started")
	return name, nil
}

// Status is the state of a transcription job.
type Status struct {
	Status string `json:"status"`
	// TranscriptionURL is the redacted result document, set once the job completed.
	TranscriptionURL string `json:"transcriptionUrl,omitempty"`
	FailureReason    string `json:"failureReason,omitempty"`
}

// JobStatus reports the job's status.
func (c *Client) JobStatus(ctx context.Context, name string) (Status, error) {
	var resp jobResponse
	in := map[string]string{"TranscriptionJobName": name}
	if err := c.api.Call(ctx, "GetTranscriptionJob", in, &resp); err != nil {
		return Status{}, fmt.Errorf("get transcription job %s: %w", name, err)
	}

	job := resp.TranscriptionJob
	st := Status{Status: job.TranscriptionJobStatus, FailureReason: job.FailureReason}
	if st.Status == StatusCompleted {
		st.TranscriptionURL = job.Transcript.RedactedTranscriptFileURI
	}
	c.log.WithFields(logrus.Fields{"job": name, "status": st.Status}).Debug("transcription job status")
	return st, nil
}

// FetchResults downloads the result document behind url.
func (c *Client) FetchResults(ctx context.Context, url string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 12 * time.Second

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("download failed: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("download failed: status %d: %s", resp.StatusCode, string(b)))
		}
		body = b
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
