// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	Port        string

	Region     string
	BucketName string
	StorageDir string

	TranscribeEndpoint string
	TranscribeLanguage string
	MaxSpeakerLabels   int

	ComprehendEndpoint string
	ComprehendLanguage string

	ESDomain         string
	ESUsername       string
	ESPassword       string
	ESIndex          string
	ESParagraphIndex string

	// DebugMode keeps uploaded audio after indexing.
	DebugMode                     bool
	IncludeEntities               bool
	EntityConfidenceThreshold     float64
	KeyPhrasesConfidenceThreshold float64

	RedisAddr    string
	ExecutionTTL time.Duration
	ContactsDB   string

	PollInterval   time.Duration
	PollTimeout    time.Duration
	SubmitAttempts int
	HTTPTimeout    time.Duration
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var p parser
	c := Config{
		Environment: envOr("ENVIRONMENT", "local"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		Port:        envOr("PORT", "8080"),

		Region:     envOr("AWS_REGION", "us-east-1"),
		BucketName: p.required("BUCKET_NAME"),
		StorageDir: envOr("STORAGE_DIR", "./data"),

		TranscribeEndpoint: envOr("TRANSCRIBE_ENDPOINT", "http://localhost:4566"),
		TranscribeLanguage: envOr("TRANSCRIBE_LANGUAGE", "en-US"),
		MaxSpeakerLabels:   p.int("MAX_SPEAKER_LABELS", 2),

		ComprehendEndpoint: envOr("COMPREHEND_ENDPOINT", "http://localhost:4566"),
		ComprehendLanguage: envOr("COMPREHEND_LANGUAGE", "en"),

		ESDomain:         envOr("ES_DOMAIN", "http://localhost:9200"),
		ESUsername:       os.Getenv("ES_USERNAME"),
		ESPassword:       os.Getenv("ES_PASSWORD"),
		ESIndex:          envOr("ES_INDEX", "transcripts"),
		ESParagraphIndex: envOr("ES_PARAGRAPH_INDEX", "paragraphs"),

		DebugMode:                     strings.EqualFold(os.Getenv("DEBUG_MODE"), "TRUE"),
		IncludeEntities:               p.bool("INCLUDE_ENTITIES", true),
		EntityConfidenceThreshold:     p.float("ENTITY_CONFIDENCE_THRESHOLD", 0.5),
		KeyPhrasesConfidenceThreshold: p.float("KEY_PHRASES_CONFIDENCE_THRESHOLD", 0.5),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		ExecutionTTL: p.duration("EXECUTION_TTL", 72*time.Hour),
		ContactsDB:   envOr("CONTACTS_DB", "contacts.sqlite"),

		PollInterval:   p.duration("POLL_INTERVAL", 5*time.Second),
		PollTimeout:    p.duration("POLL_TIMEOUT", 30*time.Minute),
		SubmitAttempts: p.int("SUBMIT_ATTEMPTS", 3),
		HTTPTimeout:    p.duration("HTTP_TIMEOUT", 25*time.Second),
	}

	for _, t := range []struct {
		key string
		v   float64
	}{
		{"ENTITY_CONFIDENCE_THRESHOLD", c.EntityConfidenceThreshold},
		{"KEY_PHRASES_CONFIDENCE_THRESHOLD", c.KeyPhrasesConfidenceThreshold},
	} {
		if t.v < 0 || t.v > 1 {
			p.errs = append(p.errs, fmt.Errorf("%s: must be between 0 and 1, got %v", t.key, t.v))
		}
	}
	for _, d := range []struct {
		key string
		v   time.Duration
	}{
		{"POLL_INTERVAL", c.PollInterval},
		{"POLL_TIMEOUT", c.PollTimeout},
		{"EXECUTION_TTL", c.ExecutionTTL},
		{"HTTP_TIMEOUT", c.HTTPTimeout},
	} {
		if d.v <= 0 {
			p.errs = append(p.errs, fmt.Errorf("%s: must be positive, got %v", d.key, d.v))
		}
	}
	if c.SubmitAttempts < 1 {
		p.errs = append(p.errs, fmt.Errorf("SUBMIT_ATTEMPTS: must be at least 1, got %d", c.SubmitAttempts))
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// parser collects every invalid value instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) required(k string) string {
	v := os.Getenv(k)
	if v == "" {
		p.errs = append(p.errs, fmt.Errorf("%s: required", k))
	}
	return v
}

func (p *parser) int(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return n
}

func (p *parser) float(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return f
}

func (p *parser) bool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return b
}

func (p *parser) duration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return d
}
