package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transcript-indexer-go/internal/assistant"
	"transcript-indexer-go/internal/contacts"
	"transcript-indexer-go/internal/events"
	"transcript-indexer-go/internal/logger"
	"transcript-indexer-go/internal/pipeline"
	"transcript-indexer-go/internal/segmenter"
	"transcript-indexer-go/internal/types"
)

const maxBodyBytes = 4 << 20

type executionRunner interface {
	Start(ctx context.Context, req types.RecordingRequest) (types.Execution, error)
	Get(ctx context.Context, name string) (types.Execution, error)
	Running(ctx context.Context) ([]string, error)
}

type segmentHandler interface {
	HandleSegment(ctx context.Context, seg types.ContactSegment) (assistant.Recommendation, bool, error)
}

type stepProcessor interface {
	Process(ctx context.Context, transcriptionURL string, vocab map[string]string) (types.ObjectLocation, error)
}

type contactReader interface {
	Get(ctx context.Context, contactID string) (contacts.Details, error)
}

type server struct {
	log       *logger.Logger
	decoder   *events.Decoder
	trigger   *events.Trigger
	runner    executionRunner
	assistant segmentHandler
	processor stepProcessor
	contacts  contactReader
	metrics   http.Handler
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	metrics := s.metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	mux.Handle("GET /metrics", metrics)
	mux.HandleFunc("POST /events/recordings", s.handleRecordingEvents)
	mux.HandleFunc("POST /events/contacts", s.handleContactEvents)
	mux.HandleFunc("POST /executions", s.handleStartExecution)
	mux.HandleFunc("GET /executions", s.handleRunningExecutions)
	mux.HandleFunc("GET /executions/{name}", s.handleGetExecution)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /contacts/{id}", s.handleGetContact)
	return s.log.Middleware(mux)
}

func (s *server) handleRecordingEvents(w http.ResponseWriter, r *http.Request) {
	var batch events.Batch
	if !s.decode(w, r, &batch) {
		return
	}
	started, err := s.trigger.Handle(r.Context(), batch)
	resp := struct {
		Executions []types.Execution `json:"executions"`
		Error      string            `json:"error,omitempty"`
	}{Executions: started}
	status := http.StatusAccepted
	if err != nil {
		resp.Error = err.Error()
		if len(started) == 0 {
			status = http.StatusUnprocessableEntity
		}
	}
	s.writeJSON(w, r, status, resp)
}

func (s *server) handleContactEvents(w http.ResponseWriter, r *http.Request) {
	var batch events.Batch
	if !s.decode(w, r, &batch) {
		return
	}
	segs, decodeErr := s.decoder.ContactSegments(batch)
	errs := []error{decodeErr}
	recs := []assistant.Recommendation{}
	for _, seg := range segs {
		rec, handled, err := s.assistant.HandleSegment(r.Context(), seg)
		if err != nil {
			errs = append(errs, fmt.Errorf("contact %s: %w", seg.ContactID, err))
			continue
		}
		if handled {
			recs = append(recs, rec)
		}
	}
	resp := struct {
		Recommendations []assistant.Recommendation `json:"recommendations"`
		Error           string                     `json:"error,omitempty"`
	}{Recommendations: recs}
	if err := errors.Join(errs...); err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *server) handleStartExecution(w http.ResponseWriter, r *http.Request) {
	var req types.RecordingRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.BucketName == "" || req.BucketKey == "" {
		http.Error(w, "bucketName and bucketKey are required", http.StatusBadRequest)
		return
	}
	exec, err := s.runner.Start(r.Context(), req)
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("start execution failed")
		http.Error(w, "could not start execution", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, http.StatusAccepted, exec)
}

func (s *server) handleRunningExecutions(w http.ResponseWriter, r *http.Request) {
	names, err := s.runner.Running(r.Context())
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("list executions failed")
		http.Error(w, "could not list executions", http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, r, http.StatusOK, map[string][]string{"running": names})
}

func (s *server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.runner.Get(r.Context(), r.PathValue("name"))
	if errors.Is(err, pipeline.ErrExecutionNotFound) {
		http.Error(w, "execution not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("load execution failed")
		http.Error(w, "could not load execution", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, http.StatusOK, exec)
}

// processEvent is the payload the workflow hands to the process step.
type processEvent struct {
	TranscribeStatus struct {
		TranscriptionURL string `json:"transcriptionUrl"`
	} `json:"transcribeStatus"`
	VocabularyInfo map[string]string `json:"vocabularyInfo"`
}

func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var ev processEvent
	if !s.decode(w, r, &ev) {
		return
	}
	if ev.TranscribeStatus.TranscriptionURL == "" {
		http.Error(w, "missing transcribeStatus.transcriptionUrl", http.StatusBadRequest)
		return
	}
	loc, err := s.processor.Process(r.Context(), ev.TranscribeStatus.TranscriptionURL, ev.VocabularyInfo)
	if err != nil {
		s.log.WithRequest(r).WithError(err).Warn("processor returned error")
		status := http.StatusBadGateway
		if errors.Is(err, segmenter.ErrMalformedTranscript) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.writeJSON(w, r, http.StatusOK, loc)
}

func (s *server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	d, err := s.contacts.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, contacts.ErrNotFound) {
		http.Error(w, "contact not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("load contact failed")
		http.Error(w, "could not load contact", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, r, http.StatusOK, d)
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.log.WithRequest(r).WithError(err).Warn("invalid request body")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.WithRequest(r).WithError(err).Error("failed to write response")
	}
}
