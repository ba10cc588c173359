// Package assistant recommends procedures to call takers while a call is live.
package assistant

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/contacts"
	"transcript-indexer-go/internal/metrics"
	"transcript-indexer-go/internal/search"
	"transcript-indexer-go/internal/types"
)

const (
	// WindowStart and WindowEnd bound, in seconds into the call, the segment
	// end times that trigger a recommendation.
	WindowStart = 60.0
	WindowEnd   = 120.0

	ConfidenceThreshold = 0.8
	TopHits             = 3
	Undetermined        = "Undetermined"
)

// Recommendation is what the call taker sees for a contact.
type Recommendation struct {
	ContactID      string   `json:"contactId"`
	RecommendedSOP string   `json:"recommendedSOP"`
	Jurisdiction   string   `json:"jurisdiction"`
	KeyPhrases     []string `json:"keyPhrases"`
}

type Detector interface {
	DetectEntities(ctx context.Context, text string) ([]types.Entity, error)
	DetectKeyPhrases(ctx context.Context, text string) ([]types.KeyPhrase, error)
}

type Searcher interface {
	MoreLikeThis(ctx context.Context, index, field, like string, size int) ([]search.Hit, error)
}

type ContactStore interface {
	Upsert(ctx context.Context, d contacts.Details) error
}

// Generate turns detected locations and similar calls' procedures into the
// recommended procedures and jurisdiction.
func Generate(locations, procedures []string) (sop, jurisdiction string) {
	sop, jurisdiction = Undetermined, Undetermined
	if len(procedures) > 0 {
		sop = strings.Join(procedures, ", ")
	}
	if len(locations) > 0 {
		jurisdiction = locations[0]
	}
	return sop, jurisdiction
}

// InWindow reports whether the segment ends inside the recommendation window.
func InWindow(seg types.ContactSegment) bool {
	return seg.EndTime >= WindowStart && seg.EndTime <= WindowEnd
}

type Assistant struct {
	detector Detector
	searcher Searcher
	contacts ContactStore
	index    string
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

// New builds an assistant that searches index for similar calls. m may be nil.
func New(d Detector, s Searcher, c ContactStore, index string, m *metrics.Metrics, log logrus.FieldLogger) *Assistant {
	return &Assistant{
		detector: d,
		searcher: s,
		contacts: c,
		index:    index,
		metrics:  m,
		log:      log.WithField("component", "assistant"),
	}
}

// HandleSegment produces and stores a recommendation for a segment inside
// the window. It reports false for segments outside it.
func (a *Assistant) HandleSegment(ctx context.Context, seg types.ContactSegment) (Recommendation, bool, error) {
	log := a.log.WithFields(logrus.Fields{"contact_id": seg.ContactID, "end_time": seg.EndTime})
	if !InWindow(seg) {
		log.Debug("segment outside recommendation window")
		a.outcome("ignored")
		return Recommendation{}, false, nil
	}

	rec, err := a.recommend(ctx, seg)
	if err != nil {
		log.WithError(err).Error("recommendation failed")
		a.outcome("error")
		return Recommendation{}, true, err
	}

	log.WithFields(logrus.Fields{
		"recommended_sop": rec.RecommendedSOP,
		"jurisdiction":    rec.Jurisdiction,
		"key_phrases":     len(rec.KeyPhrases),
	}).Info("recommendation stored")
	a.outcome("recommended")
	return rec, true, nil
}

func (a *Assistant) recommend(ctx context.Context, seg types.ContactSegment) (Recommendation, error) {
	entities, err := a.detector.DetectEntities(ctx, seg.Transcript)
	if err != nil {
		return Recommendation{}, err
	}
	phrases, err := a.detector.DetectKeyPhrases(ctx, seg.Transcript)
	if err != nil {
		return Recommendation{}, err
	}

	var locations, keyPhrases []string
	for _, e := range entities {
		if e.Score >= ConfidenceThreshold && e.Type == "LOCATION" {
			locations = append(locations, strings.Trim(e.Text, "\t\n\r"))
		}
	}
	for _, p := range phrases {
		if p.Score >= ConfidenceThreshold {
			keyPhrases = append(keyPhrases, strings.Trim(p.Text, "\t\n\r"))
		}
	}

	hits, err := a.searcher.MoreLikeThis(ctx, a.index, "transcript", seg.Transcript, TopHits)
	if err != nil {
		return Recommendation{}, err
	}
	if len(hits) > TopHits {
		hits = hits[:TopHits]
	}
	var procedures []string
	for _, h := range hits {
		var src struct {
			Procedure string `json:"procedure"`
		}
		if err := json.Unmarshal(h.Source, &src); err != nil || src.Procedure == "" {
			a.log.WithField("hit", h.ID).Warn("similar call has no procedure")
			continue
		}
		procedures = append(procedures, src.Procedure)
	}

	sop, jurisdiction := Generate(locations, procedures)
	rec := Recommendation{
		ContactID:      seg.ContactID,
		RecommendedSOP: sop,
		Jurisdiction:   jurisdiction,
		KeyPhrases:     keyPhrases,
	}
	err = a.contacts.Upsert(ctx, contacts.Details{
		ContactID:        seg.ContactID,
		CallerTranscript: seg.Transcript,
		RecommendedSOP:   sop,
		Jurisdiction:     jurisdiction,
	})
	if err != nil {
		return Recommendation{}, err
	}
	return rec, nil
}

func (a *Assistant) outcome(o string) {
	if a.metrics != nil {
		a.metrics.Recommendations.WithLabelValues(o).Inc()
	}
}
