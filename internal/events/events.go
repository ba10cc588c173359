// Package events decodes change-data-capture batches from the recordings and
// contacts tables.
package events

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"transcript-indexer-go/internal/metrics"
	"transcript-indexer-go/internal/types"
)

// ErrMalformedRecord is returned for a change record missing a required attribute.
var ErrMalformedRecord = errors.New("malformed change record")

// Event names
const (
	EventInsert = "INSERT"
	EventModify = "MODIFY"
	EventRemove = "REMOVE"
)

// AttributeValue is a typed table attribute. Exactly one field is set.
type AttributeValue struct {
	S    *string                   `json:"S,omitempty"`
	N    *string                   `json:"N,omitempty"`
	BOOL *bool                     `json:"BOOL,omitempty"`
	M    map[string]AttributeValue `json:"M,omitempty"`
	NULL *bool                     `json:"NULL,omitempty"`
}

// Image is an item as seen by the change stream.
type Image map[string]AttributeValue

func (img Image) String(name string) (string, error) {
	v, ok := img[name]
	if !ok || v.S == nil {
		return "", fmt.Errorf("%w: %s is not a string attribute", ErrMalformedRecord, name)
	}
	return *v.S, nil
}

func (img Image) Number(name string) (float64, error) {
	v, ok := img[name]
	if !ok || v.N == nil {
		return 0, fmt.Errorf("%w: %s is not a number attribute", ErrMalformedRecord, name)
	}
	f, err := strconv.ParseFloat(*v.N, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, name, err)
	}
	return f, nil
}

func (img Image) Bool(name string) (bool, error) {
	v, ok := img[name]
	if !ok || v.BOOL == nil {
		return false, fmt.Errorf("%w: %s is not a boolean attribute", ErrMalformedRecord, name)
	}
	return *v.BOOL, nil
}

func (img Image) Map(name string) (Image, error) {
	v, ok := img[name]
	if !ok || v.M == nil {
		return nil, fmt.Errorf("%w: %s is not a map attribute", ErrMalformedRecord, name)
	}
	return Image(v.M), nil
}

type StreamRecord struct {
	Keys     Image `json:"Keys,omitempty"`
	NewImage Image `json:"NewImage,omitempty"`
	OldImage Image `json:"OldImage,omitempty"`
}

type Record struct {
	EventID   string       `json:"eventID"`
	EventName string       `json:"eventName"`
	DynamoDB  StreamRecord `json:"dynamodb"`
}

// Batch is one delivery of change records.
type Batch struct {
	Records []Record `json:"Records"`
}

// ParseRecordingRequest reads the workflow input from a recordings table item.
func ParseRecordingRequest(img Image) (types.RecordingRequest, error) {
	var (
		req  types.RecordingRequest
		errs []error
	)
	str := func(img Image, name string) string {
		s, err := img.String(name)
		errs = append(errs, err)
		return s
	}

	req.DynamoID = str(img, "id")
	req.Procedure = str(img, "procedure")
	req.Jurisdiction = str(img, "jurisdiction")
	req.Description = str(img, "description")
	req.FileType = str(img, "fileType")
	req.FileName = str(img, "fileName")

	fileData, err := img.Map("fileData")
	if err != nil {
		errs = append(errs, err)
	} else {
		req.BucketName = str(fileData, "bucketName")
		req.BucketKey = str(fileData, "bucketKey")
	}

	if vocab, err := img.Map("vocabulary"); err == nil {
		req.Vocabulary = make(map[string]string, len(vocab))
		for k := range vocab {
			if s, err := vocab.String(k); err == nil {
				req.Vocabulary[k] = s
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return types.RecordingRequest{}, err
	}
	return req, nil
}

// ParseContactSegment reads a live transcript segment from a contacts table item.
func ParseContactSegment(img Image) (types.ContactSegment, error) {
	var (
		seg types.ContactSegment
		err error
	)
	if seg.ContactID, err = img.String("ContactId"); err != nil {
		return seg, err
	}
	if seg.StartTime, err = img.Number("StartTime"); err != nil {
		return seg, err
	}
	if seg.EndTime, err = img.Number("EndTime"); err != nil {
		return seg, err
	}
	if seg.Transcript, err = img.String("Transcript"); err != nil {
		return seg, err
	}
	if seg.IsPartial, err = img.Bool("IsPartial"); err != nil {
		return seg, err
	}
	return seg, nil
}

// Decoder extracts typed items from change batches.
type Decoder struct {
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

// NewDecoder returns a decoder. m may be nil.
func NewDecoder(m *metrics.Metrics, log logrus.FieldLogger) *Decoder {
	return &Decoder{metrics: m, log: log.WithField("component", "events")}
}

// RecordingRequests returns a request for every insert or modify record.
// Other events are skipped. Malformed records are skipped and reported in
// the returned error.
func (d *Decoder) RecordingRequests(batch Batch) ([]types.RecordingRequest, error) {
	return decode(d, batch, ParseRecordingRequest)
}

// ContactSegments returns a segment for every insert or modify record.
func (d *Decoder) ContactSegments(batch Batch) ([]types.ContactSegment, error) {
	return decode(d, batch, ParseContactSegment)
}

func decode[T any](d *Decoder, batch Batch, parse func(Image) (T, error)) ([]T, error) {
	var (
		out  []T
		errs []error
	)
	for _, rec := range batch.Records {
		log := d.log.WithFields(logrus.Fields{"event_id": rec.EventID, "event_name": rec.EventName})
		if rec.EventName != EventInsert && rec.EventName != EventModify {
			log.Info("should only expect insert/modify operations, skipping record")
			d.observe(rec.EventName, "skipped")
			continue
		}
		item, err := parse(rec.DynamoDB.NewImage)
		if err != nil {
			log.WithError(err).Error("malformed change record")
			d.observe(rec.EventName, "malformed")
			errs = append(errs, fmt.Errorf("record %s: %w", rec.EventID, err))
			continue
		}
		d.observe(rec.EventName, "accepted")
		out = append(out, item)
	}
	return out, errors.Join(errs...)
}

func (d *Decoder) observe(eventName, outcome string) {
	if d.metrics != nil {
		d.metrics.CDCEvents.WithLabelValues(eventName, outcome).Inc()
	}
}
