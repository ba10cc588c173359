package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcript-indexer-go/internal/metrics"
	"transcript-indexer-go/internal/types"
)

const recordingsBatch = `{"Records": [
  {"eventID": "1", "eventName": "INSERT", "dynamodb": {"NewImage": {
    "id": {"S": "rec-1"},
    "procedure": {"S": "Break and Enter"},
    "jurisdiction": {"S": "Surrey"},
    "description": {"S": "night call"},
    "fileType": {"S": "audio/mpeg"},
    "fileName": {"S": "call.mp3"},
    "fileData": {"M": {"bucketName": {"S": "uploads"}, "bucketKey": {"S": "public/call.mp3"}}},
    "vocabulary": {"M": {"rcmp": {"S": "RCMP"}}}
  }}},
  {"eventID": "2", "eventName": "REMOVE", "dynamodb": {"OldImage": {"id": {"S": "rec-0"}}}},
  {"eventID": "3", "eventName": "MODIFY", "dynamodb": {"NewImage": {
    "id": {"S": "rec-2"},
    "procedure": {"S": "Theft"},
    "jurisdiction": {"S": "Burnaby"},
    "description": {"S": ""},
    "fileType": {"S": "audio/wav"},
    "fileName": {"S": "b.wav"}
  }}}
]}`

const contactsBatch = `{"Records": [
  {"eventID": "c1", "eventName": "INSERT", "dynamodb": {"NewImage": {
    "ContactId": {"S": "contact-9"},
    "StartTime": {"N": "55.5"},
    "EndTime": {"N": "75"},
    "Transcript": {"S": "someone is in my backyard in Surrey"},
    "IsPartial": {"BOOL": false}
  }}}
]}`

func decodeBatch(t *testing.T, raw string) Batch {
	t.Helper()
	var b Batch
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	return b
}

func TestRecordingRequests(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	log, _ := logtest.NewNullLogger()
	d := NewDecoder(m, log)

	reqs, err := d.RecordingRequests(decodeBatch(t, recordingsBatch))

	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.ErrorContains(t, err, "fileData")
	require.Len(t, reqs, 1)
	assert.Equal(t, types.RecordingRequest{
		DynamoID:     "rec-1",
		BucketName:   "uploads",
		BucketKey:    "public/call.mp3",
		Jurisdiction: "Surrey",
		Description:  "night call",
		Procedure:    "Break and Enter",
		FileType:     "audio/mpeg",
		FileName:     "call.mp3",
		Vocabulary:   map[string]string{"rcmp": "RCMP"},
	}, reqs[0])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CDCEvents.WithLabelValues("INSERT", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CDCEvents.WithLabelValues("REMOVE", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CDCEvents.WithLabelValues("MODIFY", "malformed")))
}

func TestContactSegments(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	d := NewDecoder(nil, log)

	segs, err := d.ContactSegments(decodeBatch(t, contactsBatch))

	require.NoError(t, err)
	assert.Equal(t, []types.ContactSegment{{
		ContactID:  "contact-9",
		StartTime:  55.5,
		EndTime:    75,
		Transcript: "someone is in my backyard in Surrey",
		IsPartial:  false,
	}}, segs)
}

func TestParseContactSegment_BadNumber(t *testing.T) {
	bad := "soon"
	id := "c"
	_, err := ParseContactSegment(Image{
		"ContactId": {S: &id},
		"StartTime": {N: &bad},
	})

	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestImage_WrongType(t *testing.T) {
	n := "3"
	img := Image{"count": {N: &n}}

	_, err := img.String("count")
	assert.ErrorIs(t, err, ErrMalformedRecord)
	_, err = img.Bool("missing")
	assert.ErrorIs(t, err, ErrMalformedRecord)
	v, err := img.Number("count")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
}

type fakeStarter struct {
	started []types.RecordingRequest
	fail    string
}

func (f *fakeStarter) Start(_ context.Context, req types.RecordingRequest) (types.Execution, error) {
	if req.DynamoID == f.fail {
		return types.Execution{}, errors.New("state store down")
	}
	f.started = append(f.started, req)
	return types.Execution{Name: "exec-" + req.DynamoID, Request: req, Status: types.ExecutionRunning}, nil
}

func TestTrigger_StartsOneExecutionPerRequest(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	starter := &fakeStarter{}
	trig := NewTrigger(NewDecoder(nil, log), starter, log)
	batch := decodeBatch(t, recordingsBatch)
	batch.Records = batch.Records[:2]

	execs, err := trig.Handle(context.Background(), batch)

	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, "exec-rec-1", execs[0].Name)
	assert.Len(t, starter.started, 1)
}

func TestTrigger_ReportsStartFailures(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	starter := &fakeStarter{fail: "rec-1"}
	trig := NewTrigger(NewDecoder(nil, log), starter, log)

	execs, err := trig.Handle(context.Background(), decodeBatch(t, recordingsBatch))

	assert.ErrorContains(t, err, "state store down")
	assert.ErrorIs(t, err, ErrMalformedRecord)
	assert.Empty(t, execs)
}
