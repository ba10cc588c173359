package types

import "time"

// RecordingRequest is the workflow input produced for every uploaded recording.
type RecordingRequest struct {
	DynamoID     string            `json:"dynamoId"`
	BucketName   string            `json:"bucketName"`
	BucketKey    string            `json:"bucketKey"`
	Jurisdiction string            `json:"jurisdiction"`
	Description  string            `json:"description"`
	Procedure    string            `json:"procedure"`
	FileType     string            `json:"fileType"`
	FileName     string            `json:"fileName"`
	Vocabulary   map[string]string `json:"vocabulary,omitempty"`
}

// ObjectLocation points at an object in storage.
type ObjectLocation struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// TranscriptRecord is the processed transcript persisted to storage.
type TranscriptRecord struct {
	Transcript         string              `json:"transcript"`
	KeyPhrases         []string            `json:"key_phrases"`
	TranscriptEntities map[string][]string `json:"transcript_entities,omitempty"`
}

// IndexDocument is what gets indexed into the search engine for a recording.
type IndexDocument struct {
	AudioType          string              `json:"audio_type"`
	Name               string              `json:"name"`
	Jurisdiction       string              `json:"jurisdiction"`
	Description        string              `json:"description"`
	Procedure          string              `json:"procedure"`
	AudioS3Location    string              `json:"audio_s3_location"`
	Transcript         string              `json:"transcript"`
	TranscriptEntities map[string][]string `json:"transcript_entities,omitempty"`
	KeyPhrases         []string            `json:"key_phrases"`
}

// ContactSegment is one live-call transcript update.
type ContactSegment struct {
	ContactID  string  `json:"contact_id"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Transcript string  `json:"transcript"`
	IsPartial  bool    `json:"is_partial"`
}

// Execution statuses
const (
	ExecutionRunning   = "RUNNING"
	ExecutionSucceeded = "SUCCEEDED"
	ExecutionFailed    = "FAILED"
)

// Execution is the persisted state of one workflow run.
type Execution struct {
	Name                   string           `json:"name"`
	Status                 string           `json:"status"`
	Stage                  string           `json:"stage"`
	Request                RecordingRequest `json:"request"`
	TranscribeJob          string           `json:"transcribeJob,omitempty"`
	TranscriptionURL       string           `json:"transcriptionUrl,omitempty"`
	ProcessedTranscription *ObjectLocation  `json:"processedTranscription,omitempty"`
	Error                  string           `json:"error,omitempty"`
	StartedAt              time.Time        `json:"startedAt"`
	UpdatedAt              time.Time        `json:"updatedAt"`
}
