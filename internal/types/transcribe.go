package types

// Item types in a speech-to-text result.
const (
	ItemPronunciation = "pronunciation"
	ItemPunctuation   = "punctuation"
)

// TranscribeDocument is the result document written by the speech-to-text service.
type TranscribeDocument struct {
	JobName   string            `json:"jobName"`
	AccountID string            `json:"accountId"`
	Results   TranscribeResults `json:"results"`
	Status    string            `json:"status"`
}

type TranscribeResults struct {
	Transcripts []struct {
		Transcript string `json:"transcript"`
	} `json:"transcripts"`
	SpeakerLabels *SpeakerLabels `json:"speaker_labels,omitempty"`
	Items         []Item         `json:"items"`
}

// SpeakerLabels contains speaker diarization output.
type SpeakerLabels struct {
	Speakers int            `json:"speakers"`
	Segments []LabelSegment `json:"segments"`
}

type LabelSegment struct {
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	SpeakerLabel string `json:"speaker_label"`
	Items        []struct {
		StartTime    string `json:"start_time"`
		EndTime      string `json:"end_time"`
		SpeakerLabel string `json:"speaker_label"`
	} `json:"items,omitempty"`
}

// Item is one word or punctuation mark. Punctuation carries no timing.
type Item struct {
	StartTime    string        `json:"start_time,omitempty"`
	EndTime      string        `json:"end_time,omitempty"`
	Type         string        `json:"type"`
	Alternatives []Alternative `json:"alternatives"`
}

type Alternative struct {
	Confidence string `json:"confidence"`
	Content    string `json:"content"`
}
