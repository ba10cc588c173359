package segmenter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"transcript-indexer-go/internal/types"
)

// ErrMalformedTranscript is returned when the token stream cannot be used.
var ErrMalformedTranscript = errors.New("malformed transcript")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedTranscript, fmt.Sprintf(format, args...))
}

// Parse decodes a speech-to-text result document into segmenter input.
func Parse(data []byte, vocab map[string]string) (Input, error) {
	var doc types.TranscribeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrMalformedTranscript, err)
	}
	return FromResults(doc.Results, vocab)
}

// FromResults converts the results section of a result document.
func FromResults(res types.TranscribeResults, vocab map[string]string) (Input, error) {
	if res.Items == nil {
		return Input{}, malformed("results.items missing")
	}

	in := Input{
		Tokens:     make([]Token, 0, len(res.Items)),
		Vocabulary: vocab,
	}

	if res.SpeakerLabels != nil {
		in.HasSpeakers = true
		in.Speakers = make([]SpeakerSegment, 0, len(res.SpeakerLabels.Segments))
		for i, seg := range res.SpeakerLabels.Segments {
			start, err := strconv.ParseFloat(seg.StartTime, 64)
			if err != nil {
				return Input{}, malformed("speaker segment %d: start_time %q", i, seg.StartTime)
			}
			end, err := strconv.ParseFloat(seg.EndTime, 64)
			if err != nil {
				return Input{}, malformed("speaker segment %d: end_time %q", i, seg.EndTime)
			}
			in.Speakers = append(in.Speakers, SpeakerSegment{StartTime: start, EndTime: end, Label: seg.SpeakerLabel})
		}
	}

	for i, item := range res.Items {
		if len(item.Alternatives) == 0 {
			return Input{}, malformed("item %d: no alternatives", i)
		}
		tok := Token{Text: item.Alternatives[0].Content}
		switch item.Type {
		case types.ItemPronunciation:
			tok.Kind = Word
		case types.ItemPunctuation:
			tok.Kind = Punctuation
		}

		var err error
		if tok.StartTime, err = optionalTime(item.StartTime); err != nil {
			return Input{}, malformed("item %d: start_time %q", i, item.StartTime)
		}
		if tok.EndTime, err = optionalTime(item.EndTime); err != nil {
			return Input{}, malformed("item %d: end_time %q", i, item.EndTime)
		}
		if tok.Kind == Word && tok.StartTime == nil {
			return Input{}, malformed("item %d: word without start_time", i)
		}
		in.Tokens = append(in.Tokens, tok)
	}
	return in, nil
}

func optionalTime(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
