// Package segmenter rebuilds speaker-attributed paragraphs from a speech-to-text
// token stream and cuts the same stream into size-bounded chunks for batch NLP calls.
package segmenter

import (
	"strings"
)

const (
	// PauseThreshold is the silence, in seconds, that starts a new paragraph
	// when no speaker labels are available.
	PauseThreshold = 2.0
	// TurnThreshold is how long, in seconds, a paragraph may run before the
	// next sentence end closes it when no speaker labels are available.
	TurnThreshold = 15.0

	// ChunkSoftLimit is the chunk length at which a punctuation token closes the chunk.
	ChunkSoftLimit = 4500
	// ChunkHardLimit is the chunk length past which any token closes the chunk.
	ChunkHardLimit = 4900

	paragraphSeparator = "\n\n"
)

// Kind classifies a token.
type Kind int

const (
	Other Kind = iota
	Word
	Punctuation
)

// Token is one recognised unit of the transcript.
type Token struct {
	Kind      Kind
	Text      string
	StartTime *float64
	EndTime   *float64
}

// SpeakerSegment labels the half-open interval [StartTime, EndTime).
type SpeakerSegment struct {
	StartTime float64
	EndTime   float64
	Label     string
}

// Input is everything the segmenter needs for one transcript.
type Input struct {
	Tokens []Token
	// HasSpeakers is set when the transcript carried speaker labels at all,
	// even if the segment list is empty.
	HasSpeakers bool
	Speakers    []SpeakerSegment
	// Vocabulary substitutes recognised words before the built-in table applies.
	Vocabulary map[string]string
}

// Result holds both outputs of a segmentation pass.
type Result struct {
	Chunks        []string
	Paragraphs    []string
	Substitutions int
}

// Transcript joins the paragraphs with a blank line between each.
func (r Result) Transcript() string {
	return strings.Join(r.Paragraphs, paragraphSeparator)
}

// Spoken returns the paragraphs that contain text.
func (r Result) Spoken() []string {
	out := make([]string, 0, len(r.Paragraphs))
	for _, p := range r.Paragraphs {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var commonWords = map[string]string{"i": "I"}

var sentenceTerminators = map[string]bool{".": true, "!": true, "?": true}

// ChunkUpTranscript returns the NLP chunks and the joined paragraph text.
func ChunkUpTranscript(in Input) ([]string, string, error) {
	res, err := Segment(in)
	if err != nil {
		return nil, "", err
	}
	return res.Chunks, res.Transcript(), nil
}

type state struct {
	paragraphs []string
	chunks     []string
	paragraph  strings.Builder
	chunk      strings.Builder

	// trim drops the separator space in front of unlabeled paragraphs.
	trim bool

	lastSpeaker   string
	speakerKnown  bool
	prevEnd       float64
	turnStart     float64
	sentenceEnded bool
	substitutions int
}

// flushParagraph emits the current paragraph even when it is empty.
func (s *state) flushParagraph() {
	p := s.paragraph.String()
	if s.trim {
		p = strings.TrimPrefix(p, " ")
	}
	s.paragraphs = append(s.paragraphs, p)
	s.paragraph.Reset()
}

func (s *state) flushChunk() {
	s.chunks = append(s.chunks, s.chunk.String())
	s.chunk.Reset()
}

// Segment makes a single pass over the tokens.
func Segment(in Input) (Result, error) {
	s := state{trim: !in.HasSpeakers}

	for i, tok := range in.Tokens {
		switch tok.Kind {
		case Word:
			if tok.StartTime == nil {
				return Result{}, malformed("item %d: word without start_time", i)
			}
			start := *tok.StartTime

			if in.HasSpeakers {
				label, found := speakerAt(in.Speakers, start)
				if !s.speakerKnown || label != s.lastSpeaker {
					s.flushParagraph()
					s.paragraph.WriteString(label + " :")
					s.turnStart = start
				}
				s.lastSpeaker, s.speakerKnown = label, found
			} else if start-s.prevEnd > PauseThreshold ||
				(start-s.turnStart > TurnThreshold && s.sentenceEnded) {
				s.turnStart = start
				s.flushParagraph()
			}

			text := s.resolve(tok.Text, in.Vocabulary)
			s.paragraph.WriteString(" " + text)
			s.chunk.WriteString(" " + text)
			s.sentenceEnded = false

		case Punctuation:
			s.paragraph.WriteString(tok.Text)
			s.chunk.WriteString(tok.Text)
			s.sentenceEnded = sentenceTerminators[tok.Text]
		}

		if (tok.Kind == Punctuation && s.chunk.Len() >= ChunkSoftLimit) || s.chunk.Len() > ChunkHardLimit {
			s.flushChunk()
		}

		if tok.EndTime != nil {
			s.prevEnd = *tok.EndTime
		}
	}

	if s.chunk.Len() > 0 {
		s.flushChunk()
	}
	if s.paragraph.Len() > 0 {
		s.flushParagraph()
	}

	return Result{
		Chunks:        s.chunks,
		Paragraphs:    s.paragraphs,
		Substitutions: s.substitutions,
	}, nil
}

func (s *state) resolve(text string, vocab map[string]string) string {
	if v, ok := vocab[text]; ok {
		text = v
		s.substitutions++
	}
	if v, ok := commonWords[text]; ok {
		text = v
	}
	return text
}

// speakerAt scans the segments for the one covering t. The first match wins.
func speakerAt(segments []SpeakerSegment, t float64) (string, bool) {
	for _, seg := range segments {
		if seg.StartTime <= t && t < seg.EndTime {
			return seg.Label, true
		}
	}
	return "", false
}
