package stream

import (
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"project_plan_chat/jsonscan"
)

// TextExtractor pulls the generated text out of one decoded chunk object.
// ok=false marks a chunk with an unexpected shape; it is skipped.
type TextExtractor func(object string) (text string, ok bool)

// GeminiText extracts candidates[0].content.parts[*].text from a Gemini
// streamGenerateContent chunk.
func GeminiText(object string) (string, bool) {
	if !gjson.Valid(object) {
		return "", false
	}
	parts := gjson.Get(object, "candidates.0.content.parts")
	if !parts.IsArray() {
		return "", false
	}
	var b strings.Builder
	found := false
	parts.ForEach(func(_, part gjson.Result) bool {
		text := part.Get("text")
		if text.Type == gjson.String {
			b.WriteString(text.String())
			found = true
		}
		return true
	})
	return b.String(), found
}

// SnapshotState reconciles cumulative-snapshot streams.
//
// LastSentText is always a text the consumer has already seen in full (the
// concatenation of every delta emitted). LongestText is the longest snapshot
// observed, kept so a short or broken trailing chunk cannot shrink the result.
type SnapshotState struct {
	LastSentText string
	LongestText  string

	extract TextExtractor
	raw     string
	scan    *jsonscan.Scanner
	deltas  int
}

// NewSnapshotState returns a state for one stream. A nil extractor defaults to
// GeminiText.
func NewSnapshotState(extract TextExtractor) *SnapshotState {
	if extract == nil {
		extract = GeminiText
	}
	return &SnapshotState{extract: extract, scan: jsonscan.NewScanner(0)}
}

// Feed appends one raw network read and returns the delta to forward now, or
// "" when nothing new became visible. Objects split across reads are held
// until they close.
func (s *SnapshotState) Feed(chunk []byte) string {
	s.raw += string(chunk)
	var out strings.Builder
	for {
		start, end, ok := s.scan.Next(s.raw)
		if !ok {
			break
		}
		if text, ok := s.extract(s.raw[start:end]); ok {
			out.WriteString(s.Observe(text))
		}
		s.raw = s.raw[end:]
		s.scan.Reset(0)
	}
	return out.String()
}

// Observe classifies one snapshot against LastSentText and returns the delta
// it produces.
func (s *SnapshotState) Observe(text string) string {
	if text == "" {
		return ""
	}
	if len(text) > len(s.LongestText) {
		s.LongestText = text
	}

	last := s.LastSentText
	switch {
	case last == "":
		return s.emit(text, text)
	case len(text) > len(last) && strings.HasPrefix(text, last):
		return s.emit(text, text[len(last):])
	case len(text) > len(last):
		// The provider revised earlier content. Forward whatever lies past the
		// previous length so the transcript keeps moving.
		cut := len(last)
		for cut < len(text) && !utf8.RuneStart(text[cut]) {
			cut++
		}
		if cut >= len(text) {
			s.LastSentText = text
			return ""
		}
		return s.emit(text, text[cut:])
	case len(text) == len(last) && text != last:
		s.LastSentText = text
		return ""
	default:
		return ""
	}
}

func (s *SnapshotState) emit(full, delta string) string {
	s.LastSentText = full
	s.deltas++
	return delta
}

// Deltas is the number of deltas emitted so far.
func (s *SnapshotState) Deltas() int { return s.deltas }

// Finish returns the authoritative final text: the longer of LongestText and
// LastSentText. It returns ErrEmptyResponse when no delta was ever emitted.
func (s *SnapshotState) Finish() (string, error) {
	if s.deltas == 0 {
		return "", ErrEmptyResponse
	}
	if len(s.LongestText) > len(s.LastSentText) {
		return s.LongestText, nil
	}
	return s.LastSentText, nil
}
