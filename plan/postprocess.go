package plan

import (
	"strings"

	"project_plan_chat/jsonscan"
)

// Outcome reports which normalization step shaped the final text.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFenced    Outcome = "fenced"
	OutcomePromoted  Outcome = "promoted"
	OutcomeRecovered Outcome = "recovered"
)

// normalizer is one step of the post-processing pipeline. ok=false hands the
// text to the next step.
type normalizer struct {
	outcome Outcome
	apply   func(text string) (string, bool)
}

var normalizers = []normalizer{
	{outcome: OutcomeFenced, apply: keepFenced},
	{outcome: OutcomePromoted, apply: promoteBareJSON},
	{outcome: OutcomeRecovered, apply: Recover},
}

// PostProcess turns a response that was expected to carry a plan into text
// whose plan, if any, is in the canonical fenced form. Text that cannot be
// confidently restructured is returned unchanged.
func PostProcess(response string) (string, Outcome) {
	for _, n := range normalizers {
		if out, ok := n.apply(response); ok {
			return out, n.outcome
		}
	}
	return response, OutcomeUnchanged
}

func keepFenced(text string) (string, bool) {
	return text, len(Plans(text)) > 0
}

// promoteBareJSON wraps the first unfenced plan object in a fence and keeps
// the prose on either side of it. Every { is tried as a start on its own, so
// a stray quote in the prose cannot hide the object.
func promoteBareJSON(text string) (string, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' || !opensMember(text, i+1) {
			continue
		}
		start, end, ok := jsonscan.FindObject(text, i)
		if !ok || start != i {
			continue
		}
		p, err := ParsePlan(text[start:end])
		if err != nil {
			continue
		}
		parts := make([]string, 0, 3)
		if before := strings.TrimSpace(text[:start]); before != "" {
			parts = append(parts, before)
		}
		parts = append(parts, Fenced(p))
		if after := strings.TrimSpace(text[end:]); after != "" {
			parts = append(parts, after)
		}
		return strings.Join(parts, "\n\n"), true
	}
	return text, false
}

// opensMember reports whether the first non-space byte at or after i starts
// a key, which every plan object has.
func opensMember(text string, i int) bool {
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	return i < len(text) && text[i] == '"'
}
