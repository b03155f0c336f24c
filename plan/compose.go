package plan

import (
	"regexp"
	"strings"
)

// spanMarker locates a boundary of the plan-shaped span. guard, when set,
// must hold for the text between the span start and the marker.
type spanMarker struct {
	re    *regexp.Regexp
	guard func(between string) bool
}

var (
	// planStartMarkers are tried in priority order; the first that matches
	// anywhere fixes the span start.
	planStartMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|\n)\d+\.\s+\*\*[^*]+\*\*`),
		regexp.MustCompile(`(?i)\*\*[^*]+\*\*[:\n]\s*\*\*Deliverables?:`),
		regexp.MustCompile(`(?i)\*\*[^*\n]+\*\*:?[^\n]*\n[\s\S]{0,400}?\*\*Deliverables?:`),
		regexp.MustCompile(`(?i)\*\*Phase\s+\d+|\*\*Week\s+\d+|\*\*Workstream\s+\d+`),
		regexp.MustCompile(`(?im)^[ \t]*(?:#{1,6}[ \t]+)?(?:Phase|Week)\s+\d+`),
		regexp.MustCompile(`(?i)(?:^|\n)(?:Workstreams?\s+&|Core\s+Pillars|Key\s+Areas)`),
	}
	numberedListStart = regexp.MustCompile(`(?:^|\n\n)\d+\.\s+\*\*`)
	plainListStart    = regexp.MustCompile(`(?m)^[ \t]*1\.[ \t]+`)

	numberedBoldAnywhere   = regexp.MustCompile(`\d+\.\s+\*\*`)
	headerThenDeliverables = regexp.MustCompile(`(?i)\*\*[^*]+\*\*[:\n]\s*\*\*Deliverables?:`)
	phaseHeading           = regexp.MustCompile(`(?i)###\s+Phase`)

	closingRemark = regexp.MustCompile(`(?i)feel\s+free|adjust|review|let\s+me\s+know|questions?|feedback`)
	sentence      = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

func planBodyBefore(between string) bool {
	return numberedBoldAnywhere.MatchString(between) ||
		headerThenDeliverables.MatchString(between) ||
		phaseHeading.MatchString(between)
}

func endMarker(expr string, guard func(string) bool) spanMarker {
	return spanMarker{re: regexp.MustCompile(expr), guard: guard}
}

var (
	// wrapUpMarkers end the span at a follow-on section, but only once some
	// plan body has been seen.
	wrapUpMarkers = []spanMarker{
		endMarker(`(?i)(?:^|\n)\*\*Timeline`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)\*\*Key\s+Outcomes?`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)\*\*Expected\s+Outcomes?`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)\*\*Next\s+Steps?`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)(?:Total|Overall)\s+Timeline`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)Timeline\s*\(`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)\*\*Phase\s+\d+`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)###\s+Phase`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)####\s+Phase`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)\*\*Duration:`, planBodyBefore),
		endMarker(`(?i)(?:^|\n)\*\*Objective:`, planBodyBefore),
	}
	summaryMarkers = []spanMarker{
		endMarker(`(?i)(?:^|\n)\*\*Expected\s+Outcomes?`, longPlanBody),
		endMarker(`(?i)(?:^|\n)\*\*Next\s+Steps?`, longPlanBody),
		endMarker(`(?i)(?:^|\n)###\s+Expected`, longPlanBody),
	}
)

func longPlanBody(between string) bool {
	return numberedBoldAnywhere.MatchString(between) || len(between) > 200
}

// planSpan returns the [start, end) byte range of the plan-shaped prose.
func planSpan(text string) (start, end int) {
	start = len(text)
	for _, re := range planStartMarkers {
		if loc := re.FindStringIndex(text); loc != nil {
			start = loc[0]
			break
		}
	}
	if start == len(text) {
		for _, re := range []*regexp.Regexp{numberedListStart, plainListStart} {
			loc := re.FindStringIndex(text)
			if loc != nil && len(strings.TrimSpace(text[:loc[0]])) > 20 {
				start = loc[0]
				break
			}
		}
	}

	rest := text[start:]
	for _, markers := range [][]spanMarker{wrapUpMarkers, summaryMarkers} {
		for _, m := range markers {
			loc := m.re.FindStringIndex(rest)
			if loc == nil || !m.guard(rest[:loc[0]]) {
				continue
			}
			return start, start + loc[0]
		}
	}
	return start, len(text)
}

// composeRecovered keeps a short lead-in and, if it reads as a closing
// remark, a short trailer around the canonical fenced plan.
func composeRecovered(text string, p ProjectPlan) string {
	start, end := planSpan(text)

	parts := make([]string, 0, 3)
	if intro := leadIn(strings.TrimSpace(text[:start])); intro != "" {
		parts = append(parts, intro)
	}
	parts = append(parts, Fenced(p))
	if outro := strings.TrimSpace(text[end:]); outro != "" && len(outro) < 150 && closingRemark.MatchString(outro) {
		parts = append(parts, outro)
	}
	return strings.Join(parts, "\n\n")
}

func leadIn(before string) string {
	if before == "" {
		return ""
	}
	sentences := sentence.FindAllString(before, 2)
	if len(sentences) == 0 {
		return truncateRunes(before, maxFallbackRunes)
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	return truncateRunes(strings.Join(sentences, " "), maxDescriptionRunes)
}
