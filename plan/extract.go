package plan

import "strings"

// ExtractBlocks splits text into prose and plan segments. A fenced region
// becomes a plan segment only when it wraps a single object that validates as
// a ProjectPlan; every other fenced region stays in the surrounding prose,
// fences included. A region that does not hold a plan gives up only its
// opening marker, so a stray ``` in prose cannot swallow a later plan's
// opener. The returned spans are contiguous and cover text exactly.
func ExtractBlocks(text string) []Segment {
	var out []Segment
	textStart, pos := 0, 0
	for {
		openAt, closeAt, ok := nextFencedRegion(text, pos)
		if !ok {
			break
		}
		p, ok := fencedPlan(text, openAt, closeAt)
		if !ok {
			// The closing marker may open the next region.
			pos = closeAt
			continue
		}
		if openAt > textStart {
			out = append(out, textSegment(text, textStart, openAt))
		}
		out = append(out, planSegment(p, openAt, closeAt+len(fence)))
		textStart = closeAt + len(fence)
		pos = textStart
	}
	if textStart < len(text) || len(out) == 0 {
		out = append(out, textSegment(text, textStart, len(text)))
	}
	return out
}

// Parse returns the first valid plan in text.
func Parse(text string) (ProjectPlan, bool) {
	for _, seg := range ExtractBlocks(text) {
		if seg.Kind == SegmentPlan {
			return *seg.Plan, true
		}
	}
	return ProjectPlan{}, false
}

// Plans returns every valid plan in text, in order.
func Plans(text string) []ProjectPlan {
	var out []ProjectPlan
	for _, seg := range ExtractBlocks(text) {
		if seg.Kind == SegmentPlan {
			out = append(out, *seg.Plan)
		}
	}
	return out
}

// nextFencedRegion finds the next ``` at or after pos and the ``` that closes
// it. ok is false when either marker is missing.
func nextFencedRegion(text string, pos int) (openAt, closeAt int, ok bool) {
	rel := strings.Index(text[pos:], fence)
	if rel < 0 {
		return 0, 0, false
	}
	openAt = pos + rel
	rel = strings.Index(text[openAt+len(fence):], fence)
	if rel < 0 {
		return openAt, 0, false
	}
	return openAt, openAt + len(fence) + rel, true
}
