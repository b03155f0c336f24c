package plan

import (
	"bytes"
	"encoding/json"
	"strings"

	"project_plan_chat/jsonscan"
)

const fence = "```"

// Fenced renders p in the canonical form stored in transcripts: a ```json
// line, the plan indented by two spaces, and a closing ``` line.
func Fenced(p ProjectPlan) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// Encoding plain strings and slices cannot fail.
	_ = enc.Encode(p.normalized())
	return fence + "json\n" + strings.TrimRight(buf.String(), "\n") + "\n" + fence
}

// normalized replaces nil slices with empty ones so they encode as [].
func (p ProjectPlan) normalized() ProjectPlan {
	out := ProjectPlan{Workstreams: make([]Workstream, 0, len(p.Workstreams))}
	for _, ws := range p.Workstreams {
		if ws.Deliverables == nil {
			ws.Deliverables = []Deliverable{}
		}
		out.Workstreams = append(out.Workstreams, ws)
	}
	return out
}

// fencedPlan reports whether the fenced region opening at openAt and closing
// at closeAt (both offsets of a ``` marker) wraps exactly one balanced object,
// optionally tagged json, that validates as a plan.
func fencedPlan(text string, openAt, closeAt int) (ProjectPlan, bool) {
	i := openAt + len(fence)
	if closeAt-i >= 4 && strings.EqualFold(text[i:i+4], "json") {
		i += 4
	}
	for i < closeAt && isSpace(text[i]) {
		i++
	}
	if i >= closeAt || text[i] != '{' {
		return ProjectPlan{}, false
	}
	start, end, ok := jsonscan.FindObject(text[:closeAt], i)
	if !ok || start != i || strings.TrimSpace(text[end:closeAt]) != "" {
		return ProjectPlan{}, false
	}
	p, err := ParsePlan(text[start:end])
	if err != nil {
		return ProjectPlan{}, false
	}
	return p, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
