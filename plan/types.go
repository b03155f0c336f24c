// Package plan detects, validates and recovers structured project plans in
// free-form model output.
package plan

// Deliverable is one concrete outcome inside a workstream.
type Deliverable struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Outcome      string `json:"outcome,omitempty"`
	Timeline     string `json:"timeline,omitempty"`
	Dependencies string `json:"dependencies,omitempty"`
}

// Workstream groups deliverables under a named area of work.
type Workstream struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Deliverables []Deliverable `json:"deliverables"`
}

// ProjectPlan is an ordered list of workstreams. Order is display order.
type ProjectPlan struct {
	Workstreams []Workstream `json:"workstreams"`
}

// SegmentKind tags a Segment.
type SegmentKind string

const (
	SegmentText SegmentKind = "text"
	SegmentPlan SegmentKind = "plan"
)

// Segment is one piece of a split response. Start and End are byte offsets
// into the source text, half-open.
type Segment struct {
	Kind  SegmentKind  `json:"type"`
	Text  string       `json:"text,omitempty"`
	Plan  *ProjectPlan `json:"plan,omitempty"`
	Start int          `json:"start"`
	End   int          `json:"end"`
}

func textSegment(src string, start, end int) Segment {
	return Segment{Kind: SegmentText, Text: src[start:end], Start: start, End: end}
}

func planSegment(p ProjectPlan, start, end int) Segment {
	return Segment{Kind: SegmentPlan, Plan: &p, Start: start, End: end}
}
