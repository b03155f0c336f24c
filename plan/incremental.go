package plan

import "strings"

// Extractor splits a growing response into segments as it streams in. Each
// call reports only segments that became final since the previous call, so a
// confirmed plan is emitted exactly once and never revised.
//
// A plan is confirmed only after its closing fence arrives. Text after an
// unclosed fence stays pending until Finalize.
type Extractor struct {
	sb      strings.Builder
	buf     string // view of sb
	offset  int    // everything before offset has been emitted
	pending int    // start of an open fence, or -1
	search  int    // where to look for the pending fence's closing marker
	done    bool
}

// NewExtractor returns an extractor for one response.
func NewExtractor() *Extractor {
	return &Extractor{pending: -1}
}

// Append adds a streamed delta and returns the newly final segments.
func (x *Extractor) Append(delta string) []Segment {
	if x.done {
		return nil
	}
	x.sb.WriteString(delta)
	return x.scan(x.sb.String())
}

// Update takes the whole buffer so far, which must extend the buffer passed
// previously, and returns the newly final segments.
func (x *Extractor) Update(buf string) []Segment {
	if x.done || !strings.HasPrefix(buf, x.buf) {
		return nil
	}
	x.sb.WriteString(buf[len(x.buf):])
	return x.scan(x.sb.String())
}

func (x *Extractor) scan(buf string) []Segment {
	x.buf = buf
	var out []Segment
	for {
		if x.pending < 0 {
			rel := strings.Index(buf[x.offset:], fence)
			if rel < 0 {
				// A trailing ` or `` may be the start of a fence.
				end := len(buf)
				for k := 0; k < len(fence)-1 && end > x.offset && buf[end-1] == '`'; k++ {
					end--
				}
				return x.emitText(out, end)
			}
			openAt := x.offset + rel
			out = x.emitText(out, openAt)
			x.pending = openAt
			x.search = openAt + len(fence)
		}

		rel := strings.Index(buf[x.search:], fence)
		if rel < 0 {
			x.search = max(x.pending+len(fence), len(buf)-(len(fence)-1))
			return out
		}
		closeAt := x.search + rel
		end := closeAt + len(fence)
		p, ok := fencedPlan(buf, x.pending, closeAt)
		if !ok {
			// The closing marker may open the next region.
			out = x.emitText(out, closeAt)
			x.pending = closeAt
			x.search = closeAt + len(fence)
			continue
		}
		out = append(out, planSegment(p, x.pending, end))
		x.offset = end
		x.pending = -1
	}
}

// Finalize flushes whatever is still pending as prose. The extractor accepts
// no further input afterwards.
func (x *Extractor) Finalize() []Segment {
	if x.done {
		return nil
	}
	x.done = true
	if x.offset >= len(x.buf) {
		return nil
	}
	seg := textSegment(x.buf, x.offset, len(x.buf))
	x.offset = len(x.buf)
	x.pending = -1
	return []Segment{seg}
}

func (x *Extractor) emitText(out []Segment, end int) []Segment {
	if end <= x.offset {
		return out
	}
	out = append(out, textSegment(x.buf, x.offset, end))
	x.offset = end
	return out
}
