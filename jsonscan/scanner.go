// Package jsonscan locates balanced JSON object literals inside text that may
// still be growing. It only balances braces and quotes; decoding the located
// span is left to the caller.
package jsonscan

// Scanner walks a buffer left to right and reports the span of each balanced
// {...} object it closes. Its state survives between calls, so a caller that
// keeps appending to the same buffer never re-scans bytes already examined.
type Scanner struct {
	pos      int
	depth    int
	start    int
	inString bool
	escaped  bool
}

// NewScanner returns a scanner that starts examining the buffer at offset from.
func NewScanner(from int) *Scanner {
	s := &Scanner{}
	s.Reset(from)
	return s
}

// Reset discards any partially scanned object and restarts at offset from.
func (s *Scanner) Reset(from int) {
	if from < 0 {
		from = 0
	}
	s.pos = from
	s.depth = 0
	s.start = -1
	s.inString = false
	s.escaped = false
}

// Pos is the offset of the next byte the scanner will examine.
func (s *Scanner) Pos() int { return s.pos }

// Open reports the start offset of an object that has begun but not closed.
func (s *Scanner) Open() (int, bool) {
	if s.start < 0 {
		return 0, false
	}
	return s.start, true
}

// Next continues scanning buf and returns the half-open span of the next
// object that closes. When buf ends first it returns ok=false and keeps its
// state; call Next again once buf has grown. buf must only ever be appended to
// between calls.
func (s *Scanner) Next(buf string) (start, end int, ok bool) {
	for i := s.pos; i < len(buf); i++ {
		c := buf[i]
		if s.escaped {
			s.escaped = false
			continue
		}
		if c == '\\' {
			s.escaped = true
			continue
		}
		if c == '"' {
			s.inString = !s.inString
			continue
		}
		if s.inString {
			continue
		}
		switch c {
		case '{':
			if s.depth == 0 {
				s.start = i
			}
			s.depth++
		case '}':
			if s.depth == 0 {
				// stray closer outside any object
				continue
			}
			s.depth--
			if s.depth == 0 {
				start = s.start
				s.Reset(i + 1)
				return start, i + 1, true
			}
		}
	}
	s.pos = len(buf)
	return 0, 0, false
}

// FindObject returns the span of the first balanced object that starts at or
// after offset from.
func FindObject(buf string, from int) (start, end int, ok bool) {
	return NewScanner(from).Next(buf)
}

// Objects returns the spans of every balanced top-level object in buf.
func Objects(buf string) [][2]int {
	var out [][2]int
	s := NewScanner(0)
	for {
		start, end, ok := s.Next(buf)
		if !ok {
			return out
		}
		out = append(out, [2]int{start, end})
	}
}
