// Package stream turns provider-specific streaming chunks into ordered text
// deltas plus one authoritative final text.
//
// Two wire shapes are supported. AppendState handles providers whose chunks
// are true increments. SnapshotState handles providers that resend the whole
// text generated so far in every chunk, wrapped in JSON objects that can be
// split across network reads.
//
// Each stream owns its state value; nothing here is shared between streams.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyResponse reports a stream that ended without a single delta.
var ErrEmptyResponse = errors.New("stream ended without any text")

// AppendState accumulates append-only fragments.
type AppendState struct {
	text   strings.Builder
	deltas int
}

// Feed records one fragment and returns the delta to forward, which is the
// fragment itself. Empty fragments produce no delta.
func (s *AppendState) Feed(fragment string) string {
	if fragment == "" {
		return ""
	}
	s.text.WriteString(fragment)
	s.deltas++
	return fragment
}

// Deltas is the number of deltas emitted so far.
func (s *AppendState) Deltas() int { return s.deltas }

// Text is the concatenation of every fragment fed so far.
func (s *AppendState) Text() string { return s.text.String() }

// Finish returns the final text, or ErrEmptyResponse when nothing was emitted.
func (s *AppendState) Finish() (string, error) {
	if s.deltas == 0 {
		return "", ErrEmptyResponse
	}
	return s.text.String(), nil
}

// ReadAll feeds r into s until EOF, forwarding each delta to onDelta. The
// context is checked before every read so a cancelled consumer stops the
// stream without flushing anything further.
func ReadAll(ctx context.Context, r io.Reader, feed func([]byte) string, onDelta func(string)) error {
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if delta := feed(buf[:n]); delta != "" && onDelta != nil {
				onDelta(delta)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
	}
}
