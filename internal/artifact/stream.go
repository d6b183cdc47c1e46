package artifact

import "strings"

// Stream delivers the actions of a growing artifact exactly once each. It
// re-parses the whole text on growth and hands out only the actions past
// those already delivered.
//
// A Stream is not safe for concurrent use.
type Stream struct {
	text      string
	delivered int
	closed    bool
}

// NewStream returns an empty Stream.
func NewStream() *Stream {
	return &Stream{}
}

// Feed replaces the buffered text with text, which must extend it, and
// returns the actions completed since the last call.
func (s *Stream) Feed(text string) ([]Action, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if !strings.HasPrefix(text, s.text) {
		return nil, ErrPrefixMismatch
	}

	prev := len(s.text)
	s.text = text
	if !completesToken(text, prev) {
		return nil, nil
	}
	return s.collect(false), nil
}

// Append adds delta to the buffered text.
func (s *Stream) Append(delta string) ([]Action, error) {
	return s.Feed(s.text + delta)
}

// Close ends the stream and returns the remaining actions, including an
// unterminated trailing block delivered as ambiguous.
func (s *Stream) Close() []Action {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.collect(true)
}

// Text returns the buffered artifact text.
func (s *Stream) Text() string {
	return s.text
}

// Delivered returns the number of actions handed out so far.
func (s *Stream) Delivered() int {
	return s.delivered
}

func (s *Stream) collect(final bool) []Action {
	all := Parse(s.text, final)
	if len(all) <= s.delivered {
		return nil
	}
	fresh := all[s.delivered:]
	s.delivered = len(all)
	return fresh
}

// completesToken reports whether the bytes after prev finish an action
// opener or closer. New actions can only appear when one does, so other
// growth skips the rescan.
func completesToken(text string, prev int) bool {
	from := max(0, prev-len(actionClose)+1)
	tail := text[from:]
	return strings.Contains(tail, actionClose) || strings.Contains(tail, actionOpen)
}
