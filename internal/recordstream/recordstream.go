// Package recordstream splits a chunked byte stream into discrete records,
// staying correct across chunk boundaries and mid-stream encoding changes.
//
// It exists because subprocess stdout arrives in arbitrarily-sized reads:
// a record delimiter, or the trailing bytes of a multi-byte rune, can land
// split across two Write calls. GitDriver and DiffDriver feed their git/diff
// stdout through a Stream rather than scanning raw chunks themselves, so a
// Handler can act on (and, via Stopped, cut short) a record as soon as it
// completes instead of waiting for the whole command to finish.
package recordstream

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Errors returned by New when the separator is unusable.
var (
	ErrNilSeparator         = errors.New("recordstream: separator is nil")
	ErrEmptyMatchSeparator  = errors.New("recordstream: regexp separator matches the empty string (would never advance)")
	ErrUnsupportedSeparator = errors.New("recordstream: separator has no matching protocol")
	ErrUnsupportedEncoding  = errors.New("recordstream: unsupported encoding")
)

// ScanFunc is a caller-supplied separator: given the text accumulated so
// far, report whether (and where) a separator occurs in it.
type ScanFunc func(s string) (ok bool, start, length int)

// Separator identifies where one record ends and the next begins.
type Separator struct {
	scan ScanFunc
}

// Literal builds a Separator matching a fixed string, e.g. "\x00" or "\n".
func Literal(sep string) Separator {
	return Separator{scan: func(s string) (bool, int, int) {
		i := strings.Index(s, sep)
		if i < 0 {
			return false, 0, 0
		}
		return true, i, len(sep)
	}}
}

// Regexp builds a Separator from a compiled, non-empty-matching regexp.
// A regexp able to match the empty string would never let the stream
// advance, so it is rejected (the Go analogue of the source protocol's
// "separator must not be a global regexp" restriction).
func Regexp(re *regexp.Regexp) (Separator, error) {
	if re == nil {
		return Separator{}, ErrNilSeparator
	}
	if re.MatchString("") {
		return Separator{}, ErrEmptyMatchSeparator
	}
	return Separator{scan: func(s string) (bool, int, int) {
		loc := re.FindStringIndex(s)
		if loc == nil {
			return false, 0, 0
		}
		return true, loc[0], loc[1] - loc[0]
	}}, nil
}

// Scanner builds a Separator from an arbitrary caller-supplied function.
func Scanner(fn ScanFunc) (Separator, error) {
	if fn == nil {
		return Separator{}, ErrNilSeparator
	}
	return Separator{scan: fn}, nil
}

// Handler processes one complete record. Returning stop == true ends the
// stream early; no further records are emitted even if more input arrives.
type Handler func(record string) (stop bool)

// Supported encodings.
const (
	UTF8   = "utf8"
	Binary = "binary"
)

// Stream incrementally decodes bytes and emits records to a Handler.
type Stream struct {
	sep     Separator
	handler Handler

	encoding string
	pending  []byte // raw bytes not yet decoded (only non-empty under UTF8, holding a split rune)
	carry    string // decoded text not yet scanned for a separator
	stopped  bool
}

// New constructs a Stream. encoding is one of UTF8 or Binary.
func New(sep Separator, encoding string, handler Handler) (*Stream, error) {
	if sep.scan == nil {
		return nil, ErrUnsupportedSeparator
	}
	if handler == nil {
		return nil, errors.New("recordstream: handler is nil")
	}
	switch encoding {
	case UTF8, Binary:
	default:
		return nil, ErrUnsupportedEncoding
	}
	return &Stream{sep: sep, handler: handler, encoding: encoding}, nil
}

// SetEncoding changes the active encoding mid-stream. Any bytes buffered by
// the previous decoder (e.g. the leading bytes of a still-incomplete UTF-8
// rune) are flushed into the carryover verbatim before the switch, so no
// data is lost across the encoding change.
func (s *Stream) SetEncoding(encoding string) error {
	switch encoding {
	case UTF8, Binary:
	default:
		return ErrUnsupportedEncoding
	}
	if len(s.pending) > 0 {
		s.carry += string(s.pending)
		s.pending = nil
	}
	s.encoding = encoding
	return nil
}

// Write feeds a chunk of raw bytes into the stream, decoding and emitting
// any records that become complete as a result.
func (s *Stream) Write(chunk []byte) error {
	if s.stopped || len(chunk) == 0 {
		return nil
	}

	switch s.encoding {
	case Binary:
		s.carry += string(chunk)
	case UTF8:
		s.decodeUTF8(chunk)
	default:
		return ErrUnsupportedEncoding
	}

	return s.drain()
}

// decodeUTF8 appends as much of pending+chunk as decodes to complete runes,
// leaving any trailing partial rune in s.pending for the next Write/Close.
func (s *Stream) decodeUTF8(chunk []byte) {
	buf := chunk
	if len(s.pending) > 0 {
		buf = append(append([]byte(nil), s.pending...), chunk...)
		s.pending = nil
	}

	var b strings.Builder
	b.Grow(len(buf))
	i := 0
	for i < len(buf) {
		if utf8.FullRune(buf[i:]) {
			r, size := utf8.DecodeRune(buf[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		// Not enough bytes yet to know: could be a split rune at the
		// very end of this chunk, or genuinely invalid input. Either
		// way, hold it back; Close() will flush the raw bytes into the
		// final record if the stream ends here.
		break
	}
	s.carry += b.String()
	if i < len(buf) {
		s.pending = append(s.pending, buf[i:]...)
	}
}

// drain repeatedly matches the separator against s.carry, emitting records
// until no further separator is found or the handler signals stop.
func (s *Stream) drain() error {
	for !s.stopped {
		ok, start, length := s.sep.scan(s.carry)
		if !ok {
			return nil
		}
		record := s.carry[:start]
		s.carry = s.carry[start+length:]
		if s.handler(record) {
			s.stopped = true
			return nil
		}
	}
	return nil
}

// Stopped reports whether the stream's Handler has already signaled stop -
// callers driving a subprocess pipe check this after each Write to decide
// whether to abandon reading the rest of the child's output.
func (s *Stream) Stopped() bool {
	return s.stopped
}

// Close flushes any buffered, undecodable trailing bytes into the carryover
// and emits the carryover as a final record if it is non-empty. It must be
// called exactly once, after the last Write.
func (s *Stream) Close() error {
	if s.stopped {
		return nil
	}
	if len(s.pending) > 0 {
		// Trailing partial rune at end of stream: keep its raw bytes in
		// the final record rather than dropping them silently.
		s.carry += string(s.pending)
		s.pending = nil
	}
	if s.carry != "" {
		final := s.carry
		s.carry = ""
		s.handler(final)
	}
	return nil
}
