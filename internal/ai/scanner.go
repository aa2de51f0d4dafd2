package ai

import "strings"

// Scanner isolates complete top-level JSON objects from an unframed
// character stream by tracking brace depth. Text outside any object (prose,
// markdown wrapping) is discarded; a closing brace before any opener is a
// no-op.
//
// The scanner has no string-literal awareness: a brace inside a quoted JSON
// string value counts like a structural brace. The upstream payload shapes
// are curated and validity is checked at decode time, so this approximation
// holds in practice.
type Scanner struct {
	depth  int
	inside bool
	buf    strings.Builder
}

// Feed consumes one chunk of characters and returns the candidate objects
// that completed within it, in order. Feeding the same text whole or split
// at arbitrary boundaries yields the same sequence of candidates.
func (s *Scanner) Feed(chunk string) []string {
	var objects []string
	for i := 0; i < len(chunk); i++ {
		c := chunk[i]
		switch c {
		case '{':
			s.depth++
			if !s.inside {
				s.inside = true
				s.buf.Reset()
			}
		case '}':
			if !s.inside {
				continue
			}
			s.depth--
		default:
			if !s.inside {
				continue
			}
		}
		s.buf.WriteByte(c)
		if s.inside && c == '}' && s.depth == 0 {
			objects = append(objects, s.buf.String())
			s.buf.Reset()
			s.inside = false
		}
	}
	return objects
}

// Pending reports whether an object is open but not yet complete. Partial
// objects are discarded on stream end, never force-decoded.
func (s *Scanner) Pending() bool {
	return s.inside
}
