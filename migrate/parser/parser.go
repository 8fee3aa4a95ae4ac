// Package parser splits SQL script text into batches that are sent to the
// database one at a time.
//
// A batch ends at a line whose trimmed content equals the terminator (GO by
// default, case-insensitive). The scan tracks quoted literals and
// identifiers, comments and, when enabled, dollar-quoted bodies so that a
// terminator line inside any of them stays part of the batch. Split is a pure function and
// never fails: malformed input is treated as content.
package parser

import (
	"strings"
)

// DefaultTerminator closes a batch when it appears alone on a line.
const DefaultTerminator = "GO"

// Options controls how a script is broken down.
type Options struct {
	// Terminator is the batch separator line. Empty disables splitting.
	Terminator string

	// LineComments are prefixes that comment out the rest of a line.
	LineComments []string

	// BlockCommentStart and BlockCommentEnd delimit multi-line comments.
	// Either empty disables block comment tracking.
	BlockCommentStart string
	BlockCommentEnd   string

	// DollarQuoting enables PostgreSQL $tag$ ... $tag$ bodies.
	DollarQuoting bool

	// BackslashEscapes makes a backslash escape the next character inside
	// quoted literals, as MySQL does by default.
	BackslashEscapes bool

	// BracketIdentifiers tracks [quoted] identifiers. Double-quoted
	// identifiers are always tracked.
	BracketIdentifiers bool

	// BacktickIdentifiers tracks `quoted` identifiers.
	BacktickIdentifiers bool
}

// DefaultOptions returns the options shared by most platforms.
func DefaultOptions() Options {
	return Options{
		Terminator:         DefaultTerminator,
		LineComments:       []string{"--"},
		BlockCommentStart:  "/*",
		BlockCommentEnd:    "*/",
		BracketIdentifiers: true,
	}
}

type state int

const (
	stateCode state = iota
	stateString
	stateBlockComment
	stateDollar
)

type scanner struct {
	opts  Options
	state state
	tag   string

	// closing quote of the current literal or identifier, and whether a
	// backslash escapes inside it
	quote  byte
	escape bool
}

// Split breaks text into batches. Whitespace-only input yields no batches.
// Content after the last terminator is returned as the final batch.
func Split(text string, opts Options) []string {
	s := &scanner{opts: opts}

	var (
		batches []string
		buf     []string
	)
	flush := func() {
		if b := trimBlankLines(buf); b != "" {
			batches = append(batches, b)
		}
		buf = buf[:0]
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		if s.state == stateCode && s.isTerminator(line) {
			flush()
			continue
		}
		buf = append(buf, line)
		s.scan(line)
	}
	flush()

	return batches
}

func (s *scanner) isTerminator(line string) bool {
	if s.opts.Terminator == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), s.opts.Terminator)
}

// scan advances the lexical state across one line.
func (s *scanner) scan(line string) {
	i := 0
	for i < len(line) {
		switch s.state {
		case stateString:
			c := line[i]
			if s.escape && c == '\\' {
				i += 2
				continue
			}
			i++
			if c != s.quote {
				continue
			}
			if i < len(line) && line[i] == s.quote {
				i++ // doubled quote escape
				continue
			}
			s.state = stateCode

		case stateBlockComment:
			j := strings.Index(line[i:], s.opts.BlockCommentEnd)
			if j < 0 {
				return
			}
			i += j + len(s.opts.BlockCommentEnd)
			s.state = stateCode

		case stateDollar:
			j := strings.Index(line[i:], s.tag)
			if j < 0 {
				return
			}
			i += j + len(s.tag)
			s.tag = ""
			s.state = stateCode

		default:
			rest := line[i:]
			if s.startsLineComment(rest) {
				return
			}
			if s.opts.BlockCommentStart != "" && s.opts.BlockCommentEnd != "" &&
				strings.HasPrefix(rest, s.opts.BlockCommentStart) {
				s.state = stateBlockComment
				i += len(s.opts.BlockCommentStart)
				continue
			}
			if quote, escape, ok := s.opening(line[i]); ok {
				s.state = stateString
				s.quote, s.escape = quote, escape
				i++
				continue
			}
			if s.opts.DollarQuoting && line[i] == '$' {
				if tag := dollarTag(rest); tag != "" {
					s.tag = tag
					s.state = stateDollar
					i += len(tag)
					continue
				}
			}
			i++
		}
	}
}

// opening reports whether c opens a quoted literal or identifier, and
// returns its closing quote.
func (s *scanner) opening(c byte) (quote byte, escape, ok bool) {
	switch {
	case c == '\'' || c == '"':
		return c, s.opts.BackslashEscapes, true
	case c == '[' && s.opts.BracketIdentifiers:
		return ']', false, true
	case c == '`' && s.opts.BacktickIdentifiers:
		return '`', false, true
	}
	return 0, false, false
}

func (s *scanner) startsLineComment(rest string) bool {
	for _, prefix := range s.opts.LineComments {
		if prefix != "" && strings.HasPrefix(rest, prefix) {
			return true
		}
	}
	return false
}

// dollarTag returns the opening $tag$ at the start of s, or "" if s does not
// start one. Tags follow identifier rules, so $1 is a parameter, not a tag.
func dollarTag(s string) string {
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '$':
			return s[:i+1]
		case c == '_' || isLetter(c):
		case isDigit(c) && i > 1:
		default:
			return ""
		}
	}
	return ""
}

func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }

// trimBlankLines joins lines after dropping leading and trailing
// whitespace-only lines. Inner lines keep their formatting.
func trimBlankLines(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if start == end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}
