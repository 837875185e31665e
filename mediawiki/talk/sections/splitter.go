// Package sections splits whole-page wikitext into heading boundaries.
// Heading markup inside nowiki/pre/syntaxhighlight blocks or HTML comments
// is not a boundary; headings inside closed-discussion templates still are
// (templates affect comment state, never section structure).
package sections

import (
	"regexp"
	"strings"
)

// Heading is one `==...==` boundary in page order.
type Heading struct {
	// Level is 1-6, the smaller of the leading and trailing `=` runs.
	Level int
	// Headline is the trimmed inner text.
	Headline string
	// Start is the byte offset of the heading line's first character.
	Start int
	// End is the byte offset just past the heading line, including its
	// newline when present.
	End int
}

// Range is a half-open [Start, End) byte span.
type Range struct {
	Start, End int
}

func (r Range) Contains(off int) bool { return off >= r.Start && off < r.End }

// InAny reports whether off falls inside any of the ranges.
func InAny(ranges []Range, off int) bool {
	for _, r := range ranges {
		if r.Contains(off) {
			return true
		}
	}
	return false
}

// headingLine finds candidate heading lines; level and text are derived by
// hand since leading/trailing runs interact (e.g. "=== x ==" is level 2).
var headingLine = regexp.MustCompile(`(?m)^=.*=[ \t]*$`)

var sensitiveOpen = regexp.MustCompile(`(?i)<(nowiki|pre|source|syntaxhighlight)[^>]*>|<!--`)

// Split scans the whole page once and returns its heading boundaries in
// order. The implicit level-0 lead section (page start to first heading) is
// the caller's to add; a page with no headings is all lead.
func Split(code string) []Heading {
	masked := SensitiveRanges(code)
	var out []Heading

	for _, m := range headingLine.FindAllStringIndex(code, -1) {
		if InAny(masked, m[0]) {
			continue
		}
		line := strings.TrimRight(code[m[0]:m[1]], " \t")
		level, headline, ok := parseHeadingLine(line)
		if !ok {
			continue
		}
		end := m[1]
		if end < len(code) && code[end] == '\n' {
			end++
		}
		out = append(out, Heading{Level: level, Headline: headline, Start: m[0], End: end})
	}
	return out
}

func parseHeadingLine(line string) (int, string, bool) {
	if len(line) < 3 {
		return 0, "", false
	}
	lead := 0
	for lead < len(line) && line[lead] == '=' {
		lead++
	}
	trail := 0
	for trail < len(line) && line[len(line)-1-trail] == '=' {
		trail++
	}
	level := min(lead, trail, 6)
	// A line of bare equals signs keeps at least one character of text.
	for level > 0 && 2*level >= len(line) {
		level--
	}
	if level == 0 {
		return 0, "", false
	}
	headline := strings.TrimSpace(line[level : len(line)-level])
	return level, headline, true
}

// SensitiveRanges returns the spans where wikitext markup is inert:
// <nowiki>, <pre>, <source>, <syntaxhighlight> bodies and HTML comments.
// Unterminated blocks extend to the end of the page.
func SensitiveRanges(code string) []Range {
	var out []Range
	off := 0
	for off < len(code) {
		m := sensitiveOpen.FindStringSubmatchIndex(code[off:])
		if m == nil {
			break
		}
		start := off + m[0]
		var closer string
		if m[2] >= 0 {
			closer = "</" + strings.ToLower(code[off+m[2]:off+m[3]]) + ">"
		} else {
			closer = "-->"
		}
		rest := code[off+m[1]:]
		end := len(code)
		if i := indexFold(rest, closer); i >= 0 {
			end = off + m[1] + i + len(closer)
		}
		out = append(out, Range{Start: start, End: end})
		off = end
	}
	return out
}

// TableRanges returns the spans of `{| ... |}` table markup, outermost only;
// nesting is folded into the enclosing table.
func TableRanges(code string) []Range {
	var out []Range
	depth := 0
	start := 0
	for i := 0; i+1 < len(code); i++ {
		switch {
		case code[i] == '{' && code[i+1] == '|':
			if depth == 0 {
				start = i
			}
			depth++
			i++
		case code[i] == '|' && code[i+1] == '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					out = append(out, Range{Start: start, End: i + 2})
				}
			}
			i++
		}
	}
	if depth > 0 {
		out = append(out, Range{Start: start, End: len(code)})
	}
	return out
}

func indexFold(s, sub string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(sub))
}
