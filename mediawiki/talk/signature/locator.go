// Package signature finds the author+timestamp pair that ends a comment.
package signature

import (
	"regexp"
	"sort"
	"strings"

	"discourse/mediawiki/talk"
	"discourse/mediawiki/talk/timestamp"
)

// Signature is the rightmost plausible author/timestamp pair in a region of
// wikitext.
type Signature struct {
	// Author is the normalized user name, empty when unknown.
	Author string
	// Anonymous is set when the author was attributed through a
	// contributions link, i.e. an IP editor.
	Anonymous bool
	// Unsigned is set when the author came from an {{unsigned}} template
	// rather than a signature link.
	Unsigned bool
	// Unparseable is set when a timestamp was found but no author could be
	// attributed at all. The comment is retained; downstream stages only
	// degrade matching confidence.
	Unparseable bool

	Timestamp timestamp.Match
	// Start is where the signature block begins: the author link when one
	// precedes the timestamp on the same line, else the timestamp itself.
	Start int
	// End is the end of the timestamp match, timezone included.
	End int
}

// Locator holds the compiled user-link and unsigned-template patterns for
// one page context.
type Locator struct {
	ctx     *talk.PageContext
	pattern *timestamp.Pattern

	userLink *regexp.Regexp
	unsigned *regexp.Regexp
}

func NewLocator(ctx *talk.PageContext, pattern *timestamp.Pattern) *Locator {
	return &Locator{
		ctx:      ctx,
		pattern:  pattern,
		userLink: buildUserLinkRe(ctx),
		unsigned: buildUnsignedRe(ctx),
	}
}

// buildUserLinkRe recognizes [[User:Name]], [[User talk:Name]] and
// [[Special:Contributions/Name]] style links, case-insensitively, tolerant
// of underscores and extra spaces. Group 1 or 2 carries the name; group 2
// means a contributions link.
func buildUserLinkRe(ctx *talk.PageContext) *regexp.Regexp {
	ns := append([]string{}, ctx.UserNamespaces...)
	ns = append(ns, ctx.UserTalkNamespaces...)
	nsAlt := aliasAlternation(ns)
	contribAlt := aliasAlternation(ctx.ContributionsPages)

	re := `(?i)\[\[[ _]*:?[ _]*(?:` +
		`(?:` + nsAlt + `)[ _]*:[ _]*([^|\]#/]+)` +
		`|(?:` + contribAlt + `)/[ _]*([^|\]#/]+)` +
		`)`
	return regexp.MustCompile(re)
}

// buildUnsignedRe recognizes the configured unsigned-template aliases.
// Group 1 is the template name, groups 2 and 3 the first two parameters.
// Templates named "...2" put the date first and the author second.
func buildUnsignedRe(ctx *talk.PageContext) *regexp.Regexp {
	alt := aliasAlternation(ctx.UnsignedTemplates)
	re := `(?i)\{\{[ _]*(` + alt + `)[ _]*\|[ _]*([^|}]*?)[ _]*(?:\|[ _]*([^|}]*?)[ _]*)?(?:\|[^}]*)?\}\}`
	return regexp.MustCompile(re)
}

func aliasAlternation(aliases []string) string {
	sorted := make([]string, len(aliases))
	copy(sorted, aliases)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	parts := make([]string, 0, len(sorted))
	for _, a := range sorted {
		if a == "" {
			continue
		}
		parts = append(parts, strings.ReplaceAll(regexp.QuoteMeta(a), " ", "[ _]"))
	}
	if len(parts) == 0 {
		return `\x{0}`
	}
	return strings.Join(parts, "|")
}

// Last finds the signature ending the given region, using the last
// non-overlapping timestamp match (right-to-left semantics: quoted
// sub-comments may contain earlier timestamp-like substrings).
func (l *Locator) Last(code string) (Signature, bool) {
	ts, ok := l.pattern.LastMatch(code)
	if !ok {
		return Signature{}, false
	}
	return l.attribute(code, ts, 0), true
}

// All returns every signature in code, one per timestamp match. Author
// attribution for each looks back no further than the previous timestamp,
// so a quoted signature does not steal a later comment's author link.
func (l *Locator) All(code string) []Signature {
	matches := l.pattern.AllMatches(code)
	out := make([]Signature, 0, len(matches))
	floor := 0
	for _, ts := range matches {
		out = append(out, l.attribute(code, ts, floor))
		floor = ts.End
	}
	return out
}

// attribute resolves the author for one timestamp match. floor bounds the
// backward scan.
func (l *Locator) attribute(code string, ts timestamp.Match, floor int) Signature {
	sig := Signature{Timestamp: ts, Start: ts.Start, End: ts.End}

	// Only links on the timestamp's own line count as its signature.
	lineStart := strings.LastIndexByte(code[:ts.Start], '\n') + 1
	if lineStart < floor {
		lineStart = floor
	}
	region := code[lineStart:ts.Start]

	links := l.userLink.FindAllStringSubmatchIndex(region, -1)
	if len(links) > 0 {
		m := links[len(links)-1]
		if m[2] >= 0 {
			sig.Author = normalizeUserName(region[m[2]:m[3]])
		} else if m[4] >= 0 {
			sig.Author = normalizeUserName(region[m[4]:m[5]])
			sig.Anonymous = true
		}
		sig.Start = lineStart + m[0]
		return sig
	}

	// No author link: fall back to an unsigned-template attribution
	// anywhere on the line, else keep the comment flagged unparseable.
	if name, ok := l.unsignedAuthor(region + code[ts.End:min(len(code), ts.End+200)]); ok {
		sig.Author = name
		sig.Unsigned = true
		return sig
	}
	sig.Unparseable = true
	return sig
}

// unsignedAuthor extracts the author parameter from the first unsigned
// template in code.
func (l *Locator) unsignedAuthor(code string) (string, bool) {
	m := l.unsigned.FindStringSubmatch(code)
	if m == nil {
		return "", false
	}
	name, second := m[2], m[3]
	if strings.HasSuffix(m[1], "2") && second != "" {
		name = second
	}
	name = normalizeUserName(name)
	if name == "" {
		return "", false
	}
	return name, true
}

// normalizeUserName maps underscores to spaces and collapses runs, matching
// how MediaWiki canonicalizes titles.
func normalizeUserName(name string) string {
	name = strings.ReplaceAll(name, "_", " ")
	return strings.Join(strings.Fields(name), " ")
}
