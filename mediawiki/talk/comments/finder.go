package comments

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"discourse/mediawiki/talk"
	"discourse/mediawiki/talk/sections"
	"discourse/mediawiki/talk/signature"
)

// Finder turns page wikitext into a Tree. One pass per revision; the result
// replaces any previous tree wholesale.
type Finder struct {
	ctx *talk.PageContext
	sig *signature.Locator

	// LocalUser and Now attribute raw tilde signatures ("~~~~") in
	// pre-save wikitext. Left zero, such comments parse as unsigned ones
	// with no date.
	LocalUser string
	Now       time.Time
}

func NewFinder(ctx *talk.PageContext, sig *signature.Locator) *Finder {
	return &Finder{ctx: ctx, sig: sig}
}

// tildeRun is the unexpanded signature markup: ~~~ name, ~~~~ name+date,
// ~~~~~ date only.
var tildeRun = regexp.MustCompile(`~{3,5}`)

// Parse runs the boundary scan over the whole page. It never fails: broken
// regions degrade to unparseable comments or entries in Tree.Problems.
func (f *Finder) Parse(code string) *Tree {
	t := &Tree{Code: code}

	masked := sections.SensitiveRanges(code)
	tables := sections.TableRanges(code)
	closed := templateRanges(code, f.ctx.ClosedDiscussionTemplates)

	f.buildSections(t, code)
	for i := range t.Sections {
		f.scanSection(t, i, masked, tables, closed)
	}
	f.assignAnchors(t)
	f.assignSectionDerived(t)
	return t
}

// buildSections lays out the section arena: the implicit lead plus one
// entry per heading, parents derived from level transitions.
func (f *Finder) buildSections(t *Tree, code string) {
	hs := sections.Split(code)

	lead := Section{
		ID: 0, Level: 0, Parent: NoID,
		Start: 0, BodyStart: 0, BodyEnd: len(code), End: len(code),
		OldestComment: NoID,
	}
	if len(hs) > 0 {
		lead.BodyEnd = hs[0].Start
	}
	t.Sections = append(t.Sections, lead)

	// Stack of open sections by level; the lead is the root of every chain.
	stack := []int{0}
	for i, h := range hs {
		id := len(t.Sections)
		for len(stack) > 1 && t.Sections[stack[len(stack)-1]].Level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		s := Section{
			ID: id, Level: h.Level, Headline: h.Headline,
			Parent: stack[len(stack)-1],
			Start:  h.Start, BodyStart: h.End,
			BodyEnd: len(code), End: len(code),
			OldestComment: NoID,
		}
		if i+1 < len(hs) {
			s.BodyEnd = hs[i+1].Start
		}
		for _, later := range hs[i+1:] {
			if later.Level <= h.Level {
				s.End = later.Start
				break
			}
		}
		t.Sections = append(t.Sections, s)
		stack = append(stack, id)
	}
}

// scanSection finds the comments in one section's flat span and links them
// into a tree by indentation depth.
func (f *Finder) scanSection(t *Tree, sid int, masked, tables, closed []sections.Range) {
	s := &t.Sections[sid]
	body := t.Code[s.BodyStart:s.BodyEnd]
	base := s.BodyStart

	sigs := f.sectionSignatures(body, base, masked)

	// Chain of open comments with strictly increasing levels; a new
	// comment attaches under the nearest shallower one.
	var chain []int
	prevEnd := 0

	for _, sg := range sigs {
		start := skipBlankLines(body, prevEnd, sg.Start)
		if start >= sg.Start {
			// Signature with no line of its own before it; anchor the
			// comment at its line start.
			start = strings.LastIndexByte(body[:sg.Start], '\n') + 1
			if start < prevEnd {
				start = prevEnd
			}
		}

		firstLevel, marker, numbered := markerRun(f.ctx, body, start)
		level := firstLevel
		if level == 0 {
			// Unindented first line: the comment may open with unsigned
			// preamble (table markup, a moved-template line); read the
			// depth off the signature's own line instead.
			sigLine := strings.LastIndexByte(body[:sg.Start], '\n') + 1
			if sigLine > start {
				if l, m, n := markerRun(f.ctx, body, sigLine); l > 0 {
					level, marker, numbered = l, m, n
				}
			}
		}
		contentStart := start + firstLevel
		for contentStart < sg.Start && (body[contentStart] == ' ' || body[contentStart] == '\t') {
			contentStart++
		}
		contentEnd := sg.Start
		for contentEnd > contentStart && isSpace(body[contentEnd-1]) {
			contentEnd--
		}
		if contentEnd < contentStart {
			contentEnd = contentStart
		}
		end := lineEndAfter(body, sg.End)
		prevEnd = end

		c := Comment{
			ID:      len(t.Comments),
			Section: sid,
			Parent:  NoID,
			Author:  sg.Author, Anonymous: sg.Anonymous,
			Unsigned:    sg.Unsigned,
			Unparseable: sg.Unparseable || !sg.Timestamp.Parsed,
			Time:        sg.Timestamp.Time, HasTime: sg.Timestamp.Parsed,
			Level: level, Marker: marker,
			Index: len(t.Comments),
			Start: base + start, End: base + end,
			ContentStart: base + contentStart, ContentEnd: base + contentEnd,
			SignatureStart: base + sg.Start,
			NumberedList: numbered,
			// The signature's position decides table/closed membership:
			// a comment may open with preamble lines that straddle the
			// markup boundary.
			InTable: sections.InAny(tables, base+sg.Start),
			Closed:  sections.InAny(closed, base+sg.Start),
		}
		if c.NumberedList && c.InTable {
			t.Problems = append(t.Problems,
				fmt.Sprintf("numberedList-table: comment at offset %d splits a numbered list across table markup", c.Start))
		}

		for len(chain) > 0 && t.Comments[chain[len(chain)-1]].Level >= level {
			chain = chain[:len(chain)-1]
		}
		if len(chain) > 0 {
			parent := chain[len(chain)-1]
			c.Parent = parent
			t.Comments[parent].Children = append(t.Comments[parent].Children, c.ID)
		}
		chain = append(chain, c.ID)

		t.Comments = append(t.Comments, c)
		s.Comments = append(s.Comments, c.ID)
	}
}

// sectionSignatures merges expanded signatures with raw tilde runs, in
// offset order, dropping anything inside inert markup.
func (f *Finder) sectionSignatures(body string, base int, masked []sections.Range) []signature.Signature {
	sigs := f.sig.All(body)
	kept := sigs[:0]
	for _, sg := range sigs {
		if !sections.InAny(masked, base+sg.Timestamp.Start) {
			kept = append(kept, sg)
		}
	}
	sigs = kept

	for _, m := range tildeRun.FindAllStringIndex(body, -1) {
		if sections.InAny(masked, base+m[0]) || withinAny(sigs, m[0]) {
			continue
		}
		n := m[1] - m[0]
		sg := signature.Signature{
			Author: f.LocalUser,
			Start:  m[0], End: m[1],
		}
		if n == 5 {
			// Five tildes render a bare date with no author.
			sg.Author = ""
		}
		sg.Timestamp.Start, sg.Timestamp.End = m[0], m[1]
		if !f.Now.IsZero() && n != 3 {
			sg.Timestamp.Time = f.Now
			sg.Timestamp.Parsed = true
		}
		sg.Unparseable = sg.Author == "" && !sg.Timestamp.Parsed
		sigs = append(sigs, sg)
	}

	sort.Slice(sigs, func(i, j int) bool { return sigs[i].Start < sigs[j].Start })

	// A timestamp with no attributable author does not end a comment when a
	// later signature finishes the same line; the rightmost one wins. Quoted
	// dates inside a comment would otherwise split it in two.
	kept = sigs[:0]
	for i, sg := range sigs {
		if sg.Unparseable && i+1 < len(sigs) && sigs[i+1].Start < lineEndAfter(body, sg.End) {
			continue
		}
		kept = append(kept, sg)
	}
	return kept
}

func withinAny(sigs []signature.Signature, off int) bool {
	for _, sg := range sigs {
		if off >= sg.Start && off < sg.End {
			return true
		}
	}
	return false
}

// markerRun measures the indentation prefix at a line start.
func markerRun(ctx *talk.PageContext, body string, start int) (level int, marker byte, numbered bool) {
	i := start
	for i < len(body) && ctx.IsIndentationChar(body[i]) {
		if body[i] == '#' {
			numbered = true
		}
		marker = body[i]
		i++
	}
	return i - start, marker, numbered
}

// skipBlankLines advances from off past whitespace-only lines, stopping at
// limit.
func skipBlankLines(body string, off, limit int) int {
	for off < limit {
		lineEnd := strings.IndexByte(body[off:], '\n')
		if lineEnd == -1 {
			break
		}
		if strings.TrimSpace(body[off:off+lineEnd]) != "" {
			break
		}
		off += lineEnd + 1
	}
	return off
}

// lineEndAfter returns the offset just past the line containing off,
// newline included.
func lineEndAfter(body string, off int) int {
	i := strings.IndexByte(body[off:], '\n')
	if i == -1 {
		return len(body)
	}
	return off + i + 1
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

// assignAnchors gives every comment its deterministic id.
func (f *Finder) assignAnchors(t *Tree) {
	seen := map[string]int{}
	for i := range t.Comments {
		c := &t.Comments[i]
		stamp := "unknown"
		if c.HasTime {
			stamp = c.Time.UTC().Format("200601021504")
		}
		author := c.Author
		if author == "" {
			author = "unknown"
		}
		anchor := stamp + "_" + strings.ReplaceAll(author, " ", "_")
		seen[anchor]++
		if n := seen[anchor]; n > 1 {
			anchor = fmt.Sprintf("%s_%d", anchor, n)
		}
		c.Anchor = anchor
	}
}

// assignSectionDerived fills per-section oldest-comment and subscribe ids.
func (f *Finder) assignSectionDerived(t *Tree) {
	for i := range t.Sections {
		s := &t.Sections[i]
		for _, cid := range s.Comments {
			c := &t.Comments[cid]
			if !c.HasTime {
				continue
			}
			if s.OldestComment == NoID || c.Time.Before(t.Comments[s.OldestComment].Time) {
				s.OldestComment = cid
			}
		}
		switch {
		case s.OldestComment != NoID:
			s.SubscribeID = "h-" + t.Comments[s.OldestComment].Anchor
		case s.Headline != "":
			s.SubscribeID = "h-" + strings.ReplaceAll(s.Headline, " ", "_")
		}
	}
}

// templateRanges finds {{name|...}} spans for the given template name
// aliases, matched case-insensitively, nested braces balanced. Unterminated
// templates run to the end of the page.
func templateRanges(code string, aliases []string) []sections.Range {
	if len(aliases) == 0 {
		return nil
	}
	parts := make([]string, 0, len(aliases))
	for _, a := range aliases {
		if a != "" {
			parts = append(parts, strings.ReplaceAll(regexp.QuoteMeta(a), " ", "[ _]"))
		}
	}
	open := regexp.MustCompile(`(?i)\{\{[ _]*(?:` + strings.Join(parts, "|") + `)[ _]*[|}\n]`)

	var out []sections.Range
	off := 0
	for off < len(code) {
		m := open.FindStringIndex(code[off:])
		if m == nil {
			break
		}
		start := off + m[0]
		end := matchBraces(code, start)
		out = append(out, sections.Range{Start: start, End: end})
		off = end
	}
	return out
}

// matchBraces scans from the "{{" at start to its balancing "}}".
func matchBraces(code string, start int) int {
	depth := 0
	for i := start; i+1 < len(code); i++ {
		switch {
		case code[i] == '{' && code[i+1] == '{':
			depth++
			i++
		case code[i] == '}' && code[i+1] == '}':
			depth--
			i++
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(code)
}
