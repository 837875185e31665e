// Package transform applies reply/edit/add/delete operations to page
// wikitext. Every operation is a text surgery on the target's resolved byte
// range: everything outside it is preserved byte for byte.
package transform

import (
	"regexp"
	"strings"

	"discourse/mediawiki/talk"
	"discourse/mediawiki/talk/comments"
	"discourse/mediawiki/talk/talkerr"
)

type Kind int

const (
	Reply Kind = iota
	Edit
	AddSubsection
	AddSection
	Delete
	DeleteSection
)

// Operation describes one requested change. Produced per user action,
// consumed once.
type Operation struct {
	Kind Kind
	// Comment targets Reply, Edit and Delete. Reply with Comment == NoID
	// replies to the Section itself (a new top-level comment).
	Comment int
	// Section targets AddSubsection, DeleteSection and section-level Reply.
	Section int

	// Text is the new content, without markers or signature.
	Text string
	// Headline names the new section for the add operations.
	Headline string

	// Chronological places a reply after the whole existing thread rather
	// than right under the target, and a new section after the lead rather
	// than at page end.
	Chronological bool
}

// Result is the transformed page plus the isolated new-comment code used
// for preview and submit summaries.
type Result struct {
	WholeCode   string
	CommentCode string
	// Offset is where CommentCode begins inside WholeCode, -1 for deletes.
	Offset int
}

type Transformer struct {
	ctx *talk.PageContext
}

func New(ctx *talk.PageContext) *Transformer { return &Transformer{ctx: ctx} }

var signatureMarkup = regexp.MustCompile(`~{3,5}`)

// Apply runs op against the tree's source text and returns the new whole
// text. The tree is read only; the caller reparses after a successful
// submit.
func (tr *Transformer) Apply(t *comments.Tree, op Operation) (Result, error) {
	switch op.Kind {
	case Reply:
		return tr.reply(t, op)
	case Edit:
		return tr.edit(t, op)
	case AddSubsection:
		return tr.addSubsection(t, op)
	case AddSection:
		return tr.addSection(t, op)
	case Delete:
		return tr.deleteComment(t, op)
	case DeleteSection:
		return tr.deleteSection(t, op)
	}
	return Result{}, talkerr.Internal(nil)
}

// CommentTextToCode turns user text into comment wikitext at the given
// depth: every line gets the marker prefix and the last line a signature,
// unless the text already carries one.
func (tr *Transformer) CommentTextToCode(text string, level int, family byte) string {
	prefix := ""
	if level > 0 {
		if family == 0 {
			family = tr.ctx.DefaultIndentationChar
		}
		prefix = strings.Repeat(string(family), level)
	}

	lines := strings.Split(strings.TrimRight(text, " \t\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + strings.TrimRight(l, " \t")
	}
	code := strings.Join(lines, "\n")
	if !signatureMarkup.MatchString(code) {
		code += " ~~~~"
	}
	return code + "\n"
}

func (tr *Transformer) reply(t *comments.Tree, op Operation) (Result, error) {
	var level int
	var family byte
	var at int

	if op.Comment != comments.NoID {
		c := &t.Comments[op.Comment]
		if err := replyGuard(c); err != nil {
			return Result{}, err
		}
		level = c.Level + 1
		family = c.Marker
		if family == 0 {
			family = tr.ctx.DefaultIndentationChar
		}
		at = c.End
		if op.Chronological {
			for _, d := range t.Descendants(c.ID) {
				if t.Comments[d].End > at {
					at = t.Comments[d].End
				}
			}
		}
	} else {
		s := t.Sections[op.Section]
		if len(s.Comments) == 0 {
			return Result{}, talkerr.Parse(talkerr.CodeFindPlace,
				"section %q has no comments to reply under; add a subsection instead", s.Headline)
		}
		last := s.Comments[len(s.Comments)-1]
		at = t.Comments[last].End
		level = 0
	}

	block := tr.CommentTextToCode(op.Text, level, family)
	return insertBlock(t.Code, at, block), nil
}

func (tr *Transformer) edit(t *comments.Tree, op Operation) (Result, error) {
	c := &t.Comments[op.Comment]
	if err := replyGuard(c); err != nil {
		return Result{}, err
	}

	// Continuation lines keep the comment's own indentation.
	prefix := ""
	if c.Level > 0 {
		family := c.Marker
		if family == 0 {
			family = tr.ctx.DefaultIndentationChar
		}
		prefix = strings.Repeat(string(family), c.Level)
	}
	lines := strings.Split(strings.TrimRight(op.Text, " \t\n"), "\n")
	if len(lines) > 1 && c.NumberedList {
		// A line break inside a "#" item restarts the numbering below it.
		return Result{}, talkerr.Parse(talkerr.CodeNumberedList,
			"comment %s is a numbered list item; multiline text would restart the numbering", c.Anchor)
	}
	for i := 1; i < len(lines); i++ {
		lines[i] = prefix + strings.TrimRight(lines[i], " \t")
	}
	body := strings.Join(lines, "\n")

	// The original signature block stays verbatim unless the new text
	// already signs itself.
	end := c.ContentEnd
	if signatureMarkup.MatchString(body) {
		end = c.End
		if end > c.Start && t.Code[end-1] == '\n' {
			end--
		}
	}

	whole := t.Code[:c.ContentStart] + body + t.Code[end:]
	return Result{WholeCode: whole, CommentCode: body, Offset: c.ContentStart}, nil
}

func (tr *Transformer) addSubsection(t *comments.Tree, op Operation) (Result, error) {
	s := t.Sections[op.Section]
	level := min(s.Level+1, 6)
	if s.Level == 0 {
		level = 2
	}

	// s.End sits after the target's last descendant subsection, keeping
	// subsections in stable nesting order.
	return tr.insertSectionAt(t.Code, s.End, level, op), nil
}

func (tr *Transformer) addSection(t *comments.Tree, op Operation) (Result, error) {
	at := len(t.Code)
	if op.Chronological && len(t.Sections) > 1 {
		at = t.Sections[1].Start
	}
	return tr.insertSectionAt(t.Code, at, 2, op), nil
}

func (tr *Transformer) insertSectionAt(code string, at, level int, op Operation) Result {
	marker := strings.Repeat("=", level)
	block := marker + " " + strings.TrimSpace(op.Headline) + " " + marker + "\n" +
		tr.CommentTextToCode(op.Text, 0, 0)
	return insertBlock(code, at, block)
}

func (tr *Transformer) deleteComment(t *comments.Tree, op Operation) (Result, error) {
	c := &t.Comments[op.Comment]
	if len(c.Children) > 0 {
		return Result{}, talkerr.Parse(talkerr.CodeDeleteRepliesComment,
			"comment %s has replies", c.Anchor)
	}
	if c.Closed {
		return Result{}, talkerr.Parse(talkerr.CodeClosed,
			"comment %s is inside a closed discussion", c.Anchor)
	}
	return cutRange(t.Code, c.Start, c.End), nil
}

func (tr *Transformer) deleteSection(t *comments.Tree, op Operation) (Result, error) {
	s := t.Sections[op.Section]
	total := len(s.Comments)
	for _, sub := range t.Sections {
		if sub.ID != s.ID && sub.Start >= s.Start && sub.Start < s.End {
			total += len(sub.Comments)
		}
	}
	if total > 1 {
		return Result{}, talkerr.Parse(talkerr.CodeDeleteRepliesSection,
			"section %q holds other comments", s.Headline)
	}
	return cutRange(t.Code, s.Start, s.End), nil
}

// replyGuard rejects targets that must not be replied to or edited.
func replyGuard(c *comments.Comment) error {
	if c.Closed {
		return talkerr.Parse(talkerr.CodeClosed,
			"comment %s is inside a closed discussion", c.Anchor)
	}
	if c.NumberedList && c.InTable {
		return talkerr.Parse(talkerr.CodeNumberedListTable,
			"comment %s is a numbered list item inside a table; MediaWiki cannot renumber across table cells", c.Anchor)
	}
	return nil
}

// insertBlock splices block in at offset. The prefix is preserved byte for
// byte; the seam toward the following content is normalized so the page
// never gains three consecutive newlines and a following heading keeps one
// blank line of separation.
func insertBlock(code string, at int, block string) Result {
	prefix := code[:at]
	suffix := code[at:]

	if prefix != "" && !strings.HasSuffix(prefix, "\n") {
		block = "\n" + block
	}
	offset := at + (len(block) - len(strings.TrimLeft(block, "\n")))

	if strings.HasPrefix(suffix, "=") {
		// One blank line before the next heading.
		block += "\n"
	}
	for strings.HasSuffix(block, "\n\n") && strings.HasPrefix(suffix, "\n") {
		block = block[:len(block)-1]
	}

	return Result{
		WholeCode:   prefix + block + suffix,
		CommentCode: strings.TrimLeft(block, "\n"),
		Offset:      offset,
	}
}

// cutRange removes [start, end) and collapses blank lines the cut left
// behind, never letting more than one survive.
func cutRange(code string, start, end int) Result {
	prefix := code[:start]
	suffix := code[end:]
	for strings.HasSuffix(prefix, "\n\n") && strings.HasPrefix(suffix, "\n") {
		suffix = suffix[1:]
	}
	for strings.HasSuffix(prefix, "\n\n\n") {
		prefix = prefix[:len(prefix)-1]
	}
	if suffix == "" {
		for strings.HasSuffix(prefix, "\n\n") {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return Result{WholeCode: prefix + suffix, CommentCode: "", Offset: -1}
}
