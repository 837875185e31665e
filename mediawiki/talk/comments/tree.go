// Package comments builds the per-page comment tree from section wikitext.
// The tree is an index-based arena: sections and comments live in flat
// slices and refer to each other by integer id, so a tree value crosses
// goroutine and process boundaries without reference cycles.
package comments

import "time"

// NoID marks an absent arena reference.
const NoID = -1

// Tree is the parse result for one revision of a page. Rebuilt wholesale
// whenever the page wikitext is re-fetched; never patched in place.
type Tree struct {
	// Code is the exact page wikitext the offsets below point into.
	Code string

	Sections []Section
	Comments []Comment

	// Problems collects reportable parse conditions that do not abort the
	// parse, e.g. a numbered-list comment inside a table.
	Problems []string
}

// Section is one heading-delimited region. Section 0 is always the implicit
// level-0 lead (possibly empty).
type Section struct {
	ID int
	// Level is 0 for the lead, else 1-6 from the heading markup.
	Level    int
	Headline string
	// Parent is the nearest preceding section with a smaller level, or NoID.
	Parent int

	// Start is the heading line's first byte (0 for the lead). BodyStart
	// follows the heading line. BodyEnd is the next heading of any level
	// (or page end): the section's own flat span, excluding subsections.
	// End is the next same-or-higher-level heading (or page end): the full
	// span including descendant subsections.
	Start     int
	BodyStart int
	BodyEnd   int
	End       int

	// Comments lists the ids of comments directly in this section, in order.
	Comments []int
	// OldestComment is the id of the earliest-dated comment in the section,
	// or NoID.
	OldestComment int

	// SubscribeID identifies the section for watch purposes independently
	// of its headline text.
	SubscribeID string
}

// Comment is one signed turn of discussion.
type Comment struct {
	ID      int
	Section int
	// Parent is the nearest shallower-level comment above, or NoID for a
	// top-level comment.
	Parent   int
	Children []int

	Author      string
	Anonymous   bool
	Unsigned    bool
	Unparseable bool
	// Time is zero when HasTime is false (unparseable timestamp).
	Time    time.Time
	HasTime bool

	// Level is the indentation depth: the marker run length of the first
	// line. Marker is the dominant marker character family (0 at level 0).
	Level  int
	Marker byte
	// Index is the comment's ordinal across the whole page.
	Index int

	// Offsets into Tree.Code. [Start, End) is the full comment including
	// markers, signature and trailing newline. [ContentStart, ContentEnd)
	// is the text proper: after the markers, before the signature.
	Start          int
	End            int
	ContentStart   int
	ContentEnd     int
	SignatureStart int

	// NumberedList is set when the first-line markers use '#'. InTable is
	// set when the comment sits inside {| |} markup; the two together are
	// the numberedList-table error condition.
	NumberedList bool
	InTable      bool
	// Closed is set inside closed-discussion templates: parsing proceeds
	// normally but reply/edit affordances are suppressed.
	Closed bool

	// Anchor is the deterministic id, "YYYYMMDDHHMM_Author" with a "_n"
	// suffix when several comments share author and minute.
	Anchor string
}

// SectionCode returns the section's flat source span (heading included,
// subsections excluded).
func (t *Tree) SectionCode(id int) string {
	s := t.Sections[id]
	return t.Code[s.Start:s.BodyEnd]
}

// CommentCode returns the comment's full source span.
func (t *Tree) CommentCode(id int) string {
	c := t.Comments[id]
	return t.Code[c.Start:c.End]
}

// Content returns the comment's text between markers and signature.
func (t *Tree) Content(id int) string {
	c := t.Comments[id]
	return t.Code[c.ContentStart:c.ContentEnd]
}

// AncestorHeadlines returns the headline chain from the comment's section
// up to the page root, nearest first.
func (t *Tree) AncestorHeadlines(c *Comment) []string {
	var out []string
	for sid := c.Section; sid != NoID; sid = t.Sections[sid].Parent {
		out = append(out, t.Sections[sid].Headline)
	}
	return out
}

// HasReplies reports whether the comment has descendant comments.
func (t *Tree) HasReplies(id int) bool {
	return len(t.Comments[id].Children) > 0
}

// Descendants appends the ids of all replies under id, depth first.
func (t *Tree) Descendants(id int) []int {
	var out []int
	var walk func(int)
	walk = func(cid int) {
		for _, ch := range t.Comments[cid].Children {
			out = append(out, ch)
			walk(ch)
		}
	}
	walk(id)
	return out
}

// FindAnchor returns the comment with the given anchor id, or nil.
func (t *Tree) FindAnchor(anchor string) *Comment {
	for i := range t.Comments {
		if t.Comments[i].Anchor == anchor {
			return &t.Comments[i]
		}
	}
	return nil
}
