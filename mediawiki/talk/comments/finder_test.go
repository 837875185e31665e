package comments

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discourse/mediawiki/talk"
	"discourse/mediawiki/talk/signature"
	"discourse/mediawiki/talk/timestamp"
)

func newFinder(t *testing.T) *Finder {
	t.Helper()
	ctx := talk.English()
	p, err := timestamp.Build(ctx)
	require.NoError(t, err)
	return NewFinder(ctx, signature.NewLocator(ctx, p))
}

const samplePage = `Lead remark. [[User:Alice|Alice]] 10:00, 1 January 2020 (UTC)

== Weather ==
First comment. [[User:Alice|Alice]] ([[User talk:Alice|talk]]) 10:05, 1 January 2020 (UTC)
:Reply one. [[User:Bob|Bob]] 10:10, 1 January 2020 (UTC)
::Deeper. [[User talk:Carol|Carol]] 10:15, 1 January 2020 (UTC)
:Back up. [[User:Dave|D]] 10:20, 1 January 2020 (UTC)

== Empty section ==

=== Sub ===
*Starred. [[User:Eve|Eve]] 11:00, 2 January 2020 (UTC)
`

func TestParseSections(t *testing.T) {
	tree := newFinder(t).Parse(samplePage)

	require.Len(t, tree.Sections, 4)
	assert.Equal(t, 0, tree.Sections[0].Level)
	assert.Equal(t, "Weather", tree.Sections[1].Headline)
	assert.Equal(t, "Empty section", tree.Sections[2].Headline)
	assert.Equal(t, "Sub", tree.Sections[3].Headline)
	assert.Equal(t, 2, tree.Sections[2].ID, "ordinal order")

	// Parent chain: Sub nests under Empty section, both under the lead root.
	assert.Equal(t, 2, tree.Sections[3].Parent)
	assert.Equal(t, 0, tree.Sections[2].Parent)

	// Empty section exists as a leaf with no comments.
	assert.Empty(t, tree.Sections[2].Comments)
}

func TestParseCommentThreading(t *testing.T) {
	tree := newFinder(t).Parse(samplePage)
	require.Len(t, tree.Comments, 6)

	lead := tree.Comments[0]
	assert.Equal(t, "Alice", lead.Author)
	assert.Equal(t, 0, lead.Level)
	assert.Equal(t, 0, lead.Section)

	first := tree.Comments[1]
	replyOne := tree.Comments[2]
	deeper := tree.Comments[3]
	backUp := tree.Comments[4]

	assert.Equal(t, NoID, first.Parent)
	assert.Equal(t, first.ID, replyOne.Parent)
	assert.Equal(t, replyOne.ID, deeper.Parent)
	assert.Equal(t, first.ID, backUp.Parent, "shallower reply walks up the chain")

	assert.Equal(t, []int{replyOne.ID, backUp.ID}, first.Children)
	assert.Equal(t, 1, replyOne.Level)
	assert.Equal(t, 2, deeper.Level)
	assert.Equal(t, byte(':'), replyOne.Marker)

	starred := tree.Comments[5]
	assert.Equal(t, byte('*'), starred.Marker)
	assert.Equal(t, 1, starred.Level)
	assert.Equal(t, 3, starred.Section)

	// Content/signature offsets separate markers, text and signature.
	assert.Equal(t, "Reply one.", tree.Content(replyOne.ID))
	assert.True(t, strings.HasPrefix(tree.Code[replyOne.SignatureStart:], "[[User:Bob"))
}

func TestParseOffsetsWithinSections(t *testing.T) {
	tree := newFinder(t).Parse(samplePage)
	for _, c := range tree.Comments {
		s := tree.Sections[c.Section]
		assert.GreaterOrEqual(t, c.Start, s.BodyStart)
		assert.LessOrEqual(t, c.End, s.BodyEnd)
		assert.GreaterOrEqual(t, c.ContentStart, c.Start)
		assert.LessOrEqual(t, c.ContentEnd, c.SignatureStart)
	}
}

func TestParseIdempotent(t *testing.T) {
	f := newFinder(t)
	a := f.Parse(samplePage)
	b := f.Parse(samplePage)
	assert.Equal(t, a, b)
}

func TestSectionRoundTrip(t *testing.T) {
	tree := newFinder(t).Parse(samplePage)

	// Lead flat span plus every section flat span reconstructs the page.
	var sb strings.Builder
	sb.WriteString(tree.Code[tree.Sections[0].Start:tree.Sections[0].BodyEnd])
	for _, s := range tree.Sections[1:] {
		sb.WriteString(tree.SectionCode(s.ID))
	}
	assert.Equal(t, samplePage, sb.String())
}

func TestParseTildeSignatures(t *testing.T) {
	f := newFinder(t)
	f.LocalUser = "Me"
	f.Now = time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)

	tree := f.Parse("== Topic ==\n:Hello ~~~~\n")
	require.Len(t, tree.Sections, 2)
	assert.Equal(t, "Topic", tree.Sections[1].Headline)
	require.Len(t, tree.Comments, 1)

	c := tree.Comments[0]
	assert.Equal(t, 1, c.Level)
	assert.Equal(t, "Me", c.Author)
	assert.True(t, c.HasTime)
	assert.Equal(t, "Hello", tree.Content(c.ID))
}

func TestParseNumberedListInTable(t *testing.T) {
	page := "== Poll ==\n{|\n|-\n|\n# Support. [[User:Frank|F]] 12:00, 3 January 2020 (UTC)\n|}\n"
	tree := newFinder(t).Parse(page)

	require.Len(t, tree.Comments, 1)
	c := tree.Comments[0]
	assert.True(t, c.NumberedList)
	assert.True(t, c.InTable)
	require.Len(t, tree.Problems, 1)
	assert.Contains(t, tree.Problems[0], "numberedList-table")
}

func TestParseClosedDiscussion(t *testing.T) {
	page := "== Done ==\n{{closed|1=\n:Resolved. [[User:Gina|G]] 09:00, 4 January 2020 (UTC)\n}}\nAfterword. [[User:Hal|H]] 09:30, 4 January 2020 (UTC)\n"
	tree := newFinder(t).Parse(page)

	require.Len(t, tree.Comments, 2)
	assert.True(t, tree.Comments[0].Closed)
	assert.False(t, tree.Comments[1].Closed)
}

func TestParseUnsignedAndUnparseable(t *testing.T) {
	page := "== Notes ==\nForgot. 08:00, 5 January 2020 (UTC) {{unsigned|Iva}}\nNo author at all here. 08:30, 5 January 2020 (UTC)\n"
	tree := newFinder(t).Parse(page)

	require.Len(t, tree.Comments, 2)
	assert.Equal(t, "Iva", tree.Comments[0].Author)
	assert.True(t, tree.Comments[0].Unsigned)
	assert.False(t, tree.Comments[0].Unparseable)
	assert.True(t, tree.Comments[1].Unparseable)
}

func TestQuotedTimestampDoesNotSplitComment(t *testing.T) {
	page := "== A ==\n:I quote: \"done 09:00, 2 May 2019 (UTC)\" earlier. [[User:Dave|D]] 11:00, 3 May 2019 (UTC)\n"
	tree := newFinder(t).Parse(page)

	// The quoted date has no author of its own; the rightmost signature on
	// the line ends the comment.
	require.Len(t, tree.Comments, 1)
	c := tree.Comments[0]
	assert.Equal(t, "Dave", c.Author)
	assert.False(t, c.Unparseable)
	assert.Less(t, c.Start, c.End)
	assert.Equal(t, `I quote: "done 09:00, 2 May 2019 (UTC)" earlier.`, tree.Content(c.ID))
	assert.True(t, strings.HasPrefix(tree.Code[c.SignatureStart:], "[[User:Dave"))
	assert.Equal(t, time.Date(2019, 5, 3, 11, 0, 0, 0, time.UTC), c.Time)
}

func TestAnchors(t *testing.T) {
	page := "== A ==\nOne. [[User:Jo|Jo]] 10:00, 6 January 2020 (UTC)\n:Two in same minute. [[User:Jo|Jo]] 10:00, 6 January 2020 (UTC)\n"
	tree := newFinder(t).Parse(page)

	require.Len(t, tree.Comments, 2)
	assert.Equal(t, "202001061000_Jo", tree.Comments[0].Anchor)
	assert.Equal(t, "202001061000_Jo_2", tree.Comments[1].Anchor)

	s := tree.Sections[1]
	assert.Equal(t, tree.Comments[0].ID, s.OldestComment)
	assert.Equal(t, "h-202001061000_Jo", s.SubscribeID)
}

func TestMaskedSignaturesIgnored(t *testing.T) {
	page := "== A ==\n<nowiki>Fake. [[User:X|X]] 10:00, 6 January 2020 (UTC)</nowiki>\nReal. [[User:Y|Y]] 11:00, 6 January 2020 (UTC)\n"
	tree := newFinder(t).Parse(page)

	require.Len(t, tree.Comments, 1)
	assert.Equal(t, "Y", tree.Comments[0].Author)
}
