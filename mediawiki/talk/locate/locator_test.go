package locate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discourse/mediawiki/talk"
	"discourse/mediawiki/talk/comments"
	"discourse/mediawiki/talk/signature"
	"discourse/mediawiki/talk/talkerr"
	"discourse/mediawiki/talk/timestamp"
)

func parse(t *testing.T, page string) *comments.Tree {
	t.Helper()
	ctx := talk.English()
	p, err := timestamp.Build(ctx)
	require.NoError(t, err)
	return comments.NewFinder(ctx, signature.NewLocator(ctx, p)).Parse(page)
}

const oldPage = `== Alpha ==
Opening. [[User:Alice|Alice]] 10:00, 1 January 2020 (UTC)
:Reply. [[User:Bob|Bob]] 10:10, 1 January 2020 (UTC)

== Beta ==
Other topic. [[User:Carol|Carol]] 11:00, 1 January 2020 (UTC)
:Target comment here. [[User:Dave|Dave]] 11:10, 1 January 2020 (UTC)
`

func TestCommentExactAnchor(t *testing.T) {
	old := parse(t, oldPage)
	ref := RefOf(old, 3)

	m, err := New().Comment(ref, parse(t, oldPage))
	require.NoError(t, err)
	assert.Equal(t, 3, m.ID)
	assert.Equal(t, 1.0, m.Score, "exact id match is certain")
}

func TestCommentSurvivesIndexShift(t *testing.T) {
	old := parse(t, oldPage)
	ref := RefOf(old, 3)
	require.Equal(t, "Dave", old.Comments[3].Author)

	// The Alpha thread was deleted; Dave's comment shifted two indexes down.
	newPage := `== Alpha ==

== Beta ==
Other topic. [[User:Carol|Carol]] 11:00, 1 January 2020 (UTC)
:Target comment here. [[User:Dave|Dave]] 11:10, 1 January 2020 (UTC)
`
	fresh := parse(t, newPage)
	m, err := New().Comment(ref, fresh)
	require.NoError(t, err)
	assert.Equal(t, "Dave", fresh.Comments[m.ID].Author)
	assert.NotEqual(t, ref.Index, fresh.Comments[m.ID].Index,
		"author+date dominates index")
}

func TestCommentAuthorDateGate(t *testing.T) {
	old := parse(t, oldPage)
	ref := RefOf(old, 3)

	// Same position, different author: never a candidate.
	newPage := strings.ReplaceAll(oldPage, "User:Dave|Dave", "User:Mallory|M")
	newPage = strings.ReplaceAll(newPage, "[[User:Dave", "[[User:Mallory")
	_, err := New().Comment(ref, parse(t, newPage))
	require.Error(t, err)
	assert.True(t, talkerr.IsCode(err, talkerr.CodeLocateComment))
}

func TestCommentDuplicateSignatureTieBreak(t *testing.T) {
	page := `== A ==
Same text. [[User:Jo|Jo]] 10:00, 6 January 2020 (UTC)
:Same text. [[User:Jo|Jo]] 10:00, 6 January 2020 (UTC)
`
	old := parse(t, page)
	ref := RefOf(old, 1)
	ref.Anchor = "" // force scoring past the id shortcut

	m, err := New().Comment(ref, parse(t, page))
	require.NoError(t, err)
	assert.Equal(t, 1, m.ID, "ties break on the smaller index distance")
}

func TestCommentAnchorBaseCredit(t *testing.T) {
	page := `== A ==
First take. [[User:Jo|Jo]] 10:00, 6 January 2020 (UTC)
:Second take. [[User:Jo|Jo]] 10:00, 6 January 2020 (UTC)
`
	old := parse(t, page)
	ref := RefOf(old, 1)
	require.Equal(t, "202001061000_Jo_2", ref.Anchor)

	// The earlier same-minute comment was deleted and the headline edited,
	// so the ordinal suffix is gone from the surviving comment's anchor.
	fresh := parse(t, "== B ==\n:Second take. [[User:Jo|Jo]] 10:00, 6 January 2020 (UTC)\n")
	require.Equal(t, "202001061000_Jo", fresh.Comments[0].Anchor)

	m, err := New().Comment(ref, fresh)
	require.NoError(t, err)
	assert.Equal(t, 0, m.ID)

	noID := New()
	noID.W.ID = 0
	m2, err := noID.Comment(ref, fresh)
	require.NoError(t, err)
	assert.Greater(t, m.Score, m2.Score, "shared anchor base earns extra credit")
}

func TestAnchorBase(t *testing.T) {
	assert.Equal(t, "202001061000_Jo", anchorBase("202001061000_Jo_2"))
	assert.Equal(t, "202001061000_Jo", anchorBase("202001061000_Jo"))
	assert.Equal(t, "202001061000_User2", anchorBase("202001061000_User2"))
	assert.Equal(t, "unknown_unknown", anchorBase("unknown_unknown"))
}

func TestCommentNotFound(t *testing.T) {
	old := parse(t, oldPage)
	ref := RefOf(old, 3)

	_, err := New().Comment(ref, parse(t, "== Gone ==\nNothing left.\n"))
	require.Error(t, err)
	te, ok := talkerr.As(err)
	require.True(t, ok)
	assert.Equal(t, talkerr.KindParse, te.Kind)
	assert.True(t, te.Recoverable)
}

func TestSectionExactAndFuzzy(t *testing.T) {
	old := parse(t, oldPage)
	ref := SectionRefOf(old, 2)
	require.Equal(t, "Beta", ref.Headline)

	m, err := New().Section(ref, parse(t, oldPage))
	require.NoError(t, err)
	assert.Equal(t, 2, m.ID)

	// Headline edited: word overlap carries the match.
	ref2 := SectionRefOf(old, 1)
	newPage := strings.ReplaceAll(oldPage, "== Alpha ==", "== Alpha (resolved) ==")
	fresh := parse(t, newPage)
	m, err = New().Section(ref2, fresh)
	require.NoError(t, err)
	assert.Equal(t, "Alpha (resolved)", fresh.Sections[m.ID].Headline)

	// A completely different headline does not.
	ref3 := SectionRef{Headline: "Totally unrelated", Index: 1}
	_, err = New().Section(ref3, fresh)
	require.Error(t, err)
	assert.True(t, talkerr.IsCode(err, talkerr.CodeLocateSection))
}

func TestChainOverlap(t *testing.T) {
	assert.Equal(t, 1.0, chainOverlap(nil, nil))
	assert.Equal(t, 1.0, chainOverlap([]string{"A", ""}, []string{"A", ""}))
	assert.Equal(t, 0.5, chainOverlap([]string{"A", "B"}, []string{"A", "C"}))
	assert.Equal(t, 0.0, chainOverlap([]string{"A"}, nil))
}

func TestTextSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, textSimilarity("same words here", "same words here"))
	assert.Equal(t, 0.0, textSimilarity("aaa bbb", "ccc ddd"))

	mid := textSimilarity("one two three four", "one two three five")
	assert.Greater(t, mid, 0.5)
	assert.Less(t, mid, 1.0)
}

func TestHeadlineOverlapStripsMarkup(t *testing.T) {
	ov := headlineOverlap("[[Foo|Weather report]] today", "Weather report today")
	assert.GreaterOrEqual(t, ov, 0.66)
}
