// Package locate re-finds a previously identified comment or section in
// freshly fetched page wikitext that may have been edited in the meantime.
//
// A false match would edit the wrong text region, so candidates are scored
// and the best one is accepted only above a fixed threshold; on any doubt
// the caller gets a locate error instead of a guess.
package locate

import (
	"math"
	"strings"

	"github.com/m-m-f/gowiki"
	"github.com/sergi/go-diff/diffmatchpatch"

	"discourse/mediawiki/talk/comments"
	"discourse/mediawiki/talk/talkerr"
)

// Weights are the scoring constants. The values are a good-enough
// heuristic, not a tuned optimum; they are configurable for that reason.
type Weights struct {
	Headline      float64
	Ancestors     float64
	OldestComment float64
	// ID credits an anchor that matches up to its duplicate-disambiguation
	// suffix; an exact anchor match short-circuits to Certain instead.
	ID float64
	// Index is the lowest-weight signal: ordinals shift whenever comments
	// are added or removed elsewhere on the page.
	Index float64
	// Text credits word-level similarity of the comment text, a secondary
	// signal when the stronger ones disagree.
	Text float64

	// Accept is the minimum score for a match; Certain short-circuits
	// further scoring (exact id match).
	Accept        float64
	AcceptSection float64
	Certain       float64

	// FuzzyHeadline is the word-overlap ratio accepted when no exact
	// headline exists anymore (section headline was edited).
	FuzzyHeadline float64
}

func DefaultWeights() Weights {
	return Weights{
		Headline:      1,
		Ancestors:     1,
		OldestComment: 1,
		ID:            0.5,
		Index:         0.001,
		Text:          0.5,
		Accept:        2,
		AcceptSection: 1,
		Certain:       3.5,
		FuzzyHeadline: 0.66,
	}
}

// CommentRef is the identifying data recorded for a comment before the page
// changed. Structured-clone-safe: plain values only.
type CommentRef struct {
	Anchor              string
	Author              string
	HasTime             bool
	TimeUnix            int64
	SectionHeadline     string
	AncestorHeadlines   []string
	OldestCommentAnchor string
	Index               int
	// Content is the comment text at record time, used for the similarity
	// signal. May be empty.
	Content string
}

// RefOf snapshots a comment's identifying data from a tree.
func RefOf(t *comments.Tree, id int) CommentRef {
	c := &t.Comments[id]
	s := t.Sections[c.Section]
	ref := CommentRef{
		Anchor:            c.Anchor,
		Author:            c.Author,
		HasTime:           c.HasTime,
		SectionHeadline:   s.Headline,
		AncestorHeadlines: t.AncestorHeadlines(c),
		Index:             c.Index,
		Content:           t.Content(id),
	}
	if c.HasTime {
		ref.TimeUnix = c.Time.Unix()
	}
	if s.OldestComment != comments.NoID {
		ref.OldestCommentAnchor = t.Comments[s.OldestComment].Anchor
	}
	return ref
}

// SectionRef is the identifying data recorded for a section.
type SectionRef struct {
	Headline            string
	AncestorHeadlines   []string
	OldestCommentAnchor string
	Index               int
}

// SectionRefOf snapshots a section's identifying data from a tree.
func SectionRefOf(t *comments.Tree, id int) SectionRef {
	s := t.Sections[id]
	ref := SectionRef{
		Headline: s.Headline,
		Index:    s.ID,
	}
	for sid := s.Parent; sid != comments.NoID; sid = t.Sections[sid].Parent {
		ref.AncestorHeadlines = append(ref.AncestorHeadlines, t.Sections[sid].Headline)
	}
	if s.OldestComment != comments.NoID {
		ref.OldestCommentAnchor = t.Comments[s.OldestComment].Anchor
	}
	return ref
}

// Locator scores candidates in a fresh tree against recorded refs.
type Locator struct {
	W Weights
}

func New() *Locator { return &Locator{W: DefaultWeights()} }

// Match is an accepted candidate with its confidence score normalized to
// 0..1 against the certain-match ceiling.
type Match struct {
	ID    int
	Score float64
}

// Comment re-finds ref in fresh. Author and date must match; everything
// else accumulates partial credit. Failing to cross the acceptance
// threshold is a locateComment error, never a best-effort guess.
func (l *Locator) Comment(ref CommentRef, fresh *comments.Tree) (Match, error) {
	best := Match{ID: comments.NoID}
	bestDelta := math.MaxInt32

	for i := range fresh.Comments {
		c := &fresh.Comments[i]
		if !sameAuthorDate(ref, c) {
			continue
		}

		var score float64
		if ref.Anchor != "" && c.Anchor == ref.Anchor {
			score = l.W.Certain
		} else {
			s := fresh.Sections[c.Section]
			if s.Headline == ref.SectionHeadline {
				score += l.W.Headline
			}
			score += l.W.Ancestors * chainOverlap(ref.AncestorHeadlines, fresh.AncestorHeadlines(c))
			if ref.OldestCommentAnchor != "" && s.OldestComment != comments.NoID &&
				fresh.Comments[s.OldestComment].Anchor == ref.OldestCommentAnchor {
				score += l.W.OldestComment
			}
			if ref.Anchor != "" && anchorBase(c.Anchor) == anchorBase(ref.Anchor) {
				// Same minute, same author, shifted duplicate ordinal.
				score += l.W.ID
			}
			delta := abs(c.Index - ref.Index)
			score += l.W.Index / float64(1+delta)
			if ref.Content != "" {
				score += l.W.Text * textSimilarity(ref.Content, fresh.Content(c.ID))
			}
		}

		delta := abs(c.Index - ref.Index)
		if score > best.Score || (score == best.Score && delta < bestDelta) {
			best = Match{ID: c.ID, Score: score}
			bestDelta = delta
		}
	}

	if best.ID == comments.NoID || best.Score < l.W.Accept {
		return Match{ID: comments.NoID}, talkerr.Parse(talkerr.CodeLocateComment,
			"comment by %q not found in current page text", ref.Author)
	}
	best.Score = math.Min(best.Score/l.W.Certain, 1)
	return best, nil
}

// Section re-finds ref in fresh, falling back to fuzzy headline matching
// when the exact headline no longer exists.
func (l *Locator) Section(ref SectionRef, fresh *comments.Tree) (Match, error) {
	exactExists := false
	for i := range fresh.Sections {
		if fresh.Sections[i].Headline == ref.Headline {
			exactExists = true
			break
		}
	}

	best := Match{ID: comments.NoID}
	bestDelta := math.MaxInt32

	for i := range fresh.Sections {
		s := &fresh.Sections[i]
		if s.ID == 0 && ref.Headline != "" {
			continue
		}

		var score float64
		switch {
		case s.Headline == ref.Headline:
			score += l.W.Headline
		case !exactExists:
			// Last resort: the headline was edited; accept a strong
			// word overlap on the markup-stripped text.
			if ov := headlineOverlap(ref.Headline, s.Headline); ov >= l.W.FuzzyHeadline {
				score += l.W.Headline * ov
			}
		}
		if score == 0 {
			continue
		}

		var chain []string
		for sid := s.Parent; sid != comments.NoID; sid = fresh.Sections[sid].Parent {
			chain = append(chain, fresh.Sections[sid].Headline)
		}
		score += l.W.Ancestors * chainOverlap(ref.AncestorHeadlines, chain)
		if ref.OldestCommentAnchor != "" && s.OldestComment != comments.NoID &&
			fresh.Comments[s.OldestComment].Anchor == ref.OldestCommentAnchor {
			score += l.W.OldestComment
		}
		delta := abs(s.ID - ref.Index)
		score += l.W.Index / float64(1+delta)

		if score > best.Score || (score == best.Score && delta < bestDelta) {
			best = Match{ID: s.ID, Score: score}
			bestDelta = delta
		}
	}

	if best.ID == comments.NoID || best.Score < l.W.AcceptSection {
		return Match{ID: comments.NoID}, talkerr.Parse(talkerr.CodeLocateSection,
			"section %q not found in current page text", ref.Headline)
	}
	best.Score = math.Min(best.Score/l.W.Certain, 1)
	return best, nil
}

// sameAuthorDate is the hard gate: a candidate with a different author or
// timestamp is never considered, whatever the other signals say.
func sameAuthorDate(ref CommentRef, c *comments.Comment) bool {
	if c.Author != ref.Author {
		return false
	}
	if ref.HasTime != c.HasTime {
		return false
	}
	if !ref.HasTime {
		return true
	}
	return c.Time.Unix() == ref.TimeUnix
}

// chainOverlap is the fraction of matching entries comparing two ancestor
// headline chains from the nearest end.
func chainOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	n := min(len(a), len(b))
	if n == 0 {
		return 0
	}
	match := 0
	for i := 0; i < n; i++ {
		if a[i] == b[i] {
			match++
		}
	}
	return float64(match) / float64(max(len(a), len(b)))
}

// textSimilarity is the unchanged-word share of a word-level diff between
// the recorded and the candidate comment text.
func textSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	aw := strings.Join(strings.Fields(a), "\n")
	bw := strings.Join(strings.Fields(b), "\n")
	if aw == "" && bw == "" {
		return 1
	}

	dmp := diffmatchpatch.New()
	var unchanged, total float64
	for _, d := range dmp.DiffMain(aw, bw, false) {
		words := float64(countWords(d.Text))
		total += words
		if d.Type == diffmatchpatch.DiffEqual {
			unchanged += words
		}
	}
	if total == 0 {
		return 0
	}
	return unchanged / total
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// headlineOverlap compares headlines as word sets after stripping wikitext
// markup, so "[[Foo|bar]] baz" and "bar baz" agree.
func headlineOverlap(a, b string) float64 {
	aw := headlineWords(a)
	bw := headlineWords(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}
	inA := map[string]bool{}
	for _, w := range aw {
		inA[w] = true
	}
	common := 0
	for _, w := range bw {
		if inA[w] {
			common++
		}
	}
	return float64(2*common) / float64(len(aw)+len(bw))
}

// headlineWords renders a headline to plain text and lowercases its words.
// The wikitext parse is best effort; on error the raw markup is used.
func headlineWords(s string) []string {
	plain := s
	if a, err := gowiki.ParseArticle("", s, &gowiki.DummyPageGetter{}); err == nil {
		if t := strings.TrimSpace(a.GetText()); t != "" {
			plain = t
		}
	}
	return strings.Fields(strings.ToLower(plain))
}

// anchorBase strips the "_<n>" suffix appended to distinguish same-minute
// same-author comments, so a comment whose ordinal shifted still compares
// equal on the stable part.
func anchorBase(a string) string {
	i := strings.LastIndexByte(a, '_')
	if i <= 0 || !strings.Contains(a[:i], "_") {
		return a
	}
	for _, r := range a[i+1:] {
		if r < '0' || r > '9' {
			return a
		}
	}
	if i+1 == len(a) {
		return a
	}
	return a[:i]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
