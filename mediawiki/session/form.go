// Package session drives one comment form against a live page: preview,
// view-changes and submit over the same loaded revision, with conflict
// retry and cross-page section moves on top of the api client.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"

	"discourse/mediawiki/api"
	"discourse/mediawiki/talk/comments"
	"discourse/mediawiki/talk/locate"
	"discourse/mediawiki/talk/talkerr"
	"discourse/mediawiki/talk/transform"
)

// ErrSuperseded reports that a newer preview or submit started while this
// view-changes request was in flight. The result must be discarded, not
// shown.
var ErrSuperseded = errors.New("superseded by a newer request")

// Backend is the api surface the form needs. *api.Client satisfies it.
type Backend interface {
	LoadCode(ctx context.Context, title string) (*api.Page, error)
	SubmitEdit(ctx context.Context, e api.Edit) (*api.EditResult, error)
	Compare(ctx context.Context, fromRev int, toText string) (string, error)
}

// CommentForm holds one page's edit state. Submits are serialized: a second
// submit while one is pending is rejected up front rather than queued.
type CommentForm struct {
	backend Backend
	finder  *comments.Finder
	tr      *transform.Transformer
	loc     *locate.Locator
	log     zerolog.Logger

	title string

	mu         sync.Mutex
	page       *api.Page
	tree       *comments.Tree
	submitting bool

	// gen invalidates in-flight view-changes requests; previews lets a
	// submit wait out the ones already running.
	gen      atomic.Int64
	previews sync.WaitGroup
}

func NewCommentForm(b Backend, f *comments.Finder, tr *transform.Transformer, title string, log zerolog.Logger) *CommentForm {
	return &CommentForm{
		backend: b,
		finder:  f,
		tr:      tr,
		loc:     locate.New(),
		log:     log.With().Str("component", "session").Str("page", title).Logger(),
		title:   title,
	}
}

// Load fetches the page and parses it. Must succeed before any other call.
func (s *CommentForm) Load(ctx context.Context) error {
	page, err := s.backend.LoadCode(ctx, s.title)
	if err != nil {
		return err
	}
	tree := s.finder.Parse(page.Content)

	s.mu.Lock()
	s.page = page
	s.tree = tree
	s.mu.Unlock()

	s.log.Debug().Int("revid", page.RevID).Int("comments", len(tree.Comments)).Msg("page loaded")
	return nil
}

// Tree returns the currently loaded parse. Valid until the next Load or
// successful Submit replaces it.
func (s *CommentForm) Tree() *comments.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree
}

// Preview applies the operation locally and returns the would-be result
// without touching the server.
func (s *CommentForm) Preview(op transform.Operation) (transform.Result, error) {
	s.mu.Lock()
	tree := s.tree
	s.mu.Unlock()
	return s.tr.Apply(tree, op)
}

// ViewChanges renders the server-side diff between the loaded revision and
// the operation's outcome. If a newer request or a submit starts while the
// diff is in flight, the result comes back as ErrSuperseded.
func (s *CommentForm) ViewChanges(ctx context.Context, op transform.Operation) (string, error) {
	s.mu.Lock()
	page, tree := s.page, s.tree
	s.mu.Unlock()

	g := s.gen.Add(1)
	s.previews.Add(1)
	defer s.previews.Done()

	res, err := s.tr.Apply(tree, op)
	if err != nil {
		return "", err
	}
	if !minimalChange(tree.Code, res.WholeCode, op.Kind) {
		// An insert-only operation must never remove existing text. Keep
		// going (the diff will show the damage) but flag it loudly.
		s.log.Error().Int("target", op.Comment).Msg("transform dropped existing page text")
	}
	body, err := s.backend.Compare(ctx, page.RevID, res.WholeCode)
	if err != nil {
		return "", err
	}
	if s.gen.Load() != g {
		return "", ErrSuperseded
	}
	return body, nil
}

// Submit applies the operation and saves the page. On an edit conflict the
// form reloads once, re-locates the target in the fresh parse, re-applies
// and re-submits; a second conflict surfaces to the caller.
func (s *CommentForm) Submit(ctx context.Context, op transform.Operation, summary string) (*api.EditResult, error) {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return nil, talkerr.UI("a submit for %s is already pending", s.title)
	}
	s.submitting = true
	page, tree := s.page, s.tree
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	// Invalidate in-flight previews, then wait them out so the submit
	// never races a Compare against the same buffer.
	s.gen.Add(1)
	s.previews.Wait()

	res, err := s.tr.Apply(tree, op)
	if err != nil {
		return nil, err
	}

	er, err := s.backend.SubmitEdit(ctx, api.Edit{
		Title:     s.title,
		Text:      res.WholeCode,
		Summary:   summary,
		BaseRevID: page.RevID,
		StartTime: page.StartTime,
	})
	if talkerr.IsCode(err, talkerr.CodeEditConflict) {
		s.log.Warn().Int("baserevid", page.RevID).Msg("edit conflict, retrying once")
		er, res, err = s.retryConflict(ctx, tree, op, summary)
	}
	if err != nil {
		return nil, err
	}

	s.adopt(res.WholeCode, er)
	return er, nil
}

// retryConflict reloads the page, re-locates the operation's target in the
// fresh parse and re-submits. One attempt only.
func (s *CommentForm) retryConflict(ctx context.Context, old *comments.Tree, op transform.Operation, summary string) (*api.EditResult, transform.Result, error) {
	page, err := s.backend.LoadCode(ctx, s.title)
	if err != nil {
		return nil, transform.Result{}, err
	}
	fresh := s.finder.Parse(page.Content)

	if op.Comment != comments.NoID &&
		(op.Kind == transform.Reply || op.Kind == transform.Edit || op.Kind == transform.Delete) {
		m, err := s.loc.Comment(locate.RefOf(old, op.Comment), fresh)
		if err != nil {
			return nil, transform.Result{}, err
		}
		op.Comment = m.ID
	} else if op.Kind != transform.AddSection {
		m, err := s.loc.Section(locate.SectionRefOf(old, op.Section), fresh)
		if err != nil {
			return nil, transform.Result{}, err
		}
		op.Section = m.ID
	}

	res, err := s.tr.Apply(fresh, op)
	if err != nil {
		return nil, transform.Result{}, err
	}

	er, err := s.backend.SubmitEdit(ctx, api.Edit{
		Title:     s.title,
		Text:      res.WholeCode,
		Summary:   summary,
		BaseRevID: page.RevID,
		StartTime: page.StartTime,
	})
	if err != nil {
		return nil, transform.Result{}, err
	}

	s.mu.Lock()
	s.page = page
	s.tree = fresh
	s.mu.Unlock()
	return er, res, nil
}

// adopt advances the form to the just-saved text without a round trip. The
// next Load resynchronizes fully.
func (s *CommentForm) adopt(whole string, er *api.EditResult) {
	tree := s.finder.Parse(whole)
	s.mu.Lock()
	if s.page != nil {
		p := *s.page
		p.RevID = er.NewRevID
		p.Content = whole
		p.RevTime = er.NewTime
		s.page = &p
	}
	s.tree = tree
	s.mu.Unlock()
}

// Move transplants a whole section to another page as two sequential edits:
// first the addition on the target, then the removal here. A failure after
// the first edit committed is reported as unrecoverable, because the
// discussion now exists in both places and only a human should reconcile.
func (s *CommentForm) Move(ctx context.Context, sectionID int, targetTitle string, keepLink bool) error {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return talkerr.UI("a submit for %s is already pending", s.title)
	}
	s.submitting = true
	page, tree := s.page, s.tree
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.submitting = false
		s.mu.Unlock()
	}()

	sec := tree.Sections[sectionID]
	moved := tree.Code[sec.Start:sec.End]

	target, err := s.backend.LoadCode(ctx, targetTitle)
	if err != nil {
		return err
	}
	targetText := target.Content
	if targetText != "" && !endsWithNewline(targetText) {
		targetText += "\n"
	}
	targetText += "\n" + moved

	if _, err := s.backend.SubmitEdit(ctx, api.Edit{
		Title:     targetTitle,
		Text:      targetText,
		Summary:   "Moved discussion from [[" + s.title + "]]",
		BaseRevID: target.RevID,
		StartTime: target.StartTime,
	}); err != nil {
		return err
	}

	remain := tree.Code[:sec.Start]
	if keepLink {
		head := tree.Code[sec.Start:sec.BodyStart]
		remain += head + "Discussion moved to [[" + targetTitle + "]]. ~~~~\n"
	}
	remain += tree.Code[sec.End:]

	er, err := s.backend.SubmitEdit(ctx, api.Edit{
		Title:     s.title,
		Text:      remain,
		Summary:   "Moved discussion to [[" + targetTitle + "]]",
		BaseRevID: page.RevID,
		StartTime: page.StartTime,
	})
	if err != nil {
		// The target page already holds the copy. Retrying the removal
		// blind could eat edits made meanwhile; surface instead.
		if te, ok := talkerr.As(err); ok {
			return talkerr.Unrecoverable(te)
		}
		return talkerr.Unrecoverable(talkerr.Internal(err))
	}

	s.adopt(remain, er)
	s.log.Info().Str("target", targetTitle).Msg("section moved")
	return nil
}

func endsWithNewline(s string) bool { return s[len(s)-1] == '\n' }

// minimalChange reports whether an insert-only operation really only
// inserted. Edits and deletes legitimately remove text and pass vacuously.
func minimalChange(old, fresh string, kind transform.Kind) bool {
	switch kind {
	case transform.Reply, transform.AddSubsection, transform.AddSection:
	default:
		return true
	}
	dmp := diffmatchpatch.New()
	for _, d := range dmp.DiffMain(old, fresh, false) {
		if d.Type == diffmatchpatch.DiffDelete {
			return false
		}
	}
	return true
}
