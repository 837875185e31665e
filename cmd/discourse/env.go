package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"discourse/debugger"
	"discourse/mediawiki/api"
	"discourse/mediawiki/session"
	"discourse/mediawiki/talk"
	"discourse/mediawiki/talk/comments"
	"discourse/mediawiki/talk/signature"
	"discourse/mediawiki/talk/talkerr"
	"discourse/mediawiki/talk/timestamp"
	"discourse/mediawiki/talk/transform"
)

// env wires the pipeline once per invocation: page context, parser, client.
type env struct {
	ctx    *talk.PageContext
	finder *comments.Finder
	tr     *transform.Transformer
	client *api.Client
	trace  *debugger.Debugger
}

func newEnv() (*env, error) {
	ctx := talk.English()
	pattern, err := timestamp.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("building timestamp pattern: %w", err)
	}

	log := newLogger()
	finder := comments.NewFinder(ctx, signature.NewLocator(ctx, pattern))
	finder.LocalUser = viper.GetString("user")
	finder.Now = time.Now().UTC()

	e := &env{
		ctx:    ctx,
		finder: finder,
		tr:     transform.New(ctx),
		client: api.NewClient(viper.GetString("api"), log),
	}

	if viper.GetBool("trace") {
		e.trace, err = debugger.NewDebugger()
		if err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *env) form(title string) *session.CommentForm {
	return session.NewCommentForm(e.client, e.finder, e.tr, title, newLogger())
}

// resolveComment maps a user-supplied target onto the parsed tree. Accepts
// the deterministic anchor id first, a plain page-wide ordinal second.
func resolveComment(t *comments.Tree, target string) (int, error) {
	if c := t.FindAnchor(target); c != nil {
		return c.ID, nil
	}
	var idx int
	if _, err := fmt.Sscanf(target, "%d", &idx); err == nil && idx >= 0 && idx < len(t.Comments) {
		return idx, nil
	}
	return comments.NoID, talkerr.Parse(talkerr.CodeCommentNotFound,
		"no comment %q on this page; run inspect to list anchors", target)
}

// resolveSection matches a headline exactly, falling back to the subscribe
// id form.
func resolveSection(t *comments.Tree, target string) (int, error) {
	for _, s := range t.Sections {
		if s.Headline == target || s.SubscribeID == target {
			return s.ID, nil
		}
	}
	return comments.NoID, fmt.Errorf("no section %q on this page", target)
}
