// Package worker runs the fetch-and-parse pipeline for batches of talk
// pages: titles in, parsed trees out, with fetch and parse decoupled over
// channels so the API rate gap never stalls parsing.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"discourse/debugger"
	"discourse/mediawiki/api"
	"discourse/mediawiki/talk/comments"
)

type Metrics struct {
	PagesFetched  int `json:"pagesFetched"`
	PagesParsed   int `json:"pagesParsed"`
	CommentsFound int `json:"commentsFound"`
	FetchFailures int `json:"fetchFailures"`
}

// Parsed pairs one fetched revision with its comment tree.
type Parsed struct {
	Title string
	RevID int
	Tree  *comments.Tree
}

// Loader is the fetch surface, satisfied by *api.Client.
type Loader interface {
	LoadCode(ctx context.Context, title string) (*api.Page, error)
}

type Worker struct {
	loader Loader
	finder *comments.Finder
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	grpctx context.Context
	grp    *errgroup.Group

	titleChan chan string
	pageChan  chan *api.Page
	treeChan  chan *Parsed

	metrics  *Metrics
	debugger *debugger.Debugger
}

func NewWorker(loader Loader, finder *comments.Finder, log zerolog.Logger, dbg *debugger.Debugger) *Worker {
	return &Worker{
		loader:    loader,
		finder:    finder,
		log:       log.With().Str("component", "worker").Logger(),
		titleChan: make(chan string, 60),
		pageChan:  make(chan *api.Page, 10),
		treeChan:  make(chan *Parsed, 10),
		metrics:   new(Metrics),
		debugger:  dbg,
	}
}

// Trees is the pipeline output. Closed once every submitted title has been
// fetched and parsed (or failed).
func (w *Worker) Trees() <-chan *Parsed { return w.treeChan }

func (w *Worker) Run() error {
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.grp, w.grpctx = errgroup.WithContext(w.ctx)

	w.grp.Go(func() error {
		err := w.fetchPages()
		w.log.Debug().Msg("fetchPages stopped")
		return err
	})

	w.grp.Go(func() error {
		err := w.parsePages()
		w.log.Debug().Msg("parsePages stopped")
		return err
	})

	return nil
}

// Submit queues one title. Blocks when the pipeline is backed up; returns
// false after Stop.
func (w *Worker) Submit(title string) bool {
	select {
	case <-w.grpctx.Done():
		return false
	case w.titleChan <- title:
		return true
	}
}

// Close marks the input complete. The output channel closes after the last
// queued title drains.
func (w *Worker) Close() {
	close(w.titleChan)
}

// Stop cancels in-flight work and waits for the stages to exit.
func (w *Worker) Stop() error {
	w.cancel()
	return w.grp.Wait()
}

// Wait blocks until the pipeline drains after Close.
func (w *Worker) Wait() error {
	err := w.grp.Wait()
	w.cancel()
	return err
}

func (w *Worker) fetchPages() error {
outer:
	for {
		select {
		case <-w.grpctx.Done():
			break outer
		case title, ok := <-w.titleChan:
			if !ok {
				break outer
			}
			page, err := w.loader.LoadCode(w.grpctx, title)
			if err != nil {
				// A single bad title must not sink the batch.
				w.metrics.FetchFailures += 1
				w.log.Warn().Str("title", title).Err(err).Msg("fetch failed")
				continue
			}
			w.metrics.PagesFetched += 1

			select {
			case <-w.grpctx.Done():
				break outer
			case w.pageChan <- page:
			}
		}
	}

	close(w.pageChan)
	return nil
}

func (w *Worker) parsePages() error {
	for page := range w.pageChan {
		tree := w.finder.Parse(page.Content)
		w.metrics.PagesParsed += 1
		w.metrics.CommentsFound += len(tree.Comments)

		if w.debugger != nil {
			w.debugger.Tree(page.Title, tree)
		}

		select {
		case <-w.grpctx.Done():
			close(w.treeChan)
			return nil
		case w.treeChan <- &Parsed{Title: page.Title, RevID: page.RevID, Tree: tree}:
		}
	}

	close(w.treeChan)
	return nil
}

func (w *Worker) Metrics() Metrics { return *w.metrics }

func (w *Worker) PrintMetrics() error {
	data, err := json.MarshalIndent(w.metrics, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("\nMetrics:\n%s\n", string(data))
	return nil
}
