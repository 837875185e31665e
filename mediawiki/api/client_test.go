package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discourse/mediawiki/talk/talkerr"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, zerolog.Nop())
	c.timeBtn = 0
	return c
}

func TestLoadCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "query", q.Get("action"))
		assert.Equal(t, "2", q.Get("formatversion"))
		assert.Equal(t, "Talk:Go", q.Get("titles"))
		assert.Contains(t, r.Header.Get("User-Agent"), "discourse")

		w.Write([]byte(`{
			"curtimestamp": "2020-01-01T12:00:00Z",
			"query": {"pages": [{
				"pageid": 7, "ns": 1, "title": "Talk:Go",
				"revisions": [{
					"revid": 42, "parentid": 41,
					"timestamp": "2020-01-01T11:55:00Z",
					"slots": {"main": {"contentmodel": "wikitext", "content": "== A ==\nHi."}}
				}]
			}]}
		}`))
	})

	p, err := c.LoadCode(context.Background(), "Talk:Go")
	require.NoError(t, err)
	assert.Equal(t, "Talk:Go", p.Title)
	assert.Equal(t, 42, p.RevID)
	assert.Equal(t, "== A ==\nHi.", p.Content)
	assert.Equal(t, "2020-01-01T12:00:00Z", p.StartTime)
}

func TestLoadCodeMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"query": {"pages": [{"title": "Talk:Nope", "missing": true}]}}`))
	})

	_, err := c.LoadCode(context.Background(), "Talk:Nope")
	assert.True(t, talkerr.IsCode(err, talkerr.CodeMissing))
	assert.True(t, talkerr.IsKind(err, talkerr.KindAPI))
}

func TestSubmitEdit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"query": {"tokens": {"csrftoken": "abc+\\"}}}`))
			return
		}
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "edit", r.PostForm.Get("action"))
		assert.Equal(t, `abc+\`, r.PostForm.Get("token"))
		assert.Equal(t, "42", r.PostForm.Get("baserevid"))
		w.Write([]byte(`{"edit": {"result": "Success", "newrevid": 43, "newtimestamp": "2020-01-01T12:01:00Z"}}`))
	})

	res, err := c.SubmitEdit(context.Background(), Edit{
		Title:     "Talk:Go",
		Text:      "new text",
		BaseRevID: 42,
		StartTime: "2020-01-01T12:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, 43, res.NewRevID)
	assert.False(t, res.NoChange)
}

func TestSubmitEditConflict(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(`{"query": {"tokens": {"csrftoken": "t"}}}`))
			return
		}
		w.Write([]byte(`{"error": {"code": "editconflict", "info": "Edit conflict."}}`))
	})

	_, err := c.SubmitEdit(context.Background(), Edit{Title: "Talk:Go", Text: "x", BaseRevID: 42})
	assert.True(t, talkerr.IsCode(err, talkerr.CodeEditConflict))
}

func TestTokenCachedAcrossEdits(t *testing.T) {
	tokenFetches := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			tokenFetches++
			w.Write([]byte(`{"query": {"tokens": {"csrftoken": "t"}}}`))
			return
		}
		w.Write([]byte(`{"edit": {"result": "Success", "newrevid": 1}}`))
	})

	for i := 0; i < 3; i++ {
		_, err := c.SubmitEdit(context.Background(), Edit{Title: "T", Text: "x"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokenFetches)
}

func TestCompare(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "compare", r.PostForm.Get("action"))
		assert.Equal(t, "42", r.PostForm.Get("fromrev"))
		w.Write([]byte(`{"compare": {"fromrevid": 42, "body": "<tr>diff rows</tr>"}}`))
	})

	body, err := c.Compare(context.Background(), 42, "proposed")
	require.NoError(t, err)
	assert.Equal(t, "<tr>diff rows</tr>", body)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := NewClient(srv.URL, zerolog.Nop())
	c.timeBtn = 0
	srv.Close()

	_, err := c.LoadCode(context.Background(), "Talk:Go")
	assert.True(t, talkerr.IsKind(err, talkerr.KindNetwork))
}
