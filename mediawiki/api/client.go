// Package api is the MediaWiki Action API client the talk-page pipeline
// runs against. Server verdicts are translated into talkerr errors so the
// session layer can branch on codes instead of response bodies.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"discourse/mediawiki"
	"discourse/mediawiki/talk/talkerr"
)

// Page is one loaded revision: the wikitext plus everything a later edit
// needs to detect conflicts against it.
type Page struct {
	Title   string
	PageID  int
	RevID   int
	Content string
	// RevTime is the revision's own timestamp, StartTime the server clock at
	// load. Both go back with action=edit as baserevid/starttimestamp.
	RevTime   time.Time
	StartTime string
}

// Edit is the submit payload for one changed page.
type Edit struct {
	Title     string
	Text      string
	Summary   string
	BaseRevID int
	StartTime string
	Minor     bool
}

// EditResult reports the server's acceptance of an edit.
type EditResult struct {
	NewRevID int
	NewTime  time.Time
	NoChange bool
}

type Client struct {
	ROOT_URL string

	http *http.Client
	log  zerolog.Logger

	mu      sync.Mutex
	token   string
	lastReq int64

	// timeBtn is the minimum gap between two requests in milliseconds.
	timeBtn int64
}

func NewClient(rootURL string, log zerolog.Logger) *Client {
	if rootURL == "" {
		rootURL = mediawiki.ROOT_URL
	}
	rate := 3
	return &Client{
		ROOT_URL: rootURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log.With().Str("component", "api").Logger(),
		timeBtn:  int64(1000 / rate),
	}
}

// LoadCode fetches the current wikitext of a page along with the revision
// id and server time needed for conflict detection on submit.
func (c *Client) LoadCode(ctx context.Context, title string) (*Page, error) {
	queries := map[string]string{
		"action":       "query",
		"titles":       title,
		"prop":         "revisions",
		"rvslots":      "main",
		"rvprop":       "ids|timestamp|content|user",
		"rvlimit":      "1",
		"redirects":    "1",
		"curtimestamp": "1",
	}

	resp := new(LoadResponse)
	if err := c.get(ctx, queries, resp); err != nil {
		return nil, err
	}
	if resp.Envelope != nil && resp.Error != nil {
		return nil, translate(resp.Error)
	}
	if resp.Query == nil || len(resp.Query.Pages) == 0 {
		return nil, talkerr.API(talkerr.CodeMissing, "empty query response for "+title)
	}

	p := resp.Query.Pages[0]
	if p.Invalid {
		return nil, talkerr.API(talkerr.CodeInvalid, "invalid title "+title)
	}
	if p.Missing || len(p.Revisions) == 0 {
		return nil, talkerr.API(talkerr.CodeMissing, "page "+title+" does not exist")
	}

	rev := p.Revisions[0]
	c.log.Debug().Str("title", p.Title).Int("revid", rev.RevID).Msg("loaded page")

	start := ""
	if resp.Envelope != nil {
		start = resp.CurTime
	}
	return &Page{
		Title:     p.Title,
		PageID:    p.PageID,
		RevID:     rev.RevID,
		Content:   rev.Slots.Main.Content,
		RevTime:   rev.TimeStamp,
		StartTime: start,
	}, nil
}

// SubmitEdit posts the whole new page text. A stale BaseRevID comes back as
// an editconflict code for the session layer to retry once.
func (c *Client) SubmitEdit(ctx context.Context, e Edit) (*EditResult, error) {
	token, err := c.csrfToken(ctx)
	if err != nil {
		return nil, err
	}

	form := map[string]string{
		"action":         "edit",
		"title":          e.Title,
		"text":           e.Text,
		"summary":        e.Summary,
		"token":          token,
		"starttimestamp": e.StartTime,
	}
	if e.BaseRevID > 0 {
		form["baserevid"] = strconv.Itoa(e.BaseRevID)
	}
	if e.Minor {
		form["minor"] = "1"
	}

	resp := new(EditResponse)
	if err := c.post(ctx, form, resp); err != nil {
		return nil, err
	}
	if resp.Envelope != nil && resp.Error != nil {
		// A dead token means the session expired mid-flight. Refresh once.
		if resp.Error.Code == "badtoken" {
			c.mu.Lock()
			c.token = ""
			c.mu.Unlock()
			return nil, talkerr.API(talkerr.CodeInvalid, "csrf token rejected")
		}
		return nil, translate(resp.Error)
	}
	if resp.Edit == nil || resp.Edit.Result != "Success" {
		return nil, talkerr.API(talkerr.CodeInvalid, "edit not accepted")
	}

	c.log.Info().Str("title", e.Title).Int("newrevid", resp.Edit.NewRevID).Msg("edit saved")
	return &EditResult{
		NewRevID: resp.Edit.NewRevID,
		NewTime:  resp.Edit.NewTimeStamp,
		NoChange: resp.Edit.NoChange,
	}, nil
}

// Compare renders the server-side diff between a stored revision and
// proposed new text.
func (c *Client) Compare(ctx context.Context, fromRev int, toText string) (string, error) {
	form := map[string]string{
		"action":  "compare",
		"fromrev": strconv.Itoa(fromRev),
		"totext":  toText,
		"toslots": "main",
		"prop":    "diff",
	}

	resp := new(CompareResponse)
	if err := c.post(ctx, form, resp); err != nil {
		return "", err
	}
	if resp.Envelope != nil && resp.Error != nil {
		return "", translate(resp.Error)
	}
	if resp.Compare == nil {
		return "", talkerr.API(talkerr.CodeInvalid, "empty compare response")
	}
	return resp.Compare.Body, nil
}

func (c *Client) csrfToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.token
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	queries := map[string]string{
		"action": "query",
		"meta":   "tokens",
		"type":   "csrf",
	}
	resp := new(TokenResponse)
	if err := c.get(ctx, queries, resp); err != nil {
		return "", err
	}
	if resp.Envelope != nil && resp.Error != nil {
		return "", translate(resp.Error)
	}
	if resp.Query == nil || resp.Query.Tokens.CSRFToken == "" {
		return "", talkerr.API(talkerr.CodeInvalid, "no csrf token in response")
	}

	c.mu.Lock()
	c.token = resp.Query.Tokens.CSRFToken
	c.mu.Unlock()
	return resp.Query.Tokens.CSRFToken, nil
}

func (c *Client) get(ctx context.Context, queries map[string]string, out any) error {
	u, err := url.Parse(c.ROOT_URL)
	if err != nil {
		return talkerr.Internal(err)
	}
	params := url.Values{}
	params.Set("format", "json")
	params.Set("formatversion", "2")
	for key, val := range queries {
		params.Set(key, val)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return talkerr.Internal(err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, form map[string]string, out any) error {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("formatversion", "2")
	for key, val := range form {
		params.Set(key, val)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.ROOT_URL,
		strings.NewReader(params.Encode()))
	if err != nil {
		return talkerr.Internal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("User-Agent", mediawiki.USER_AGENT)

	c.mu.Lock()
	diff := time.Now().UnixMilli() - c.lastReq
	if diff < c.timeBtn {
		time.Sleep(time.Duration(c.timeBtn-diff) * time.Millisecond)
	}
	c.lastReq = time.Now().UnixMilli()
	c.mu.Unlock()

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return talkerr.Network(err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", req.Method).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("api request")

	if resp.StatusCode != http.StatusOK {
		return talkerr.API(talkerr.CodeInvalid, "status "+resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return talkerr.Network(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return talkerr.Internal(err)
	}
	return nil
}

// translate maps Action API error codes onto the pipeline's taxonomy.
func translate(e *APIError) error {
	switch e.Code {
	case "editconflict":
		return talkerr.API(talkerr.CodeEditConflict, e.Info)
	case "missingtitle", "nosuchpageid":
		return talkerr.API(talkerr.CodeMissing, e.Info)
	case "invalidtitle", "invalidparammix", "badvalue":
		return talkerr.API(talkerr.CodeInvalid, e.Info)
	default:
		return talkerr.API(talkerr.Code(e.Code), e.Info)
	}
}
