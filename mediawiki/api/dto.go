package api

import "time"

// >>>>>

type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// Common envelope fields every Action API response may carry.
type Envelope struct {
	Error    *APIError `json:"error"`
	ServedBy string    `json:"servedby"`
	CurTime  string    `json:"curtimestamp"`
}

// >>>>>

type RevisionSlotMain struct {
	ContentModel string `json:"contentmodel"`
	Content      string `json:"content"`
}

type RevisionSlots struct {
	Main RevisionSlotMain `json:"main"`
}

type PageRevision struct {
	RevID     int           `json:"revid"`
	ParentID  int           `json:"parentid"`
	TimeStamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Comment   string        `json:"comment"`
	Slots     RevisionSlots `json:"slots"`
}

type QueryPage struct {
	PageID    int             `json:"pageid"`
	NameSpace int             `json:"ns"`
	Title     string          `json:"title"`
	Missing   bool            `json:"missing"`
	Invalid   bool            `json:"invalid"`
	Revisions []*PageRevision `json:"revisions"`
}

type LoadQuery struct {
	Pages []*QueryPage `json:"pages"`
}

// Page wikitext fetch
type LoadResponse struct {
	*Envelope
	BatchComplete bool       `json:"batchcomplete"`
	Query         *LoadQuery `json:"query"`
}

// >>>>>

type TokenSet struct {
	CSRFToken string `json:"csrftoken"`
}

type TokenQuery struct {
	Tokens TokenSet `json:"tokens"`
}

// CSRF token fetch
type TokenResponse struct {
	*Envelope
	Query *TokenQuery `json:"query"`
}

// >>>>>

type EditVerdict struct {
	Result       string    `json:"result"`
	PageID       int       `json:"pageid"`
	Title        string    `json:"title"`
	NewRevID     int       `json:"newrevid"`
	NewTimeStamp time.Time `json:"newtimestamp"`
	NoChange     bool      `json:"nochange"`
}

// Edit submit
type EditResponse struct {
	*Envelope
	Edit *EditVerdict `json:"edit"`
}

// >>>>>

type CompareVerdict struct {
	FromRevID int    `json:"fromrevid"`
	ToRevID   int    `json:"torevid"`
	Body      string `json:"body"`
}

// Revision-to-text diff
type CompareResponse struct {
	*Envelope
	Compare *CompareVerdict `json:"compare"`
}
