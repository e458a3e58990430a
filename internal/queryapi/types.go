package queryapi

import (
	"fmt"
	"maps"
)

// Params are the named parameters bound into a query execution.
type Params map[string]any

// Clone returns a shallow copy so callers can't mutate an issued request.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// Request identifies one query execution.
type Request struct {
	Name   string
	Params Params
}

// NewRequest copies params into a fresh Request.
func NewRequest(name string, params Params) Request {
	return Request{Name: name, Params: params.Clone()}
}

// Query is a saved query as returned by the list endpoint.
type Query struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry is the journal entry created for a saved query.
type Entry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	JournalURL string `json:"journal_url"`
}

// ReviewURL is where a newly created query can be checked in the UI.
func (e Entry) ReviewURL() string {
	return fmt.Sprintf("%s/entries/%s/", e.JournalURL, e.ID)
}

// APIError is returned for any non-success response from the query API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}
