// Package paginate walks HATEOAS-style cursor pagination, where each
// page's body carries an opaque next_page link instead of the caller
// computing offsets.
package paginate

import (
	"bytes"

	"github.com/ajitpratap0/comet/pkg/errors"
	"github.com/ajitpratap0/comet/pkg/json"
)

// Page is one decoded page of results from the upstream data endpoint.
type Page struct {
	Results   []map[string]interface{} `json:"results"`
	NextPage  string                   `json:"next_page"`
	PageNbr   int                      `json:"page_nbr"`
	PageCount int                      `json:"page_count"`
}

// envelope mirrors the upstream page body. NextPage is a RawMessage so
// that null, a string, and an absent key can be told apart.
type envelope struct {
	Results   []map[string]interface{} `json:"results"`
	NextPage  json.RawMessage          `json:"next_page"`
	PageNbr   int                      `json:"page_nbr"`
	PageCount int                      `json:"page_count"`
}

// Paginator tracks how many pages have been consumed for one entity
// stream. The first page is special: an upstream bug can return a
// next-link with zero rows on page 1, which would loop forever if the
// link alone were trusted.
type Paginator struct {
	pages int
}

// New returns a Paginator positioned before the first page.
func New() *Paginator {
	return &Paginator{}
}

// FirstPage reports whether no page has been consumed yet.
func (p *Paginator) FirstPage() bool {
	return p.pages == 0
}

// Pages returns the number of pages consumed so far.
func (p *Paginator) Pages() int {
	return p.pages
}

// Reset rewinds the paginator for a new entity stream.
func (p *Paginator) Reset() {
	p.pages = 0
}

// ParsePage decodes a page body and advances the page counter. The body
// may be the `{results: [...]}` envelope or a bare JSON array. A body
// that decodes as neither is a retriable data error: the caller retries
// the same page rather than skipping pagination.
func (p *Paginator) ParsePage(body []byte) (*Page, error) {
	page, err := decodePage(body)
	if err != nil {
		return nil, err
	}
	p.pages++
	return page, nil
}

func decodePage(body []byte) (*Page, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var results []map[string]interface{}
		if err := json.UnmarshalNumber(body, &results); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse page body as JSON array")
		}
		return &Page{Results: results}, nil
	}

	var env envelope
	if err := json.UnmarshalNumber(body, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse page body as JSON object")
	}

	return &Page{
		Results:   env.Results,
		NextPage:  nextPageString(env.NextPage),
		PageNbr:   env.PageNbr,
		PageCount: env.PageCount,
	}, nil
}

// nextPageString normalizes next_page to "" when it is absent, null,
// empty, or not a string.
func nextPageString(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// NextURL returns the link to the next page, or "" when pagination is
// exhausted.
func (p *Paginator) NextURL(page *Page) string {
	if page == nil {
		return ""
	}
	return page.NextPage
}

// HasMore decides whether another page should be fetched. On the first
// page both a non-empty next link and at least one result row are
// required; on subsequent pages the link alone suffices, so sparse
// intermediate pages are tolerated.
func (p *Paginator) HasMore(page *Page) bool {
	if page == nil || page.NextPage == "" {
		return false
	}
	if p.pages <= 1 {
		return len(page.Results) > 0
	}
	return true
}
