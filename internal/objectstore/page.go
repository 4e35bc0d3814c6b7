package objectstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Item is one result from a range scan: always a key, plus the matched
// index term when the query set ReturnTerms.
type Item struct {
	Key  string
	Term string
}

// cursor is the opaque continuation payload: the first uncovered
// (term, key) pair, per spec §4.1 ("the page carries a continuation
// encoding the first uncovered (term, key)").
type cursor struct {
	Term string `json:"t"`
	Key  string `json:"k"`
}

func encodeContinuation(c cursor) string {
	raw, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(raw)
}

func decodeContinuation(token string) (cursor, error) {
	var c cursor
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return c, fmt.Errorf("objectstore: invalid continuation token: %w", err)
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("objectstore: invalid continuation token: %w", err)
	}
	return c, nil
}

// Page is one forward-only, single-use (with respect to NextPage) page of
// a range scan (spec §4.2). An empty result is a page with zero items and
// HasNext()==false.
type Page struct {
	items        []Item
	continuation string
	adapter      Adapter
	query        RangeQuery
	consumed     bool
}

// Items returns the page's (term, key) results in ascending order.
func (p *Page) Items() []Item {
	return p.items
}

// Keys returns just the keys, for callers that didn't request ReturnTerms.
func (p *Page) Keys() []string {
	keys := make([]string, len(p.items))
	for i, it := range p.items {
		keys[i] = it.Key
	}
	return keys
}

// HasNext reports whether more results exist beyond this page.
func (p *Page) HasNext() bool {
	return p.continuation != ""
}

// Token returns the page's opaque continuation, or "" if there is none.
// Exposed so callers can persist a scan position across process
// boundaries; NextPage is the usual way to advance within one call chain.
func (p *Page) Token() string {
	return p.continuation
}

// NextPage fetches the next page in this scan. It is an error to call it
// when HasNext() is false, matching the teacher-style "pages are
// forward-only and single-use" contract (spec §4.2).
func (p *Page) NextPage(ctx context.Context) (*Page, error) {
	if !p.HasNext() {
		return nil, fmt.Errorf("objectstore: no next page")
	}
	if p.consumed {
		return nil, fmt.Errorf("objectstore: page already advanced")
	}
	p.consumed = true
	next := p.query
	next.Continuation = p.continuation
	return p.adapter.RangePage(ctx, next)
}
