package deta

import "context"

// Filter is a set of field conditions that must all hold for a record to
// match. Conditions are built fluently; the zero value is usable.
//
// Example:
//
//	f := deta.Filter{}.
//	    Eq("active", true).
//	    Gt("age", 25).
//	    Prefix("name", "An")
type Filter map[string]interface{}

// Eq matches records whose field equals value.
func (f Filter) Eq(field string, value interface{}) Filter {
	return f.with(field, "", value)
}

// Ne matches records whose field does not equal value.
func (f Filter) Ne(field string, value interface{}) Filter {
	return f.with(field, "ne", value)
}

// Lt matches records whose field is less than value.
func (f Filter) Lt(field string, value interface{}) Filter {
	return f.with(field, "lt", value)
}

// Lte matches records whose field is less than or equal to value.
func (f Filter) Lte(field string, value interface{}) Filter {
	return f.with(field, "lte", value)
}

// Gt matches records whose field is greater than value.
func (f Filter) Gt(field string, value interface{}) Filter {
	return f.with(field, "gt", value)
}

// Gte matches records whose field is greater than or equal to value.
func (f Filter) Gte(field string, value interface{}) Filter {
	return f.with(field, "gte", value)
}

// Prefix matches records whose string field starts with prefix.
func (f Filter) Prefix(field, prefix string) Filter {
	return f.with(field, "pfx", prefix)
}

// Range matches records whose numeric field lies in [lo, hi].
func (f Filter) Range(field string, lo, hi interface{}) Filter {
	return f.with(field, "r", []interface{}{lo, hi})
}

// Contains matches records whose list or string field contains value.
func (f Filter) Contains(field string, value interface{}) Filter {
	return f.with(field, "contains", value)
}

// NotContains matches records whose list or string field does not
// contain value.
func (f Filter) NotContains(field string, value interface{}) Filter {
	return f.with(field, "not_contains", value)
}

// with stores a condition under the service's "field?op" key form.
// Equality uses the bare field name.
func (f Filter) with(field, op string, value interface{}) Filter {
	if f == nil {
		f = Filter{}
	}
	key := field
	if op != "" {
		key = field + "?" + op
	}
	f[key] = value
	return f
}

// Query is one or more filters combined with OR semantics: a record
// matches if any filter matches. An empty query matches every record.
type Query []Filter

// NewQuery builds a query from filters.
//
//	q := deta.NewQuery(
//	    deta.Filter{}.Gt("age", 50),
//	    deta.Filter{}.Eq("admin", true),
//	)
func NewQuery(filters ...Filter) Query {
	return Query(filters)
}

// FetchOptions controls a single query page.
type FetchOptions struct {
	// Limit is the maximum number of records per page. 0 uses the
	// service default.
	Limit int

	// Last is the pagination cursor from a previous page. Empty starts
	// from the beginning.
	Last string
}

// Page is one page of query results.
type Page struct {
	// Items holds the matching records of this page.
	Items []Record
	// Last is the cursor for the next page; empty when this is the final
	// page.
	Last string
	// Size is the number of records in this page as reported by the
	// service.
	Size int
}

// HasMore reports whether another page can be fetched.
func (p *Page) HasMore() bool {
	return p.Last != ""
}

// wire types for /query

type queryRequest struct {
	Query []Filter `json:"query,omitempty"`
	Limit int      `json:"limit,omitempty"`
	Last  string   `json:"last,omitempty"`
}

type queryResponse struct {
	Paging struct {
		Size int    `json:"size"`
		Last string `json:"last"`
	} `json:"paging"`
	Items []Record `json:"items"`
}

// QueryIterator lazily walks a query result set page by page, following
// the service's pagination cursor. The sequence is finite; resuming
// mid-page requires replaying the cursor via FetchOptions.Last.
//
// Example:
//
//	it := base.Query(deta.NewQuery(deta.Filter{}.Gt("age", 25)), nil)
//	for it.Next(ctx) {
//	    fmt.Println(it.Record().Key())
//	}
//	if err := it.Err(); err != nil {
//	    return err
//	}
type QueryIterator struct {
	base  *Base
	query Query
	limit int

	last    string
	page    []Record
	idx     int
	started bool
	done    bool
	err     error
}

// Next advances to the next record, fetching pages from the service as
// needed. It returns false when the result set is exhausted or an error
// occurred; check Err afterwards.
func (it *QueryIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}

	for it.idx >= len(it.page) {
		if it.started && it.done {
			return false
		}
		if err := it.fetchPage(ctx); err != nil {
			it.err = err
			return false
		}
		if len(it.page) == 0 && it.done {
			return false
		}
	}

	it.idx++
	return true
}

// Record returns the current record. Only valid after a call to Next
// that returned true.
func (it *QueryIterator) Record() Record {
	if it.idx == 0 || it.idx > len(it.page) {
		return nil
	}
	return it.page[it.idx-1]
}

// Err returns the first error the iterator encountered, if any.
func (it *QueryIterator) Err() error {
	return it.err
}

// Cursor returns the cursor of the last fetched page. Replaying it via
// FetchOptions.Last resumes the query from the following page.
func (it *QueryIterator) Cursor() string {
	return it.last
}

func (it *QueryIterator) fetchPage(ctx context.Context) error {
	opts := &FetchOptions{Limit: it.limit, Last: it.last}
	page, err := it.base.Fetch(ctx, it.query, opts)
	if err != nil {
		return err
	}

	it.started = true
	it.page = page.Items
	it.idx = 0
	it.last = page.Last
	it.done = !page.HasMore()
	return nil
}
