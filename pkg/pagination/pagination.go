// Package pagination windows the whole collections the CRS API returns into
// the pages the dashboard tables show.
package pagination

import (
	"net/http"
	"strconv"
)

const (
	// DefaultPerPage matches the dashboard tables' initial page size.
	DefaultPerPage = 5
	MaxPerPage     = 100
)

// Params selects one page.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// Offset is the index of the page's first row.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest reads ?page and ?per_page. Values that are not positive
// integers, or a per_page over MaxPerPage, fall back to the defaults.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	p := DefaultParams()
	if v, ok := positive(q.Get("page")); ok {
		p.Page = v
	}
	if v, ok := positive(q.Get("per_page")); ok && v <= MaxPerPage {
		p.PerPage = v
	}
	return p
}

func positive(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	return v, err == nil && v > 0
}

// Result is one page of T.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Slice returns the page of items selected by p. A page past the end has no
// rows but still reports the totals.
func Slice[T any](items []T, p Params) Result[T] {
	if p.Page < 1 || p.PerPage < 1 {
		p = DefaultParams()
	}
	start := min(p.Offset(), len(items))
	end := min(start+p.PerPage, len(items))
	pages := (len(items) + p.PerPage - 1) / p.PerPage

	return Result[T]{
		Data:       append([]T{}, items[start:end]...),
		TotalCount: len(items),
		Page:       p.Page,
		PerPage:    p.PerPage,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}
