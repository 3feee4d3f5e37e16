package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/namaste/namaste/internal/platform/fhir"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// firstInt returns the first positive integer among the named query params.
func firstInt(c echo.Context, names ...string) int {
	for _, n := range names {
		if v, err := strconv.Atoi(c.QueryParam(n)); err == nil && v > 0 {
			return v
		}
	}
	return 0
}

// FromContext extracts pagination parameters from the echo context. The
// limit is read from _limit, _count or limit; the offset from _offset or
// offset.
func FromContext(c echo.Context) Params {
	return New(firstInt(c, "_limit", "_count", "limit"), firstInt(c, "_offset", "offset"))
}

// New clamps limit to [1, MaxLimit] (0 means DefaultLimit) and offset to >= 0.
func New(limit, offset int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Params{Limit: limit, Offset: offset}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.HasNext(total),
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset returns the offset for the previous page.
// Returns 0 if the result would be negative.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

func (p Params) link(basePath string, filters url.Values, relation string, offset int) fhir.BundleLink {
	q := url.Values{}
	for k, v := range filters {
		q[k] = v
	}
	q.Set("_offset", strconv.Itoa(offset))
	q.Set("_limit", strconv.Itoa(p.Limit))
	return fhir.BundleLink{Relation: relation, URL: basePath + "?" + q.Encode()}
}

// FHIRLinks generates Bundle pagination links for a search result. Filters
// are carried into every link; paging params in filters are overwritten.
func (p Params) FHIRLinks(basePath string, filters url.Values, total int) []fhir.BundleLink {
	links := []fhir.BundleLink{p.link(basePath, filters, "self", p.Offset)}
	if p.HasNext(total) {
		links = append(links, p.link(basePath, filters, "next", p.NextOffset()))
	}
	if p.HasPrevious() {
		links = append(links, p.link(basePath, filters, "previous", p.PreviousOffset()))
	}
	return links
}
