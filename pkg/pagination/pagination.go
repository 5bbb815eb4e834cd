package pagination

import (
	"math"
	"net/http"
	"strconv"
)

const (
	DefaultPage  = 1
	DefaultLimit = 5
	MaxLimit     = 100

	// MaxPage keeps Offset within int for every allowed limit. Pages past
	// the data are empty anyway.
	MaxPage = math.MaxInt/MaxLimit + 1
)

// Params is a page window. Page is 1-based.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// New returns normalized params: values below 1 fall back to the defaults,
// the limit is capped at MaxLimit and the page at MaxPage.
func New(page, limit int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// FromRequest reads the page and limit query parameters. Malformed values
// are treated as absent.
func FromRequest(r *http.Request) Params {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return New(page, limit)
}

// Offset is the number of records to skip: (page-1) * limit.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(total/limit).
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Result is a bounded data window plus its paging metadata.
type Result[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// NewResult builds a Result. A nil data slice is replaced with an empty one
// so it serializes as [].
func NewResult[T any](data []T, total int, p Params) Result[T] {
	if data == nil {
		data = []T{}
	}
	return Result[T]{
		Data:       data,
		Total:      total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: TotalPages(total, p.Limit),
	}
}
