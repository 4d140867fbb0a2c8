package paging

import (
	"net/url"
	"strconv"

	"github.com/Juan-Andres-Motta/proyecto-2-backend-sub002/common/apperr"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is the uniform limit/offset pagination every list endpoint takes.
type Params struct {
	Limit  int
	Offset int
}

// FromQuery parses limit/offset query parameters. Limit must lie in
// [1,100], offset must be >= 0; out-of-range values are rejected, absent
// ones defaulted.
func FromQuery(query url.Values) (Params, error) {
	p := Params{Limit: DefaultLimit, Offset: 0}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return Params{}, apperr.New(apperr.ValidationRejected, "invalid_limit",
				"limit must be an integer between 1 and 100")
		}
		p.Limit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return Params{}, apperr.New(apperr.ValidationRejected, "invalid_offset",
				"offset must be a non-negative integer")
		}
		p.Offset = offset
	}

	return p, nil
}

// Page is the uniform list response shape.
type Page[T any] struct {
	Items       []T  `json:"items"`
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Size        int  `json:"size"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPage assembles the response for one slice of a listing.
func NewPage[T any](items []T, total int, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:       items,
		Total:       total,
		Page:        p.Offset/p.Limit + 1,
		Size:        len(items),
		HasNext:     p.Offset+len(items) < total,
		HasPrevious: p.Offset > 0,
	}
}
