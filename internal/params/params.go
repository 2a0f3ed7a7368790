package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Pagination holds parsed paging inputs and computed response metadata.
type Pagination struct {
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	Page       int    `json:"page"`
	Sort       string `json:"sort"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
	HasNext    bool   `json:"has_next"`
	HasPrev    bool   `json:"has_prev"`
}

// ParsePagination parses ?limit=...&page=...&sort=... safely. Keys are case
// sensitive. Limit is clamped to 30, sort to asc/desc (default desc).
func ParsePagination(q url.Values) Pagination {
	p := Pagination{
		Limit: 15,
		Page:  1,
		Sort:  "desc",
	}

	if limitStr := strings.TrimSpace(q.Get("limit")); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			switch {
			case limit <= 0:
				p.Limit = 15
			case limit > 30:
				p.Limit = 30
			default:
				p.Limit = limit
			}
		}
	}

	if pageStr := strings.TrimSpace(q.Get("page")); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			p.Page = page
		}
	}

	if sort := strings.ToLower(strings.TrimSpace(q.Get("sort"))); sort == "asc" {
		p.Sort = "asc"
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// SortDirection returns the SQL keyword for the parsed sort order. Only the
// two fixed keywords ever reach query text.
func (p Pagination) SortDirection() string {
	if p.Sort == "asc" {
		return "ASC"
	}
	return "DESC"
}

// ComputeMeta updates pagination after fetching the total count.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = (p.Page * p.Limit) < total
}
