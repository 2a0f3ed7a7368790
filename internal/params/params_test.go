package params

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePaginationDefaults(t *testing.T) {
	p := ParsePagination(url.Values{})

	assert.Equal(t, 15, p.Limit)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, p.Offset)
	assert.Equal(t, "desc", p.Sort)
}

func TestParsePaginationClampsLimit(t *testing.T) {
	p := ParsePagination(url.Values{"limit": {"500"}})
	assert.Equal(t, 30, p.Limit)

	p = ParsePagination(url.Values{"limit": {"-3"}})
	assert.Equal(t, 15, p.Limit)

	p = ParsePagination(url.Values{"limit": {"garbage"}})
	assert.Equal(t, 15, p.Limit)
}

func TestParsePaginationOffset(t *testing.T) {
	p := ParsePagination(url.Values{"limit": {"10"}, "page": {"3"}})
	assert.Equal(t, 20, p.Offset)
}

func TestParsePaginationSort(t *testing.T) {
	p := ParsePagination(url.Values{"sort": {"ASC"}})
	assert.Equal(t, "asc", p.Sort)
	assert.Equal(t, "ASC", p.SortDirection())

	p = ParsePagination(url.Values{"sort": {"drop table"}})
	assert.Equal(t, "desc", p.Sort)
	assert.Equal(t, "DESC", p.SortDirection())
}

func TestComputeMeta(t *testing.T) {
	p := ParsePagination(url.Values{"limit": {"10"}, "page": {"2"}})
	p.ComputeMeta(35)

	assert.Equal(t, 35, p.Total)
	assert.Equal(t, 4, p.TotalPages)
	assert.True(t, p.HasPrev)
	assert.True(t, p.HasNext)

	p = ParsePagination(url.Values{"limit": {"10"}, "page": {"4"}})
	p.ComputeMeta(35)
	assert.False(t, p.HasNext)
}
