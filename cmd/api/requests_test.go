package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shamba/internal/params"
	"shamba/internal/store"
)

type fakeRequestsStore struct {
	requests []store.ProduceRequest
	total    int
}

func (f *fakeRequestsStore) Create(ctx context.Context, req *store.ProduceRequest) error {
	return nil
}

func (f *fakeRequestsStore) GetByID(ctx context.Context, requestID int64) (*store.ProduceRequest, error) {
	return nil, store.ErrNotFound
}

func (f *fakeRequestsStore) ListActive(ctx context.Context, p params.Pagination) ([]store.ProduceRequest, int, error) {
	return f.requests, f.total, nil
}

func (f *fakeRequestsStore) ListByBuyer(ctx context.Context, buyerID int64, p params.Pagination) ([]store.ProduceRequest, int, error) {
	return f.requests, f.total, nil
}

func (f *fakeRequestsStore) Cancel(ctx context.Context, requestID int64) error { return nil }
func (f *fakeRequestsStore) Close(ctx context.Context, requestID int64) error  { return nil }
func (f *fakeRequestsStore) CloseExpired(ctx context.Context) (int64, error)   { return 0, nil }

// The list endpoints report the full result count, not just the page they
// return, so clients can page without probing for an empty page.
func TestListRequestsPaginationMeta(t *testing.T) {
	app := newTestApp(t)
	app.store = store.Storage{Requests: &fakeRequestsStore{
		requests: []store.ProduceRequest{
			{ID: 1, Ref: "REQ-1", Produce: "avocado"},
			{ID: 2, Ref: "REQ-2", Produce: "macadamia"},
		},
		total: 35,
	}}

	req := httptest.NewRequest(http.MethodGet, "/requests?limit=15&page=2", nil)
	rec := httptest.NewRecorder()

	app.listRequestsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data requestListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))

	assert.Len(t, envelope.Data.Requests, 2)
	assert.Equal(t, 35, envelope.Data.Pagination.Total)
	assert.Equal(t, 3, envelope.Data.Pagination.TotalPages)
	assert.True(t, envelope.Data.Pagination.HasNext)
	assert.True(t, envelope.Data.Pagination.HasPrev)
}

func TestListRequestsPaginationMetaEmpty(t *testing.T) {
	app := newTestApp(t)
	app.store = store.Storage{Requests: &fakeRequestsStore{}}

	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	rec := httptest.NewRecorder()

	app.listRequestsHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data requestListResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))

	assert.Equal(t, 0, envelope.Data.Pagination.Total)
	assert.Equal(t, 0, envelope.Data.Pagination.TotalPages)
	assert.False(t, envelope.Data.Pagination.HasNext)
	assert.False(t, envelope.Data.Pagination.HasPrev)
}
