package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/shopsync/pkg/errors"
	"github.com/utafrali/shopsync/pkg/httpclient"
	"github.com/utafrali/shopsync/pkg/logger"
)

// fakeUserService serves the wishlist endpoints from memory.
type fakeUserService struct {
	mu       sync.Mutex
	token    string
	items    []string
	calls    []string
	failNext int
}

func (f *fakeUserService) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			f.calls = append(f.calls, req.Method+" "+req.URL.Path)
			fail := f.failNext > 0
			if fail {
				f.failNext--
			}
			f.mu.Unlock()

			if req.Header.Get("Authorization") != "Bearer "+f.token {
				writeJSON(w, http.StatusUnauthorized, map[string]any{
					"error": map[string]string{"code": "UNAUTHORIZED", "message": "user not authenticated"},
				})
				return
			}
			if fail {
				writeJSON(w, http.StatusBadGateway, map[string]any{
					"error": map[string]string{"code": "BAD_GATEWAY", "message": "upstream"},
				})
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/api/v1/users/wishlist", f.list)
	r.Post("/api/v1/users/wishlist/{productId}", f.add)
	r.Delete("/api/v1/users/wishlist/{productId}", f.remove)
	return r
}

func (f *fakeUserService) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	f.mu.Lock()
	defer f.mu.Unlock()
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(f.items) {
		start = len(f.items)
	}
	if end > len(f.items) {
		end = len(f.items)
	}
	items := make([]map[string]string, 0, end-start)
	for _, id := range f.items[start:end] {
		items = append(items, map[string]string{"user_id": "u1", "product_id": id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"items": items, "total": len(f.items), "page": page, "per_page": perPage,
	}})
}

func (f *fakeUserService) add(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	f.mu.Lock()
	f.items = append(f.items, id)
	f.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]string{"product_id": id, "status": "added"}})
}

func (f *fakeUserService) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productId")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{"product_id": id, "status": "removed"}})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]string{"code": "NOT_FOUND", "message": "wishlist item not found"},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, f *fakeUserService) *HTTPWishlistClient {
	t.Helper()
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)

	base := httpclient.New(httpclient.Config{
		Timeout:         2 * time.Second,
		MaxRetries:      0,
		MaxConnsPerHost: 4,
	})
	return NewHTTPWishlistClient(srv.URL+"/", base, logger.Discard())
}

func TestList_AllPages(t *testing.T) {
	f := &fakeUserService{token: "tok"}
	for i := 0; i < 250; i++ {
		f.items = append(f.items, fmt.Sprintf("p%d", i))
	}
	c := newTestClient(t, f)

	ids, err := c.List(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, 250, ids.Len())
	assert.True(t, ids.Has("P0"))
	assert.True(t, ids.Has("p249"))
	assert.Len(t, f.calls, 3)
}

func TestList_Empty(t *testing.T) {
	f := &fakeUserService{token: "tok"}
	c := newTestClient(t, f)

	ids, err := c.List(context.Background(), "tok")
	require.NoError(t, err)
	assert.Zero(t, ids.Len())
	assert.Len(t, f.calls, 1)
}

func TestList_Unauthorized(t *testing.T) {
	f := &fakeUserService{token: "tok"}
	c := newTestClient(t, f)

	_, err := c.List(context.Background(), "other")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestList_NoTokenSkipsNetwork(t *testing.T) {
	f := &fakeUserService{token: "tok"}
	c := newTestClient(t, f)

	_, err := c.List(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Empty(t, f.calls)
}

func TestAddRemove(t *testing.T) {
	f := &fakeUserService{token: "tok"}
	c := newTestClient(t, f)
	ctx := context.Background()

	require.NoError(t, c.Add(ctx, "tok", "p 1"))
	require.Equal(t, []string{"p 1"}, f.items)

	require.NoError(t, c.Remove(ctx, "tok", "p 1"))
	assert.Empty(t, f.items)
	assert.Equal(t, []string{
		"POST /api/v1/users/wishlist/p 1",
		"DELETE /api/v1/users/wishlist/p 1",
	}, f.calls)
}

func TestRemove_NotFoundIsSuccess(t *testing.T) {
	f := &fakeUserService{token: "tok"}
	c := newTestClient(t, f)

	assert.NoError(t, c.Remove(context.Background(), "tok", "missing"))
}

func TestAdd_ServerError(t *testing.T) {
	f := &fakeUserService{token: "tok", failNext: 1}
	c := newTestClient(t, f)

	err := c.Add(context.Background(), "tok", "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user server error (502/BAD_GATEWAY)")
	assert.Empty(t, f.items)
}

func TestAdd_CircuitOpen(t *testing.T) {
	f := &fakeUserService{token: "tok", failNext: 1}
	srv := httptest.NewServer(f.router())
	t.Cleanup(srv.Close)

	cbCfg := httpclient.DefaultCircuitBreakerConfig("user-service-test")
	cbCfg.MinRequests = 1
	cbCfg.Timeout = time.Minute
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.Config{Timeout: 2 * time.Second, MaxConnsPerHost: 4}),
		cbCfg,
		logger.Discard(),
	)
	c := NewHTTPWishlistClient(srv.URL, breaker, logger.Discard())
	ctx := context.Background()

	err := c.Add(ctx, "tok", "p1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrServiceUnavail)

	err = c.Add(ctx, "tok", "p2")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.ErrorIs(t, err, httpclient.ErrCircuitOpen)
	assert.Len(t, f.calls, 1)
}

func TestAdd_BlankID(t *testing.T) {
	f := &fakeUserService{token: "tok"}
	c := newTestClient(t, f)

	err := c.Add(context.Background(), "tok", "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Empty(t, f.calls)
}

func TestDecodePage(t *testing.T) {
	p, err := decodePage(json.RawMessage(`[{"id":"a"},{"productId":"b"}]`))
	require.NoError(t, err)
	assert.Len(t, p.Items, 2)
	assert.Equal(t, 2, p.Total)

	p, err = decodePage(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, p.Items)

	_, err = decodePage(json.RawMessage(`"nope"`))
	assert.Error(t, err)
}
