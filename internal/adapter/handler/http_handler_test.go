package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/beer-stock/internal/adapter/storage"
	"github.com/rl1809/beer-stock/internal/core/domain"
	"github.com/rl1809/beer-stock/internal/core/service"
	"github.com/rl1809/beer-stock/internal/platform/observability"
	"github.com/rl1809/beer-stock/internal/port"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithRepo(t, storage.NewMemoryAdapter())
}

func newTestServerWithRepo(t *testing.T, repo port.BeerRepository) *httptest.Server {
	t.Helper()
	svc := service.NewBeerService(repo, nil, nil)
	h := NewHTTPHandler(svc, observability.NewMetrics(prometheus.NewRegistry()), nil)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createBeer(t *testing.T, srv *httptest.Server, name string, max, quantity int) BeerResponse {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/beers", BeerRequest{
		Name: name, Brand: "Ambev", Type: "lager", Max: max, Quantity: quantity,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[BeerResponse](t, resp)
}

func TestHTTP_CreateAndGet(t *testing.T) {
	srv := newTestServer(t)

	created := createBeer(t, srv, "Brahma", 50, 10)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Lager", created.Type)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/beers/Brahma", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[BeerResponse](t, resp)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 10, got.Quantity)
}

func TestHTTP_CreateDuplicate(t *testing.T) {
	srv := newTestServer(t)
	createBeer(t, srv, "Brahma", 50, 10)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/beers", BeerRequest{
		Name: "Brahma", Brand: "Other", Type: "ipa", Max: 10, Quantity: 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[ErrorResponse](t, resp)
	assert.Contains(t, body.Message, "already exists")
}

func TestHTTP_CreateValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := map[string]BeerRequest{
		"blank name":        {Name: " ", Brand: "Ambev", Type: "lager", Max: 10},
		"long name":         {Name: strings.Repeat("x", 101), Brand: "Ambev", Type: "lager", Max: 10},
		"unknown type":      {Name: "a", Brand: "Ambev", Type: "cider", Max: 10},
		"max too large":     {Name: "a", Brand: "Ambev", Type: "lager", Max: 501},
		"quantity over max": {Name: "a", Brand: "Ambev", Type: "lager", Max: 10, Quantity: 11},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/beers", req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/beers", strings.NewReader("{"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTP_GetNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/beers/Nothing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_ListEmptyIsArray(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/beers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var raw json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, "[]", string(raw))
}

func TestHTTP_List(t *testing.T) {
	srv := newTestServer(t)
	createBeer(t, srv, "Brahma", 50, 10)
	createBeer(t, srv, "Skol", 20, 0)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/beers", nil)
	beers := decodeBody[[]BeerResponse](t, resp)
	assert.Len(t, beers, 2)
}

func TestHTTP_Delete(t *testing.T) {
	srv := newTestServer(t)
	beer := createBeer(t, srv, "Brahma", 50, 10)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/beers/"+beer.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/beers/"+beer.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_Replace(t *testing.T) {
	srv := newTestServer(t)
	beer := createBeer(t, srv, "Brahma", 50, 10)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/beers/"+beer.ID, BeerRequest{
		Name: "Brahma Duplo Malte", Brand: "Ambev", Type: "Malzbier", Max: 80, Quantity: 40,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[BeerResponse](t, resp)
	assert.Equal(t, beer.ID, got.ID)
	assert.Equal(t, "Brahma Duplo Malte", got.Name)
	assert.Equal(t, "Malzbier", got.Type)
	assert.Equal(t, 40, got.Quantity)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/beers/missing", BeerRequest{
		Name: "x", Brand: "y", Type: "ale", Max: 1,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_IncrementDecrement(t *testing.T) {
	srv := newTestServer(t)
	beer := createBeer(t, srv, "Brahma", 50, 10)
	base := srv.URL + "/api/v1/beers/" + beer.ID

	resp := doJSON(t, http.MethodPatch, base+"/increment", QuantityRequest{Quantity: 40})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 50, decodeBody[BeerResponse](t, resp).Quantity)

	resp = doJSON(t, http.MethodPatch, base+"/increment", QuantityRequest{Quantity: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, base+"/decrement", QuantityRequest{Quantity: 50})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decodeBody[BeerResponse](t, resp).Quantity)

	resp = doJSON(t, http.MethodPatch, base+"/decrement", QuantityRequest{Quantity: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, base+"/decrement", QuantityRequest{Quantity: 101})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/v1/beers/missing/increment", QuantityRequest{Quantity: 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_ConcurrentIncrements(t *testing.T) {
	srv := newTestServer(t)
	const n = 30
	beer := createBeer(t, srv, "Brahma", n-1, 0)

	var wg sync.WaitGroup
	statuses := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _ := json.Marshal(QuantityRequest{Quantity: 1})
			req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/beers/"+beer.ID+"/increment", bytes.NewReader(body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Errorf("request failed: %v", err)
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	counts := map[int]int{}
	for s := range statuses {
		counts[s]++
	}
	assert.Equal(t, n-1, counts[http.StatusOK])
	assert.Equal(t, 1, counts[http.StatusUnprocessableEntity])

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/beers/Brahma", nil)
	assert.Equal(t, n-1, decodeBody[BeerResponse](t, resp).Quantity)
}

type conflictRepo struct {
	*storage.MemoryAdapter
}

func (r conflictRepo) Atomically(ctx context.Context, id string, fn func(context.Context, port.BeerRepository) error) error {
	return port.ErrLockTimeout
}

func TestHTTP_TransientErrorIsConflict(t *testing.T) {
	repo := conflictRepo{storage.NewMemoryAdapter()}
	beer, err := repo.Insert(context.Background(), domain.NewBeer(domain.BeerInput{
		Name: "Brahma", Brand: "Ambev", Type: domain.BeerTypeLager, Max: 10,
	}))
	require.NoError(t, err)
	srv := newTestServerWithRepo(t, repo)

	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/v1/beers/"+beer.ID+"/increment", QuantityRequest{Quantity: 1})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	createBeer(t, srv, "Brahma", 50, 10)

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `beerstock_requests_total{operation="create",outcome="ok",transport="http"} 1`)
}
