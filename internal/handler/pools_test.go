package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pendle-watch/apy-monitor/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "tracked_pools.json"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestTrackPoolValidation(t *testing.T) {
	// Validation runs before the store is touched
	handler := TrackPool(nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			name:       "invalid JSON",
			body:       `{invalid`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing chain_id",
			body:       `{"address": "0xabc"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing address",
			body:       `{"chain_id": 1}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "address without 0x prefix",
			body:       `{"chain_id": 1, "address": "deadbeef"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/pools", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestTrackPoolDefaults(t *testing.T) {
	s := testStore(t)
	handler := TrackPool(s)

	body := `{"chain_id": 1, "address": "0xABC"}`
	req := httptest.NewRequest(http.MethodPost, "/api/pools", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	p, ok := s.Get(1, "0xabc")
	if !ok {
		t.Fatal("pool should be tracked")
	}
	if p.MinThreshold != 20 {
		t.Errorf("MinThreshold = %v, want default 20", p.MinThreshold)
	}
	if p.Name != "0xABC" {
		t.Errorf("Name = %q, want address fallback", p.Name)
	}
}

func TestListPools(t *testing.T) {
	s := testStore(t)
	if err := s.Add(store.TrackedPool{ChainID: 1, Address: "0xabc", Name: "stETH", MinThreshold: 3}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/pools", nil)
	rec := httptest.NewRecorder()
	ListPools(s).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var pools []store.TrackedPool
	if err := json.Unmarshal(rec.Body.Bytes(), &pools); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(pools) != 1 || pools[0].Name != "stETH" {
		t.Errorf("pools = %+v, want single stETH entry", pools)
	}
}

func TestListPoolsEmptyIsJSONArray(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/pools", nil)
	rec := httptest.NewRecorder()
	ListPools(testStore(t)).ServeHTTP(rec, req)

	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func untrackRequest(chainID, address string) *http.Request {
	req := httptest.NewRequest(http.MethodDelete, "/api/pools/"+chainID+"/"+address, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("chainID", chainID)
	rctx.URLParams.Add("address", address)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestUntrackPool(t *testing.T) {
	s := testStore(t)
	if err := s.Add(store.TrackedPool{ChainID: 1, Address: "0xabc", Name: "stETH", MinThreshold: 3}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	UntrackPool(s).ServeHTTP(rec, untrackRequest("1", "0xabc"))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if s.Len() != 0 {
		t.Error("pool should be removed")
	}

	// Removing again yields 404
	rec = httptest.NewRecorder()
	UntrackPool(s).ServeHTTP(rec, untrackRequest("1", "0xabc"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUntrackPoolBadParams(t *testing.T) {
	rec := httptest.NewRecorder()
	UntrackPool(nil).ServeHTTP(rec, untrackRequest("abc", "0xabc"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad chain id: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	UntrackPool(nil).ServeHTTP(rec, untrackRequest("1", "nothex"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad address: status = %d, want 400", rec.Code)
	}
}

func TestListChains(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/chains", nil)
	rec := httptest.NewRecorder()
	ListChains().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var chains []chainInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &chains); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(chains) != 7 {
		t.Fatalf("chains = %d, want 7", len(chains))
	}
	if chains[0].ChainID != 1 || chains[0].Name != "Ethereum" {
		t.Errorf("first chain = %+v, want Ethereum (1)", chains[0])
	}
}
