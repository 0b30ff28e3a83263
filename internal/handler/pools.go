package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pendle-watch/apy-monitor/internal/store"
)

func ListPools(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pools := s.List()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(pools)
	}
}

func TrackPool(s *store.Store) http.HandlerFunc {
	type request struct {
		ChainID      int64   `json:"chain_id"`
		Address      string  `json:"address"`
		Name         string  `json:"name"`
		MinThreshold float64 `json:"min_threshold"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		if req.ChainID == 0 || req.Address == "" {
			http.Error(w, `{"error":"chain_id and address required"}`, http.StatusBadRequest)
			return
		}
		if !strings.HasPrefix(strings.ToLower(req.Address), "0x") {
			http.Error(w, `{"error":"invalid pool address"}`, http.StatusBadRequest)
			return
		}

		if req.MinThreshold <= 0 {
			req.MinThreshold = 20
		}
		if req.Name == "" {
			req.Name = req.Address
		}

		pool := store.TrackedPool{
			ChainID:      req.ChainID,
			Address:      req.Address,
			Name:         req.Name,
			MinThreshold: req.MinThreshold,
		}
		if err := s.Add(pool); err != nil {
			http.Error(w, `{"error":"failed to save tracked pool"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(pool)
	}
}

func UntrackPool(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chainID, err := strconv.ParseInt(chi.URLParam(r, "chainID"), 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid chain id"}`, http.StatusBadRequest)
			return
		}
		address := chi.URLParam(r, "address")
		if !strings.HasPrefix(strings.ToLower(address), "0x") {
			http.Error(w, `{"error":"invalid pool address"}`, http.StatusBadRequest)
			return
		}

		_, ok, err := s.Remove(chainID, address)
		if err != nil {
			http.Error(w, `{"error":"failed to save tracked pools"}`, http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, `{"error":"pool not tracked"}`, http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
