package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pendle-watch/apy-monitor/internal/monitor"
)

// Stats serves the latest cached snapshot per chain, or all snapshots when
// no chain_id is given.
func Stats(engine *monitor.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chainIDStr := r.URL.Query().Get("chain_id")
		if chainIDStr == "" {
			snaps := engine.Snapshots()
			if len(snaps) == 0 {
				http.Error(w, `{"error":"no data available yet"}`, http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(snaps)
			return
		}

		chainID, err := strconv.ParseInt(chainIDStr, 10, 64)
		if err != nil {
			http.Error(w, `{"error":"invalid chain_id"}`, http.StatusBadRequest)
			return
		}

		snap := engine.GetSnapshot(chainID)
		if snap == nil {
			http.Error(w, `{"error":"no data available yet"}`, http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}
