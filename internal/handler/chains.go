package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/pendle-watch/apy-monitor/internal/pendle"
)

type chainInfo struct {
	ChainID int64  `json:"chain_id"`
	Name    string `json:"name"`
}

func ListChains() http.HandlerFunc {
	chains := make([]chainInfo, 0, len(pendle.Chains))
	for id, name := range pendle.Chains {
		chains = append(chains, chainInfo{ChainID: id, Name: name})
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].ChainID < chains[j].ChainID })

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chains)
	}
}
