package monitor

import "time"

// Snapshot is a point-in-time reading of one chain's market data, kept in
// memory for the stats endpoint and the /status bot command.
type Snapshot struct {
	ChainID   int64              `json:"chain_id"`
	Chain     string             `json:"chain"`
	Metrics   map[string]float64 `json:"metrics"`
	FetchedAt time.Time          `json:"fetched_at"`
}
