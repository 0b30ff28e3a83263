package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pendle-watch/apy-monitor/internal/store"
)

const defaultMinThreshold = 20.0

// parseTrackCommand parses "/track <chainID> <address> [minAPY%] [name...]".
// The threshold and name are optional; a missing name falls back to the
// pool address.
func parseTrackCommand(text string) (store.TrackedPool, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return store.TrackedPool{}, fmt.Errorf("chainID and address are required")
	}

	chainID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return store.TrackedPool{}, fmt.Errorf("invalid chainID %q", fields[1])
	}

	address := strings.ToLower(fields[2])
	if !strings.HasPrefix(address, "0x") {
		return store.TrackedPool{}, fmt.Errorf("invalid pool address %q", fields[2])
	}

	pool := store.TrackedPool{
		ChainID:      chainID,
		Address:      address,
		Name:         address,
		MinThreshold: defaultMinThreshold,
	}

	rest := fields[3:]
	if len(rest) > 0 {
		if threshold, err := strconv.ParseFloat(rest[0], 64); err == nil {
			pool.MinThreshold = threshold
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		pool.Name = strings.Join(rest, " ")
	}

	return pool, nil
}

// parseUntrackCommand parses "/untrack <chainID> <address>".
func parseUntrackCommand(text string) (int64, string, error) {
	fields := strings.Fields(text)
	if len(fields) != 3 {
		return 0, "", fmt.Errorf("chainID and address are required")
	}

	chainID, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid chainID %q", fields[1])
	}

	address := strings.ToLower(fields[2])
	if !strings.HasPrefix(address, "0x") {
		return 0, "", fmt.Errorf("invalid pool address %q", fields[2])
	}

	return chainID, address, nil
}
