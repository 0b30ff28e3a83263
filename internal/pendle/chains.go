package pendle

import "fmt"

// Chains maps monitored chain IDs to display names.
var Chains = map[int64]string{
	1:     "Ethereum",
	42161: "Arbitrum",
	10:    "Optimism",
	56:    "BSC",
	146:   "Sonic",
	8453:  "Base",
	5000:  "Mantle",
}

// ChainName returns the display name for a chain ID, or a generic
// "Chain {id}" label for chains outside the monitored set.
func ChainName(id int64) string {
	if name, ok := Chains[id]; ok {
		return name
	}
	return fmt.Sprintf("Chain %d", id)
}
