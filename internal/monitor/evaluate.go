package monitor

import (
	"fmt"

	"github.com/pendle-watch/apy-monitor/internal/pendle"
)

// Kind classifies an alert.
type Kind string

const (
	KindHighAPY  Kind = "high_apy"
	KindBelowMin Kind = "below_min"
	KindExpiring Kind = "expiring"
)

// Alert is one flagged event from a poll cycle, with its message line
// already formatted.
type Alert struct {
	Kind     Kind
	ChainID  int64
	Address  string
	Line     string
	DedupKey string // set for one-shot alert kinds only
}

// Evaluate applies the threshold rules to one chain's markets:
//
//   - every market whose implied APY exceeds the general threshold yields
//     exactly one high-APY alert;
//   - every tracked pool present in the data whose implied APY falls below
//     its personal minimum yields exactly one below-threshold alert;
//   - every tracked pool whose market expires inside the expiry window
//     yields an expiring alert (deduplicated at send time).
//
// Comparisons are plain greater/less-than; a pool that keeps breaching
// keeps alerting on every cycle.
func (e *Engine) Evaluate(chainID int64, markets []pendle.Market) []Alert {
	chain := e.ChainName(chainID)

	var alerts []Alert
	for _, m := range markets {
		apy := m.ImpliedAPYPct()

		if apy > e.threshold {
			alerts = append(alerts, Alert{
				Kind:    KindHighAPY,
				ChainID: chainID,
				Address: m.Address,
				Line:    fmt.Sprintf("🚀 [%s] Pool %s has an implied APY of %.2f%%", chain, m.Name, apy),
			})
		}

		tracked, ok := e.store.Get(chainID, m.Address)
		if !ok {
			continue
		}

		if apy < tracked.MinThreshold {
			alerts = append(alerts, Alert{
				Kind:    KindBelowMin,
				ChainID: chainID,
				Address: m.Address,
				Line: fmt.Sprintf("⚠️ [%s] Your monitored pool %s has dropped to %.2f%% (below %.2f%%)",
					chain, tracked.Name, apy, tracked.MinThreshold),
			})
		}

		if m.ExpiresWithin(e.expiryWin) {
			alerts = append(alerts, Alert{
				Kind:    KindExpiring,
				ChainID: chainID,
				Address: m.Address,
				Line: fmt.Sprintf("⏳ [%s] Market for your monitored pool %s expires on %s",
					chain, tracked.Name, m.Expiry.Format("2006-01-02")),
				DedupKey: fmt.Sprintf("expiry:%s:%d", m.Key(chainID), m.Expiry.Unix()),
			})
		}
	}
	return alerts
}
