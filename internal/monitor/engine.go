package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pendle-watch/apy-monitor/internal/metrics"
	"github.com/pendle-watch/apy-monitor/internal/pendle"
	"github.com/pendle-watch/apy-monitor/internal/store"
)

const (
	defaultInterval  = 10 * time.Minute
	defaultThreshold = 20.0 // percent
	defaultExpiryWin = 7 * 24 * time.Hour
)

// AlertFunc delivers one formatted message to the configured chat.
type AlertFunc func(text string) error

// Deduper suppresses one-shot alerts that were already delivered.
type Deduper interface {
	AlreadySent(ctx context.Context, key string) bool
	Record(ctx context.Context, key string)
}

// Config holds the tunable parts of the engine. Zero values fall back to
// the defaults of the original deployment.
type Config struct {
	Chains       map[int64]string
	Threshold    float64 // general high-APY cutoff, percent
	Interval     time.Duration
	ExpiryWindow time.Duration
}

// Engine polls the Pendle API for every monitored chain, evaluates
// threshold rules and hands alert messages to the notifier.
type Engine struct {
	client    *pendle.Client
	store     *store.Store
	logger    *slog.Logger
	alertFn   AlertFunc
	dedup     Deduper
	chains    map[int64]string
	threshold float64
	interval  time.Duration
	expiryWin time.Duration

	mu          sync.RWMutex
	lastSnap    map[int64]*Snapshot
	lastMarkets map[int64][]pendle.Market
	lastPoll    time.Time
}

func NewEngine(client *pendle.Client, st *store.Store, logger *slog.Logger, alertFn AlertFunc, dd Deduper, cfg Config) *Engine {
	if cfg.Chains == nil {
		cfg.Chains = pendle.Chains
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.ExpiryWindow == 0 {
		cfg.ExpiryWindow = defaultExpiryWin
	}
	return &Engine{
		client:      client,
		store:       st,
		logger:      logger,
		alertFn:     alertFn,
		dedup:       dd,
		chains:      cfg.Chains,
		threshold:   cfg.Threshold,
		interval:    cfg.Interval,
		expiryWin:   cfg.ExpiryWindow,
		lastSnap:    make(map[int64]*Snapshot),
		lastMarkets: make(map[int64][]pendle.Market),
	}
}

// Threshold returns the general high-APY cutoff in percent.
func (e *Engine) Threshold() float64 { return e.threshold }

// ChainIDs returns the monitored chain IDs in ascending order.
func (e *Engine) ChainIDs() []int64 {
	ids := make([]int64, 0, len(e.chains))
	for id := range e.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ChainName resolves a chain ID against the engine's monitored set.
func (e *Engine) ChainName(id int64) string {
	if name, ok := e.chains[id]; ok {
		return name
	}
	return pendle.ChainName(id)
}

// GetSnapshot returns the latest cached snapshot for a chain.
func (e *Engine) GetSnapshot(chainID int64) *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSnap[chainID]
}

// Snapshots returns the latest snapshot of every chain that has data.
func (e *Engine) Snapshots() []*Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*Snapshot, 0, len(e.lastSnap))
	for _, id := range e.ChainIDs() {
		if snap, ok := e.lastSnap[id]; ok {
			out = append(out, snap)
		}
	}
	return out
}

// LastPollTime returns when the last poll cycle completed.
func (e *Engine) LastPollTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastPoll
}

// Run starts the polling loop. It returns only when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	// Initial poll so alerts fire right after startup
	e.pollAll(ctx)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollAll(ctx)
		}
	}
}

// pollAll runs one full cycle: fetch every chain, evaluate rules and send
// the batched alert messages. A failing chain is logged and skipped so the
// remaining chains still get evaluated.
func (e *Engine) pollAll(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("poll cycle panic recovered", "panic", rec)
		}
	}()

	var high, below, expiring []Alert

	for _, chainID := range e.ChainIDs() {
		chain := e.chains[chainID]

		start := time.Now()
		markets, err := e.client.FetchActiveMarkets(ctx, chainID)
		metrics.PollDuration.WithLabelValues(chain).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.PollTotal.WithLabelValues(chain, "error").Inc()
			e.logger.Error("fetch markets failed", "chain", chain, "error", err)
			continue
		}
		metrics.PollTotal.WithLabelValues(chain, "success").Inc()
		metrics.PollLastSuccess.WithLabelValues(chain).SetToCurrentTime()

		e.cacheSnapshot(chainID, chain, markets)

		for _, a := range e.Evaluate(chainID, markets) {
			switch a.Kind {
			case KindHighAPY:
				high = append(high, a)
			case KindBelowMin:
				below = append(below, a)
			case KindExpiring:
				expiring = append(expiring, a)
			}
		}
	}

	e.mu.Lock()
	e.lastPoll = time.Now()
	e.mu.Unlock()
	metrics.TrackedPools.Set(float64(e.store.Len()))

	ts := time.Now().Format("2006-01-02 15:04:05")
	if len(high) > 0 {
		header := fmt.Sprintf("🔔 %s — pools with implied APY above %.1f%%:\n\n", ts, e.threshold)
		e.send(KindHighAPY, header+joinLines(high))
	}
	if len(below) > 0 {
		e.send(KindBelowMin, fmt.Sprintf("🔔 %s — monitored pool updates:\n\n", ts)+joinLines(below))
	}
	for _, a := range expiring {
		e.sendExpiry(ctx, a)
	}
}

func (e *Engine) cacheSnapshot(chainID int64, chain string, markets []pendle.Market) {
	var topAPY float64
	for _, m := range markets {
		if apy := m.ImpliedAPYPct(); apy > topAPY {
			topAPY = apy
		}
	}

	snap := &Snapshot{
		ChainID: chainID,
		Chain:   chain,
		Metrics: map[string]float64{
			"markets":         float64(len(markets)),
			"top_implied_apy": topAPY,
		},
		FetchedAt: time.Now(),
	}

	e.mu.Lock()
	e.lastSnap[chainID] = snap
	e.lastMarkets[chainID] = markets
	e.mu.Unlock()

	for name, v := range snap.Metrics {
		metrics.MetricValue.WithLabelValues(chain, name).Set(v)
	}
	e.logger.Info("snapshot", "chain", chain, "markets", len(markets), "top_implied_apy", topAPY)
}

func (e *Engine) send(kind Kind, msg string) {
	if err := e.alertFn(msg); err != nil {
		metrics.AlertsFailedTotal.WithLabelValues(string(kind)).Inc()
		e.logger.Error("send alert failed", "type", kind, "error", err)
		return
	}
	metrics.AlertsSentTotal.WithLabelValues(string(kind)).Inc()
}

// sendExpiry delivers an expiry reminder at most once per market.
func (e *Engine) sendExpiry(ctx context.Context, a Alert) {
	if e.dedup != nil && e.dedup.AlreadySent(ctx, a.DedupKey) {
		metrics.AlertsDeduplicatedTotal.WithLabelValues(string(KindExpiring)).Inc()
		return
	}
	if err := e.alertFn(a.Line); err != nil {
		metrics.AlertsFailedTotal.WithLabelValues(string(KindExpiring)).Inc()
		e.logger.Error("send alert failed", "type", KindExpiring, "error", err)
		return
	}
	metrics.AlertsSentTotal.WithLabelValues(string(KindExpiring)).Inc()
	if e.dedup != nil {
		e.dedup.Record(ctx, a.DedupKey)
	}
}

// AvailablePools renders the active markets of one chain, sorted by implied
// APY, for the /pools bot command.
func (e *Engine) AvailablePools(chainID int64) (string, error) {
	e.mu.RLock()
	markets := e.lastMarkets[chainID]
	e.mu.RUnlock()

	if len(markets) == 0 {
		return "", fmt.Errorf("no market data for %s yet", e.ChainName(chainID))
	}

	sorted := make([]pendle.Market, len(markets))
	copy(sorted, markets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ImpliedAPYPct() > sorted[j].ImpliedAPYPct()
	})

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 Active Pendle pools on %s\n\n", e.ChainName(chainID)))
	count := 10
	if len(sorted) < count {
		count = len(sorted)
	}
	for i := 0; i < count; i++ {
		m := sorted[i]
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, m.Name))
		b.WriteString(fmt.Sprintf("   Implied APY: %.2f%% | Liquidity: $%s\n", m.ImpliedAPYPct(), fmtLiquidity(m.Details.Liquidity)))
		b.WriteString(fmt.Sprintf("   %s", m.Address))
		if !m.Expiry.IsZero() {
			b.WriteString(fmt.Sprintf(" | expires %s", m.Expiry.Format("2006-01-02")))
		}
		b.WriteString("\n\n")
	}
	b.WriteString(fmt.Sprintf("Total: %d active markets", len(sorted)))
	return b.String(), nil
}

func joinLines(alerts []Alert) string {
	lines := make([]string, 0, len(alerts))
	for _, a := range alerts {
		lines = append(lines, a.Line)
	}
	return strings.Join(lines, "\n")
}

func fmtLiquidity(v float64) string {
	if v >= 1_000_000 {
		return fmt.Sprintf("%.1fM", v/1_000_000)
	}
	if v >= 1_000 {
		return fmt.Sprintf("%.0fK", v/1_000)
	}
	return fmt.Sprintf("%.0f", v)
}
