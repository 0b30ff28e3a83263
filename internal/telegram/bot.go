package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pendle-watch/apy-monitor/internal/pendle"
	"github.com/pendle-watch/apy-monitor/internal/store"
)

const telegramAPI = "https://api.telegram.org/bot"

// Monitor provides poll data for bot commands.
type Monitor interface {
	AvailablePools(chainID int64) (string, error)
	LastPollTime() time.Time
	ChainIDs() []int64
	ChainName(id int64) string
	Threshold() float64
}

type Bot struct {
	token   string
	chatID  int64
	apiBase string
	store   *store.Store
	monitor Monitor
	logger  *slog.Logger
	client  *http.Client
	offset  int64
}

func NewBot(token string, chatID int64, s *store.Store, logger *slog.Logger) *Bot {
	return &Bot{
		token:   token,
		chatID:  chatID,
		apiBase: telegramAPI,
		store:   s,
		logger:  logger,
		client:  &http.Client{Timeout: 35 * time.Second},
	}
}

// SetMonitor attaches the engine after construction; the engine itself
// needs the bot's Notify function, so the two are wired in two steps.
func (b *Bot) SetMonitor(m Monitor) { b.monitor = m }

// Notify sends a message to the configured chat.
func (b *Bot) Notify(text string) error {
	return b.SendMessage(b.chatID, text)
}

// SendMessage sends a text message to a Telegram chat.
func (b *Bot) SendMessage(chatID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	body, _ := json.Marshal(payload)

	resp, err := b.client.Post(
		b.apiBase+b.token+"/sendMessage",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, errResp.Description)
	}
	return nil
}

// Run starts the long-polling loop for incoming Telegram commands.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("telegram bot started", "chat_id", b.chatID)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			b.poll(ctx)
		}
	}
}

func (b *Bot) poll(ctx context.Context) {
	url := fmt.Sprintf("%s%s/getUpdates?offset=%d&timeout=30", b.apiBase, b.token, b.offset)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		b.logger.Error("create poll request", "error", err)
		return
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("poll updates", "error", err)
		time.Sleep(5 * time.Second)
		return
	}
	defer resp.Body.Close()

	var result struct {
		OK     bool `json:"ok"`
		Result []struct {
			UpdateID int64 `json:"update_id"`
			Message  *struct {
				Chat struct {
					ID int64 `json:"id"`
				} `json:"chat"`
				Text string `json:"text"`
			} `json:"message"`
		} `json:"result"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		b.logger.Error("decode updates", "error", err)
		return
	}

	for _, u := range result.Result {
		b.offset = u.UpdateID + 1
		if u.Message == nil {
			continue
		}

		// Single-user bot: only the configured chat may issue commands
		if u.Message.Chat.ID != b.chatID {
			b.logger.Warn("ignoring message from unknown chat", "chat_id", u.Message.Chat.ID)
			continue
		}

		b.handleCommand(strings.TrimSpace(u.Message.Text))
	}
}

func (b *Bot) handleCommand(text string) {
	switch {
	case text == "/start", text == "/help":
		b.handleHelp()
	case strings.HasPrefix(text, "/track "):
		b.handleTrack(text)
	case strings.HasPrefix(text, "/untrack "):
		b.handleUntrack(text)
	case text == "/list":
		b.handleList()
	case text == "/pools", strings.HasPrefix(text, "/pools "):
		b.handlePools(text)
	case text == "/status":
		b.handleStatus()
	default:
		_ = b.Notify("Unknown command. Send /help for available commands.")
	}
}

func (b *Bot) handleHelp() {
	msg := "🤖 <b>Pendle APY Monitor</b>\n\n" +
		"Commands:\n" +
		"/track &lt;chainID&gt; &lt;address&gt; [minAPY%] [name] — monitor a pool\n" +
		"/untrack &lt;chainID&gt; &lt;address&gt; — stop monitoring a pool\n" +
		"/list — show tracked pools\n" +
		"/pools &lt;chainID&gt; — show active pools on a chain\n" +
		"/status — monitor status\n" +
		"/help — this message"
	_ = b.Notify(msg)
}

func (b *Bot) handleTrack(text string) {
	pool, err := parseTrackCommand(text)
	if err != nil {
		_ = b.Notify(fmt.Sprintf("❌ %v\nUsage: /track <chainID> <address> [minAPY%%] [name]", err))
		return
	}

	if err := b.store.Add(pool); err != nil {
		b.logger.Error("add tracked pool", "error", err)
		_ = b.Notify("❌ Failed to save tracked pool. Please try again.")
		return
	}

	_ = b.Notify(fmt.Sprintf("✅ Pool %s on %s added to monitoring with minimum threshold %.2f%%",
		pool.Name, pendle.ChainName(pool.ChainID), pool.MinThreshold))
}

func (b *Bot) handleUntrack(text string) {
	chainID, address, err := parseUntrackCommand(text)
	if err != nil {
		_ = b.Notify(fmt.Sprintf("❌ %v\nUsage: /untrack <chainID> <address>", err))
		return
	}

	removed, ok, err := b.store.Remove(chainID, address)
	if err != nil {
		b.logger.Error("remove tracked pool", "error", err)
		_ = b.Notify("❌ Failed to save tracked pools. Please try again.")
		return
	}
	if !ok {
		_ = b.Notify(fmt.Sprintf("Pool %s not found in monitoring", store.Key(chainID, address)))
		return
	}

	_ = b.Notify(fmt.Sprintf("✅ Pool %s on %s removed from monitoring",
		removed.Name, pendle.ChainName(removed.ChainID)))
}

func (b *Bot) handleList() {
	pools := b.store.List()
	if len(pools) == 0 {
		_ = b.Notify("No tracked pools. Add one with /track <chainID> <address> [minAPY%] [name]")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Tracked pools (%d):\n\n", len(pools)))
	for _, p := range pools {
		sb.WriteString(fmt.Sprintf("• [%s] %s — min %.2f%%\n  %s\n",
			pendle.ChainName(p.ChainID), p.Name, p.MinThreshold, p.Address))
	}
	_ = b.Notify(sb.String())
}

func (b *Bot) handlePools(text string) {
	if b.monitor == nil {
		_ = b.Notify("Monitor not ready yet.")
		return
	}

	fields := strings.Fields(text)
	if len(fields) < 2 {
		var sb strings.Builder
		sb.WriteString("Usage: /pools <chainID>\n\nMonitored chains:\n")
		for _, id := range b.monitor.ChainIDs() {
			sb.WriteString(fmt.Sprintf("• %s (ID: %d)\n", b.monitor.ChainName(id), id))
		}
		_ = b.Notify(sb.String())
		return
	}

	var chainID int64
	if _, err := fmt.Sscanf(fields[1], "%d", &chainID); err != nil {
		_ = b.Notify("❌ chainID must be a number, e.g. /pools 1")
		return
	}

	report, err := b.monitor.AvailablePools(chainID)
	if err != nil {
		_ = b.Notify(fmt.Sprintf("❌ %v", err))
		return
	}
	_ = b.Notify(report)
}

func (b *Bot) handleStatus() {
	if b.monitor == nil {
		_ = b.Notify("Monitor not ready yet.")
		return
	}

	chains := make([]string, 0)
	for _, id := range b.monitor.ChainIDs() {
		chains = append(chains, fmt.Sprintf("%s (%d)", b.monitor.ChainName(id), id))
	}

	lastPoll := "never"
	if t := b.monitor.LastPollTime(); !t.IsZero() {
		lastPoll = t.Format("2006-01-02 15:04:05")
	}

	msg := fmt.Sprintf("📡 <b>Monitor status</b>\n\n"+
		"Chains: %s\n"+
		"General threshold: %.1f%%\n"+
		"Tracked pools: %d\n"+
		"Last poll: %s",
		strings.Join(chains, ", "), b.monitor.Threshold(), b.store.Len(), lastPoll)
	_ = b.Notify(msg)
}
