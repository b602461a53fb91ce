package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"binance-sweep-bot/internal/config"
	"binance-sweep-bot/internal/state"

	"go.uber.org/zap"
)

const telegramBaseURL = "https://api.telegram.org"

type Telegram struct {
	enabled bool
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewTelegram(cfg config.TelegramConfig, log *zap.Logger) *Telegram {
	return newTelegram(cfg, log, telegramBaseURL, &http.Client{Timeout: 10 * time.Second})
}

func newTelegram(cfg config.TelegramConfig, log *zap.Logger, baseURL string, client *http.Client) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Telegram{
		enabled: cfg.Enabled,
		token:   strings.TrimSpace(cfg.Token),
		chatID:  strings.TrimSpace(cfg.ChatID),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     log,
	}
}

// SendCycleSummary posts a one-line digest of a finished sweep cycle. Alert
// failures must never affect the sweep itself, so callers log and continue.
func (t *Telegram) SendCycleSummary(ctx context.Context, report state.CycleReport) error {
	return t.Send(ctx, FormatCycleSummary(report))
}

func FormatCycleSummary(report state.CycleReport) string {
	var b strings.Builder
	if report.DryRun {
		b.WriteString("[dry run] ")
	}
	fmt.Fprintf(&b, "sweep cycle: sold %d asset(s) for %.2f %s",
		report.Sold, report.NotionalSold, report.Target)
	if report.Consolidated > 0 {
		fmt.Fprintf(&b, ", consolidated %d", report.Consolidated)
	}
	if report.DustConverted > 0 {
		fmt.Fprintf(&b, ", converted %d dust", report.DustConverted)
	}
	if report.DustDeferred > 0 {
		fmt.Fprintf(&b, ", deferred %d dust", report.DustDeferred)
	}
	if report.Failed > 0 {
		fmt.Fprintf(&b, ", %d FAILED", report.Failed)
	}
	return b.String()
}

func (t *Telegram) Send(ctx context.Context, message string) error {
	if !t.enabled {
		return nil
	}
	if t.token == "" || t.chatID == "" {
		return errors.New("telegram token and chat_id are required")
	}
	if strings.TrimSpace(message) == "" {
		return errors.New("telegram message is empty")
	}
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram send failed: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			desc := strings.TrimSpace(result.Description)
			if desc == "" {
				desc = "unknown telegram error"
			}
			return fmt.Errorf("telegram send failed: %s", desc)
		}
	}
	return nil
}
