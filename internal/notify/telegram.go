// Package notify delivers signal messages to chat services.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coinbt/internal/util"
)

// DefaultTelegramURL is the Bot API endpoint.
const DefaultTelegramURL = "https://api.telegram.org"

// Telegram sends messages through a bot to one chat.
type Telegram struct {
	baseURL  string
	token    string
	chatID   string
	http     *http.Client
	attempts int
	delay    time.Duration
	log      *slog.Logger
}

// NewTelegram creates a Telegram notifier. An empty baseURL uses the public
// Bot API.
func NewTelegram(baseURL, token, chatID string) *Telegram {
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	return &Telegram{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		chatID:   chatID,
		http:     &http.Client{Timeout: 60 * time.Second},
		attempts: 3,
		delay:    5 * time.Second,
		log:      slog.Default().With("component", "telegram"),
	}
}

// Notify posts text with sendMessage, retrying transient failures.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if t.token == "" || t.chatID == "" {
		return fmt.Errorf("telegram: token and chat id are required")
	}
	endpoint := t.baseURL + "/bot" + t.token + "/sendMessage"
	form := url.Values{"chat_id": {t.chatID}, "text": {text}}

	return util.Retry(ctx, t.attempts, t.delay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return util.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.http.Do(req)
		if err != nil {
			t.log.Warn("send failed, retrying", "error", err)
			return fmt.Errorf("telegram: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err = fmt.Errorf("telegram: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			t.log.Warn("send failed, retrying", "status", resp.StatusCode)
			return err
		}
		return util.Permanent(err)
	})
}

// Log writes notifications to a logger. It stands in for Telegram when no
// bot is configured.
type Log struct {
	Logger *slog.Logger
}

// Notify logs text at info level.
func (l Log) Notify(_ context.Context, text string) error {
	lg := l.Logger
	if lg == nil {
		lg = slog.Default()
	}
	lg.Info("notification", "text", text)
	return nil
}
