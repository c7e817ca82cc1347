package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appconfig "fundingwatch/config"
)

const defaultTelegramURL = "https://api.telegram.org"

// Telegram posts digests through the Bot API sendMessage method.
type Telegram struct {
	client    *http.Client
	endpoint  string
	chatID    string
	parseMode string
}

type telegramRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func NewTelegram(cfg appconfig.TelegramConfig) *Telegram {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		base = defaultTelegramURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	parseMode := cfg.ParseMode
	if parseMode == "" {
		parseMode = "HTML"
	}

	return &Telegram{
		client:    &http.Client{Timeout: timeout},
		endpoint:  fmt.Sprintf("%s/bot%s/sendMessage", base, cfg.Token),
		chatID:    cfg.ChatID,
		parseMode: parseMode,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Deliver(ctx context.Context, message string) error {
	payload, err := json.Marshal(telegramRequest{
		ChatID:                t.chatID,
		Text:                  message,
		ParseMode:             t.parseMode,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return &DeliveryError{Notifier: t.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{Notifier: t.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// the URL embeds the bot token
		return &DeliveryError{Notifier: t.Name(), Err: fmt.Errorf("send request: %w", redactURLError(err))}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return &DeliveryError{Notifier: t.Name(), Err: err}
	}

	var out telegramResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return &DeliveryError{Notifier: t.Name(), Err: fmt.Errorf("status %d: unreadable response", resp.StatusCode)}
	}
	if !out.OK {
		return &DeliveryError{Notifier: t.Name(), Err: fmt.Errorf("status %d: %s", resp.StatusCode, out.Description)}
	}
	return nil
}
