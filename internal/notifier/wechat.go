package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"time"

	appconfig "fundingwatch/config"
)

var htmlTag = regexp.MustCompile(`<[^>]+>`)

type wechatMessage struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

type wechatResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Wechat posts plain-text digests to a WeCom group robot webhook.
type Wechat struct {
	client     *http.Client
	webhookURL string
}

func NewWechat(cfg appconfig.WechatConfig) *Wechat {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Wechat{
		client:     &http.Client{Timeout: timeout},
		webhookURL: cfg.WebhookURL,
	}
}

func (w *Wechat) Name() string { return "wechat" }

func (w *Wechat) Deliver(ctx context.Context, message string) error {
	if w.webhookURL == "" {
		return &DeliveryError{Notifier: w.Name(), Err: fmt.Errorf("webhook URL is empty")}
	}

	msg := wechatMessage{MsgType: "text"}
	msg.Text.Content = PlainText(message)

	payload, err := json.Marshal(msg)
	if err != nil {
		return &DeliveryError{Notifier: w.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{Notifier: w.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return &DeliveryError{Notifier: w.Name(), Err: fmt.Errorf("send request: %w", redactURLError(err))}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DeliveryError{Notifier: w.Name(), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var out wechatResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err == nil && out.ErrCode != 0 {
			return &DeliveryError{Notifier: w.Name(), Err: fmt.Errorf("errcode %d: %s", out.ErrCode, out.ErrMsg)}
		}
	}
	return nil
}

// PlainText strips HTML tags and unescapes entities.
func PlainText(message string) string {
	return html.UnescapeString(htmlTag.ReplaceAllString(message, ""))
}
