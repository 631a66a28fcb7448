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

	"github.com/sittingbulll/tokenwatch/internal/metrics"
)

const defaultAPIBase = "https://api.telegram.org"

// Telegram delivers alerts to a channel through the bot API.
type Telegram struct {
	apiBase   string
	botToken  string
	channelID string
	client    *http.Client
	logger    *slog.Logger
}

type TelegramConfig struct {
	BotToken  string
	ChannelID string
	APIBase   string
	Timeout   time.Duration
}

func NewTelegram(cfg TelegramConfig, logger *slog.Logger) *Telegram {
	if cfg.APIBase == "" {
		cfg.APIBase = defaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Telegram{
		apiBase:   cfg.APIBase,
		botToken:  cfg.BotToken,
		channelID: NormalizeChannelID(cfg.ChannelID),
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger.With("component", "telegram"),
	}
}

// NormalizeChannelID ensures the supergroup "-100" prefix, accepting bare
// numeric IDs as copied from channel info dialogs.
func NormalizeChannelID(id string) string {
	if strings.HasPrefix(id, "-100") {
		return id
	}
	return "-100" + strings.TrimLeft(id, "-")
}

// Send posts an HTML message to the channel. When imageURL is set the
// message rides along as a photo caption.
func (t *Telegram) Send(ctx context.Context, text, imageURL string) error {
	method := "sendMessage"
	form := url.Values{
		"chat_id":    {t.channelID},
		"parse_mode": {"HTML"},
	}
	if imageURL != "" {
		method = "sendPhoto"
		form.Set("photo", imageURL)
		form.Set("caption", text)
	} else {
		form.Set("text", text)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		metrics.NotificationErrors.Inc()
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.NotificationErrors.Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("telegram %s: http status %d: %s", method, resp.StatusCode, string(body))
	}

	metrics.NotificationsSent.Inc()
	t.logger.Info("alert delivered", "method", method)
	return nil
}
