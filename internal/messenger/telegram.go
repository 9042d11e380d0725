// Package messenger delivers notifications over the Telegram Bot API.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
)

const defaultAPIURL = "https://api.telegram.org/bot%s/sendMessage"

// TelegramClient implements the Messenger interface against the Telegram
// Bot API. Sends are throttled below the Bot API's flood ceiling so a
// briefing fan-out never trips a 429.
type TelegramClient struct {
	botToken      string
	channelChatID int64
	apiURL        string
	httpClient    *http.Client
	limiter       *rate.Limiter
	logger        arbor.ILogger
}

// NewTelegramClient creates a new Telegram client
func NewTelegramClient(cfg *common.TelegramConfig, logger arbor.ILogger) (*TelegramClient, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	return &TelegramClient{
		botToken:      cfg.BotToken,
		channelChatID: cfg.ChannelChatID,
		apiURL:        defaultAPIURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 5),
		logger:  logger,
	}, nil
}

// sendMessageRequest represents a Telegram sendMessage request
type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// sendMessageResponse represents a Telegram API response
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// SendDirectMessage sends a message to one user's private chat.
func (c *TelegramClient) SendDirectMessage(ctx context.Context, chatID int64, text string) error {
	if chatID == 0 {
		return fmt.Errorf("no direct chat registered")
	}
	return c.send(ctx, chatID, text)
}

// SendToChannel sends a message to the shared channel.
func (c *TelegramClient) SendToChannel(ctx context.Context, text string) error {
	if c.channelChatID == 0 {
		return fmt.Errorf("no channel chat configured")
	}
	return c.send(ctx, c.channelChatID, text)
}

func (c *TelegramClient) send(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait aborted: %w", err)
	}

	url := fmt.Sprintf(c.apiURL, c.botToken)

	reqBody := sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "Markdown",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var response sendMessageResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !response.OK {
		return fmt.Errorf("telegram API error: %s", response.Description)
	}

	c.logger.Debug().
		Int64("chat_id", chatID).
		Int("length", len(text)).
		Msg("Telegram message sent")
	return nil
}

var _ interfaces.Messenger = (*TelegramClient)(nil)
