// Package telegram delivers one-time login codes over the Telegram Bot
// API. Outbound only: the bot never polls for updates, it just pushes a
// message to a pre-configured chat.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const telegramAPI = "https://api.telegram.org/bot"

type Bot struct {
	token   string
	baseURL string
	logger  *slog.Logger
	client  *http.Client
}

func NewBot(token string, logger *slog.Logger) *Bot {
	return &Bot{
		token:   token,
		baseURL: telegramAPI,
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
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
		b.baseURL+b.token+"/sendMessage",
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

// SendLoginCode delivers a one-time code to the owner's chat.
func (b *Bot) SendLoginCode(chatID int64, code string) error {
	msg := fmt.Sprintf("🔐 Your login code: <code>%s</code>\n\n"+
		"⏰ It expires in 5 minutes and works exactly once.", code)
	if err := b.SendMessage(chatID, msg); err != nil {
		b.logger.Error("deliver login code", "chat_id", chatID, "error", err)
		return err
	}
	return nil
}
