package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shanchoynoor/choynews-digest-bot/internal/logger"
)

// TelegramClient implements Transport against the Telegram Bot API.
// Grounded on the teacher's internal/telegram/telegram.go
// (sendMessageOnce's plain *http.Client + JSON payload shape), switched
// from HTML to legacy Markdown parse mode (matching digest.escapeMarkdown's
// single-asterisk/underscore escaping) and extended with getUpdates for
// command intake and explicit SendKind classification instead of a
// bare status-code error.
type TelegramClient struct {
	token string
	http  *http.Client
}

// NewTelegramClient builds a TelegramClient. token comes from
// Config.TelegramToken.
func NewTelegramClient(token string) *TelegramClient {
	return &TelegramClient{
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// SendMessage sends text to chatID. markdown selects Telegram's legacy
// Markdown parse mode (spec.md §4.5's conservative bold+links subset)
// versus plain text.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID, text string, markdown bool) (SendResult, error) {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", c.token)

	payload := map[string]interface{}{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if markdown {
		payload["parse_mode"] = "Markdown"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, &SendError{Kind: Other, Err: fmt.Errorf("marshal send payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return SendResult{}, &SendError{Kind: Other, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return SendResult{}, &SendError{Kind: Transient, Err: err}
	}
	defer func(b io.ReadCloser) { _ = b.Close() }(resp.Body)

	var parsed sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return SendResult{}, &SendError{Kind: Other, Err: fmt.Errorf("decode send response: %w", err)}
	}

	if !parsed.OK {
		return SendResult{}, classifySendFailure(resp.StatusCode, parsed)
	}

	return SendResult{MessageID: strconv.FormatInt(parsed.Result.MessageID, 10)}, nil
}

func classifySendFailure(statusCode int, parsed sendMessageResponse) *SendError {
	err := fmt.Errorf("telegram API error %d: %s", parsed.ErrorCode, parsed.Description)
	switch statusCode {
	case http.StatusTooManyRequests:
		return &SendError{Kind: RateLimited, RetryAfter: time.Duration(parsed.Parameters.RetryAfter) * time.Second, Err: err}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &SendError{Kind: Unauthorized, Err: err}
	case http.StatusNotFound, http.StatusBadRequest:
		return &SendError{Kind: ChatNotFound, Err: err}
	case http.StatusRequestEntityTooLarge:
		return &SendError{Kind: PayloadTooLarge, Err: err}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &SendError{Kind: Transient, Err: err}
	default:
		return &SendError{Kind: Other, Err: err}
	}
}

type getUpdatesResponse struct {
	OK     bool `json:"ok"`
	Result []struct {
		UpdateID int64 `json:"update_id"`
		Message  struct {
			MessageID int64 `json:"message_id"`
			From      struct {
				ID       int64  `json:"id"`
				Username string `json:"username"`
			} `json:"from"`
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
			Text string `json:"text"`
			Date int64  `json:"date"`
		} `json:"message"`
	} `json:"result"`
}

// GetUpdates long-polls for inbound commands starting after offset.
func (c *TelegramClient) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/getUpdates?offset=%d&timeout=30", c.token, offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getUpdates request: %w", err)
	}
	defer func(b io.ReadCloser) { _ = b.Close() }(resp.Body)

	var parsed getUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode getUpdates response: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("getUpdates returned not-ok")
	}

	updates := make([]Update, 0, len(parsed.Result))
	for _, r := range parsed.Result {
		if r.Message.Text == "" {
			logger.Debug("skipping update without text", "update_id", r.UpdateID)
			continue
		}
		updates = append(updates, Update{
			UpdateID: r.UpdateID,
			ChatID:   strconv.FormatInt(r.Message.Chat.ID, 10),
			UserID:   strconv.FormatInt(r.Message.From.ID, 10),
			Username: r.Message.From.Username,
			Text:     r.Message.Text,
			At:       time.Unix(r.Message.Date, 0).UTC(),
		})
	}
	return updates, nil
}
