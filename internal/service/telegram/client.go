package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/image-delivery-bot/internal/common/errors"
	"github.com/open-builders/image-delivery-bot/internal/domain/chat"
)

// maxRetryAfter caps how long a single call waits out a flood limit.
const maxRetryAfter = 30 * time.Second

// RateLimitError is returned when Telegram answers 429 and the call could not be retried.
type RateLimitError struct {
	Method     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: too many requests, retry after %s", e.Method, e.RetryAfter)
}

// Client is a minimal Telegram Bot API client covering what the bot needs.
// It implements chat.Transport.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     zerolog.Logger
}

var _ chat.Transport = (*Client)(nil)

// NewClient builds a client. timeout must exceed the long-poll timeout used with GetUpdates.
func NewClient(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
	}
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// SendText sends a text message, optionally with inline buttons, and returns its id.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb chat.Keyboard) (int, error) {
	params := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	}
	if err := setMarkup(params, kb); err != nil {
		return 0, err
	}

	var result tgResponse[Message]
	if err := c.call(ctx, "sendMessage", params, &result); err != nil {
		return 0, err
	}
	return result.Result.MessageID, nil
}

// EditText replaces the text and buttons of an existing message.
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, kb chat.Keyboard) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.Itoa(messageID)},
		"text":       {text},
	}
	if err := setMarkup(params, kb); err != nil {
		return err
	}

	var result tgResponse[json.RawMessage]
	err := c.call(ctx, "editMessageText", params, &result)
	if err != nil && strings.Contains(result.Description, "message is not modified") {
		return nil
	}
	return err
}

// SendImage uploads data as a photo with a caption and returns the message id.
func (c *Client) SendImage(ctx context.Context, chatID int64, data []byte, caption string) (int, error) {
	build := func() (*http.Request, error) {
		var body bytes.Buffer
		w := multipart.NewWriter(&body)
		if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
			return nil, err
		}
		if caption != "" {
			if err := w.WriteField("caption", caption); err != nil {
				return nil, err
			}
		}
		part, err := w.CreateFormFile("photo", "image")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendPhoto"), &body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}

	var result tgResponse[Message]
	if err := c.send(ctx, "sendPhoto", build, &result); err != nil {
		return 0, err
	}
	return result.Result.MessageID, nil
}

// DeleteMessage removes a message from the chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.Itoa(messageID)},
	}
	var result tgResponse[bool]
	return c.call(ctx, "deleteMessage", params, &result)
}

// AnswerCallbackQuery acknowledges a button press so the client stops its spinner.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	params := url.Values{"callback_query_id": {callbackID}}
	var result tgResponse[bool]
	return c.call(ctx, "answerCallbackQuery", params, &result)
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error) {
	params := url.Values{
		"offset":          {strconv.Itoa(offset)},
		"timeout":         {strconv.Itoa(int(timeout / time.Second))},
		"allowed_updates": {`["message","callback_query"]`},
	}
	var result tgResponse[[]Update]
	if err := c.call(ctx, "getUpdates", params, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// GetMe returns the bot's own user, useful as a token check on startup.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var result tgResponse[User]
	if err := c.call(ctx, "getMe", url.Values{}, &result); err != nil {
		return nil, err
	}
	return &result.Result, nil
}

func setMarkup(params url.Values, kb chat.Keyboard) error {
	if len(kb) == 0 {
		return nil
	}
	markup := inlineKeyboardMarkup{InlineKeyboard: make([][]inlineKeyboardButton, 0, len(kb))}
	for _, row := range kb {
		buttons := make([]inlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, inlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	raw, err := json.Marshal(markup)
	if err != nil {
		return fmt.Errorf("marshal reply_markup: %w", err)
	}
	params.Set("reply_markup", string(raw))
	return nil
}

// okResponse is implemented by every tgResponse instantiation.
type okResponse interface {
	ok() (bool, string)
	retryAfter() time.Duration
}

func (r *tgResponse[T]) ok() (bool, string) { return r.Ok, r.Description }

func (r *tgResponse[T]) retryAfter() time.Duration {
	if r.Parameters == nil {
		return 0
	}
	return time.Duration(r.Parameters.RetryAfter) * time.Second
}

func (c *Client) call(ctx context.Context, method string, data url.Values, out okResponse) error {
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), strings.NewReader(data.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}
	return c.send(ctx, method, build, out)
}

// send performs the request, waiting out one flood-control response before retrying.
func (c *Client) send(ctx context.Context, method string, build func() (*http.Request, error), out okResponse) error {
	for attempt := 0; ; attempt++ {
		req, err := build()
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		err = c.do(req, method, out)

		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) || attempt > 0 || rateErr.RetryAfter > maxRetryAfter {
			return err
		}
		c.logger.Warn().Str("method", method).Dur("retry_after", rateErr.RetryAfter).Msg("Telegram flood limit hit, retrying")
		select {
		case <-time.After(rateErr.RetryAfter):
		case <-ctx.Done():
			return err
		}
	}
}

func (c *Client) do(req *http.Request, method string, out okResponse) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, redactToken(err, c.token))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: parse response (status %d): %w", method, resp.StatusCode, err)
	}
	if ok, description := out.ok(); !ok {
		c.logger.Debug().Str("method", method).Int("status", resp.StatusCode).Str("description", description).Msg("Telegram API error")
		if resp.StatusCode == http.StatusTooManyRequests {
			return &RateLimitError{Method: method, RetryAfter: out.retryAfter()}
		}
		return apperrors.NewTelegramAPIError(method, description)
	}
	return nil
}

// redactToken keeps the bot token out of transport errors, which embed the request URL.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<redacted>"))
}
