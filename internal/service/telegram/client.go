package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
)

const ParseModeHTML = "HTML"

// APIError is a response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Client is a minimal Bot API client covering what the bot uses.
type Client struct {
	httpClient *http.Client
	pollClient *http.Client
	token      string
	baseURL    string
	logger     zerolog.Logger
}

func NewClient(token, baseURL string, pollTimeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		pollClient: &http.Client{Timeout: pollTimeout + 10*time.Second},
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// GetUpdates long-polls for updates after offset, including chat_member
// updates which must be requested explicitly.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := url.Values{
		"offset":          {strconv.FormatInt(offset, 10)},
		"timeout":         {strconv.Itoa(int(timeout / time.Second))},
		"allowed_updates": {`["message","callback_query","chat_member"]`},
	}
	var result tgResponse[[]Update]
	if err := c.call(ctx, c.pollClient, "getUpdates", params, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

// SendMessageParams describes one outgoing message. ReplyMarkup may be any
// of the keyboard types.
type SendMessageParams struct {
	ChatID           int64
	Text             string
	ParseMode        string
	ReplyMarkup      any
	ReplyToMessageID int64
}

func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (*Message, error) {
	params := url.Values{
		"chat_id":                  {strconv.FormatInt(p.ChatID, 10)},
		"text":                     {p.Text},
		"disable_web_page_preview": {"true"},
	}
	if p.ParseMode != "" {
		params.Set("parse_mode", p.ParseMode)
	}
	if p.ReplyToMessageID != 0 {
		params.Set("reply_to_message_id", strconv.FormatInt(p.ReplyToMessageID, 10))
		params.Set("allow_sending_without_reply", "true")
	}
	if err := setMarkup(params, p.ReplyMarkup); err != nil {
		return nil, err
	}
	var result tgResponse[Message]
	if err := c.call(ctx, c.httpClient, "sendMessage", params, &result); err != nil {
		return nil, err
	}
	return &result.Result, nil
}

// EditMessageText replaces a message's text and inline keyboard. An
// unchanged message is not an error.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string, markup *InlineKeyboardMarkup) error {
	params := url.Values{
		"chat_id":                  {strconv.FormatInt(chatID, 10)},
		"message_id":               {strconv.FormatInt(messageID, 10)},
		"text":                     {text},
		"disable_web_page_preview": {"true"},
	}
	if parseMode != "" {
		params.Set("parse_mode", parseMode)
	}
	if markup != nil {
		if err := setMarkup(params, markup); err != nil {
			return err
		}
	}
	var result tgResponse[json.RawMessage]
	return ignoreNotModified(c.call(ctx, c.httpClient, "editMessageText", params, &result))
}

func (c *Client) EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup *InlineKeyboardMarkup) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.FormatInt(messageID, 10)},
	}
	if markup == nil {
		markup = &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}}
	}
	if err := setMarkup(params, markup); err != nil {
		return err
	}
	var result tgResponse[json.RawMessage]
	return ignoreNotModified(c.call(ctx, c.httpClient, "editMessageReplyMarkup", params, &result))
}

func (c *Client) PinChatMessage(ctx context.Context, chatID, messageID int64) error {
	params := url.Values{
		"chat_id":              {strconv.FormatInt(chatID, 10)},
		"message_id":           {strconv.FormatInt(messageID, 10)},
		"disable_notification": {"true"},
	}
	var result tgResponse[bool]
	return c.call(ctx, c.httpClient, "pinChatMessage", params, &result)
}

func (c *Client) UnpinChatMessage(ctx context.Context, chatID, messageID int64) error {
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.FormatInt(messageID, 10)},
	}
	var result tgResponse[bool]
	return c.call(ctx, c.httpClient, "unpinChatMessage", params, &result)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID, text string, alert bool) error {
	params := url.Values{"callback_query_id": {queryID}}
	if text != "" {
		params.Set("text", text)
	}
	if alert {
		params.Set("show_alert", "true")
	}
	var result tgResponse[bool]
	return c.call(ctx, c.httpClient, "answerCallbackQuery", params, &result)
}

// SendDocument uploads a local file.
func (c *Client) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("chat_id", strconv.FormatInt(chatID, 10))
	if caption != "" {
		_ = w.WriteField("caption", caption)
		_ = w.WriteField("parse_mode", ParseModeHTML)
	}
	part, err := w.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendDocument"), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	uploader := &http.Client{Timeout: 60 * time.Second}
	var result tgResponse[json.RawMessage]
	if err := c.do(uploader, req, &result); err != nil {
		return apperrors.NewPlatformIOError("sendDocument", err)
	}
	return checkResult("sendDocument", result.Ok, result.ErrorCode, result.Description)
}

func (c *Client) call(ctx context.Context, hc *http.Client, method string, params url.Values, out any) error {
	if err := c.makeRequest(ctx, hc, http.MethodPost, c.endpoint(method), params, out); err != nil {
		c.logger.Debug().Err(err).Str("method", method).Msg("Telegram request failed")
		return apperrors.NewPlatformIOError(method, err)
	}
	ok, code, desc := responseStatus(out)
	return checkResult(method, ok, code, desc)
}

func (c *Client) makeRequest(ctx context.Context, hc *http.Client, method, endpoint string, data url.Values, out any) error {
	var req *http.Request
	var err error
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(data.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		if len(data) > 0 {
			endpoint = endpoint + "?" + data.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return err
		}
	}
	return c.do(hc, req, out)
}

func (c *Client) do(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

// statusOf is implemented by every tgResponse instantiation.
type statusOf interface {
	status() (bool, int, string)
}

func (r *tgResponse[T]) status() (bool, int, string) { return r.Ok, r.ErrorCode, r.Description }

func responseStatus(out any) (bool, int, string) {
	if s, ok := out.(statusOf); ok {
		return s.status()
	}
	return true, 0, ""
}

func checkResult(method string, ok bool, code int, desc string) error {
	if ok {
		return nil
	}
	return apperrors.NewPlatformIOError(method, &APIError{Method: method, Code: code, Description: desc})
}

func ignoreNotModified(err error) error {
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func setMarkup(params url.Values, markup any) error {
	if markup == nil {
		return nil
	}
	if m, ok := markup.(*InlineKeyboardMarkup); ok && m == nil {
		return nil
	}
	raw, err := json.Marshal(markup)
	if err != nil {
		return fmt.Errorf("encode reply markup: %w", err)
	}
	params.Set("reply_markup", string(raw))
	return nil
}
