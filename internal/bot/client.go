package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// APIError is a Bot API call that returned ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Token  string
	APIURL string

	// PollTimeout is the long-poll timeout passed to getUpdates.
	PollTimeout time.Duration

	// SendRate bounds outgoing messages per second. Telegram allows about
	// 30 per second per bot.
	SendRate  float64
	SendBurst int

	HTTPClient *http.Client
}

// Client calls the Telegram Bot API.
type Client struct {
	baseURL     string
	httpc       *http.Client
	pollTimeout time.Duration
	limiter     *rate.Limiter
}

// NewClient creates a Bot API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot: token is required")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.PollTimeout < 0 {
		cfg.PollTimeout = 0
	}
	if cfg.SendRate <= 0 {
		cfg.SendRate = 25
	}
	if cfg.SendBurst < 1 {
		cfg.SendBurst = 5
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: cfg.PollTimeout + 10*time.Second}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.APIURL, "/") + "/bot" + cfg.Token,
		httpc:       httpc,
		pollTimeout: cfg.PollTimeout,
		limiter:     rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
	}, nil
}

// call posts payload to method and decodes its result.
func call[T any](ctx context.Context, c *Client, method string, payload any) (T, error) {
	var zero T

	b, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(b))
	if err != nil {
		return zero, fmt.Errorf("telegram %s: %w", method, stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return zero, fmt.Errorf("telegram %s: %w", method, stripURL(err))
	}
	defer resp.Body.Close()

	var out apiResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, fmt.Errorf("telegram %s: %s: decode: %w", method, resp.Status, err)
	}
	if !out.OK {
		apiErr := &APIError{Method: method, Code: out.ErrorCode, Description: out.Description}
		if out.Parameters != nil {
			apiErr.RetryAfter = time.Duration(out.Parameters.RetryAfter) * time.Second
		}
		return zero, apiErr
	}
	return out.Result, nil
}

// stripURL drops the request URL, which embeds the bot token, from
// transport errors.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	u, err := call[User](ctx, c, "getMe", struct{}{})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	return call[[]Update](ctx, c, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(c.pollTimeout / time.Second),
		"allowed_updates": []string{"message"},
	})
}

// SendMessage sends a plain text message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := call[json.RawMessage](ctx, c, "sendMessage", map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	return err
}

// CopyMessage copies a message into chatID without a forward header.
func (c *Client) CopyMessage(ctx context.Context, chatID, fromChatID, msgID int64) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := call[messageID](ctx, c, "copyMessage", map[string]any{
		"chat_id":      chatID,
		"from_chat_id": fromChatID,
		"message_id":   msgID,
	})
	return err
}
