// Package messaging delivers outbound chat messages through the messaging platform's send API.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/shopchat-core/pkg/errors"
)

const (
	defaultBaseURL              = "https://graph.facebook.com/v19.0"
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024

	messagingTypeResponse = "RESPONSE"
	messagingTypeTag      = "MESSAGE_TAG"

	// TagPostPurchaseUpdate allows order updates outside the customer-initiated window.
	TagPostPurchaseUpdate = "POST_PURCHASE_UPDATE"
)

// Sender is the outbound surface used by the assistant and notifications.
type Sender interface {
	SendText(ctx context.Context, recipientID, text string) error
	SendTaggedMessage(ctx context.Context, recipientID, text, tag string) error
}

// Client posts messages to the platform send API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the send API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// NewClient builds a send API client with the page access token.
func NewClient(accessToken string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(accessToken)
	if trimmed == "" {
		return nil, errors.New("messaging access token is required")
	}
	client := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     defaultBaseURL,
		accessToken: trimmed,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type sendRequest struct {
	Recipient     recipient `json:"recipient"`
	Message       message   `json:"message"`
	MessagingType string    `json:"messaging_type"`
	Tag           string    `json:"tag,omitempty"`
}

type recipient struct {
	ID string `json:"id"`
}

type message struct {
	Text string `json:"text"`
}

// SendText replies inside the standard messaging window.
func (c *Client) SendText(ctx context.Context, recipientID, text string) error {
	return c.send(ctx, sendRequest{
		Recipient:     recipient{ID: recipientID},
		Message:       message{Text: text},
		MessagingType: messagingTypeResponse,
	})
}

// SendTaggedMessage sends text tagged for delivery outside the messaging window.
func (c *Client) SendTaggedMessage(ctx context.Context, recipientID, text, tag string) error {
	if strings.TrimSpace(tag) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message tag is required")
	}
	return c.send(ctx, sendRequest{
		Recipient:     recipient{ID: recipientID},
		Message:       message{Text: text},
		MessagingType: messagingTypeTag,
		Tag:           tag,
	})
}

func (c *Client) send(ctx context.Context, req sendRequest) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "messaging client not configured")
	}
	if strings.TrimSpace(req.Recipient.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient id is required")
	}
	if strings.TrimSpace(req.Message.Text) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message text is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal send request")
	}

	endpoint := fmt.Sprintf("%s/me/messages?access_token=%s", c.baseURL, url.QueryEscape(c.accessToken))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build send request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute send request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		code := pkgerrors.CodeDependency
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			code = pkgerrors.CodeValidation
		}
		return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "send request failed")
	}
	return nil
}
