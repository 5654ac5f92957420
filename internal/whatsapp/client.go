// Package whatsapp wraps the WhatsApp Cloud API endpoints used by the
// conversation engine: outbound sends and webhook signature verification.
package whatsapp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

const (
	defaultBaseURL   = "https://graph.facebook.com/v19.0"
	defaultUserAgent = "taxline-whatsapp-engine/0.1"

	// The Cloud API rejects interactive button messages with more than three buttons.
	MaxReplyButtons = 3
)

// Config controls how the Cloud API client behaves.
type Config struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	AppSecret     string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
	UserAgent     string
}

// Client issues requests against the WhatsApp Cloud API messages endpoint.
type Client struct {
	accessToken   string
	baseURL       string
	phoneNumberID string
	appSecret     string
	httpClient    *http.Client
	logger        *slog.Logger
	userAgent     string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("whatsapp: access token is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, errors.New("whatsapp: phone number id is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		accessToken:   cfg.AccessToken,
		baseURL:       baseURL,
		phoneNumberID: cfg.PhoneNumberID,
		appSecret:     cfg.AppSecret,
		httpClient:    httpClient,
		logger:        logger,
		userAgent:     userAgent,
	}, nil
}

// SendText delivers a plain text message. Returns the provider message ID.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	to = NormalizeDigits(to)
	if to == "" {
		return "", errors.New("whatsapp: destination number required")
	}
	if strings.TrimSpace(body) == "" {
		return "", errors.New("whatsapp: message body required")
	}
	payload := sendEnvelope{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textContent{Body: body},
	}
	return c.send(ctx, payload)
}

// SendTemplate delivers a named message template with structured components.
func (c *Client) SendTemplate(ctx context.Context, to, name, languageCode string, components []TemplateComponent) (string, error) {
	to = NormalizeDigits(to)
	if to == "" {
		return "", errors.New("whatsapp: destination number required")
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.New("whatsapp: template name required")
	}
	if strings.TrimSpace(languageCode) == "" {
		languageCode = "en"
	}
	payload := sendEnvelope{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
		Template: &templateContent{
			Name:       name,
			Language:   templateLanguage{Code: languageCode},
			Components: components,
		},
	}
	return c.send(ctx, payload)
}

// SendList delivers an interactive list message.
func (c *Client) SendList(ctx context.Context, to string, list List) (string, error) {
	to = NormalizeDigits(to)
	if to == "" {
		return "", errors.New("whatsapp: destination number required")
	}
	if err := list.validate(); err != nil {
		return "", err
	}
	payload := sendEnvelope{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive:      list.interactive(),
	}
	return c.send(ctx, payload)
}

// SendButtons delivers an interactive reply-button message.
func (c *Client) SendButtons(ctx context.Context, to string, buttons Buttons) (string, error) {
	to = NormalizeDigits(to)
	if to == "" {
		return "", errors.New("whatsapp: destination number required")
	}
	if err := buttons.validate(); err != nil {
		return "", err
	}
	payload := sendEnvelope{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive:      buttons.interactive(),
	}
	return c.send(ctx, payload)
}

// VerifyWebhookSignature validates the X-Hub-Signature-256 header against the raw body.
func (c *Client) VerifyWebhookSignature(signatureHeader string, payload []byte) error {
	if c.appSecret == "" {
		return errors.New("whatsapp: app secret not configured")
	}
	header := strings.TrimSpace(signatureHeader)
	if header == "" {
		return errors.New("whatsapp: missing signature header")
	}
	actual := strings.ToLower(strings.TrimPrefix(header, "sha256="))
	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(actual)) {
		return errors.New("whatsapp: signature mismatch")
	}
	return nil
}

func (c *Client) send(ctx context.Context, payload sendEnvelope) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("whatsapp: marshal send body: %w", err)
	}
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("whatsapp: http error: %w", err)
	}
	data, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return "", fmt.Errorf("whatsapp: read response: %w", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeAPIError(resp.StatusCode, data)
	}

	var decoded SendResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("whatsapp: decode response: %w", err)
	}
	if len(decoded.Messages) == 0 || decoded.Messages[0].ID == "" {
		return "", errors.New("whatsapp: response missing message id")
	}
	return decoded.Messages[0].ID, nil
}

// NormalizeDigits strips every non-digit rune from a phone number.
func NormalizeDigits(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// APIError is a non-2xx response from the Cloud API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message,omitempty"`
	Type       string `json:"type,omitempty"`
	Code       int    `json:"code,omitempty"`
	Subcode    int    `json:"error_subcode,omitempty"`
	FBTraceID  string `json:"fbtrace_id,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("whatsapp: %s (status=%d code=%d)", e.Message, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("whatsapp: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var wrapper struct {
		Error APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.Error == (APIError{}) {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	parsed := wrapper.Error
	parsed.StatusCode = status
	return &parsed
}
