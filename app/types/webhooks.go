package types

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Acknowledgement bodies returned to the webhook sender.
const (
	AckOK               = "OK"
	AckAlreadyProcessed = "Already processed"
	AckInvalidSignature = "Invalid signature"
	AckInvalidJSON      = "Invalid JSON"
)

const maxWebhookBodyBytes = 1 << 20

var ErrBodyTooLarge = errors.New("webhook body too large")

type WebhookRequest struct {
	Provider        string
	NotificationURL string
	Header          http.Header
	Body            []byte
}

// NewWebhookRequestFromContext reads the raw body and resolves the URL the sender signed.
// notificationURL overrides the URL derived from the request when it is set.
func NewWebhookRequestFromContext(ctx echo.Context, notificationURL string) (*WebhookRequest, error) {
	req := ctx.Request()
	body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxWebhookBodyBytes {
		return nil, ErrBodyTooLarge
	}

	notificationURL = strings.TrimSpace(notificationURL)
	if notificationURL == "" {
		notificationURL = RequestURL(req)
	}

	return &WebhookRequest{
		Provider:        strings.ToLower(strings.TrimSpace(ctx.Param("provider"))),
		NotificationURL: notificationURL,
		Header:          req.Header.Clone(),
		Body:            body,
	}, nil
}

// RequestURL rebuilds the absolute URL of req, honoring X-Forwarded-Proto and X-Forwarded-Host.
func RequestURL(req *http.Request) string {
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(req.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = strings.ToLower(proto)
	}

	host := req.Host
	if forwardedHost := firstHeaderValue(req.Header.Get("X-Forwarded-Host")); forwardedHost != "" {
		host = forwardedHost
	}

	return scheme + "://" + host + req.URL.RequestURI()
}

func firstHeaderValue(value string) string {
	if idx := strings.Index(value, ","); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}

func (r *WebhookRequest) GetProvider() string {
	if r == nil {
		return ""
	}
	return r.Provider
}

func (r *WebhookRequest) GetNotificationURL() string {
	if r == nil {
		return ""
	}
	return r.NotificationURL
}

func (r *WebhookRequest) GetHeader(name string) string {
	if r == nil || r.Header == nil {
		return ""
	}
	return strings.TrimSpace(r.Header.Get(name))
}

func (r *WebhookRequest) GetBody() []byte {
	if r == nil {
		return nil
	}
	return r.Body
}
