package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("accounting base url is not configured")

type PaymentRecord struct {
	InvoiceID         string `json:"invoiceId"`
	AmountInCents     int64  `json:"amountInCents"`
	ExternalPaymentID string `json:"externalPaymentId"`
	Description       string `json:"description"`
}

type Config struct {
	BaseURL     string
	APIKey      string
	HTTPTimeout time.Duration
}

type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c.cfg.BaseURL != ""
}

func (c *Client) RecordPayment(ctx context.Context, record PaymentRecord) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(record)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(c.cfg.APIKey); key != "" {
		req.Header.Set("x-api-key", key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("accounting record payment failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
