package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	SquareCode            = "square"
	SquareSignatureHeader = "x-square-hmacsha256-signature"
)

type SquareConfig struct {
	WebhookSignatureKey string
	AccessToken         string
	APIBaseURL          string
	APIVersion          string
	HTTPTimeout         time.Duration
}

type SquareProvider struct {
	cfg    SquareConfig
	client *http.Client
}

func NewSquareProvider(cfg SquareConfig) *SquareProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://connect.squareup.com"
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")

	return &SquareProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *SquareProvider) Code() string {
	return SquareCode
}

func (p *SquareProvider) SignatureHeader() string {
	return SquareSignatureHeader
}

// SignatureRequired is false when no signature key is configured; deliveries are then accepted unsigned.
func (p *SquareProvider) SignatureRequired() bool {
	return strings.TrimSpace(p.cfg.WebhookSignatureKey) != ""
}

func (p *SquareProvider) VerifySignature(notificationURL string, body []byte, signature string) error {
	if !p.SignatureRequired() {
		return nil
	}
	if !verifyHMACSignature(p.cfg.WebhookSignatureKey, notificationURL, body, signature) {
		return ErrInvalidSignature
	}
	return nil
}

type squareMoney struct {
	Amount int64 `json:"amount"`
}

type squareTender struct {
	Type string `json:"type"`
}

type squarePayment struct {
	ID          string         `json:"id"`
	OrderID     string         `json:"order_id"`
	ReceiptURL  string         `json:"receipt_url"`
	Note        string         `json:"note"`
	AmountMoney *squareMoney   `json:"amount_money"`
	TipMoney    *squareMoney   `json:"tip_money"`
	Tenders     []squareTender `json:"tenders"`
}

type squareRefund struct {
	ID          string       `json:"id"`
	PaymentID   string       `json:"payment_id"`
	Status      string       `json:"status"`
	AmountMoney *squareMoney `json:"amount_money"`
}

type squareEnvelope struct {
	EventID json.RawMessage `json:"event_id"`
	Type    json.RawMessage `json:"type"`
	Data    json.RawMessage `json:"data"`
}

type squareEventData struct {
	Object *struct {
		Payment *squarePayment `json:"payment"`
		Refund  *squareRefund  `json:"refund"`
	} `json:"object"`
}

// ParseEvent fails only for bodies that are not JSON at all. A readable envelope
// whose data does not match the expected shape is returned with DecodeErr set.
func (p *SquareProvider) ParseEvent(body []byte) (*Event, error) {
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedEvent)
	}

	event := &Event{}
	var envelope squareEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		event.DecodeErr = fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		return event, nil
	}

	event.Type = lenientString(envelope.Type)
	if id := lenientString(envelope.EventID); id != "" {
		event.ID = &id
	}
	if isJSONNull(envelope.Data) {
		return event, nil
	}

	var data squareEventData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		event.DecodeErr = fmt.Errorf("%w: data: %v", ErrMalformedEvent, err)
		return event, nil
	}
	if data.Object == nil {
		return event, nil
	}

	if payment := data.Object.Payment; payment != nil {
		paymentData := &PaymentData{
			ID:            strings.TrimSpace(payment.ID),
			OrderID:       optionalString(payment.OrderID),
			ReceiptURL:    optionalString(payment.ReceiptURL),
			Note:          payment.Note,
			AmountInCents: moneyAmount(payment.AmountMoney),
			TipInCents:    moneyAmount(payment.TipMoney),
		}
		if len(payment.Tenders) > 0 {
			paymentData.HasTenders = true
			paymentData.TenderType = payment.Tenders[0].Type
		}
		event.Payment = paymentData
	}

	if refund := data.Object.Refund; refund != nil {
		event.Refund = &RefundData{
			ID:            strings.TrimSpace(refund.ID),
			PaymentID:     strings.TrimSpace(refund.PaymentID),
			Status:        refund.Status,
			AmountInCents: moneyAmount(refund.AmountMoney),
		}
	}

	return event, nil
}

// lenientString reads a JSON string, or the literal text of a JSON number.
// Any other value reads as empty.
func lenientString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch {
	case raw[0] == '"':
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return ""
		}
		return strings.TrimSpace(value)
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		return string(raw)
	default:
		return ""
	}
}

func isJSONNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func (p *SquareProvider) OrderLookupEnabled() bool {
	return strings.TrimSpace(p.cfg.AccessToken) != ""
}

func (p *SquareProvider) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrOrderNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIBaseURL+"/v2/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if version := strings.TrimSpace(p.cfg.APIVersion); version != "" {
		req.Header.Set("Square-Version", version)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrOrderNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("square get order failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payload struct {
		Order *struct {
			ID          string `json:"id"`
			ReferenceID string `json:"reference_id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Order == nil {
		return nil, ErrOrderNotFound
	}

	return &Order{
		ID:          strings.TrimSpace(payload.Order.ID),
		ReferenceID: strings.TrimSpace(payload.Order.ReferenceID),
	}, nil
}

func moneyAmount(m *squareMoney) int64 {
	if m == nil {
		return 0
	}
	return m.Amount
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
