package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const ReceiptRoutingKey = "notification.email.payment_receipt"

var ErrMissingRecipient = errors.New("notification recipient is required")

type Message struct {
	To           string                 `json:"to"`
	Subject      string                 `json:"subject"`
	TemplateData map[string]interface{} `json:"templateData"`
}

// AMQPSender publishes notification requests to a durable topic exchange.
type AMQPSender struct {
	mu       sync.Mutex
	url      string
	dial     func(url string) (*amqp.Connection, error)
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   logrus.FieldLogger
}

func NewAMQPSender(amqpURL, exchange string, logger logrus.FieldLogger) (*AMQPSender, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	sender := &AMQPSender{url: cleanURL, dial: dialAMQP, exchange: exchange, logger: logger}
	if err := sender.reconnect(); err != nil {
		sender.Close()
		return nil, err
	}
	return sender, nil
}

func (s *AMQPSender) Send(ctx context.Context, message Message) error {
	if strings.TrimSpace(message.To) == "" {
		return ErrMissingRecipient
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if s.channel == nil {
		if err := s.reconnect(); err != nil {
			return err
		}
		return s.channel.PublishWithContext(ctx, s.exchange, ReceiptRoutingKey, false, false, publishing)
	}

	err = s.channel.PublishWithContext(ctx, s.exchange, ReceiptRoutingKey, false, false, publishing)
	if err == nil {
		return nil
	}

	s.logger.WithError(err).WithField("exchange", s.exchange).Warn("publish failed, reconnecting")
	if reErr := s.reconnect(); reErr != nil {
		return reErr
	}

	return s.channel.PublishWithContext(ctx, s.exchange, ReceiptRoutingKey, false, false, publishing)
}

// reconnect opens a fresh channel, redialing first when the connection is gone.
// On failure the channel is left nil so the next Send tries again.
func (s *AMQPSender) reconnect() error {
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}

	if s.conn == nil || s.conn.IsClosed() {
		dial := s.dial
		if dial == nil {
			dial = dialAMQP
		}
		conn, err := dial(s.url)
		if err != nil {
			return err
		}
		s.conn = conn
	}

	ch, err := s.conn.Channel()
	if err != nil {
		return err
	}
	if err := declareExchange(ch, s.exchange); err != nil {
		_ = ch.Close()
		return err
	}
	s.channel = ch
	return nil
}

func (s *AMQPSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func dialAMQP(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
