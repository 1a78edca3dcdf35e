package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/provider"
)

type EventType string

const (
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentUpdated   EventType = "payment.updated"
	EventPaymentFailed    EventType = "payment.failed"
	EventRefundCreated    EventType = "refund.created"
	EventRefundUpdated    EventType = "refund.updated"
)

// EventTypes lists every event type the router recognizes.
var EventTypes = []EventType{
	EventPaymentCompleted,
	EventPaymentUpdated,
	EventPaymentFailed,
	EventRefundCreated,
	EventRefundUpdated,
}

// Outcome is the result of routing one event. It becomes the inbound audit row.
type Outcome struct {
	Status   string
	Message  string
	RemoteID *string
	Snapshot map[string]interface{}
}

func successOutcome(remoteID string, format string, args ...interface{}) *Outcome {
	return &Outcome{Status: entity.SyncStatusSuccess, Message: fmt.Sprintf(format, args...), RemoteID: optionalString(remoteID)}
}

func skippedOutcome(remoteID string, format string, args ...interface{}) *Outcome {
	return &Outcome{Status: entity.SyncStatusSkipped, Message: fmt.Sprintf(format, args...), RemoteID: optionalString(remoteID)}
}

type eventHandler func(ctx context.Context, event *provider.Event) (*Outcome, error)

type paymentEventHandlers interface {
	HandlePaymentCompleted(ctx context.Context, event *provider.Event) (*Outcome, error)
	HandlePaymentUpdated(ctx context.Context, event *provider.Event) (*Outcome, error)
	HandlePaymentFailed(ctx context.Context, event *provider.Event) (*Outcome, error)
	HandleRefund(ctx context.Context, event *provider.Event) (*Outcome, error)
}

type Router struct {
	handlers map[EventType]eventHandler
	logger   logrus.FieldLogger
}

func NewRouter(payments paymentEventHandlers) *Router {
	return &Router{
		handlers: map[EventType]eventHandler{
			EventPaymentCompleted: payments.HandlePaymentCompleted,
			EventPaymentUpdated:   payments.HandlePaymentUpdated,
			EventPaymentFailed:    payments.HandlePaymentFailed,
			EventRefundCreated:    payments.HandleRefund,
			EventRefundUpdated:    payments.HandleRefund,
		},
		logger: factory.NewModuleLogger("webhooks-router"),
	}
}

// Dispatch runs the handler for the event type. A non-nil error is a handler fault;
// the returned outcome is then a failed outcome carrying the fault message.
func (r *Router) Dispatch(ctx context.Context, event *provider.Event) (outcome *Outcome, fault error) {
	handler, ok := r.handlers[EventType(strings.TrimSpace(event.Type))]
	if !ok {
		return skippedOutcome("", "Event type %s not handled", event.Type), nil
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.WithFields(logrus.Fields{
				"event_type": event.Type,
				"panic":      recovered,
				"stack":      string(debug.Stack()),
			}).Error("webhook handler panic")
			fault = fmt.Errorf("handler panic: %v", recovered)
			outcome = &Outcome{Status: entity.SyncStatusFailed, Message: fault.Error()}
		}
	}()

	if event.DecodeErr != nil {
		return &Outcome{Status: entity.SyncStatusFailed, Message: event.DecodeErr.Error()}, event.DecodeErr
	}

	outcome, err := handler(ctx, event)
	if err != nil {
		return &Outcome{Status: entity.SyncStatusFailed, Message: err.Error()}, err
	}
	if outcome == nil {
		outcome = successOutcome("", "Event %s processed", event.Type)
	}
	return outcome, nil
}

func (r *Router) Handles(eventType EventType) bool {
	_, ok := r.handlers[eventType]
	return ok
}
