package service

import "errors"

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrMalformedPayload      = errors.New("malformed payload")
	ErrProviderUnsupported   = errors.New("provider is not supported")
	ErrWebhookEventNotFound  = errors.New("webhook event not found")
	ErrEventAlreadyProcessed = errors.New("webhook event already processed")
	ErrEventInFlight         = errors.New("webhook event is being processed")
)
