package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/provider"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/repository"
	"github.com/vibast-solutions/ms-go-payment-webhooks/config"
)

const defaultProcessingLease = 2 * time.Minute

type handleWebhookRequest interface {
	GetProvider() string
	GetNotificationURL() string
	GetHeader(name string) string
	GetBody() []byte
}

type webhookEventRepository interface {
	Claim(ctx context.Context, event *entity.WebhookEvent, lease time.Duration, now time.Time) (*repository.ClaimResult, error)
	ClaimByID(ctx context.Context, id uint64, lease time.Duration, now time.Time) (*repository.ClaimResult, error)
	MarkProcessed(ctx context.Context, id uint64, now time.Time) error
	MarkFailed(ctx context.Context, id uint64, message string, now time.Time) error
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, event *provider.Event) (*Outcome, error)
}

type inboundAuditor interface {
	RecordInbound(ctx context.Context, providerCode, eventType string, outcome *Outcome)
}

type WebhookResult struct {
	AlreadyProcessed bool
	EventID          uint64
	Outcome          *Outcome
	// Fault is the handler error recorded on the ledger row, if any.
	Fault error
}

// WebhookService runs one delivery through verify, parse, claim, dispatch and audit.
type WebhookService struct {
	providerReg *provider.Registry
	eventRepo   webhookEventRepository
	router      eventDispatcher
	audit       inboundAuditor
	lease       time.Duration
	logger      logrus.FieldLogger
}

func NewWebhookService(
	providerReg *provider.Registry,
	eventRepo webhookEventRepository,
	router eventDispatcher,
	audit inboundAuditor,
	webhooksCfg config.WebhooksConfig,
) *WebhookService {
	lease := webhooksCfg.ProcessingLease
	if lease <= 0 {
		lease = defaultProcessingLease
	}

	return &WebhookService{
		providerReg: providerReg,
		eventRepo:   eventRepo,
		router:      router,
		audit:       audit,
		lease:       lease,
		logger:      factory.NewModuleLogger("webhooks-service"),
	}
}

func (s *WebhookService) HandleWebhook(ctx context.Context, req handleWebhookRequest) (*WebhookResult, error) {
	providerClient, err := s.providerReg.Get(req.GetProvider())
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}

	body := req.GetBody()
	signature := req.GetHeader(providerClient.SignatureHeader())
	if err := providerClient.VerifySignature(req.GetNotificationURL(), body, signature); err != nil {
		return nil, ErrInvalidSignature
	}

	parsed, err := providerClient.ParseEvent(body)
	if err != nil {
		return nil, ErrMalformedPayload
	}

	now := time.Now().UTC()
	claim, err := s.eventRepo.Claim(ctx, &entity.WebhookEvent{
		Provider:        providerClient.Code(),
		ExternalEventID: parsed.ID,
		EventType:       parsed.Type,
		Payload:         string(body),
	}, s.lease, now)
	if err != nil {
		return nil, fmt.Errorf("claim webhook event: %w", err)
	}

	l := s.logger.WithFields(logrus.Fields{
		"provider":   providerClient.Code(),
		"event_type": parsed.Type,
		"event_id":   trimmedValue(parsed.ID),
	})

	switch claim.Outcome {
	case repository.ClaimAlreadyProcessed, repository.ClaimInFlight:
		l.WithField("claim", claimLabel(claim.Outcome)).Info("duplicate webhook delivery")
		result := &WebhookResult{AlreadyProcessed: true}
		if claim.Event != nil {
			result.EventID = claim.Event.ID
		}
		return result, nil
	}

	return s.dispatch(ctx, providerClient.Code(), claim.Event, parsed, l), nil
}

// ReplayEvent re-dispatches a stored, unprocessed event from its verbatim payload.
func (s *WebhookService) ReplayEvent(ctx context.Context, id uint64) (*WebhookResult, error) {
	if id == 0 {
		return nil, ErrInvalidRequest
	}

	now := time.Now().UTC()
	claim, err := s.eventRepo.ClaimByID(ctx, id, s.lease, now)
	if err != nil {
		if errors.Is(err, repository.ErrWebhookEventNotFound) {
			return nil, ErrWebhookEventNotFound
		}
		return nil, err
	}
	switch claim.Outcome {
	case repository.ClaimAlreadyProcessed:
		return nil, ErrEventAlreadyProcessed
	case repository.ClaimInFlight:
		return nil, ErrEventInFlight
	}

	stored := claim.Event
	l := s.logger.WithFields(logrus.Fields{
		"provider":         stored.Provider,
		"event_type":       stored.EventType,
		"webhook_event_id": stored.ID,
		"replay":           true,
	})

	providerClient, err := s.providerReg.Get(stored.Provider)
	if err != nil {
		s.markFailed(ctx, stored.ID, err.Error(), l)
		return nil, ErrProviderUnsupported
	}

	parsed, err := providerClient.ParseEvent([]byte(stored.Payload))
	if err != nil {
		s.markFailed(ctx, stored.ID, err.Error(), l)
		return nil, ErrMalformedPayload
	}

	return s.dispatch(ctx, providerClient.Code(), stored, parsed, l), nil
}

func (s *WebhookService) dispatch(
	ctx context.Context,
	providerCode string,
	stored *entity.WebhookEvent,
	parsed *provider.Event,
	l logrus.FieldLogger,
) *WebhookResult {
	outcome, fault := s.router.Dispatch(ctx, parsed)

	if fault != nil {
		l.WithError(fault).Error("webhook handler fault")
		s.markFailed(ctx, stored.ID, fault.Error(), l)
	} else if err := s.eventRepo.MarkProcessed(ctx, stored.ID, time.Now().UTC()); err != nil {
		l.WithError(err).Error("mark webhook event processed failed")
	}

	s.audit.RecordInbound(ctx, providerCode, parsed.Type, outcome)

	l.WithFields(logrus.Fields{
		"status":           outcome.Status,
		"webhook_event_id": stored.ID,
	}).Info(outcome.Message)

	return &WebhookResult{EventID: stored.ID, Outcome: outcome, Fault: fault}
}

func (s *WebhookService) markFailed(ctx context.Context, id uint64, message string, l logrus.FieldLogger) {
	if err := s.eventRepo.MarkFailed(ctx, id, truncate(strings.TrimSpace(message), 1024), time.Now().UTC()); err != nil {
		l.WithError(err).Error("record webhook event fault failed")
	}
}

func claimLabel(outcome repository.ClaimOutcome) string {
	switch outcome {
	case repository.ClaimAlreadyProcessed:
		return "already_processed"
	case repository.ClaimInFlight:
		return "in_flight"
	default:
		return "acquired"
	}
}
