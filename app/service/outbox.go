package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/accounting"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/notifier"
	"github.com/vibast-solutions/ms-go-payment-webhooks/config"
)

const (
	defaultBatchSize     = int32(100)
	defaultDispatchLease = 5 * time.Minute
)

type outboxRepository interface {
	Create(ctx context.Context, message *entity.OutboxMessage) error
	Update(ctx context.Context, message *entity.OutboxMessage) error
	ClaimDue(ctx context.Context, now time.Time, limit int32, lease time.Duration) ([]*entity.OutboxMessage, error)
}

type syncLogWriter interface {
	Create(ctx context.Context, entry *entity.SyncLogEntry) error
}

type notificationSender interface {
	Send(ctx context.Context, message notifier.Message) error
}

type accountingRecorder interface {
	RecordPayment(ctx context.Context, record accounting.PaymentRecord) error
}

// OutboxService records side effects as pending rows and later delivers them.
type OutboxService struct {
	outboxRepo outboxRepository
	syncLogs   syncLogWriter
	sender     notificationSender
	accounting accountingRecorder
	cfg        config.OutboxConfig
	logger     logrus.FieldLogger
}

// NewOutboxService builds the outbox. sender and recorder may be nil; side effects
// for a missing collaborator are then not enqueued.
func NewOutboxService(
	outboxRepo outboxRepository,
	syncLogs syncLogWriter,
	sender notificationSender,
	recorder accountingRecorder,
	cfg config.OutboxConfig,
) *OutboxService {
	return &OutboxService{
		outboxRepo: outboxRepo,
		syncLogs:   syncLogs,
		sender:     sender,
		accounting: recorder,
		cfg:        cfg,
		logger:     factory.NewModuleLogger("outbox"),
	}
}

func (s *OutboxService) NotificationsEnabled() bool {
	return s.sender != nil
}

func (s *OutboxService) AccountingEnabled() bool {
	return s.accounting != nil
}

// EnqueueNotification never fails the caller; enqueue errors are logged.
func (s *OutboxService) EnqueueNotification(ctx context.Context, message notifier.Message) {
	if !s.NotificationsEnabled() {
		return
	}
	s.enqueue(ctx, entity.OutboxKindNotification, message)
}

// EnqueueAccountingRecord never fails the caller; enqueue errors are logged.
func (s *OutboxService) EnqueueAccountingRecord(ctx context.Context, record accounting.PaymentRecord) {
	if !s.AccountingEnabled() {
		return
	}
	s.enqueue(ctx, entity.OutboxKindAccounting, record)
}

func (s *OutboxService) enqueue(ctx context.Context, kind string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("kind", kind).Error("outbox payload encode failed")
		return
	}

	now := time.Now().UTC()
	message := &entity.OutboxMessage{
		Kind:          kind,
		PayloadJSON:   string(body),
		Status:        entity.OutboxStatusPending,
		NextAttemptAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.outboxRepo.Create(ctx, message); err != nil {
		s.logger.WithError(err).WithField("kind", kind).Error("outbox enqueue failed")
	}
}

func (s *OutboxService) RunDispatchBatch(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := s.outboxRepo.ClaimDue(ctx, now, s.batchSize(), s.dispatchLease())
	if err != nil {
		return err
	}

	var firstErr error
	for _, message := range items {
		if message == nil {
			continue
		}
		if err := s.dispatch(ctx, message, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func (s *OutboxService) dispatch(ctx context.Context, message *entity.OutboxMessage, now time.Time) error {
	entityType, remoteID, deliverErr := s.deliver(ctx, message)
	if deliverErr != nil {
		return s.recordDeliveryFailure(ctx, message, now, entityType, remoteID, deliverErr)
	}

	message.Attempts++
	message.Status = entity.OutboxStatusDelivered
	message.NextAttemptAt = nil
	message.LastError = nil
	message.UpdatedAt = now

	if err := s.outboxRepo.Update(ctx, message); err != nil {
		return err
	}

	s.writeOutboundLog(ctx, message.Kind, entity.SyncStatusSuccess, entityType, remoteID,
		fmt.Sprintf("Outbox message %d (%s) delivered", message.ID, message.Kind), now)
	return nil
}

func (s *OutboxService) deliver(ctx context.Context, message *entity.OutboxMessage) (string, string, error) {
	switch message.Kind {
	case entity.OutboxKindNotification:
		var payload notifier.Message
		if err := json.Unmarshal([]byte(message.PayloadJSON), &payload); err != nil {
			return "notification", "", err
		}
		if s.sender == nil {
			return "notification", payload.To, errors.New("notification sender is not configured")
		}
		return "notification", payload.To, s.sender.Send(ctx, payload)
	case entity.OutboxKindAccounting:
		var payload accounting.PaymentRecord
		if err := json.Unmarshal([]byte(message.PayloadJSON), &payload); err != nil {
			return "accounting_payment", "", err
		}
		if s.accounting == nil {
			return "accounting_payment", payload.InvoiceID, errors.New("accounting client is not configured")
		}
		return "accounting_payment", payload.InvoiceID, s.accounting.RecordPayment(ctx, payload)
	default:
		return message.Kind, "", fmt.Errorf("unknown outbox kind %q", message.Kind)
	}
}

func (s *OutboxService) recordDeliveryFailure(
	ctx context.Context,
	message *entity.OutboxMessage,
	now time.Time,
	entityType string,
	remoteID string,
	deliverErr error,
) error {
	message.Attempts++
	trimmed := truncate(deliverErr.Error(), 1024)
	message.LastError = &trimmed

	maxAttempts := s.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	if message.Attempts >= maxAttempts {
		message.Status = entity.OutboxStatusFailed
		message.NextAttemptAt = nil
	} else {
		retryInterval := s.cfg.RetryInterval
		if retryInterval <= 0 {
			retryInterval = 5 * time.Minute
		}
		next := now.Add(retryInterval)
		message.Status = entity.OutboxStatusPending
		message.NextAttemptAt = &next
	}
	message.UpdatedAt = now

	if err := s.outboxRepo.Update(ctx, message); err != nil {
		return err
	}

	s.writeOutboundLog(ctx, message.Kind, entity.SyncStatusFailed, entityType, remoteID,
		fmt.Sprintf("Outbox message %d (%s) attempt %d failed: %s", message.ID, message.Kind, message.Attempts, trimmed), now)
	return deliverErr
}

func (s *OutboxService) writeOutboundLog(ctx context.Context, kind, status, entityType, remoteID, message string, now time.Time) {
	err := s.syncLogs.Create(ctx, &entity.SyncLogEntry{
		Provider:   outboundProvider(kind),
		Direction:  entity.SyncDirectionOutbound,
		Status:     status,
		EntityType: entityType,
		RemoteID:   optionalString(remoteID),
		Message:    message,
		CreatedAt:  now,
	})
	if err != nil {
		s.logger.WithError(err).Warn("outbound sync log write failed")
	}
}

func outboundProvider(kind string) string {
	switch kind {
	case entity.OutboxKindNotification:
		return "notifications"
	case entity.OutboxKindAccounting:
		return "accounting"
	default:
		return kind
	}
}

func (s *OutboxService) batchSize() int32 {
	if s.cfg.BatchSize <= 0 {
		return defaultBatchSize
	}
	return s.cfg.BatchSize
}

func (s *OutboxService) dispatchLease() time.Duration {
	if s.cfg.DispatchLease <= 0 {
		return defaultDispatchLease
	}
	return s.cfg.DispatchLease
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
