package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
)

type AuditLogger struct {
	syncLogs syncLogWriter
	logger   logrus.FieldLogger
}

func NewAuditLogger(syncLogs syncLogWriter) *AuditLogger {
	return &AuditLogger{
		syncLogs: syncLogs,
		logger:   factory.NewModuleLogger("webhooks-audit"),
	}
}

// RecordInbound writes the single inbound audit row for a dispatched delivery.
// Write failures are logged and swallowed.
func (a *AuditLogger) RecordInbound(ctx context.Context, providerCode, eventType string, outcome *Outcome) {
	if outcome == nil {
		return
	}

	entry := &entity.SyncLogEntry{
		Provider:   providerCode,
		Direction:  entity.SyncDirectionInbound,
		Status:     outcome.Status,
		EntityType: auditEntityType(eventType),
		RemoteID:   outcome.RemoteID,
		Message:    truncate(outcome.Message, 1024),
		CreatedAt:  time.Now().UTC(),
	}
	if len(outcome.Snapshot) > 0 {
		if body, err := json.Marshal(outcome.Snapshot); err == nil {
			payload := string(body)
			entry.Payload = &payload
		}
	}

	if err := a.syncLogs.Create(ctx, entry); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"status":     outcome.Status,
		}).Error("inbound sync log write failed")
	}
}

func auditEntityType(eventType string) string {
	if strings.HasPrefix(strings.TrimSpace(eventType), "refund") {
		return "refund"
	}
	return "payment"
}
