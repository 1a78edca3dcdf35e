package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/types"
)

func TestAdminListWebhookEvents(t *testing.T) {
	events := newFakeWebhookEventRepo()
	now := time.Now().UTC()
	first, _ := events.Claim(context.Background(), &entity.WebhookEvent{Provider: "square", ExternalEventID: strPtr("evt-1"), EventType: "payment.completed"}, time.Minute, now)
	_, _ = events.Claim(context.Background(), &entity.WebhookEvent{Provider: "square", ExternalEventID: strPtr("evt-2"), EventType: "refund.created"}, time.Minute, now)
	_ = events.MarkProcessed(context.Background(), first.Event.ID, now)

	svc := NewAdminService(events, &fakeSyncLogRepo{})

	all, err := svc.ListWebhookEvents(context.Background(), &types.ListWebhookEventsRequest{Provider: "SQUARE"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two events, got %d", len(all))
	}

	pending, err := svc.ListWebhookEvents(context.Background(), &types.ListWebhookEventsRequest{HasProcessed: true, Processed: false})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(pending) != 1 || pending[0].IsProcessed {
		t.Fatalf("expected one unprocessed event, got %+v", pending)
	}
}

func TestAdminListSyncLogs(t *testing.T) {
	logs := &fakeSyncLogRepo{}
	_ = logs.Create(context.Background(), &entity.SyncLogEntry{Provider: "square", Direction: entity.SyncDirectionInbound, Status: entity.SyncStatusSkipped})
	_ = logs.Create(context.Background(), &entity.SyncLogEntry{Provider: "accounting", Direction: entity.SyncDirectionOutbound, Status: entity.SyncStatusSuccess})

	svc := NewAdminService(newFakeWebhookEventRepo(), logs)

	entries, err := svc.ListSyncLogs(context.Background(), &types.ListSyncLogsRequest{Status: entity.SyncStatusSkipped})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 1 || entries[0].Provider != "square" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	entries, err = svc.ListSyncLogs(context.Background(), &types.ListSyncLogsRequest{Direction: entity.SyncDirectionOutbound})
	if err != nil || len(entries) != 1 || entries[0].Provider != "accounting" {
		t.Fatalf("unexpected outbound entries: %+v err=%v", entries, err)
	}
}

func TestAdminListValidation(t *testing.T) {
	svc := NewAdminService(newFakeWebhookEventRepo(), &fakeSyncLogRepo{})

	if _, err := svc.ListSyncLogs(context.Background(), &types.ListSyncLogsRequest{Status: "pending"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for status, got %v", err)
	}
	if _, err := svc.ListSyncLogs(context.Background(), &types.ListSyncLogsRequest{Direction: "sideways"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for direction, got %v", err)
	}
	if _, err := svc.ListWebhookEvents(context.Background(), &types.ListWebhookEventsRequest{Limit: maxListLimit + 1}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for limit, got %v", err)
	}
	if _, err := svc.ListWebhookEvents(context.Background(), &types.ListWebhookEventsRequest{Offset: -1}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for offset, got %v", err)
	}
}

func TestPageFromRequestDefaultsLimit(t *testing.T) {
	limit, offset, err := pageFromRequest(0, 20)
	if err != nil || limit != defaultBatchSize || offset != 20 {
		t.Fatalf("unexpected page: limit=%d offset=%d err=%v", limit, offset, err)
	}
}
