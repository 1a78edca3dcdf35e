package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/types"
)

func WebhookEventToResponse(item *entity.WebhookEvent) *types.WebhookEvent {
	if item == nil {
		return nil
	}

	return &types.WebhookEvent{
		ID:              item.ID,
		Provider:        item.Provider,
		ExternalEventID: derefString(item.ExternalEventID),
		EventType:       item.EventType,
		Payload:         item.Payload,
		IsProcessed:     item.IsProcessed,
		Attempts:        item.Attempts,
		ErrorMessage:    derefString(item.ErrorMessage),
		ProcessedAt:     formatOptionalTime(item.ProcessedAt),
		CreatedAt:       item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func WebhookEventsToResponse(items []*entity.WebhookEvent) []*types.WebhookEvent {
	result := make([]*types.WebhookEvent, 0, len(items))
	for _, item := range items {
		result = append(result, WebhookEventToResponse(item))
	}
	return result
}

func SyncLogEntryToResponse(item *entity.SyncLogEntry) *types.SyncLogEntry {
	if item == nil {
		return nil
	}

	return &types.SyncLogEntry{
		ID:         item.ID,
		Provider:   item.Provider,
		Direction:  item.Direction,
		Status:     item.Status,
		EntityType: item.EntityType,
		RemoteID:   derefString(item.RemoteID),
		Message:    item.Message,
		Payload:    derefString(item.Payload),
		CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func SyncLogEntriesToResponse(items []*entity.SyncLogEntry) []*types.SyncLogEntry {
	result := make([]*types.SyncLogEntry, 0, len(items))
	for _, item := range items {
		result = append(result, SyncLogEntryToResponse(item))
	}
	return result
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatOptionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
