package service

import (
	"context"
	"strings"

	"github.com/vibast-solutions/ms-go-payment-webhooks/app/entity"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/repository"
)

const maxListLimit = int32(500)

type listWebhookEventsRequest interface {
	GetProvider() string
	GetHasProcessed() bool
	GetProcessed() bool
	GetLimit() int32
	GetOffset() int32
}

type listSyncLogsRequest interface {
	GetStatus() string
	GetDirection() string
	GetLimit() int32
	GetOffset() int32
}

type webhookEventLister interface {
	List(ctx context.Context, filter repository.WebhookEventFilter) ([]*entity.WebhookEvent, error)
}

type syncLogLister interface {
	List(ctx context.Context, filter repository.SyncLogFilter) ([]*entity.SyncLogEntry, error)
}

// AdminService backs the internal ledger and audit listing endpoints.
type AdminService struct {
	eventRepo   webhookEventLister
	syncLogRepo syncLogLister
}

func NewAdminService(eventRepo webhookEventLister, syncLogRepo syncLogLister) *AdminService {
	return &AdminService{eventRepo: eventRepo, syncLogRepo: syncLogRepo}
}

func (s *AdminService) ListWebhookEvents(ctx context.Context, req listWebhookEventsRequest) ([]*entity.WebhookEvent, error) {
	limit, offset, err := pageFromRequest(req.GetLimit(), req.GetOffset())
	if err != nil {
		return nil, err
	}

	return s.eventRepo.List(ctx, repository.WebhookEventFilter{
		Provider:     strings.ToLower(strings.TrimSpace(req.GetProvider())),
		HasProcessed: req.GetHasProcessed(),
		Processed:    req.GetProcessed(),
		Limit:        limit,
		Offset:       offset,
	})
}

func (s *AdminService) ListSyncLogs(ctx context.Context, req listSyncLogsRequest) ([]*entity.SyncLogEntry, error) {
	limit, offset, err := pageFromRequest(req.GetLimit(), req.GetOffset())
	if err != nil {
		return nil, err
	}

	status := strings.TrimSpace(req.GetStatus())
	switch status {
	case "", entity.SyncStatusSuccess, entity.SyncStatusFailed, entity.SyncStatusSkipped:
	default:
		return nil, ErrInvalidRequest
	}

	direction := strings.TrimSpace(req.GetDirection())
	switch direction {
	case "", entity.SyncDirectionInbound, entity.SyncDirectionOutbound:
	default:
		return nil, ErrInvalidRequest
	}

	return s.syncLogRepo.List(ctx, repository.SyncLogFilter{
		Status:    status,
		Direction: direction,
		Limit:     limit,
		Offset:    offset,
	})
}

func pageFromRequest(limit, offset int32) (int32, int32, error) {
	if limit < 0 || offset < 0 || limit > maxListLimit {
		return 0, 0, ErrInvalidRequest
	}
	if limit == 0 {
		limit = defaultBatchSize
	}
	return limit, offset, nil
}
