package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

type ListWebhookEventsRequest struct {
	Provider     string
	HasProcessed bool
	Processed    bool
	Limit        int32
	Offset       int32
}

func NewListWebhookEventsRequestFromContext(ctx echo.Context) (*ListWebhookEventsRequest, error) {
	req := &ListWebhookEventsRequest{
		Provider: strings.ToLower(strings.TrimSpace(ctx.QueryParam("provider"))),
		Limit:    100,
	}

	if processedRaw := strings.TrimSpace(ctx.QueryParam("processed")); processedRaw != "" {
		processed, err := strconv.ParseBool(processedRaw)
		if err != nil {
			return nil, err
		}
		req.HasProcessed = true
		req.Processed = processed
	}

	limit, offset, err := parsePage(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	req.Limit = limit
	req.Offset = offset

	return req, nil
}

func (r *ListWebhookEventsRequest) Validate() error {
	return validatePage(r.Limit, r.Offset)
}

func (r *ListWebhookEventsRequest) GetProvider() string  { return r.Provider }
func (r *ListWebhookEventsRequest) GetHasProcessed() bool { return r.HasProcessed }
func (r *ListWebhookEventsRequest) GetProcessed() bool    { return r.Processed }
func (r *ListWebhookEventsRequest) GetLimit() int32       { return r.Limit }
func (r *ListWebhookEventsRequest) GetOffset() int32      { return r.Offset }

type ReplayWebhookEventRequest struct {
	ID uint64
}

func NewReplayWebhookEventRequestFromContext(ctx echo.Context) (*ReplayWebhookEventRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &ReplayWebhookEventRequest{ID: id}, nil
}

func (r *ReplayWebhookEventRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid webhook event id")
	}
	return nil
}

type ListSyncLogsRequest struct {
	Status    string
	Direction string
	Limit     int32
	Offset    int32
}

func NewListSyncLogsRequestFromContext(ctx echo.Context) (*ListSyncLogsRequest, error) {
	req := &ListSyncLogsRequest{
		Status:    strings.ToLower(strings.TrimSpace(ctx.QueryParam("status"))),
		Direction: strings.ToLower(strings.TrimSpace(ctx.QueryParam("direction"))),
		Limit:     100,
	}

	limit, offset, err := parsePage(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	req.Limit = limit
	req.Offset = offset

	return req, nil
}

func (r *ListSyncLogsRequest) Validate() error {
	switch r.Status {
	case "", "success", "failed", "skipped":
	default:
		return errors.New("status must be success, failed, or skipped")
	}
	switch r.Direction {
	case "", "inbound", "outbound":
	default:
		return errors.New("direction must be inbound or outbound")
	}
	return validatePage(r.Limit, r.Offset)
}

func (r *ListSyncLogsRequest) GetStatus() string    { return r.Status }
func (r *ListSyncLogsRequest) GetDirection() string { return r.Direction }
func (r *ListSyncLogsRequest) GetLimit() int32      { return r.Limit }
func (r *ListSyncLogsRequest) GetOffset() int32     { return r.Offset }

type WebhookEvent struct {
	ID              uint64 `json:"id"`
	Provider        string `json:"provider"`
	ExternalEventID string `json:"external_event_id,omitempty"`
	EventType       string `json:"event_type"`
	Payload         string `json:"payload"`
	IsProcessed     bool   `json:"is_processed"`
	Attempts        int32  `json:"attempts"`
	ErrorMessage    string `json:"error_message,omitempty"`
	ProcessedAt     string `json:"processed_at,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type ListWebhookEventsResponse struct {
	Events []*WebhookEvent `json:"events"`
}

type SyncLogEntry struct {
	ID         uint64 `json:"id"`
	Provider   string `json:"provider"`
	Direction  string `json:"direction"`
	Status     string `json:"status"`
	EntityType string `json:"entity_type"`
	RemoteID   string `json:"remote_id,omitempty"`
	Message    string `json:"message"`
	Payload    string `json:"payload,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type ListSyncLogsResponse struct {
	Entries []*SyncLogEntry `json:"entries"`
}

type ReplayWebhookEventResponse struct {
	EventID uint64 `json:"event_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func parsePage(ctx echo.Context, defaultLimit int32) (int32, int32, error) {
	limit := defaultLimit
	var offset int32

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		parsed, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return 0, 0, err
		}
		limit = int32(parsed)
	}
	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		parsed, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return 0, 0, err
		}
		offset = int32(parsed)
	}

	return limit, offset, nil
}

func validatePage(limit, offset int32) error {
	if limit <= 0 || limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}
