package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/mapper"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/service"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/types"
)

type AdminController struct {
	adminService  *service.AdminService
	replayService *service.WebhookService
	logger        logrus.FieldLogger
}

func NewAdminController(adminService *service.AdminService, replayService *service.WebhookService) *AdminController {
	return &AdminController{
		adminService:  adminService,
		replayService: replayService,
		logger:        factory.NewModuleLogger("admin-controller"),
	}
}

func (c *AdminController) ListWebhookEvents(ctx echo.Context) error {
	req, err := types.NewListWebhookEventsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.adminService.ListWebhookEvents(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List webhook events failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListWebhookEventsResponse{Events: mapper.WebhookEventsToResponse(items)})
}

func (c *AdminController) ReplayWebhookEvent(ctx echo.Context) error {
	req, err := types.NewReplayWebhookEventRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.replayService.ReplayEvent(ctx.Request().Context(), req.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrMalformedPayload):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrWebhookEventNotFound), errors.Is(err, service.ErrProviderUnsupported):
			return c.writeError(ctx, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrEventAlreadyProcessed), errors.Is(err, service.ErrEventInFlight):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Replay webhook event failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	resp := &types.ReplayWebhookEventResponse{EventID: result.EventID}
	if result.Outcome != nil {
		resp.Status = result.Outcome.Status
		resp.Message = result.Outcome.Message
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *AdminController) ListSyncLogs(ctx echo.Context) error {
	req, err := types.NewListSyncLogsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.adminService.ListSyncLogs(ctx.Request().Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List sync logs failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListSyncLogsResponse{Entries: mapper.SyncLogEntriesToResponse(items)})
}

func (c *AdminController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
