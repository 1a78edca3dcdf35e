package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/factory"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/service"
	"github.com/vibast-solutions/ms-go-payment-webhooks/app/types"
)

type WebhookController struct {
	webhookService  *service.WebhookService
	notificationURL string
	logger          logrus.FieldLogger
}

// NewWebhookController builds the inbound webhook controller. notificationURL is the
// URL registered with the processor; when empty it is rebuilt from each request.
func NewWebhookController(webhookService *service.WebhookService, notificationURL string) *WebhookController {
	return &WebhookController{
		webhookService:  webhookService,
		notificationURL: notificationURL,
		logger:          factory.NewModuleLogger("webhooks-controller"),
	}
}

func (c *WebhookController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

// HandleWebhook answers the sender with plain-text acknowledgements only.
func (c *WebhookController) HandleWebhook(ctx echo.Context) error {
	l := factory.LoggerWithContext(c.logger, ctx)

	req, err := types.NewWebhookRequestFromContext(ctx, c.notificationURL)
	if err != nil {
		l.WithError(err).Warn("read webhook body failed")
		return ctx.String(http.StatusBadRequest, types.AckInvalidJSON)
	}

	result, err := c.webhookService.HandleWebhook(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			l.WithField("provider", req.GetProvider()).Warn("webhook signature rejected")
			return ctx.String(http.StatusForbidden, types.AckInvalidSignature)
		case errors.Is(err, service.ErrMalformedPayload):
			return ctx.String(http.StatusBadRequest, types.AckInvalidJSON)
		case errors.Is(err, service.ErrProviderUnsupported):
			return ctx.String(http.StatusNotFound, err.Error())
		default:
			l.WithError(err).Error("Handle webhook failed")
			return ctx.String(http.StatusInternalServerError, "internal server error")
		}
	}

	if result.AlreadyProcessed {
		return ctx.String(http.StatusOK, types.AckAlreadyProcessed)
	}
	return ctx.String(http.StatusOK, types.AckOK)
}
