package factory

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-ID"

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.StandardLogger().WithField("module", module)
}

// LoggerWithContext adds request-scoped fields taken from the echo context.
func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	if ctx == nil {
		return logger
	}

	req := ctx.Request()
	fields := logrus.Fields{
		"method": req.Method,
		"path":   ctx.Path(),
	}
	if requestID := strings.TrimSpace(req.Header.Get(requestIDHeader)); requestID != "" {
		fields["request_id"] = requestID
	} else if requestID := strings.TrimSpace(ctx.Response().Header().Get(echo.HeaderXRequestID)); requestID != "" {
		fields["request_id"] = requestID
	}

	return logger.WithFields(fields)
}
