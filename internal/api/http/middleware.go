package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/observability"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// RegisterMiddlewares installs the shared middleware chain.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger, metrics))
}

// errorHandlingMiddleware maps DomainError values to JSON error responses.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		domainErr := apperrors.ToDomainError(err)
		if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("code", domainErr.Code),
				zap.Error(err))
		}
		metrics.RecordError(c.Path(), c.Method(), domainErr.Code)

		body := fiber.Map{
			"error": fiber.Map{
				"code":    domainErr.Code,
				"message": domainErr.Message,
			},
		}
		if len(domainErr.Details) > 0 {
			body["error"].(fiber.Map)["details"] = domainErr.Details
		}
		return c.Status(domainErr.HTTPStatus).JSON(body)
	}
}

// requestTimeoutMiddleware bounds handler execution time.
func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)

		err := c.Next()
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.NewDomainError("REQUEST_TIMEOUT", "request timed out", fiber.StatusGatewayTimeout, nil)
		}
		return err
	}
}
