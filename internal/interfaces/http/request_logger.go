package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RequestLogger registra cada petición con su estado y duración.
// Nivel: error en 5xx, warn en 4xx, info en el resto. Va después de requestid.
func RequestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			// el error handler de Fiber aún no escribió la respuesta
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		var ev *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			ev = log.Error().Err(chainErr)
		case status >= fiber.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}
		ev = ev.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int("bytes", len(c.Response().Body()))
		if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
			ev = ev.Str("request_id", id)
		}
		if company := GetCompanyID(c); company != "" {
			ev = ev.Str("company_id", company)
		}
		ev.Msg("HTTP request")
		return nil
	}
}
