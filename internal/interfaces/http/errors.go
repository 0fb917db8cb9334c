package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
)

// errorMapping código HTTP y código de negocio por error de dominio, en orden de prioridad.
var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrInvalidTransition, fiber.StatusConflict, "INVALID_TRANSITION"},
	{domain.ErrConcurrency, fiber.StatusConflict, "CONCURRENT_OPERATION"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrConfiguration, fiber.StatusUnprocessableEntity, "BILLING_NOT_CONFIGURED"},
	{domain.ErrRejected, fiber.StatusUnprocessableEntity, "REJECTED"},
	{domain.ErrGeneration, fiber.StatusBadGateway, "GENERATION_FAILED"},
	{domain.ErrTransport, fiber.StatusBadGateway, "SUNAT_UNAVAILABLE"},
}

// writeError traduce un error de los casos de uso a la respuesta HTTP.
// El mensaje conserva el detalle envuelto para que el usuario vea la causa.
func writeError(c *fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "INTERNAL"
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			status, code = m.status, m.code
			break
		}
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Code:      code,
		Message:   err.Error(),
		RequestID: c.GetRespHeader(fiber.HeaderXRequestID),
	})
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: code, Message: message})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}
