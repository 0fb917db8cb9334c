package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
)

// companyReader lo implementa *usecase.CompanyUseCase.
type companyReader interface {
	GetByID(ctx context.Context, id string) (*dto.CompanyResponse, error)
}

// CompanyHandler expone la empresa emisora del token.
type CompanyHandler struct {
	uc companyReader
}

// NewCompanyHandler construye el handler inyectando el caso de uso.
func NewCompanyHandler(uc companyReader) *CompanyHandler {
	return &CompanyHandler{uc: uc}
}

// Me godoc
// @Summary      Empresa emisora del usuario autenticado
// @Tags         companies
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.CompanyResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/company [get]
func (h *CompanyHandler) Me(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.Context(), GetCompanyID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
