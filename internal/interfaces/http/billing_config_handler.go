package http

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
)

// billingConfigurator lo implementa *billing.ConfigUseCase.
type billingConfigurator interface {
	GetBillingStatus(ctx context.Context, companyID string) (*dto.BillingStatusResponse, error)
	Configure(ctx context.Context, companyID string, in dto.ConfigureBillingRequest) (*dto.BillingStatusResponse, error)
	UploadCertificate(ctx context.Context, companyID, fileName string, data []byte, password string) (*dto.CertificateResponse, error)
	ValidateConfiguration(ctx context.Context, companyID string) (*dto.ConfigValidationResponse, error)
	SwitchEnvironment(ctx context.Context, companyID string, production bool) (*dto.BillingStatusResponse, error)
	TestConnection(ctx context.Context, companyID string) (*dto.ConnectionTestResponse, error)
}

// BillingConfigHandler configuración SUNAT de la empresa del token.
type BillingConfigHandler struct {
	uc billingConfigurator
}

// NewBillingConfigHandler construye el handler.
func NewBillingConfigHandler(uc billingConfigurator) *BillingConfigHandler {
	return &BillingConfigHandler{uc: uc}
}

// Status godoc
// @Summary      Estado de la configuración de facturación
// @Tags         billing-config
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.BillingStatusResponse
// @Router       /api/billing-config [get]
func (h *BillingConfigHandler) Status(c *fiber.Ctx) error {
	out, err := h.uc.GetBillingStatus(c.Context(), GetCompanyID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Configure godoc
// @Summary      Guardar credenciales SOL y ambiente
// @Tags         billing-config
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.ConfigureBillingRequest  true  "Credenciales"
// @Success      200   {object}  dto.BillingStatusResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/billing-config [put]
func (h *BillingConfigHandler) Configure(c *fiber.Ctx) error {
	var in dto.ConfigureBillingRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	out, err := h.uc.Configure(c.Context(), GetCompanyID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// UploadCertificate godoc
// @Summary      Cargar certificado digital (.p12, .pfx, .pem)
// @Tags         billing-config
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        certificate  formData  file    true   "Certificado"
// @Param        password     formData  string  false  "Contraseña del certificado"
// @Success      201  {object}  dto.CertificateResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/billing-config/certificate [post]
func (h *BillingConfigHandler) UploadCertificate(c *fiber.Ctx) error {
	fh, err := c.FormFile("certificate")
	if err != nil {
		return badRequest(c, "VALIDATION", "archivo 'certificate' requerido")
	}
	if fh.Size > billing.MaxCertificateSize {
		return badRequest(c, "VALIDATION", "el certificado no puede superar 5MB")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "VALIDATION", "no se pudo leer el archivo")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, billing.MaxCertificateSize+1))
	if err != nil {
		return badRequest(c, "VALIDATION", "no se pudo leer el archivo")
	}
	out, err := h.uc.UploadCertificate(c.Context(), GetCompanyID(c), fh.Filename, data, c.FormValue("password"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Validate godoc
// @Summary      Validar la configuración sin modificarla
// @Tags         billing-config
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.ConfigValidationResponse
// @Router       /api/billing-config/validate [get]
func (h *BillingConfigHandler) Validate(c *fiber.Ctx) error {
	out, err := h.uc.ValidateConfiguration(c.Context(), GetCompanyID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// SwitchEnvironment godoc
// @Summary      Cambiar entre beta y producción
// @Tags         billing-config
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.SwitchEnvironmentRequest  true  "Ambiente"
// @Success      200   {object}  dto.BillingStatusResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/billing-config/environment [put]
func (h *BillingConfigHandler) SwitchEnvironment(c *fiber.Ctx) error {
	var in dto.SwitchEnvironmentRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	out, err := h.uc.SwitchEnvironment(c.Context(), GetCompanyID(c), in.Production)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// TestConnection godoc
// @Summary      Probar credenciales SOL contra SUNAT
// @Tags         billing-config
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.ConnectionTestResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/billing-config/test-connection [post]
func (h *BillingConfigHandler) TestConnection(c *fiber.Ctx) error {
	out, err := h.uc.TestConnection(c.Context(), GetCompanyID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
