package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/application/usecase"
	"github.com/jhoicas/erp-sunat-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Drafts        *billing.DraftUseCase
	Orchestrator  *billing.Orchestrator
	Batch         *billing.BatchCoordinator
	Queries       *billing.QueryUseCase
	PDF           *billing.PDFUseCase
	BillingConfig *billing.ConfigUseCase
	CompanyUC     *usecase.CompanyUseCase
	Verifier      *jwt.Verifier
}

// Router registra las rutas de la API. Todas requieren Bearer Token; la empresa
// se toma siempre del token, nunca del cuerpo.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.Verifier))

	api.Get("/company", NewCompanyHandler(deps.CompanyUC).Me)

	RegisterElectronicDocumentRoutes(api.Group("/electronic-documents"),
		NewElectronicDocumentHandler(deps.Drafts, deps.Orchestrator, deps.Batch, deps.Queries, deps.PDF))
	RegisterBillingConfigRoutes(api.Group("/billing-config"), NewBillingConfigHandler(deps.BillingConfig))
}

// RegisterElectronicDocumentRoutes rutas de comprobantes. Requiere AuthMiddleware previo.
func RegisterElectronicDocumentRoutes(docs fiber.Router, h *ElectronicDocumentHandler) {
	anyRole := RequireRole(RoleAdmin, RoleContador, RoleVendedor)
	operators := RequireRole(RoleAdmin, RoleContador)

	docs.Get("/", anyRole, h.List)
	docs.Post("/", anyRole, h.Create)
	docs.Get("/stats", anyRole, h.Stats)
	docs.Post("/batch", operators, h.Batch)
	docs.Get("/:id", anyRole, ValidDocumentID, h.GetByID)
	docs.Get("/:id/xml", anyRole, ValidDocumentID, h.DownloadXML)
	docs.Get("/:id/cdr", anyRole, ValidDocumentID, h.DownloadCDR)
	docs.Get("/:id/pdf", anyRole, ValidDocumentID, h.DownloadPDF)
	docs.Get("/:id/status", operators, ValidDocumentID, h.CheckStatus)
	docs.Post("/:id/generate", operators, ValidDocumentID, h.Generate)
	docs.Post("/:id/submit", operators, ValidDocumentID, h.Submit)
	docs.Post("/:id/process", operators, ValidDocumentID, h.Process)
	docs.Post("/:id/retry", operators, ValidDocumentID, h.Retry)
	docs.Post("/:id/cancel", operators, ValidDocumentID, h.Cancel)
}

// RegisterBillingConfigRoutes rutas de configuración SUNAT; solo administradores modifican.
func RegisterBillingConfigRoutes(cfg fiber.Router, h *BillingConfigHandler) {
	operators := RequireRole(RoleAdmin, RoleContador)
	admin := RequireRole(RoleAdmin)

	cfg.Get("/", operators, h.Status)
	cfg.Get("/validate", operators, h.Validate)
	cfg.Put("/", admin, h.Configure)
	cfg.Post("/certificate", admin, h.UploadCertificate)
	cfg.Put("/environment", admin, h.SwitchEnvironment)
	cfg.Post("/test-connection", admin, h.TestConnection)
}
