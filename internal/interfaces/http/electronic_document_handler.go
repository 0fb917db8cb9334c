package http

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

// maxBatchSize tope de comprobantes por petición de lote.
const maxBatchSize = 500

// Contratos que el handler necesita de la capa de aplicación.
// Los implementan DraftUseCase, Orchestrator, BatchCoordinator, QueryUseCase y PDFUseCase.
type (
	draftCreator interface {
		CreateDraft(ctx context.Context, companyID string, in dto.CreateDocumentRequest) (*dto.ElectronicDocumentResponse, error)
	}
	documentLifecycle interface {
		Generate(ctx context.Context, companyID, docID string) (*billing.SubmissionResult, error)
		Submit(ctx context.Context, companyID, docID string) (*billing.SubmissionResult, error)
		Process(ctx context.Context, companyID, docID string) (*billing.SubmissionResult, error)
		Retry(ctx context.Context, companyID, docID string, policy *billing.RetryPolicy) (*billing.SubmissionResult, error)
		CheckStatus(ctx context.Context, companyID, docID string) (*billing.SubmissionResult, error)
		Cancel(ctx context.Context, companyID, docID, reason string) (*billing.SubmissionResult, error)
	}
	batchProcessor interface {
		ProcessBatch(ctx context.Context, companyID string, ids []string, opts *billing.BatchOptions) (*billing.BatchResult, error)
	}
	documentQueries interface {
		GetDocument(ctx context.Context, companyID, docID string) (*dto.ElectronicDocumentResponse, error)
		GetElectronicDocuments(ctx context.Context, companyID string, filter entity.DocumentFilter) (*dto.DocumentListResponse, error)
		GetElectronicDocumentStats(ctx context.Context, companyID string) (*dto.DocumentStatsResponse, error)
		DownloadXML(ctx context.Context, companyID, docID string) ([]byte, string, error)
		DownloadCDR(ctx context.Context, companyID, docID string) ([]byte, string, error)
	}
	pdfDownloader interface {
		DownloadPDF(ctx context.Context, companyID, docID string) ([]byte, string, error)
	}
)

// ElectronicDocumentHandler expone el ciclo de vida de comprobantes electrónicos SUNAT.
type ElectronicDocumentHandler struct {
	drafts    draftCreator
	lifecycle documentLifecycle
	batch     batchProcessor
	queries   documentQueries
	pdf       pdfDownloader
}

// NewElectronicDocumentHandler construye el handler.
func NewElectronicDocumentHandler(
	drafts draftCreator,
	lifecycle documentLifecycle,
	batch batchProcessor,
	queries documentQueries,
	pdf pdfDownloader,
) *ElectronicDocumentHandler {
	return &ElectronicDocumentHandler{drafts: drafts, lifecycle: lifecycle, batch: batch, queries: queries, pdf: pdf}
}

// Create godoc
// @Summary      Crear comprobante en borrador
// @Description  Calcula totales por línea y asigna el siguiente correlativo de la serie.
// @Tags         electronic-documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.CreateDocumentRequest  true  "Comprobante"
// @Success      201   {object}  dto.ElectronicDocumentResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/electronic-documents [post]
func (h *ElectronicDocumentHandler) Create(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.CreateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	out, err := h.drafts.CreateDraft(c.Context(), companyID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// GetByID godoc
// @Summary      Obtener comprobante con sus líneas
// @Tags         electronic-documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.ElectronicDocumentResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id} [get]
func (h *ElectronicDocumentHandler) GetByID(c *fiber.Ctx) error {
	companyID, id := GetCompanyID(c), c.Params("id")
	out, err := h.queries.GetDocument(c.Context(), companyID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Generate godoc
// @Summary      Generar y firmar el XML UBL 2.1
// @Tags         electronic-documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  billing.SubmissionResult
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id}/generate [post]
func (h *ElectronicDocumentHandler) Generate(c *fiber.Ctx) error {
	return h.run(c, h.lifecycle.Generate)
}

// Submit godoc
// @Summary      Enviar a SUNAT un comprobante con XML firmado
// @Tags         electronic-documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  billing.SubmissionResult
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id}/submit [post]
func (h *ElectronicDocumentHandler) Submit(c *fiber.Ctx) error {
	return h.run(c, h.lifecycle.Submit)
}

// Process godoc
// @Summary      Generar (si hace falta) y enviar en un solo paso
// @Tags         electronic-documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  billing.SubmissionResult
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id}/process [post]
func (h *ElectronicDocumentHandler) Process(c *fiber.Ctx) error {
	return h.run(c, h.lifecycle.Process)
}

// CheckStatus godoc
// @Summary      Consultar en SUNAT el estado de un comprobante enviado
// @Tags         electronic-documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  billing.SubmissionResult
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id}/status [get]
func (h *ElectronicDocumentHandler) CheckStatus(c *fiber.Ctx) error {
	return h.run(c, h.lifecycle.CheckStatus)
}

// Retry godoc
// @Summary      Reintentar el procesamiento con backoff exponencial
// @Description  El cuerpo es opcional; los campos vacíos toman la política por defecto.
// @Tags         electronic-documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string            true   "ID del comprobante"
// @Param        body  body  dto.RetryRequest  false  "Política de reintento"
// @Success      200   {object}  billing.SubmissionResult
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id}/retry [post]
func (h *ElectronicDocumentHandler) Retry(c *fiber.Ctx) error {
	companyID, id := GetCompanyID(c), c.Params("id")
	var in dto.RetryRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "INVALID_BODY", "cuerpo inválido")
		}
	}
	if in.MaxAttempts < 0 || in.DelaySeconds < 0 || in.BackoffMultiplier < 0 {
		return badRequest(c, "VALIDATION", "los parámetros de reintento no pueden ser negativos")
	}
	policy := &billing.RetryPolicy{
		MaxAttempts: in.MaxAttempts,
		Delay:       time.Duration(in.DelaySeconds) * time.Second,
		Multiplier:  in.BackoffMultiplier,
	}
	res, err := h.lifecycle.Retry(c.Context(), companyID, id, policy)
	return h.result(c, res, err)
}

// Cancel godoc
// @Summary      Anular un comprobante aceptado (comunicación de baja)
// @Tags         electronic-documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string             true  "ID del comprobante"
// @Param        body  body  dto.CancelRequest  true  "Motivo de la baja"
// @Success      200   {object}  billing.SubmissionResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id}/cancel [post]
func (h *ElectronicDocumentHandler) Cancel(c *fiber.Ctx) error {
	companyID, id := GetCompanyID(c), c.Params("id")
	var in dto.CancelRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return badRequest(c, "VALIDATION", "reason es requerido")
	}
	res, err := h.lifecycle.Cancel(c.Context(), companyID, id, in.Reason)
	return h.result(c, res, err)
}

// Batch godoc
// @Summary      Procesar varios comprobantes en tramos
// @Description  El fallo de un comprobante no detiene el lote; el resultado trae el detalle por id.
// @Tags         electronic-documents
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  dto.BatchRequest  true  "Ids y opciones"
// @Success      200   {object}  billing.BatchResult
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/batch [post]
func (h *ElectronicDocumentHandler) Batch(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.BatchRequest
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	if len(in.DocumentIDs) == 0 {
		return badRequest(c, "VALIDATION", "document_ids es requerido")
	}
	if len(in.DocumentIDs) > maxBatchSize {
		return badRequest(c, "VALIDATION", fmt.Sprintf("máximo %d comprobantes por lote", maxBatchSize))
	}
	for _, id := range in.DocumentIDs {
		if _, err := uuid.Parse(id); err != nil {
			return badRequest(c, "VALIDATION", "id inválido: "+id)
		}
	}
	opts := &billing.BatchOptions{
		MaxConcurrent: in.MaxConcurrent,
		ChunkDelay:    time.Duration(in.ChunkDelayMS) * time.Millisecond,
	}
	res, err := h.batch.ProcessBatch(c.Context(), companyID, in.DocumentIDs, opts)
	if err != nil && res == nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// List godoc
// @Summary      Listar comprobantes
// @Tags         electronic-documents
// @Produce      json
// @Security     BearerAuth
// @Param        status     query  string  false  "Estado (DRAFT, PENDING, ACCEPTED...)"
// @Param        doc_type   query  string  false  "Tipo de comprobante (01, 03, 07, 08)"
// @Param        date_from  query  string  false  "Desde (YYYY-MM-DD)"
// @Param        date_to    query  string  false  "Hasta (YYYY-MM-DD)"
// @Param        limit      query  int     false  "Límite"  default(20)
// @Param        offset     query  int     false  "Offset"  default(0)
// @Success      200  {object}  dto.DocumentListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/electronic-documents [get]
func (h *ElectronicDocumentHandler) List(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	filter := entity.DocumentFilter{
		DocType: c.Query("doc_type"),
		Limit:   c.QueryInt("limit", 20),
		Offset:  c.QueryInt("offset", 0),
	}
	if s := strings.ToUpper(c.Query("status")); s != "" {
		if !validStatus(s) {
			return badRequest(c, "VALIDATION", "status inválido: "+s)
		}
		filter.Status = entity.DocumentStatus(s)
	}
	var err error
	if filter.DateFrom, err = queryDate(c, "date_from"); err != nil {
		return badRequest(c, "VALIDATION", err.Error())
	}
	if filter.DateTo, err = queryDate(c, "date_to"); err != nil {
		return badRequest(c, "VALIDATION", err.Error())
	}
	out, err := h.queries.GetElectronicDocuments(c.Context(), companyID, filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Stats godoc
// @Summary      Conteo de comprobantes por estado
// @Tags         electronic-documents
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  dto.DocumentStatsResponse
// @Router       /api/electronic-documents/stats [get]
func (h *ElectronicDocumentHandler) Stats(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	out, err := h.queries.GetElectronicDocumentStats(c.Context(), companyID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// DownloadXML godoc
// @Summary      Descargar el XML firmado
// @Tags         electronic-documents
// @Produce      application/xml
// @Security     BearerAuth
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {file}    file
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id}/xml [get]
func (h *ElectronicDocumentHandler) DownloadXML(c *fiber.Ctx) error {
	return h.download(c, h.queries.DownloadXML, "application/xml")
}

// DownloadCDR godoc
// @Summary      Descargar la constancia de recepción (ZIP)
// @Tags         electronic-documents
// @Produce      application/zip
// @Security     BearerAuth
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {file}    file
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id}/cdr [get]
func (h *ElectronicDocumentHandler) DownloadCDR(c *fiber.Ctx) error {
	return h.download(c, h.queries.DownloadCDR, "application/zip")
}

// DownloadPDF godoc
// @Summary      Descargar la representación impresa
// @Tags         electronic-documents
// @Produce      application/pdf
// @Security     BearerAuth
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {file}    file
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/electronic-documents/{id}/pdf [get]
func (h *ElectronicDocumentHandler) DownloadPDF(c *fiber.Ctx) error {
	return h.download(c, h.pdf.DownloadPDF, "application/pdf")
}

// ValidDocumentID rechaza con 400 los ids de ruta que no son UUID antes de llegar al handler.
func ValidDocumentID(c *fiber.Ctx) error {
	if _, err := uuid.Parse(c.Params("id")); err != nil {
		return badRequest(c, "VALIDATION", "id inválido")
	}
	return c.Next()
}

func (h *ElectronicDocumentHandler) run(c *fiber.Ctx, op func(ctx context.Context, companyID, docID string) (*billing.SubmissionResult, error)) error {
	companyID, id := GetCompanyID(c), c.Params("id")
	res, err := op(c.Context(), companyID, id)
	return h.result(c, res, err)
}

// result responde 200 también cuando SUNAT rechaza; Success=false y Error lo indican.
func (h *ElectronicDocumentHandler) result(c *fiber.Ctx, res *billing.SubmissionResult, err error) error {
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

func (h *ElectronicDocumentHandler) download(c *fiber.Ctx, op func(ctx context.Context, companyID, docID string) ([]byte, string, error), contentType string) error {
	companyID, id := GetCompanyID(c), c.Params("id")
	data, name, err := op(c.Context(), companyID, id)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Send(data)
}

func validStatus(s string) bool {
	for _, st := range entity.AllStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

func queryDate(c *fiber.Ctx, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("%s debe tener formato YYYY-MM-DD", key)
	}
	return &t, nil
}
