package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

// QueryUseCase lecturas de comprobantes: detalle, listados, estadísticas y descargas.
type QueryUseCase struct {
	docs      repository.ElectronicDocumentRepository
	companies repository.CompanyRepository
}

// NewQueryUseCase construye el caso de uso.
func NewQueryUseCase(docs repository.ElectronicDocumentRepository, companies repository.CompanyRepository) *QueryUseCase {
	return &QueryUseCase{docs: docs, companies: companies}
}

// GetDocument detalle con líneas.
func (uc *QueryUseCase) GetDocument(ctx context.Context, companyID, docID string) (*dto.ElectronicDocumentResponse, error) {
	doc, err := uc.owned(ctx, companyID, docID, true)
	if err != nil {
		return nil, err
	}
	out := toDocumentResponse(doc)
	return &out, nil
}

// GetElectronicDocuments listado filtrado por estado, tipo y rango de fechas.
func (uc *QueryUseCase) GetElectronicDocuments(ctx context.Context, companyID string, filter entity.DocumentFilter) (*dto.DocumentListResponse, error) {
	page := dto.PageRequest{Limit: filter.Limit, Offset: filter.Offset}.Normalize()
	filter.Limit, filter.Offset = page.Limit, page.Offset

	docs, total, err := uc.docs.List(ctx, companyID, filter)
	if err != nil {
		return nil, fmt.Errorf("query: listar comprobantes: %w", err)
	}
	out := &dto.DocumentListResponse{
		Items: make([]dto.ElectronicDocumentResponse, 0, len(docs)),
		Page:  dto.NewPageResponse(page, total),
	}
	for _, d := range docs {
		out.Items = append(out.Items, toDocumentResponse(d))
	}
	return out, nil
}

// GetElectronicDocumentStats conteo total, por estado, pendientes de envío y con error.
func (uc *QueryUseCase) GetElectronicDocumentStats(ctx context.Context, companyID string) (*dto.DocumentStatsResponse, error) {
	counts, err := uc.docs.CountByStatus(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("query: contar comprobantes: %w", err)
	}
	out := &dto.DocumentStatsResponse{ByStatus: make(map[string]int, len(entity.AllStatuses))}
	for _, s := range entity.AllStatuses {
		n := counts[s]
		out.ByStatus[string(s)] = n
		out.Total += n
	}
	out.PendingSubmission = counts[entity.StatusDraft] + counts[entity.StatusPending]
	out.Errors = counts[entity.StatusError] + counts[entity.StatusRejected]
	return out, nil
}

// DownloadXML devuelve el XML firmado tal como se generó y su nombre SUNAT.
func (uc *QueryUseCase) DownloadXML(ctx context.Context, companyID, docID string) ([]byte, string, error) {
	doc, err := uc.owned(ctx, companyID, docID, false)
	if err != nil {
		return nil, "", err
	}
	if !doc.HasXML() {
		return nil, "", fmt.Errorf("%w: el comprobante aún no tiene XML", domain.ErrNotFound)
	}
	key, err := uc.documentKey(ctx, doc)
	if err != nil {
		return nil, "", err
	}
	return DecodeArtifact(doc.XML), sunat.XMLFileName(key), nil
}

// DownloadCDR devuelve el ZIP de constancia de recepción.
func (uc *QueryUseCase) DownloadCDR(ctx context.Context, companyID, docID string) ([]byte, string, error) {
	doc, err := uc.owned(ctx, companyID, docID, false)
	if err != nil {
		return nil, "", err
	}
	if doc.CDR == "" {
		return nil, "", fmt.Errorf("%w: el comprobante aún no tiene CDR", domain.ErrNotFound)
	}
	key, err := uc.documentKey(ctx, doc)
	if err != nil {
		return nil, "", err
	}
	return DecodeArtifact(doc.CDR), sunat.CDRFileName(key), nil
}

func (uc *QueryUseCase) owned(ctx context.Context, companyID, docID string, withItems bool) (*entity.ElectronicDocument, error) {
	var (
		doc *entity.ElectronicDocument
		err error
	)
	if withItems {
		doc, err = uc.docs.GetWithItems(ctx, docID)
	} else {
		doc, err = uc.docs.GetByID(ctx, docID)
	}
	if err != nil {
		return nil, fmt.Errorf("query: obtener comprobante: %w", err)
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if doc.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return doc, nil
}

func (uc *QueryUseCase) documentKey(ctx context.Context, doc *entity.ElectronicDocument) (string, error) {
	company, err := uc.companies.GetByID(ctx, doc.CompanyID)
	if err != nil {
		return "", fmt.Errorf("query: obtener empresa: %w", err)
	}
	if company == nil {
		return "", domain.ErrNotFound
	}
	return sunat.DocumentKey(company.RUC, doc.DocType, doc.Series, doc.Number), nil
}
