package billing

import (
	"context"
	"fmt"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
	domsunat "github.com/jhoicas/erp-sunat-api/internal/domain/sunat"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

// PDFUseCase genera la representación impresa de un comprobante electrónico.
// Solo se permite cuando ya existe XML firmado, porque el QR incluye el hash.
type PDFUseCase struct {
	docs      repository.ElectronicDocumentRepository
	companies repository.CompanyRepository
	parties   repository.PartyRepository
	generator PDFGenerator
}

// NewPDFUseCase construye el caso de uso inyectando todas sus dependencias.
func NewPDFUseCase(
	docs repository.ElectronicDocumentRepository,
	companies repository.CompanyRepository,
	parties repository.PartyRepository,
	generator PDFGenerator,
) *PDFUseCase {
	return &PDFUseCase{docs: docs, companies: companies, parties: parties, generator: generator}
}

// DownloadPDF devuelve (pdfBytes, filename, nil), o bien:
//   - domain.ErrNotFound     si el comprobante no existe.
//   - domain.ErrForbidden    si pertenece a otra empresa.
//   - domain.ErrInvalidInput si aún no tiene XML firmado.
func (uc *PDFUseCase) DownloadPDF(ctx context.Context, companyID, docID string) ([]byte, string, error) {
	// ── 1. Comprobante ────────────────────────────────────────────────────────
	doc, err := uc.docs.GetWithItems(ctx, docID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener comprobante: %w", err)
	}
	if doc == nil {
		return nil, "", domain.ErrNotFound
	}
	if doc.CompanyID != companyID {
		return nil, "", domain.ErrForbidden
	}
	if !doc.HasXML() {
		return nil, "", fmt.Errorf("%w: el comprobante está en estado %s, genere el XML antes de descargar el PDF",
			domain.ErrInvalidInput, doc.Status)
	}

	// ── 2. Empresa y cliente ──────────────────────────────────────────────────
	company, err := uc.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener empresa: %w", err)
	}
	if company == nil {
		return nil, "", domain.ErrNotFound
	}
	data := &PDFData{Company: company, Document: doc}
	if doc.CustomerID != "" {
		customer, err := uc.parties.GetByID(ctx, doc.CustomerID)
		if err != nil {
			return nil, "", fmt.Errorf("pdf: obtener cliente: %w", err)
		}
		data.Customer = customer
	}
	data.QRData = domsunat.BuildQRData(company.RUC, doc, data.Customer)

	// ── 3. Generar PDF ────────────────────────────────────────────────────────
	pdfBytes, err := uc.generator.GenerateDocumentPDF(ctx, data)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}
	key := sunat.DocumentKey(company.RUC, doc.DocType, doc.Series, doc.Number)
	return pdfBytes, key + ".pdf", nil
}
