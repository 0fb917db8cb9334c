package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/domain/repository"
	domsunat "github.com/jhoicas/erp-sunat-api/internal/domain/sunat"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

// maxNumberAttempts reintentos ante choque de correlativo con otra venta concurrente.
const maxNumberAttempts = 3

// DraftUseCase registra comprobantes en DRAFT desde el flujo de ventas.
type DraftUseCase struct {
	docs    repository.ElectronicDocumentRepository
	parties repository.PartyRepository
	now     func() time.Time
}

// NewDraftUseCase construye el caso de uso.
func NewDraftUseCase(docs repository.ElectronicDocumentRepository, parties repository.PartyRepository) *DraftUseCase {
	return &DraftUseCase{docs: docs, parties: parties, now: time.Now}
}

// CreateDraft valida la entrada mínima, calcula totales y asigna el siguiente correlativo
// de la serie. Las reglas SUNAT completas se aplican recién al generar el XML.
func (uc *DraftUseCase) CreateDraft(ctx context.Context, companyID string, in dto.CreateDocumentRequest) (*dto.ElectronicDocumentResponse, error) {
	if !sunat.ValidDocTypes[in.DocType] || strings.TrimSpace(in.Series) == "" || len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: tipo, serie e ítems son obligatorios", domain.ErrInvalidInput)
	}
	if in.CustomerID != "" {
		customer, err := uc.parties.GetByID(ctx, in.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("draft: obtener cliente: %w", err)
		}
		if customer == nil {
			return nil, domain.ErrNotFound
		}
		if customer.CompanyID != companyID {
			return nil, domain.ErrForbidden
		}
	}

	issueDate := uc.now()
	if in.IssueDate != "" {
		d, err := time.Parse("2006-01-02", in.IssueDate)
		if err != nil {
			return nil, fmt.Errorf("%w: issue_date debe tener formato YYYY-MM-DD", domain.ErrInvalidInput)
		}
		issueDate = d
	}
	currency := in.CurrencyCode
	if currency == "" {
		currency = sunat.CurrencyPEN
	}

	doc := &entity.ElectronicDocument{
		ID:                uuid.New().String(),
		CompanyID:         companyID,
		CustomerID:        in.CustomerID,
		DocType:           in.DocType,
		Series:            strings.ToUpper(strings.TrimSpace(in.Series)),
		IssueDate:         issueDate,
		CurrencyCode:      currency,
		ExchangeRate:      in.ExchangeRate,
		ReferenceDocument: in.ReferenceDocument,
		Status:            entity.StatusDraft,
	}
	for _, it := range in.Items {
		unit := it.UnitCode
		if unit == "" {
			unit = sunat.UnitUnidad
		}
		item := &entity.DocumentItem{
			ID:              uuid.New().String(),
			DocumentID:      doc.ID,
			ProductID:       it.ProductID,
			Description:     it.Description,
			UnitCode:        unit,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPct:     it.DiscountPct,
			AffectationCode: it.AffectationCode,
		}
		if err := domsunat.ValidateItemAmounts(item); err != nil {
			return nil, fmt.Errorf("ítem %q: %w", it.Description, err)
		}
		doc.Items = append(doc.Items, item)
	}
	domsunat.ApplyTotals(doc)

	for attempt := 1; ; attempt++ {
		n, err := uc.docs.NextNumber(ctx, companyID, doc.DocType, doc.Series)
		if err != nil {
			return nil, fmt.Errorf("draft: siguiente correlativo: %w", err)
		}
		doc.Number = n
		err = uc.docs.Create(ctx, doc)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == maxNumberAttempts {
			return nil, fmt.Errorf("draft: crear comprobante: %w", err)
		}
	}

	out := toDocumentResponse(doc)
	return &out, nil
}
