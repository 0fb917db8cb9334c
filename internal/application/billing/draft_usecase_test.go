package billing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

func facturaRequest() dto.CreateDocumentRequest {
	return dto.CreateDocumentRequest{
		CustomerID: "cust-1",
		DocType:    "01",
		Series:     "f001",
		IssueDate:  "2024-03-05",
		Items: []dto.DocumentItemRequest{
			{Description: "Laptop", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(100), AffectationCode: "10"},
			{Description: "Libro", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50), DiscountPct: decimal.NewFromInt(10), AffectationCode: "20"},
		},
	}
}

func TestCreateDraft_AsignaCorrelativoYTotales(t *testing.T) {
	existing := draft("doc-1")
	existing.Number = 41
	docs := newFakeDocs(existing)
	uc := billing.NewDraftUseCase(docs, customers())

	out, err := uc.CreateDraft(ctx, companyID, facturaRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(42), out.Number)
	assert.Equal(t, "F001", out.Series)
	assert.Equal(t, "F001-42", out.FullNumber)
	assert.Equal(t, "DRAFT", out.Status)
	assert.Equal(t, "PEN", out.CurrencyCode)
	assert.True(t, out.SubtotalTaxed.Equal(decimal.NewFromInt(1000)))
	assert.True(t, out.SubtotalExonerated.Equal(decimal.NewFromInt(90)))
	assert.True(t, out.GrandTotal.Equal(decimal.NewFromInt(1270)))
	assert.Len(t, out.Items, 2)
	assert.Equal(t, "NIU", out.Items[0].UnitCode)
}

func TestCreateDraft_ReintentaAnteChoqueDeCorrelativo(t *testing.T) {
	docs := newFakeDocs()
	docs.conflicts = 2
	uc := billing.NewDraftUseCase(docs, customers())

	_, err := uc.CreateDraft(ctx, companyID, facturaRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, docs.created)

	docs.conflicts = 3
	_, err = uc.CreateDraft(ctx, companyID, facturaRequest())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateDraft_Validaciones(t *testing.T) {
	parties := customers()
	parties["ajeno"] = &entity.Party{ID: "ajeno", CompanyID: otherID, DocType: "6", DocNumber: "20131312955"}
	uc := billing.NewDraftUseCase(newFakeDocs(), parties)

	req := facturaRequest()
	req.Items = nil
	_, err := uc.CreateDraft(ctx, companyID, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	req = facturaRequest()
	req.CustomerID = "ajeno"
	_, err = uc.CreateDraft(ctx, companyID, req)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	req = facturaRequest()
	req.CustomerID = "no-existe"
	_, err = uc.CreateDraft(ctx, companyID, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	req = facturaRequest()
	req.IssueDate = "05/03/2024"
	_, err = uc.CreateDraft(ctx, companyID, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateDraft_RechazaMontosQueNoCabenEnColumnas(t *testing.T) {
	cases := map[string]func(it *dto.DocumentItemRequest){
		"descuento 1000":        func(it *dto.DocumentItemRequest) { it.DiscountPct = decimal.NewFromInt(1000) },
		"descuento 3 decimales": func(it *dto.DocumentItemRequest) { it.DiscountPct = decimal.RequireFromString("5.125") },
		"cantidad 5 decimales":  func(it *dto.DocumentItemRequest) { it.Quantity = decimal.RequireFromString("1.00005") },
		"precio 7 decimales":    func(it *dto.DocumentItemRequest) { it.UnitPrice = decimal.RequireFromString("9.9999999") },
		"cantidad cero":         func(it *dto.DocumentItemRequest) { it.Quantity = decimal.Zero },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			docs := newFakeDocs()
			uc := billing.NewDraftUseCase(docs, customers())
			req := facturaRequest()
			mutate(&req.Items[1])

			_, err := uc.CreateDraft(ctx, companyID, req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Contains(t, err.Error(), "Libro")
			assert.Zero(t, docs.created, "no se persiste nada")
		})
	}
}
