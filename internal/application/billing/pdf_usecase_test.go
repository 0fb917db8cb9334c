package billing_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
)

type capturingPDF struct{ data *billing.PDFData }

func (g *capturingPDF) GenerateDocumentPDF(_ context.Context, data *billing.PDFData) ([]byte, error) {
	g.data = data
	return []byte("%PDF-1.7"), nil
}

func TestDownloadPDF(t *testing.T) {
	doc := draft("doc-1")
	doc.XML = billing.EncodeArtifact([]byte("<Invoice/>"))
	doc.Hash = "abc123"
	h := newHarness(doc, draft("doc-2"))
	gen := &capturingPDF{}
	uc := billing.NewPDFUseCase(h.docs, h.companies, customers(), gen)

	pdf, name, err := uc.DownloadPDF(ctx, companyID, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), pdf)
	assert.Equal(t, issuerRUC+"-01-F001-1.pdf", name)
	require.NotNil(t, gen.data.Customer)
	assert.True(t, strings.HasPrefix(gen.data.QRData, issuerRUC+"|01|F001|1|"))
	assert.Contains(t, gen.data.QRData, "|abc123|")

	_, _, err = uc.DownloadPDF(ctx, companyID, "doc-2")
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "sin XML no hay PDF")

	_, _, err = uc.DownloadPDF(ctx, otherID, "doc-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, _, err = uc.DownloadPDF(ctx, companyID, "nada")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
