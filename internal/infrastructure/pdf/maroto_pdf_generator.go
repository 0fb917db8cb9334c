// Package pdf implementa la representación impresa de los comprobantes
// electrónicos SUNAT (factura, boleta, notas de crédito y débito).
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón social + dirección │ RUC / TIPO / SERIE-NÚM  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  ADQUIRIENTE: Nombre + tipo/número de doc + fecha + moneda  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Unid | Descripción | V.Unit | Dscto | Valor  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  SON: importe en letras  │  Gravada / Exonerada / IGV / Total│
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER: QR + hash + leyenda de representación impresa      │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPDFGenerator implementa billing.PDFGenerator usando Maroto v2.
type MarotoPDFGenerator struct{}

var _ billing.PDFGenerator = (*MarotoPDFGenerator)(nil)

// NewMarotoPDFGenerator construye el generador.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{} }

// GenerateDocumentPDF genera el PDF y devuelve sus bytes.
func (g *MarotoPDFGenerator) GenerateDocumentPDF(_ context.Context, data *billing.PDFData) ([]byte, error) {
	if data == nil || data.Document == nil || data.Company == nil {
		return nil, fmt.Errorf("pdf: faltan comprobante o empresa")
	}
	doc, company := data.Document, data.Company

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(docLabel(doc.DocType)+" "+fullNumber(doc), true).
		WithAuthor(company.LegalName, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(doc, company))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(customerRow(doc, data.Customer))
	if doc.ReferenceDocument != "" {
		m.AddRows(referenceRow(doc))
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(doc.Items)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(doc, data.QRData)...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: emisor (izq) y recuadro RUC / tipo / número (der).
func headerRow(doc *entity.ElectronicDocument, company *entity.Company) core.Row {
	name := company.LegalName
	if company.TradeName != "" {
		name = company.TradeName
	}
	return row.New(24).Add(
		col.New(7).Add(
			text.New(name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(company.LegalName, props.Text{Size: 8, Top: 8}),
			text.New(nonEmpty(company.Address, "—"), props.Text{Size: 8, Top: 12, Color: colorGray}),
			text.New(fmt.Sprintf("Tel: %s   |   Email: %s",
				nonEmpty(company.Phone, "—"),
				nonEmpty(company.Email, "—"),
			), props.Text{Size: 8, Top: 16, Color: colorGray}),
		),
		col.New(5).Add(
			text.New("R.U.C. "+company.RUC, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Center, Top: 2,
			}),
			text.New(docLabel(doc.DocType), props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Center, Color: colorPrimary, Top: 9,
			}),
			text.New(fullNumber(doc), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Center, Top: 15,
			}),
		),
	)
}

// customerRow: adquiriente, fecha de emisión y moneda.
func customerRow(doc *entity.ElectronicDocument, customer *entity.Party) core.Row {
	name, idLabel := "CLIENTES VARIOS", "—"
	address := ""
	if customer != nil {
		name = customer.Name
		idLabel = nonEmpty(sunat.IdentityTypeLabels[customer.DocType], "DOC") + ": " + customer.DocNumber
		address = customer.Address
	}
	return row.New(18).Add(
		col.New(8).Add(
			text.New("ADQUIRIENTE", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(name, props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New(idLabel, props.Text{Size: 8, Top: 11, Color: colorGray}),
			text.New(address, props.Text{Size: 8, Top: 15, Color: colorGray}),
		),
		col.New(4).Add(
			text.New("Fecha de emisión: "+doc.IssueDate.Format("02/01/2006"), props.Text{
				Size: 8, Align: align.Right, Top: 6,
			}),
			text.New("Moneda: "+currencyName(doc.CurrencyCode), props.Text{
				Size: 8, Align: align.Right, Top: 11,
			}),
		),
	)
}

// referenceRow: comprobante que modifica una nota de crédito/débito.
func referenceRow(doc *entity.ElectronicDocument) core.Row {
	return row.New(6).Add(col.New(12).Add(
		text.New("Documento que modifica: "+doc.ReferenceDocument, props.Text{
			Size: 8, Top: 1, Style: fontstyle.Italic,
		}),
	))
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Unid.", 1, align.Center),
		h("Descripción", 5, align.Left),
		h("V. Unit.", 2, align.Right),
		h("Dscto.%", 1, align.Center),
		h("Valor venta", 2, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

// tableDetailRows: una fila por línea; el valor de venta es la base sin IGV.
func tableDetailRows(items []*entity.DocumentItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(it.Quantity.String(), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(1).Add(text.New(it.UnitCode, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(it.Description, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(formatMoney(it.UnitPrice), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(it.DiscountPct.String(), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(formatMoney(it.LineTotal), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

// totalsRow: importe en letras (izq) y bloque de totales por grupo de afectación (der).
func totalsRow(doc *entity.ElectronicDocument) core.Row {
	symbol := currencySymbol(doc.CurrencyCode)
	lines := []struct {
		label string
		value decimal.Decimal
	}{
		{"Op. gravadas:", doc.SubtotalTaxed},
		{"Op. exoneradas:", doc.SubtotalExonerated},
		{"Op. inafectas:", doc.SubtotalUnaffected},
		{"Descuentos:", doc.TotalDiscount},
		{"IGV 18%:", doc.TotalTax},
	}
	labels := make([]core.Component, 0, len(lines)+1)
	values := make([]core.Component, 0, len(lines)+1)
	for i, l := range lines {
		top := float64(i*5 + 1)
		labels = append(labels, text.New(l.label, props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Right, Right: 2, Top: top}))
		values = append(values, text.New(symbol+" "+formatMoney(l.value), props.Text{Size: 8, Align: align.Right, Right: 1, Top: top}))
	}
	top := float64(len(lines)*5 + 2)
	labels = append(labels, text.New("IMPORTE TOTAL:", props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2, Top: top,
	}))
	values = append(values, text.New(symbol+" "+formatMoney(doc.GrandTotal), props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: top,
	}))

	return row.New(34).Add(
		col.New(6).Add(
			text.New("SON: "+AmountInWords(doc.GrandTotal, doc.CurrencyCode), props.Text{
				Style: fontstyle.Bold, Size: 8, Top: 2,
			}),
		),
		col.New(3).Add(labels...),
		col.New(3).Add(values...),
	)
}

// footerRows: QR con la cadena SUNAT, hash y leyenda.
func footerRows(doc *entity.ElectronicDocument, qr string) []core.Row {
	legend := fmt.Sprintf("Representación impresa de la %s. Consulte su validez en www.sunat.gob.pe",
		docLabel(doc.DocType))
	hash := text.New("Código hash: "+nonEmpty(doc.Hash, "—"), props.Text{Size: 7, Top: 4, Left: 3, Color: colorGray})

	if qr == "" {
		return []core.Row{
			row.New(12).Add(col.New(12).Add(
				text.New(legend, props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Center, Color: colorPrimary, Top: 2}),
				text.New("Código hash: "+nonEmpty(doc.Hash, "—"), props.Text{Size: 7, Align: align.Center, Top: 7, Color: colorGray}),
			)),
		}
	}
	return []core.Row{
		row.New(40).Add(
			col.New(3).Add(code.NewQr(qr, props.Rect{Percent: 95, Center: true})),
			col.New(9).Add(
				hash,
				text.New(legend, props.Text{Style: fontstyle.Bold, Size: 8, Top: 12, Left: 3, Color: colorPrimary}),
				text.New("Estado SUNAT: "+string(doc.Status), props.Text{Size: 7, Top: 20, Left: 3, Color: colorGray}),
			),
		),
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

func docLabel(docType string) string {
	return nonEmpty(sunat.DocTypeLabels[docType], "COMPROBANTE ELECTRÓNICO")
}

func fullNumber(doc *entity.ElectronicDocument) string {
	return fmt.Sprintf("%s-%08d", doc.Series, doc.Number)
}

func currencyName(code string) string {
	switch code {
	case sunat.CurrencyUSD:
		return "DÓLARES AMERICANOS"
	case sunat.CurrencyEUR:
		return "EUROS"
	default:
		return "SOLES"
	}
}

func currencySymbol(code string) string {
	switch code {
	case sunat.CurrencyUSD:
		return "US$"
	case sunat.CurrencyEUR:
		return "€"
	default:
		return "S/"
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney dos decimales con coma de miles: 1234567.5 → "1,234,567.50".
func formatMoney(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	n := len(intPart)
	buf := make([]byte, 0, n+n/3+3)
	if d.IsNegative() {
		buf = append(buf, '-')
	}
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, c)
	}
	return string(append(buf, frac...))
}
