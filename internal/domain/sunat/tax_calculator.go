// Package sunat contiene las reglas de dominio de la facturación electrónica SUNAT:
// cálculo de IGV, máquina de estados del comprobante y validaciones previas a la generación.
package sunat

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

var (
	// IGVRate tasa general del IGV (incluye IPM).
	IGVRate = decimal.RequireFromString("0.18")

	hundred = decimal.NewFromInt(100)
)

// AmountScale decimales de todo monto calculado; coincide con NUMERIC(14,2) y con el XML.
const AmountScale int32 = 2

// ItemTax resultado del cálculo de una línea.
type ItemTax struct {
	AffectationCode string
	Gross           decimal.Decimal // cantidad × precio
	Discount        decimal.Decimal
	LineTotal       decimal.Decimal // base de la línea, sin IGV
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal // base + IGV
}

// TaxTotals totales del comprobante. Se recalculan siempre desde las líneas.
type TaxTotals struct {
	SubtotalTaxed      decimal.Decimal
	SubtotalExonerated decimal.Decimal
	SubtotalUnaffected decimal.Decimal
	TotalDiscount      decimal.Decimal
	TotalTax           decimal.Decimal
	GrandTotal         decimal.Decimal
}

// NormalizeAffectation devuelve "10" cuando el código viene vacío.
func NormalizeAffectation(code string) string {
	if code == "" {
		return sunat.AffectationTaxed
	}
	return code
}

// ComputeItemTax calcula base, descuento e IGV de una línea.
// Solo el código "10" genera IGV; cualquier otro código tiene impuesto cero.
// Bruto, descuento e IGV se redondean a 2 decimales por línea, así los totales del
// comprobante son sumas exactas de montos ya redondeados y se guardan sin perder céntimos.
func ComputeItemTax(quantity, unitPrice, discountPct decimal.Decimal, affectationCode string) ItemTax {
	code := NormalizeAffectation(affectationCode)
	gross := quantity.Mul(unitPrice).Round(AmountScale)
	discount := gross.Mul(discountPct).Div(hundred).Round(AmountScale)
	base := gross.Sub(discount)

	tax := decimal.Zero
	if code == sunat.AffectationTaxed {
		tax = base.Mul(IGVRate).Round(AmountScale)
	}
	return ItemTax{
		AffectationCode: code,
		Gross:           gross,
		Discount:        discount,
		LineTotal:       base,
		TaxAmount:       tax,
		Total:           base.Add(tax),
	}
}

// ComputeLine aplica ComputeItemTax a una línea del comprobante.
func ComputeLine(item *entity.DocumentItem) ItemTax {
	return ComputeItemTax(item.Quantity, item.UnitPrice, item.DiscountPct, item.AffectationCode)
}

// ComputeDocumentTotals agrega las líneas por tipo de afectación.
// "10" suma a gravadas, "20" a exoneradas y cualquier otro código a inafectas.
// GrandTotal = gravadas + exoneradas + inafectas + IGV. Lista vacía devuelve ceros.
func ComputeDocumentTotals(items []*entity.DocumentItem) TaxTotals {
	var t TaxTotals
	for _, item := range items {
		line := ComputeLine(item)
		switch line.AffectationCode {
		case sunat.AffectationTaxed:
			t.SubtotalTaxed = t.SubtotalTaxed.Add(line.LineTotal)
		case sunat.AffectationExonerated:
			t.SubtotalExonerated = t.SubtotalExonerated.Add(line.LineTotal)
		default:
			t.SubtotalUnaffected = t.SubtotalUnaffected.Add(line.LineTotal)
		}
		t.TotalDiscount = t.TotalDiscount.Add(line.Discount)
		t.TotalTax = t.TotalTax.Add(line.TaxAmount)
	}
	t.GrandTotal = t.SubtotalTaxed.Add(t.SubtotalExonerated).Add(t.SubtotalUnaffected).Add(t.TotalTax)
	return t
}

// ApplyTotals recalcula líneas y cabecera del comprobante en sitio.
func ApplyTotals(doc *entity.ElectronicDocument) TaxTotals {
	for _, item := range doc.Items {
		line := ComputeLine(item)
		item.AffectationCode = line.AffectationCode
		item.LineTotal = line.LineTotal
		item.TaxAmount = line.TaxAmount
	}
	t := ComputeDocumentTotals(doc.Items)
	doc.SubtotalTaxed = t.SubtotalTaxed
	doc.SubtotalExonerated = t.SubtotalExonerated
	doc.SubtotalUnaffected = t.SubtotalUnaffected
	doc.TotalDiscount = t.TotalDiscount
	doc.TotalTax = t.TotalTax
	doc.GrandTotal = t.GrandTotal
	return t
}
