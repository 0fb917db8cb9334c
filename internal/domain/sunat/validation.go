package sunat

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

var (
	facturaSeries = regexp.MustCompile(`^F[A-Z0-9]{3}$`)
	boletaSeries  = regexp.MustCompile(`^B[A-Z0-9]{3}$`)
	affectation   = regexp.MustCompile(`^[1-4][0-9]$`)
)

// Escalas y topes de las columnas de electronic_document_items.
const (
	QuantityScale    int32 = 4 // NUMERIC(14,4)
	UnitPriceScale   int32 = 6 // NUMERIC(14,6)
	DiscountPctScale int32 = 2 // NUMERIC(5,2)
)

var (
	maxQuantity    = decimal.New(1, 10)
	maxUnitPrice   = decimal.New(1, 8)
	maxDiscountPct = decimal.NewFromInt(100)
)

// ValidateDocument revisa el comprobante antes de generar XML.
// Acumula todos los problemas y los devuelve unidos a domain.ErrInvalidInput.
func ValidateDocument(doc *entity.ElectronicDocument, issuerRUC string, customer *entity.Party) error {
	if doc == nil {
		return fmt.Errorf("%w: comprobante nulo", domain.ErrInvalidInput)
	}
	var errs []error

	if err := sunat.ValidateRUC(issuerRUC); err != nil {
		errs = append(errs, fmt.Errorf("emisor: %w", err))
	}
	if !sunat.ValidDocTypes[doc.DocType] {
		errs = append(errs, fmt.Errorf("tipo de comprobante desconocido %q", doc.DocType))
	}
	if err := validateSeries(doc.DocType, doc.Series); err != nil {
		errs = append(errs, err)
	}
	if doc.Number <= 0 {
		errs = append(errs, fmt.Errorf("el correlativo debe ser mayor a cero"))
	}
	if (doc.DocType == sunat.DocTypeNotaCredito || doc.DocType == sunat.DocTypeNotaDebito) && doc.ReferenceDocument == "" {
		errs = append(errs, fmt.Errorf("la nota requiere el comprobante de referencia"))
	}

	if !sunat.ValidCurrencies[doc.CurrencyCode] {
		errs = append(errs, fmt.Errorf("moneda no soportada %q", doc.CurrencyCode))
	} else if doc.CurrencyCode != sunat.CurrencyPEN && !doc.ExchangeRate.IsPositive() {
		errs = append(errs, fmt.Errorf("tipo de cambio requerido para moneda %s", doc.CurrencyCode))
	}

	errs = append(errs, validateItems(doc.Items)...)
	errs = append(errs, validateCustomer(doc.DocType, customer)...)

	if len(errs) > 0 {
		return errors.Join(append([]error{domain.ErrInvalidInput}, errs...)...)
	}
	return nil
}

func validateSeries(docType, series string) error {
	switch docType {
	case sunat.DocTypeFactura:
		if !facturaSeries.MatchString(series) {
			return fmt.Errorf("serie de factura inválida %q (F + 3 caracteres)", series)
		}
	case sunat.DocTypeBoleta:
		if !boletaSeries.MatchString(series) {
			return fmt.Errorf("serie de boleta inválida %q (B + 3 caracteres)", series)
		}
	default:
		if !facturaSeries.MatchString(series) && !boletaSeries.MatchString(series) {
			return fmt.Errorf("serie inválida %q", series)
		}
	}
	return nil
}

func validateItems(items []*entity.DocumentItem) []error {
	if len(items) == 0 {
		return []error{fmt.Errorf("el comprobante debe tener al menos un ítem")}
	}
	var errs []error
	for i, it := range items {
		n := i + 1
		if it.Description == "" {
			errs = append(errs, fmt.Errorf("ítem %d: descripción requerida", n))
		}
		for _, p := range amountProblems(it) {
			errs = append(errs, fmt.Errorf("ítem %d: %s", n, p))
		}
		if it.AffectationCode != "" && !affectation.MatchString(it.AffectationCode) {
			errs = append(errs, fmt.Errorf("ítem %d: código de afectación inválido %q", n, it.AffectationCode))
		}
	}
	return errs
}

// ValidateItemAmounts cantidad, precio y descuento dentro del rango y la escala que
// se persisten, para que los totales del borrador no cambien al releerlo.
func ValidateItemAmounts(it *entity.DocumentItem) error {
	problems := amountProblems(it)
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
}

func amountProblems(it *entity.DocumentItem) []string {
	var out []string
	switch {
	case !it.Quantity.IsPositive():
		out = append(out, "la cantidad debe ser mayor a cero")
	case !it.Quantity.LessThan(maxQuantity) || !fitsScale(it.Quantity, QuantityScale):
		out = append(out, fmt.Sprintf("cantidad %s excede 10 enteros o %d decimales", it.Quantity, QuantityScale))
	}
	switch {
	case it.UnitPrice.IsNegative():
		out = append(out, "el precio no puede ser negativo")
	case !it.UnitPrice.LessThan(maxUnitPrice) || !fitsScale(it.UnitPrice, UnitPriceScale):
		out = append(out, fmt.Sprintf("precio %s excede 8 enteros o %d decimales", it.UnitPrice, UnitPriceScale))
	}
	switch {
	case it.DiscountPct.IsNegative() || it.DiscountPct.GreaterThan(maxDiscountPct):
		out = append(out, "descuento fuera de rango 0-100")
	case !fitsScale(it.DiscountPct, DiscountPctScale):
		out = append(out, fmt.Sprintf("descuento %s admite %d decimales", it.DiscountPct, DiscountPctScale))
	}
	return out
}

// fitsScale ceros a la derecha no cuentan: 1.500 cabe en escala 1.
func fitsScale(d decimal.Decimal, scale int32) bool {
	return d.Equal(d.Truncate(scale))
}

func validateCustomer(docType string, customer *entity.Party) []error {
	if customer == nil {
		if docType == sunat.DocTypeFactura {
			return []error{fmt.Errorf("la factura requiere cliente con RUC")}
		}
		return nil
	}
	if docType == sunat.DocTypeFactura && customer.DocType != sunat.IdentityTypeRUC {
		return []error{fmt.Errorf("la factura requiere cliente con RUC")}
	}
	if err := sunat.ValidateIdentity(customer.DocType, customer.DocNumber); err != nil {
		return []error{fmt.Errorf("cliente: %w", err)}
	}
	return nil
}
