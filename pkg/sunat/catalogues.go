// Package sunat contiene catálogos y validaciones de la facturación electrónica
// SUNAT (Perú) según los anexos de la R.S. 097-2012/SUNAT y modificatorias.
package sunat

// =============================================================================
// Catálogo 01 - Tipo de documento
// =============================================================================

const (
	DocTypeFactura     = "01"
	DocTypeBoleta      = "03"
	DocTypeNotaCredito = "07"
	DocTypeNotaDebito  = "08"
)

// ValidDocTypes tipos de comprobante soportados.
var ValidDocTypes = map[string]bool{
	DocTypeFactura: true, DocTypeBoleta: true, DocTypeNotaCredito: true, DocTypeNotaDebito: true,
}

// DocTypeLabels nombre legible por tipo (representación impresa).
var DocTypeLabels = map[string]string{
	DocTypeFactura:     "FACTURA ELECTRÓNICA",
	DocTypeBoleta:      "BOLETA DE VENTA ELECTRÓNICA",
	DocTypeNotaCredito: "NOTA DE CRÉDITO ELECTRÓNICA",
	DocTypeNotaDebito:  "NOTA DE DÉBITO ELECTRÓNICA",
}

// =============================================================================
// Catálogo 06 - Tipo de documento de identidad
// =============================================================================

const (
	IdentityTypeNoDomiciliado = "0"
	IdentityTypeDNI           = "1"
	IdentityTypeCarnetExt     = "4"
	IdentityTypeRUC           = "6"
	IdentityTypePasaporte     = "7"
)

// IdentityTypeLabels nombres de los tipos de documento de identidad.
var IdentityTypeLabels = map[string]string{
	IdentityTypeNoDomiciliado: "DOC.TRIB.NO.DOM.SIN.RUC",
	IdentityTypeDNI:           "DNI",
	IdentityTypeCarnetExt:     "CARNET DE EXTRANJERÍA",
	IdentityTypeRUC:           "RUC",
	IdentityTypePasaporte:     "PASAPORTE",
}

// =============================================================================
// Catálogo 07 - Tipo de afectación del IGV
// Solo se distinguen los tres grupos que determinan la base imponible.
// =============================================================================

const (
	AffectationTaxed      = "10" // Gravado - Operación onerosa
	AffectationExonerated = "20" // Exonerado - Operación onerosa
	AffectationUnaffected = "30" // Inafecto - Operación onerosa
)

// =============================================================================
// Catálogo 05 - Códigos de tributos
// =============================================================================

const (
	TributeIGV        = "1000"
	TributeExonerated = "9997"
	TributeUnaffected = "9998"
)

// Tribute describe un tributo del catálogo 05 tal como va en cac:TaxScheme.
type Tribute struct {
	Code         string
	Name         string
	TypeCode     string
	CategoryCode string // catálogo 05 - categoría (S, E, O)
}

// TributeForAffectation devuelve el tributo que corresponde a un código de afectación.
func TributeForAffectation(code string) Tribute {
	switch code {
	case AffectationTaxed:
		return Tribute{Code: TributeIGV, Name: "IGV", TypeCode: "VAT", CategoryCode: "S"}
	case AffectationExonerated:
		return Tribute{Code: TributeExonerated, Name: "EXO", TypeCode: "VAT", CategoryCode: "E"}
	default:
		return Tribute{Code: TributeUnaffected, Name: "INA", TypeCode: "FRE", CategoryCode: "O"}
	}
}

// =============================================================================
// Catálogo 02 - Monedas (ISO 4217)
// =============================================================================

const (
	CurrencyPEN = "PEN"
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

// ValidCurrencies monedas aceptadas en comprobantes.
var ValidCurrencies = map[string]bool{CurrencyPEN: true, CurrencyUSD: true, CurrencyEUR: true}

// =============================================================================
// Catálogo 03 - Unidades de medida (uso frecuente)
// =============================================================================

const (
	UnitUnidad   = "NIU" // Unidad (bienes)
	UnitServicio = "ZZ"  // Unidad (servicios)
	UnitKilogram = "KGM"
	UnitLitre    = "LTR"
	UnitBox      = "BX"
)

// =============================================================================
// Catálogo 51 - Tipo de operación
// =============================================================================

const OperationVentaInterna = "0101"

// UBL y customización exigidos por SUNAT.
const (
	UBLVersion    = "2.1"
	Customization = "2.0"
)
