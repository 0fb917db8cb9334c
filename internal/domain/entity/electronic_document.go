package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentStatus estado del comprobante frente a SUNAT.
type DocumentStatus string

const (
	StatusDraft      DocumentStatus = "DRAFT"      // creado por ventas, sin XML
	StatusGenerating DocumentStatus = "GENERATING" // construyendo y firmando XML
	StatusPending    DocumentStatus = "PENDING"    // XML firmado, pendiente de envío
	StatusSubmitted  DocumentStatus = "SUBMITTED"  // enviado, esperando resolución
	StatusAccepted   DocumentStatus = "ACCEPTED"   // CDR de aceptación
	StatusRejected   DocumentStatus = "REJECTED"   // CDR de rechazo
	StatusError      DocumentStatus = "ERROR"      // fallo de generación o transporte
	StatusCancelled  DocumentStatus = "CANCELLED"  // comunicación de baja enviada
)

// VoidStatus resolución de la comunicación de baja; vacío si nunca se pidió.
type VoidStatus string

const (
	VoidPending  VoidStatus = "PENDING" // ticket de baja sin CDR
	VoidAccepted VoidStatus = "ACCEPTED"
	VoidRejected VoidStatus = "REJECTED" // SUNAT no aceptó la baja; el comprobante sigue vigente
)

// AllStatuses orden de presentación en reportes.
var AllStatuses = []DocumentStatus{
	StatusDraft, StatusGenerating, StatusPending, StatusSubmitted,
	StatusAccepted, StatusRejected, StatusError, StatusCancelled,
}

// ElectronicDocument cabecera de un comprobante electrónico (factura, boleta, notas).
// XML y CDR se guardan siempre codificados en base64.
type ElectronicDocument struct {
	ID           string
	CompanyID    string
	CustomerID   string
	DocType      string // catálogo 01
	Series       string // F001, B001...
	Number       int64
	IssueDate    time.Time
	CurrencyCode string
	ExchangeRate decimal.Decimal // cero cuando la moneda es PEN

	SubtotalTaxed      decimal.Decimal
	SubtotalExonerated decimal.Decimal
	SubtotalUnaffected decimal.Decimal
	TotalDiscount      decimal.Decimal
	TotalTax           decimal.Decimal
	GrandTotal         decimal.Decimal

	Status       DocumentStatus
	Ticket       string
	XML          string
	CDR          string
	Hash         string
	ErrorMessage string
	Observations []string
	VoidReason   string
	VoidTicket   string
	VoidStatus   VoidStatus

	// ReferenceDocument comprobante afectado por una nota de crédito/débito ({SERIE}-{NUMERO}).
	ReferenceDocument string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []*DocumentItem
}

// HasXML indica si ya existe XML generado.
func (d *ElectronicDocument) HasXML() bool { return d.XML != "" }

// DocumentItem línea de detalle de un comprobante.
type DocumentItem struct {
	ID              string
	DocumentID      string
	ProductID       string
	Description     string
	UnitCode        string // catálogo 03
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal // valor unitario sin IGV
	DiscountPct     decimal.Decimal // 0..100
	AffectationCode string          // catálogo 07; vacío se trata como "10"
	LineTotal       decimal.Decimal // base imponible de la línea
	TaxAmount       decimal.Decimal
}

// DocumentCursor posición (updated_at, id) del último comprobante leído en un recorrido por páginas.
type DocumentCursor struct {
	UpdatedAt time.Time
	ID        string
}

// IsZero cursor al inicio del recorrido.
func (c DocumentCursor) IsZero() bool { return c.ID == "" }

// CursorOf posición inmediatamente posterior a doc.
func CursorOf(doc *ElectronicDocument) DocumentCursor {
	return DocumentCursor{UpdatedAt: doc.UpdatedAt, ID: doc.ID}
}

// DocumentFilter criterios de listado de comprobantes.
type DocumentFilter struct {
	Status   DocumentStatus
	DocType  string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}
