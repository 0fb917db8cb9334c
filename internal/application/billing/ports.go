package billing

import (
	"context"
	"time"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	domsunat "github.com/jhoicas/erp-sunat-api/internal/domain/sunat"
)

// GatewayStatus resolución informada por SUNAT.
type GatewayStatus string

const (
	GatewayAccepted  GatewayStatus = "ACCEPTED"
	GatewayRejected  GatewayStatus = "REJECTED"
	GatewayInProcess GatewayStatus = "IN_PROCESS" // ticket aún sin CDR
)

// TaxGateway puerto hacia SUNAT: genera y firma el XML, lo envía, consulta tickets
// y comunica bajas. Los errores de red deben envolver domain.ErrTransport y los de
// construcción/firma domain.ErrGeneration.
type TaxGateway interface {
	Generate(ctx context.Context, req GenerateRequest) (*GeneratedDocument, error)
	Submit(ctx context.Context, req SubmitRequest) (*GatewayResponse, error)
	CheckStatus(ctx context.Context, req StatusRequest) (*GatewayResponse, error)
	Void(ctx context.Context, req VoidRequest) (*GatewayResponse, error)
}

// ConnectionTester verifica credenciales SOL contra el servicio (opcional en el gateway).
type ConnectionTester interface {
	Ping(ctx context.Context, cfg *entity.BillingConfig) error
}

// GenerateRequest datos para construir el XML UBL 2.1.
type GenerateRequest struct {
	Config   *entity.BillingConfig
	Document *entity.ElectronicDocument // líneas ya recalculadas
	Customer *entity.Party              // nil en boletas sin cliente identificado
	Totals   domsunat.TaxTotals
}

// GeneratedDocument XML firmado y su código hash (DigestValue).
type GeneratedDocument struct {
	XML  []byte
	Hash string
}

// SubmitRequest envío del XML firmado.
type SubmitRequest struct {
	Config   *entity.BillingConfig
	Document *entity.ElectronicDocument
	XML      []byte
}

// StatusRequest consulta de un ticket previamente devuelto por Submit o Void.
type StatusRequest struct {
	Config   *entity.BillingConfig
	Document *entity.ElectronicDocument
	Ticket   string
}

// VoidRequest comunicación de baja de un comprobante aceptado.
type VoidRequest struct {
	Config   *entity.BillingConfig
	Document *entity.ElectronicDocument
	Reason   string
	Date     time.Time
}

// GatewayResponse respuesta normalizada de SUNAT.
type GatewayResponse struct {
	Status       GatewayStatus
	Ticket       string
	CDR          []byte // ZIP de constancia de recepción tal como lo entrega SUNAT
	ResponseCode string
	Description  string
	Observations []string
}

// PDFGenerator genera la representación impresa del comprobante.
type PDFGenerator interface {
	GenerateDocumentPDF(ctx context.Context, data *PDFData) ([]byte, error)
}

// PDFData todo lo que necesita el generador de PDF.
type PDFData struct {
	Company  *entity.Company
	Document *entity.ElectronicDocument
	Customer *entity.Party
	QRData   string
}

// CertificateInfo datos relevantes de un certificado digital cargado.
type CertificateInfo struct {
	Subject      string
	Issuer       string
	SerialNumber string
	NotBefore    time.Time
	NotAfter     time.Time
}

// CertificateInspector abre un certificado (.p12/.pfx/.pem) y valida la contraseña.
type CertificateInspector interface {
	Inspect(data []byte, fileName, password string) (*CertificateInfo, error)
}

// CertificateStore guarda el archivo del certificado y devuelve la ruta relativa persistida.
// Remove borra un archivo devuelto por Save; si ya no existe no es error.
type CertificateStore interface {
	Save(ctx context.Context, companyID, fileName string, data []byte) (string, error)
	Remove(ctx context.Context, companyID, path string) error
}
