package dto

import "github.com/shopspring/decimal"

// CreateDocumentRequest body para POST /api/electronic-documents.
// El correlativo lo asigna el sistema (máximo + 1 por serie).
type CreateDocumentRequest struct {
	CustomerID        string                `json:"customer_id"`
	DocType           string                `json:"doc_type"` // 01 factura, 03 boleta, 07 NC, 08 ND
	Series            string                `json:"series"`
	IssueDate         string                `json:"issue_date,omitempty"` // YYYY-MM-DD; vacío = hoy
	CurrencyCode      string                `json:"currency_code,omitempty"`
	ExchangeRate      decimal.Decimal       `json:"exchange_rate,omitempty"`
	ReferenceDocument string                `json:"reference_document,omitempty"`
	Items             []DocumentItemRequest `json:"items"`
}

// DocumentItemRequest línea del comprobante.
type DocumentItemRequest struct {
	ProductID       string          `json:"product_id,omitempty"`
	Description     string          `json:"description"`
	UnitCode        string          `json:"unit_code,omitempty"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPct     decimal.Decimal `json:"discount_pct,omitempty"`
	AffectationCode string          `json:"affectation_code,omitempty"`
}

// ElectronicDocumentResponse comprobante en respuestas (sin XML ni CDR).
type ElectronicDocumentResponse struct {
	ID                 string                 `json:"id"`
	CompanyID          string                 `json:"company_id"`
	CustomerID         string                 `json:"customer_id,omitempty"`
	DocType            string                 `json:"doc_type"`
	Series             string                 `json:"series"`
	Number             int64                  `json:"number"`
	FullNumber         string                 `json:"full_number"`
	IssueDate          string                 `json:"issue_date"`
	CurrencyCode       string                 `json:"currency_code"`
	SubtotalTaxed      decimal.Decimal        `json:"subtotal_taxed"`
	SubtotalExonerated decimal.Decimal        `json:"subtotal_exonerated"`
	SubtotalUnaffected decimal.Decimal        `json:"subtotal_unaffected"`
	TotalDiscount      decimal.Decimal        `json:"total_discount"`
	TotalTax           decimal.Decimal        `json:"total_tax"`
	GrandTotal         decimal.Decimal        `json:"grand_total"`
	Status             string                 `json:"status"`
	StatusLabel        string                 `json:"status_label"`
	Ticket             string                 `json:"ticket,omitempty"`
	Hash               string                 `json:"hash,omitempty"`
	HasXML             bool                   `json:"has_xml"`
	HasCDR             bool                   `json:"has_cdr"`
	ErrorMessage       string                 `json:"error_message,omitempty"`
	Observations       []string               `json:"observations,omitempty"`
	CanRetry           bool                   `json:"can_retry"`
	CanCancel          bool                   `json:"can_cancel"`
	VoidReason         string                 `json:"void_reason,omitempty"`
	VoidStatus         string                 `json:"void_status,omitempty"`
	Items              []DocumentItemResponse `json:"items,omitempty"`
}

// DocumentItemResponse línea en la respuesta.
type DocumentItemResponse struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"product_id,omitempty"`
	Description     string          `json:"description"`
	UnitCode        string          `json:"unit_code"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPct     decimal.Decimal `json:"discount_pct"`
	AffectationCode string          `json:"affectation_code"`
	LineTotal       decimal.Decimal `json:"line_total"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
}

// DocumentListResponse listado paginado.
type DocumentListResponse struct {
	Items []ElectronicDocumentResponse `json:"items"`
	Page  PageResponse                 `json:"page"`
}

// DocumentStatsResponse conteos para el tablero de facturación.
type DocumentStatsResponse struct {
	Total             int            `json:"total"`
	ByStatus          map[string]int `json:"by_status"`
	PendingSubmission int            `json:"pending_submission"` // DRAFT + PENDING
	Errors            int            `json:"errors"`             // ERROR + REJECTED
}

// BatchRequest body para POST /api/electronic-documents/batch.
type BatchRequest struct {
	DocumentIDs   []string `json:"document_ids"`
	MaxConcurrent int      `json:"max_concurrent,omitempty"`
	ChunkDelayMS  int      `json:"chunk_delay_ms,omitempty"`
}

// RetryRequest body opcional para POST /:id/retry.
type RetryRequest struct {
	MaxAttempts       int     `json:"max_attempts,omitempty"`
	DelaySeconds      int     `json:"delay_seconds,omitempty"`
	BackoffMultiplier float64 `json:"backoff_multiplier,omitempty"`
}

// CancelRequest body para POST /:id/cancel.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// BillingStatusResponse resumen de la configuración SUNAT de la empresa.
type BillingStatusResponse struct {
	HasConfig         bool   `json:"has_config"`
	ProductionMode    bool   `json:"production_mode"`
	SolUserConfigured bool   `json:"sol_user_configured"`
	CertConfigured    bool   `json:"cert_configured"`
	APIConfigured     bool   `json:"api_configured"`
	Environment       string `json:"environment"`
}

// ConfigureBillingRequest body para PUT /api/billing-config.
// Las contraseñas vacías conservan el valor almacenado.
type ConfigureBillingRequest struct {
	SolUser      string `json:"sol_user"`
	SolPassword  string `json:"sol_password,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Production   bool   `json:"production"`
}

// SwitchEnvironmentRequest body para PUT /api/billing-config/environment.
type SwitchEnvironmentRequest struct {
	Production bool `json:"production"`
}

// ConfigValidationResponse resultado de validar la configuración.
type ConfigValidationResponse struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// CertificateResponse datos del certificado cargado.
type CertificateResponse struct {
	Path         string `json:"path"`
	Subject      string `json:"subject"`
	Issuer       string `json:"issuer"`
	SerialNumber string `json:"serial_number"`
	ValidFrom    string `json:"valid_from"`
	ValidTo      string `json:"valid_to"`
}

// ConnectionTestResponse resultado de probar credenciales SOL.
type ConnectionTestResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Environment string `json:"environment"`
}
