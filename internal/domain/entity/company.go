package entity

import "time"

// Company empresa emisora (multi-tenant).
type Company struct {
	ID           string
	RUC          string
	LegalName    string
	TradeName    string
	Address      string
	UbigeoCode   string // código de ubicación geográfica INEI
	Email        string
	Phone        string
	CurrencyCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BillingConfig credenciales y certificado de la empresa para SUNAT.
// No se serializa hacia la API: SolPassword y CertPassword nunca salen del backend.
type BillingConfig struct {
	CompanyID    string
	RUC          string
	LegalName    string
	TradeName    string
	Address      string
	UbigeoCode   string
	SolUser      string
	SolPassword  string
	CertPath     string
	CertPassword string
	ClientID     string // API REST de guías (opcional)
	ClientSecret string
	Production   bool
	UpdatedAt    time.Time
}

// HasConfig indica si hay lo mínimo para firmar y enviar: usuario SOL y certificado.
func (c *BillingConfig) HasConfig() bool {
	return c != nil && c.SolUser != "" && c.SolPassword != "" && c.CertPath != ""
}
