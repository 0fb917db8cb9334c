package dto

import "time"

// CompanyResponse datos públicos de la empresa emisora (sin credenciales SUNAT).
type CompanyResponse struct {
	ID           string    `json:"id"`
	RUC          string    `json:"ruc"`
	LegalName    string    `json:"legal_name"`
	TradeName    string    `json:"trade_name,omitempty"`
	Address      string    `json:"address,omitempty"`
	UbigeoCode   string    `json:"ubigeo_code,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	CurrencyCode string    `json:"currency_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
