package entity

import "time"

// Party cliente (adquiriente) de un comprobante.
type Party struct {
	ID        string
	CompanyID string
	DocType   string // catálogo 06: "6" RUC, "1" DNI...
	DocNumber string
	Name      string
	Address   string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
