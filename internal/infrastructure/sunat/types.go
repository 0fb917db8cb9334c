// Package sunat implementa el gateway hacia SUNAT: XML UBL 2.1, firma, ZIP,
// servicio SOAP billService y lectura del CDR.
package sunat

import (
	"time"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	domsunat "github.com/jhoicas/erp-sunat-api/internal/domain/sunat"
)

// DocumentBuildContext datos para construir factura, boleta o nota.
type DocumentBuildContext struct {
	Issuer   *entity.BillingConfig // emisor (AccountingSupplierParty)
	Document *entity.ElectronicDocument
	Customer *entity.Party // nil en boletas sin cliente identificado
	Totals   domsunat.TaxTotals
}

// VoidBuildContext datos de una comunicación de baja (RA).
type VoidBuildContext struct {
	Issuer    *entity.BillingConfig
	Document  *entity.ElectronicDocument
	ID        string // RA-AAAAMMDD-correlativo
	IssueDate time.Time
	Reason    string
}
