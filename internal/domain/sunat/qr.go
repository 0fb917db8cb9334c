package sunat

import (
	"strconv"
	"strings"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

// BuildQRData arma el contenido del QR de la representación impresa:
// RUC|TIPO|SERIE|NUMERO|IGV|TOTAL|FECHA|TIPODOCADQ|NUMDOCADQ|HASH|
func BuildQRData(issuerRUC string, doc *entity.ElectronicDocument, customer *entity.Party) string {
	var custType, custNumber string
	if customer != nil {
		custType, custNumber = customer.DocType, customer.DocNumber
	}
	parts := []string{
		issuerRUC,
		doc.DocType,
		doc.Series,
		strconv.FormatInt(doc.Number, 10),
		doc.TotalTax.Round(2).StringFixed(2),
		doc.GrandTotal.Round(2).StringFixed(2),
		doc.IssueDate.Format("2006-01-02"),
		custType,
		custNumber,
		doc.Hash,
	}
	return strings.Join(parts, "|") + "|"
}
