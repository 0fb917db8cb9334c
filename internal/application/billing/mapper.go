package billing

import (
	"fmt"

	"github.com/jhoicas/erp-sunat-api/internal/application/dto"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	domsunat "github.com/jhoicas/erp-sunat-api/internal/domain/sunat"
)

func toDocumentResponse(doc *entity.ElectronicDocument) dto.ElectronicDocumentResponse {
	out := dto.ElectronicDocumentResponse{
		ID:                 doc.ID,
		CompanyID:          doc.CompanyID,
		CustomerID:         doc.CustomerID,
		DocType:            doc.DocType,
		Series:             doc.Series,
		Number:             doc.Number,
		FullNumber:         fmt.Sprintf("%s-%d", doc.Series, doc.Number),
		IssueDate:          doc.IssueDate.Format("2006-01-02"),
		CurrencyCode:       doc.CurrencyCode,
		SubtotalTaxed:      doc.SubtotalTaxed,
		SubtotalExonerated: doc.SubtotalExonerated,
		SubtotalUnaffected: doc.SubtotalUnaffected,
		TotalDiscount:      doc.TotalDiscount,
		TotalTax:           doc.TotalTax,
		GrandTotal:         doc.GrandTotal,
		Status:             string(doc.Status),
		StatusLabel:        domsunat.Label(doc.Status),
		Ticket:             doc.Ticket,
		Hash:               doc.Hash,
		HasXML:             doc.HasXML(),
		HasCDR:             doc.CDR != "",
		ErrorMessage:       doc.ErrorMessage,
		Observations:       doc.Observations,
		CanRetry:           domsunat.CanRetry(doc.Status),
		CanCancel:          domsunat.CanCancel(doc.Status),
		VoidReason:         doc.VoidReason,
		VoidStatus:         string(doc.VoidStatus),
	}
	for _, it := range doc.Items {
		out.Items = append(out.Items, dto.DocumentItemResponse{
			ID:              it.ID,
			ProductID:       it.ProductID,
			Description:     it.Description,
			UnitCode:        it.UnitCode,
			Quantity:        it.Quantity,
			UnitPrice:       it.UnitPrice,
			DiscountPct:     it.DiscountPct,
			AffectationCode: it.AffectationCode,
			LineTotal:       it.LineTotal,
			TaxAmount:       it.TaxAmount,
		})
	}
	return out
}
