package sunat

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	domsunat "github.com/jhoicas/erp-sunat-api/internal/domain/sunat"
	"github.com/jhoicas/erp-sunat-api/internal/infrastructure/sunat/signer"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

// Namespaces UBL 2.1 y extensiones SUNAT.
const (
	NsInvoice    = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NsCreditNote = "urn:oasis:names:specification:ubl:schema:xsd:CreditNote-2"
	NsDebitNote  = "urn:oasis:names:specification:ubl:schema:xsd:DebitNote-2"
	NsVoided     = "urn:sunat:names:specification:ubl:peru:schema:xsd:VoidedDocuments-1"
	NsCac        = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NsCbc        = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NsExt        = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	NsDs         = "http://www.w3.org/2000/09/xmldsig#"
	NsSac        = "urn:sunat:names:specification:ubl:peru:schema:xsd:SunatAggregateComponents-1"
)

// Catálogos 09 y 10: motivo por defecto de notas de crédito y débito.
const (
	creditNoteReason = "01" // Anulación de la operación
	debitNoteReason  = "02" // Aumento en el valor
)

// docProfile nombres de elementos que cambian según el tipo de comprobante.
type docProfile struct {
	root          string
	namespace     string
	typeCode      bool // solo Invoice lleva cbc:InvoiceTypeCode
	line          string
	quantity      string
	monetaryTotal string
}

var profiles = map[string]docProfile{
	sunat.DocTypeFactura:     {"Invoice", NsInvoice, true, "InvoiceLine", "InvoicedQuantity", "LegalMonetaryTotal"},
	sunat.DocTypeBoleta:      {"Invoice", NsInvoice, true, "InvoiceLine", "InvoicedQuantity", "LegalMonetaryTotal"},
	sunat.DocTypeNotaCredito: {"CreditNote", NsCreditNote, false, "CreditNoteLine", "CreditedQuantity", "LegalMonetaryTotal"},
	sunat.DocTypeNotaDebito:  {"DebitNote", NsDebitNote, false, "DebitNoteLine", "DebitedQuantity", "RequestedMonetaryTotal"},
}

// XMLBuilderService construye el XML UBL 2.1 (sin firma) con el perfil SUNAT.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera factura, boleta, nota de crédito o nota de débito.
// El primer hijo es ext:UBLExtensions con un ExtensionContent vacío donde el firmador
// inyecta ds:Signature.
func (s *XMLBuilderService) Build(ctx *DocumentBuildContext) ([]byte, error) {
	if ctx == nil || ctx.Document == nil || ctx.Issuer == nil {
		return nil, fmt.Errorf("sunat: faltan comprobante o emisor en el contexto")
	}
	doc := ctx.Document
	profile, ok := profiles[doc.DocType]
	if !ok {
		return nil, fmt.Errorf("sunat: tipo de comprobante %q no soportado", doc.DocType)
	}
	currency := doc.CurrencyCode

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: profile.root},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: profile.namespace},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:ext"}, Value: NsExt},
		},
	}
	_ = enc.EncodeToken(root)
	writeUBLExtensions(enc)

	writeCbc(enc, "UBLVersionID", sunat.UBLVersion)
	writeCbc(enc, "CustomizationID", sunat.Customization)
	writeCbc(enc, "ID", fmt.Sprintf("%s-%d", doc.Series, doc.Number))
	writeCbc(enc, "IssueDate", doc.IssueDate.Format("2006-01-02"))
	if profile.typeCode {
		writeCbcWithAttr(enc, "InvoiceTypeCode", doc.DocType, "listID", sunat.OperationVentaInterna)
	}
	writeCbc(enc, "DocumentCurrencyCode", currency)
	if !profile.typeCode {
		writeReferences(enc, doc.DocType, doc.ReferenceDocument)
	}

	writeSignatureReference(enc, ctx.Issuer)
	writeSupplierParty(enc, ctx.Issuer)
	writeCustomerParty(enc, ctx.Customer)
	writeTaxTotal(enc, ctx.Totals, currency)
	writeMonetaryTotal(enc, profile.monetaryTotal, ctx.Totals, currency)

	for i, item := range doc.Items {
		line := domsunat.ComputeLine(item)
		start(enc, "cac:"+profile.line)
		writeCbc(enc, "ID", strconv.Itoa(i+1))
		writeCbcWithAttr(enc, profile.quantity, item.Quantity.String(), "unitCode", unitOrDefault(item.UnitCode))
		writeCbcAmount(enc, "LineExtensionAmount", line.LineTotal, currency)

		// Precio unitario con impuestos (catálogo 16, tipo 01)
		unitWithTax := decimal.Zero
		if item.Quantity.IsPositive() {
			unitWithTax = line.Total.Div(item.Quantity)
		}
		start(enc, "cac:PricingReference")
		start(enc, "cac:AlternativeConditionPrice")
		writeCbcAmount(enc, "PriceAmount", unitWithTax, currency)
		writeCbc(enc, "PriceTypeCode", "01")
		end(enc, "cac:AlternativeConditionPrice")
		end(enc, "cac:PricingReference")

		start(enc, "cac:TaxTotal")
		writeCbcAmount(enc, "TaxAmount", line.TaxAmount, currency)
		writeTaxSubtotal(enc, line.AffectationCode, line.LineTotal, line.TaxAmount, currency, true)
		end(enc, "cac:TaxTotal")

		start(enc, "cac:Item")
		writeCbc(enc, "Description", item.Description)
		if item.ProductID != "" {
			start(enc, "cac:SellersItemIdentification")
			writeCbc(enc, "ID", item.ProductID)
			end(enc, "cac:SellersItemIdentification")
		}
		end(enc, "cac:Item")

		start(enc, "cac:Price")
		writeCbcAmount(enc, "PriceAmount", item.UnitPrice, currency)
		end(enc, "cac:Price")
		end(enc, "cac:"+profile.line)
	}

	_ = enc.EncodeToken(root.End())
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("sunat: serializar XML: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildVoided genera la comunicación de baja (VoidedDocuments) de un comprobante.
func (s *XMLBuilderService) BuildVoided(ctx *VoidBuildContext) ([]byte, error) {
	if ctx == nil || ctx.Document == nil || ctx.Issuer == nil {
		return nil, fmt.Errorf("sunat: faltan comprobante o emisor en el contexto")
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "VoidedDocuments"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NsVoided},
			{Name: xml.Name{Local: "xmlns:cac"}, Value: NsCac},
			{Name: xml.Name{Local: "xmlns:cbc"}, Value: NsCbc},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
			{Name: xml.Name{Local: "xmlns:ext"}, Value: NsExt},
			{Name: xml.Name{Local: "xmlns:sac"}, Value: NsSac},
		},
	}
	_ = enc.EncodeToken(root)
	writeUBLExtensions(enc)
	writeCbc(enc, "UBLVersionID", "2.0")
	writeCbc(enc, "CustomizationID", "1.0")
	writeCbc(enc, "ID", ctx.ID)
	writeCbc(enc, "ReferenceDate", ctx.Document.IssueDate.Format("2006-01-02"))
	writeCbc(enc, "IssueDate", ctx.IssueDate.Format("2006-01-02"))
	writeSignatureReference(enc, ctx.Issuer)

	start(enc, "cac:AccountingSupplierParty")
	writeCbc(enc, "CustomerAssignedAccountID", ctx.Issuer.RUC)
	writeCbc(enc, "AdditionalAccountID", sunat.IdentityTypeRUC)
	start(enc, "cac:Party")
	start(enc, "cac:PartyLegalEntity")
	writeCbc(enc, "RegistrationName", ctx.Issuer.LegalName)
	end(enc, "cac:PartyLegalEntity")
	end(enc, "cac:Party")
	end(enc, "cac:AccountingSupplierParty")

	start(enc, "sac:VoidedDocumentsLine")
	writeCbc(enc, "LineID", "1")
	writeCbc(enc, "DocumentTypeCode", ctx.Document.DocType)
	writeLeaf(enc, "sac:DocumentSerialID", ctx.Document.Series)
	writeLeaf(enc, "sac:DocumentNumberID", strconv.FormatInt(ctx.Document.Number, 10))
	writeLeaf(enc, "sac:VoidReasonDescription", ctx.Reason)
	end(enc, "sac:VoidedDocumentsLine")

	_ = enc.EncodeToken(root.End())
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("sunat: serializar XML de baja: %w", err)
	}
	return buf.Bytes(), nil
}

// ── bloques comunes ───────────────────────────────────────────────────────────

func writeUBLExtensions(enc *xml.Encoder) {
	start(enc, "ext:UBLExtensions")
	start(enc, "ext:UBLExtension")
	start(enc, "ext:ExtensionContent")
	end(enc, "ext:ExtensionContent")
	end(enc, "ext:UBLExtension")
	end(enc, "ext:UBLExtensions")
}

// writeReferences motivo y comprobante afectado de una nota. ref tiene la forma SERIE-NUMERO.
func writeReferences(enc *xml.Encoder, docType, ref string) {
	code, description := creditNoteReason, "Anulación de la operación"
	if docType == sunat.DocTypeNotaDebito {
		code, description = debitNoteReason, "Aumento en el valor"
	}
	start(enc, "cac:DiscrepancyResponse")
	writeCbc(enc, "ReferenceID", ref)
	writeCbc(enc, "ResponseCode", code)
	writeCbc(enc, "Description", description)
	end(enc, "cac:DiscrepancyResponse")

	start(enc, "cac:BillingReference")
	start(enc, "cac:InvoiceDocumentReference")
	writeCbc(enc, "ID", ref)
	writeCbc(enc, "DocumentTypeCode", referencedType(ref))
	end(enc, "cac:InvoiceDocumentReference")
	end(enc, "cac:BillingReference")
}

func referencedType(ref string) string {
	if strings.HasPrefix(strings.ToUpper(ref), "B") {
		return sunat.DocTypeBoleta
	}
	return sunat.DocTypeFactura
}

// writeSignatureReference cac:Signature apunta al ds:Signature con Id SignSUNAT.
func writeSignatureReference(enc *xml.Encoder, issuer *entity.BillingConfig) {
	start(enc, "cac:Signature")
	writeCbc(enc, "ID", issuer.RUC)
	start(enc, "cac:SignatoryParty")
	start(enc, "cac:PartyIdentification")
	writeCbc(enc, "ID", issuer.RUC)
	end(enc, "cac:PartyIdentification")
	start(enc, "cac:PartyName")
	writeCbc(enc, "Name", issuer.LegalName)
	end(enc, "cac:PartyName")
	end(enc, "cac:SignatoryParty")
	start(enc, "cac:DigitalSignatureAttachment")
	start(enc, "cac:ExternalReference")
	writeCbc(enc, "URI", "#"+signer.SignatureID)
	end(enc, "cac:ExternalReference")
	end(enc, "cac:DigitalSignatureAttachment")
	end(enc, "cac:Signature")
}

func writeSupplierParty(enc *xml.Encoder, issuer *entity.BillingConfig) {
	start(enc, "cac:AccountingSupplierParty")
	start(enc, "cac:Party")
	start(enc, "cac:PartyIdentification")
	writeCbcWithAttr(enc, "ID", issuer.RUC, "schemeID", sunat.IdentityTypeRUC)
	end(enc, "cac:PartyIdentification")
	if issuer.TradeName != "" {
		start(enc, "cac:PartyName")
		writeCbc(enc, "Name", issuer.TradeName)
		end(enc, "cac:PartyName")
	}
	start(enc, "cac:PartyLegalEntity")
	writeCbc(enc, "RegistrationName", issuer.LegalName)
	start(enc, "cac:RegistrationAddress")
	if issuer.UbigeoCode != "" {
		writeCbc(enc, "ID", issuer.UbigeoCode)
	}
	writeCbc(enc, "AddressTypeCode", "0000") // establecimiento anexo: domicilio fiscal
	if issuer.Address != "" {
		start(enc, "cac:AddressLine")
		writeCbc(enc, "Line", issuer.Address)
		end(enc, "cac:AddressLine")
	}
	end(enc, "cac:RegistrationAddress")
	end(enc, "cac:PartyLegalEntity")
	end(enc, "cac:Party")
	end(enc, "cac:AccountingSupplierParty")
}

// writeCustomerParty sin cliente identificado se usa el genérico de boletas.
func writeCustomerParty(enc *xml.Encoder, customer *entity.Party) {
	docType, number, name := sunat.IdentityTypeNoDomiciliado, "-", "CLIENTES VARIOS"
	if customer != nil {
		docType, number, name = customer.DocType, customer.DocNumber, customer.Name
	}
	start(enc, "cac:AccountingCustomerParty")
	start(enc, "cac:Party")
	start(enc, "cac:PartyIdentification")
	writeCbcWithAttr(enc, "ID", number, "schemeID", docType)
	end(enc, "cac:PartyIdentification")
	start(enc, "cac:PartyLegalEntity")
	writeCbc(enc, "RegistrationName", name)
	if customer != nil && customer.Address != "" {
		start(enc, "cac:RegistrationAddress")
		start(enc, "cac:AddressLine")
		writeCbc(enc, "Line", customer.Address)
		end(enc, "cac:AddressLine")
		end(enc, "cac:RegistrationAddress")
	}
	end(enc, "cac:PartyLegalEntity")
	end(enc, "cac:Party")
	end(enc, "cac:AccountingCustomerParty")
}

// writeTaxTotal un TaxSubtotal por grupo de afectación con base distinta de cero.
// Si no hay ninguna base se informa el IGV en cero.
func writeTaxTotal(enc *xml.Encoder, t domsunat.TaxTotals, currency string) {
	start(enc, "cac:TaxTotal")
	writeCbcAmount(enc, "TaxAmount", t.TotalTax, currency)
	wrote := false
	buckets := []struct {
		code string
		base decimal.Decimal
		tax  decimal.Decimal
	}{
		{sunat.AffectationTaxed, t.SubtotalTaxed, t.TotalTax},
		{sunat.AffectationExonerated, t.SubtotalExonerated, decimal.Zero},
		{sunat.AffectationUnaffected, t.SubtotalUnaffected, decimal.Zero},
	}
	for _, b := range buckets {
		if b.base.IsZero() {
			continue
		}
		writeTaxSubtotal(enc, b.code, b.base, b.tax, currency, false)
		wrote = true
	}
	if !wrote {
		writeTaxSubtotal(enc, sunat.AffectationTaxed, decimal.Zero, decimal.Zero, currency, false)
	}
	end(enc, "cac:TaxTotal")
}

// writeTaxSubtotal a nivel de línea incluye porcentaje y código de afectación (catálogo 07).
func writeTaxSubtotal(enc *xml.Encoder, affectation string, base, tax decimal.Decimal, currency string, line bool) {
	tribute := sunat.TributeForAffectation(affectation)
	start(enc, "cac:TaxSubtotal")
	writeCbcAmount(enc, "TaxableAmount", base, currency)
	writeCbcAmount(enc, "TaxAmount", tax, currency)
	start(enc, "cac:TaxCategory")
	writeCbc(enc, "ID", tribute.CategoryCode)
	if line {
		percent := "0"
		if tribute.Code == sunat.TributeIGV {
			percent = domsunat.IGVRate.Mul(decimal.NewFromInt(100)).String()
		}
		writeCbc(enc, "Percent", percent)
		writeCbc(enc, "TaxExemptionReasonCode", affectation)
	}
	start(enc, "cac:TaxScheme")
	writeCbc(enc, "ID", tribute.Code)
	writeCbc(enc, "Name", tribute.Name)
	writeCbc(enc, "TaxTypeCode", tribute.TypeCode)
	end(enc, "cac:TaxScheme")
	end(enc, "cac:TaxCategory")
	end(enc, "cac:TaxSubtotal")
}

func writeMonetaryTotal(enc *xml.Encoder, element string, t domsunat.TaxTotals, currency string) {
	lineExtension := t.SubtotalTaxed.Add(t.SubtotalExonerated).Add(t.SubtotalUnaffected)
	start(enc, "cac:"+element)
	writeCbcAmount(enc, "LineExtensionAmount", lineExtension, currency)
	writeCbcAmount(enc, "TaxInclusiveAmount", t.GrandTotal, currency)
	writeCbcAmount(enc, "PayableAmount", t.GrandTotal, currency)
	end(enc, "cac:"+element)
}

// ── helpers de escritura ──────────────────────────────────────────────────────

func start(enc *xml.Encoder, name string, attrs ...xml.Attr) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func end(enc *xml.Encoder, name string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

func writeLeaf(enc *xml.Encoder, name, value string, attrs ...xml.Attr) {
	start(enc, name, attrs...)
	_ = enc.EncodeToken(xml.CharData(value))
	end(enc, name)
}

func writeCbc(enc *xml.Encoder, local, value string) {
	writeLeaf(enc, "cbc:"+local, value)
}

func writeCbcWithAttr(enc *xml.Encoder, local, value, attrLocal, attrValue string) {
	writeLeaf(enc, "cbc:"+local, value, xml.Attr{Name: xml.Name{Local: attrLocal}, Value: attrValue})
}

func writeCbcAmount(enc *xml.Encoder, local string, value decimal.Decimal, currency string) {
	writeCbcWithAttr(enc, local, formatDecimal(value), "currencyID", currency)
}

func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func unitOrDefault(code string) string {
	if code == "" {
		return sunat.UnitUnidad
	}
	return code
}
