package sunat

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

// SimulatedGateway modo dev: genera el XML real sin firmar y acepta todo sin salir a la red.
// El CDR es un ApplicationResponse mínimo con código 0 para que descargas y PDF funcionen.
type SimulatedGateway struct {
	builder *XMLBuilderService
	now     func() time.Time
	log     zerolog.Logger
}

// NewSimulatedGateway construye el gateway simulado.
func NewSimulatedGateway(log zerolog.Logger) *SimulatedGateway {
	return &SimulatedGateway{
		builder: NewXMLBuilderService(),
		now:     time.Now,
		log:     log.With().Str("component", "sunat-simulated").Logger(),
	}
}

// Generate construye el XML; el hash es el SHA-256 del contenido sin firma.
func (g *SimulatedGateway) Generate(_ context.Context, req billing.GenerateRequest) (*billing.GeneratedDocument, error) {
	xmlBytes, err := g.builder.Build(&DocumentBuildContext{
		Issuer:   req.Config,
		Document: req.Document,
		Customer: req.Customer,
		Totals:   req.Totals,
	})
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(xmlBytes)
	return &billing.GeneratedDocument{XML: xmlBytes, Hash: base64.StdEncoding.EncodeToString(sum[:])}, nil
}

// Submit acepta el comprobante y devuelve su clave como ticket.
func (g *SimulatedGateway) Submit(_ context.Context, req billing.SubmitRequest) (*billing.GatewayResponse, error) {
	doc := req.Document
	key := sunat.DocumentKey(req.Config.RUC, doc.DocType, doc.Series, doc.Number)
	g.log.Info().Str("document_id", doc.ID).Str("ticket", key).Msg("envío simulado")
	return g.accepted(key, fmt.Sprintf("%s-%d", doc.Series, doc.Number))
}

// CheckStatus siempre aceptado.
func (g *SimulatedGateway) CheckStatus(_ context.Context, req billing.StatusRequest) (*billing.GatewayResponse, error) {
	doc := req.Document
	return g.accepted(req.Ticket, fmt.Sprintf("%s-%d", doc.Series, doc.Number))
}

// Void devuelve un ticket de baja simulado.
func (g *SimulatedGateway) Void(_ context.Context, req billing.VoidRequest) (*billing.GatewayResponse, error) {
	ticket := fmt.Sprintf("SIM-%d", g.now().UnixNano())
	g.log.Info().Str("document_id", req.Document.ID).Str("ticket", ticket).Msg("baja simulada")
	return &billing.GatewayResponse{Status: billing.GatewayInProcess, Ticket: ticket}, nil
}

func (g *SimulatedGateway) accepted(ticket, reference string) (*billing.GatewayResponse, error) {
	description := fmt.Sprintf("El comprobante %s ha sido aceptado (simulado)", reference)
	cdrZip, err := CompressXMLToZip(simulatedCDR(reference, description, g.now()), "R-"+ticket+".xml")
	if err != nil {
		return nil, err
	}
	return &billing.GatewayResponse{
		Status:       billing.GatewayAccepted,
		Ticket:       ticket,
		CDR:          cdrZip,
		ResponseCode: "0",
		Description:  description,
	}, nil
}

func simulatedCDR(reference, description string, at time.Time) []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<ar:ApplicationResponse xmlns:ar="urn:oasis:names:specification:ubl:schema:xsd:ApplicationResponse-2"` +
		` xmlns:cac="` + NsCac + `" xmlns:cbc="` + NsCbc + `">` +
		`<cbc:ResponseDate>` + at.Format("2006-01-02") + `</cbc:ResponseDate>` +
		`<cac:DocumentResponse><cac:Response>` +
		`<cbc:ReferenceID>` + reference + `</cbc:ReferenceID>` +
		`<cbc:ResponseCode>0</cbc:ResponseCode>` +
		`<cbc:Description>` + description + `</cbc:Description>` +
		`</cac:Response></cac:DocumentResponse></ar:ApplicationResponse>`)
}

var _ billing.TaxGateway = (*SimulatedGateway)(nil)
