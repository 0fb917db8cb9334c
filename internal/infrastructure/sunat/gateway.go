package sunat

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/domain"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
	"github.com/jhoicas/erp-sunat-api/internal/infrastructure/sunat/signer"
	"github.com/jhoicas/erp-sunat-api/pkg/config"
	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

// Estados de getStatus para tickets de sendSummary.
const (
	ticketInProcess  = "98"
	ticketDone       = "0"
	ticketDoneErrors = "99"
)

// Gateway implementa billing.TaxGateway contra los servicios SOAP de SUNAT.
type Gateway struct {
	cfg     config.SUNATConfig
	builder *XMLBuilderService
	signer  sunat.Signer
	soap    *SOAPClient
	now     func() time.Time
	log     zerolog.Logger

	mu    sync.Mutex
	certs map[string]*tls.Certificate // por ruta; cada carga genera una ruta nueva
}

// NewGateway construye el gateway con el firmador indicado.
func NewGateway(cfg config.SUNATConfig, s sunat.Signer, log zerolog.Logger) *Gateway {
	return &Gateway{
		cfg:     cfg,
		builder: NewXMLBuilderService(),
		signer:  s,
		soap:    NewSOAPClient(cfg.Timeout),
		now:     time.Now,
		log:     log.With().Str("component", "sunat-gateway").Logger(),
		certs:   make(map[string]*tls.Certificate),
	}
}

// Generate construye el XML UBL y lo firma con el certificado de la empresa.
func (g *Gateway) Generate(_ context.Context, req billing.GenerateRequest) (*billing.GeneratedDocument, error) {
	xmlBytes, err := g.builder.Build(&DocumentBuildContext{
		Issuer:   req.Config,
		Document: req.Document,
		Customer: req.Customer,
		Totals:   req.Totals,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	signed, digest, err := g.sign(req.Config, xmlBytes)
	if err != nil {
		return nil, err
	}
	return &billing.GeneratedDocument{XML: signed, Hash: digest}, nil
}

// Submit envía el comprobante con sendBill. La respuesta es síncrona: el ticket
// devuelto es la clave del comprobante, que luego se consulta con getStatusCdr.
func (g *Gateway) Submit(ctx context.Context, req billing.SubmitRequest) (*billing.GatewayResponse, error) {
	doc := req.Document
	key := sunat.DocumentKey(req.Config.RUC, doc.DocType, doc.Series, doc.Number)
	zipBytes, err := CompressXMLToZip(req.XML, sunat.XMLFileName(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	g.log.Debug().Str("document_id", doc.ID).Str("file", sunat.ZipFileName(key)).Msg("sendBill")
	cdrZip, err := g.soap.SendBill(ctx, g.endpoint(req.Config), credentials(req.Config), sunat.ZipFileName(key), zipBytes)
	if err != nil {
		return g.faultResponse(key, err)
	}
	return fromCDR(key, cdrZip)
}

// CheckStatus consulta un ticket. Los tickets numéricos vienen de sendSummary (getStatus);
// los que tienen forma de clave de comprobante se consultan en billConsultService.
func (g *Gateway) CheckStatus(ctx context.Context, req billing.StatusRequest) (*billing.GatewayResponse, error) {
	cred := credentials(req.Config)
	if isNumeric(req.Ticket) {
		st, err := g.soap.GetStatus(ctx, g.endpoint(req.Config), cred, req.Ticket)
		if err != nil {
			return nil, transportError(err)
		}
		switch st.Code {
		case ticketInProcess:
			return &billing.GatewayResponse{Status: billing.GatewayInProcess, Ticket: req.Ticket}, nil
		case ticketDone, ticketDoneErrors:
			return fromCDR(req.Ticket, st.Content)
		}
		return nil, fmt.Errorf("%w: getStatus devolvió %s %s", domain.ErrTransport, st.Code, st.Message)
	}

	ruc, docType, series, number, ok := sunat.ParseDocumentKey(req.Ticket)
	if !ok {
		return nil, fmt.Errorf("%w: ticket %q no reconocido", domain.ErrInvalidInput, req.Ticket)
	}
	n, err := strconv.ParseInt(number, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: ticket %q no reconocido", domain.ErrInvalidInput, req.Ticket)
	}
	if !g.production(req.Config) {
		// billConsultService solo existe en producción
		return &billing.GatewayResponse{
			Status:      billing.GatewayInProcess,
			Ticket:      req.Ticket,
			Description: "consulta de CDR no disponible en beta",
		}, nil
	}
	st, err := g.soap.GetStatusCdr(ctx, g.cfg.ConsultEndpoint, cred, ruc, docType, series, n)
	if err != nil {
		return nil, transportError(err)
	}
	if len(st.Content) == 0 {
		g.log.Info().Str("ticket", req.Ticket).Str("code", st.Code).Str("message", st.Message).Msg("CDR aún no disponible")
		return &billing.GatewayResponse{Status: billing.GatewayInProcess, Ticket: req.Ticket, Description: st.Message}, nil
	}
	return fromCDR(req.Ticket, st.Content)
}

// Void envía la comunicación de baja (RA) y devuelve el ticket a consultar.
func (g *Gateway) Void(ctx context.Context, req billing.VoidRequest) (*billing.GatewayResponse, error) {
	doc := req.Document
	if strings.HasPrefix(doc.Series, "B") {
		return nil, fmt.Errorf("%w: las boletas se anulan mediante resumen diario", domain.ErrInvalidInput)
	}
	date := req.Date
	if date.IsZero() {
		date = g.now()
	}
	key := sunat.VoidedKey(req.Config.RUC, date, voidSequence(date))
	xmlBytes, err := g.builder.BuildVoided(&VoidBuildContext{
		Issuer:    req.Config,
		Document:  doc,
		ID:        strings.TrimPrefix(key, req.Config.RUC+"-"),
		IssueDate: date,
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	signed, _, err := g.sign(req.Config, xmlBytes)
	if err != nil {
		return nil, err
	}
	zipBytes, err := CompressXMLToZip(signed, sunat.XMLFileName(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}

	ticket, err := g.soap.SendSummary(ctx, g.endpoint(req.Config), credentials(req.Config), sunat.ZipFileName(key), zipBytes)
	if err != nil {
		return g.faultResponse(key, err)
	}
	g.log.Info().Str("document_id", doc.ID).Str("ticket", ticket).Msg("comunicación de baja recibida")
	return &billing.GatewayResponse{Status: billing.GatewayInProcess, Ticket: ticket}, nil
}

// Ping consulta un ticket inexistente: si SUNAT responde algo distinto de un error
// de autenticación o disponibilidad (0100-0119) las credenciales son válidas.
// El caso normal es 0127 "El ticket no existe".
func (g *Gateway) Ping(ctx context.Context, cfg *entity.BillingConfig) error {
	_, err := g.soap.GetStatus(ctx, g.endpoint(cfg), credentials(cfg), "0000000000000")
	if err == nil {
		return nil
	}
	if f, ok := AsFault(err); ok {
		if v := f.Value(); v >= 100 && v < 120 {
			return f
		}
		return nil
	}
	return err
}

// ── helpers ───────────────────────────────────────────────────────────────────

// production con SUNAT_ENV=beta todo va a homologación aunque la empresa esté en producción.
func (g *Gateway) production(cfg *entity.BillingConfig) bool {
	return cfg.Production && g.cfg.Env != config.SUNATEnvBeta
}

func (g *Gateway) endpoint(cfg *entity.BillingConfig) string {
	return g.cfg.Endpoint(g.production(cfg))
}

func (g *Gateway) sign(cfg *entity.BillingConfig, xmlBytes []byte) ([]byte, string, error) {
	cert, err := g.certificate(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	signed, digest, err := g.signer.Sign(xmlBytes, cert)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	return signed, digest, nil
}

func (g *Gateway) certificate(cfg *entity.BillingConfig) (*tls.Certificate, error) {
	path := cfg.CertPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.cfg.CertDir, path)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.certs[path]; ok {
		return c, nil
	}
	c, err := signer.Load(path, cfg.CertPassword)
	if err != nil {
		return nil, err
	}
	g.certs[path] = c
	return c, nil
}

// faultResponse un Fault 2000-3999 es un rechazo (resultado, no error).
func (g *Gateway) faultResponse(ticket string, err error) (*billing.GatewayResponse, error) {
	if f, ok := AsFault(err); ok && f.IsRejection() {
		return &billing.GatewayResponse{
			Status:       billing.GatewayRejected,
			Ticket:       ticket,
			ResponseCode: strconv.Itoa(f.Value()),
			Description:  f.Message,
		}, nil
	}
	return nil, transportError(err)
}

// fromCDR interpreta el ZIP de constancia. Un código de excepción se trata como falla
// de transporte para que el orquestador reintente.
func fromCDR(ticket string, cdrZip []byte) (*billing.GatewayResponse, error) {
	cdr, err := ParseCDR(cdrZip)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	status, ok := cdr.Status()
	if !ok {
		return nil, fmt.Errorf("%w: excepción SUNAT %s %s", domain.ErrTransport, cdr.ResponseCode, cdr.Description)
	}
	return &billing.GatewayResponse{
		Status:       status,
		Ticket:       ticket,
		CDR:          cdrZip,
		ResponseCode: cdr.ResponseCode,
		Description:  cdr.Description,
		Observations: cdr.Notes,
	}, nil
}

func transportError(err error) error {
	if errors.Is(err, domain.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransport, err)
}

// credentials SUNAT espera RUC + usuario SOL como nombre de usuario.
func credentials(cfg *entity.BillingConfig) Credentials {
	user := cfg.SolUser
	if !strings.HasPrefix(user, cfg.RUC) {
		user = cfg.RUC + user
	}
	return Credentials{Username: user, Password: cfg.SolPassword}
}

// voidSequence correlativo del RA derivado de la hora, único dentro del día por segundo.
func voidSequence(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second() + 1
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var (
	_ billing.TaxGateway       = (*Gateway)(nil)
	_ billing.ConnectionTester = (*Gateway)(nil)
)
