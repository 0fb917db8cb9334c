package sunat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jhoicas/erp-sunat-api/internal/domain"
)

const (
	soapNSEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"
	soapNSService  = "http://service.sunat.gob.pe"
	soapNSWSSE     = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"

	maxResponseSize = 10 << 20
)

// Credentials usuario SOL completo (RUC + usuario) y su clave.
type Credentials struct {
	Username string
	Password string
}

// Fault error SOAP devuelto por SUNAT. El código numérico define si es rechazo o excepción.
type Fault struct {
	Code    string
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("SUNAT [%s]: %s", f.Code, f.Message)
}

// Value código numérico; algunos servicios lo envían en faultstring.
func (f *Fault) Value() int {
	if n := ResponseCodeValue(f.Code); n >= 0 {
		return n
	}
	return ResponseCodeValue(f.Message)
}

// IsRejection los códigos 2000-3999 son rechazos del comprobante, no fallas del servicio.
func (f *Fault) IsRejection() bool {
	n := f.Value()
	return n >= 2000 && n < 4000
}

// TicketStatus respuesta de getStatus / getStatusCdr.
type TicketStatus struct {
	Code    string
	Message string
	Content []byte // ZIP del CDR cuando ya está disponible
}

// SOAPClient cliente de billService y billConsultService.
type SOAPClient struct {
	httpClient *http.Client
}

// NewSOAPClient construye el cliente. El timeout por llamada lo impone además el contexto.
func NewSOAPClient(timeout time.Duration) *SOAPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SOAPClient{httpClient: &http.Client{Timeout: timeout}}
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName   xml.Name   `xml:"soapenv:Envelope"`
	XmlnsEnv  string     `xml:"xmlns:soapenv,attr"`
	XmlnsSer  string     `xml:"xmlns:ser,attr"`
	XmlnsWsse string     `xml:"xmlns:wsse,attr"`
	Header    soapHeader `xml:"soapenv:Header"`
	Body      soapBody   `xml:"soapenv:Body"`
}

type soapHeader struct {
	Security wsseSecurity `xml:"wsse:Security"`
}

type wsseSecurity struct {
	UsernameToken wsseUsernameToken `xml:"wsse:UsernameToken"`
}

type wsseUsernameToken struct {
	Username string `xml:"wsse:Username"`
	Password string `xml:"wsse:Password"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type sendBillRequest struct {
	XMLName     xml.Name `xml:"ser:sendBill"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"`
}

type sendSummaryRequest struct {
	XMLName     xml.Name `xml:"ser:sendSummary"`
	FileName    string   `xml:"fileName"`
	ContentFile string   `xml:"contentFile"`
}

type getStatusRequest struct {
	XMLName xml.Name `xml:"ser:getStatus"`
	Ticket  string   `xml:"ticket"`
}

type getStatusCdrRequest struct {
	XMLName xml.Name `xml:"ser:getStatusCdr"`
	RUC     string   `xml:"rucComprobante"`
	Type    string   `xml:"tipoComprobante"`
	Series  string   `xml:"serieComprobante"`
	Number  string   `xml:"numeroComprobante"`
}

// ── Respuestas ────────────────────────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Fault        *soapFault           `xml:"Fault"`
	SendBill     *sendBillResponse    `xml:"sendBillResponse"`
	SendSummary  *sendSummaryResponse `xml:"sendSummaryResponse"`
	GetStatus    *statusResponse      `xml:"getStatusResponse"`
	GetStatusCdr *statusCdrResponse   `xml:"getStatusCdrResponse"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

type sendBillResponse struct {
	ApplicationResponse string `xml:"applicationResponse"`
}

type sendSummaryResponse struct {
	Ticket string `xml:"ticket"`
}

type statusPayload struct {
	StatusCode    string `xml:"statusCode"`
	StatusMessage string `xml:"statusMessage"`
	Content       string `xml:"content"`
}

type statusResponse struct {
	Status statusPayload `xml:"status"`
}

type statusCdrResponse struct {
	Status statusPayload `xml:"statusCdr"`
}

// ── Operaciones ───────────────────────────────────────────────────────────────

// SendBill envía un comprobante y devuelve el ZIP del CDR (applicationResponse).
func (c *SOAPClient) SendBill(ctx context.Context, endpoint string, cred Credentials, fileName string, zipBytes []byte) ([]byte, error) {
	body := &sendBillRequest{FileName: fileName, ContentFile: base64.StdEncoding.EncodeToString(zipBytes)}
	resp, err := c.call(ctx, endpoint, "sendBill", cred, body)
	if err != nil {
		return nil, err
	}
	if resp.SendBill == nil {
		return nil, fmt.Errorf("%w: respuesta sendBill vacía", domain.ErrTransport)
	}
	return decodeContent(resp.SendBill.ApplicationResponse)
}

// SendSummary envía una comunicación de baja o resumen y devuelve el ticket.
func (c *SOAPClient) SendSummary(ctx context.Context, endpoint string, cred Credentials, fileName string, zipBytes []byte) (string, error) {
	body := &sendSummaryRequest{FileName: fileName, ContentFile: base64.StdEncoding.EncodeToString(zipBytes)}
	resp, err := c.call(ctx, endpoint, "sendSummary", cred, body)
	if err != nil {
		return "", err
	}
	if resp.SendSummary == nil || strings.TrimSpace(resp.SendSummary.Ticket) == "" {
		return "", fmt.Errorf("%w: respuesta sendSummary sin ticket", domain.ErrTransport)
	}
	return strings.TrimSpace(resp.SendSummary.Ticket), nil
}

// GetStatus consulta un ticket de sendSummary. statusCode 98 = en proceso,
// 0 = procesado, 99 = procesado con errores (ambos traen CDR).
func (c *SOAPClient) GetStatus(ctx context.Context, endpoint string, cred Credentials, ticket string) (*TicketStatus, error) {
	resp, err := c.call(ctx, endpoint, "getStatus", cred, &getStatusRequest{Ticket: ticket})
	if err != nil {
		return nil, err
	}
	if resp.GetStatus == nil {
		return nil, fmt.Errorf("%w: respuesta getStatus vacía", domain.ErrTransport)
	}
	return toTicketStatus(resp.GetStatus.Status)
}

// GetStatusCdr recupera el CDR de un comprobante enviado por sendBill (billConsultService).
func (c *SOAPClient) GetStatusCdr(ctx context.Context, endpoint string, cred Credentials, ruc, docType, series string, number int64) (*TicketStatus, error) {
	body := &getStatusCdrRequest{RUC: ruc, Type: docType, Series: series, Number: strconv.FormatInt(number, 10)}
	resp, err := c.call(ctx, endpoint, "getStatusCdr", cred, body)
	if err != nil {
		return nil, err
	}
	if resp.GetStatusCdr == nil {
		return nil, fmt.Errorf("%w: respuesta getStatusCdr vacía", domain.ErrTransport)
	}
	return toTicketStatus(resp.GetStatusCdr.Status)
}

// call arma el sobre con WS-Security, lo envía y devuelve el Body.
// Un Fault se devuelve como *Fault; las fallas de red o de formato envuelven domain.ErrTransport.
func (c *SOAPClient) call(ctx context.Context, endpoint, operation string, cred Credentials, content interface{}) (*soapResponseBody, error) {
	envelope := soapEnvelope{
		XmlnsEnv:  soapNSEnvelope,
		XmlnsSer:  soapNSService,
		XmlnsWsse: soapNSWSSE,
		Header: soapHeader{Security: wsseSecurity{
			UsernameToken: wsseUsernameToken{Username: cred.Username, Password: cred.Password},
		}},
		Body: soapBody{Content: content},
	}
	payload, err := xml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("soap: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "urn:"+operation)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: timeout o cancelación: %w", domain.ErrTransport, operation, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: leer respuesta: %w", domain.ErrTransport, operation, err)
	}

	var env soapResponseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: HTTP %d con respuesta no SOAP", domain.ErrTransport, operation, resp.StatusCode)
	}
	if f := env.Body.Fault; f != nil {
		return nil, &Fault{Code: strings.TrimSpace(f.FaultCode), Message: strings.TrimSpace(f.FaultString)}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s: HTTP %d", domain.ErrTransport, operation, resp.StatusCode)
	}
	return &env.Body, nil
}

func toTicketStatus(p statusPayload) (*TicketStatus, error) {
	out := &TicketStatus{Code: strings.TrimSpace(p.StatusCode), Message: strings.TrimSpace(p.StatusMessage)}
	if strings.TrimSpace(p.Content) != "" {
		content, err := decodeContent(p.Content)
		if err != nil {
			return nil, err
		}
		out.Content = content
	}
	return out, nil
}

func decodeContent(s string) ([]byte, error) {
	clean := strings.Join(strings.Fields(s), "")
	if clean == "" {
		return nil, fmt.Errorf("%w: contenido vacío", domain.ErrTransport)
	}
	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: contenido base64 inválido: %w", domain.ErrTransport, err)
	}
	return data, nil
}

// AsFault extrae el Fault de SUNAT de una cadena de errores.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
