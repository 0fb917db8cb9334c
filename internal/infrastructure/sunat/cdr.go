package sunat

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/charmap"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
)

// CDR constancia de recepción (ApplicationResponse) ya interpretada.
type CDR struct {
	ReferenceID  string // comprobante al que responde, p. ej. F001-1
	ResponseCode string
	Description  string
	Notes        []string // observaciones (códigos 4000+)
}

// ParseCDR abre el ZIP R-*.zip y lee cac:DocumentResponse/cac:Response.
func ParseCDR(zipBytes []byte) (*CDR, error) {
	xmlBytes, _, err := ExtractXMLFromZip(zipBytes, "R-")
	if err != nil {
		return nil, fmt.Errorf("cdr: %w", err)
	}
	return ParseCDRXML(xmlBytes)
}

// ParseCDRXML interpreta el ApplicationResponse. SUNAT lo emite en ISO-8859-1.
func ParseCDRXML(xmlBytes []byte) (*CDR, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("cdr: parsear XML: %w", err)
	}
	resp := doc.FindElement("//DocumentResponse/Response")
	if resp == nil {
		return nil, fmt.Errorf("cdr: falta cac:DocumentResponse/cac:Response")
	}
	out := &CDR{
		ReferenceID:  childText(resp, "ReferenceID"),
		ResponseCode: childText(resp, "ResponseCode"),
		Description:  childText(resp, "Description"),
	}
	if out.ResponseCode == "" {
		return nil, fmt.Errorf("cdr: ResponseCode vacío")
	}
	for _, note := range doc.FindElements("/ApplicationResponse/Note") {
		if t := strings.TrimSpace(note.Text()); t != "" {
			out.Notes = append(out.Notes, t)
		}
	}
	return out, nil
}

// Status traduce el código de respuesta: 0 y 4000+ aceptado (con observaciones),
// 2000-3999 rechazo, 0100-1999 excepción que amerita reintento.
func (c *CDR) Status() (billing.GatewayStatus, bool) {
	code := ResponseCodeValue(c.ResponseCode)
	switch {
	case code == 0 || code >= 4000:
		return billing.GatewayAccepted, true
	case code >= 2000:
		return billing.GatewayRejected, true
	default:
		return "", false
	}
}

// ResponseCodeValue valor numérico de un código SUNAT ("0", "2335", "soap-env:Client.0102").
// Devuelve -1 si no contiene dígitos.
func ResponseCodeValue(code string) int {
	if i := strings.LastIndexAny(code, ".:"); i >= 0 {
		code = code[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return -1
	}
	return n
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1", "iso8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(input), nil
	case "", "utf-8", "utf8":
		return input, nil
	}
	return nil, fmt.Errorf("cdr: codificación no soportada %q", charset)
}
