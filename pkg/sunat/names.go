package sunat

import (
	"fmt"
	"strings"
	"time"
)

// DocumentKey identifica un comprobante ante SUNAT: {RUC}-{TIPO}-{SERIE}-{NUMERO}.
func DocumentKey(ruc, docType, series string, number int64) string {
	return fmt.Sprintf("%s-%s-%s-%d", ruc, docType, series, number)
}

// ParseDocumentKey separa una clave {RUC}-{TIPO}-{SERIE}-{NUMERO}.
func ParseDocumentKey(key string) (ruc, docType, series, number string, ok bool) {
	parts := strings.Split(key, "-")
	if len(parts) != 4 || len(parts[0]) != 11 {
		return "", "", "", "", false
	}
	return parts[0], parts[1], parts[2], parts[3], true
}

// ZipFileName nombre del ZIP que se envía a billService.
func ZipFileName(key string) string { return key + ".zip" }

// XMLFileName nombre del XML dentro del ZIP.
func XMLFileName(key string) string { return key + ".xml" }

// CDRFileName nombre del ZIP de constancia de recepción.
func CDRFileName(key string) string { return "R-" + key + ".zip" }

// VoidedKey identificador de una comunicación de baja: {RUC}-RA-{AAAAMMDD}-{correlativo}.
func VoidedKey(ruc string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-RA-%s-%d", ruc, day.Format("20060102"), seq)
}
