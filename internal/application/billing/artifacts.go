package billing

import (
	"encoding/base64"
	"regexp"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// EncodeArtifact codifica XML o CDR para persistirlo. Siempre codifica, aunque el
// contenido ya parezca base64, para que la lectura sea inequívoca.
func EncodeArtifact(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeArtifact devuelve los bytes originales de un artefacto persistido.
// Registros antiguos guardados en texto plano se devuelven sin cambios: solo se
// decodifica si el valor es base64 válido y se reconstruye idéntico al re-codificarlo.
func DecodeArtifact(stored string) []byte {
	if stored == "" {
		return nil
	}
	if !IsBase64Artifact(stored) {
		return []byte(stored)
	}
	raw, _ := base64.StdEncoding.DecodeString(stored)
	return raw
}

// IsBase64Artifact aplica la heurística de detección de base64.
func IsBase64Artifact(s string) bool {
	if s == "" || len(s)%4 != 0 || !base64Pattern.MatchString(s) {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return base64.StdEncoding.EncodeToString(raw) == s
}

// SaveGeneratedXML guarda en el comprobante el XML firmado y su hash.
func SaveGeneratedXML(doc *entity.ElectronicDocument, xml []byte, hash string) {
	doc.XML = EncodeArtifact(xml)
	doc.Hash = hash
}
