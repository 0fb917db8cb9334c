package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/erp-sunat-api/internal/application/billing"
	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

func TestArtifacts_IdaYVuelta(t *testing.T) {
	cases := map[string][]byte{
		"xml":                {'<', '?', 'x', 'm', 'l', '?', '>'},
		"texto tipo base64":  []byte("QUJDRA=="),
		"binario zip":        {0x50, 0x4b, 0x03, 0x04, 0x00, 0xff},
		"texto con espacios": []byte("hola mundo"),
	}
	for name, raw := range cases {
		stored := billing.EncodeArtifact(raw)
		assert.Equalf(t, raw, billing.DecodeArtifact(stored), "caso %s", name)
	}
}

func TestSaveGeneratedXML_ContenidoQuePareceBase64(t *testing.T) {
	doc := &entity.ElectronicDocument{}
	billing.SaveGeneratedXML(doc, []byte("QUJDRA=="), "hash")

	assert.Equal(t, "UVVKRFJBPT0=", doc.XML, "siempre se codifica")
	assert.Equal(t, []byte("QUJDRA=="), billing.DecodeArtifact(doc.XML))
	assert.Equal(t, "hash", doc.Hash)
}

func TestDecodeArtifact_RegistrosAntiguosEnTextoPlano(t *testing.T) {
	legacy := `<?xml version="1.0" encoding="UTF-8"?><Invoice/>`
	assert.Equal(t, []byte(legacy), billing.DecodeArtifact(legacy))
	assert.Nil(t, billing.DecodeArtifact(""))
}

func TestIsBase64Artifact(t *testing.T) {
	assert.True(t, billing.IsBase64Artifact("QUJDRA=="))
	assert.False(t, billing.IsBase64Artifact("abc"), "longitud no múltiplo de 4")
	assert.False(t, billing.IsBase64Artifact("ab=c"), "relleno en medio")
	assert.False(t, billing.IsBase64Artifact("<a/>"))
	assert.False(t, billing.IsBase64Artifact("QUI="+"QUI="), "relleno antes del final")
	assert.False(t, billing.IsBase64Artifact("QR=="), "bits sobrantes: no reconstruye igual")
}
