package sunat_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/erp-sunat-api/internal/domain/entity"
)

const issuerRUC = "20100123453"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func issuer() *entity.BillingConfig {
	return &entity.BillingConfig{
		CompanyID:   "company-1",
		RUC:         issuerRUC,
		LegalName:   "EMPRESA DEMO S.A.C.",
		TradeName:   "DEMO",
		Address:     "AV. LARCO 123",
		UbigeoCode:  "150101",
		SolUser:     "MODDATOS",
		SolPassword: "moddatos",
		CertPath:    "demo.pem",
	}
}

func invoice() *entity.ElectronicDocument {
	return &entity.ElectronicDocument{
		ID:           "doc-1",
		CompanyID:    "company-1",
		DocType:      "01",
		Series:       "F001",
		Number:       42,
		IssueDate:    time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		CurrencyCode: "PEN",
		Items: []*entity.DocumentItem{
			{Description: "Laptop", ProductID: "P-1", UnitCode: "NIU", Quantity: d("10"), UnitPrice: d("100"), AffectationCode: "10"},
			{Description: "Libro", Quantity: d("2"), UnitPrice: d("50"), DiscountPct: d("10"), AffectationCode: "20"},
		},
	}
}

func customer() *entity.Party {
	return &entity.Party{ID: "cust-1", DocType: "6", DocNumber: "20100000051", Name: "CLIENTE S.A.", Address: "JR. UNIÓN 456"}
}

func parseXML(t *testing.T, data []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(data))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func text(t *testing.T, root *etree.Element, path string) string {
	t.Helper()
	e := root.FindElement(path)
	require.NotNil(t, e, "no existe %s", path)
	return e.Text()
}

// writePEM genera un certificado autofirmado con su llave en un único .pem.
func writePEM(t *testing.T, dir, name string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "EMPRESA DEMO S.A.C."},
		Issuer:       pkix.Name{CommonName: "EMPRESA DEMO S.A.C."},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	require.NoError(t, err)
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}
