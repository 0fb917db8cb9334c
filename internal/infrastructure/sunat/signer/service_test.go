package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unsignedInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2" xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2" xmlns:ext="urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"><ext:UBLExtensions><ext:UBLExtension><ext:ExtensionContent></ext:ExtensionContent></ext:UBLExtension></ext:UBLExtensions><cbc:ID>F001-1</cbc:ID></Invoice>`

func selfSigned(t *testing.T) (*tls.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "EMPRESA DEMO S.A.C.", SerialNumber: "20100123453"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	require.NoError(t, err)
	return &tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}, key
}

func TestSign_InyectaFirmaYDevuelveDigest(t *testing.T) {
	cert, key := selfSigned(t)
	svc := NewDigitalSignatureService()

	signed, digest, err := svc.Sign([]byte(unsignedInvoice), cert)
	require.NoError(t, err)

	canonical, err := Canonicalize([]byte(unsignedInvoice))
	require.NoError(t, err)
	sum := sha256.Sum256(canonical)
	assert.Equal(t, base64.StdEncoding.EncodeToString(sum[:]), digest)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	sig := doc.FindElement("//UBLExtensions/UBLExtension/ExtensionContent/Signature")
	require.NotNil(t, sig, "la firma va dentro de ExtensionContent")
	assert.Equal(t, SignatureID, sig.SelectAttrValue("Id", ""))
	assert.Equal(t, digest, sig.FindElement(".//DigestValue").Text())
	assert.NotEmpty(t, sig.FindElement(".//X509Certificate").Text())
	assert.Equal(t, "F001-1", doc.FindElement("//ID").Text(), "el contenido original se conserva")

	// La firma verifica contra la forma canónica de SignedInfo
	raw, err := base64.StdEncoding.DecodeString(sig.FindElement("./SignatureValue").Text())
	require.NoError(t, err)
	signedInfo, err := Canonicalize([]byte(buildSignedInfo(digest)))
	require.NoError(t, err)
	h := sha256.Sum256(signedInfo)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, h[:], raw))
}

func TestSign_Errores(t *testing.T) {
	cert, _ := selfSigned(t)
	svc := NewDigitalSignatureService()

	_, _, err := svc.Sign(nil, cert)
	assert.Error(t, err)

	_, _, err = svc.Sign([]byte(unsignedInvoice), nil)
	assert.Error(t, err)

	_, _, err = svc.Sign([]byte(`<Invoice><ID>1</ID></Invoice>`), cert)
	assert.ErrorIs(t, err, ErrNoExtensionContent)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, _, err = svc.Sign([]byte(unsignedInvoice), &tls.Certificate{Certificate: cert.Certificate, PrivateKey: ecKey})
	assert.ErrorContains(t, err, "RSA")
}

func TestParse_PEMCombinado(t *testing.T) {
	cert, key := selfSigned(t)
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]})
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})...)

	out, err := Parse(data, "empresa.pem", "")
	require.NoError(t, err)
	require.NotNil(t, out.Leaf)
	assert.Equal(t, "EMPRESA DEMO S.A.C.", out.Leaf.Subject.CommonName)

	_, err = Parse(data, "empresa.cer", "")
	assert.ErrorContains(t, err, "no soportado")

	_, err = Parse([]byte("basura"), "empresa.p12", "x")
	assert.Error(t, err)
}
