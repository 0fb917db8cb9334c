// Firma XMLDSig enveloped para comprobantes SUNAT.
// Inyecta <ds:Signature> en ext:UBLExtensions/ext:UBLExtension/ext:ExtensionContent.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/erp-sunat-api/pkg/sunat"
)

// ErrNoExtensionContent el XML no trae el contenedor vacío para la firma.
var ErrNoExtensionContent = errors.New("signer: no se encontró ext:ExtensionContent para inyectar la firma")

// DigitalSignatureService implementa sunat.Signer.
type DigitalSignatureService struct{}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign firma el XML y devuelve el documento firmado junto con el DigestValue,
// que SUNAT usa como código hash del comprobante.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert *tls.Certificate) ([]byte, string, error) {
	if len(xmlBytes) == 0 {
		return nil, "", fmt.Errorf("signer: XML vacío")
	}
	if cert == nil || len(cert.Certificate) == 0 {
		return nil, "", fmt.Errorf("signer: certificado no cargado")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, "", fmt.Errorf("signer: el certificado debe incluir llave privada RSA")
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, "", fmt.Errorf("signer: parsear certificado: %w", err)
	}

	// 1) Digest del documento sin firma (equivale a aplicar la transformada enveloped)
	canonicalDoc, err := Canonicalize(xmlBytes)
	if err != nil {
		return nil, "", fmt.Errorf("signer: canonicalizar documento: %w", err)
	}
	docDigest := sha256.Sum256(canonicalDoc)
	digestB64 := base64.StdEncoding.EncodeToString(docDigest[:])

	// 2) SignedInfo canonicalizado y firmado con RSA-SHA256
	signedInfoXML := buildSignedInfo(digestB64)
	canonicalSignedInfo, err := Canonicalize([]byte(signedInfoXML))
	if err != nil {
		return nil, "", fmt.Errorf("signer: canonicalizar SignedInfo: %w", err)
	}
	signHash := sha256.Sum256(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, signHash[:])
	if err != nil {
		return nil, "", fmt.Errorf("signer: firmar SignedInfo: %w", err)
	}

	signatureXML := buildSignature(
		signedInfoXML,
		base64.StdEncoding.EncodeToString(signatureValue),
		base64.StdEncoding.EncodeToString(x509Cert.Raw),
		x509Cert.Subject.String(),
	)

	// 3) Inyectar en el ExtensionContent vacío
	signed, err := injectSignature(xmlBytes, signatureXML)
	if err != nil {
		return nil, "", err
	}
	return signed, digestB64, nil
}

// Canonicalize aplica C14N inclusivo. La declaración XML no forma parte de la forma canónica.
func Canonicalize(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("<?xml")) {
		if end := bytes.Index(data, []byte("?>")); end >= 0 {
			data = data[end+2:]
		}
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func buildSignedInfo(digestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"></ds:CanonicalizationMethod>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"></ds:SignatureMethod>`)
	sb.WriteString(`<ds:Reference URI="">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"></ds:Transform></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + digestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func buildSignature(signedInfoXML, signatureValueB64, certB64, subject string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `" Id="` + SignatureID + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue>` + signatureValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data>`)
	sb.WriteString(`<ds:X509SubjectName>` + escapeXML(subject) + `</ds:X509SubjectName>`)
	sb.WriteString(`<ds:X509Certificate>` + certB64 + `</ds:X509Certificate>`)
	sb.WriteString(`</ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func injectSignature(xmlBytes []byte, signatureXML string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("signer: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("signer: documento sin raíz")
	}
	// Primer ExtensionContent vacío dentro de UBLExtensions
	var target *etree.Element
	for _, ec := range root.FindElements("./UBLExtensions/UBLExtension/ExtensionContent") {
		if len(ec.ChildElements()) == 0 {
			target = ec
			break
		}
	}
	if target == nil {
		return nil, ErrNoExtensionContent
	}

	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("signer: parsear Signature: %w", err)
	}
	target.AddChild(sigDoc.Root())

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("signer: serializar XML: %w", err)
	}
	return out.Bytes(), nil
}

var _ sunat.Signer = (*DigitalSignatureService)(nil)
