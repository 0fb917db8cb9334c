// Carga de certificado desde .p12/.pfx (PKCS#12) o PEM.

package signer

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// Load abre el certificado según la extensión del archivo.
func Load(path, password string) (*tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer certificado: %w", err)
	}
	return Parse(data, filepath.Base(path), password)
}

// Parse decodifica el contenido de un .p12/.pfx o .pem ya leído.
func Parse(data []byte, fileName, password string) (*tls.Certificate, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".p12", ".pfx":
		return ParseP12(data, password)
	case ".pem":
		return ParsePEM(data)
	default:
		return nil, fmt.Errorf("formato de certificado no soportado: %s", fileName)
	}
}

// ParseP12 decodifica un PKCS#12. Si el archivo trae la cadena completa,
// pkcs12.Decode falla y se recurre a ToPEM quedándose con la llave y el certificado hoja.
func ParseP12(data []byte, password string) (*tls.Certificate, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err == nil {
		return &tls.Certificate{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  priv,
			Leaf:        cert,
		}, nil
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return nil, fmt.Errorf("decodificar p12: password incorrecto")
	}

	blocks, pemErr := pkcs12.ToPEM(data, password)
	if pemErr != nil {
		return nil, fmt.Errorf("decodificar p12: %w", err)
	}
	var key []byte
	var certs [][]byte
	for _, b := range blocks {
		if b.Type == "CERTIFICATE" {
			certs = append(certs, pem.EncodeToMemory(b))
		} else {
			key = pem.EncodeToMemory(b)
		}
	}
	for _, c := range certs {
		if out, err := ParsePEM(append(append([]byte{}, c...), key...)); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("decodificar p12: ningún certificado corresponde a la llave privada")
}

// ParsePEM lee certificado y llave privada de un mismo bloque PEM.
func ParsePEM(data []byte) (*tls.Certificate, error) {
	cert, err := tls.X509KeyPair(data, data)
	if err != nil {
		return nil, fmt.Errorf("cargar PEM: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsear certificado: %w", err)
	}
	cert.Leaf = leaf
	return &cert, nil
}
